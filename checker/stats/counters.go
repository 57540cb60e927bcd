package stats

import "sync/atomic"

// Snapshot 是某一时刻的计数器读数。Checked 总是等于 Good + Bad。
type Snapshot struct {
	Checked int64 `json:"checked"`
	Good    int64 `json:"good"`
	Bad     int64 `json:"bad"`
}

// Counters 记录一次检查运行的进度, 可被任意数量的探测并发更新。
//
// checked 不单独存储, 而是由 good + bad 得出, 因此任何快照都不会看到
// checked 已增加而对应的结果桶尚未增加的状态。
type Counters struct {
	good atomic.Int64
	bad  atomic.Int64
}

// RecordSuccess counts one good probe.
func (c *Counters) RecordSuccess() {
	c.good.Add(1)
}

// RecordFailure counts one bad probe.
func (c *Counters) RecordFailure() {
	c.bad.Add(1)
}

// Snapshot reads the counters without blocking writers.
func (c *Counters) Snapshot() Snapshot {
	good := c.good.Load()
	bad := c.bad.Load()
	return Snapshot{Checked: good + bad, Good: good, Bad: bad}
}

// Reset zeroes the counters. Only call it between runs.
func (c *Counters) Reset() {
	c.good.Store(0)
	c.bad.Store(0)
}
