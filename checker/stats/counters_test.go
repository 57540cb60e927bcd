package stats

import (
	"sync"
	"testing"
)

func TestCounters_ConcurrentRecords(t *testing.T) {
	const n = 1000
	var c Counters
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%3 == 0 {
				c.RecordSuccess()
			} else {
				c.RecordFailure()
			}
		}(i)
	}
	wg.Wait()

	s := c.Snapshot()
	if s.Checked != n {
		t.Errorf("Expected checked %d, got %d", n, s.Checked)
	}
	if s.Good+s.Bad != n {
		t.Errorf("Expected good+bad %d, got %d", n, s.Good+s.Bad)
	}
	if s.Good != 334 {
		t.Errorf("Expected 334 good, got %d", s.Good)
	}
}

func TestCounters_SnapshotConsistentDuringWrites(t *testing.T) {
	var c Counters
	done := make(chan struct{})
	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if (i+w)%2 == 0 {
					c.RecordSuccess()
				} else {
					c.RecordFailure()
				}
			}
		}(w)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	var last Snapshot
	for {
		s := c.Snapshot()
		if s.Checked != s.Good+s.Bad {
			t.Fatalf("Inconsistent snapshot: %+v", s)
		}
		if s.Checked < last.Checked || s.Good < last.Good || s.Bad < last.Bad {
			t.Fatalf("Counters went backwards: %+v after %+v", s, last)
		}
		last = s
		select {
		case <-done:
			if final := c.Snapshot(); final.Checked != 4000 {
				t.Errorf("Expected 4000 checked, got %d", final.Checked)
			}
			return
		default:
		}
	}
}

func TestCounters_Reset(t *testing.T) {
	var c Counters
	c.RecordSuccess()
	c.RecordFailure()
	c.Reset()
	if s := c.Snapshot(); s != (Snapshot{}) {
		t.Errorf("Expected zero snapshot after reset, got %+v", s)
	}
}
