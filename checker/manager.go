package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"liuproxy_checker/checker/loader"
	"liuproxy_checker/checker/model"
	"liuproxy_checker/checker/stats"
	"liuproxy_checker/checker/storage"
	"liuproxy_checker/checker/validator"
	"liuproxy_checker/internal/shared/logger"
	"liuproxy_checker/internal/shared/types"
)

var (
	// ErrInvalidStart 表示启动参数不满足前置条件, 启动请求被视为空操作。
	ErrInvalidStart = errors.New("invalid start parameters")
	// ErrAlreadyRunning 表示已有一次检查正在进行。
	ErrAlreadyRunning = errors.New("a check run is already in progress")
)

// State 是 Manager 的运行状态。
type State int

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// StartRequest 是外部 (Web 或 CLI) 发来的启动命令。
type StartRequest struct {
	Protocol   string `json:"protocol"`
	InputPath  string `json:"input"`
	OutputPath string `json:"output"`
}

// Status 是 Manager 当前状态的只读视图。
type Status struct {
	State    string `json:"state"`
	RunID    string `json:"run_id,omitempty"`
	Protocol string `json:"protocol,omitempty"`
	Total    int    `json:"total"`
	stats.Snapshot
}

// Display 接收周期性的计数器采样, 例如 Web 推送或控制台输出。
type Display interface {
	Update(snapshot stats.Snapshot)
}

// Manager 是检查引擎的总控制器: 读取地址列表, 为每个地址并发执行一次探测,
// 并把结果汇总到计数器与输出文件。
type Manager struct {
	cfg      *types.Config
	prober   validator.Prober
	counters stats.Counters

	mu       sync.Mutex
	state    State
	runID    string
	protocol model.Protocol
	total    int
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewManager 创建一个空闲的 Manager。
func NewManager(cfg *types.Config, prober validator.Prober) *Manager {
	return &Manager{
		cfg:    cfg,
		prober: prober,
	}
}

// Start 处理启动命令。前置条件不满足时返回 ErrInvalidStart 且不改变任何状态;
// 输出文件无法打开时返回错误, 运行不会开始。
func (m *Manager) Start(req StartRequest) error {
	l := logger.WithComponent("Checker/Manager")

	protocol, ok := model.ParseProtocol(req.Protocol)
	if !ok {
		l.Debug().Str("protocol", req.Protocol).Msg("Ignoring start command with unrecognized protocol.")
		return fmt.Errorf("%w: unrecognized protocol '%s'", ErrInvalidStart, req.Protocol)
	}
	if info, err := os.Stat(req.InputPath); err != nil || !info.Mode().IsRegular() {
		l.Debug().Str("input", req.InputPath).Msg("Ignoring start command, input is not a regular file.")
		return fmt.Errorf("%w: input '%s' is not a regular file", ErrInvalidStart, req.InputPath)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateRunning {
		return ErrAlreadyRunning
	}

	lines, err := loader.LoadLines(req.InputPath)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	sink, err := storage.Open(req.OutputPath, storage.Options{
		QueueSize: m.cfg.QueueSize,
		Sync:      m.cfg.Fsync,
	})
	if err != nil {
		l.Error().Err(err).Str("output", req.OutputPath).Msg("Cannot start check run.")
		return err
	}

	addresses := loader.Parse(lines)
	m.counters.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	m.state = StateRunning
	m.runID = uuid.NewString()
	m.protocol = protocol
	m.total = len(addresses)
	m.cancel = cancel
	m.done = make(chan struct{})

	l.Info().
		Str("run_id", m.runID).
		Str("protocol", protocol.String()).
		Str("input", req.InputPath).
		Str("output", req.OutputPath).
		Int("lines", len(lines)).
		Int("addresses", len(addresses)).
		Int("concurrency", m.cfg.Concurrency).
		Msg("Check run started.")

	go m.run(ctx, m.runID, protocol, addresses, sink, m.done)
	return nil
}

// run 为每个地址启动一个探测 goroutine, 并发数由信号量限制 (concurrency <= 0 时不限制)。
func (m *Manager) run(ctx context.Context, runID string, protocol model.Protocol, addresses []model.Address, sink *storage.ResultSink, done chan struct{}) {
	defer close(done)
	l := logger.WithComponent("Checker/Manager").With().Str("run_id", runID).Logger()
	startTime := time.Now()

	var sem *semaphore.Weighted
	if m.cfg.Concurrency > 0 {
		sem = semaphore.NewWeighted(int64(m.cfg.Concurrency))
	}

	var wg sync.WaitGroup
	launched := 0
	for _, addr := range addresses {
		if sem != nil {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
		} else if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		launched++
		go func(addr model.Address) {
			defer wg.Done()
			if sem != nil {
				defer sem.Release(1)
			}
			m.check(ctx, protocol, addr, sink)
		}(addr)
	}

	wg.Wait()
	cancelled := ctx.Err() != nil

	if err := sink.Close(); err != nil {
		l.Error().Err(err).Str("output", sink.Path()).Msg("Errors occurred while writing results.")
	}

	snapshot := m.counters.Snapshot()
	l.Info().
		Int("launched", launched).
		Int64("checked", snapshot.Checked).
		Int64("good", snapshot.Good).
		Int64("bad", snapshot.Bad).
		Int64("written", sink.Written()).
		Bool("stopped", cancelled).
		Str("elapsed", time.Since(startTime).Round(time.Millisecond).String()).
		Msg("Check run finished.")

	m.mu.Lock()
	m.cancel()
	m.state = StateIdle
	m.cancel = nil
	m.mu.Unlock()
}

// check 探测单个地址并记录结果。被 Stop 中断的探测不计入结果。
func (m *Manager) check(ctx context.Context, protocol model.Protocol, addr model.Address, sink *storage.ResultSink) {
	if m.prober.Probe(ctx, protocol, addr) {
		m.counters.RecordSuccess()
		if err := sink.Enqueue(addr); err != nil {
			logger.Warn().Err(err).Str("address", addr.String()).Msg("Good proxy could not be queued for writing.")
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	m.counters.RecordFailure()
}

// Stop 取消当前运行中的所有探测并等待运行结束。空闲时为空操作。
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	l := logger.WithComponent("Checker/Manager")
	l.Info().Msg("Stop requested, cancelling in-flight probes.")
	cancel()
	<-done
}

// Wait blocks until the current run, if any, has finished.
func (m *Manager) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RunID returns the id of the current or most recent run, empty before the first run.
func (m *Manager) RunID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runID
}

// Snapshot returns the current counter values.
func (m *Manager) Snapshot() stats.Snapshot {
	return m.counters.Snapshot()
}

// Status 返回当前状态与计数器。
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		State:    m.state.String(),
		RunID:    m.runID,
		Total:    m.total,
		Snapshot: m.counters.Snapshot(),
	}
	if m.runID != "" {
		st.Protocol = m.protocol.String()
	}
	return st
}

// Report 每隔 interval 采样一次计数器并交给 display。
// 每次运行结束后都会补发一次最终值, 即使该运行在两次采样之间就已开始并结束。
// 在 ctx 结束前一直阻塞。
func (m *Manager) Report(ctx context.Context, interval time.Duration, display Display) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 已发送过最终值的运行。
	finalized := ""
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			state, runID := m.state, m.runID
			m.mu.Unlock()

			switch {
			case state == StateRunning:
				display.Update(m.Snapshot())
			case runID != "" && runID != finalized:
				display.Update(m.Snapshot())
				finalized = runID
			}
		}
	}
}
