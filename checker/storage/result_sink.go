package storage

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"liuproxy_checker/checker/model"
	"liuproxy_checker/internal/shared/logger"
)

const defaultQueueSize = 1024

// ErrClosed is returned by Enqueue once the sink no longer accepts addresses.
var ErrClosed = errors.New("result sink is closed")

// Options 控制 ResultSink 的行为。
type Options struct {
	QueueSize int  // 写入队列的缓冲大小, <=0 使用默认值
	Sync      bool // 每写完一行后调用 fsync
}

// ResultSink 将许多并发探测得到的可用地址串行地追加到同一个输出文件。
// 只有一个 drain goroutine 写文件, 每一行都以一次完整的写入落盘。
type ResultSink struct {
	path   string
	file   *os.File
	opts   Options
	queue  chan model.Address
	done   chan struct{}
	logger zerolog.Logger

	mu      sync.RWMutex // 保护 closed 与 queue 的关闭
	closed  bool
	written atomic.Int64
	errMu   sync.Mutex
	err     error
}

// Open 以追加模式打开 (必要时创建) 输出文件并启动 drain goroutine。
// 文件无法打开时返回错误, 这对一次运行来说是致命的。
func Open(path string, opts Options) (*ResultSink, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file '%s': %w", path, err)
	}

	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	s := &ResultSink{
		path:   path,
		file:   file,
		opts:   opts,
		queue:  make(chan model.Address, queueSize),
		done:   make(chan struct{}),
		logger: logger.WithComponent("Checker/Storage").With().Str("path", path).Logger(),
	}
	go s.drain()

	s.logger.Debug().Int("queue_size", queueSize).Bool("fsync", opts.Sync).Msg("Result sink opened.")
	return s, nil
}

// Enqueue 将一个可用地址放入写入队列。队列满时阻塞等待 drain 消费。
func (s *ResultSink) Enqueue(addr model.Address) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.logger.Warn().Str("address", addr.String()).Msg("Dropping address enqueued after close.")
		return ErrClosed
	}
	s.queue <- addr
	return nil
}

// drain 是唯一的消费者, 按到达顺序逐条写入。
func (s *ResultSink) drain() {
	defer close(s.done)

	for addr := range s.queue {
		if err := s.writeLine(addr); err != nil {
			s.logger.Error().Err(err).Str("address", addr.String()).Msg("Failed to append address to output file.")
			s.setErr(err)
			continue
		}
		s.written.Add(1)
	}
}

func (s *ResultSink) writeLine(addr model.Address) error {
	if _, err := s.file.WriteString(addr.String() + "\n"); err != nil {
		return err
	}
	if s.opts.Sync {
		return s.file.Sync()
	}
	return nil
}

// Close 停止接收新地址, 写完队列中剩余的地址后关闭文件。
// 返回运行期间遇到的第一个写入错误或关闭错误。可重复调用。
func (s *ResultSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return s.firstErr()
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done

	if err := s.file.Close(); err != nil {
		s.setErr(err)
	}
	s.logger.Debug().Int64("written", s.written.Load()).Msg("Result sink closed.")
	return s.firstErr()
}

// Written returns how many lines have been appended so far.
func (s *ResultSink) Written() int64 {
	return s.written.Load()
}

// Path returns the output file path.
func (s *ResultSink) Path() string {
	return s.path
}

func (s *ResultSink) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *ResultSink) firstErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}
