package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	manager "liuproxy_checker/checker"
	"liuproxy_checker/checker/stats"
	"liuproxy_checker/checker/validator"
	"liuproxy_checker/internal/service/web"
	"liuproxy_checker/internal/shared/logger"
	"liuproxy_checker/internal/shared/types"
)

// AppServer 把检查引擎、计数器推送和 Web 控制面组装在一起。
type AppServer struct {
	cfg     *types.Config
	manager *manager.Manager
	hub     *web.Hub

	displays  []manager.Display
	waitGroup sync.WaitGroup
}

// New creates an AppServer. Extra displays receive the same counter samples as the web hub.
func New(cfg *types.Config, displays ...manager.Display) *AppServer {
	proberValidator := validator.NewValidator(validator.Options{
		Target:  cfg.ProbeTarget,
		Timeout: cfg.ProbeTimeout(),
	})
	hub := web.NewHub()

	return &AppServer{
		cfg:      cfg,
		manager:  manager.NewManager(cfg, proberValidator),
		hub:      hub,
		displays: append([]manager.Display{hub}, displays...),
	}
}

// Manager exposes the check engine, mainly for tests.
func (s *AppServer) Manager() *manager.Manager {
	return s.manager
}

// Update 将一次采样分发给所有 display。
func (s *AppServer) Update(snapshot stats.Snapshot) {
	for _, d := range s.displays {
		d.Update(snapshot)
	}
}

// Run 启动后台组件并阻塞直到 ctx 结束。
// 若传入 start, 立即开始一次检查, 检查完成后 Run 返回 (无头模式, 不监听 web_port)。
func (s *AppServer) Run(ctx context.Context, start *manager.StartRequest) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.waitGroup.Add(2)
	go func() {
		defer s.waitGroup.Done()
		s.hub.Run(ctx)
	}()
	go func() {
		defer s.waitGroup.Done()
		s.manager.Report(ctx, s.cfg.ReportInterval(), s)
	}()

	// 无头模式不需要 Web 控制面。
	var server *http.Server
	if start == nil {
		var err error
		server, err = web.StartServer(&s.waitGroup, s.cfg, s.manager, s.hub)
		if err != nil {
			cancel()
			s.waitGroup.Wait()
			return err
		}
	}

	if start != nil {
		if err := s.manager.Start(*start); err != nil {
			s.shutdown(cancel, server)
			return err
		}
		s.waitForRun(ctx)
		// One more sample so displays show the final counters.
		s.Update(s.manager.Snapshot())
	} else {
		logger.Info().Msg("Waiting for start commands on the web control plane.")
		<-ctx.Done()
	}

	s.shutdown(cancel, server)
	return nil
}

// waitForRun 等待当前运行结束; ctx 先结束时停止运行。
func (s *AppServer) waitForRun(ctx context.Context) {
	finished := make(chan struct{})
	go func() {
		s.manager.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		s.manager.Stop()
		<-finished
	}
}

func (s *AppServer) shutdown(cancel context.CancelFunc, server *http.Server) {
	s.manager.Stop()
	cancel()

	if server != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			logger.Warn().Err(err).Msg("Web server shutdown returned an error.")
		}
	}
	s.waitGroup.Wait()
	logger.Info().Msg("Checker stopped.")
}
