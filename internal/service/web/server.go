package web

import (
	"fmt"
	"net"
	"net/http"
	"sync"

	"liuproxy_checker/internal/shared/logger"
	"liuproxy_checker/internal/shared/types"
)

// basicAuthMiddleware 检查 web_user 和 web_password 是否已配置。
// 如果配置了，它将强制执行 HTTP Basic Authentication。
func basicAuthMiddleware(next http.Handler, user, pass string) http.Handler {
	if user == "" || pass == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Unauthorized.\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewMux 组装所有路由。控制类 API 受 Basic Auth 保护, 状态与 WebSocket 公开。
func NewMux(cfg *types.Config, controller CheckController, hub *Hub) *http.ServeMux {
	handler := NewHandler(controller)
	mux := http.NewServeMux()

	webUser := cfg.WebConf.WebUser
	webPassword := cfg.WebConf.WebPassword

	mux.Handle("/api/check/start", basicAuthMiddleware(http.HandlerFunc(handler.HandleStart), webUser, webPassword))
	mux.Handle("/api/check/stop", basicAuthMiddleware(http.HandlerFunc(handler.HandleStop), webUser, webPassword))

	mux.HandleFunc("/api/status", handler.HandleStatus)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	})
	return mux
}

// StartServer 在 web_port 上启动控制面。web_port <= 0 时不启动并返回 nil。
func StartServer(wg *sync.WaitGroup, cfg *types.Config, controller CheckController, hub *Hub) (*http.Server, error) {
	if cfg.WebConf.WebPort <= 0 {
		logger.Info().Msg("[WebServer] Web control plane is disabled (web_port is 0 or not set).")
		return nil, nil
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.WebConf.WebPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	server := &http.Server{Handler: NewMux(cfg, controller, hub)}
	logger.Info().Msgf("Web control plane is listening on http://%s", addr)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Web server error.")
		}
		logger.Info().Msg("Web server stopped.")
	}()
	return server, nil
}
