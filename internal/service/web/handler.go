package web

import (
	"encoding/json"
	"errors"
	"net/http"

	manager "liuproxy_checker/checker"
	"liuproxy_checker/internal/shared/logger"
)

// CheckController 是 Web 层驱动检查引擎所需的接口, 使 web 包不依赖 Manager 的实现细节。
type CheckController interface {
	Start(req manager.StartRequest) error
	Stop()
	Status() manager.Status
}

type Handler struct {
	controller CheckController
}

func NewHandler(controller CheckController) *Handler {
	return &Handler{controller: controller}
}

// HandleStart 处理 POST /api/check/start 请求
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req manager.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.controller.Start(req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, h.controller.Status())
	case errors.Is(err, manager.ErrInvalidStart):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, manager.ErrAlreadyRunning):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logger.Error().Err(err).Msg("Failed to start check run.")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleStop 处理 POST /api/check/stop 请求
func (h *Handler) HandleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.controller.Stop()
	writeJSON(w, http.StatusOK, h.controller.Status())
}

// HandleStatus 处理 GET /api/status 请求
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.controller.Status())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn().Err(err).Msg("Failed to encode JSON response.")
	}
}
