package handlers

import (
	"net/http"

	"github.com/mmamrila/aiquoting-sub001/internal/httpx"
	"github.com/mmamrila/aiquoting-sub001/internal/monitor"
)

// HealthHandler reports monitor state.
type HealthHandler struct {
	Monitor *monitor.Monitor
}

func NewHealthHandler(m *monitor.Monitor) *HealthHandler {
	return &HealthHandler{Monitor: m}
}

// Health: GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.Monitor.Snapshot())
}

// Ready: GET /ready, 503 until every readiness check passes.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	rd := h.Monitor.Readiness()
	status := http.StatusOK
	if !rd.Ready {
		status = http.StatusServiceUnavailable
	}
	httpx.JSON(w, status, rd)
}
