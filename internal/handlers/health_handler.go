package handlers

import (
	"net/http"
	"time"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Running   int    `json:"running"`
	Uptime    string `json:"uptime,omitempty"`
}

type HealthHandler struct {
	sup     Supervisor
	started time.Time
}

func NewHealthHandler(sup Supervisor) *HealthHandler {
	return &HealthHandler{sup: sup, started: time.Now()}
}

func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Running:   h.sup.RunningCount(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *HealthHandler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ready",
		Timestamp: time.Now().Format(time.RFC3339),
		Running:   h.sup.RunningCount(),
	})
}
