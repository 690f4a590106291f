package admin

import (
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	Sessions       int    `json:"sessions"`
	CleanupRunning bool   `json:"cleanup_running"`
	UptimeSeconds  int    `json:"uptime_seconds"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:         "ok",
			Sessions:       s.manager.ActiveCount(),
			CleanupRunning: s.cleaner.Running(),
			UptimeSeconds:  int(time.Since(s.startedAt).Seconds()),
		})
	}
}
