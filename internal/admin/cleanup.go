package admin

import (
	"encoding/json"
	"net/http"
	"time"
)

// handleCleanupTrigger synchronously runs one cleanup pass.
func (s *Server) handleCleanupTrigger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.cleaner.ManualCleanup(r.Context()))
	}
}

// handleCleanupStatus reports the scheduler's state.
func (s *Server) handleCleanupStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.cleaner.Status())
	}
}

// handleCleanupStart launches the background loop. Already running is not
// an error.
func (s *Server) handleCleanupStart() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.cleaner.Start()
		writeJSON(w, http.StatusOK, s.cleaner.Status())
	}
}

// handleCleanupStop halts the background loop. Already stopped is not an
// error.
func (s *Server) handleCleanupStop() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.cleaner.Stop()
		writeJSON(w, http.StatusOK, s.cleaner.Status())
	}
}

// intervalRequest is the PUT /api/cleanup/interval body.
type intervalRequest struct {
	Seconds int `json:"seconds"`
}

// handleCleanupInterval updates the sweep interval. The applied value is
// returned because out-of-range requests are clamped, not rejected.
func (s *Server) handleCleanupInterval() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req intervalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Seconds <= 0 {
			writeError(w, http.StatusBadRequest, "seconds must be positive")
			return
		}

		applied := s.cleaner.SetInterval(time.Duration(req.Seconds) * time.Second)
		writeJSON(w, http.StatusOK, map[string]any{
			"interval_seconds": int(applied.Seconds()),
		})
	}
}
