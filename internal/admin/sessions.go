package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gnavi-ai/kbkeeper/internal/session"
	"github.com/gnavi-ai/kbkeeper/pkg/message"
)

// handleListSessions returns the registry overview, longest-idle first.
func (s *Server) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.manager.Overview())
	}
}

// createSessionRequest is the POST /api/sessions body.
type createSessionRequest struct {
	OwnerID   string `json:"owner_id"`
	OwnerName string `json:"owner_name"`
}

// createSessionResponse is the POST /api/sessions reply.
type createSessionResponse struct {
	SessionID string    `json:"session_id"`
	OwnerID   string    `json:"owner_id"`
	OwnerName string    `json:"owner_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// handleCreateSession registers a new session for an owner.
func (s *Server) handleCreateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.OwnerID == "" {
			writeError(w, http.StatusBadRequest, "owner_id is required")
			return
		}

		sess := s.manager.Open(req.OwnerID, req.OwnerName, nil)
		writeJSON(w, http.StatusCreated, createSessionResponse{
			SessionID: sess.ID,
			OwnerID:   sess.OwnerID,
			OwnerName: sess.OwnerName,
			CreatedAt: sess.CreatedAt,
		})
	}
}

// handleSessionHealth reports one session's age, inactivity, and expiry.
func (s *Server) handleSessionHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := s.manager.Health(chi.URLParam(r, "id"))
		code := http.StatusOK
		if health.Status == "not_found" {
			code = http.StatusNotFound
		}
		writeJSON(w, code, health)
	}
}

// handleCloseSession terminates one session, building its knowledge base.
func (s *Server) handleCloseSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		res := s.manager.Close(r.Context(), id, s.history)
		code := http.StatusOK
		if res.Status == session.CloseStatusNotFound {
			code = http.StatusNotFound
		}
		writeJSON(w, code, res)

		if res.Status == session.CloseStatusClosed {
			_ = s.history.Purge(id)
		}
	}
}

// closeBatchResponse wraps bulk close results.
type closeBatchResponse struct {
	Closed   int                   `json:"closed"`
	Sessions []session.CloseResult `json:"sessions"`
}

// handleCloseAll terminates every active session.
func (s *Server) handleCloseAll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := s.manager.CloseAll(r.Context(), s.history)
		s.purgeClosed(results)
		if results == nil {
			results = []session.CloseResult{}
		}
		writeJSON(w, http.StatusOK, closeBatchResponse{Closed: len(results), Sessions: results})
	}
}

// handleCloseByOwner terminates every session belonging to one owner.
func (s *Server) handleCloseByOwner() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := chi.URLParam(r, "owner")
		results := s.manager.CloseByOwner(r.Context(), owner, s.history)
		s.purgeClosed(results)
		if results == nil {
			results = []session.CloseResult{}
		}
		writeJSON(w, http.StatusOK, closeBatchResponse{Closed: len(results), Sessions: results})
	}
}

func (s *Server) purgeClosed(results []session.CloseResult) {
	for _, res := range results {
		if res.Status == session.CloseStatusClosed {
			_ = s.history.Purge(res.SessionID)
		}
	}
}

// appendMessageRequest is the POST /api/sessions/{id}/messages body.
type appendMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// handleAppendMessage records one message and refreshes the session's
// activity window.
func (s *Server) handleAppendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if s.manager.Get(id) == nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}

		var req appendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		role := message.Role(req.Role)
		switch role {
		case message.RoleUser, message.RoleAssistant, message.RoleSystem:
		default:
			writeError(w, http.StatusBadRequest, "role must be user, assistant, or system")
			return
		}
		if req.Content == "" {
			writeError(w, http.StatusBadRequest, "content is required")
			return
		}

		if err := s.history.Append(id, message.Message{
			Role:      role,
			Content:   req.Content,
			Timestamp: time.Now().UTC(),
		}); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to record message")
			return
		}
		s.manager.Touch(id)

		count, _ := s.history.Len(id)
		writeJSON(w, http.StatusAccepted, map[string]any{
			"session_id": id,
			"messages":   count,
		})
	}
}

// handleListMessages returns the session's recorded history.
func (s *Server) handleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if s.manager.Get(id) == nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}

		msgs, err := s.history.Fetch(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read history")
			return
		}
		if msgs == nil {
			msgs = []message.Message{}
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}
