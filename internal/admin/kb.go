package admin

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gnavi-ai/kbkeeper/internal/kb"
)

const defaultSearchLimit = 5

// handleOwnerStats returns the owner's session ledger. Unknown owners get
// an empty ledger, not an error.
func (s *Server) handleOwnerStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ledger, err := s.builder.Stats(chi.URLParam(r, "owner"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read ledger")
			return
		}
		writeJSON(w, http.StatusOK, ledger)
	}
}

// searchResponse wraps KB search hits.
type searchResponse struct {
	Query   string            `json:"query"`
	Results []kb.SearchResult `json:"results"`
}

// handleOwnerSearch queries the owner's knowledge base.
// GET /api/owners/{owner}/search?q=...&k=5
func (s *Server) handleOwnerSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			writeError(w, http.StatusBadRequest, "query parameter q is required")
			return
		}

		k := defaultSearchLimit
		if raw := r.URL.Query().Get("k"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "k must be a positive integer")
				return
			}
			k = n
		}

		results, err := s.builder.Search(r.Context(), chi.URLParam(r, "owner"), query, k)
		if err != nil {
			s.logger.Error("admin: kb search failed", "error", err)
			writeError(w, http.StatusInternalServerError, "search failed")
			return
		}
		if results == nil {
			results = []kb.SearchResult{}
		}
		writeJSON(w, http.StatusOK, searchResponse{Query: query, Results: results})
	}
}
