// Package admin provides the HTTP surface for operating kbkeeper: session
// lifecycle calls, cleanup controls, knowledge-base queries, health, and
// Prometheus metrics. It binds to loopback by default.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gnavi-ai/kbkeeper/internal/cleanup"
	"github.com/gnavi-ai/kbkeeper/internal/history"
	"github.com/gnavi-ai/kbkeeper/internal/kb"
	"github.com/gnavi-ai/kbkeeper/internal/session"
)

const shutdownTimeout = 10 * time.Second

// Server is the admin HTTP server.
type Server struct {
	listen    string
	manager   *session.Manager
	history   history.Store
	builder   *kb.Builder
	cleaner   *cleanup.Scheduler
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a Server. All collaborators are required except the logger.
func New(listen string, manager *session.Manager, hist history.Store, builder *kb.Builder, cleaner *cleanup.Scheduler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		listen:  listen,
		manager: manager,
		history: hist,
		builder: builder,
		cleaner: cleaner,
		logger:  logger,
	}
}

// buildRouter constructs the chi mux with all routes wired.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public monitoring surface.
	r.Get("/health", s.handleHealth())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/sessions", s.handleListSessions())
		r.Post("/sessions", s.handleCreateSession())
		r.Post("/sessions/close_all", s.handleCloseAll())
		r.Get("/sessions/{id}", s.handleSessionHealth())
		r.Delete("/sessions/{id}", s.handleCloseSession())
		r.Get("/sessions/{id}/messages", s.handleListMessages())
		r.Post("/sessions/{id}/messages", s.handleAppendMessage())

		r.Post("/owners/{owner}/close", s.handleCloseByOwner())
		r.Get("/owners/{owner}/stats", s.handleOwnerStats())
		r.Get("/owners/{owner}/search", s.handleOwnerSearch())

		r.Post("/cleanup", s.handleCleanupTrigger())
		r.Get("/cleanup/status", s.handleCleanupStatus())
		r.Post("/cleanup/start", s.handleCleanupStart())
		r.Post("/cleanup/stop", s.handleCleanupStop())
		r.Put("/cleanup/interval", s.handleCleanupInterval())
	})

	return r
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	s.startedAt = time.Now()

	s.server = &http.Server{
		Addr:         s.listen,
		Handler:      s.buildRouter(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", s.listen)
	if err != nil {
		return errors.New("admin: listen failed: " + err.Error())
	}

	go func() {
		s.logger.Info("admin: listening", "addr", s.listen)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin: serve error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	s.logger.Info("admin: shutting down")
	return s.server.Shutdown(shutdownCtx)
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError reports a failure as a JSON error body.
func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
