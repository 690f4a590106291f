package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/gnavi-ai/kbkeeper/internal/kb"
	"github.com/gnavi-ai/kbkeeper/internal/metrics"
	"github.com/gnavi-ai/kbkeeper/pkg/message"
)

// DefaultTimeout is the idle duration after which a session is considered
// expired.
const DefaultTimeout = 30 * time.Minute

// CloseStatus classifies the outcome of a close request.
type CloseStatus string

// Close outcomes.
const (
	CloseStatusClosed   CloseStatus = "closed"
	CloseStatusNotFound CloseStatus = "not_found"
)

// CloseResult is the structured outcome of closing one session. Close never
// returns an error: downstream failures surface here as flags.
type CloseResult struct {
	Status          CloseStatus `json:"status"`
	SessionID       string      `json:"session_id"`
	OwnerID         string      `json:"owner_id,omitempty"`
	OwnerName       string      `json:"owner_name,omitempty"`
	DurationMinutes int         `json:"duration_minutes"`
	MessageCount    int         `json:"message_count"`
	KBBuilt         bool        `json:"kb_built"`
	ClosedAt        time.Time   `json:"closed_at"`
}

// Manager owns lifecycle operations against the registry and hands
// terminated sessions to the knowledge-base builder.
type Manager struct {
	registry Registry
	builder  KnowledgeBuilder
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager creates a Manager. A non-positive timeout falls back to
// DefaultTimeout; a nil builder disables KB construction (closes still work).
func NewManager(registry Registry, builder KnowledgeBuilder, timeout time.Duration, logger *slog.Logger) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry: registry,
		builder:  builder,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Open creates and registers a new session.
func (m *Manager) Open(ownerID, ownerName string, handle any) *Session {
	sess := m.registry.Create(ownerID, ownerName, handle)
	metrics.ActiveSessions.Set(float64(m.registry.Len()))

	m.logger.Info("session: created",
		"session_id", sess.ID,
		"owner_id", ownerID,
		"owner_name", ownerName,
	)
	return sess
}

// Touch extends a session's activity window. Unknown IDs are a no-op.
func (m *Manager) Touch(id string) bool {
	return m.registry.Touch(id)
}

// Get returns a copy of the session, or nil.
func (m *Manager) Get(id string) *Session {
	return m.registry.Get(id)
}

// Timeout returns the configured idle timeout.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// ActiveCount returns the number of sessions in the registry.
func (m *Manager) ActiveCount() int {
	return m.registry.Len()
}

// Expired returns a snapshot of sessions idle longer than the timeout.
func (m *Manager) Expired() []*Session {
	now := m.now()
	var out []*Session
	for _, sess := range m.registry.Snapshot() {
		if sess.IdleFor(now) > m.timeout {
			out = append(out, sess)
		}
	}
	return out
}

// Close terminates one session: claim it from the registry, fetch its
// history, attempt exactly one KB build, and report a structured result.
//
// The registry claim is atomic, so racing closers (manual plus scheduled)
// resolve to exactly one build; the loser observes not_found. Removal
// happens before the build on purpose: a storage outage must never leave a
// terminated session resident in memory.
func (m *Manager) Close(ctx context.Context, id string, fetcher MessageFetcher) CloseResult {
	now := m.now()

	sess := m.registry.Remove(id)
	if sess == nil {
		return CloseResult{Status: CloseStatusNotFound, SessionID: id, ClosedAt: now}
	}
	sess.Status = StatusClosed
	metrics.ActiveSessions.Set(float64(m.registry.Len()))

	duration := int(now.Sub(sess.CreatedAt).Minutes())

	var msgs []message.Message
	if fetcher != nil {
		var err error
		msgs, err = fetcher.Fetch(ctx, id)
		if err != nil {
			m.logger.Error("session: history fetch failed, closing without KB build",
				"session_id", id,
				"owner_id", sess.OwnerID,
				"error", err,
			)
			msgs = nil
		}
	}

	built := false
	if m.builder != nil {
		built = m.builder.Build(ctx, kb.BuildRequest{
			OwnerID:         sess.OwnerID,
			OwnerName:       sess.OwnerName,
			SessionID:       sess.ID,
			Messages:        msgs,
			CreatedAt:       sess.CreatedAt,
			DurationMinutes: duration,
		})
	}

	metrics.SessionsClosed.WithLabelValues(string(CloseStatusClosed)).Inc()
	m.logger.Info("session: closed",
		"session_id", id,
		"owner_id", sess.OwnerID,
		"duration_minutes", duration,
		"messages", len(msgs),
		"kb_built", built,
	)

	return CloseResult{
		Status:          CloseStatusClosed,
		SessionID:       id,
		OwnerID:         sess.OwnerID,
		OwnerName:       sess.OwnerName,
		DurationMinutes: duration,
		MessageCount:    len(msgs),
		KBBuilt:         built,
		ClosedAt:        now,
	}
}

// CloseAll closes every session in the registry. A failure on one session
// never aborts the rest; sessions lost to a concurrent closer are skipped.
func (m *Manager) CloseAll(ctx context.Context, fetcher MessageFetcher) []CloseResult {
	return m.closeBatch(ctx, m.registry.Snapshot(), fetcher)
}

// CloseByOwner closes every session belonging to ownerID.
func (m *Manager) CloseByOwner(ctx context.Context, ownerID string, fetcher MessageFetcher) []CloseResult {
	return m.closeBatch(ctx, m.registry.SnapshotByOwner(ownerID), fetcher)
}

func (m *Manager) closeBatch(ctx context.Context, sessions []*Session, fetcher MessageFetcher) []CloseResult {
	var results []CloseResult
	for _, sess := range sessions {
		res := m.Close(ctx, sess.ID, fetcher)
		if res.Status == CloseStatusNotFound {
			// Lost a race with another closer; nothing left to report.
			continue
		}
		results = append(results, res)
	}
	return results
}
