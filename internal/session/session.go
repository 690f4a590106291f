// Package session tracks active conversational sessions and owns their
// lifecycle: create, touch, expiry detection, and close with knowledge-base
// handoff. The registry is the single logical owner of session mutation;
// everything else observes snapshots.
package session

import (
	"context"
	"time"

	"github.com/gnavi-ai/kbkeeper/internal/kb"
	"github.com/gnavi-ai/kbkeeper/pkg/message"
)

// Status is the lifecycle state of a session.
type Status string

// Session states. There is no persisted "removed" state: a removed session
// simply no longer exists in the registry.
const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Session is one owner-scoped conversation tracked in memory until it is
// closed explicitly or expires. IDs are random and never reused.
type Session struct {
	ID           string
	OwnerID      string
	OwnerName    string
	Status       Status
	CreatedAt    time.Time
	LastActiveAt time.Time

	// Handle is an opaque reference to the surrounding conversation engine
	// (graph, thread, whatever the embedder tracks). Never inspected here.
	Handle any
}

// IdleFor returns how long the session has been inactive as of now.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActiveAt)
}

// MessageFetcher retrieves a session's ordered message history. It is owned
// by the surrounding chat engine; the core only calls it at close time.
type MessageFetcher interface {
	Fetch(ctx context.Context, sessionID string) ([]message.Message, error)
}

// FetcherFunc adapts a function to the MessageFetcher interface.
type FetcherFunc func(ctx context.Context, sessionID string) ([]message.Message, error)

// Fetch implements MessageFetcher.
func (f FetcherFunc) Fetch(ctx context.Context, sessionID string) ([]message.Message, error) {
	return f(ctx, sessionID)
}

// KnowledgeBuilder is the subset of the KB builder the lifecycle needs at
// close time. Declared here so tests can substitute the whole pipeline.
type KnowledgeBuilder interface {
	Build(ctx context.Context, req kb.BuildRequest) bool
}
