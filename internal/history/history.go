// Package history stores per-session conversation logs on behalf of the
// surrounding chat engine and serves them to the lifecycle manager at close
// time. It is the in-process implementation of the message-source
// collaborator; a remote chat engine can replace it behind the same fetch
// surface.
package history

import (
	"context"
	"sync"

	"github.com/gnavi-ai/kbkeeper/pkg/message"
)

// Store manages session conversation history.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append adds a message to the session's history.
	Append(sessionID string, msg message.Message) error

	// Fetch returns a copy of all messages for a session, in order.
	// An unknown session yields nil, not an error.
	Fetch(ctx context.Context, sessionID string) ([]message.Message, error)

	// Purge removes all history for a session.
	Purge(sessionID string) error

	// Len returns the number of messages stored for a session.
	Len(sessionID string) (int, error)
}

// InMemoryStore is a thread-safe, in-memory Store. MaxMessages bounds each
// session's log: when exceeded, the oldest user/assistant pair is dropped.
type InMemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string][]message.Message
	maxMessages int
}

// NewInMemoryStore creates an empty store. maxMessages <= 0 means unbounded.
func NewInMemoryStore(maxMessages int) *InMemoryStore {
	return &InMemoryStore{
		sessions:    make(map[string][]message.Message),
		maxMessages: maxMessages,
	}
}

// Compile-time interface check.
var _ Store = (*InMemoryStore)(nil)

// Append adds a message to the session's history.
func (s *InMemoryStore) Append(sessionID string, msg message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append(s.sessions[sessionID], msg)
	if s.maxMessages > 0 && len(msgs) > s.maxMessages {
		// Drop the oldest exchange pair to keep the log bounded.
		msgs = msgs[2:]
	}
	s.sessions[sessionID] = msgs
	return nil
}

// Fetch returns a copy of all messages for a session, in order.
func (s *InMemoryStore) Fetch(_ context.Context, sessionID string) ([]message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}

	out := make([]message.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Purge removes all history for a session.
func (s *InMemoryStore) Purge(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Len returns the number of messages stored for a session.
func (s *InMemoryStore) Len(sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID]), nil
}
