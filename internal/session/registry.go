package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Registry is the in-memory table of active sessions. Implementations must
// be safe for concurrent use. All returned sessions are point-in-time
// copies: callers never hold a reference into the live table, so concurrent
// mutation cannot corrupt iteration.
type Registry interface {
	// Create registers a new session with a fresh random ID.
	Create(ownerID, ownerName string, handle any) *Session

	// Get returns a copy of the session, or nil if the ID is unknown.
	Get(id string) *Session

	// Touch extends LastActiveAt. Returns false if the ID is unknown.
	Touch(id string) bool

	// IsExpired reports whether the session has been idle longer than
	// timeout. An unknown ID counts as expired.
	IsExpired(id string, timeout time.Duration) bool

	// Remove deletes the session and returns its final state, or nil if the
	// ID is unknown. Removing twice is a no-op, not an error.
	Remove(id string) *Session

	// Snapshot returns copies of all sessions.
	Snapshot() []*Session

	// SnapshotByOwner returns copies of the owner's sessions.
	SnapshotByOwner(ownerID string) []*Session

	// Len returns the number of active sessions.
	Len() int
}

// InMemoryRegistry is a concurrency-safe, map-backed Registry. The `now`
// function is injectable for deterministic testing.
type InMemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewInMemoryRegistry creates a ready-to-use registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Compile-time interface check.
var _ Registry = (*InMemoryRegistry)(nil)

// Create registers a new active session.
func (r *InMemoryRegistry) Create(ownerID, ownerName string, handle any) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := newSessionID()
	for _, taken := r.sessions[id]; taken; _, taken = r.sessions[id] {
		id = newSessionID()
	}

	now := r.now()
	sess := &Session{
		ID:           id,
		OwnerID:      ownerID,
		OwnerName:    ownerName,
		Status:       StatusActive,
		CreatedAt:    now,
		LastActiveAt: now,
		Handle:       handle,
	}
	r.sessions[id] = sess

	out := *sess
	return &out
}

// Get returns a copy of the session, or nil.
func (r *InMemoryRegistry) Get(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	if !ok {
		return nil
	}
	out := *sess
	return &out
}

// Touch updates LastActiveAt to the current time.
func (r *InMemoryRegistry) Touch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return false
	}
	sess.LastActiveAt = r.now()
	return true
}

// IsExpired reports whether the session has been idle longer than timeout.
func (r *InMemoryRegistry) IsExpired(id string, timeout time.Duration) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	if !ok {
		// A session that no longer exists cannot be active.
		return true
	}
	return r.now().Sub(sess.LastActiveAt) > timeout
}

// Remove deletes the session and returns its final state, or nil. The
// delete is atomic under the registry lock, which is what makes racing
// closers resolve to exactly one winner.
func (r *InMemoryRegistry) Remove(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return nil
	}
	delete(r.sessions, id)

	out := *sess
	return &out
}

// Snapshot returns copies of all sessions.
func (r *InMemoryRegistry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		cp := *sess
		out = append(out, &cp)
	}
	return out
}

// SnapshotByOwner returns copies of the owner's sessions.
func (r *InMemoryRegistry) SnapshotByOwner(ownerID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Session
	for _, sess := range r.sessions {
		if sess.OwnerID == ownerID {
			cp := *sess
			out = append(out, &cp)
		}
	}
	return out
}

// Len returns the number of active sessions.
func (r *InMemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// newSessionID produces a 32-character hex string from 16 random bytes.
func newSessionID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// Requires broken OS entropy; surface rather than panic.
		return fmt.Sprintf("err-%v", err)
	}
	return hex.EncodeToString(buf[:])
}
