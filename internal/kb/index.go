package kb

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const indexFileName = "session_index.json"

// IndexEntry is the ledger record for one stored session.
type IndexEntry struct {
	Summary                string    `json:"summary"`
	CreatedAt              time.Time `json:"created_at"`
	IndexedAt              time.Time `json:"indexed_at"`
	MessageCount           int       `json:"message_count"`
	SessionDurationMinutes int       `json:"session_duration_minutes"`
}

// OwnerLedger is the per-owner session index as persisted on disk.
type OwnerLedger struct {
	OwnerID       string                `json:"owner_id"`
	CreatedAt     time.Time             `json:"created_at"`
	Sessions      map[string]IndexEntry `json:"sessions"`
	LastUpdated   time.Time             `json:"last_updated"`
	TotalSessions int                   `json:"total_sessions"`
}

// Index persists one JSON ledger file per owner under a base directory.
// Merges are keyed by session ID, so rebuilding the same session updates its
// entry in place and never inflates TotalSessions.
type Index struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

// NewIndex creates an Index rooted at dir. The directory tree is created
// lazily on first merge.
func NewIndex(dir string) *Index {
	return &Index{dir: dir, now: time.Now}
}

// Merge inserts or updates the entry for sessionID in the owner's ledger and
// refreshes the aggregate counters.
func (ix *Index) Merge(ownerID, sessionID string, entry IndexEntry) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ledger, err := ix.load(ownerID)
	if err != nil {
		return err
	}

	ledger.Sessions[sessionID] = entry
	ledger.LastUpdated = ix.now().UTC()
	ledger.TotalSessions = len(ledger.Sessions)

	return ix.write(ownerID, ledger)
}

// Replace overwrites the owner's ledger with the given entries. Used by the
// reconciliation job when rebuilding the index from the vector store.
func (ix *Index) Replace(ownerID string, entries map[string]IndexEntry) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ledger, err := ix.load(ownerID)
	if err != nil {
		return err
	}

	ledger.Sessions = entries
	ledger.LastUpdated = ix.now().UTC()
	ledger.TotalSessions = len(entries)

	return ix.write(ownerID, ledger)
}

// Stats returns the owner's ledger. A missing ledger yields an empty one,
// not an error.
func (ix *Index) Stats(ownerID string) (OwnerLedger, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ledger, err := ix.load(ownerID)
	if err != nil {
		return OwnerLedger{}, err
	}
	return *ledger, nil
}

// load reads the owner's ledger, or returns a fresh one if none exists.
func (ix *Index) load(ownerID string) (*OwnerLedger, error) {
	raw, err := os.ReadFile(ix.path(ownerID))
	if errors.Is(err, fs.ErrNotExist) {
		return &OwnerLedger{
			OwnerID:   ownerID,
			CreatedAt: ix.now().UTC(),
			Sessions:  make(map[string]IndexEntry),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kb: read index for owner %s: %w", ownerID, err)
	}

	var ledger OwnerLedger
	if err := json.Unmarshal(raw, &ledger); err != nil {
		return nil, fmt.Errorf("kb: parse index for owner %s: %w", ownerID, err)
	}
	if ledger.Sessions == nil {
		ledger.Sessions = make(map[string]IndexEntry)
	}
	return &ledger, nil
}

// write persists the ledger via temp-file rename so a crash mid-write never
// corrupts the previous ledger.
func (ix *Index) write(ownerID string, ledger *OwnerLedger) error {
	path := ix.path(ownerID)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("kb: create index directory: %w", err)
	}

	raw, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return fmt.Errorf("kb: encode index for owner %s: %w", ownerID, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("kb: write index for owner %s: %w", ownerID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("kb: replace index for owner %s: %w", ownerID, err)
	}
	return nil
}

func (ix *Index) path(ownerID string) string {
	return filepath.Join(ix.dir, "owner_"+ownerID, indexFileName)
}
