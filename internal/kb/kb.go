// Package kb turns a terminated session's conversation into durable,
// owner-isolated, searchable storage: summarize, chunk, persist, index.
// The vector store is the source of truth; the JSON session index is a
// best-effort discovery ledger on top of it.
package kb

import (
	"context"
	"time"

	"github.com/gnavi-ai/kbkeeper/pkg/message"
)

// BuildRequest carries everything needed to build one session's knowledge base.
type BuildRequest struct {
	OwnerID         string
	OwnerName       string
	SessionID       string
	Messages        []message.Message
	CreatedAt       time.Time
	DurationMinutes int
}

// ChunkMetadata is attached to every chunk written to the vector store.
// It is the authoritative record: the session index can be rebuilt from it.
type ChunkMetadata struct {
	SessionID              string    `json:"session_id"`
	OwnerID                string    `json:"owner_id"`
	OwnerName              string    `json:"owner_name"`
	ChunkIndex             int       `json:"chunk_index"`
	Preview                string    `json:"preview"`
	Summary                string    `json:"summary"`
	MessageCount           int       `json:"message_count"`
	SessionDurationMinutes int       `json:"session_duration_minutes"`
	CreatedAt              time.Time `json:"created_at"`
	IndexedAt              time.Time `json:"indexed_at"`
}

// SearchResult is one chunk returned from a vector store query.
type SearchResult struct {
	Content  string
	Metadata ChunkMetadata
}

// VectorStore is the embedding and persistence capability, partitioned
// strictly per owner. Implementations must be append-only: adding chunks for
// one session never overwrites or removes chunks from another, and re-adding
// an existing chunk ID is a no-op rather than a duplicate.
type VectorStore interface {
	// Add appends chunks to the owner's collection. texts, metas, and ids
	// must have equal length.
	Add(ctx context.Context, ownerID string, texts []string, metas []ChunkMetadata, ids []string) error

	// Search returns up to k chunks from the owner's collection matching the
	// query, best match first. Only ownerID's chunks are ever returned.
	Search(ctx context.Context, ownerID, query string, k int) ([]SearchResult, error)
}

// Reconciler is the optional read-back surface used by the index rebuild
// job. Stores that cannot enumerate their contents may omit it.
type Reconciler interface {
	// Owners lists every owner with at least one stored chunk.
	Owners(ctx context.Context) ([]string, error)

	// Sessions returns one ChunkMetadata per stored session for the owner
	// (the chunk_index 0 record).
	Sessions(ctx context.Context, ownerID string) ([]ChunkMetadata, error)
}

// Summarizer produces the discovery summary attached to stored chunks.
// It must be deterministic and offline: it runs on the teardown path.
type Summarizer interface {
	Summarize(msgs []message.Message, ownerName string) string
}
