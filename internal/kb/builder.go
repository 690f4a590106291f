package kb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gnavi-ai/kbkeeper/internal/metrics"
	"github.com/gnavi-ai/kbkeeper/pkg/message"
)

const previewRunes = 100

// Builder orchestrates the build pipeline for one terminated session:
// summarize, chunk, persist, index.
type Builder struct {
	store      VectorStore
	summarizer Summarizer
	index      *Index
	chunker    Chunker
	logger     *slog.Logger
	now        func() time.Time
}

// NewBuilder creates a Builder. A zero-valued chunker falls back to the
// package defaults.
func NewBuilder(store VectorStore, summarizer Summarizer, index *Index, chunker Chunker, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		store:      store,
		summarizer: summarizer,
		index:      index,
		chunker:    chunker,
		logger:     logger,
		now:        time.Now,
	}
}

// Build converts one session's messages into owner-isolated storage. It
// reports success as a bool and never returns an error: every failure is
// logged with owner and session context, and the caller removes the session
// regardless of the outcome.
func (b *Builder) Build(ctx context.Context, req BuildRequest) bool {
	if len(req.Messages) == 0 {
		b.logger.Debug("kb: empty session, build skipped",
			"owner_id", req.OwnerID,
			"session_id", req.SessionID,
		)
		metrics.KBBuilds.WithLabelValues("skipped").Inc()
		return false
	}

	summary := b.summarizer.Summarize(req.Messages, req.OwnerName)
	transcript := message.RenderTranscript(req.Messages)

	chunks := b.chunker.Split(transcript)
	if len(chunks) == 0 {
		b.logger.Debug("kb: transcript produced no chunks, build skipped",
			"owner_id", req.OwnerID,
			"session_id", req.SessionID,
		)
		metrics.KBBuilds.WithLabelValues("skipped").Inc()
		return false
	}

	now := b.now().UTC()
	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	metas := make([]ChunkMetadata, len(chunks))
	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		metas[i] = ChunkMetadata{
			SessionID:              req.SessionID,
			OwnerID:                req.OwnerID,
			OwnerName:              req.OwnerName,
			ChunkIndex:             i,
			Preview:                preview(chunk),
			Summary:                summary,
			MessageCount:           len(req.Messages),
			SessionDurationMinutes: req.DurationMinutes,
			CreatedAt:              createdAt,
			IndexedAt:              now,
		}
		ids[i] = fmt.Sprintf("%s_chunk_%d", req.SessionID, i)
	}

	if err := b.store.Add(ctx, req.OwnerID, chunks, metas, ids); err != nil {
		b.logger.Error("kb: vector store append failed",
			"owner_id", req.OwnerID,
			"session_id", req.SessionID,
			"chunks", len(chunks),
			"error", err,
		)
		metrics.KBBuilds.WithLabelValues("failed").Inc()
		return false
	}
	metrics.ChunksWritten.Add(float64(len(chunks)))

	entry := IndexEntry{
		Summary:                summary,
		CreatedAt:              createdAt,
		IndexedAt:              now,
		MessageCount:           len(req.Messages),
		SessionDurationMinutes: req.DurationMinutes,
	}
	if err := b.index.Merge(req.OwnerID, req.SessionID, entry); err != nil {
		// Chunks are already durable and the ledger is a best-effort
		// accelerator; the reconcile job rebuilds it from chunk metadata.
		b.logger.Warn("kb: index merge failed after chunks were written",
			"owner_id", req.OwnerID,
			"session_id", req.SessionID,
			"error", err,
		)
	}

	b.logger.Info("kb: session stored",
		"owner_id", req.OwnerID,
		"session_id", req.SessionID,
		"chunks", len(chunks),
		"summary", summary,
	)
	metrics.KBBuilds.WithLabelValues("built").Inc()
	return true
}

// Search queries the owner's stored sessions.
func (b *Builder) Search(ctx context.Context, ownerID, query string, k int) ([]SearchResult, error) {
	return b.store.Search(ctx, ownerID, query, k)
}

// Stats returns the owner's session ledger.
func (b *Builder) Stats(ownerID string) (OwnerLedger, error) {
	return b.index.Stats(ownerID)
}

func preview(chunk string) string {
	runes := []rune(chunk)
	if len(runes) <= previewRunes {
		return chunk
	}
	return string(runes[:previewRunes]) + "..."
}
