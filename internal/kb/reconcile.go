package kb

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoReconciler indicates the configured vector store cannot enumerate its
// contents, so ledgers cannot be rebuilt from it.
var ErrNoReconciler = errors.New("kb: vector store cannot enumerate its contents")

// RebuildIndexes rebuilds every owner's session ledger from the chunk
// metadata stored alongside the vectors. This repairs ledgers that fell
// behind after a partial index failure; the vector store is authoritative.
// Returns the number of owners whose ledger was rewritten.
func (b *Builder) RebuildIndexes(ctx context.Context) (int, error) {
	rec, ok := b.store.(Reconciler)
	if !ok {
		return 0, ErrNoReconciler
	}

	owners, err := rec.Owners(ctx)
	if err != nil {
		return 0, fmt.Errorf("kb: list owners: %w", err)
	}

	rebuilt := 0
	for _, owner := range owners {
		if ctx.Err() != nil {
			return rebuilt, ctx.Err()
		}

		sessions, err := rec.Sessions(ctx, owner)
		if err != nil {
			b.logger.Warn("kb: reconcile: listing sessions failed",
				"owner_id", owner,
				"error", err,
			)
			continue
		}

		entries := make(map[string]IndexEntry, len(sessions))
		for _, meta := range sessions {
			entries[meta.SessionID] = IndexEntry{
				Summary:                meta.Summary,
				CreatedAt:              meta.CreatedAt,
				IndexedAt:              meta.IndexedAt,
				MessageCount:           meta.MessageCount,
				SessionDurationMinutes: meta.SessionDurationMinutes,
			}
		}

		if err := b.index.Replace(owner, entries); err != nil {
			b.logger.Warn("kb: reconcile: ledger rewrite failed",
				"owner_id", owner,
				"error", err,
			)
			continue
		}
		rebuilt++
	}

	return rebuilt, nil
}
