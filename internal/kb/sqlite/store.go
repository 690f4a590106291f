package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gnavi-ai/kbkeeper/internal/kb"
)

// Add appends chunks to the owner's collection inside one transaction.
// Inserts use OR IGNORE: a replayed build never duplicates or overwrites
// previously written chunks.
func (s *Store) Add(ctx context.Context, ownerID string, texts []string, metas []kb.ChunkMetadata, ids []string) error {
	if len(texts) != len(metas) || len(texts) != len(ids) {
		return fmt.Errorf("sqlite: mismatched add lengths: %d texts, %d metas, %d ids",
			len(texts), len(metas), len(ids))
	}
	if len(texts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin add: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, text := range texts {
		metaJSON, err := json.Marshal(metas[i])
		if err != nil {
			return fmt.Errorf("sqlite: marshal chunk metadata: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO chunks (id, owner_id, session_id, chunk_index, content, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ids[i], ownerID, metas[i].SessionID, metas[i].ChunkIndex,
			text, string(metaJSON),
			metas[i].CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("sqlite: insert chunk %s: %w", ids[i], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit add: %w", err)
	}
	return nil
}

// Search retrieves up to k chunks from the owner's collection using FTS5
// full-text match, best rank first. Other owners' chunks are never returned.
func (s *Store) Search(ctx context.Context, ownerID, query string, k int) ([]kb.SearchResult, error) {
	match := ftsQuery(query)
	if match == "" || k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.content, c.metadata
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ? AND c.owner_id = ?
		ORDER BY chunks_fts.rank
		LIMIT ?`,
		match, ownerID, k,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanResults(rows)
}

// Owners lists every owner with at least one stored chunk.
func (s *Store) Owners(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT owner_id FROM chunks ORDER BY owner_id")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list owners: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("sqlite: scan owner: %w", err)
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

// Sessions returns the chunk_index 0 metadata record for each of the
// owner's stored sessions, which carries the session-level fields the
// ledger needs.
func (s *Store) Sessions(ctx context.Context, ownerID string) ([]kb.ChunkMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT metadata FROM chunks
		WHERE owner_id = ? AND chunk_index = 0
		ORDER BY session_id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var metas []kb.ChunkMetadata
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("sqlite: scan session metadata: %w", err)
		}

		var meta kb.ChunkMetadata
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return nil, fmt.Errorf("sqlite: parse session metadata: %w", err)
		}
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

func scanResults(rows *sql.Rows) ([]kb.SearchResult, error) {
	var results []kb.SearchResult
	for rows.Next() {
		var (
			content  string
			metaJSON string
		)
		if err := rows.Scan(&content, &metaJSON); err != nil {
			return nil, fmt.Errorf("sqlite: scan chunk: %w", err)
		}

		var meta kb.ChunkMetadata
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("sqlite: parse chunk metadata: %w", err)
		}

		results = append(results, kb.SearchResult{Content: content, Metadata: meta})
	}
	return results, rows.Err()
}

// ftsQuery converts free text into an FTS5 match expression: each term is
// quoted (so user punctuation cannot break the query syntax) and terms are
// OR-joined for recall.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}

	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ReplaceAll(t, `"`, "")
		if t == "" {
			continue
		}
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}
