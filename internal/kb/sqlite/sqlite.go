// Package sqlite implements the kb.VectorStore capability backed by SQLite.
// It uses modernc.org/sqlite (pure Go, no CGO) with FTS5 full-text match as
// the similarity surface and WAL mode for concurrent reads. Chunk rows are
// insert-only; owner_id partitions collections.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gnavi-ai/kbkeeper/internal/kb"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const defaultBusyTimeout = 5000

// Config holds the SQLite vector store configuration.
type Config struct {
	// Path is the database file path.
	Path string `yaml:"path"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`
}

// Store is a SQLite-backed kb.VectorStore.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Compile-time interface guards.
var (
	_ kb.VectorStore = (*Store)(nil)
	_ kb.Reconciler  = (*Store)(nil)
)

// Open opens (creating if needed) the database at cfg.Path, applies WAL and
// busy-timeout pragmas, and migrates the schema. Call Close when done.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = defaultBusyTimeout
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}

	// SQLite serialises writes; a single connection avoids lock churn.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
