// Package config handles YAML configuration loading, environment variable
// expansion, defaulting, and structural validation for kbkeeper.
package config

import (
	"path/filepath"
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Server holds the admin HTTP listener settings.
	Server ServerConfig `yaml:"server"`

	// Log holds logging settings.
	Log LogConfig `yaml:"log"`

	// Session holds lifecycle settings.
	Session SessionConfig `yaml:"session"`

	// History holds conversation log settings.
	History HistoryConfig `yaml:"history"`

	// KB holds knowledge-base construction settings.
	KB KBConfig `yaml:"kb"`

	// Storage holds the vector store settings.
	Storage StorageConfig `yaml:"storage"`
}

// ServerConfig holds the admin HTTP listener settings.
type ServerConfig struct {
	// Listen is the address the admin API binds to.
	Listen string `yaml:"listen"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// SessionConfig holds session lifecycle settings.
type SessionConfig struct {
	// Timeout is the idle duration after which a session is expired.
	Timeout time.Duration `yaml:"timeout"`

	// CleanupInterval is the pause between cleanup sweeps.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// AutoCleanup starts the background cleanup scheduler on boot.
	AutoCleanup bool `yaml:"auto_cleanup"`

	// QuietEvery throttles idle-sweep logging to one in N ticks.
	// Zero keeps the built-in default.
	QuietEvery int `yaml:"quiet_every"`
}

// HistoryConfig holds conversation log settings.
type HistoryConfig struct {
	// MaxMessages bounds each session's log. Zero means unbounded.
	MaxMessages int `yaml:"max_messages"`
}

// KBConfig holds knowledge-base construction settings.
type KBConfig struct {
	// ChunkSize is the maximum chunk length in runes.
	ChunkSize int `yaml:"chunk_size"`

	// ChunkOverlap is the rune overlap between consecutive chunks.
	ChunkOverlap int `yaml:"chunk_overlap"`

	// MaxKeywords caps the keyword list attached to each summary.
	MaxKeywords int `yaml:"max_keywords"`

	// Reconcile controls the periodic ledger rebuild job.
	Reconcile ReconcileConfig `yaml:"reconcile"`
}

// ReconcileConfig controls the periodic ledger rebuild job.
type ReconcileConfig struct {
	// Enabled registers the job with the cron scheduler.
	Enabled bool `yaml:"enabled"`

	// Schedule is a 5-field cron expression. Empty uses the job default.
	Schedule string `yaml:"schedule,omitempty"`
}

// StorageConfig holds the vector store settings.
type StorageConfig struct {
	// DataDir is the root directory for ledgers and the database.
	DataDir string `yaml:"data_dir"`

	// SQLitePath overrides the database file path. Empty derives it
	// from DataDir.
	SQLitePath string `yaml:"sqlite_path,omitempty"`

	// BusyTimeout is the SQLite busy handler timeout in milliseconds.
	BusyTimeout int `yaml:"busy_timeout"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Version: "1",
		Server:  ServerConfig{Listen: "127.0.0.1:8170"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Session: SessionConfig{
			Timeout:         30 * time.Minute,
			CleanupInterval: 5 * time.Minute,
			AutoCleanup:     true,
		},
		History: HistoryConfig{MaxMessages: 100},
		KB: KBConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
			MaxKeywords:  5,
			Reconcile:    ReconcileConfig{Enabled: true},
		},
		Storage: StorageConfig{
			DataDir:     "./data",
			BusyTimeout: 5000,
		},
	}
}

// SQLiteFile returns the database path, deriving it from DataDir when no
// explicit override is set.
func (s StorageConfig) SQLiteFile() string {
	if s.SQLitePath != "" {
		return s.SQLitePath
	}
	return filepath.Join(s.DataDir, "kbkeeper.db")
}
