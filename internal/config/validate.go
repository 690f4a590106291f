package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks the structural validity of a Config. It verifies the
// version field and every bound the runtime depends on, collecting all
// violations rather than stopping at the first.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if cfg.Server.Listen == "" {
		errs = append(errs, errors.New("config: server.listen is required"))
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: log.level %q is not one of debug, info, warn, error", cfg.Log.Level))
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: log.format %q is not one of text, json", cfg.Log.Format))
	}

	errs = append(errs, validateSession(cfg.Session)...)
	errs = append(errs, validateKB(cfg.KB)...)

	if cfg.History.MaxMessages < 0 {
		errs = append(errs, errors.New("config: history.max_messages must not be negative"))
	}
	if cfg.Storage.DataDir == "" {
		errs = append(errs, errors.New("config: storage.data_dir is required"))
	}
	if cfg.Storage.BusyTimeout < 0 {
		errs = append(errs, errors.New("config: storage.busy_timeout must not be negative"))
	}

	return errors.Join(errs...)
}

func validateSession(s SessionConfig) []error {
	var errs []error

	if s.Timeout <= 0 {
		errs = append(errs, errors.New("config: session.timeout must be positive"))
	}
	if s.CleanupInterval < 30*time.Second {
		errs = append(errs, fmt.Errorf("config: session.cleanup_interval %s is below the 30s minimum", s.CleanupInterval))
	}
	if s.CleanupInterval > time.Hour {
		errs = append(errs, fmt.Errorf("config: session.cleanup_interval %s is above the 1h maximum", s.CleanupInterval))
	}
	if s.QuietEvery < 0 {
		errs = append(errs, errors.New("config: session.quiet_every must not be negative"))
	}

	return errs
}

func validateKB(k KBConfig) []error {
	var errs []error

	if k.ChunkSize <= 0 {
		errs = append(errs, errors.New("config: kb.chunk_size must be positive"))
	}
	if k.ChunkOverlap < 0 {
		errs = append(errs, errors.New("config: kb.chunk_overlap must not be negative"))
	}
	if k.ChunkOverlap >= k.ChunkSize {
		errs = append(errs, fmt.Errorf("config: kb.chunk_overlap %d must be smaller than kb.chunk_size %d", k.ChunkOverlap, k.ChunkSize))
	}
	if k.MaxKeywords <= 0 {
		errs = append(errs, errors.New("config: kb.max_keywords must be positive"))
	}

	return errs
}
