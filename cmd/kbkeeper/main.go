// Package main is the entry point for the kbkeeper CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gnavi-ai/kbkeeper/internal/admin"
	"github.com/gnavi-ai/kbkeeper/internal/cleanup"
	"github.com/gnavi-ai/kbkeeper/internal/config"
	"github.com/gnavi-ai/kbkeeper/internal/cron"
	"github.com/gnavi-ai/kbkeeper/internal/history"
	"github.com/gnavi-ai/kbkeeper/internal/kb"
	"github.com/gnavi-ai/kbkeeper/internal/kb/sqlite"
	"github.com/gnavi-ai/kbkeeper/internal/session"
	"github.com/gnavi-ai/kbkeeper/internal/summary"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kbkeeper",
		Short:         "Session lifecycle manager with per-owner knowledge-base construction",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("kbkeeper %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the lifecycle manager and admin API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			if cfgPath == "" {
				resolved, err := resolveConfigPath()
				if err != nil {
					return err
				}
				cfgPath = resolved
			}

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			return run(cfg)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

// run wires the components and blocks until a shutdown signal arrives.
func run(cfg *config.Config) error {
	logger := buildLogger(cfg.Log)

	store, err := sqlite.Open(sqlite.Config{
		Path:        cfg.Storage.SQLiteFile(),
		BusyTimeout: cfg.Storage.BusyTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	index := kb.NewIndex(cfg.Storage.DataDir)
	summarizer := summary.New(nil, cfg.KB.MaxKeywords)
	builder := kb.NewBuilder(store, summarizer, index, kb.Chunker{
		Size:    cfg.KB.ChunkSize,
		Overlap: cfg.KB.ChunkOverlap,
	}, logger)

	registry := session.NewInMemoryRegistry()
	manager := session.NewManager(registry, builder, cfg.Session.Timeout, logger)
	hist := history.NewInMemoryStore(cfg.History.MaxMessages)

	cleaner := cleanup.New(manager, hist, cleanup.Config{
		Interval:   cfg.Session.CleanupInterval,
		QuietEvery: cfg.Session.QuietEvery,
	}, logger)
	if cfg.Session.AutoCleanup {
		cleaner.Start()
	}

	jobs := cron.NewScheduler(logger)
	if cfg.KB.Reconcile.Enabled {
		if err := jobs.RegisterJob(&cron.IndexReconcileJob{
			Rebuilder:    builder,
			Logger:       logger,
			ScheduleExpr: cfg.KB.Reconcile.Schedule,
		}); err != nil {
			return err
		}
	}
	if err := jobs.Start(); err != nil {
		return err
	}

	api := admin.New(cfg.Server.Listen, manager, hist, builder, cleaner, logger)
	if err := api.Start(); err != nil {
		return err
	}

	logger.Info("kbkeeper started",
		"listen", cfg.Server.Listen,
		"timeout", cfg.Session.Timeout,
		"auto_cleanup", cfg.Session.AutoCleanup,
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("kbkeeper shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting work first, then flush what remains: every live session
	// is closed through the normal pipeline so its knowledge base is built
	// before the process exits.
	_ = api.Stop(shutdownCtx)
	_ = jobs.Stop(shutdownCtx)
	cleaner.Stop()

	results := manager.CloseAll(shutdownCtx, hist)
	logger.Info("kbkeeper stopped", "flushed_sessions", len(results))
	return nil
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			fmt.Printf("Configuration OK\n")
			fmt.Printf("  listen:           %s\n", cfg.Server.Listen)
			fmt.Printf("  session timeout:  %s\n", cfg.Session.Timeout)
			fmt.Printf("  cleanup interval: %s\n", cfg.Session.CleanupInterval)
			fmt.Printf("  data dir:         %s\n", cfg.Storage.DataDir)
			return nil
		},
	})
	return cmd
}

// resolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/kbkeeper/kbkeeper.yaml → ./kbkeeper.yaml
func resolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "kbkeeper", "kbkeeper.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "kbkeeper", "kbkeeper.yaml"))
	}

	candidates = append(candidates, "kbkeeper.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

func buildLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
