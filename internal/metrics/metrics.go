// Package metrics defines the Prometheus instruments shared across the core.
// All collectors register on the default registry and are served by the
// admin server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions is the number of sessions currently in the registry.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kbkeeper_active_sessions",
		Help: "Number of sessions currently tracked in the registry.",
	})

	// SessionsClosed counts terminated sessions by close status.
	SessionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kbkeeper_sessions_closed_total",
		Help: "Sessions removed from the registry, by close status.",
	}, []string{"status"})

	// KBBuilds counts knowledge-base build attempts by result.
	KBBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kbkeeper_kb_builds_total",
		Help: "Knowledge-base build attempts, by result.",
	}, []string{"result"})

	// ChunksWritten counts chunks appended to the vector store.
	ChunksWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kbkeeper_kb_chunks_written_total",
		Help: "Conversation chunks appended to the vector store.",
	})

	// CleanupTicks counts completed cleanup passes (scheduled and manual).
	CleanupTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kbkeeper_cleanup_ticks_total",
		Help: "Completed cleanup passes, scheduled and manual.",
	})

	// CleanupTickFailures counts cleanup passes aborted by an unexpected error.
	CleanupTickFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kbkeeper_cleanup_tick_failures_total",
		Help: "Cleanup passes that ended with an unexpected error.",
	})
)
