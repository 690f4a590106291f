// Package cleanup drives expiry detection: a background loop and an
// on-demand trigger that close every session the lifecycle manager judges
// expired. Correctness under concurrent triggers relies on close being
// idempotent, not on mutual exclusion between the triggers.
package cleanup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gnavi-ai/kbkeeper/internal/metrics"
	"github.com/gnavi-ai/kbkeeper/internal/session"
)

// Interval bounds. SetInterval clamps into [MinInterval, MaxInterval].
const (
	DefaultInterval = 5 * time.Minute
	MinInterval     = 30 * time.Second
	MaxInterval     = time.Hour

	// errorBackoff is the pause after a tick fails unexpectedly.
	errorBackoff = time.Minute

	// defaultQuietEvery logs one idle pass out of this many: at the 5-minute
	// default interval that is one log line per hour.
	defaultQuietEvery = 12
)

// Report is the outcome of one cleanup pass.
type Report struct {
	Cleaned   int                   `json:"cleaned"`
	Remaining int                   `json:"remaining"`
	Sessions  []session.CloseResult `json:"sessions,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// Status describes the scheduler for operators.
type Status struct {
	Running         bool `json:"running"`
	IntervalSeconds int  `json:"interval_seconds"`
	TimeoutMinutes  int  `json:"timeout_minutes"`
	Ticks           int  `json:"ticks"`
	TotalCleaned    int  `json:"total_cleaned"`
	ActiveSessions  int  `json:"active_sessions"`
}

// Config holds scheduler settings.
type Config struct {
	Interval   time.Duration // default 5m, clamped
	QuietEvery int           // default 12
}

// Scheduler owns the periodic expiry scan. The background loop and
// ManualCleanup may run concurrently; the registry claim inside close
// guarantees each expired session is built exactly once.
type Scheduler struct {
	manager *session.Manager
	fetcher session.MessageFetcher
	logger  *slog.Logger
	now     func() time.Time

	mu           sync.Mutex
	interval     time.Duration
	quietEvery   int
	cancel       context.CancelFunc
	done         chan struct{}
	ticks        int
	idleTicks    int
	totalCleaned int
}

// New creates a stopped Scheduler.
func New(manager *session.Manager, fetcher session.MessageFetcher, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QuietEvery <= 0 {
		cfg.QuietEvery = defaultQuietEvery
	}
	return &Scheduler{
		manager:    manager,
		fetcher:    fetcher,
		logger:     logger,
		now:        time.Now,
		interval:   clampInterval(cfg.Interval),
		quietEvery: cfg.QuietEvery,
	}
}

// Start launches the background loop. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go s.run(ctx, done)

	s.logger.Info("cleanup: auto cleanup started", "interval", s.interval)
}

// Stop cancels the pending wait and blocks until the loop exits. A pass in
// progress runs to completion; only the next scheduled tick is cancelled.
// Calling Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("cleanup: auto cleanup stopped")
}

// Running reports whether the background loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// SetInterval updates the tick interval, clamped to the sane bounds, and
// returns the applied value. Takes effect from the next wait.
func (s *Scheduler) SetInterval(d time.Duration) time.Duration {
	d = clampInterval(d)
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()

	s.logger.Info("cleanup: interval updated", "interval", d)
	return d
}

// ManualCleanup synchronously performs one cleanup pass. Safe to call while
// the background loop is running.
func (s *Scheduler) ManualCleanup(ctx context.Context) Report {
	return s.pass(ctx)
}

// Status returns the scheduler's operator-facing state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		Running:         s.cancel != nil,
		IntervalSeconds: int(s.interval.Seconds()),
		TimeoutMinutes:  int(s.manager.Timeout().Minutes()),
		Ticks:           s.ticks,
		TotalCleaned:    s.totalCleaned,
		ActiveSessions:  s.manager.ActiveCount(),
	}
}

// run is the background loop. One bad tick backs off and continues; it
// never kills the loop.
func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		timer := time.NewTimer(s.currentInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if !s.safePass(ctx) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorBackoff):
			}
		}
	}
}

// safePass runs one pass, converting a panic into a logged failure. Returns
// false when the pass blew up and the loop should back off.
func (s *Scheduler) safePass(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("cleanup: tick failed, backing off",
				"panic", r,
				"backoff", errorBackoff,
			)
			metrics.CleanupTickFailures.Inc()
			ok = false
		}
	}()

	s.pass(ctx)
	return true
}

// pass snapshots expired sessions and closes each. Closes run on a context
// detached from the loop's cancellation so stopping the scheduler never
// tears down an in-flight build; cancellation is honored between sessions.
func (s *Scheduler) pass(ctx context.Context) Report {
	report := Report{Timestamp: s.now()}
	closeCtx := context.WithoutCancel(ctx)

	for _, sess := range s.manager.Expired() {
		if ctx.Err() != nil {
			break
		}

		idle := sess.IdleFor(report.Timestamp)
		res := s.manager.Close(closeCtx, sess.ID, s.fetcher)
		if res.Status == session.CloseStatusNotFound {
			// Someone else closed it between snapshot and claim.
			continue
		}

		report.Cleaned++
		report.Sessions = append(report.Sessions, res)
		s.logger.Info("cleanup: expired session closed",
			"session_id", res.SessionID,
			"owner_id", res.OwnerID,
			"inactive_minutes", int(idle.Minutes()),
			"messages", res.MessageCount,
			"kb_built", res.KBBuilt,
		)
	}

	report.Remaining = s.manager.ActiveCount()
	metrics.CleanupTicks.Inc()

	s.mu.Lock()
	s.ticks++
	s.totalCleaned += report.Cleaned
	quiet := false
	if report.Cleaned == 0 {
		s.idleTicks++
		quiet = s.idleTicks%s.quietEvery != 0
	} else {
		s.idleTicks = 0
	}
	s.mu.Unlock()

	if quiet {
		s.logger.Debug("cleanup: nothing to clean", "remaining", report.Remaining)
	} else {
		s.logger.Info("cleanup: pass completed",
			"cleaned", report.Cleaned,
			"remaining", report.Remaining,
		)
	}
	return report
}

func (s *Scheduler) currentInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func clampInterval(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultInterval
	case d < MinInterval:
		return MinInterval
	case d > MaxInterval:
		return MaxInterval
	default:
		return d
	}
}
