// Package cron schedules periodic maintenance tasks, currently the
// session-index reconciliation job. The high-frequency expiry scan lives in
// the cleanup package; cron is for coarse-grained housekeeping with cron
// expressions.
package cron

import "context"

// Job defines a periodic maintenance task.
type Job interface {
	// Name returns a unique identifier for this job (used for logging and dedup).
	Name() string

	// Schedule returns a 5-field cron expression (e.g., "0 * * * *").
	Schedule() string

	// Run executes the job. Implementations should check ctx.Done() for
	// graceful cancellation.
	Run(ctx context.Context) error
}
