package cron

import (
	"context"
	"fmt"
	"log/slog"
)

// IndexRebuilder is the subset of the KB builder needed by the reconcile
// job. Defined here to avoid a direct dependency on the kb package.
type IndexRebuilder interface {
	RebuildIndexes(ctx context.Context) (int, error)
}

// IndexReconcileJob periodically rebuilds every owner's session ledger from
// the vector store, repairing entries lost to partial index failures. The
// store's chunk metadata is authoritative; the ledger is derived.
type IndexReconcileJob struct {
	Rebuilder    IndexRebuilder
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 * * * *"
}

// Compile-time interface check.
var _ Job = (*IndexReconcileJob)(nil)

// Name implements Job.
func (j *IndexReconcileJob) Name() string {
	return "index_reconcile"
}

// Schedule implements Job.
func (j *IndexReconcileJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run rebuilds the per-owner ledgers.
func (j *IndexReconcileJob) Run(ctx context.Context) error {
	rebuilt, err := j.Rebuilder.RebuildIndexes(ctx)
	if err != nil {
		return fmt.Errorf("cron: index reconcile: %w", err)
	}
	if rebuilt > 0 {
		j.Logger.Info("cron: session indexes reconciled", "owners", rebuilt)
	}
	return nil
}
