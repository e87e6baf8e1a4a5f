package cron

import (
	"context"
	"fmt"

	"github.com/talentkonnect/raffle-backend/internal/reconcile"
	"github.com/talentkonnect/raffle-backend/pkg/logger"
)

const reconcileJobName = "stripe-reconcile"

type recentReconciler interface {
	ReconcileRecent(ctx context.Context, hours int) (reconcile.Summary, error)
}

// ReconcileJobParams configure the periodic Stripe sweep.
type ReconcileJobParams struct {
	Logger     *logger.Logger
	Reconciler recentReconciler
	Hours      int
}

type reconcileJob struct {
	logg       *logger.Logger
	reconciler recentReconciler
	hours      int
}

// NewReconcileJob builds the job that re-credits missed checkout events.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	return &reconcileJob{
		logg:       params.Logger,
		reconciler: params.Reconciler,
		hours:      reconcile.ClampHours(params.Hours, reconcile.DefaultHours),
	}, nil
}

func (j *reconcileJob) Name() string { return reconcileJobName }

func (j *reconcileJob) Run(ctx context.Context) error {
	summary, err := j.reconciler.ReconcileRecent(ctx, j.hours)
	ctx = j.logg.WithFields(ctx, map[string]any{
		"hours":     summary.Hours,
		"pages":     summary.Pages,
		"processed": summary.ProcessedCount,
		"applied":   summary.AppliedCount,
		"duplicate": summary.DuplicateCount,
		"rejected":  summary.RejectedCount,
	})
	if err != nil {
		return fmt.Errorf("reconcile recent: %w", err)
	}
	if summary.AppliedCount > 0 {
		j.logg.Warn(ctx, "reconcile credited missed payments")
		return nil
	}
	j.logg.Info(ctx, "reconcile sweep clean")
	return nil
}
