package cron

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talentkonnect/raffle-backend/internal/reconcile"
	"github.com/talentkonnect/raffle-backend/pkg/logger"
)

type fakeReconciler struct {
	hours   []int
	summary reconcile.Summary
	err     error
}

func (f *fakeReconciler) ReconcileRecent(_ context.Context, hours int) (reconcile.Summary, error) {
	f.hours = append(f.hours, hours)
	f.summary.Hours = hours
	return f.summary, f.err
}

func TestReconcileJobClampsHours(t *testing.T) {
	rec := &fakeReconciler{}
	job, err := NewReconcileJob(ReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test", Output: &bytes.Buffer{}}),
		Reconciler: rec,
		Hours:      1000,
	})
	require.NoError(t, err)
	assert.Equal(t, "stripe-reconcile", job.Name())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []int{reconcile.MaxHours}, rec.hours)
}

func TestReconcileJobLogsAppliedCredits(t *testing.T) {
	buf := &bytes.Buffer{}
	rec := &fakeReconciler{summary: reconcile.Summary{ProcessedCount: 3, AppliedCount: 1, DuplicateCount: 2}}
	job, err := NewReconcileJob(ReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test", Output: buf}),
		Reconciler: rec,
	})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []int{reconcile.DefaultHours}, rec.hours)
	assert.Contains(t, buf.String(), "reconcile credited missed payments")
	assert.Contains(t, buf.String(), `"applied":1`)
}

func TestReconcileJobReturnsProviderError(t *testing.T) {
	rec := &fakeReconciler{err: errors.New("stripe down")}
	job, err := NewReconcileJob(ReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test", Output: &bytes.Buffer{}}),
		Reconciler: rec,
	})
	require.NoError(t, err)
	assert.ErrorContains(t, job.Run(context.Background()), "stripe down")
}

func TestNewReconcileJobRequiresDeps(t *testing.T) {
	_, err := NewReconcileJob(ReconcileJobParams{})
	assert.Error(t, err)
	_, err = NewReconcileJob(ReconcileJobParams{Logger: logger.New(logger.Options{ServiceName: "cron-test"})})
	assert.Error(t, err)
}
