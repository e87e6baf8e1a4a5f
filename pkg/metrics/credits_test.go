package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCreditMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCreditMetrics(reg)

	m.ObserveCredit("webhook", OutcomeApplied, 6)
	m.ObserveCredit("webhook", OutcomeDuplicate, 6)
	m.ObserveCredit("reconcile", OutcomeApplied, 2)
	m.AddReconcilePages(3)

	if got := testutil.ToFloat64(m.tickets.WithLabelValues("webhook")); got != 6 {
		t.Fatalf("expected 6 webhook tickets, got %f", got)
	}
	if got := testutil.ToFloat64(m.attempts.WithLabelValues("webhook", OutcomeDuplicate)); got != 1 {
		t.Fatalf("expected one duplicate, got %f", got)
	}
	if got := testutil.ToFloat64(m.pages); got != 3 {
		t.Fatalf("expected 3 reconcile pages, got %f", got)
	}

	count, err := testutil.GatherAndCount(reg, "raffle_credit_attempts_total")
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 attempt series, got %d", count)
	}
}

func TestNilCreditMetricsIsNoop(t *testing.T) {
	var m *CreditMetrics
	m.ObserveCredit("admin", OutcomeApplied, 1)
	m.AddReconcilePages(1)
	NewCreditMetrics(nil).ObserveCredit("admin", OutcomeError, 0)
}
