package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Credit outcomes.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// CreditMetrics counts credit attempts by provenance and outcome.
type CreditMetrics struct {
	attempts *prometheus.CounterVec
	tickets  *prometheus.CounterVec
	pages    prometheus.Counter
}

func NewCreditMetrics(reg prometheus.Registerer) *CreditMetrics {
	if reg == nil {
		return &CreditMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "raffle_credit_attempts_total",
		Help: "Credit attempts by provenance and outcome.",
	}, []string{"via", "outcome"})
	tickets := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "raffle_tickets_credited_total",
		Help: "Tickets added to balances by provenance.",
	}, []string{"via"})
	pages := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "raffle_reconcile_pages_total",
		Help: "Provider event pages fetched during reconciliation.",
	})
	reg.MustRegister(attempts, tickets, pages)
	return &CreditMetrics{attempts: attempts, tickets: tickets, pages: pages}
}

// ObserveCredit records one credit attempt. Tickets are only counted for applied credits.
func (m *CreditMetrics) ObserveCredit(via, outcome string, entries int64) {
	if m == nil || m.attempts == nil {
		return
	}
	via = normalizeLabel(via)
	m.attempts.WithLabelValues(via, outcome).Inc()
	if outcome == OutcomeApplied && entries > 0 {
		m.tickets.WithLabelValues(via).Add(float64(entries))
	}
}

func (m *CreditMetrics) AddReconcilePages(n int) {
	if m == nil || m.pages == nil || n <= 0 {
		return
	}
	m.pages.Add(float64(n))
}
