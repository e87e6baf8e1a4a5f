package credits

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/talentkonnect/raffle-backend/internal/ledger"
	"github.com/talentkonnect/raffle-backend/pkg/db/models"
	pkgerrors "github.com/talentkonnect/raffle-backend/pkg/errors"
	"github.com/talentkonnect/raffle-backend/pkg/logger"
	"github.com/talentkonnect/raffle-backend/pkg/metrics"
)

// Ledger is the persistence surface the engine writes through.
type Ledger interface {
	CreditOnce(ctx context.Context, payment *models.Payment) (ledger.CreditOutcome, error)
	AppendAudit(ctx context.Context, event *models.AuditEvent) (bool, error)
}

// Engine applies credit events exactly once per payment id.
type Engine struct {
	ledger  Ledger
	logg    *logger.Logger
	metrics *metrics.CreditMetrics
	now     func() time.Time
}

// EngineParams wires an Engine. Metrics may be nil.
type EngineParams struct {
	Ledger  Ledger
	Logger  *logger.Logger
	Metrics *metrics.CreditMetrics
}

func NewEngine(p EngineParams) (*Engine, error) {
	if p.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Engine{
		ledger:  p.Ledger,
		logg:    p.Logger,
		metrics: p.Metrics,
		now:     time.Now,
	}, nil
}

// ApplyCredit records the payment and increments the user's balance only if
// the payment id is new. Replays return Applied=false with the
// duplicate-payment reason. The audit append afterwards never affects the result.
func (e *Engine) ApplyCredit(ctx context.Context, evt Event) (Result, error) {
	if err := validateEvent(evt); err != nil {
		e.metrics.ObserveCredit(string(evt.Via), metrics.OutcomeRejected, 0)
		return Result{}, err
	}

	ctx = e.logg.WithFields(ctx, map[string]any{
		"payment_id": evt.PaymentID,
		"user_id":    evt.UserID,
		"via":        string(evt.Via),
	})

	now := e.now().UTC()
	payment := &models.Payment{
		PaymentID: evt.PaymentID,
		UserID:    evt.UserID,
		Entries:   evt.Entries,
		Amount:    evt.Amount,
		Source:    evt.Via.PaymentSource(),
		EventID:   optional(evt.EventID),
		Timestamp: now,
	}

	outcome, err := e.ledger.CreditOnce(ctx, payment)
	if err != nil {
		e.metrics.ObserveCredit(string(evt.Via), metrics.OutcomeError, 0)
		e.logg.Error(ctx, "credit write failed", err)
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply credit")
	}

	result := Result{
		Applied:      outcome.Inserted,
		TotalTickets: outcome.TotalTickets,
		UserID:       evt.UserID,
		Entries:      evt.Entries,
		Amount:       evt.Amount,
		PaymentID:    evt.PaymentID,
		Via:          evt.Via,
	}
	if outcome.Inserted {
		e.metrics.ObserveCredit(string(evt.Via), metrics.OutcomeApplied, evt.Entries)
		e.logg.Info(ctx, "credit applied")
	} else {
		result.Reason = ReasonDuplicatePayment
		e.metrics.ObserveCredit(string(evt.Via), metrics.OutcomeDuplicate, 0)
		e.logg.Info(ctx, "duplicate payment ignored")
	}

	e.appendAudit(ctx, evt, now)
	return result, nil
}

func (e *Engine) appendAudit(ctx context.Context, evt Event, at time.Time) {
	eventID := evt.EventID
	if eventID == "" {
		eventID = evt.PaymentID
	}
	auditType := evt.Type
	if auditType == "" {
		auditType = "credit"
	}
	audit := &models.AuditEvent{
		EventID:    eventID,
		Type:       auditType,
		SessionID:  optional(evt.SessionID),
		UserID:     evt.UserID,
		Amount:     evt.Amount,
		Entries:    evt.Entries,
		Via:        evt.Via,
		ReceivedAt: at,
	}
	if _, err := e.ledger.AppendAudit(ctx, audit); err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "audit append failed")
	}
}

func validateEvent(evt Event) error {
	var missing []string
	if strings.TrimSpace(evt.UserID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(evt.PaymentID) == "" {
		missing = append(missing, "paymentId")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "credit event incomplete").
			WithDetails(map[string]any{"missing": missing})
	}
	if evt.Entries <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "entries must be positive")
	}
	if !evt.Via.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown credit provenance %q", evt.Via))
	}
	return nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
