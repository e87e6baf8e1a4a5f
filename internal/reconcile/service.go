package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/talentkonnect/raffle-backend/internal/credits"
	"github.com/talentkonnect/raffle-backend/pkg/enums"
	pkgerrors "github.com/talentkonnect/raffle-backend/pkg/errors"
	"github.com/talentkonnect/raffle-backend/pkg/logger"
	"github.com/talentkonnect/raffle-backend/pkg/metrics"
	pkgstripe "github.com/talentkonnect/raffle-backend/pkg/stripe"
)

const (
	MinHours     = 1
	MaxHours     = 168
	DefaultHours = 72

	defaultMaxPages = 5
	defaultPageSize = 50
)

// Provider is the payment provider surface reconciliation reads from.
type Provider interface {
	GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)
	ListCompletedCheckoutEvents(ctx context.Context, since time.Time, startingAfter string, limit int64) (pkgstripe.EventPage, error)
}

// ItemResult is the outcome for one replayed session or event.
type ItemResult struct {
	credits.Result
	SessionID string `json:"sessionId"`
	EventID   string `json:"eventId"`
}

// Summary aggregates a reconcile run.
type Summary struct {
	Hours          int          `json:"hours"`
	Since          time.Time    `json:"since"`
	ProcessedCount int          `json:"processedCount"`
	AppliedCount   int          `json:"appliedCount"`
	DuplicateCount int          `json:"duplicateCount"`
	RejectedCount  int          `json:"rejectedCount"`
	Pages          int          `json:"pages"`
	Items          []ItemResult `json:"items"`
}

func (s *Summary) add(item ItemResult) {
	s.ProcessedCount++
	switch {
	case item.Applied:
		s.AppliedCount++
	case item.Reason == credits.ReasonDuplicatePayment:
		s.DuplicateCount++
	default:
		s.RejectedCount++
	}
	s.Items = append(s.Items, item)
}

// Options bounds the work a single reconcile run may do.
type Options struct {
	DefaultHours int
	MaxPages     int
	PageSize     int64
	Via          enums.AuditVia
}

type Service struct {
	provider   Provider
	normalizer *credits.Normalizer
	engine     credits.Crediter
	logg       *logger.Logger
	metrics    *metrics.CreditMetrics
	opts       Options
	now        func() time.Time
}

// ServiceParams wires a Service. Provider may be nil when Stripe is not
// configured; every operation then fails with a dependency error.
type ServiceParams struct {
	Provider   Provider
	Normalizer *credits.Normalizer
	Engine     credits.Crediter
	Logger     *logger.Logger
	Metrics    *metrics.CreditMetrics
	Options    Options
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Normalizer == nil {
		return nil, fmt.Errorf("normalizer required")
	}
	if p.Engine == nil {
		return nil, fmt.Errorf("credit engine required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	opts := p.Options
	if opts.DefaultHours <= 0 {
		opts.DefaultHours = DefaultHours
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultMaxPages
	}
	if opts.PageSize <= 0 || opts.PageSize > 100 {
		opts.PageSize = defaultPageSize
	}
	if opts.Via == "" {
		opts.Via = enums.AuditViaReconcile
	}
	return &Service{
		provider:   p.Provider,
		normalizer: p.Normalizer,
		engine:     p.Engine,
		logg:       p.Logger,
		metrics:    p.Metrics,
		opts:       opts,
		now:        time.Now,
	}, nil
}

// Via is the audit provenance recorded for reconciled events.
func (s *Service) Via() enums.AuditVia {
	return s.opts.Via
}

// ClampHours bounds a requested lookback window. Zero selects the default.
func ClampHours(hours, fallback int) int {
	if hours == 0 {
		hours = fallback
	}
	if hours < MinHours {
		return MinHours
	}
	if hours > MaxHours {
		return MaxHours
	}
	return hours
}

// ReplaySession fetches one session from the provider and credits it as an
// admin replay.
func (s *Service) ReplaySession(ctx context.Context, sessionID string) (ItemResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ItemResult{}, pkgerrors.New(pkgerrors.CodeValidation, "sessionId required")
	}
	if s.provider == nil {
		return ItemResult{}, pkgerrors.New(pkgerrors.CodeDependency, "stripe not configured")
	}

	ctx = s.logg.WithSessionID(ctx, sessionID)
	sess, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		s.logg.Error(ctx, "replay session fetch failed", err)
		return ItemResult{}, asDependency(err, "retrieve checkout session")
	}

	return s.credit(ctx, credits.SessionFromStripe(sess), "admin_"+sessionID, enums.AuditViaAdminReplay)
}

// ReconcileRecent pages through recent completed-checkout events and credits
// each one. A provider or store failure stops the run and is returned along
// with the partial summary.
func (s *Service) ReconcileRecent(ctx context.Context, hours int) (Summary, error) {
	hours = ClampHours(hours, s.opts.DefaultHours)
	since := s.now().Add(-time.Duration(hours) * time.Hour)
	summary := Summary{Hours: hours, Since: since.UTC(), Items: []ItemResult{}}

	if s.provider == nil {
		return summary, pkgerrors.New(pkgerrors.CodeDependency, "stripe not configured")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"hours": hours, "via": string(s.opts.Via)})

	var startingAfter string
	for page := 0; page < s.opts.MaxPages; page++ {
		result, err := s.provider.ListCompletedCheckoutEvents(ctx, since, startingAfter, s.opts.PageSize)
		if err != nil {
			s.logg.Error(ctx, "reconcile page fetch failed", err)
			return summary, asDependency(err, "list checkout events")
		}
		summary.Pages++
		s.metrics.AddReconcilePages(1)

		for _, evt := range result.Events {
			item, err := s.creditEvent(ctx, evt)
			if err != nil {
				return summary, err
			}
			summary.add(item)
		}

		if !result.HasMore || len(result.Events) == 0 {
			break
		}
		startingAfter = result.Events[len(result.Events)-1].ID
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"processed": summary.ProcessedCount,
		"applied":   summary.AppliedCount,
		"duplicate": summary.DuplicateCount,
		"rejected":  summary.RejectedCount,
		"pages":     summary.Pages,
	}), "reconcile run finished")
	return summary, nil
}

func (s *Service) creditEvent(ctx context.Context, evt *stripe.Event) (ItemResult, error) {
	sess, err := pkgstripe.SessionFromEvent(evt)
	if err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"event_id": evt.ID, "error": err.Error()}), "undecodable checkout event skipped")
		return ItemResult{
			EventID: evt.ID,
			Result:  credits.Result{Reason: "undecodable-event", Via: s.opts.Via},
		}, nil
	}
	return s.credit(ctx, credits.SessionFromStripe(sess), evt.ID, s.opts.Via)
}

func (s *Service) credit(ctx context.Context, sess credits.SessionData, eventID string, via enums.AuditVia) (ItemResult, error) {
	item := ItemResult{SessionID: sess.ID, EventID: eventID}

	evt, err := s.normalize(sess, eventID, via)
	if err != nil {
		reason, ok := credits.RejectionReason(err)
		if !ok {
			return item, err
		}
		s.metrics.ObserveCredit(string(via), metrics.OutcomeRejected, 0)
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"event_id": eventID, "session_id": sess.ID, "reason": reason}), "session rejected")
		item.Result = credits.Result{Reason: reason, Via: via}
		return item, nil
	}

	res, err := s.engine.ApplyCredit(ctx, evt)
	if err != nil {
		return item, err
	}
	item.Result = res
	return item, nil
}

func (s *Service) normalize(sess credits.SessionData, eventID string, via enums.AuditVia) (credits.Event, error) {
	if err := credits.RequireSettled(sess); err != nil {
		return credits.Event{}, err
	}
	return s.normalizer.Normalize(sess, eventID, via)
}

func asDependency(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
