package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/talentkonnect/raffle-backend/internal/credits"
	"github.com/talentkonnect/raffle-backend/pkg/enums"
	pkgerrors "github.com/talentkonnect/raffle-backend/pkg/errors"
	"github.com/talentkonnect/raffle-backend/pkg/logger"
)

type ServiceParams struct {
	Normalizer *credits.Normalizer
	Engine     credits.Crediter
	Logger     *logger.Logger
}

// Service credits verified Stripe checkout events.
type Service struct {
	normalizer *credits.Normalizer
	engine     credits.Crediter
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Normalizer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "normalizer required")
	}
	if params.Engine == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "credit engine required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		normalizer: params.Normalizer,
		engine:     params.Engine,
		logg:       params.Logger,
	}, nil
}

// HandleEvent credits settled checkout sessions. Unhandled event types,
// unsettled sessions and sessions that cannot be attributed are acknowledged
// without error; only store failures are returned so the provider retries.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":   event.ID,
		"event_type": string(event.Type),
	})

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
		}
		return s.creditSession(ctx, event.ID, credits.SessionFromStripe(&sess))
	default:
		s.logg.Debug(ctx, "stripe event ignored")
		return nil
	}
}

func (s *Service) creditSession(ctx context.Context, eventID string, sess credits.SessionData) error {
	ctx = s.logg.WithSessionID(ctx, sess.ID)

	if err := credits.RequireSettled(sess); err != nil {
		s.logg.Info(s.logg.WithField(ctx, "payment_status", sess.PaymentStatus), "checkout session not settled yet")
		return nil
	}

	evt, err := s.normalizer.Normalize(sess, eventID, enums.AuditViaWebhook)
	if err != nil {
		if reason, ok := credits.RejectionReason(err); ok {
			s.logg.Warn(s.logg.WithField(ctx, "reason", reason), "checkout session not credited")
			return nil
		}
		return fmt.Errorf("normalize session: %w", err)
	}

	res, err := s.engine.ApplyCredit(ctx, evt)
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"applied":       res.Applied,
		"total_tickets": res.TotalTickets,
	}), "checkout session processed")
	return nil
}
