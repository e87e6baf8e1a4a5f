package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/talentkonnect/raffle-backend/pkg/config"
	pkgerrors "github.com/talentkonnect/raffle-backend/pkg/errors"
	"github.com/talentkonnect/raffle-backend/pkg/logger"
	pkgstripe "github.com/talentkonnect/raffle-backend/pkg/stripe"
)

// SessionCreator opens a hosted Checkout session.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req pkgstripe.CheckoutRequest) (*stripe.CheckoutSession, error)
}

// Service opens hosted Checkout sessions for raffle entries.
type Service interface {
	Create(ctx context.Context, userID string, entries int64) (Session, error)
}

// Session is what the client needs to redirect the buyer.
type Session struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

type service struct {
	creator SessionCreator
	raffle  config.RaffleConfig
	logg    *logger.Logger
}

// NewService wires checkout creation. A nil creator means Stripe is not
// configured and every call fails with a dependency error.
func NewService(creator SessionCreator, raffle config.RaffleConfig, logg *logger.Logger) (Service, error) {
	if raffle.PricePerEntryCents <= 0 {
		return nil, fmt.Errorf("price per entry must be positive")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{creator: creator, raffle: raffle, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, userID string, entries int64) (Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || entries < 1 {
		return Session{}, pkgerrors.New(pkgerrors.CodeValidation, "userId and entries required")
	}
	if s.raffle.MaxEntriesPerOrder > 0 && entries > s.raffle.MaxEntriesPerOrder {
		return Session{}, pkgerrors.New(pkgerrors.CodeValidation, "too many entries").
			WithDetails(map[string]any{"max": s.raffle.MaxEntriesPerOrder})
	}
	if s.creator == nil {
		return Session{}, pkgerrors.New(pkgerrors.CodeDependency, "stripe not configured")
	}

	sess, err := s.creator.CreateCheckoutSession(ctx, pkgstripe.CheckoutRequest{
		UserID:      userID,
		Entries:     entries,
		UnitAmount:  s.raffle.PricePerEntryCents,
		Currency:    s.raffle.Currency,
		ProductName: s.raffle.ProductName,
		SuccessURL:  s.raffle.SuccessURL(),
		CancelURL:   s.raffle.CancelURL(),
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
		}
		return Session{}, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"user_id":    userID,
		"entries":    entries,
		"session_id": sess.ID,
	}), "checkout session created")
	return Session{URL: sess.URL, SessionID: sess.ID}, nil
}
