package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
	"github.com/talentkonnect/raffle-backend/api/responses"
	pkgerrors "github.com/talentkonnect/raffle-backend/pkg/errors"
	"github.com/talentkonnect/raffle-backend/pkg/logger"
)

const maxWebhookBytes = 64 << 10

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// StripeWebhook verifies and dispatches Stripe checkout events. The guard is
// optional; when it is nil or Redis misbehaves every delivery is processed and
// the ledger's payment constraint absorbs duplicates.
func StripeWebhook(svc StripeWebhookService, signingSecret string, guard stripeWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	signingSecret = strings.TrimSpace(signingSecret)
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || signingSecret == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "stripe webhook not configured"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payload too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignature, "stripe signature missing"))
			return
		}

		event, err := webhook.ConstructEventWithOptions(payload, sigHeader, signingSecret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeSignature, err, "verify signature"))
			return
		}
		if logg != nil {
			ctx = logg.WithEventID(ctx, event.ID)
		}

		claimed := false
		if guard != nil {
			first, claimErr := guard.Claim(ctx, event.ID)
			switch {
			case claimErr != nil:
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "error", claimErr.Error()), "stripe delivery guard unavailable")
				}
			case !first:
				if logg != nil {
					logg.Info(ctx, "stripe event already delivered")
				}
				responses.WriteSuccess(w, map[string]bool{"received": true})
				return
			default:
				claimed = true
			}
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			// a permanent failure keeps its claim so redeliveries are acknowledged
			if claimed && pkgerrors.IsRetryable(err) {
				if relErr := guard.Release(ctx, event.ID); relErr != nil && logg != nil {
					logg.Warn(logg.WithField(ctx, "error", relErr.Error()), "stripe delivery guard release failed")
				}
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"received": true})
	}
}
