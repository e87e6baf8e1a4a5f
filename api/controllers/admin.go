package controllers

import (
	"context"
	"net/http"

	"github.com/talentkonnect/raffle-backend/api/responses"
	"github.com/talentkonnect/raffle-backend/api/validators"
	"github.com/talentkonnect/raffle-backend/internal/credits"
	"github.com/talentkonnect/raffle-backend/internal/reconcile"
	"github.com/talentkonnect/raffle-backend/pkg/db/models"
	pkgerrors "github.com/talentkonnect/raffle-backend/pkg/errors"
	"github.com/talentkonnect/raffle-backend/pkg/logger"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 50
)

type manualCrediter interface {
	CreditManual(ctx context.Context, userID string, entries int64) (credits.Result, error)
}

type sessionReplayer interface {
	ReplaySession(ctx context.Context, sessionID string) (reconcile.ItemResult, error)
}

type recentReconciler interface {
	ReconcileRecent(ctx context.Context, hours int) (reconcile.Summary, error)
}

type auditReader interface {
	RecentAudit(ctx context.Context, limit int) ([]models.AuditEvent, error)
}

type adminCreditRequest struct {
	UserID  string `json:"userId" validate:"notblank,max=256"`
	Entries int64  `json:"entries" validate:"gte=1"`
}

type replaySessionRequest struct {
	SessionID string `json:"sessionId" validate:"notblank,max=256"`
}

// AdminCredit grants tickets outside of any payment provider.
func AdminCredit(svc manualCrediter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req adminCreditRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		res, err := svc.CreditManual(ctx, req.UserID, req.Entries)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

// AdminReplaySession re-fetches one Checkout session and credits it.
func AdminReplaySession(svc sessionReplayer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req replaySessionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		item, err := svc.ReplaySession(ctx, req.SessionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// AdminReconcileRecent sweeps completed checkout events in the last N hours.
func AdminReconcileRecent(svc recentReconciler, defaultHours int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		hours := validators.ClampQueryInt(r, "hours", reconcile.ClampHours(defaultHours, reconcile.DefaultHours), reconcile.MinHours, reconcile.MaxHours)

		summary, err := svc.ReconcileRecent(ctx, hours)
		if err != nil {
			typed := pkgerrors.As(err)
			if typed == nil {
				typed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile failed")
			}
			if typed.Details() == nil && summary.ProcessedCount > 0 {
				typed = typed.WithDetails(summary)
			}
			responses.WriteError(ctx, logg, w, typed)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// AdminRecentWebhooks lists the newest audit entries.
func AdminRecentWebhooks(store auditReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		limit := validators.ClampQueryInt(r, "limit", defaultRecentLimit, 1, maxRecentLimit)

		events, err := store.RecentAudit(ctx, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read audit events"))
			return
		}
		if events == nil {
			events = []models.AuditEvent{}
		}
		responses.WriteSuccess(w, map[string]any{"limit": limit, "events": events})
	}
}
