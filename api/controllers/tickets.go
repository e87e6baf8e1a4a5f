package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/talentkonnect/raffle-backend/api/responses"
	"github.com/talentkonnect/raffle-backend/api/validators"
	pkgerrors "github.com/talentkonnect/raffle-backend/pkg/errors"
	"github.com/talentkonnect/raffle-backend/pkg/logger"
)

const maxUserIDLength = 256

type balanceReader interface {
	Balance(ctx context.Context, userID string) (int64, error)
}

type ticketsResponse struct {
	UserID  string `json:"userId"`
	Tickets int64  `json:"tickets"`
}

// RaffleTickets reports a user's ticket balance. Unknown users hold zero.
func RaffleTickets(store balanceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := validators.SanitizeID(chi.URLParam(r, "userId"), maxUserIDLength)
		if userID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "userId required"))
			return
		}

		tickets, err := store.Balance(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read balance"))
			return
		}
		responses.WriteSuccess(w, ticketsResponse{UserID: userID, Tickets: tickets})
	}
}
