package controllers

import (
	"net/http"

	"github.com/talentkonnect/raffle-backend/api/responses"
	"github.com/talentkonnect/raffle-backend/api/validators"
	"github.com/talentkonnect/raffle-backend/internal/checkout"
	"github.com/talentkonnect/raffle-backend/pkg/logger"
)

type createCheckoutRequest struct {
	UserID  string `json:"userId" validate:"notblank,max=256"`
	Entries int64  `json:"entries" validate:"gte=1"`
}

// CreateCheckout opens a hosted Checkout session for N entries.
func CreateCheckout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req createCheckoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sess, err := svc.Create(ctx, req.UserID, req.Entries)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, sess)
	}
}
