package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/talentkonnect/raffle-backend/api/responses"
	pkgerrors "github.com/talentkonnect/raffle-backend/pkg/errors"
	"github.com/talentkonnect/raffle-backend/pkg/logger"
)

const adminTokenHeader = "X-Admin-Token"

// AdminToken guards privileged routes with a shared secret. An empty
// configured token rejects every request.
func AdminToken(token string, logg *logger.Logger) func(http.Handler) http.Handler {
	expected := []byte(strings.TrimSpace(token))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := strings.TrimSpace(r.Header.Get(adminTokenHeader))
			if provided == "" {
				provided = strings.TrimSpace(r.URL.Query().Get("token"))
			}
			if len(expected) == 0 || provided == "" || subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
				ctx := r.Context()
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "ip", clientIP(r)), "admin.unauthorized")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
