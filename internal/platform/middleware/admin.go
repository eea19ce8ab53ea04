package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/ocpierrors"
)

// RequireAdminToken guards operator endpoints with a shared secret.
// An empty expected token disables the endpoints entirely.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			// Constant-time comparison to prevent timing attacks.
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", GetRequestID(ctx),
				)
				writeEnvelopeError(w, http.StatusUnauthorized, ocpierrors.CodeClientError, "admin token required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
