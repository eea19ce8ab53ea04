package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/ocpierrors"
)

// Recover turns handler panics into 500 responses instead of dropped
// connections. The stack goes to the log, never to the client.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					ctx := r.Context()
					logger.ErrorContext(ctx, "handler panicked",
						"panic", rec,
						"path", r.URL.Path,
						"request_id", GetRequestID(ctx),
						"stack", string(debug.Stack()),
					)
					writeEnvelopeError(w, http.StatusInternalServerError, ocpierrors.CodeServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
