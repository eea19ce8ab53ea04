package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/remoteparty"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/ocpierrors"
)

// PartyResolver resolves a presented access token to a registered party.
type PartyResolver interface {
	ByLocalToken(token string) (remoteparty.RemoteParty, remoteparty.LocalAccessInfo, bool)
}

// Context keys for the authenticated caller.
type contextKeyToken struct{}
type contextKeyParty struct{}
type contextKeyAccess struct{}

// GetToken retrieves the presented access token from the context.
func GetToken(ctx context.Context) string {
	if tok, ok := ctx.Value(contextKeyToken{}).(string); ok {
		return tok
	}
	return ""
}

// GetParty retrieves the authenticated remote party from the context.
func GetParty(ctx context.Context) (remoteparty.RemoteParty, bool) {
	p, ok := ctx.Value(contextKeyParty{}).(remoteparty.RemoteParty)
	return p, ok
}

// GetAccess retrieves the access record the caller authenticated with.
func GetAccess(ctx context.Context) (remoteparty.LocalAccessInfo, bool) {
	a, ok := ctx.Value(contextKeyAccess{}).(remoteparty.LocalAccessInfo)
	return a, ok
}

// WithParty injects an authenticated party into a context. Useful for
// handler unit tests that don't run the full middleware chain.
func WithParty(ctx context.Context, party remoteparty.RemoteParty, access remoteparty.LocalAccessInfo) context.Context {
	ctx = context.WithValue(ctx, contextKeyToken{}, access.AccessToken)
	ctx = context.WithValue(ctx, contextKeyParty{}, party)
	ctx = context.WithValue(ctx, contextKeyAccess{}, access)
	return ctx
}

// TokenFromRequest extracts the access token from the Authorization header.
// The scheme is "Token <access-token>" per the protocol, matched without
// case sensitivity because implementations in the wild vary.
func TokenFromRequest(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	const prefix = "token "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

// RequireToken authenticates calls against the remote party registry. The
// resolved party and access record land in the request context. Failures
// carry the protocol envelope so clients can switch on status_code.
func RequireToken(resolver PartyResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := TokenFromRequest(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", GetRequestID(ctx),
				)
				writeEnvelopeError(w, http.StatusUnauthorized, ocpierrors.CodeClientError, "missing or malformed Authorization header")
				return
			}

			party, access, ok := resolver.ByLocalToken(token)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - unknown token",
					"request_id", GetRequestID(ctx),
				)
				writeEnvelopeError(w, http.StatusForbidden, ocpierrors.CodeClientError, "invalid or blocked access token")
				return
			}
			if access.Status != remoteparty.AccessAllowed {
				logger.WarnContext(ctx, "forbidden access - token blocked",
					"party_id", party.ID,
					"request_id", GetRequestID(ctx),
				)
				writeEnvelopeError(w, http.StatusForbidden, ocpierrors.CodeClientError, "invalid or blocked access token")
				return
			}

			ctx = context.WithValue(ctx, contextKeyToken{}, token)
			ctx = context.WithValue(ctx, contextKeyParty{}, party)
			ctx = context.WithValue(ctx, contextKeyAccess{}, access)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeEnvelopeError(w http.ResponseWriter, httpStatus int, code ocpierrors.Code, message string) {
	body, err := json.Marshal(ocpi.Response{
		StatusCode:    int(code),
		StatusMessage: message,
		Timestamp:     time.Now().UTC(),
	})
	if err != nil {
		http.Error(w, message, httpStatus)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_, _ = w.Write(body)
}
