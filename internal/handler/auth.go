package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/sakif/intra-rank/internal/apperror"
)

// contextKey is an unexported type for context keys in this package.
// A package-private key type means no other package can read or shadow
// the values we store in the request context.
type contextKey string

const bearerKey contextKey = "bearerToken"

// TokenValidator checks a bearer token against the upstream API.
// Satisfied by (*intra.Client).Validate.
type TokenValidator func(ctx context.Context, token string) error

// RequireBearer enforces a valid intra bearer token on protected routes.
//
// The extension sends the user's own intra OAuth token in the
// Authorization header; we never mint tokens ourselves. Validation is a
// live probe against the upstream API — a missing header, a malformed
// header, or a rejected probe all end the request with the same 401,
// shaped by writeError like every other endpoint failure.
//
// On success the raw token is stored in the request context so handlers
// can forward it to the sync trigger.
func RequireBearer(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if err := validate(r.Context(), token); err != nil {
				writeError(w, apperror.Unauthorized("valid intra token required"))
				return
			}

			ctx := context.WithValue(r.Context(), bearerKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerFromContext returns the validated bearer token stored by
// RequireBearer. Returns ("", false) on routes without the middleware.
func BearerFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerKey).(string)
	return token, ok && token != ""
}

// extractBearer pulls the token out of "Authorization: Bearer <token>".
// Returns "" when the header is missing or not a bearer scheme.
func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
