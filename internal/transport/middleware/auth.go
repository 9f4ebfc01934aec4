package middleware

import (
	"net/http"
	"strings"

	"github.com/pulsemetrics/analytics-gateway/internal"
	"github.com/pulsemetrics/analytics-gateway/internal/identity"
	"github.com/pulsemetrics/analytics-gateway/pkg/logger"
)

// Authenticator verifies inbound credentials issued by the external
// identity provider.
type Authenticator interface {
	Verify(tokenString string) (*identity.Identity, error)
}

// Identity extracts and verifies the bearer credential and stores the caller
// identity in the request context. Requests without a valid credential never
// reach a handler.
func Identity(auth Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "missing authorization token", http.StatusUnauthorized)
				return
			}

			id, err := auth.Verify(token)
			if err != nil {
				logger.From(r.Context()).Warn("credential verification failed", "error", err)
				status := http.StatusUnauthorized
				if appErr, ok := internal.IsAppError(err); ok {
					status = appErr.StatusCode
				}
				http.Error(w, "invalid token", status)
				return
			}

			ctx := identity.ContextWithIdentity(r.Context(), id)
			ctx = logger.With(ctx, "user_id", id.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[7:])
}
