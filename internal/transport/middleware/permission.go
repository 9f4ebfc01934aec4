package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pulsemetrics/analytics-gateway/internal/identity"
)

// PrivilegeChecker reports whether a user holds platform-wide authority.
// Backed by the access resolver so privilege is computed in one place only.
type PrivilegeChecker interface {
	IsPlatform(ctx context.Context, userID string) (bool, error)
}

// RequirePlatform guards administrative routes: only platform-privileged
// callers pass.
func RequirePlatform(checker PrivilegeChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := identity.FromContext(r.Context())
			if !ok || id == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			platform, err := checker.IsPlatform(r.Context(), id.UserID)
			if err != nil {
				logger.ErrorContext(r.Context(), "privilege check failed", "error", err, "user_id", id.UserID)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			if !platform {
				logger.WarnContext(r.Context(), "access denied: platform role required", "user_id", id.UserID)
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
