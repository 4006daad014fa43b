package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/infrastructure"
)

// AdminTokenHeader is the alternative to a bearer Authorization header.
const AdminTokenHeader = "X-Admin-Token"

// AdminToken requires the configured token on every request. Browsers
// cannot set headers on a WebSocket handshake, so the token query
// parameter is accepted as well. An empty token disables the check.
func AdminToken(token string, logger *slog.Logger) func(next http.Handler) http.Handler {
	logger = infrastructure.WithComponent(logger, "admin_auth")
	want := []byte(token)

	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := presentedToken(r)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				logger.WarnContext(r.Context(), "admin token rejected",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
					slog.Bool("token_present", got != ""),
				)
				apierrors.WriteError(w, apierrors.ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func presentedToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(rest)
		}
	}
	if t := r.Header.Get(AdminTokenHeader); t != "" {
		return t
	}
	return r.URL.Query().Get("token")
}
