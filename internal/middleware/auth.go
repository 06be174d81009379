package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"kbase/internal/auth"
	"kbase/internal/httputil"
)

// publicPaths skip authentication
var publicPaths = map[string]bool{
	"/health": true,
}

// AuthMiddleware verifies the bearer token and stores the subject as the user ID
func AuthMiddleware(verifier auth.TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(strings.TrimSpace(token))
			if err != nil {
				logger.Debug("authentication failed", "path", r.URL.Path, "error", err)
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, httputil.WithUserID(r, claims.GetUserID()))
		})
	}
}

// DevUserMiddleware attributes every request to a fixed user.
// Used when no JWKS endpoint is configured.
func DevUserMiddleware(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, httputil.WithUserID(r, userID))
		})
	}
}
