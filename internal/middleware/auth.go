package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mmynk/paytrack/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UsernameKey is the context key for storing the authenticated admin username.
	UsernameKey contextKey = "username"
	// RequestIDKey is the context key for storing the request ID.
	RequestIDKey contextKey = "request_id"
)

// GetUsername extracts the admin username from the context.
// Returns empty string if not found.
func GetUsername(ctx context.Context) string {
	username, _ := ctx.Value(UsernameKey).(string)
	return username
}

// RequireBearer returns a middleware that validates JWT bearer tokens.
// It extracts the token from the Authorization header, validates it, and adds
// the username to the request context. Failures are answered with a JSON
// {"error": ...} body and status 401.
func RequireBearer(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, auth.ErrMissingToken)
				return
			}

			// Parse Bearer token
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeUnauthorized(w, auth.ErrInvalidToken)
				return
			}

			// Validate token
			claims, err := jwtManager.Validate(parts[1])
			if err != nil {
				writeUnauthorized(w, auth.ErrInvalidToken)
				return
			}

			// Call the next handler with enriched context
			ctx := context.WithValue(r.Context(), UsernameKey, claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// RequireSession redirects requests to loginPath unless loggedIn reports a
// usable session. Requests for loginPath itself always pass.
func RequireSession(loggedIn func(ctx context.Context) bool, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == loginPath || loggedIn(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}

			slog.Debug("No session, redirecting to login",
				"path", r.URL.Path,
				"request_id", GetRequestID(r.Context()),
			)
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
		})
	}
}
