// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/key2key/server/internal/auth"
)

type ctxKey string

const userKey ctxKey = "user"

// JWTAuth is a middleware that enforces bearer-token authentication.
//
// It extracts the token from the Authorization header, verifies it against
// the signing secret, and stores the asserted user ID in the request context
// so it can be used downstream as the authenticated user ID. Requests with a
// missing, malformed or expired token are rejected before any data is touched.
func JWTAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			userID, err := auth.ParseUserID(strings.TrimPrefix(header, "Bearer "), secret)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserIDFromContext extracts the authenticated user ID from the request
// context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	val := ctx.Value(userKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

// WithUserID returns a context carrying the given user ID. Intended for tests
// that call handlers directly without the middleware.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}
