package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

type contextKey string

const (
	// APIKeyContextKey stores the validated admin token in request context.
	APIKeyContextKey contextKey = "api_key"
	// UserIDContextKey stores the authenticated caller ID in request context.
	UserIDContextKey contextKey = "user_id"
)

// AdminAuthMiddleware gates the admin API behind a single static
// bearer token. Unlike a multi-tenant API-key backend, the admin
// surface (mode transitions, kill switch, session rotation) has one
// operator credential — there is nothing to look up per key, so no
// cache is needed, only a constant-time comparison.
type AdminAuthMiddleware struct {
	logger    zerolog.Logger
	token     string
	headerKey string
}

// NewAdminAuthMiddleware creates the admin auth middleware. An empty
// token disables the admin API entirely — every request is rejected,
// rather than silently accepted.
func NewAdminAuthMiddleware(logger zerolog.Logger, headerKey, token string) *AdminAuthMiddleware {
	if headerKey == "" {
		headerKey = "Authorization"
	}
	return &AdminAuthMiddleware{
		logger:    logger,
		token:     token,
		headerKey: headerKey,
	}
}

// Handler returns the middleware handler function.
func (am *AdminAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get(am.headerKey)
		if authHeader == "" {
			http.Error(w, `{"error":{"type":"missing_authentication","message":"Authorization header required"}}`, http.StatusUnauthorized)
			return
		}

		presented := authHeader
		if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			presented = authHeader[len("bearer "):]
		}

		if am.token == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(am.token)) != 1 {
			am.logger.Warn().Str("path", r.URL.Path).Msg("rejected admin request with invalid token")
			http.Error(w, `{"error":{"type":"invalid_authentication","message":"admin token rejected"}}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), APIKeyContextKey, presented)
		ctx = context.WithValue(ctx, UserIDContextKey, "admin")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAPIKey extracts the validated admin token from the request context.
func GetAPIKey(ctx context.Context) string {
	if v, ok := ctx.Value(APIKeyContextKey).(string); ok {
		return v
	}
	return ""
}

// GetUserID extracts the caller ID from the request context.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDContextKey).(string); ok {
		return v
	}
	return ""
}
