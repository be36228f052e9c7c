// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here so that
// packages never collide on a key and every dependency is discoverable.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/lunchbox/pkg/contextkeys"
//	ctx = contextkeys.WithAuth(ctx, principal)
//	principal, _ := ctx.Value(contextkeys.AuthKey).(*auth.Principal)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.Principal
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: every authenticated API endpoint
	AuthKey Key = "auth_principal"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: logger, payment event log
	RequestIDKey Key = "request_id"

	// UserIDKey contains the authenticated account id
	// Set by: middleware.AuthMiddleware
	// Used by: logger, user-scoped operations
	UserIDKey Key = "user_id"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.LoggingMiddleware
	// Used by: handlers that log with request context
	LoggerKey Key = "logger"
)

// WithAuth adds the authenticated principal to the context
func WithAuth(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, principal)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}
