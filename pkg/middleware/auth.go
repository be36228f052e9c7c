package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/lunchbox/pkg/auth"
	"github.com/platinummonkey/lunchbox/pkg/contextkeys"
	"github.com/platinummonkey/lunchbox/pkg/httputil"
	"github.com/platinummonkey/lunchbox/pkg/observability"
)

// AccountResolver maps a verified identity to a stored account, creating
// the account on first sign-in
type AccountResolver interface {
	ResolvePrincipal(ctx context.Context, identity *auth.Identity) (*auth.Principal, error)
}

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	verifier auth.TokenVerifier
	resolver AccountResolver
	logger   *observability.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(verifier auth.TokenVerifier, resolver AccountResolver, logger *observability.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		resolver: resolver,
		logger:   logger,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		identity, err := m.verifier.Verify(r.Context(), parts[1])
		if err != nil {
			m.logger.WithError(err).Debug("Rejected bearer token")
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		principal, err := m.resolver.ResolvePrincipal(r.Context(), identity)
		if err != nil {
			m.logger.WithError(err).WithField("subject", identity.Subject).Error("Failed to resolve account")
			httputil.WriteAppError(w, err)
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), principal)
		ctx = contextkeys.WithUserID(ctx, principal.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetPrincipal extracts the authenticated principal from the request
func GetPrincipal(r *http.Request) *auth.Principal {
	return PrincipalFromContext(r.Context())
}

// PrincipalFromContext extracts the authenticated principal from ctx
func PrincipalFromContext(ctx context.Context) *auth.Principal {
	principal, ok := ctx.Value(contextkeys.AuthKey).(*auth.Principal)
	if !ok {
		return nil
	}
	return principal
}

// RequireAdmin rejects callers whose account is not an administrator
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := GetPrincipal(r)
		if principal == nil {
			httputil.WriteForbidden(w, "authentication required")
			return
		}

		if !principal.IsAdmin() {
			httputil.WriteForbidden(w, "insufficient role permissions")
			return
		}

		next.ServeHTTP(w, r)
	})
}
