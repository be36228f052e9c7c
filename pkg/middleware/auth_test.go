package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/platinummonkey/lunchbox/pkg/apperrors"
	"github.com/platinummonkey/lunchbox/pkg/auth"
	"github.com/platinummonkey/lunchbox/pkg/contextkeys"
	"github.com/platinummonkey/lunchbox/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	tokens map[string]*auth.Identity
}

func (f *fakeVerifier) Verify(_ context.Context, raw string) (*auth.Identity, error) {
	if identity, ok := f.tokens[raw]; ok {
		return identity, nil
	}
	return nil, errors.New("bad token")
}

type fakeResolver struct {
	principals map[string]*auth.Principal
	err        error
}

func (f *fakeResolver) ResolvePrincipal(_ context.Context, identity *auth.Identity) (*auth.Principal, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.principals[identity.Subject], nil
}

func newTestAuth(resolverErr error) *AuthMiddleware {
	verifier := &fakeVerifier{tokens: map[string]*auth.Identity{
		"parent-token": {Subject: "sub-parent", Email: "parent@example.be"},
		"admin-token":  {Subject: "sub-admin", Email: "admin@example.be"},
	}}
	resolver := &fakeResolver{
		principals: map[string]*auth.Principal{
			"sub-parent": {UserID: "user-1", Subject: "sub-parent", Role: auth.RoleParent},
			"sub-admin":  {UserID: "user-2", Subject: "sub-admin", Role: auth.RoleAdmin},
		},
		err: resolverErr,
	}
	return NewAuthMiddleware(verifier, resolver, observability.NewLogger(observability.InfoLevel, io.Discard))
}

func TestAuthMiddleware_Handler(t *testing.T) {
	var seen *auth.Principal
	var seenUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetPrincipal(r)
		seenUserID = contextkeys.GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
		wantError  string
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized, wantError: "missing authorization header"},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantError: "invalid authorization header format"},
		{name: "empty token", header: "Bearer ", wantStatus: http.StatusUnauthorized, wantError: "invalid authorization header format"},
		{name: "unknown token", header: "Bearer forged", wantStatus: http.StatusUnauthorized, wantError: "invalid or expired token"},
		{name: "valid token", header: "Bearer parent-token", wantStatus: http.StatusOK, wantUser: "user-1"},
		{name: "lowercase scheme", header: "bearer admin-token", wantStatus: http.StatusOK, wantUser: "user-2"},
	}

	handler := newTestAuth(nil).Handler(next)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen, seenUserID = nil, ""
			req := httptest.NewRequest(http.MethodGet, "/me/access", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantError != "" {
				assert.Contains(t, rr.Body.String(), tt.wantError)
				assert.Nil(t, seen)
				return
			}
			require.NotNil(t, seen)
			assert.Equal(t, tt.wantUser, seen.UserID)
			assert.Equal(t, tt.wantUser, seenUserID)
		})
	}
}

func TestAuthMiddleware_ResolverError(t *testing.T) {
	handler := newTestAuth(apperrors.PermissionDenied("Account disabled")).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer parent-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "Account disabled")
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireAdmin(next)

	tests := []struct {
		name       string
		principal  *auth.Principal
		wantStatus int
	}{
		{name: "anonymous", principal: nil, wantStatus: http.StatusForbidden},
		{name: "parent", principal: &auth.Principal{UserID: "user-1", Role: auth.RoleParent}, wantStatus: http.StatusForbidden},
		{name: "admin", principal: &auth.Principal{UserID: "user-2", Role: auth.RoleAdmin}, wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/offdays", nil)
			if tt.principal != nil {
				req = req.WithContext(contextkeys.WithAuth(req.Context(), tt.principal))
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestPrincipalFromContext_WrongType(t *testing.T) {
	ctx := contextkeys.WithAuth(context.Background(), "not a principal")
	assert.Nil(t, PrincipalFromContext(ctx))
}
