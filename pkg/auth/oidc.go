package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// TokenVerifier turns a raw bearer token into a verified identity
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

// OIDCVerifier verifies ID tokens issued to the web application
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer and builds an ID token verifier
func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*OIDCVerifier, error) {
	if issuerURL == "" || clientID == "" {
		return nil, fmt.Errorf("OIDC issuer URL and client id are required")
	}

	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// NewOIDCVerifierFromKeySet builds a verifier that checks signatures against
// a fixed key set instead of the issuer's discovery document
func NewOIDCVerifierFromKeySet(issuerURL, clientID string, keySet oidc.KeySet) *OIDCVerifier {
	return &OIDCVerifier{
		verifier: oidc.NewVerifier(issuerURL, keySet, &oidc.Config{ClientID: clientID}),
	}
}

// Verify checks the token signature, issuer, audience and expiry
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var identity Identity
	if err := idToken.Claims(&identity); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	// Use subject claim as fallback
	if identity.Subject == "" {
		identity.Subject = idToken.Subject
	}
	if identity.Subject == "" {
		return nil, fmt.Errorf("missing subject in ID token")
	}

	return &identity, nil
}
