// Package auth verifies the OIDC ID tokens parents and administrators send
// as bearer tokens and defines the Principal attached to authenticated
// requests.
//
//	verifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.IssuerURL, cfg.Auth.ClientID)
//	identity, err := verifier.Verify(ctx, rawToken)
//
// The identity is then resolved to a stored account (see pkg/accounts),
// which carries the role used for admin checks.
package auth
