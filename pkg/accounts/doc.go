// Package accounts stores parent and admin accounts.
//
// Accounts are keyed by the OIDC subject of the identity provider. The
// first authenticated request of a new subject creates its account, which
// is how AccountStore satisfies middleware.AccountResolver.
package accounts
