// Package middleware provides the authentication, authorization and rate
// limiting middleware of the lunchbox API.
//
// AuthMiddleware verifies the bearer ID token, resolves the account and
// stores the *auth.Principal in the request context:
//
//	authMW := middleware.NewAuthMiddleware(verifier, accountsService, logger)
//	api := router.PathPrefix("/").Subrouter()
//	api.Use(authMW.Handler)
//
// RequireAdmin guards the off-day administration routes.
//
// RateLimitMiddleware limits checkout session creation per account and
// webhook deliveries per client address. It uses the Redis fixed-window
// DistributedRateLimiter when Redis is configured and the in-process token
// bucket RateLimiter otherwise. Limiter errors fail open.
package middleware
