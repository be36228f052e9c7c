package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/lunchbox/pkg/httputil"
	"github.com/platinummonkey/lunchbox/pkg/middleware"
	"github.com/platinummonkey/lunchbox/pkg/observability"
)

// defaultMaxBodyBytes bounds JSON request bodies
const defaultMaxBodyBytes = 64 << 10

// Middleware wraps an HTTP handler
type Middleware func(http.Handler) http.Handler

func passthrough(next http.Handler) http.Handler { return next }

// RouterConfig carries the cross-cutting pieces of the router
type RouterConfig struct {
	// Auth authenticates every route except the webhook. Required.
	Auth Middleware
	// CheckoutLimit wraps routes that open or settle checkout sessions
	CheckoutLimit Middleware
	// WebhookLimit wraps the webhook route
	WebhookLimit   Middleware
	Metrics        *observability.Metrics
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// Services are the domain services behind the HTTP surface
type Services struct {
	Billing  BillingService
	Orders   OrderService
	OffDays  OffDayService
	Children ChildService
}

// NewRouter builds the API handler
func NewRouter(services Services, logger *observability.Logger, cfg RouterConfig) http.Handler {
	if cfg.CheckoutLimit == nil {
		cfg.CheckoutLimit = passthrough
	}
	if cfg.WebhookLimit == nil {
		cfg.WebhookLimit = passthrough
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	billingHandlers := NewBillingHandlers(services.Billing)
	orderHandlers := NewOrderHandlers(services.Orders, services.Billing)
	offDayHandlers := NewOffDayHandlers(services.OffDays)
	childHandlers := NewChildHandlers(services.Children)

	router := mux.NewRouter()
	if cfg.Metrics != nil {
		router.Use(mux.MiddlewareFunc(observability.HTTPMetricsMiddleware(cfg.Metrics)))
	}

	// The webhook authenticates by signature and reads its own body limit
	billingHandlers.RegisterWebhookRoutes(router, cfg.WebhookLimit)

	authed := router.NewRoute().Subrouter()
	authed.Use(mux.MiddlewareFunc(cfg.Auth))
	authed.Use(mux.MiddlewareFunc(httputil.MaxBytesMiddleware(cfg.MaxBodyBytes)))
	billingHandlers.RegisterRoutes(authed)
	billingHandlers.RegisterCheckoutRoutes(authed, cfg.CheckoutLimit)
	orderHandlers.RegisterRoutes(authed)
	orderHandlers.RegisterCheckoutRoutes(authed, cfg.CheckoutLimit)
	offDayHandlers.RegisterRoutes(authed)
	childHandlers.RegisterRoutes(authed)

	admin := authed.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin)
	offDayHandlers.RegisterAdminRoutes(admin)
	orderHandlers.RegisterAdminRoutes(admin)

	return httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
		httputil.CORSMiddleware(cfg.AllowedOrigins),
	)(router)
}
