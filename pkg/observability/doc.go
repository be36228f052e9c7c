// Package observability provides structured logging, Prometheus metrics,
// health checks and OpenTelemetry tracing for the lunchbox binaries.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("payment_id", id).Info("Payment reconciled")
//
// Request-scoped loggers carry the request id, the user id and the active
// trace ids:
//
//	observability.FromContext(ctx).Warn("Checkout session without URL")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.WebhookEventsTotal.WithLabelValues("checkout.session.completed", "applied").Inc()
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// Outbound HTTP clients built with NewHTTPClient propagate the trace context.
package observability
