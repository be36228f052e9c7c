// Package config loads and validates lunchbox configuration from
// environment variables.
//
// Server settings:
//
//	LUNCHBOX_HOST="0.0.0.0"
//	LUNCHBOX_PORT="8080"
//	LUNCHBOX_HEALTH_PORT="9090"
//
// Storage settings:
//
//	LUNCHBOX_POSTGRES_URL="postgres://localhost/lunchbox?sslmode=disable"
//	LUNCHBOX_REDIS_URL="redis://localhost:6379"      # optional, webhook de-duplication
//	LUNCHBOX_OFFDAY_CACHE_TTL="5m"
//
// Billing settings:
//
//	LUNCHBOX_BILLING_ENABLED="true"
//	LUNCHBOX_STRIPE_SECRET_KEY="sk_live_..."
//	LUNCHBOX_STRIPE_WEBHOOK_SECRET="whsec_..."
//	LUNCHBOX_APP_BASE_URL="https://app.example.be"
//
// Auth and email:
//
//	LUNCHBOX_OIDC_ISSUER_URL="https://accounts.example.com"
//	LUNCHBOX_OIDC_CLIENT_ID="lunchbox-web"
//	LUNCHBOX_EMAIL_ENABLED="true"
//	LUNCHBOX_RESEND_API_KEY="re_..."
//	LUNCHBOX_EMAIL_FROM="Lunchbox <orders@example.be>"
//
// Scheduler and observability:
//
//	LUNCHBOX_DELIVERY_CRON="0 0 * * *"
//	LUNCHBOX_HOLIDAY_FILE="/etc/lunchbox/holidays.yaml"
//	LUNCHBOX_LOG_LEVEL="info"  # debug, info, warn, error
//	LUNCHBOX_OTEL_ENABLED="true"
//	LUNCHBOX_OTEL_ENDPOINT="otel-collector:4317"
package config
