package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/lunchbox/pkg/observability"
	"github.com/platinummonkey/lunchbox/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Stripe configuration
	Stripe StripeConfig

	// App holds settings for links back into the web application
	App AppConfig

	// Auth configuration
	Auth AuthConfig

	// Email configuration
	Email EmailConfig

	// Scheduler configuration
	Scheduler SchedulerConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// StripeConfig holds payment provider settings
type StripeConfig struct {
	Enabled          bool
	SecretKey        string
	WebhookSecret    string
	APIBaseURL       string
	WebhookTolerance time.Duration
	RequestTimeout   time.Duration
	// MaxNetworkRetries is how often the SDK resends a failed API request
	MaxNetworkRetries int
}

// AppConfig holds settings for the parent-facing web application
type AppConfig struct {
	// BaseURL prefixes checkout success and cancel redirects
	BaseURL string
}

// AuthConfig holds OIDC ID-token verification settings
type AuthConfig struct {
	IssuerURL string
	ClientID  string
}

// EmailConfig holds transactional email settings
type EmailConfig struct {
	Enabled        bool
	ResendAPIKey   string
	ResendBaseURL  string
	From           string
	RequestTimeout time.Duration
}

// SchedulerConfig holds background job settings
type SchedulerConfig struct {
	DeliveryCron string
	HolidayFile  string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	// OTelSampleRatio is the share of root traces kept, 0..1
	OTelSampleRatio float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Stripe:        loadStripeConfig(),
		App:           AppConfig{BaseURL: strings.TrimRight(getEnv("LUNCHBOX_APP_BASE_URL", "http://localhost:3000"), "/")},
		Auth:          loadAuthConfig(),
		Email:         loadEmailConfig(),
		Scheduler:     loadSchedulerConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("LUNCHBOX_HOST", "0.0.0.0"),
		Port:            getEnv("LUNCHBOX_PORT", "8080"),
		ReadTimeout:     getEnvDuration("LUNCHBOX_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("LUNCHBOX_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("LUNCHBOX_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("LUNCHBOX_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("LUNCHBOX_MAX_BODY_BYTES", 1<<20),
		HealthPort:      getEnv("LUNCHBOX_HEALTH_PORT", "9090"),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	// PostgreSQL config
	if pgURL := getEnv("LUNCHBOX_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("LUNCHBOX_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("LUNCHBOX_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("LUNCHBOX_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	// Redis config
	if redisURL := getEnv("LUNCHBOX_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("LUNCHBOX_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("LUNCHBOX_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("LUNCHBOX_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("LUNCHBOX_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}
	if dedupTTL := getEnvDuration("LUNCHBOX_WEBHOOK_DEDUP_TTL", 0); dedupTTL > 0 {
		cfg.WebhookDedupTTL = dedupTTL
	}

	// Off-day cache config
	if cacheSize := getEnvInt("LUNCHBOX_OFFDAY_CACHE_SIZE", 0); cacheSize > 0 {
		cfg.OffDayCacheSize = cacheSize
	}
	if cacheTTL := getEnvDuration("LUNCHBOX_OFFDAY_CACHE_TTL", 0); cacheTTL > 0 {
		cfg.OffDayCacheTTL = cacheTTL
	}

	return cfg
}

// loadStripeConfig loads payment provider configuration from environment
func loadStripeConfig() StripeConfig {
	return StripeConfig{
		Enabled:           getEnvBool("LUNCHBOX_BILLING_ENABLED", true),
		SecretKey:         getEnv("LUNCHBOX_STRIPE_SECRET_KEY", ""),
		WebhookSecret:     getEnv("LUNCHBOX_STRIPE_WEBHOOK_SECRET", ""),
		APIBaseURL:        getEnv("LUNCHBOX_STRIPE_API_URL", "https://api.stripe.com"),
		WebhookTolerance:  getEnvDuration("LUNCHBOX_STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute),
		RequestTimeout:    getEnvDuration("LUNCHBOX_STRIPE_TIMEOUT", 30*time.Second),
		MaxNetworkRetries: getEnvInt("LUNCHBOX_STRIPE_MAX_RETRIES", 2),
	}
}

// loadAuthConfig loads OIDC configuration from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		IssuerURL: getEnv("LUNCHBOX_OIDC_ISSUER_URL", ""),
		ClientID:  getEnv("LUNCHBOX_OIDC_CLIENT_ID", ""),
	}
}

// loadEmailConfig loads email configuration from environment
func loadEmailConfig() EmailConfig {
	return EmailConfig{
		Enabled:        getEnvBool("LUNCHBOX_EMAIL_ENABLED", false),
		ResendAPIKey:   getEnv("LUNCHBOX_RESEND_API_KEY", ""),
		ResendBaseURL:  getEnv("LUNCHBOX_RESEND_API_URL", "https://api.resend.com"),
		From:           getEnv("LUNCHBOX_EMAIL_FROM", ""),
		RequestTimeout: getEnvDuration("LUNCHBOX_EMAIL_TIMEOUT", 10*time.Second),
	}
}

// loadSchedulerConfig loads scheduler configuration from environment
func loadSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		DeliveryCron: getEnv("LUNCHBOX_DELIVERY_CRON", "0 0 * * *"),
		HolidayFile:  getEnv("LUNCHBOX_HOLIDAY_FILE", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	cfg := ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("LUNCHBOX_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("LUNCHBOX_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("LUNCHBOX_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("LUNCHBOX_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("LUNCHBOX_OTEL_SERVICE_NAME", "lunchbox"),
		OTelServiceVersion: getEnv("LUNCHBOX_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("LUNCHBOX_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("LUNCHBOX_OTEL_SAMPLE_RATIO", 1),
	}

	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate storage config
	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	// Validate billing config
	if c.Stripe.Enabled {
		if c.Stripe.SecretKey == "" {
			return fmt.Errorf("stripe secret key is required when billing is enabled")
		}
		if c.Stripe.WebhookSecret == "" {
			return fmt.Errorf("stripe webhook secret is required when billing is enabled")
		}
		if c.Stripe.WebhookTolerance <= 0 {
			return fmt.Errorf("stripe webhook tolerance must be positive")
		}
		if c.Stripe.MaxNetworkRetries < 0 {
			return fmt.Errorf("stripe max retries must not be negative, got %d", c.Stripe.MaxNetworkRetries)
		}
	}

	if u, err := url.Parse(c.App.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("app base URL must be an absolute URL: %q", c.App.BaseURL)
	}

	// Issuer and client id come as a pair
	if (c.Auth.IssuerURL == "") != (c.Auth.ClientID == "") {
		return fmt.Errorf("OIDC issuer URL and client id must be set together")
	}

	// Validate email config
	if c.Email.Enabled {
		if c.Email.ResendAPIKey == "" {
			return fmt.Errorf("resend API key is required when email is enabled")
		}
		if c.Email.From == "" {
			return fmt.Errorf("email sender address is required when email is enabled")
		}
	}

	if c.Scheduler.DeliveryCron == "" {
		return fmt.Errorf("delivery cron schedule is required")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1, got %g", r)
		}
	}

	return nil
}

// AuthEnabled reports whether bearer ID tokens can be verified
func (c *Config) AuthEnabled() bool {
	return c.Auth.IssuerURL != "" && c.Auth.ClientID != ""
}

// OTelConfig converts the observability settings for InitOTel
func (c *Config) OTelConfig() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.Observability.OTelEnabled,
		Endpoint:       c.Observability.OTelEndpoint,
		ServiceName:    c.Observability.OTelServiceName,
		ServiceVersion: c.Observability.OTelServiceVersion,
		Insecure:       c.Observability.OTelInsecure,
		SampleRatio:    c.Observability.OTelSampleRatio,
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
