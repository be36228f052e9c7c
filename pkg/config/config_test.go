package config

import (
	"testing"
	"time"

	"github.com/platinummonkey/lunchbox/pkg/observability"
	"github.com/platinummonkey/lunchbox/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("LUNCHBOX_TEST_STRING", "custom")
	t.Setenv("LUNCHBOX_TEST_BOOL", "1")
	t.Setenv("LUNCHBOX_TEST_BOOL_FALSE", "nope")
	t.Setenv("LUNCHBOX_TEST_INT", "42")
	t.Setenv("LUNCHBOX_TEST_INT_BAD", "forty-two")
	t.Setenv("LUNCHBOX_TEST_INT64", "1048576")
	t.Setenv("LUNCHBOX_TEST_DURATION", "90s")
	t.Setenv("LUNCHBOX_TEST_DURATION_BAD", "soon")

	assert.Equal(t, "custom", getEnv("LUNCHBOX_TEST_STRING", "default"))
	assert.Equal(t, "default", getEnv("LUNCHBOX_TEST_UNSET", "default"))

	assert.True(t, getEnvBool("LUNCHBOX_TEST_BOOL", false))
	assert.False(t, getEnvBool("LUNCHBOX_TEST_BOOL_FALSE", true))
	assert.True(t, getEnvBool("LUNCHBOX_TEST_UNSET", true))

	assert.Equal(t, 42, getEnvInt("LUNCHBOX_TEST_INT", 7))
	assert.Equal(t, 7, getEnvInt("LUNCHBOX_TEST_INT_BAD", 7))
	assert.Equal(t, int64(1048576), getEnvInt64("LUNCHBOX_TEST_INT64", 0))

	assert.Equal(t, 90*time.Second, getEnvDuration("LUNCHBOX_TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("LUNCHBOX_TEST_DURATION_BAD", time.Second))
}

func TestLoadServerConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		got := loadServerConfig()
		assert.Equal(t, ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			HealthPort:      "9090",
		}, got)
	})

	t.Run("custom values", func(t *testing.T) {
		t.Setenv("LUNCHBOX_HOST", "localhost")
		t.Setenv("LUNCHBOX_PORT", "3000")
		t.Setenv("LUNCHBOX_READ_TIMEOUT", "30s")
		t.Setenv("LUNCHBOX_HEALTH_PORT", "9091")
		t.Setenv("LUNCHBOX_MAX_BODY_BYTES", "2048")

		got := loadServerConfig()
		assert.Equal(t, "localhost", got.Host)
		assert.Equal(t, "3000", got.Port)
		assert.Equal(t, 30*time.Second, got.ReadTimeout)
		assert.Equal(t, "9091", got.HealthPort)
		assert.Equal(t, int64(2048), got.MaxBodyBytes)
	})
}

func TestLoadStorageConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		assert.Equal(t, storage.DefaultConfig(), loadStorageConfig())
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("LUNCHBOX_POSTGRES_URL", "postgres://db/lunchbox")
		t.Setenv("LUNCHBOX_POSTGRES_MAX_CONNS", "50")
		t.Setenv("LUNCHBOX_REDIS_URL", "redis://cache:6379")
		t.Setenv("LUNCHBOX_REDIS_DB", "3")
		t.Setenv("LUNCHBOX_WEBHOOK_DEDUP_TTL", "24h")
		t.Setenv("LUNCHBOX_OFFDAY_CACHE_SIZE", "64")
		t.Setenv("LUNCHBOX_OFFDAY_CACHE_TTL", "1m")

		got := loadStorageConfig()
		assert.Equal(t, "postgres://db/lunchbox", got.PostgresURL)
		assert.Equal(t, 50, got.PostgresMaxConns)
		assert.Equal(t, "redis://cache:6379", got.RedisURL)
		assert.Equal(t, 3, got.RedisDB)
		assert.True(t, got.RedisEnabled())
		assert.Equal(t, 24*time.Hour, got.WebhookDedupTTL)
		assert.Equal(t, 64, got.OffDayCacheSize)
		assert.Equal(t, time.Minute, got.OffDayCacheTTL)
	})
}

func TestLoadObservabilityConfig(t *testing.T) {
	t.Setenv("LUNCHBOX_LOG_LEVEL", "debug")
	t.Setenv("LUNCHBOX_OTEL_ENABLED", "true")
	t.Setenv("LUNCHBOX_OTEL_SAMPLE_RATIO", "0.25")

	got := loadObservabilityConfig()
	assert.Equal(t, observability.DebugLevel, got.LogLevel)
	assert.True(t, got.MetricsEnabled)
	assert.True(t, got.OTelEnabled)
	assert.Equal(t, "lunchbox", got.OTelServiceName)
	assert.Equal(t, 0.25, got.OTelSampleRatio)
}

func validConfig() Config {
	storageCfg := storage.DefaultConfig()
	storageCfg.PostgresURL = "postgres://localhost/lunchbox"
	return Config{
		Server:  ServerConfig{Port: "8080", HealthPort: "9090"},
		Storage: storageCfg,
		Stripe: StripeConfig{
			Enabled:          true,
			SecretKey:        "sk_test_123",
			WebhookSecret:    "whsec_123",
			WebhookTolerance: 5 * time.Minute,
		},
		App:       AppConfig{BaseURL: "https://app.example.be"},
		Scheduler: SchedulerConfig{DeliveryCron: "0 0 * * *"},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing server port",
			mutate:  func(c *Config) { c.Server.Port = "" },
			wantErr: "server port is required",
		},
		{
			name:    "same server and health port",
			mutate:  func(c *Config) { c.Server.HealthPort = "8080" },
			wantErr: "server port and health port must be different",
		},
		{
			name:    "missing postgres",
			mutate:  func(c *Config) { c.Storage.PostgresURL = "" },
			wantErr: "postgres URL is required",
		},
		{
			name:    "billing without secret key",
			mutate:  func(c *Config) { c.Stripe.SecretKey = "" },
			wantErr: "stripe secret key is required when billing is enabled",
		},
		{
			name:    "billing without webhook secret",
			mutate:  func(c *Config) { c.Stripe.WebhookSecret = "" },
			wantErr: "stripe webhook secret is required when billing is enabled",
		},
		{
			name:    "negative stripe retries",
			mutate:  func(c *Config) { c.Stripe.MaxNetworkRetries = -1 },
			wantErr: "stripe max retries must not be negative",
		},
		{
			name: "billing disabled ignores stripe secrets",
			mutate: func(c *Config) {
				c.Stripe = StripeConfig{Enabled: false}
			},
		},
		{
			name:    "relative app base URL",
			mutate:  func(c *Config) { c.App.BaseURL = "/app" },
			wantErr: "app base URL must be an absolute URL",
		},
		{
			name:    "issuer without client id",
			mutate:  func(c *Config) { c.Auth.IssuerURL = "https://accounts.example.com" },
			wantErr: "OIDC issuer URL and client id must be set together",
		},
		{
			name:    "email without api key",
			mutate:  func(c *Config) { c.Email = EmailConfig{Enabled: true, From: "orders@example.be"} },
			wantErr: "resend API key is required when email is enabled",
		},
		{
			name:    "email without sender",
			mutate:  func(c *Config) { c.Email = EmailConfig{Enabled: true, ResendAPIKey: "re_123"} },
			wantErr: "email sender address is required when email is enabled",
		},
		{
			name:    "missing delivery cron",
			mutate:  func(c *Config) { c.Scheduler.DeliveryCron = "" },
			wantErr: "delivery cron schedule is required",
		},
		{
			name: "otel enabled without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelServiceName = "lunchbox"
			},
			wantErr: "OpenTelemetry endpoint is required when OTel is enabled",
		},
		{
			name: "otel sample ratio out of range",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelEndpoint = "collector:4317"
				c.Observability.OTelServiceName = "lunchbox"
				c.Observability.OTelSampleRatio = 1.5
			},
			wantErr: "OpenTelemetry sample ratio must be between 0 and 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("valid environment", func(t *testing.T) {
		t.Setenv("LUNCHBOX_POSTGRES_URL", "postgres://localhost/lunchbox")
		t.Setenv("LUNCHBOX_STRIPE_SECRET_KEY", "sk_test_123")
		t.Setenv("LUNCHBOX_STRIPE_WEBHOOK_SECRET", "whsec_123")
		t.Setenv("LUNCHBOX_APP_BASE_URL", "https://app.example.be/")
		t.Setenv("LUNCHBOX_OIDC_ISSUER_URL", "https://accounts.example.com")
		t.Setenv("LUNCHBOX_OIDC_CLIENT_ID", "lunchbox-web")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "https://app.example.be", cfg.App.BaseURL)
		assert.Equal(t, 5*time.Minute, cfg.Stripe.WebhookTolerance)
		assert.Equal(t, 2, cfg.Stripe.MaxNetworkRetries)
		assert.True(t, cfg.AuthEnabled())
		assert.Equal(t, "lunchbox", cfg.OTelConfig().ServiceName)
	})

	t.Run("missing postgres", func(t *testing.T) {
		t.Setenv("LUNCHBOX_POSTGRES_URL", "")
		t.Setenv("LUNCHBOX_BILLING_ENABLED", "false")

		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration validation failed")
	})
}
