package storage

import "time"

// Config for the persistence backends
type Config struct {
	// PostgreSQL config
	PostgresURL         string
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration
	PostgresMaxLifetime time.Duration
	PostgresMaxIdleTime time.Duration

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// Webhook de-duplication keys
	WebhookDedupTTL time.Duration

	// In-process off-day cache
	OffDayCacheSize int
	OffDayCacheTTL  time.Duration
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		PostgresMaxConns:    20,
		PostgresMinConns:    2,
		PostgresTimeout:     10 * time.Second,
		PostgresMaxLifetime: 1 * time.Hour,
		PostgresMaxIdleTime: 10 * time.Minute,
		RedisDB:             0,
		RedisMaxRetries:     3,
		RedisPoolSize:       10,
		WebhookDedupTTL:     72 * time.Hour,
		OffDayCacheSize:     256,
		OffDayCacheTTL:      5 * time.Minute,
	}
}

// RedisEnabled reports whether a Redis URL is configured
func (c Config) RedisEnabled() bool {
	return c.RedisURL != ""
}
