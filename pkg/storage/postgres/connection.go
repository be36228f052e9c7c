package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/platinummonkey/lunchbox/pkg/observability"
	"github.com/platinummonkey/lunchbox/pkg/storage"
)

// ConnectionManager owns the PostgreSQL connection pool
type ConnectionManager struct {
	db     *sql.DB
	config storage.Config
	logger *observability.Logger
}

// NewConnectionManager opens the pool, applies the pool limits and pings
// the server
func NewConnectionManager(config storage.Config, logger *observability.Logger) (*ConnectionManager, error) {
	if config.PostgresURL == "" {
		return nil, fmt.Errorf("postgres URL is required")
	}

	db, err := sql.Open("postgres", config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	cm, err := newConnectionManager(db, config, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return cm, nil
}

func newConnectionManager(db *sql.DB, config storage.Config, logger *observability.Logger) (*ConnectionManager, error) {
	db.SetMaxOpenConns(config.PostgresMaxConns)
	db.SetMaxIdleConns(config.PostgresMinConns)
	db.SetConnMaxLifetime(config.PostgresMaxLifetime)
	db.SetConnMaxIdleTime(config.PostgresMaxIdleTime)

	timeout := config.PostgresTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.WithField("max_conns", config.PostgresMaxConns).Info("Connected to PostgreSQL")

	return &ConnectionManager{
		db:     db,
		config: config,
		logger: logger,
	}, nil
}

// DB returns the connection pool
func (cm *ConnectionManager) DB() *sql.DB {
	return cm.db
}

// HealthCheck pings the database
func (cm *ConnectionManager) HealthCheck(ctx context.Context) error {
	if err := cm.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres unhealthy: %w", err)
	}
	return nil
}

// Stats returns connection pool statistics
func (cm *ConnectionManager) Stats() sql.DBStats {
	return cm.db.Stats()
}

// RecordStats copies the pool statistics into the database gauges
func (cm *ConnectionManager) RecordStats(metrics *observability.Metrics) {
	stats := cm.db.Stats()
	metrics.DBConnectionsActive.Set(float64(stats.InUse))
	metrics.DBConnectionsIdle.Set(float64(stats.Idle))
	metrics.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
	metrics.DBConnectionsWaitDuration.Set(stats.WaitDuration.Seconds())
}

// StartStatsRoutine records pool statistics every interval until ctx is done
func (cm *ConnectionManager) StartStatsRoutine(ctx context.Context, interval time.Duration, metrics *observability.Metrics) {
	if interval == 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		defer observability.RecoverPanic(cm.logger, "postgres stats routine")

		for {
			select {
			case <-ticker.C:
				cm.RecordStats(metrics)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close closes the connection pool
func (cm *ConnectionManager) Close() error {
	if err := cm.db.Close(); err != nil {
		return fmt.Errorf("failed to close postgres connection: %w", err)
	}
	return nil
}
