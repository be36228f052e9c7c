package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// schemaStatements create every table the domain stores use. Each statement
// is idempotent so EnsureSchema can run on every start.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                 TEXT PRIMARY KEY,
		subject            TEXT NOT NULL UNIQUE,
		email              TEXT NOT NULL,
		first_name         TEXT NOT NULL DEFAULT '',
		last_name          TEXT NOT NULL DEFAULT '',
		role               TEXT NOT NULL DEFAULT 'parent',
		stripe_customer_id TEXT,
		access_expires_at  DATE,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS schools (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		address    TEXT NOT NULL DEFAULT '',
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS children (
		id         TEXT PRIMARY KEY,
		parent_id  TEXT NOT NULL REFERENCES users(id),
		school_id  TEXT NOT NULL REFERENCES schools(id),
		first_name TEXT NOT NULL,
		last_name  TEXT NOT NULL,
		grade      TEXT NOT NULL DEFAULT '',
		allergies  TEXT NOT NULL DEFAULT '',
		bread_type TEXT NOT NULL DEFAULT 'white',
		crust      BOOLEAN NOT NULL DEFAULT TRUE,
		butter     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_children_parent ON children(parent_id)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id              TEXT PRIMARY KEY,
		parent_id       TEXT NOT NULL REFERENCES users(id),
		child_id        TEXT NOT NULL REFERENCES children(id),
		order_type      TEXT NOT NULL,
		start_date      DATE NOT NULL,
		end_date        DATE NOT NULL,
		price_cents     BIGINT NOT NULL,
		billable_days   INTEGER NOT NULL,
		notes           TEXT NOT NULL DEFAULT '',
		allergies       TEXT NOT NULL DEFAULT '',
		bread_type      TEXT NOT NULL,
		crust           BOOLEAN NOT NULL DEFAULT TRUE,
		butter          BOOLEAN NOT NULL DEFAULT TRUE,
		payment_status  TEXT NOT NULL DEFAULT 'pending',
		delivery_status TEXT NOT NULL DEFAULT 'ordered',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (start_date <= end_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_parent ON orders(parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_delivery_status ON orders(delivery_status)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_window ON orders(start_date, end_date)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id                  TEXT PRIMARY KEY,
		user_id             TEXT NOT NULL REFERENCES users(id),
		order_id            TEXT REFERENCES orders(id),
		checkout_session_id TEXT NOT NULL UNIQUE,
		payment_intent_id   TEXT,
		amount_cents        BIGINT NOT NULL,
		currency            TEXT NOT NULL,
		type                TEXT NOT NULL,
		status              TEXT NOT NULL,
		webhook_processed   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_user ON payments(user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS payment_events (
		id              BIGSERIAL PRIMARY KEY,
		payment_id      TEXT NOT NULL REFERENCES payments(id),
		source          TEXT NOT NULL,
		event_id        TEXT,
		previous_status TEXT NOT NULL,
		status          TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_events_payment ON payment_events(payment_id)`,
	`CREATE TABLE IF NOT EXISTS off_days (
		id         TEXT PRIMARY KEY,
		school_id  TEXT NOT NULL REFERENCES schools(id),
		date       DATE NOT NULL,
		reason     TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (school_id, date)
	)`,
}

// EnsureSchema creates the tables and indexes if they do not exist
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	return nil
}

// PostgreSQL error codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint error
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

// IsForeignKeyViolation reports whether err is a PostgreSQL foreign key
// constraint error, e.g. deleting a row other rows still reference
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == foreignKeyViolation
	}
	return false
}
