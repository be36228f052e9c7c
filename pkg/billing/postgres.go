package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/lunchbox/pkg/apperrors"
	"github.com/platinummonkey/lunchbox/pkg/storage/postgres"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const paymentColumns = `id, user_id, order_id, checkout_session_id, payment_intent_id,
		       amount_cents, currency, type, status, webhook_processed, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (*Payment, error) {
	p := &Payment{}
	var orderID, paymentIntentID sql.NullString
	err := row.Scan(
		&p.ID, &p.UserID, &orderID, &p.CheckoutSessionID, &paymentIntentID,
		&p.AmountCents, &p.Currency, &p.Type, &p.Status, &p.WebhookProcessed,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if orderID.Valid {
		p.OrderID = &orderID.String
	}
	if paymentIntentID.Valid {
		p.PaymentIntentID = &paymentIntentID.String
	}
	return p, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// CreatePayment inserts a new payment row
func (s *PostgresStore) CreatePayment(ctx context.Context, p *Payment) error {
	query := `
		INSERT INTO payments (id, user_id, order_id, checkout_session_id, payment_intent_id,
		                      amount_cents, currency, type, status, webhook_processed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		p.ID, p.UserID, nullString(p.OrderID), p.CheckoutSessionID, nullString(p.PaymentIntentID),
		p.AmountCents, p.Currency, p.Type, p.Status, p.WebhookProcessed,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if postgres.IsUniqueViolation(err) {
		return apperrors.DataIntegrity("duplicate checkout session %s", p.CheckoutSessionID)
	}
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetPaymentByCheckoutSession returns the single payment for a session
func (s *PostgresStore) GetPaymentByCheckoutSession(ctx context.Context, sessionID string) (*Payment, error) {
	// LIMIT 2 is enough to tell one row from many
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE checkout_session_id = $1
		LIMIT 2
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	payments, err := scanPayments(rows)
	if err != nil {
		return nil, err
	}

	switch len(payments) {
	case 0:
		return nil, apperrors.NotFound("Payment not found")
	case 1:
		return payments[0], nil
	default:
		return nil, apperrors.DataIntegrity("multiple payments for checkout session %s", sessionID)
	}
}

// ListPaymentsByUser returns every payment of a user, newest first
func (s *PostgresStore) ListPaymentsByUser(ctx context.Context, userID string) ([]*Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return scanPayments(rows)
}

func scanPayments(rows *sql.Rows) ([]*Payment, error) {
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return payments, nil
}

// ApplyDecision writes the decision in one transaction. Decisions that
// change access hold the user row lock, and a revoke is dropped when the
// locked view shows another paid access fee in the current window.
func (s *PostgresStore) ApplyDecision(ctx context.Context, current *Payment, d Decision, eventID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	accessEffect, changesAccess := d.accessEffect()
	if changesAccess {
		if err := lockUser(ctx, tx, accessEffect.UserID); err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $1,
		    payment_intent_id = COALESCE($2, payment_intent_id),
		    webhook_processed = $3,
		    updated_at = NOW()
		WHERE id = $4 AND status = $5 AND webhook_processed = $6
	`, d.Patch.Status, nullString(d.Patch.PaymentIntentID), d.Patch.WebhookProcessed,
		d.PaymentID, current.Status, current.WebhookProcessed)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrStalePayment
	}

	effects := d.StoreEffects()
	if changesAccess && accessEffect.Kind == EffectRevokeAccess {
		history, err := listAccessFees(ctx, tx, accessEffect.UserID)
		if err != nil {
			return err
		}
		if HasOtherPaidAccessFee(current, history, d.DecidedAt) {
			effects = withoutKind(effects, EffectRevokeAccess)
		}
	}

	for _, effect := range effects {
		if err := applyEffect(ctx, tx, effect); err != nil {
			return err
		}
	}

	var event sql.NullString
	if eventID != "" {
		event = sql.NullString{String: eventID, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO payment_events (payment_id, source, event_id, previous_status, status)
		VALUES ($1, $2, $3, $4, $5)
	`, d.PaymentID, d.Source, event, d.Previous, d.Patch.Status)
	if err != nil {
		return fmt.Errorf("failed to record payment event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit payment decision: %w", err)
	}
	return nil
}

// lockUser holds the user row until the transaction ends, serializing
// every access change of the user
func lockUser(ctx context.Context, tx *sql.Tx, userID string) error {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.DataIntegrity("user %s missing", userID)
	}
	if err != nil {
		return fmt.Errorf("failed to lock user: %w", err)
	}
	return nil
}

func listAccessFees(ctx context.Context, tx *sql.Tx, userID string) ([]*Payment, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE user_id = $1 AND type = $2
		ORDER BY created_at DESC
	`, userID, PaymentTypeAccessFee)
	if err != nil {
		return nil, fmt.Errorf("failed to list access fees: %w", err)
	}
	return scanPayments(rows)
}

func applyEffect(ctx context.Context, tx *sql.Tx, effect Effect) error {
	var (
		query string
		args  []interface{}
	)
	switch effect.Kind {
	case EffectGrantAccess:
		query = `UPDATE users SET access_expires_at = $1, updated_at = NOW() WHERE id = $2`
		args = []interface{}{effect.AccessExpiresAt, effect.UserID}
	case EffectRevokeAccess:
		query = `UPDATE users SET access_expires_at = NULL, updated_at = NOW() WHERE id = $1`
		args = []interface{}{effect.UserID}
	case EffectSetOrderPaymentStatus:
		query = `UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2`
		args = []interface{}{effect.PaymentStatus, effect.OrderID}
	default:
		return fmt.Errorf("unsupported store effect %q", effect.Kind)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to apply %s: %w", effect.Kind, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.DataIntegrity("%s target missing (user %s, order %s)", effect.Kind, effect.UserID, effect.OrderID)
	}
	return nil
}
