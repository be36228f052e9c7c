package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/lunchbox/pkg/apperrors"
	"github.com/platinummonkey/lunchbox/pkg/auth"
	"github.com/platinummonkey/lunchbox/pkg/calendar"
)

// Account is a parent or admin user
type Account struct {
	ID               string         `json:"id"`
	Subject          string         `json:"-"`
	Email            string         `json:"email"`
	FirstName        string         `json:"firstName"`
	LastName         string         `json:"lastName"`
	Role             auth.Role      `json:"role"`
	StripeCustomerID *string        `json:"-"`
	AccessExpiresAt  *calendar.Date `json:"accessExpiresAt,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// FullName joins first and last name
func (a *Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Store reads and writes accounts in PostgreSQL
type Store struct {
	db *sql.DB
}

// NewStore creates a new account store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const accountColumns = `id, subject, email, first_name, last_name, role,
		       stripe_customer_id, access_expires_at, created_at, updated_at`

func scanAccount(row *sql.Row) (*Account, error) {
	a := &Account{}
	var customerID sql.NullString
	var expiresAt calendar.Date
	err := row.Scan(
		&a.ID, &a.Subject, &a.Email, &a.FirstName, &a.LastName, &a.Role,
		&customerID, &expiresAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if customerID.Valid {
		a.StripeCustomerID = &customerID.String
	}
	if !expiresAt.IsZero() {
		a.AccessExpiresAt = &expiresAt
	}
	return a, nil
}

// GetByID returns the account with the given id
func (s *Store) GetByID(ctx context.Context, id string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE id = $1`
	a, err := scanAccount(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

// Upsert creates the account of a new subject or refreshes the profile
// fields of an existing one. Role, customer id and access are kept.
func (s *Store) Upsert(ctx context.Context, identity *auth.Identity) (*Account, error) {
	if identity == nil || identity.Subject == "" {
		return nil, apperrors.Unauthenticated("identity has no subject")
	}
	query := `
		INSERT INTO users (id, subject, email, first_name, last_name, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (subject) DO UPDATE
		SET email = EXCLUDED.email,
		    first_name = CASE WHEN EXCLUDED.first_name = '' THEN users.first_name ELSE EXCLUDED.first_name END,
		    last_name = CASE WHEN EXCLUDED.last_name = '' THEN users.last_name ELSE EXCLUDED.last_name END,
		    updated_at = NOW()
		RETURNING ` + accountColumns
	a, err := scanAccount(s.db.QueryRowContext(ctx, query,
		uuid.NewString(), identity.Subject, identity.Email,
		identity.GivenName, identity.FamilyName, auth.RoleParent,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert account: %w", err)
	}
	return a, nil
}

// SetStripeCustomerID records the payment provider customer of an account
func (s *Store) SetStripeCustomerID(ctx context.Context, id, customerID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET stripe_customer_id = $1, updated_at = NOW() WHERE id = $2`,
		customerID, id)
	if err != nil {
		return fmt.Errorf("failed to set stripe customer id: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("User not found")
	}
	return nil
}

// ResolvePrincipal implements middleware.AccountResolver
func (s *Store) ResolvePrincipal(ctx context.Context, identity *auth.Identity) (*auth.Principal, error) {
	a, err := s.Upsert(ctx, identity)
	if err != nil {
		return nil, err
	}
	role := a.Role
	if !role.Valid() {
		role = auth.RoleParent
	}
	return &auth.Principal{
		UserID:  a.ID,
		Subject: a.Subject,
		Email:   a.Email,
		Role:    role,
	}, nil
}
