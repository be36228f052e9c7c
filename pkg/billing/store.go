package billing

import (
	"context"
	"errors"
)

// ErrStalePayment is returned by ApplyDecision when the payment row changed
// after it was read. The caller reloads the payment and decides again.
var ErrStalePayment = errors.New("payment changed concurrently")

// Store persists payments and applies reconciliation decisions
type Store interface {
	// CreatePayment inserts a new payment row
	CreatePayment(ctx context.Context, p *Payment) error

	// GetPaymentByCheckoutSession returns the single payment for a session.
	// No row is NotFound; more than one is DataIntegrity.
	GetPaymentByCheckoutSession(ctx context.Context, sessionID string) (*Payment, error)

	// ListPaymentsByUser returns every payment of a user, newest first
	ListPaymentsByUser(ctx context.Context, userID string) ([]*Payment, error)

	// ApplyDecision writes the payment patch, the store effects and a
	// payment event in one transaction. The update only succeeds if the
	// payment still has the status and webhook flag the decision was
	// computed from.
	ApplyDecision(ctx context.Context, current *Payment, d Decision, eventID string) error
}
