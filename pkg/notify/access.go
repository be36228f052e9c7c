package notify

import (
	"context"

	"github.com/platinummonkey/lunchbox/pkg/accounts"
	"github.com/platinummonkey/lunchbox/pkg/calendar"
)

// AccountLookup loads the recipient of an account email
type AccountLookup interface {
	GetByID(ctx context.Context, id string) (*accounts.Account, error)
}

// AccessNotifier emails the access fee receipt
type AccessNotifier struct {
	accounts AccountLookup
	mailer   Mailer
}

// NewAccessNotifier creates an access notifier
func NewAccessNotifier(accounts AccountLookup, mailer Mailer) *AccessNotifier {
	return &AccessNotifier{accounts: accounts, mailer: mailer}
}

// AccessGranted sends the receipt to the account owner
func (n *AccessNotifier) AccessGranted(ctx context.Context, userID string, expiresAt calendar.Date) error {
	account, err := n.accounts.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	name := account.FullName()
	if name == "" {
		name = account.Email
	}
	msg, err := RenderAccessConfirmation(AccessConfirmation{
		To:         account.Email,
		ParentName: name,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, msg)
}
