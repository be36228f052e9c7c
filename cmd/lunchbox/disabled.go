package main

import (
	"context"
	"errors"

	"github.com/platinummonkey/lunchbox/pkg/auth"
	"github.com/platinummonkey/lunchbox/pkg/billing"
)

var (
	errBillingDisabled = errors.New("billing is disabled")
	errAuthDisabled    = errors.New("token verification is not configured")
)

// disabledProvider stands in for Stripe when billing is turned off
type disabledProvider struct{}

func (disabledProvider) CreateCustomer(context.Context, billing.CustomerParams) (string, error) {
	return "", errBillingDisabled
}

func (disabledProvider) CreateCheckoutSession(context.Context, billing.CheckoutSessionParams) (*billing.CheckoutSession, error) {
	return nil, errBillingDisabled
}

// rejectingVerifier refuses every token when OIDC is not configured
type rejectingVerifier struct{}

func (rejectingVerifier) Verify(context.Context, string) (*auth.Identity, error) {
	return nil, errAuthDisabled
}
