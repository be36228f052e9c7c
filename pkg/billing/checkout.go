package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/platinummonkey/lunchbox/pkg/access"
	"github.com/platinummonkey/lunchbox/pkg/apperrors"
	"github.com/platinummonkey/lunchbox/pkg/calendar"
	"github.com/platinummonkey/lunchbox/pkg/pricing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	accessFeeProductName        = "Access Fee"
	accessFeeProductDescription = "Annual subscription fee for the current school year"
	orderProductName            = "Sandwich Order"
)

// EnsureCustomer returns the provider customer of userID, creating it on
// first use
func (s *Service) EnsureCustomer(ctx context.Context, userID string) (string, error) {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if account.StripeCustomerID != nil && *account.StripeCustomerID != "" {
		return *account.StripeCustomerID, nil
	}

	customerID, err := s.provider.CreateCustomer(ctx, CustomerParams{
		Email: account.Email,
		Name:  account.FullName(),
		Metadata: map[string]string{
			"userId":  account.ID,
			"subject": account.Subject,
		},
	})
	if err != nil {
		return "", err
	}

	if err := s.accounts.SetStripeCustomerID(ctx, userID, customerID); err != nil {
		return "", err
	}
	s.loggerFor(ctx).
		WithField("stripe_customer_id", customerID).
		Info("Created payment provider customer")
	return customerID, nil
}

// CreateAccessFeeCheckout opens a checkout session for the yearly access
// fee and records a pending access-fee payment
func (s *Service) CreateAccessFeeCheckout(ctx context.Context, userID string) (*CheckoutSession, error) {
	ctx, span := billingTracer.Start(ctx, "CreateAccessFeeCheckout")
	defer span.End()

	return s.createCheckout(ctx, userID, PaymentTypeAccessFee, nil, CheckoutSessionParams{
		Currency:    pricing.Currency,
		AmountCents: pricing.AccessFeeCents,
		Name:        accessFeeProductName,
		Description: accessFeeProductDescription,
		SuccessURL:  s.config.AppBaseURL + "/onboarding/subscription/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   s.config.AppBaseURL + "/onboarding/subscription",
	})
}

// CreateOrderCheckout opens a checkout session for a created order and
// records a pending order payment linked to it
func (s *Service) CreateOrderCheckout(ctx context.Context, userID string, item CheckoutItem) (*CheckoutSession, error) {
	ctx, span := billingTracer.Start(ctx, "CreateOrderCheckout",
		trace.WithAttributes(attribute.String("order_id", item.OrderID)),
	)
	defer span.End()

	if item.OrderID == "" {
		return nil, apperrors.InvalidInput("orderId is required")
	}
	if item.AmountCents <= 0 {
		return nil, apperrors.InvalidInput("order amount must be positive, got %d", item.AmountCents)
	}
	name := item.Name
	if name == "" {
		name = orderProductName
	}

	orderID := item.OrderID
	return s.createCheckout(ctx, userID, PaymentTypeOrder, &orderID, CheckoutSessionParams{
		Currency:    pricing.Currency,
		AmountCents: item.AmountCents,
		Name:        name,
		Description: item.Description,
		SuccessURL:  s.config.AppBaseURL + "/orders/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   s.config.AppBaseURL + "/orders/cancel?session_id={CHECKOUT_SESSION_ID}",
		Metadata:    map[string]string{"orderId": orderID},
	})
}

func (s *Service) createCheckout(ctx context.Context, userID string, paymentType PaymentType, orderID *string, params CheckoutSessionParams) (*CheckoutSession, error) {
	customerID, err := s.EnsureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	params.CustomerID = customerID
	if params.Metadata == nil {
		params.Metadata = map[string]string{}
	}
	params.Metadata["userId"] = userID
	params.Metadata["type"] = string(paymentType)

	session, err := s.provider.CreateCheckoutSession(ctx, params)
	if err != nil {
		s.countCheckout(paymentType, "failed")
		return nil, err
	}
	if session.URL == "" {
		s.countCheckout(paymentType, "failed")
		return nil, fmt.Errorf("checkout session %s has no URL", session.ID)
	}

	payment := &Payment{
		ID:                uuid.NewString(),
		UserID:            userID,
		OrderID:           orderID,
		CheckoutSessionID: session.ID,
		AmountCents:       params.AmountCents,
		Currency:          params.Currency,
		Type:              paymentType,
		Status:            PaymentStatusPending,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		s.countCheckout(paymentType, "failed")
		return nil, err
	}

	s.countCheckout(paymentType, "created")
	s.loggerFor(ctx).WithFields(map[string]interface{}{
		"payment_id":          payment.ID,
		"checkout_session_id": session.ID,
		"payment_type":        string(paymentType),
	}).Info("Created checkout session")
	return session, nil
}

// AccessStatus reports the access window of userID
func (s *Service) AccessStatus(ctx context.Context, userID string) (access.Status, error) {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return access.Status{}, err
	}
	return access.StatusAt(account.AccessExpiresAt, s.now()), nil
}

// OrderDescription is the line-item text of an order checkout,
// e.g. "week order from 2025-01-06 to 2025-01-12 (4 days)"
func OrderDescription(orderType pricing.OrderType, start, end calendar.Date, billableDays int) string {
	return fmt.Sprintf("%s from %s to %s (%d days)", orderType.Label(), start, end, billableDays)
}

func (s *Service) countCheckout(paymentType PaymentType, status string) {
	if s.metrics != nil {
		s.metrics.CheckoutSessionsTotal.WithLabelValues(string(paymentType), status).Inc()
	}
}
