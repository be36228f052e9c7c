package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/lunchbox/pkg/observability"
	"github.com/stripe/stripe-go/v82"
)

// Provider creates customers and hosted checkout sessions at the payment
// provider
type Provider interface {
	CreateCustomer(ctx context.Context, params CustomerParams) (string, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)
}

// StripeClientConfig holds the settings of the Stripe API client
type StripeClientConfig struct {
	SecretKey string
	// BaseURL overrides the API endpoint. Empty means api.stripe.com.
	BaseURL string
	Timeout time.Duration
	// MaxNetworkRetries is how often a request that failed on the network or
	// with a retryable status is sent again
	MaxNetworkRetries int64
}

// StripeClient implements Provider with the Stripe SDK
type StripeClient struct {
	client *stripe.Client
}

// NewStripeClient creates a Stripe client. Its requests carry the trace
// context of the caller and the SDK logs through logger.
func NewStripeClient(cfg StripeClientConfig, logger *observability.Logger) *StripeClient {
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        observability.NewHTTPClient(cfg.Timeout),
		LeveledLogger:     logger.WithField("component", "stripe"),
		MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(cfg.BaseURL)
	}
	return &StripeClient{
		client: stripe.NewClient(cfg.SecretKey, stripe.WithBackends(stripe.NewBackendsWithConfig(backendCfg))),
	}
}

// CreateCustomer creates a customer and returns its id
func (c *StripeClient) CreateCustomer(ctx context.Context, params CustomerParams) (string, error) {
	req := &stripe.CustomerCreateParams{Email: stripe.String(params.Email)}
	if params.Name != "" {
		req.Name = stripe.String(params.Name)
	}
	for k, v := range params.Metadata {
		req.AddMetadata(k, v)
	}
	req.SetIdempotencyKey(uuid.NewString())

	customer, err := c.client.V1Customers.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe customer: %w", describeStripeError(err))
	}
	if customer.ID == "" {
		return "", fmt.Errorf("failed to create stripe customer: empty id")
	}
	return customer.ID, nil
}

// CreateCheckoutSession creates a one-line-item payment session
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	product := &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
		Name: stripe.String(params.Name),
	}
	if params.Description != "" {
		product.Description = stripe.String(params.Description)
	}

	req := &stripe.CheckoutSessionCreateParams{
		Mode: stripe.String(stripe.CheckoutSessionModePayment),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency:    stripe.String(params.Currency),
				UnitAmount:  stripe.Int64(params.AmountCents),
				ProductData: product,
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
	}
	if params.CustomerID != "" {
		req.Customer = stripe.String(params.CustomerID)
	}
	for k, v := range params.Metadata {
		req.AddMetadata(k, v)
	}
	req.SetIdempotencyKey(uuid.NewString())

	session, err := c.client.V1CheckoutSessions.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", describeStripeError(err))
	}
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// describeStripeError flattens an API error into status, type and message
func describeStripeError(err error) error {
	var apiErr *stripe.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("stripe returned %d (%s): %s", apiErr.HTTPStatusCode, apiErr.Type, apiErr.Msg)
	}
	return err
}
