package billing

import "time"

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// Valid reports whether s is a known payment status
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusRefunded,
		PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}

// PaymentType represents what a payment pays for
type PaymentType string

const (
	PaymentTypeAccessFee PaymentType = "access-fee"
	PaymentTypeOrder     PaymentType = "order"
)

// Payment is one checkout attempt
type Payment struct {
	ID                string        `json:"id"`
	UserID            string        `json:"userId"`
	OrderID           *string       `json:"orderId,omitempty"`
	CheckoutSessionID string        `json:"checkoutSessionId"`
	PaymentIntentID   *string       `json:"paymentIntentId,omitempty"`
	AmountCents       int64         `json:"amount"`
	Currency          string        `json:"currency"`
	Type              PaymentType   `json:"type"`
	Status            PaymentStatus `json:"status"`
	WebhookProcessed  bool          `json:"webhookProcessed"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// apply returns a copy of p with patch applied
func (p Payment) apply(patch PaymentPatch) *Payment {
	p.Status = patch.Status
	p.WebhookProcessed = patch.WebhookProcessed
	if patch.PaymentIntentID != nil {
		id := *patch.PaymentIntentID
		p.PaymentIntentID = &id
	}
	return &p
}

// EventType is a Stripe webhook event type
type EventType string

const (
	EventCheckoutSessionCompleted             EventType = "checkout.session.completed"
	EventCheckoutSessionExpired               EventType = "checkout.session.expired"
	EventCheckoutSessionAsyncPaymentSucceeded EventType = "checkout.session.async_payment_succeeded"
	EventCheckoutSessionAsyncPaymentFailed    EventType = "checkout.session.async_payment_failed"
)

// CheckoutEvent is a webhook event reduced to the fields reconciliation reads
type CheckoutEvent struct {
	ID                string    `json:"id"`
	Type              EventType `json:"type"`
	CheckoutSessionID string    `json:"checkoutSessionId"`
	PaymentIntentID   string    `json:"paymentIntentId,omitempty"`
}

// Outcome is the page a parent returns to after checkout
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeCancel  Outcome = "cancel"
)

// WebhookResult tells the webhook endpoint whether the event was processed
type WebhookResult struct {
	Success   bool          `json:"success"`
	EventID   string        `json:"eventId,omitempty"`
	Status    PaymentStatus `json:"status,omitempty"`
	Ignored   bool          `json:"ignored,omitempty"`
	Duplicate bool          `json:"duplicate,omitempty"`
}

// CheckoutSession is a hosted payment page created at the provider
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CheckoutItem describes what an order checkout charges for
type CheckoutItem struct {
	OrderID     string
	AmountCents int64
	Name        string
	Description string
}

// CustomerParams are the fields sent when creating a provider customer
type CustomerParams struct {
	Email    string
	Name     string
	Metadata map[string]string
}

// CheckoutSessionParams are the fields sent when creating a checkout session
type CheckoutSessionParams struct {
	CustomerID  string
	Currency    string
	AmountCents int64
	Name        string
	Description string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}
