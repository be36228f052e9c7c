package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/lunchbox/pkg/accounts"
	"github.com/platinummonkey/lunchbox/pkg/apperrors"
	"github.com/platinummonkey/lunchbox/pkg/calendar"
	"github.com/platinummonkey/lunchbox/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

// memoryStore is an in-memory Store that applies decisions the way the
// Postgres store does
type memoryStore struct {
	mu          sync.Mutex
	payments    map[string]*Payment
	access      map[string]*calendar.Date
	orderStatus map[string]PaymentStatus
	events      []string
	staleOnce   bool
	applyErr    error
}

func newMemoryStore(payments ...*Payment) *memoryStore {
	s := &memoryStore{
		payments:    map[string]*Payment{},
		access:      map[string]*calendar.Date{},
		orderStatus: map[string]PaymentStatus{},
	}
	for _, p := range payments {
		s.payments[p.ID] = p
	}
	return s
}

func (s *memoryStore) CreatePayment(ctx context.Context, p *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.payments {
		if existing.CheckoutSessionID == p.CheckoutSessionID {
			return apperrors.DataIntegrity("duplicate checkout session")
		}
	}
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s *memoryStore) GetPaymentByCheckoutSession(ctx context.Context, sessionID string) (*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found []*Payment
	for _, p := range s.payments {
		if p.CheckoutSessionID == sessionID {
			cp := *p
			found = append(found, &cp)
		}
	}
	switch len(found) {
	case 0:
		return nil, apperrors.NotFound("Payment not found")
	case 1:
		return found[0], nil
	default:
		return nil, apperrors.DataIntegrity("multiple payments")
	}
}

func (s *memoryStore) ListPaymentsByUser(ctx context.Context, userID string) ([]*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Payment
	for _, p := range s.payments {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memoryStore) ApplyDecision(ctx context.Context, current *Payment, d Decision, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return s.applyErr
	}
	if s.staleOnce {
		s.staleOnce = false
		return ErrStalePayment
	}
	stored := s.payments[d.PaymentID]
	if stored.Status != current.Status || stored.WebhookProcessed != current.WebhookProcessed {
		return ErrStalePayment
	}
	s.payments[d.PaymentID] = stored.apply(d.Patch)
	effects := d.StoreEffects()
	if e, ok := d.accessEffect(); ok && e.Kind == EffectRevokeAccess {
		var history []*Payment
		for _, p := range s.payments {
			if p.UserID == e.UserID && p.Type == PaymentTypeAccessFee {
				history = append(history, p)
			}
		}
		if HasOtherPaidAccessFee(current, history, d.DecidedAt) {
			effects = withoutKind(effects, EffectRevokeAccess)
		}
	}
	for _, e := range effects {
		switch e.Kind {
		case EffectGrantAccess:
			date := e.AccessExpiresAt
			s.access[e.UserID] = &date
		case EffectRevokeAccess:
			s.access[e.UserID] = nil
		case EffectSetOrderPaymentStatus:
			s.orderStatus[e.OrderID] = e.PaymentStatus
		}
	}
	s.events = append(s.events, eventID)
	return nil
}

func (s *memoryStore) payment(id string) Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.payments[id]
}

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]*accounts.Account
}

func (f *fakeAccounts) GetByID(ctx context.Context, id string) (*accounts.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, apperrors.NotFound("User not found")
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) SetStripeCustomerID(ctx context.Context, id, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return apperrors.NotFound("User not found")
	}
	a.StripeCustomerID = &customerID
	return nil
}

type fakeProvider struct {
	customers []CustomerParams
	sessions  []CheckoutSessionParams
	session   *CheckoutSession
	err       error
}

func (f *fakeProvider) CreateCustomer(ctx context.Context, params CustomerParams) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.customers = append(f.customers, params)
	return "cus_new", nil
}

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sessions = append(f.sessions, params)
	if f.session != nil {
		return f.session, nil
	}
	return &CheckoutSession{ID: "cs_new", URL: "https://checkout.stripe.com/c/pay/cs_new"}, nil
}

type recordingNotifier struct {
	paid chan string
}

func (n *recordingNotifier) OrderPaid(ctx context.Context, orderID string) error {
	n.paid <- orderID
	return nil
}

type memoryDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memoryDedup) Seen(ctx context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[id], nil
}

func (d *memoryDedup) Remember(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[id] = true
	return nil
}

var serviceNow = time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC)

func newTestService(store Store, opts ...Option) (*Service, *fakeProvider, *fakeAccounts) {
	provider := &fakeProvider{}
	accts := &fakeAccounts{accounts: map[string]*accounts.Account{
		"user-1": {ID: "user-1", Subject: "sub-1", Email: "anna@example.com", FirstName: "Anna", LastName: "Peeters"},
	}}
	logger := observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
	opts = append([]Option{WithClock(func() time.Time { return serviceNow })}, opts...)
	svc := NewService(store, accts, provider, Config{
		WebhookSecret: "whsec_test",
		AppBaseURL:    "https://app.example.com",
	}, logger, opts...)
	return svc, provider, accts
}

func storedAccessFee(id, session string, status PaymentStatus, created time.Time) *Payment {
	return &Payment{
		ID: id, UserID: "user-1", CheckoutSessionID: session, AmountCents: 1000, Currency: "eur",
		Type: PaymentTypeAccessFee, Status: status, CreatedAt: created,
	}
}

func storedOrder(id, session, orderID string, status PaymentStatus) *Payment {
	return &Payment{
		ID: id, UserID: "user-1", OrderID: strPtr(orderID), CheckoutSessionID: session, AmountCents: 1450,
		Currency: "eur", Type: PaymentTypeOrder, Status: status, CreatedAt: serviceNow,
	}
}

func TestConfirmCheckout_SuccessGrantsAccess(t *testing.T) {
	store := newMemoryStore(storedAccessFee("pay-1", "cs_1", PaymentStatusPending, serviceNow))
	svc, _, _ := newTestService(store)

	p, err := svc.ConfirmCheckout(context.Background(), "user-1", "cs_1", OutcomeSuccess)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPaid, p.Status)
	assert.False(t, p.WebhookProcessed)

	require.NotNil(t, store.access["user-1"])
	assert.Equal(t, calendar.NewDate(2026, time.June, 30), *store.access["user-1"])
}

func TestConfirmCheckout_Cancel(t *testing.T) {
	store := newMemoryStore(storedOrder("pay-1", "cs_1", "order-1", PaymentStatusPending))
	svc, _, _ := newTestService(store)

	p, err := svc.ConfirmCheckout(context.Background(), "user-1", "cs_1", OutcomeCancel)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusCancelled, p.Status)
	assert.Equal(t, PaymentStatusCancelled, store.orderStatus["order-1"])
}

func TestConfirmCheckout_Errors(t *testing.T) {
	store := newMemoryStore(
		storedAccessFee("pay-1", "cs_1", PaymentStatusPending, serviceNow),
		storedAccessFee("pay-2", "cs_dup", PaymentStatusPending, serviceNow),
		storedAccessFee("pay-3", "cs_dup", PaymentStatusPending, serviceNow),
	)
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	_, err := svc.ConfirmCheckout(ctx, "user-2", "cs_1", OutcomeSuccess)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = svc.ConfirmCheckout(ctx, "user-1", "cs_missing", OutcomeSuccess)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.ConfirmCheckout(ctx, "user-1", "cs_dup", OutcomeSuccess)
	assert.ErrorIs(t, err, apperrors.ErrDataIntegrity)

	_, err = svc.ConfirmCheckout(ctx, "user-1", "cs_1", Outcome("maybe"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.ConfirmCheckout(ctx, "user-1", "", OutcomeSuccess)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	assert.Equal(t, PaymentStatusPending, store.payment("pay-1").Status)
}

func TestConfirmCheckout_DoesNotOverrideWebhook(t *testing.T) {
	p := storedAccessFee("pay-1", "cs_1", PaymentStatusFailed, serviceNow)
	p.WebhookProcessed = true
	store := newMemoryStore(p)
	svc, _, _ := newTestService(store)

	got, err := svc.ConfirmCheckout(context.Background(), "user-1", "cs_1", OutcomeSuccess)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusFailed, got.Status)
	assert.Nil(t, store.access["user-1"])
}

func TestConfirmCheckout_RetriesStaleWrite(t *testing.T) {
	store := newMemoryStore(storedAccessFee("pay-1", "cs_1", PaymentStatusPending, serviceNow))
	store.staleOnce = true
	svc, _, _ := newTestService(store)

	p, err := svc.ConfirmCheckout(context.Background(), "user-1", "cs_1", OutcomeSuccess)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPaid, p.Status)
}

func TestConfirmCheckout_StoreFailure(t *testing.T) {
	store := newMemoryStore(storedAccessFee("pay-1", "cs_1", PaymentStatusPending, serviceNow))
	store.applyErr = errors.New("connection refused")
	svc, _, _ := newTestService(store)

	_, err := svc.ConfirmCheckout(context.Background(), "user-1", "cs_1", OutcomeSuccess)
	assert.ErrorContains(t, err, "connection refused")
}

func TestApplyCheckoutEvent_OrderPaidSendsConfirmationOnce(t *testing.T) {
	store := newMemoryStore(storedOrder("pay-1", "cs_1", "order-1", PaymentStatusPending))
	notifier := &recordingNotifier{paid: make(chan string, 4)}
	svc, _, _ := newTestService(store, WithNotifier(notifier))
	ev := CheckoutEvent{ID: "evt_1", Type: EventCheckoutSessionCompleted, CheckoutSessionID: "cs_1", PaymentIntentID: "pi_1"}

	result, err := svc.ApplyCheckoutEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, PaymentStatusPaid, result.Status)

	select {
	case orderID := <-notifier.paid:
		assert.Equal(t, "order-1", orderID)
	case <-time.After(time.Second):
		t.Fatal("order confirmation not sent")
	}

	// redelivery without deduplication: same record, no second email
	result, err = svc.ApplyCheckoutEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, result.Success)

	stored := store.payment("pay-1")
	assert.Equal(t, PaymentStatusPaid, stored.Status)
	assert.True(t, stored.WebhookProcessed)
	require.NotNil(t, stored.PaymentIntentID)
	assert.Equal(t, "pi_1", *stored.PaymentIntentID)
	assert.Equal(t, PaymentStatusPaid, store.orderStatus["order-1"])

	select {
	case orderID := <-notifier.paid:
		t.Fatalf("unexpected second confirmation for %s", orderID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestApplyCheckoutEvent_IgnoresUnhandledTypes(t *testing.T) {
	store := newMemoryStore()
	svc, _, _ := newTestService(store)

	result, err := svc.ApplyCheckoutEvent(context.Background(), CheckoutEvent{ID: "evt_1", Type: "invoice.paid"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Ignored)
}

func TestApplyCheckoutEvent_Deduplicates(t *testing.T) {
	store := newMemoryStore(storedAccessFee("pay-1", "cs_1", PaymentStatusPending, serviceNow))
	dedup := &memoryDedup{seen: map[string]bool{}}
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	svc, _, _ := newTestService(store, WithDeduplicator(dedup), WithMetrics(metrics))
	ev := CheckoutEvent{ID: "evt_1", Type: EventCheckoutSessionCompleted, CheckoutSessionID: "cs_1"}

	_, err := svc.ApplyCheckoutEvent(context.Background(), ev)
	require.NoError(t, err)

	result, err := svc.ApplyCheckoutEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Len(t, store.events, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WebhookEventsTotal.WithLabelValues(string(EventCheckoutSessionCompleted), "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WebhookEventsTotal.WithLabelValues(string(EventCheckoutSessionCompleted), "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PaymentTransitionsTotal.WithLabelValues("access-fee", "pending", "paid", "webhook")))
}

func TestApplyCheckoutEvent_AccessFeeFailureKeepsOtherPaidFee(t *testing.T) {
	store := newMemoryStore(
		storedAccessFee("pay-old", "cs_old", PaymentStatusPaid, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)),
		storedAccessFee("pay-1", "cs_1", PaymentStatusPending, serviceNow),
	)
	expires := calendar.NewDate(2026, time.June, 30)
	store.access["user-1"] = &expires
	svc, _, _ := newTestService(store)

	_, err := svc.ApplyCheckoutEvent(context.Background(), CheckoutEvent{ID: "evt_1", Type: EventCheckoutSessionExpired, CheckoutSessionID: "cs_1"})
	require.NoError(t, err)

	assert.Equal(t, PaymentStatusFailed, store.payment("pay-1").Status)
	require.NotNil(t, store.access["user-1"])
	assert.Equal(t, expires, *store.access["user-1"])
}

func TestApplyCheckoutEvent_AccessFeeFailureRevokes(t *testing.T) {
	store := newMemoryStore(storedAccessFee("pay-1", "cs_1", PaymentStatusPending, serviceNow))
	expires := calendar.NewDate(2026, time.June, 30)
	store.access["user-1"] = &expires
	svc, _, _ := newTestService(store)

	_, err := svc.ApplyCheckoutEvent(context.Background(), CheckoutEvent{ID: "evt_1", Type: EventCheckoutSessionAsyncPaymentFailed, CheckoutSessionID: "cs_1"})
	require.NoError(t, err)
	assert.Nil(t, store.access["user-1"])
}

// settlingStore settles a second checkout session of the same user while
// the failure of the first one is being decided
type settlingStore struct {
	*memoryStore
	settle func()
}

func (s *settlingStore) ListPaymentsByUser(ctx context.Context, userID string) ([]*Payment, error) {
	history, err := s.memoryStore.ListPaymentsByUser(ctx, userID)
	if s.settle != nil {
		settle := s.settle
		s.settle = nil
		settle()
	}
	return history, err
}

func TestApplyCheckoutEvent_FailureRacingRetrySuccessKeepsAccess(t *testing.T) {
	store := &settlingStore{memoryStore: newMemoryStore(
		storedAccessFee("pay-a", "cs_a", PaymentStatusPending, serviceNow.Add(-time.Hour)),
		storedAccessFee("pay-b", "cs_b", PaymentStatusPending, serviceNow),
	)}
	svc, _, _ := newTestService(store)
	store.settle = func() {
		_, err := svc.ApplyCheckoutEvent(context.Background(), CheckoutEvent{ID: "evt_b", Type: EventCheckoutSessionCompleted, CheckoutSessionID: "cs_b"})
		require.NoError(t, err)
		require.NotNil(t, store.access["user-1"])
	}

	_, err := svc.ApplyCheckoutEvent(context.Background(), CheckoutEvent{ID: "evt_a", Type: EventCheckoutSessionExpired, CheckoutSessionID: "cs_a"})
	require.NoError(t, err)

	assert.Equal(t, PaymentStatusFailed, store.payment("pay-a").Status)
	assert.Equal(t, PaymentStatusPaid, store.payment("pay-b").Status)
	require.NotNil(t, store.access["user-1"], "paid access fee must keep access")
	assert.Equal(t, calendar.NewDate(2026, time.June, 30), *store.access["user-1"])
}

func TestHandleWebhook(t *testing.T) {
	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "payment_intent": {"id": "pi_1", "object": "payment_intent"}}}
	}`)

	t.Run("applies signed event", func(t *testing.T) {
		store := newMemoryStore(storedAccessFee("pay-1", "cs_1", PaymentStatusPending, serviceNow))
		svc, _, _ := newTestService(store)

		result, err := svc.HandleWebhook(context.Background(), payload, SignPayload(payload, "whsec_test", time.Now()))
		require.NoError(t, err)
		assert.True(t, result.Success)

		stored := store.payment("pay-1")
		assert.Equal(t, PaymentStatusPaid, stored.Status)
		require.NotNil(t, stored.PaymentIntentID)
		assert.Equal(t, "pi_1", *stored.PaymentIntentID)
	})

	t.Run("bad signature", func(t *testing.T) {
		svc, _, _ := newTestService(newMemoryStore())

		_, err := svc.HandleWebhook(context.Background(), payload, SignPayload(payload, "whsec_wrong", time.Now()))
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("unknown session is not an error", func(t *testing.T) {
		svc, _, _ := newTestService(newMemoryStore())

		result, err := svc.HandleWebhook(context.Background(), payload, SignPayload(payload, "whsec_test", time.Now()))
		require.NoError(t, err)
		assert.False(t, result.Success)
	})

	t.Run("malformed payload", func(t *testing.T) {
		svc, _, _ := newTestService(newMemoryStore())
		bad := []byte(`{"id":`)

		_, err := svc.HandleWebhook(context.Background(), bad, SignPayload(bad, "whsec_test", time.Now()))
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestCheckoutEventFrom_PaymentIntentForms(t *testing.T) {
	tests := []struct {
		name   string
		intent string
		want   string
	}{
		{name: "string", intent: `"pi_1"`, want: "pi_1"},
		{name: "object", intent: `{"id":"pi_2","object":"payment_intent"}`, want: "pi_2"},
		{name: "null", intent: `null`, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","payment_intent":` + tt.intent + `}}}`)
			var event stripe.Event
			require.NoError(t, json.Unmarshal(payload, &event))

			ev, err := CheckoutEventFrom(event)
			require.NoError(t, err)
			assert.Equal(t, "cs_1", ev.CheckoutSessionID)
			assert.Equal(t, tt.want, ev.PaymentIntentID)
		})
	}
}

func TestCheckoutEventFrom_Errors(t *testing.T) {
	_, err := CheckoutEventFrom(stripe.Event{ID: "evt_1"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = CheckoutEventFrom(stripe.Event{ID: "evt_2", Type: "checkout.session.expired"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	ev, err := CheckoutEventFrom(stripe.Event{ID: "evt_3", Type: "invoice.paid"})
	require.NoError(t, err)
	assert.Empty(t, ev.CheckoutSessionID)
}

func TestCreateAccessFeeCheckout(t *testing.T) {
	store := newMemoryStore()
	svc, provider, accts := newTestService(store)

	session, err := svc.CreateAccessFeeCheckout(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "cs_new", session.ID)

	require.Len(t, provider.customers, 1)
	assert.Equal(t, "Anna Peeters", provider.customers[0].Name)
	require.NotNil(t, accts.accounts["user-1"].StripeCustomerID)
	assert.Equal(t, "cus_new", *accts.accounts["user-1"].StripeCustomerID)

	require.Len(t, provider.sessions, 1)
	params := provider.sessions[0]
	assert.Equal(t, "cus_new", params.CustomerID)
	assert.Equal(t, int64(1000), params.AmountCents)
	assert.Equal(t, "eur", params.Currency)
	assert.Equal(t, "https://app.example.com/onboarding/subscription/success?session_id={CHECKOUT_SESSION_ID}", params.SuccessURL)
	assert.Equal(t, "https://app.example.com/onboarding/subscription", params.CancelURL)
	assert.Equal(t, "access-fee", params.Metadata["type"])

	p, err := store.GetPaymentByCheckoutSession(context.Background(), "cs_new")
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPending, p.Status)
	assert.Equal(t, PaymentTypeAccessFee, p.Type)
	assert.Nil(t, p.OrderID)
}

func TestCreateOrderCheckout(t *testing.T) {
	store := newMemoryStore()
	svc, provider, accts := newTestService(store)
	accts.accounts["user-1"].StripeCustomerID = strPtr("cus_existing")

	description := OrderDescription("week-order", calendar.NewDate(2025, time.January, 6), calendar.NewDate(2025, time.January, 12), 4)
	assert.Equal(t, "week order from 2025-01-06 to 2025-01-12 (4 days)", description)

	_, err := svc.CreateOrderCheckout(context.Background(), "user-1", CheckoutItem{
		OrderID:     "order-1",
		AmountCents: 1160,
		Description: description,
	})
	require.NoError(t, err)

	assert.Empty(t, provider.customers)
	require.Len(t, provider.sessions, 1)
	params := provider.sessions[0]
	assert.Equal(t, "cus_existing", params.CustomerID)
	assert.Equal(t, "Sandwich Order", params.Name)
	assert.Equal(t, "https://app.example.com/orders/cancel?session_id={CHECKOUT_SESSION_ID}", params.CancelURL)
	assert.Equal(t, "order-1", params.Metadata["orderId"])

	p, err := store.GetPaymentByCheckoutSession(context.Background(), "cs_new")
	require.NoError(t, err)
	require.NotNil(t, p.OrderID)
	assert.Equal(t, "order-1", *p.OrderID)
	assert.Equal(t, int64(1160), p.AmountCents)
}

func TestCreateOrderCheckout_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid item", func(t *testing.T) {
		svc, _, _ := newTestService(newMemoryStore())
		_, err := svc.CreateOrderCheckout(ctx, "user-1", CheckoutItem{AmountCents: 100})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

		_, err = svc.CreateOrderCheckout(ctx, "user-1", CheckoutItem{OrderID: "order-1"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("session without url", func(t *testing.T) {
		store := newMemoryStore()
		svc, provider, _ := newTestService(store)
		provider.session = &CheckoutSession{ID: "cs_nourl"}

		_, err := svc.CreateOrderCheckout(ctx, "user-1", CheckoutItem{OrderID: "order-1", AmountCents: 310})
		require.Error(t, err)
		_, lookupErr := store.GetPaymentByCheckoutSession(ctx, "cs_nourl")
		assert.ErrorIs(t, lookupErr, apperrors.ErrNotFound)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, _, _ := newTestService(newMemoryStore())
		_, err := svc.CreateOrderCheckout(ctx, "user-404", CheckoutItem{OrderID: "order-1", AmountCents: 310})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestAccessStatus(t *testing.T) {
	svc, _, accts := newTestService(newMemoryStore())

	status, err := svc.AccessStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, status.Active)
	assert.Equal(t, calendar.NewDate(2026, time.June, 30), status.RenewalDate)

	expires := calendar.NewDate(2026, time.June, 30)
	accts.accounts["user-1"].AccessExpiresAt = &expires
	status, err = svc.AccessStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, status.Active)
}

type recordingAccessNotifier struct {
	granted chan calendar.Date
}

func (n *recordingAccessNotifier) AccessGranted(ctx context.Context, userID string, expiresAt calendar.Date) error {
	n.granted <- expiresAt
	return nil
}

func TestApplyCheckoutEvent_AccessGrantedNotifiesOnce(t *testing.T) {
	store := newMemoryStore(storedAccessFee("pay-1", "cs_1", PaymentStatusPending, serviceNow))
	notifier := &recordingAccessNotifier{granted: make(chan calendar.Date, 4)}
	svc, _, _ := newTestService(store, WithAccessNotifier(notifier))
	ev := CheckoutEvent{ID: "evt_1", Type: EventCheckoutSessionCompleted, CheckoutSessionID: "cs_1"}

	_, err := svc.ApplyCheckoutEvent(context.Background(), ev)
	require.NoError(t, err)

	select {
	case expires := <-notifier.granted:
		assert.Equal(t, calendar.NewDate(2026, time.June, 30), expires)
	case <-time.After(time.Second):
		t.Fatal("access confirmation not sent")
	}

	_, err = svc.ApplyCheckoutEvent(context.Background(), ev)
	require.NoError(t, err)

	select {
	case <-notifier.granted:
		t.Fatal("unexpected second access confirmation")
	case <-time.After(50 * time.Millisecond):
	}
}
