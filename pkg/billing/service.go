package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/lunchbox/pkg/accounts"
	"github.com/platinummonkey/lunchbox/pkg/apperrors"
	"github.com/platinummonkey/lunchbox/pkg/async"
	"github.com/platinummonkey/lunchbox/pkg/calendar"
	"github.com/platinummonkey/lunchbox/pkg/contextkeys"
	"github.com/platinummonkey/lunchbox/pkg/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var billingTracer = otel.Tracer("lunchbox/billing")

// maxApplyAttempts bounds the reload-and-decide loop when a concurrent
// writer changed the payment between read and update
const maxApplyAttempts = 3

// notificationTimeout bounds a single confirmation email
const notificationTimeout = 30 * time.Second

// AccountStore is the part of the account store billing uses
type AccountStore interface {
	GetByID(ctx context.Context, id string) (*accounts.Account, error)
	SetStripeCustomerID(ctx context.Context, id, customerID string) error
}

// Notifier sends the messages that follow a committed decision
type Notifier interface {
	OrderPaid(ctx context.Context, orderID string) error
}

// AccessNotifier is told when a parent's access is granted
type AccessNotifier interface {
	AccessGranted(ctx context.Context, userID string, expiresAt calendar.Date) error
}

// Config holds the settings of the billing service
type Config struct {
	WebhookSecret    string
	WebhookTolerance time.Duration
	// AppBaseURL prefixes the checkout success and cancel pages
	AppBaseURL string
}

// Service runs checkout creation and payment reconciliation
type Service struct {
	store    Store
	accounts AccountStore
	provider Provider
	config   Config
	logger   *observability.Logger
	notifier Notifier
	access   AccessNotifier
	dedup    EventDeduplicator
	metrics  *observability.Metrics
	now      func() time.Time
}

// Option configures optional collaborators of the Service
type Option func(*Service)

// WithNotifier sets the order confirmation notifier
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithAccessNotifier sets the access receipt notifier
func WithAccessNotifier(n AccessNotifier) Option {
	return func(s *Service) { s.access = n }
}

// WithDeduplicator sets the webhook event deduplicator
func WithDeduplicator(d EventDeduplicator) Option {
	return func(s *Service) {
		if d != nil {
			s.dedup = d
		}
	}
}

// WithMetrics records billing counters
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a billing service
func NewService(store Store, accountStore AccountStore, provider Provider, cfg Config, logger *observability.Logger, opts ...Option) *Service {
	if cfg.WebhookTolerance == 0 {
		cfg.WebhookTolerance = DefaultSignatureTolerance
	}
	s := &Service{
		store:    store,
		accounts: accountStore,
		provider: provider,
		config:   cfg,
		logger:   logger,
		dedup:    noopDeduplicator{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ConfirmCheckout applies the page a parent returned to after checkout.
// It only touches payments owned by userID.
func (s *Service) ConfirmCheckout(ctx context.Context, userID, sessionID string, outcome Outcome) (*Payment, error) {
	ctx, span := billingTracer.Start(ctx, "ConfirmCheckout",
		trace.WithAttributes(
			attribute.String("checkout_session_id", sessionID),
			attribute.String("outcome", string(outcome)),
		),
	)
	defer span.End()

	if sessionID == "" {
		return nil, apperrors.InvalidInput("sessionId is required")
	}
	t, err := TransitionForOutcome(outcome)
	if err != nil {
		return nil, err
	}

	p, err := s.settle(ctx, sessionID, t, "", userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return p, nil
}

// ApplyCheckoutEvent applies a verified webhook event. Events that do not
// settle a checkout session are acknowledged and ignored; events already
// processed are acknowledged without touching the store.
func (s *Service) ApplyCheckoutEvent(ctx context.Context, ev CheckoutEvent) (WebhookResult, error) {
	ctx, span := billingTracer.Start(ctx, "ApplyCheckoutEvent",
		trace.WithAttributes(
			attribute.String("event_id", ev.ID),
			attribute.String("event_type", string(ev.Type)),
			attribute.String("checkout_session_id", ev.CheckoutSessionID),
		),
	)
	defer span.End()

	t, ok := TransitionForEvent(ev)
	if !ok {
		s.countWebhook(ev.Type, "ignored")
		return WebhookResult{Success: true, EventID: ev.ID, Ignored: true}, nil
	}

	if ev.ID != "" {
		seen, err := s.dedup.Seen(ctx, ev.ID)
		if err != nil {
			s.logger.WithError(err).WithField("event_id", ev.ID).Warn("Event deduplication lookup failed")
		} else if seen {
			s.countWebhook(ev.Type, "duplicate")
			return WebhookResult{Success: true, EventID: ev.ID, Duplicate: true}, nil
		}
	}

	if ev.CheckoutSessionID == "" {
		s.countWebhook(ev.Type, "rejected")
		return WebhookResult{}, apperrors.InvalidInput("event %s has no checkout session", ev.ID)
	}

	p, err := s.settle(ctx, ev.CheckoutSessionID, t, ev.ID, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.countWebhook(ev.Type, "failed")
		return WebhookResult{EventID: ev.ID}, err
	}

	if ev.ID != "" {
		if err := s.dedup.Remember(ctx, ev.ID); err != nil {
			s.logger.WithError(err).WithField("event_id", ev.ID).Warn("Failed to remember processed event")
		}
	}

	s.countWebhook(ev.Type, "applied")
	return WebhookResult{Success: true, EventID: ev.ID, Status: p.Status}, nil
}

// settle loads the payment, decides and applies the decision, retrying
// when the row changed underneath
func (s *Service) settle(ctx context.Context, sessionID string, t Transition, eventID, ownerID string) (*Payment, error) {
	logger := s.loggerFor(ctx).
		WithField("checkout_session_id", sessionID).
		WithField("source", string(t.Source))

	for attempt := 1; attempt <= maxApplyAttempts; attempt++ {
		p, err := s.store.GetPaymentByCheckoutSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if ownerID != "" && p.UserID != ownerID {
			return nil, apperrors.PermissionDenied("Payment does not belong to this user")
		}

		env := Env{Now: s.now()}
		if NeedsHistory(p, t) {
			env.UserPayments, err = s.store.ListPaymentsByUser(ctx, p.UserID)
			if err != nil {
				return nil, err
			}
		}

		d := Reconcile(p, t, env)
		for _, problem := range d.Problems {
			logger.WithError(problem).WithField("payment_id", p.ID).Error("Payment integrity problem")
		}

		err = s.store.ApplyDecision(ctx, p, d, eventID)
		if errors.Is(err, ErrStalePayment) {
			logger.WithField("attempt", attempt).Debug("Payment changed concurrently, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}

		if d.Changed() {
			logger.WithFields(map[string]interface{}{
				"payment_id": p.ID,
				"from":       string(d.Previous),
				"to":         string(d.Patch.Status),
			}).Info("Payment status changed")
			if s.metrics != nil {
				s.metrics.PaymentTransitionsTotal.
					WithLabelValues(string(p.Type), string(d.Previous), string(d.Patch.Status), string(d.Source)).Inc()
			}
		}

		s.dispatch(ctx, d)
		return p.apply(d.Patch), nil
	}

	return nil, fmt.Errorf("failed to apply payment decision for session %s: %w", sessionID, ErrStalePayment)
}

// dispatch sends the notifications of a committed decision in the
// background. A failed email never undoes a payment.
func (s *Service) dispatch(ctx context.Context, d Decision) {
	bg := context.WithoutCancel(ctx)
	for _, effect := range d.Effects {
		switch {
		case effect.Kind == EffectSendOrderConfirmation && s.notifier != nil:
			orderID := effect.OrderID
			async.SafeGo(bg, s.logger, notificationTimeout, "order confirmation", func(ctx context.Context) error {
				return s.notifier.OrderPaid(ctx, orderID)
			})
		case effect.Kind == EffectGrantAccess && d.Changed() && s.access != nil:
			userID, expiresAt := effect.UserID, effect.AccessExpiresAt
			async.SafeGo(bg, s.logger, notificationTimeout, "access confirmation", func(ctx context.Context) error {
				return s.access.AccessGranted(ctx, userID, expiresAt)
			})
		}
	}
}

func (s *Service) countWebhook(eventType EventType, result string) {
	if s.metrics != nil {
		s.metrics.WebhookEventsTotal.WithLabelValues(string(eventType), result).Inc()
	}
}

// loggerFor prefers the request logger carried by ctx and falls back to the
// service logger
func (s *Service) loggerFor(ctx context.Context) *observability.Logger {
	if _, ok := ctx.Value(contextkeys.LoggerKey).(*observability.Logger); ok {
		return observability.FromContext(ctx)
	}
	return observability.UpdateLoggerWithTraceContext(ctx, s.logger)
}
