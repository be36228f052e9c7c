package billing

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/platinummonkey/lunchbox/pkg/apperrors"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// HandleWebhook verifies and applies a raw webhook delivery.
//
// A bad signature or payload is returned as InvalidInput. A missing or
// duplicated payment will not appear by retrying, so it is logged and
// reported as an unsuccessful result without an error.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	event, err := VerifyEvent(payload, signature, s.config.WebhookSecret, s.config.WebhookTolerance)
	if err != nil {
		if isSignatureError(err) {
			s.countWebhook("", "bad_signature")
			return WebhookResult{}, apperrors.InvalidInput("webhook signature verification failed: %v", err)
		}
		return WebhookResult{}, apperrors.InvalidInput("invalid webhook payload: %v", err)
	}

	ev, err := CheckoutEventFrom(event)
	if err != nil {
		return WebhookResult{}, err
	}

	logger := s.loggerFor(ctx).
		WithField("event_id", ev.ID).
		WithField("event_type", string(ev.Type))

	result, err := s.ApplyCheckoutEvent(ctx, ev)
	if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrDataIntegrity) {
		logger.WithError(err).Warn("Webhook event could not be applied")
		return WebhookResult{Success: false, EventID: ev.ID}, nil
	}
	if err != nil {
		return result, err
	}
	if result.Ignored {
		logger.Debug("Ignoring unhandled webhook event")
	}
	return result, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

// CheckoutEventFrom reduces a decoded event to the fields reconciliation
// reads. The session object is only decoded for checkout.session.* events.
func CheckoutEventFrom(event stripe.Event) (CheckoutEvent, error) {
	if event.Type == "" {
		return CheckoutEvent{}, apperrors.InvalidInput("webhook payload has no event type")
	}

	ev := CheckoutEvent{ID: event.ID, Type: EventType(event.Type)}
	if _, handled := TransitionForEvent(ev); !handled {
		return ev, nil
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return CheckoutEvent{}, apperrors.InvalidInput("event %s has no data object", event.ID)
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return CheckoutEvent{}, apperrors.InvalidInput("invalid checkout session object: %v", err)
	}
	ev.CheckoutSessionID = session.ID
	if session.PaymentIntent != nil {
		ev.PaymentIntentID = session.PaymentIntent.ID
	}
	return ev, nil
}
