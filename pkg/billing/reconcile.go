package billing

import (
	"time"

	"github.com/platinummonkey/lunchbox/pkg/access"
	"github.com/platinummonkey/lunchbox/pkg/apperrors"
	"github.com/platinummonkey/lunchbox/pkg/calendar"
)

// Source identifies which entry point produced a transition
type Source string

const (
	// SourceCheckoutPage is the parent landing on the success or cancel page
	SourceCheckoutPage Source = "checkout-page"
	// SourceWebhook is a signature-verified provider event
	SourceWebhook Source = "webhook"
)

// Transition is a requested move of a payment to a target status
type Transition struct {
	Target          PaymentStatus
	Source          Source
	PaymentIntentID string
}

// TransitionForEvent maps a webhook event to its target status. Events that
// do not settle a checkout session return false.
func TransitionForEvent(ev CheckoutEvent) (Transition, bool) {
	var target PaymentStatus
	switch ev.Type {
	case EventCheckoutSessionCompleted, EventCheckoutSessionAsyncPaymentSucceeded:
		target = PaymentStatusPaid
	case EventCheckoutSessionExpired, EventCheckoutSessionAsyncPaymentFailed:
		target = PaymentStatusFailed
	default:
		return Transition{}, false
	}
	return Transition{Target: target, Source: SourceWebhook, PaymentIntentID: ev.PaymentIntentID}, true
}

// TransitionForOutcome maps the page a parent returned to onto a target status
func TransitionForOutcome(o Outcome) (Transition, error) {
	switch o {
	case OutcomeSuccess:
		return Transition{Target: PaymentStatusPaid, Source: SourceCheckoutPage}, nil
	case OutcomeCancel:
		return Transition{Target: PaymentStatusCancelled, Source: SourceCheckoutPage}, nil
	default:
		return Transition{}, apperrors.InvalidInput("unknown checkout outcome: %q", string(o))
	}
}

// Env is everything besides the payment itself a decision depends on
type Env struct {
	Now time.Time
	// UserPayments is the full payment history of the payment's owner.
	// It is only read when NeedsHistory is true.
	UserPayments []*Payment
}

// PaymentPatch is the new state of the payment row. Every field is written,
// so applying the same patch twice is harmless.
type PaymentPatch struct {
	Status           PaymentStatus
	PaymentIntentID  *string
	WebhookProcessed bool
}

// EffectKind names a side effect of a payment transition
type EffectKind string

const (
	EffectGrantAccess           EffectKind = "grant-access"
	EffectRevokeAccess          EffectKind = "revoke-access"
	EffectSetOrderPaymentStatus EffectKind = "set-order-payment-status"
	EffectSendOrderConfirmation EffectKind = "send-order-confirmation"
)

// Effect is a change to a record other than the payment
type Effect struct {
	Kind            EffectKind
	UserID          string
	OrderID         string
	AccessExpiresAt calendar.Date
	PaymentStatus   PaymentStatus
}

// Persistent reports whether the effect is a store write. Notifications are
// sent after the writes commit.
func (e Effect) Persistent() bool {
	return e.Kind != EffectSendOrderConfirmation
}

// Decision is the outcome of reconciling one transition
type Decision struct {
	PaymentID string
	UserID    string
	Previous  PaymentStatus
	Source    Source
	Patch     PaymentPatch
	Effects   []Effect
	// Problems are integrity errors found while deciding. They are logged;
	// the rest of the decision still applies.
	Problems []error
	// DecidedAt is the clock reading the decision was computed with
	DecidedAt time.Time
}

// Changed reports whether the payment status moves
func (d Decision) Changed() bool {
	return d.Previous != d.Patch.Status
}

// StoreEffects returns the effects written together with the payment patch
func (d Decision) StoreEffects() []Effect {
	var effects []Effect
	for _, e := range d.Effects {
		if e.Persistent() {
			effects = append(effects, e)
		}
	}
	return effects
}

// accessEffect returns the grant or revoke effect of the decision, if any
func (d Decision) accessEffect() (Effect, bool) {
	for _, e := range d.Effects {
		if e.Kind == EffectGrantAccess || e.Kind == EffectRevokeAccess {
			return e, true
		}
	}
	return Effect{}, false
}

// withoutKind returns effects minus those of the given kind
func withoutKind(effects []Effect, kind EffectKind) []Effect {
	kept := make([]Effect, 0, len(effects))
	for _, e := range effects {
		if e.Kind != kind {
			kept = append(kept, e)
		}
	}
	return kept
}

// Notifications returns the effects dispatched after the store commit
func (d Decision) Notifications() []Effect {
	var effects []Effect
	for _, e := range d.Effects {
		if !e.Persistent() {
			effects = append(effects, e)
		}
	}
	return effects
}

// NeedsHistory reports whether Reconcile needs the owner's payment history
// for this transition
func NeedsHistory(p *Payment, t Transition) bool {
	return p.Type == PaymentTypeAccessFee && resolveTarget(p, t) == PaymentStatusFailed
}

// Reconcile decides the new state of p and the side effects of moving it
// to t.Target. It reads no clock and touches no store: the result depends
// only on its arguments, so redelivered events produce the same decision.
func Reconcile(p *Payment, t Transition, env Env) Decision {
	target := resolveTarget(p, t)
	d := Decision{
		PaymentID: p.ID,
		UserID:    p.UserID,
		Previous:  p.Status,
		Source:    t.Source,
		DecidedAt: env.Now,
		Patch: PaymentPatch{
			Status:           target,
			WebhookProcessed: p.WebhookProcessed || t.Source == SourceWebhook,
		},
	}
	if t.PaymentIntentID != "" {
		id := t.PaymentIntentID
		d.Patch.PaymentIntentID = &id
	}

	if target != t.Target {
		// the transition was overridden; the current status and its effects stand
		return d
	}

	switch p.Type {
	case PaymentTypeAccessFee:
		d.Effects = accessEffects(p, target, env)
	case PaymentTypeOrder:
		if p.OrderID == nil || *p.OrderID == "" {
			d.Problems = append(d.Problems,
				apperrors.DataIntegrity("order payment %s missing orderId", p.ID))
			break
		}
		d.Effects = append(d.Effects, Effect{
			Kind:          EffectSetOrderPaymentStatus,
			UserID:        p.UserID,
			OrderID:       *p.OrderID,
			PaymentStatus: target,
		})
		if target == PaymentStatusPaid && p.Status != PaymentStatusPaid {
			d.Effects = append(d.Effects, Effect{
				Kind:    EffectSendOrderConfirmation,
				UserID:  p.UserID,
				OrderID: *p.OrderID,
			})
		}
	}

	return d
}

// resolveTarget applies the precedence rules between entry points:
// refunds are managed out of band and are never moved, and a checkout page
// never overrides a status already settled by a webhook.
func resolveTarget(p *Payment, t Transition) PaymentStatus {
	if p.Status == PaymentStatusRefunded {
		return PaymentStatusRefunded
	}
	if t.Source == SourceCheckoutPage && p.WebhookProcessed {
		return p.Status
	}
	return t.Target
}

func accessEffects(p *Payment, target PaymentStatus, env Env) []Effect {
	switch target {
	case PaymentStatusPaid:
		return []Effect{{
			Kind:            EffectGrantAccess,
			UserID:          p.UserID,
			AccessExpiresAt: access.NextAnnualExpiration(env.Now),
		}}
	case PaymentStatusFailed:
		if HasOtherPaidAccessFee(p, env.UserPayments, env.Now) {
			return nil
		}
		return []Effect{{Kind: EffectRevokeAccess, UserID: p.UserID}}
	default:
		return nil
	}
}

// HasOtherPaidAccessFee reports whether the owner of p holds another paid
// access-fee payment created between the start of the current school year
// and now
func HasOtherPaidAccessFee(p *Payment, history []*Payment, now time.Time) bool {
	windowStart := access.PreviousJulyFirst(now).Time()
	for _, other := range history {
		if other == nil || other.ID == p.ID || other.UserID != p.UserID {
			continue
		}
		if other.Type != PaymentTypeAccessFee || other.Status != PaymentStatusPaid {
			continue
		}
		if other.CreatedAt.Before(windowStart) || other.CreatedAt.After(now) {
			continue
		}
		return true
	}
	return false
}
