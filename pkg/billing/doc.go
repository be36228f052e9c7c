// Package billing creates checkout sessions and reconciles payments.
//
// Two entry points settle a payment: the checkout page a parent returns to
// (ConfirmCheckout) and the payment provider's signed webhook
// (HandleWebhook). Both reduce their input to a Transition and hand it to
// Reconcile, a pure function that returns the new payment state together
// with its side effects. The Store applies the state and the store effects
// in one transaction; notifications are sent after the commit.
//
// Precedence between the entry points:
//
//   - a refunded payment is never moved
//   - a checkout page never overrides a status set by a webhook
//   - an access-fee failure only revokes access when the parent holds no
//     other paid access fee in the current school year
//
// Webhook deliveries may arrive more than once and out of order. Applying
// the same event twice yields the same record, and processed event ids are
// remembered in Redis so repeats skip the store entirely.
package billing
