package billing

import (
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// SignatureHeader is the header Stripe signs webhook deliveries with
const SignatureHeader = "Stripe-Signature"

// DefaultSignatureTolerance is the maximum age of a signed delivery
const DefaultSignatureTolerance = webhook.DefaultTolerance

// VerifyEvent checks the Stripe-Signature header of payload and decodes
// the event. A zero tolerance skips the age check. The API version of the
// event is not compared with the SDK's: only the event id, type and the
// checkout session id and payment intent are read.
func VerifyEvent(payload []byte, header, secret string, tolerance time.Duration) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		Tolerance:                tolerance,
		IgnoreTolerance:          tolerance <= 0,
		IgnoreAPIVersionMismatch: true,
	})
}

// SignPayload builds a Stripe-Signature header value for payload, as the
// Stripe CLI does when forwarding test events
func SignPayload(payload []byte, secret string, at time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	}).Header
}
