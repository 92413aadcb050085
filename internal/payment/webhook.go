package payment

import (
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const DefaultWebhookTolerance = 5 * time.Minute

// WebhookVerifier authenticates Stripe-Signature headers and decodes the
// signed event. Events from any API version are accepted; only the intent
// fields the settlement reads are decoded.
type WebhookVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret, tolerance: DefaultWebhookTolerance}
}

func (v *WebhookVerifier) Event(payload []byte, header string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, header, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
}

// SignatureHeader builds a header value for payload signed at t.
func (v *WebhookVerifier) SignatureHeader(payload []byte, t time.Time) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    v.secret,
		Timestamp: t,
	})
	return signed.Header
}
