package checkout

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the processor's hex-encoded HMAC-SHA256 of the raw
// request body.
const SignatureHeader = "X-Webhook-Signature"

const (
	EventPaymentSucceeded = "payment_succeeded"
	EventPaymentFailed    = "payment_failed"
)

// WebhookEvent is the processor's asynchronous payment notification.
type WebhookEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Reason    string `json:"reason,omitempty"`
}

// Sign computes the webhook signature over the exact body bytes.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the signature against the raw, unparsed body. Any
// re-serialization of the JSON before this point would break verification,
// so callers must pass the bytes exactly as read off the wire. Comparison is
// constant time.
func VerifySignature(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	expected, err := hex.DecodeString(Sign(body, secret))
	if err != nil {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, provided)
}
