// Package gateway defines the payment gateway collaborator: the external
// processor that holds captured charges and issues refunds against them.
// The engine only ever talks to it through the PaymentGateway interface
// so the orchestrators can be exercised against fakes.
package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// RefundReceipt is the processor's acknowledgement of a refund.
type RefundReceipt struct {
	RefundRef     string `json:"refund_ref"`
	RefundedCents int64  `json:"refunded_cents"`
}

// Error is a refund failure reported by the processor or the transport
// in between. Transient errors may succeed on retry with the same
// idempotency key; non-transient ones are definitive rejections.
type Error struct {
	Code      string
	Message   string
	Transient bool
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway: %s: %s", e.Code, e.Message)
	}
	return "gateway: " + e.Message
}

// PaymentGateway issues refunds against a previously captured charge
// identified by its payment-intent reference. Implementations must treat
// idemKey as an idempotency key: repeating a call with the same key
// returns the original receipt instead of moving money twice.
type PaymentGateway interface {
	Refund(ctx context.Context, intentRef string, amountCents int64, idemKey string) (*RefundReceipt, error)
}

// refundKeyNamespace scopes idempotency keys to this engine's refunds.
var refundKeyNamespace = uuid.MustParse("9f2c1a4e-7b3d-4c86-b1f0-5a86d4b6c7e1")

// IdempotencyKey derives the stable key for one logical refund attempt
// from the payment-intent reference and the reservation whose share is
// being refunded. A client-side timeout followed by a retry produces the
// same key and therefore the same single refund at the processor.
func IdempotencyKey(intentRef string, reservationID uint64) string {
	return uuid.NewSHA1(refundKeyNamespace, []byte(fmt.Sprintf("%s:%d", intentRef, reservationID))).String()
}
