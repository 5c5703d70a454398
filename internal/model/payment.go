package model

import "time"

// PaymentStatus enumerates the states of a captured charge.
type PaymentStatus string

const (
	PaymentSucceeded         PaymentStatus = "SUCCEEDED"
	PaymentPending           PaymentStatus = "PENDING"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
	PaymentFailed            PaymentStatus = "FAILED"
)

// Payment represents a charge captured at the external payment processor.
// PaymentIntentRef is the opaque identifier under which the processor knows
// the charge; without it no refund can be issued automatically.  The
// invariant RefundedCents <= AmountCents holds at all times, and status
// REFUNDED implies the two are equal.
//
// Fields:
//  ID               – primary key identifier.
//  AmountCents      – originally captured amount in cents.
//  Status           – see PaymentStatus.
//  RefundedCents    – total refunded so far, in cents.
//  RefundRef        – processor reference of the last refund, if any.
//  FailureMessage   – last gateway failure recorded for operator visibility.
//  PaymentIntentRef – processor-side identifier of the captured charge.
//  RefundedAt       – when the last refund was applied.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Payment struct {
	ID               uint64        // payments.id
	AmountCents      int64         // payments.amount_cents
	Status           PaymentStatus // payments.status
	RefundedCents    int64         // payments.refunded_cents
	RefundRef        *string       // payments.refund_ref (nullable)
	FailureMessage   *string       // payments.failure_message (nullable)
	PaymentIntentRef *string       // payments.payment_intent_ref (nullable)
	RefundedAt       *time.Time    // payments.refunded_at (nullable)
	CreatedAt        time.Time     // payments.created_at
	UpdatedAt        time.Time     // payments.updated_at
}

// Refundable reports whether the payment can still be refunded through the
// gateway: it must carry a payment-intent reference and have money left.
func (p *Payment) Refundable() bool {
	return p.PaymentIntentRef != nil && *p.PaymentIntentRef != "" && p.RefundedCents < p.AmountCents
}

// Settled reports whether refund processing already happened for this
// payment.  Settled payments are never sent to the gateway again; their
// recorded refunded amount is adopted instead.
func (p *Payment) Settled() bool {
	return p.Status == PaymentRefunded || p.Status == PaymentPartiallyRefunded
}

// RemainingCents returns the portion of the charge that has not been
// refunded yet.
func (p *Payment) RemainingCents() int64 {
	if p.RefundedCents >= p.AmountCents {
		return 0
	}
	return p.AmountCents - p.RefundedCents
}
