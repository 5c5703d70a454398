package service

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tier is the cancellation-policy bucket determined by time-to-class.
type Tier string

const (
	TierFree     Tier = "FREE"
	TierLate     Tier = "LATE"
	TierNoRefund Tier = "NO_REFUND"
)

// CancellationPolicy holds the time-tiered refund rules. It is injected
// into the orchestrator rather than read from package state so tests can
// vary policy freely.
type CancellationPolicy struct {
	// FreeWindow is the minimum time before class start for a full refund.
	FreeWindow time.Duration
	// LateWindow is the minimum time before class start for a fee-reduced
	// refund. Below it no money moves.
	LateWindow time.Duration
	// LateFeePercent is the fee retained on LATE-tier refunds, 0..100.
	LateFeePercent int64
	// RejectNoRefund switches NO_REFUND-tier requests from "permitted,
	// zero refund" to "rejected outright".
	RejectNoRefund bool
}

// DefaultPolicy returns the stock policy: free until 24h before class,
// 50% fee until 12h before, nothing after that.
func DefaultPolicy() CancellationPolicy {
	return CancellationPolicy{
		FreeWindow:     24 * time.Hour,
		LateWindow:     12 * time.Hour,
		LateFeePercent: 50,
	}
}

// Assessment is the outcome of evaluating the policy for one
// cancellation request.
type Assessment struct {
	Tier            Tier
	HoursUntilClass float64
	FeePercent      int64
	RefundCents     int64
}

// Evaluate maps (class start, now, paid amount) to a refund tier and
// amount. It is pure: same inputs, same output, no side effects. A class
// whose start time is not strictly in the future is rejected with
// ErrClassAlreadyStarted before any tier is considered.
func (p CancellationPolicy) Evaluate(startsAt, now time.Time, amountCents int64) (*Assessment, error) {
	if !startsAt.After(now) {
		return nil, ErrClassAlreadyStarted
	}
	until := startsAt.Sub(now)
	a := &Assessment{HoursUntilClass: until.Hours()}
	switch {
	case until >= p.FreeWindow:
		a.Tier = TierFree
		a.RefundCents = amountCents
	case until >= p.LateWindow:
		a.Tier = TierLate
		a.FeePercent = p.LateFeePercent
		a.RefundCents = refundAfterFee(amountCents, p.LateFeePercent)
	default:
		a.Tier = TierNoRefund
		a.FeePercent = 100
	}
	return a, nil
}

// refundAfterFee computes amount × (100−fee)% rounded to whole cents,
// half away from zero.
func refundAfterFee(amountCents, feePercent int64) int64 {
	return decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromInt(100 - feePercent)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
