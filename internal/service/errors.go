// Package service implements the cancellation and refund-consistency
// engine: the refund policy calculator, the cancellation orchestrators
// for single reservations and whole sessions, the waitlist promoter and
// the claim-expiry sweeper.
package service

import (
	"errors"
	"fmt"
)

// ErrClassAlreadyStarted rejects cancellation of a reservation whose
// class start time is already in the past. The check precedes any refund
// tier calculation.
var ErrClassAlreadyStarted = errors.New("class already started")

// ErrRefundUnprocessable rejects a refund-bearing cancellation whose
// reservation has no payment linkage usable for an automatic refund.
// Nothing is mutated; the client has to contact the studio.
var ErrRefundUnprocessable = errors.New("refund cannot be processed automatically")

// ErrCancellationWindowClosed rejects NO_REFUND-tier cancellations when
// the policy is configured to forbid them instead of permitting a
// zero-refund cancellation.
var ErrCancellationWindowClosed = errors.New("cancellation window closed")

// RefundGatewayError reports a failed refund attempt for a single
// reservation. The reservation is left untouched when this is returned;
// cancellation and refund succeed or fail together.
type RefundGatewayError struct {
	ReservationID uint64
	PaymentID     uint64
	Err           error
}

func (e *RefundGatewayError) Error() string {
	return fmt.Sprintf("refund for reservation %d failed: %v", e.ReservationID, e.Err)
}

func (e *RefundGatewayError) Unwrap() error { return e.Err }

// RefundFailure identifies one failed refund inside a studio session
// cancellation.
type RefundFailure struct {
	ReservationID uint64 `json:"reservation_id"`
	PaymentID     uint64 `json:"payment_id"`
	Reason        string `json:"reason"`
}

// BulkRefundError aborts a studio session cancellation: at least one
// refund failed, so nothing was deleted and nobody was notified. It
// carries every failing (reservation, payment, reason) tuple.
type BulkRefundError struct {
	SessionID uint64
	Failures  []RefundFailure
}

func (e *BulkRefundError) Error() string {
	return fmt.Sprintf("session cancellation aborted: %d refund(s) failed", len(e.Failures))
}
