package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/renholm/studio-class-booking/internal/gateway"
	"github.com/renholm/studio-class-booking/internal/model"
	"github.com/renholm/studio-class-booking/internal/notifier"
	"github.com/renholm/studio-class-booking/internal/queue"
	"github.com/renholm/studio-class-booking/internal/repository"
)

// ReservationStore is the storage surface of the client cancellation
// path. The repository.Store implements it; tests substitute a mock.
type ReservationStore interface {
	// ReservationForCancellation loads the reservation with its session
	// and payment, enforcing client scope.
	ReservationForCancellation(ctx context.Context, reservationID, clientID uint64) (*repository.CancellationView, error)
	// RecordRefundFailure stores a gateway failure message on the payment.
	RecordRefundFailure(ctx context.Context, paymentID uint64, message string) error
	// CommitCancellation atomically persists the refund record and the
	// conditional reservation flip.
	CommitCancellation(ctx context.Context, commit repository.CancellationCommit) error
}

// RefundStatus describes what happened to the money on a cancellation.
type RefundStatus string

const (
	RefundNone            RefundStatus = "NONE"
	RefundProcessed       RefundStatus = "PROCESSED"
	RefundAlreadyRefunded RefundStatus = "ALREADY_REFUNDED"
)

// CancellationResult is returned to the caller of CancelReservation.
type CancellationResult struct {
	Tier             Tier         `json:"tier"`
	HoursUntilClass  float64      `json:"hours_until_class"`
	RefundStatus     RefundStatus `json:"refund_status"`
	RefundedCents    int64        `json:"refunded_cents"`
	RefundRef        string       `json:"refund_ref,omitempty"`
	WaitlistNotified bool         `json:"waitlist_notified"`
}

// CancellationService orchestrates reservation and session cancellations:
// it validates preconditions, settles money with the payment gateway
// before any local write, persists the outcome transactionally and
// triggers the waitlist cascade and notifications.
type CancellationService struct {
	store    ReservationStore
	gw       gateway.PaymentGateway
	notifier notifier.Notifier
	promoter *WaitlistPromoter
	policy   CancellationPolicy
	now      func() time.Time
}

// NewCancellationService wires the orchestrator. The policy is copied;
// later mutation of the caller's struct has no effect.
func NewCancellationService(
	store ReservationStore,
	gw gateway.PaymentGateway,
	n notifier.Notifier,
	promoter *WaitlistPromoter,
	policy CancellationPolicy,
) *CancellationService {
	return &CancellationService{
		store:    store,
		gw:       gw,
		notifier: n,
		promoter: promoter,
		policy:   policy,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CancelReservation cancels a single reservation on behalf of its client
// under the time-tiered refund policy.
//
// Preconditions are checked in order, each short-circuiting: the
// reservation exists and belongs to the client, it is not already
// cancelled, and the class has not started. The gateway refund (when due)
// completes strictly before any local state is committed, so a gateway
// failure leaves the reservation untouched; cancellation and refund
// succeed or fail together. Waitlist promotion and notifications run
// after the commit and are best-effort.
func (s *CancellationService) CancelReservation(ctx context.Context, reservationID, clientID uint64) (*CancellationResult, error) {
	view, err := s.store.ReservationForCancellation(ctx, reservationID, clientID)
	if err != nil {
		return nil, err
	}
	if view.Reservation.Status == model.ReservationCancelled {
		return nil, repository.ErrAlreadyCancelled
	}

	assessment, err := s.policy.Evaluate(view.Session.StartsAt, s.now(), view.Reservation.AmountCents)
	if err != nil {
		return nil, err
	}
	if assessment.Tier == TierNoRefund && s.policy.RejectNoRefund {
		return nil, ErrCancellationWindowClosed
	}

	result := &CancellationResult{
		Tier:            assessment.Tier,
		HoursUntilClass: assessment.HoursUntilClass,
		RefundStatus:    RefundNone,
	}

	var payment *repository.PaymentUpdate
	if assessment.RefundCents > 0 {
		p := view.Payment
		if p == nil || p.PaymentIntentRef == nil || *p.PaymentIntentRef == "" {
			return nil, ErrRefundUnprocessable
		}
		if p.Settled() {
			// Refund processing already happened for this charge; adopt the
			// recorded amount instead of calling the gateway again.
			result.RefundStatus = RefundAlreadyRefunded
			result.RefundedCents = p.RefundedCents
			if p.RefundRef != nil {
				result.RefundRef = *p.RefundRef
			}
		} else {
			key := gateway.IdempotencyKey(*p.PaymentIntentRef, view.Reservation.ID)
			receipt, err := s.gw.Refund(ctx, *p.PaymentIntentRef, assessment.RefundCents, key)
			if err != nil {
				if recErr := s.store.RecordRefundFailure(ctx, p.ID, err.Error()); recErr != nil {
					log.Printf("cancellation: record refund failure on payment %d: %v", p.ID, recErr)
				}
				return nil, &RefundGatewayError{ReservationID: view.Reservation.ID, PaymentID: p.ID, Err: err}
			}
			payment = &repository.PaymentUpdate{
				PaymentID:  p.ID,
				DeltaCents: receipt.RefundedCents,
				RefundRef:  receipt.RefundRef,
				RefundedAt: s.now(),
			}
			result.RefundStatus = RefundProcessed
			result.RefundedCents = receipt.RefundedCents
			result.RefundRef = receipt.RefundRef
		}
	}

	cancelledAt := s.now()
	commit := repository.CancellationCommit{
		ReservationID: view.Reservation.ID,
		CancelledAt:   cancelledAt,
		AuditNote:     auditNote(assessment, result),
		Payment:       payment,
	}
	if err := s.store.CommitCancellation(ctx, commit); err != nil {
		return nil, err
	}

	// Cascade and notification are best-effort from here: the
	// cancellation is committed and must be reported as such.
	if entry, err := s.promoter.PromoteNext(ctx, &view.Session); err != nil {
		log.Printf("cancellation: waitlist promotion for session %d: %v", view.Session.ID, err)
	} else if entry != nil {
		result.WaitlistNotified = true
	}

	notice := queue.CancellationNotice{
		ClientID:      clientID,
		SessionID:     view.Session.ID,
		SessionTitle:  view.Session.Title,
		TeacherName:   view.Session.TeacherName,
		Location:      view.Session.Location,
		StartsAt:      view.Session.StartsAt.UTC().Format(time.RFC3339),
		CancelledBy:   "client",
		RefundStatus:  string(result.RefundStatus),
		RefundedCents: result.RefundedCents,
		RefundRef:     result.RefundRef,
		CancelledAt:   cancelledAt.Format(time.RFC3339),
	}
	if err := s.notifier.NotifyCancellation(ctx, notice); err != nil {
		log.Printf("cancellation: notice for reservation %d: %v", view.Reservation.ID, err)
	}

	return result, nil
}

// auditNote encodes the cancellation decision for the reservation's
// permanent record. It is appended to, never replaces, prior notes.
func auditNote(a *Assessment, r *CancellationResult) string {
	note := fmt.Sprintf("\ncancelled: tier=%s hours_before=%.1f refund=%s amount_cents=%d",
		a.Tier, a.HoursUntilClass, r.RefundStatus, r.RefundedCents)
	if r.RefundRef != "" {
		note += " ref=" + r.RefundRef
	}
	return note
}
