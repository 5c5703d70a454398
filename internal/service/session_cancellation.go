package service

import (
	"context"
	"log"
	"time"

	"github.com/renholm/studio-class-booking/internal/gateway"
	"github.com/renholm/studio-class-booking/internal/notifier"
	"github.com/renholm/studio-class-booking/internal/queue"
	"github.com/renholm/studio-class-booking/internal/repository"
)

// SessionStore is the storage surface of the studio bulk cancellation
// path.
type SessionStore interface {
	// SessionForCancellation loads the session, its active reservations
	// with payments, and the waiting list, enforcing studio scope.
	SessionForCancellation(ctx context.Context, sessionID, studioID uint64) (*repository.SessionCancellationView, error)
	// ApplyRefund records one successful gateway refund immediately.
	ApplyRefund(ctx context.Context, paymentID uint64, deltaCents int64, refundRef string, refundedAt time.Time) error
	// RecordRefundFailure stores a gateway failure message on the payment.
	RecordRefundFailure(ctx context.Context, paymentID uint64, message string) error
	// PurgeSession removes the session, its reservations and its waitlist.
	PurgeSession(ctx context.Context, sessionID uint64) error
}

// SessionCancellationResult reports who was told about a studio
// cancellation.
type SessionCancellationResult struct {
	SessionID        uint64 `json:"session_id"`
	RefundedClients  int    `json:"refunded_clients"`
	NotifiedClients  int    `json:"notified_clients"`
	NotifiedWaitlist int    `json:"notified_waitlist"`
}

// SessionCancellationService handles studio-initiated cancellation of a
// whole class session.
type SessionCancellationService struct {
	store    SessionStore
	gw       gateway.PaymentGateway
	notifier notifier.Notifier
	now      func() time.Time
}

func NewSessionCancellationService(store SessionStore, gw gateway.PaymentGateway, n notifier.Notifier) *SessionCancellationService {
	return &SessionCancellationService{
		store:    store,
		gw:       gw,
		notifier: n,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CancelClassSession cancels an entire session on behalf of its studio.
//
// Every active paid reservation is refunded in full before anything is
// deleted. The refund gate is all-or-nothing over outcomes, not over
// side effects: each successful refund is persisted on its payment row
// the moment the gateway confirms it, so a retry after a partial failure
// skips the already-settled payments instead of double-refunding them.
// If any refund fails the session is left standing and the call returns
// a BulkRefundError listing every failure. Only a clean sweep proceeds
// to the purge and the notifications.
func (s *SessionCancellationService) CancelClassSession(ctx context.Context, sessionID, studioID uint64) (*SessionCancellationResult, error) {
	view, err := s.store.SessionForCancellation(ctx, sessionID, studioID)
	if err != nil {
		return nil, err
	}

	result := &SessionCancellationResult{SessionID: sessionID}
	refunds := make(map[uint64]*gateway.RefundReceipt) // reservation ID -> receipt
	var failures []RefundFailure

	for _, rp := range view.Reservations {
		res := rp.Reservation
		if res.AmountCents == 0 {
			continue
		}
		p := rp.Payment
		if p == nil || p.PaymentIntentRef == nil || *p.PaymentIntentRef == "" {
			failures = append(failures, RefundFailure{
				ReservationID: res.ID,
				Reason:        "no refundable payment on record",
			})
			continue
		}
		if p.RemainingCents() <= 0 {
			// Settled on an earlier attempt; counts as refunded.
			result.RefundedClients++
			continue
		}

		amount := res.AmountCents
		if remaining := p.RemainingCents(); remaining < amount {
			amount = remaining
		}
		key := gateway.IdempotencyKey(*p.PaymentIntentRef, res.ID)
		receipt, err := s.gw.Refund(ctx, *p.PaymentIntentRef, amount, key)
		if err != nil {
			if recErr := s.store.RecordRefundFailure(ctx, p.ID, err.Error()); recErr != nil {
				log.Printf("session cancel: record refund failure on payment %d: %v", p.ID, recErr)
			}
			failures = append(failures, RefundFailure{
				ReservationID: res.ID,
				PaymentID:     p.ID,
				Reason:        err.Error(),
			})
			continue
		}
		if err := s.store.ApplyRefund(ctx, p.ID, receipt.RefundedCents, receipt.RefundRef, s.now()); err != nil {
			// The money moved; surface the bookkeeping failure rather
			// than pretending the refund did not happen.
			failures = append(failures, RefundFailure{
				ReservationID: res.ID,
				PaymentID:     p.ID,
				Reason:        "refund sent but not recorded: " + err.Error(),
			})
			continue
		}
		refunds[res.ID] = receipt
		result.RefundedClients++
	}

	if len(failures) > 0 {
		return nil, &BulkRefundError{SessionID: sessionID, Failures: failures}
	}

	if err := s.store.PurgeSession(ctx, sessionID); err != nil {
		return nil, err
	}

	cancelledAt := s.now().Format(time.RFC3339)
	startsAt := view.Session.StartsAt.UTC().Format(time.RFC3339)
	for _, rp := range view.Reservations {
		notice := queue.CancellationNotice{
			ClientID:     rp.Reservation.ClientID,
			SessionID:    view.Session.ID,
			SessionTitle: view.Session.Title,
			TeacherName:  view.Session.TeacherName,
			Location:     view.Session.Location,
			StartsAt:     startsAt,
			CancelledBy:  "studio",
			RefundStatus: string(RefundNone),
			CancelledAt:  cancelledAt,
		}
		if receipt, ok := refunds[rp.Reservation.ID]; ok {
			notice.RefundStatus = string(RefundProcessed)
			notice.RefundedCents = receipt.RefundedCents
			notice.RefundRef = receipt.RefundRef
		} else if rp.Reservation.AmountCents > 0 {
			notice.RefundStatus = string(RefundAlreadyRefunded)
			if p := rp.Payment; p != nil {
				notice.RefundedCents = p.RefundedCents
				if p.RefundRef != nil {
					notice.RefundRef = *p.RefundRef
				}
			}
		}
		if err := s.notifier.NotifyCancellation(ctx, notice); err != nil {
			log.Printf("session cancel: notice for client %d: %v", rp.Reservation.ClientID, err)
			continue
		}
		result.NotifiedClients++
	}
	for _, entry := range view.Waitlist {
		notice := queue.CancellationNotice{
			ClientID:        entry.ClientID,
			SessionID:       view.Session.ID,
			SessionTitle:    view.Session.Title,
			TeacherName:     view.Session.TeacherName,
			Location:        view.Session.Location,
			StartsAt:        startsAt,
			CancelledBy:     "studio",
			RefundStatus:    string(RefundNone),
			CancelledAt:     cancelledAt,
			WasWaitlistOnly: true,
		}
		if err := s.notifier.NotifyCancellation(ctx, notice); err != nil {
			log.Printf("session cancel: waitlist notice for client %d: %v", entry.ClientID, err)
			continue
		}
		result.NotifiedWaitlist++
	}

	return result, nil
}
