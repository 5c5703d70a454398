package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/renholm/studio-class-booking/internal/model"
)

// Store bundles the repositories behind the multi-row transactional
// primitives the cancellation engine needs. Every method is a complete
// unit of work: it either begins and commits its own transaction or
// performs a single consistent read. No method holds row locks across a
// network call; gateway refunds always happen between Store calls, never
// inside one.
type Store struct {
	db           *sql.DB
	Sessions     *SessionRepo
	Reservations *ReservationRepo
	Payments     *PaymentRepo
	Waitlist     *WaitlistRepo
}

// NewStore wires a Store and its repositories onto one database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:           db,
		Sessions:     NewSessionRepo(db),
		Reservations: NewReservationRepo(db),
		Payments:     NewPaymentRepo(db),
		Waitlist:     NewWaitlistRepo(db),
	}
}

// CancellationView is the snapshot the orchestrator needs to decide a
// single-reservation cancellation: the reservation, its session, and the
// linked payment when one exists.
type CancellationView struct {
	Reservation model.Reservation
	Session     model.ClassSession
	Payment     *model.Payment
}

// ReservationForCancellation loads the cancellation snapshot and enforces
// scope: ErrReservationNotFound when the row does not exist, ErrForbidden
// when it belongs to another client.
func (s *Store) ReservationForCancellation(ctx context.Context, reservationID, clientID uint64) (*CancellationView, error) {
	res, err := s.Reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.ClientID != clientID {
		return nil, ErrForbidden
	}
	sess, err := s.Sessions.GetByID(ctx, res.SessionID)
	if err != nil {
		return nil, err
	}
	view := &CancellationView{Reservation: *res, Session: *sess}
	if res.PaymentID != nil {
		p, err := s.Payments.GetByID(ctx, *res.PaymentID)
		if err != nil {
			return nil, err
		}
		view.Payment = p
	}
	return view, nil
}

// RecordRefundFailure persists the gateway failure message on a payment.
func (s *Store) RecordRefundFailure(ctx context.Context, paymentID uint64, message string) error {
	return s.Payments.RecordFailure(ctx, paymentID, message)
}

// PaymentUpdate carries the refund outcome to be persisted alongside a
// cancellation. DeltaCents is the newly refunded amount, not a total.
type PaymentUpdate struct {
	PaymentID  uint64
	DeltaCents int64
	RefundRef  string
	RefundedAt time.Time
}

// CancellationCommit is the all-or-nothing write of a client cancellation:
// the optional payment refund record and the conditional reservation flip
// commit together or not at all.
type CancellationCommit struct {
	ReservationID uint64
	CancelledAt   time.Time
	AuditNote     string
	Payment       *PaymentUpdate
}

// CommitCancellation applies a CancellationCommit in one transaction.
// The reservation flip is conditional on the row not being CANCELLED yet;
// losing that race rolls the payment write back and surfaces
// ErrAlreadyCancelled.
func (s *Store) CommitCancellation(ctx context.Context, commit CancellationCommit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if p := commit.Payment; p != nil {
		if err := s.Payments.ApplyRefundTx(ctx, tx, p.PaymentID, p.DeltaCents, p.RefundRef, p.RefundedAt); err != nil {
			return fmt.Errorf("apply refund to payment %d: %w", p.PaymentID, err)
		}
	}
	if err := s.Reservations.MarkCancelledTx(ctx, tx, commit.ReservationID, commit.CancelledAt, commit.AuditNote); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// PromoteNextWaiting selects the lowest-position WAITING entry of the
// session and flips it to NOTIFIED with the given claim window, all in
// one transaction. It returns nil when the queue is empty. The flip is
// keyed on status = 'WAITING', so concurrent promotions of the same entry
// resolve to a single winner.
func (s *Store) PromoteNextWaiting(ctx context.Context, sessionID uint64, claimRef string, notifiedAt, expiresAt time.Time) (*model.WaitlistEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	entry, err := s.Waitlist.NextWaitingTx(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		committed = true
		return nil, nil
	}
	if err := s.Waitlist.MarkNotifiedTx(ctx, tx, entry.ID, claimRef, notifiedAt, expiresAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	entry.Status = model.WaitlistNotified
	entry.ClaimRef = &claimRef
	na, ea := notifiedAt, expiresAt
	entry.NotifiedAt = &na
	entry.ExpiresAt = &ea
	return entry, nil
}

// ReservationWithPayment pairs an active reservation with its payment
// for the studio cancellation refund gate.
type ReservationWithPayment struct {
	Reservation model.Reservation
	Payment     *model.Payment
}

// SessionCancellationView is the snapshot for a studio-initiated full
// session cancellation: the session, its active reservations with their
// payments, and the WAITING waitlist entries.
type SessionCancellationView struct {
	Session      model.ClassSession
	Reservations []ReservationWithPayment
	Waitlist     []model.WaitlistEntry
}

// SessionForCancellation reads the full bulk-cancellation snapshot in a
// single read-only transaction. Scope is enforced the same way as for
// single reservations.
func (s *Store) SessionForCancellation(ctx context.Context, sessionID, studioID uint64) (*SessionCancellationView, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	sel := `SELECT ` + sessionColumns + ` FROM class_sessions WHERE id = ?`
	sess, err := scanSession(tx.QueryRowContext(ctx, sel, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if sess.StudioID != studioID {
		return nil, ErrForbidden
	}

	reservations, err := s.Reservations.ListActiveBySessionTx(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	waiting, err := s.Waitlist.ListWaitingBySessionTx(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}

	view := &SessionCancellationView{Session: *sess, Waitlist: waiting}
	for _, res := range reservations {
		rp := ReservationWithPayment{Reservation: res}
		if res.PaymentID != nil {
			p, err := scanPayment(tx.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, *res.PaymentID))
			if err != nil {
				return nil, fmt.Errorf("load payment %d: %w", *res.PaymentID, err)
			}
			rp.Payment = p
		}
		view.Reservations = append(view.Reservations, rp)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return view, nil
}

// ApplyRefund records a successful gateway refund on a payment in its own
// short transaction.
func (s *Store) ApplyRefund(ctx context.Context, paymentID uint64, deltaCents int64, refundRef string, refundedAt time.Time) error {
	return s.Payments.ApplyRefund(ctx, paymentID, deltaCents, refundRef, refundedAt)
}

// PurgeSession hard-deletes a session and everything hanging off it in
// one transaction: waitlist entries first, then reservations, then the
// session row. Partial failure leaves no orphans because nothing commits.
func (s *Store) PurgeSession(ctx context.Context, sessionID uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := s.Waitlist.DeleteBySessionTx(ctx, tx, sessionID); err != nil {
		return fmt.Errorf("delete waitlist entries: %w", err)
	}
	if err := s.Reservations.DeleteBySessionTx(ctx, tx, sessionID); err != nil {
		return fmt.Errorf("delete reservations: %w", err)
	}
	if err := s.Sessions.DeleteTx(ctx, tx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SessionByID loads a session without scope checks.
func (s *Store) SessionByID(ctx context.Context, sessionID uint64) (*model.ClassSession, error) {
	return s.Sessions.GetByID(ctx, sessionID)
}

// ExpireDueClaims flips every lapsed NOTIFIED claim to EXPIRED and
// returns the affected entries so the sweeper can re-promote per session.
func (s *Store) ExpireDueClaims(ctx context.Context, now time.Time) ([]model.WaitlistEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	expired, err := s.Waitlist.ExpireDueTx(ctx, tx, now)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return expired, nil
}

// AcceptClaim converts a live NOTIFIED claim into a confirmed
// reservation. Capacity is re-checked under lock, the entry flips to
// CLAIMED, and the new reservation is created in the same transaction.
// Payment for the claimed seat is collected by the checkout flow, so the
// reservation starts with a zero paid amount and no payment link.
func (s *Store) AcceptClaim(ctx context.Context, claimRef string, clientID uint64, now time.Time) (*model.Reservation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	entry, err := s.Waitlist.GetLiveClaimTx(ctx, tx, claimRef, now)
	if err != nil {
		return nil, err
	}
	if entry.ClientID != clientID {
		return nil, ErrForbidden
	}

	var capacity uint32
	if err := tx.QueryRowContext(ctx, `SELECT capacity FROM class_sessions WHERE id = ? FOR UPDATE`, entry.SessionID).Scan(&capacity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	confirmed, err := s.Sessions.ConfirmedCountTx(ctx, tx, entry.SessionID)
	if err != nil {
		return nil, err
	}
	if confirmed >= capacity {
		return nil, ErrCapacityExceeded
	}

	if err := s.Waitlist.MarkClaimedTx(ctx, tx, entry.ID); err != nil {
		return nil, err
	}
	const ins = `INSERT INTO reservations (session_id, client_id, status, amount_cents) VALUES (?, ?, 'CONFIRMED', 0)`
	out, err := tx.ExecContext(ctx, ins, entry.SessionID, entry.ClientID)
	if err != nil {
		return nil, err
	}
	id, err := out.LastInsertId()
	if err != nil {
		return nil, err
	}
	sel := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(tx.QueryRowContext(ctx, sel, uint64(id)))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}
