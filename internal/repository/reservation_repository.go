package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/renholm/studio-class-booking/internal/model"
)

// ReservationRepo provides data access for reservations. Creation runs a
// capacity check and the insert inside one transaction; cancellation is a
// conditional update so that only one of two racing cancellations can
// succeed.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, session_id, client_id, status, amount_cents, payment_id, cancel_note, cancelled_at, created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	var (
		res         model.Reservation
		paymentID   sql.NullInt64
		cancelNote  sql.NullString
		cancelledAt sql.NullTime
	)
	err := row.Scan(&res.ID, &res.SessionID, &res.ClientID, &res.Status, &res.AmountCents,
		&paymentID, &cancelNote, &cancelledAt, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if paymentID.Valid {
		id := uint64(paymentID.Int64)
		res.PaymentID = &id
	}
	if cancelNote.Valid {
		res.CancelNote = cancelNote.String
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		res.CancelledAt = &t
	}
	return &res, nil
}

// Create books a seat on a session. The confirmed count is checked under
// lock so a full class cannot be overbooked by concurrent requests; when
// no seat is free, ErrCapacityExceeded is returned and callers should
// offer the waitlist instead.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const capQ = `SELECT capacity FROM class_sessions WHERE id = ? FOR UPDATE`
	var capacity uint32
	if err := tx.QueryRowContext(ctx, capQ, res.SessionID).Scan(&capacity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSessionNotFound
		}
		return err
	}
	const cntQ = `SELECT COUNT(*) FROM reservations WHERE session_id = ? AND status = 'CONFIRMED'`
	var confirmed uint32
	if err := tx.QueryRowContext(ctx, cntQ, res.SessionID).Scan(&confirmed); err != nil {
		return err
	}
	if res.Status == model.ReservationConfirmed && confirmed >= capacity {
		return ErrCapacityExceeded
	}

	const ins = `INSERT INTO reservations (session_id, client_id, status, amount_cents, payment_id)
	             VALUES (?, ?, ?, ?, ?)`
	var paymentID any
	if res.PaymentID != nil {
		paymentID = *res.PaymentID
	}
	out, err := tx.ExecContext(ctx, ins, res.SessionID, res.ClientID, res.Status, res.AmountCents, paymentID)
	if err != nil {
		return err
	}
	id, err := out.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)

	sel := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	got, err := scanReservation(tx.QueryRowContext(ctx, sel, res.ID))
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	*res = *got
	return nil
}

// GetByID loads a reservation by primary key.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	return res, err
}

// ListByClient returns the client's reservations, newest first.
func (r *ReservationRepo) ListByClient(ctx context.Context, clientID uint64) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE client_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// ListActiveBySessionTx returns the CONFIRMED and PENDING reservations of
// a session within the given transaction. The studio cancellation
// workflow reads this snapshot for its refund gate; no row locks are
// taken because the gate performs network calls before writing anything.
func (r *ReservationRepo) ListActiveBySessionTx(ctx context.Context, tx *sql.Tx, sessionID uint64) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
	      WHERE session_id = ? AND status IN ('CONFIRMED', 'PENDING')
	      ORDER BY id`
	rows, err := tx.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// MarkCancelledTx flips a reservation to CANCELLED and appends the audit
// note. The update is conditional on the row not being CANCELLED yet;
// when zero rows match, the race was lost and ErrAlreadyCancelled is
// returned so the caller never refunds twice.
func (r *ReservationRepo) MarkCancelledTx(ctx context.Context, tx *sql.Tx, id uint64, cancelledAt time.Time, auditNote string) error {
	const q = `UPDATE reservations
	           SET status = 'CANCELLED', cancelled_at = ?,
	               cancel_note = CONCAT(COALESCE(cancel_note, ''), ?)
	           WHERE id = ? AND status <> 'CANCELLED'`
	res, err := tx.ExecContext(ctx, q, cancelledAt.UTC(), auditNote, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyCancelled
	}
	return nil
}

// DeleteBySessionTx removes every reservation of a session. Only the
// studio cancellation workflow calls this, after its refund gate passed.
func (r *ReservationRepo) DeleteBySessionTx(ctx context.Context, tx *sql.Tx, sessionID uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE session_id = ?`, sessionID)
	return err
}
