package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/renholm/studio-class-booking/internal/model"
)

// ErrPaymentNotFound indicates the payment row does not exist.
var ErrPaymentNotFound = errors.New("payment not found")

// PaymentRepo provides data access for captured charges. Refunds are
// applied as increments so that the stored refunded amount can never run
// backwards, and the REFUNDED/PARTIALLY_REFUNDED status is derived from
// the resulting totals.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, amount_cents, status, refunded_cents, refund_ref, failure_message, payment_intent_ref, refunded_at, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*model.Payment, error) {
	var (
		p          model.Payment
		refundRef  sql.NullString
		failureMsg sql.NullString
		intentRef  sql.NullString
		refundedAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.AmountCents, &p.Status, &p.RefundedCents,
		&refundRef, &failureMsg, &intentRef, &refundedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if refundRef.Valid {
		v := refundRef.String
		p.RefundRef = &v
	}
	if failureMsg.Valid {
		v := failureMsg.String
		p.FailureMessage = &v
	}
	if intentRef.Valid {
		v := intentRef.String
		p.PaymentIntentRef = &v
	}
	if refundedAt.Valid {
		t := refundedAt.Time
		p.RefundedAt = &t
	}
	return &p, nil
}

// GetByID loads a payment by primary key.
func (r *PaymentRepo) GetByID(ctx context.Context, id uint64) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`
	p, err := scanPayment(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

// RecordFailure stores the gateway failure message on the payment for
// operator visibility. This is the only write performed when a refund
// attempt fails; the reservation itself is left untouched.
func (r *PaymentRepo) RecordFailure(ctx context.Context, id uint64, message string) error {
	const q = `UPDATE payments SET failure_message = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, message, id)
	return err
}

// ApplyRefundTx records a refund delta on the payment inside the given
// transaction. The refunded total is capped at the original amount by the
// invariant check in the WHERE clause, the status flips to REFUNDED when
// the charge is fully returned and PARTIALLY_REFUNDED otherwise, and the
// failure message is cleared since the refund went through.
func (r *PaymentRepo) ApplyRefundTx(ctx context.Context, tx *sql.Tx, id uint64, deltaCents int64, refundRef string, refundedAt time.Time) error {
	const q = `UPDATE payments
	           SET refunded_cents = refunded_cents + ?,
	               status = IF(refunded_cents >= amount_cents, 'REFUNDED', 'PARTIALLY_REFUNDED'),
	               refund_ref = ?, refunded_at = ?, failure_message = NULL
	           WHERE id = ? AND refunded_cents + ? <= amount_cents`
	res, err := tx.ExecContext(ctx, q, deltaCents, refundRef, refundedAt.UTC(), id, deltaCents)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("refund exceeds captured amount")
	}
	return nil
}

// ApplyRefund is ApplyRefundTx in its own short transaction. The studio
// cancellation workflow persists every successful gateway refund
// immediately, so an aborted run never re-refunds settled payments on
// retry.
func (r *PaymentRepo) ApplyRefund(ctx context.Context, id uint64, deltaCents int64, refundRef string, refundedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := r.ApplyRefundTx(ctx, tx, id, deltaCents, refundRef, refundedAt); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
