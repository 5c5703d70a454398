package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/renholm/studio-class-booking/internal/model"
)

// WaitlistRepo provides data access for waitlist entries. Positions are
// assigned at creation as max(position)+1 per session and are never
// reused, so the lowest-position WAITING row is always the next client in
// line. Promotion and expiry are conditional updates keyed on the current
// status, giving each entry at most one successful transition per state.
type WaitlistRepo struct {
	db *sql.DB
}

// NewWaitlistRepo returns a new WaitlistRepo bound to the given database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

const waitlistColumns = `id, session_id, client_id, position, status, claim_ref, notified_at, expires_at, created_at, updated_at`

func scanWaitlistEntry(row interface{ Scan(...any) error }) (*model.WaitlistEntry, error) {
	var (
		e          model.WaitlistEntry
		claimRef   sql.NullString
		notifiedAt sql.NullTime
		expiresAt  sql.NullTime
	)
	err := row.Scan(&e.ID, &e.SessionID, &e.ClientID, &e.Position, &e.Status,
		&claimRef, &notifiedAt, &expiresAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if claimRef.Valid {
		v := claimRef.String
		e.ClaimRef = &v
	}
	if notifiedAt.Valid {
		t := notifiedAt.Time
		e.NotifiedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		e.ExpiresAt = &t
	}
	return &e, nil
}

// Join appends a client to a session's waitlist. The session row is
// locked while the next position is computed so two concurrent joins
// cannot receive the same position, and a client with a live (WAITING or
// NOTIFIED) entry is rejected with ErrDuplicateWaitlistEntry.
func (r *WaitlistRepo) Join(ctx context.Context, sessionID, clientID uint64) (*model.WaitlistEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var sid uint64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM class_sessions WHERE id = ? FOR UPDATE`, sessionID).Scan(&sid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	const dupQ = `SELECT COUNT(*) FROM waitlist_entries
	              WHERE session_id = ? AND client_id = ? AND status IN ('WAITING', 'NOTIFIED')`
	var dup uint32
	if err := tx.QueryRowContext(ctx, dupQ, sessionID, clientID).Scan(&dup); err != nil {
		return nil, err
	}
	if dup > 0 {
		return nil, ErrDuplicateWaitlistEntry
	}

	const posQ = `SELECT COALESCE(MAX(position), 0) + 1 FROM waitlist_entries WHERE session_id = ?`
	var position uint32
	if err := tx.QueryRowContext(ctx, posQ, sessionID).Scan(&position); err != nil {
		return nil, err
	}

	const ins = `INSERT INTO waitlist_entries (session_id, client_id, position, status) VALUES (?, ?, ?, 'WAITING')`
	out, err := tx.ExecContext(ctx, ins, sessionID, clientID, position)
	if err != nil {
		return nil, err
	}
	id, err := out.LastInsertId()
	if err != nil {
		return nil, err
	}
	sel := `SELECT ` + waitlistColumns + ` FROM waitlist_entries WHERE id = ?`
	entry, err := scanWaitlistEntry(tx.QueryRowContext(ctx, sel, uint64(id)))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return entry, nil
}

// NextWaitingTx locks and returns the lowest-position WAITING entry for
// the session, or nil when the queue is empty.
func (r *WaitlistRepo) NextWaitingTx(ctx context.Context, tx *sql.Tx, sessionID uint64) (*model.WaitlistEntry, error) {
	q := `SELECT ` + waitlistColumns + ` FROM waitlist_entries
	      WHERE session_id = ? AND status = 'WAITING'
	      ORDER BY position LIMIT 1 FOR UPDATE`
	entry, err := scanWaitlistEntry(tx.QueryRowContext(ctx, q, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

// MarkNotifiedTx flips an entry to NOTIFIED and stamps the claim window.
// The update is keyed on status = 'WAITING' so only one of two racing
// promotions can take the entry.
func (r *WaitlistRepo) MarkNotifiedTx(ctx context.Context, tx *sql.Tx, id uint64, claimRef string, notifiedAt, expiresAt time.Time) error {
	const q = `UPDATE waitlist_entries
	           SET status = 'NOTIFIED', claim_ref = ?, notified_at = ?, expires_at = ?
	           WHERE id = ? AND status = 'WAITING'`
	res, err := tx.ExecContext(ctx, q, claimRef, notifiedAt.UTC(), expiresAt.UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrClaimNotLive
	}
	return nil
}

// ListWaitingBySessionTx returns the WAITING entries of a session in
// promotion order within the given transaction.
func (r *WaitlistRepo) ListWaitingBySessionTx(ctx context.Context, tx *sql.Tx, sessionID uint64) ([]model.WaitlistEntry, error) {
	q := `SELECT ` + waitlistColumns + ` FROM waitlist_entries
	      WHERE session_id = ? AND status = 'WAITING'
	      ORDER BY position`
	rows, err := tx.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.WaitlistEntry, 0)
	for rows.Next() {
		e, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// GetLiveClaimTx locks and returns the NOTIFIED entry carrying the claim
// reference, provided its expiry window is still open. ErrClaimNotLive is
// returned for unknown references, already-resolved claims and lapsed
// windows alike.
func (r *WaitlistRepo) GetLiveClaimTx(ctx context.Context, tx *sql.Tx, claimRef string, now time.Time) (*model.WaitlistEntry, error) {
	q := `SELECT ` + waitlistColumns + ` FROM waitlist_entries
	      WHERE claim_ref = ? AND status = 'NOTIFIED' AND expires_at > ?
	      FOR UPDATE`
	entry, err := scanWaitlistEntry(tx.QueryRowContext(ctx, q, claimRef, now.UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClaimNotLive
	}
	return entry, err
}

// MarkClaimedTx resolves a NOTIFIED entry to CLAIMED, conditional on the
// entry still being in NOTIFIED state.
func (r *WaitlistRepo) MarkClaimedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	const q = `UPDATE waitlist_entries SET status = 'CLAIMED' WHERE id = ? AND status = 'NOTIFIED'`
	res, err := tx.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrClaimNotLive
	}
	return nil
}

// ExpireDueTx flips every NOTIFIED entry whose claim window has lapsed to
// EXPIRED and returns the affected entries so the caller can promote the
// next client for each freed claim. The select and the conditional update
// run in the caller's transaction.
func (r *WaitlistRepo) ExpireDueTx(ctx context.Context, tx *sql.Tx, now time.Time) ([]model.WaitlistEntry, error) {
	q := `SELECT ` + waitlistColumns + ` FROM waitlist_entries
	      WHERE status = 'NOTIFIED' AND expires_at <= ?
	      ORDER BY id FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, now.UTC())
	if err != nil {
		return nil, err
	}
	expired := make([]model.WaitlistEntry, 0)
	for rows.Next() {
		e, scanErr := scanWaitlistEntry(rows)
		if scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		expired = append(expired, *e)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return expired, nil
	}
	const upd = `UPDATE waitlist_entries SET status = 'EXPIRED'
	             WHERE status = 'NOTIFIED' AND expires_at <= ?`
	if _, err := tx.ExecContext(ctx, upd, now.UTC()); err != nil {
		return nil, err
	}
	return expired, nil
}

// DeleteBySessionTx removes every waitlist entry of a session as part of
// the studio cancellation cascade.
func (r *WaitlistRepo) DeleteBySessionTx(ctx context.Context, tx *sql.Tx, sessionID uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM waitlist_entries WHERE session_id = ?`, sessionID)
	return err
}
