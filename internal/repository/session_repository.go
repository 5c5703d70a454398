package repository

// This file covers class sessions. Sessions are the unit the studio
// schedules and, through the cancellation workflow, the unit it removes
// again; every mutation that touches capacity is guarded against the
// current confirmed reservation count inside a transaction.

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/renholm/studio-class-booking/internal/model"
)

// SessionRepo manages persistence for class sessions.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a new SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// DB exposes the underlying sql.DB so callers can begin transactions
// spanning multiple repositories.
func (r *SessionRepo) DB() *sql.DB { return r.db }

const sessionColumns = `id, studio_id, title, teacher_name, location, starts_at, ends_at, capacity, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*model.ClassSession, error) {
	var s model.ClassSession
	err := row.Scan(&s.ID, &s.StudioID, &s.Title, &s.TeacherName, &s.Location,
		&s.StartsAt, &s.EndsAt, &s.Capacity, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new class session and populates generated fields on
// the provided struct.
func (r *SessionRepo) Create(ctx context.Context, s *model.ClassSession) error {
	const q = `INSERT INTO class_sessions (studio_id, title, teacher_name, location, starts_at, ends_at, capacity)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.StudioID, s.Title, s.TeacherName, s.Location,
		s.StartsAt.UTC(), s.EndsAt.UTC(), s.Capacity)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	sel := `SELECT ` + sessionColumns + ` FROM class_sessions WHERE id = ?`
	got, err := scanSession(r.db.QueryRowContext(ctx, sel, s.ID))
	if err != nil {
		return err
	}
	*s = *got
	return nil
}

// GetByID loads a session by primary key. ErrSessionNotFound is returned
// when no row exists.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*model.ClassSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM class_sessions WHERE id = ?`
	s, err := scanSession(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return s, err
}

// ListUpcoming returns sessions starting after the given instant in
// start order, capped at limit rows.
func (r *SessionRepo) ListUpcoming(ctx context.Context, after time.Time, limit int) ([]model.ClassSession, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT ` + sessionColumns + ` FROM class_sessions
	      WHERE starts_at > ? ORDER BY starts_at ASC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ClassSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// GetByIDForStudio loads a session and verifies studio ownership. It
// returns ErrSessionNotFound when the row does not exist and ErrForbidden
// when it belongs to another studio.
func (r *SessionRepo) GetByIDForStudio(ctx context.Context, id, studioID uint64) (*model.ClassSession, error) {
	s, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.StudioID != studioID {
		return nil, ErrForbidden
	}
	return s, nil
}

// ConfirmedCountTx returns the number of CONFIRMED reservations for the
// session within the given transaction. The row set is locked so the
// count stays valid for the remainder of the transaction.
func (r *SessionRepo) ConfirmedCountTx(ctx context.Context, tx *sql.Tx, sessionID uint64) (uint32, error) {
	const q = `SELECT COUNT(*) FROM reservations
	           WHERE session_id = ? AND status = 'CONFIRMED' FOR UPDATE`
	var n uint32
	if err := tx.QueryRowContext(ctx, q, sessionID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// UpdateSchedule applies capacity and time edits on behalf of the owning
// studio. A capacity reduction below the current confirmed count is
// rejected with ErrCapacityExceeded instead of being silently truncated;
// the check and the update share one transaction so a racing booking
// cannot slip in between.
func (r *SessionRepo) UpdateSchedule(ctx context.Context, id, studioID uint64, s *model.ClassSession) error {
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

	const ownQ = `SELECT studio_id FROM class_sessions WHERE id = ? FOR UPDATE`
	var owner uint64
	if err := tx.QueryRowContext(ctx, ownQ, id).Scan(&owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSessionNotFound
		}
		return err
	}
	if owner != studioID {
		return ErrForbidden
	}

	confirmed, err := r.ConfirmedCountTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if s.Capacity < confirmed {
		return ErrCapacityExceeded
	}

	const upd = `UPDATE class_sessions
	             SET title = ?, teacher_name = ?, location = ?, starts_at = ?, ends_at = ?, capacity = ?
	             WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd, s.Title, s.TeacherName, s.Location,
		s.StartsAt.UTC(), s.EndsAt.UTC(), s.Capacity, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// DeleteTx removes the session row itself. Callers must have removed the
// dependent reservations and waitlist entries in the same transaction
// beforehand; the cancellation workflow is the only code path allowed to
// do this.
func (r *SessionRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM class_sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}
