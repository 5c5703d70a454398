package model

import "time"

// ReservationStatus enumerates the lifecycle states of a reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationCompleted ReservationStatus = "COMPLETED"
	ReservationNoShow    ReservationStatus = "NO_SHOW"
)

// Reservation records a client's claim on a seat in a class session.
// Once CANCELLED the row is immutable apart from appending audit text
// to CancelNote.  AmountCents is the client's paid share; for bundle
// purchases several reservations may reference the same payment, and
// refund logic only ever touches this reservation's share.
//
// Fields:
//  ID          – primary key identifier.
//  SessionID   – class session being reserved.
//  ClientID    – client who made the reservation.
//  Status      – lifecycle state, see ReservationStatus.
//  AmountCents – amount the client paid for this reservation, in cents.
//  PaymentID   – optional link to the captured payment.
//  CancelNote  – free text plus appended cancellation audit entries.
//  CancelledAt – when the reservation was cancelled, if ever.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Reservation struct {
	ID          uint64            // reservations.id
	SessionID   uint64            // reservations.session_id
	ClientID    uint64            // reservations.client_id
	Status      ReservationStatus // reservations.status
	AmountCents int64             // reservations.amount_cents
	PaymentID   *uint64           // reservations.payment_id (nullable)
	CancelNote  string            // reservations.cancel_note
	CancelledAt *time.Time        // reservations.cancelled_at (nullable)
	CreatedAt   time.Time         // reservations.created_at
	UpdatedAt   time.Time         // reservations.updated_at
}

// Active reports whether the reservation still occupies a seat, i.e. it
// has not been cancelled and the class has not been attended yet.
func (r *Reservation) Active() bool {
	return r.Status == ReservationPending || r.Status == ReservationConfirmed
}
