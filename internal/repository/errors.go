// Package repository defines sentinel errors shared by the data access
// layer. Higher layers compare against these values with errors.Is to
// translate storage outcomes into HTTP responses or orchestration
// decisions. ErrForbidden covers tenant-scope violations, while the
// conditional-update errors (ErrAlreadyCancelled, ErrClaimNotLive)
// signal a lost compare-and-set race rather than a broken query.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource that belongs to a different client or studio. Handlers
// translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrSessionNotFound indicates the class session does not exist.
var ErrSessionNotFound = errors.New("class session not found")

// ErrReservationNotFound indicates the reservation does not exist.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrAlreadyCancelled is returned when a conditional cancellation update
// matches no row because the reservation is already in CANCELLED state.
// It is the loser's outcome in a concurrent double-cancel.
var ErrAlreadyCancelled = errors.New("reservation already cancelled")

// ErrCapacityExceeded is returned when admitting one more confirmed
// reservation would push a session past its capacity, or when a capacity
// edit would drop below the current confirmed count.
var ErrCapacityExceeded = errors.New("session capacity exceeded")

// ErrDuplicateWaitlistEntry is returned when a client already has a
// WAITING or NOTIFIED entry for the session.
var ErrDuplicateWaitlistEntry = errors.New("client already on waitlist")

// ErrClaimNotLive is returned when a claim reference does not match a
// NOTIFIED entry that is still inside its expiry window.
var ErrClaimNotLive = errors.New("waitlist claim is not live")
