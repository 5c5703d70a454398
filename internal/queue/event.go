// Package queue defines message payloads exchanged over the message broker.
package queue

// CancellationNotice is published when a reservation or a whole session
// is cancelled. It carries enough information for downstream consumers to
// compose the client-facing message without querying the primary
// database. Refund fields are zero-valued for unpaid reservations and
// for waiting-list recipients of a session cancellation.
type CancellationNotice struct {
	ClientID        uint64 `json:"client_id"`
	SessionID       uint64 `json:"session_id"`
	SessionTitle    string `json:"session_title"`
	TeacherName     string `json:"teacher_name"`
	Location        string `json:"location"`
	StartsAt        string `json:"starts_at"`
	CancelledBy     string `json:"cancelled_by"` // "client" or "studio"
	RefundStatus    string `json:"refund_status"`
	RefundedCents   int64  `json:"refunded_cents"`
	RefundRef       string `json:"refund_ref,omitempty"`
	CancelledAt     string `json:"cancelled_at"`
	WasWaitlistOnly bool   `json:"was_waitlist_only"`
}

// WaitlistClaimNotice is published when a freed seat is offered to the
// next waiting client. The claim reference and expiry let the client act
// on the offer before it lapses.
type WaitlistClaimNotice struct {
	ClientID     uint64 `json:"client_id"`
	SessionID    uint64 `json:"session_id"`
	SessionTitle string `json:"session_title"`
	StartsAt     string `json:"starts_at"`
	ClaimRef     string `json:"claim_ref"`
	ExpiresAt    string `json:"expires_at"`
}
