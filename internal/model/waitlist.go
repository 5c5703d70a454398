package model

import "time"

// WaitlistStatus enumerates the states of a waitlist entry.
type WaitlistStatus string

const (
	WaitlistWaiting   WaitlistStatus = "WAITING"
	WaitlistNotified  WaitlistStatus = "NOTIFIED"
	WaitlistClaimed   WaitlistStatus = "CLAIMED"
	WaitlistExpired   WaitlistStatus = "EXPIRED"
	WaitlistCancelled WaitlistStatus = "CANCELLED"
)

// WaitlistEntry queues a client for a seat on a full class session.
// Position is assigned at creation as max(position)+1 for the session and
// is never reused; it alone defines promotion order.  At most one entry
// per (session, client) may be in WAITING or NOTIFIED state.  When a seat
// frees up the lowest-position WAITING entry is flipped to NOTIFIED and
// given a time-boxed claim identified by ClaimRef.
//
// Fields:
//  ID         – primary key identifier.
//  SessionID  – class session the client is queueing for.
//  ClientID   – queued client.
//  Position   – promotion order, strictly increasing per session.
//  Status     – see WaitlistStatus.
//  ClaimRef   – opaque reference for a pending claim, set on promotion.
//  NotifiedAt – when the claim offer was issued.
//  ExpiresAt  – when the claim offer lapses.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type WaitlistEntry struct {
	ID         uint64         // waitlist_entries.id
	SessionID  uint64         // waitlist_entries.session_id
	ClientID   uint64         // waitlist_entries.client_id
	Position   uint32         // waitlist_entries.position
	Status     WaitlistStatus // waitlist_entries.status
	ClaimRef   *string        // waitlist_entries.claim_ref (nullable)
	NotifiedAt *time.Time     // waitlist_entries.notified_at (nullable)
	ExpiresAt  *time.Time     // waitlist_entries.expires_at (nullable)
	CreatedAt  time.Time      // waitlist_entries.created_at
	UpdatedAt  time.Time      // waitlist_entries.updated_at
}
