package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/renholm/studio-class-booking/internal/model"
	"github.com/renholm/studio-class-booking/internal/notifier"
	"github.com/renholm/studio-class-booking/internal/queue"
)

// PromotionStore is the storage surface the promoter needs: an atomic
// select-and-flip of the next WAITING entry.
type PromotionStore interface {
	// PromoteNextWaiting flips the lowest-position WAITING entry of the
	// session to NOTIFIED with the given claim window, in one
	// transaction keyed on the WAITING status. It returns nil when the
	// session has no waiting clients.
	PromoteNextWaiting(ctx context.Context, sessionID uint64, claimRef string, notifiedAt, expiresAt time.Time) (*model.WaitlistEntry, error)
}

// WaitlistPromoter offers a freed seat to the next queued client. One
// trigger promotes at most one entry: a cancelled reservation frees
// exactly one seat. The promoter's contract ends at emitting the
// time-boxed claim offer; accepting or expiring the claim is handled by
// the claim workflows.
type WaitlistPromoter struct {
	store       PromotionStore
	notifier    notifier.Notifier
	claimWindow time.Duration
	now         func() time.Time
}

// NewWaitlistPromoter constructs a promoter issuing claims valid for
// claimWindow.
func NewWaitlistPromoter(store PromotionStore, n notifier.Notifier, claimWindow time.Duration) *WaitlistPromoter {
	if claimWindow <= 0 {
		claimWindow = 2 * time.Hour
	}
	return &WaitlistPromoter{
		store:       store,
		notifier:    n,
		claimWindow: claimWindow,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// PromoteNext promotes the next waiting client of the session, if any,
// and dispatches the claim offer. The notification is fire-and-forget;
// its failure is logged and does not undo the promotion.
func (p *WaitlistPromoter) PromoteNext(ctx context.Context, session *model.ClassSession) (*model.WaitlistEntry, error) {
	now := p.now()
	claimRef := uuid.NewString()
	entry, err := p.store.PromoteNextWaiting(ctx, session.ID, claimRef, now, now.Add(p.claimWindow))
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	notice := queue.WaitlistClaimNotice{
		ClientID:     entry.ClientID,
		SessionID:    session.ID,
		SessionTitle: session.Title,
		StartsAt:     session.StartsAt.UTC().Format(time.RFC3339),
		ClaimRef:     claimRef,
		ExpiresAt:    entry.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if err := p.notifier.NotifyWaitlistClaim(ctx, notice); err != nil {
		log.Printf("waitlist-promoter: claim notice for entry %d: %v", entry.ID, err)
	}
	return entry, nil
}
