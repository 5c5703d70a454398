package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/renholm/studio-class-booking/internal/model"
	"github.com/renholm/studio-class-booking/internal/repository"
)

// SweeperStore is the storage surface of the claim-expiry sweeper.
type SweeperStore interface {
	// ExpireDueClaims flips lapsed NOTIFIED claims to EXPIRED and
	// returns them.
	ExpireDueClaims(ctx context.Context, now time.Time) ([]model.WaitlistEntry, error)
	// SessionByID loads the session a freed seat belongs to.
	SessionByID(ctx context.Context, sessionID uint64) (*model.ClassSession, error)
}

// ClaimExpirySweeper periodically expires lapsed waitlist claims and
// offers each freed seat to the next waiting client.
type ClaimExpirySweeper struct {
	store    SweeperStore
	promoter *WaitlistPromoter
	interval time.Duration
	now      func() time.Time
}

func NewClaimExpirySweeper(store SweeperStore, promoter *WaitlistPromoter, interval time.Duration) *ClaimExpirySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ClaimExpirySweeper{
		store:    store,
		promoter: promoter,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps on a fixed interval until the context is cancelled. Launch
// it in its own goroutine.
func (s *ClaimExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				log.Printf("claim sweeper: %v", err)
			} else if n > 0 {
				log.Printf("claim sweeper: expired %d claim(s)", n)
			}
		}
	}
}

// SweepOnce expires every due claim and re-promotes per freed seat. It
// returns the number of claims expired. Promotion failures are logged
// and do not abort the sweep; the next tick retries the promotion
// because the seat is still free.
func (s *ClaimExpirySweeper) SweepOnce(ctx context.Context) (int, error) {
	expired, err := s.store.ExpireDueClaims(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, entry := range expired {
		sess, err := s.store.SessionByID(ctx, entry.SessionID)
		if err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				// Session was cancelled while the claim was pending.
				continue
			}
			log.Printf("claim sweeper: load session %d: %v", entry.SessionID, err)
			continue
		}
		if !sess.StartsAt.After(s.now()) {
			continue
		}
		if _, err := s.promoter.PromoteNext(ctx, sess); err != nil {
			log.Printf("claim sweeper: promote on session %d: %v", entry.SessionID, err)
		}
	}
	return len(expired), nil
}
