package service_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/renholm/studio-class-booking/internal/gateway"
	"github.com/renholm/studio-class-booking/internal/model"
	"github.com/renholm/studio-class-booking/internal/queue"
	"github.com/renholm/studio-class-booking/internal/repository"
)

// storeMock covers every storage interface the services consume, so a
// single instance can back an orchestrator and its promoter at once.
type storeMock struct {
	mock.Mock
}

func (m *storeMock) ReservationForCancellation(ctx context.Context, reservationID, clientID uint64) (*repository.CancellationView, error) {
	args := m.Called(ctx, reservationID, clientID)
	if v := args.Get(0); v != nil {
		return v.(*repository.CancellationView), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *storeMock) RecordRefundFailure(ctx context.Context, paymentID uint64, message string) error {
	return m.Called(ctx, paymentID, message).Error(0)
}

func (m *storeMock) CommitCancellation(ctx context.Context, commit repository.CancellationCommit) error {
	return m.Called(ctx, commit).Error(0)
}

func (m *storeMock) SessionForCancellation(ctx context.Context, sessionID, studioID uint64) (*repository.SessionCancellationView, error) {
	args := m.Called(ctx, sessionID, studioID)
	if v := args.Get(0); v != nil {
		return v.(*repository.SessionCancellationView), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *storeMock) ApplyRefund(ctx context.Context, paymentID uint64, deltaCents int64, refundRef string, refundedAt time.Time) error {
	return m.Called(ctx, paymentID, deltaCents, refundRef, refundedAt).Error(0)
}

func (m *storeMock) PurgeSession(ctx context.Context, sessionID uint64) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *storeMock) PromoteNextWaiting(ctx context.Context, sessionID uint64, claimRef string, notifiedAt, expiresAt time.Time) (*model.WaitlistEntry, error) {
	args := m.Called(ctx, sessionID, claimRef, notifiedAt, expiresAt)
	if v := args.Get(0); v != nil {
		return v.(*model.WaitlistEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *storeMock) ExpireDueClaims(ctx context.Context, now time.Time) ([]model.WaitlistEntry, error) {
	args := m.Called(ctx, now)
	if v := args.Get(0); v != nil {
		return v.([]model.WaitlistEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *storeMock) SessionByID(ctx context.Context, sessionID uint64) (*model.ClassSession, error) {
	args := m.Called(ctx, sessionID)
	if v := args.Get(0); v != nil {
		return v.(*model.ClassSession), args.Error(1)
	}
	return nil, args.Error(1)
}

type gatewayMock struct {
	mock.Mock
}

func (m *gatewayMock) Refund(ctx context.Context, intentRef string, amountCents int64, idemKey string) (*gateway.RefundReceipt, error) {
	args := m.Called(ctx, intentRef, amountCents, idemKey)
	if v := args.Get(0); v != nil {
		return v.(*gateway.RefundReceipt), args.Error(1)
	}
	return nil, args.Error(1)
}

type notifierMock struct {
	mock.Mock
}

func (m *notifierMock) NotifyCancellation(ctx context.Context, notice queue.CancellationNotice) error {
	return m.Called(ctx, notice).Error(0)
}

func (m *notifierMock) NotifyWaitlistClaim(ctx context.Context, notice queue.WaitlistClaimNotice) error {
	return m.Called(ctx, notice).Error(0)
}

func strPtr(s string) *string { return &s }

func u64Ptr(v uint64) *uint64 { return &v }
