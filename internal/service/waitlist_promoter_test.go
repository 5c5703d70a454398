package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/renholm/studio-class-booking/internal/model"
	"github.com/renholm/studio-class-booking/internal/queue"
	"github.com/renholm/studio-class-booking/internal/service"
)

func testSession() *model.ClassSession {
	now := time.Now().UTC()
	return &model.ClassSession{
		ID:       testSessionID,
		StudioID: testStudioID,
		Title:    "Vinyasa Flow",
		StartsAt: now.Add(48 * time.Hour),
		Capacity: 12,
	}
}

func TestPromoteNext_EmptyQueue(t *testing.T) {
	st := &storeMock{}
	nt := &notifierMock{}
	promoter := service.NewWaitlistPromoter(st, nt, 2*time.Hour)

	st.On("PromoteNextWaiting", mock.Anything, testSessionID, mock.AnythingOfType("string"),
		mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).Return(nil, nil)

	entry, err := promoter.PromoteNext(context.Background(), testSession())

	require.NoError(t, err)
	assert.Nil(t, entry)
	nt.AssertNotCalled(t, "NotifyWaitlistClaim", mock.Anything, mock.Anything)
}

func TestPromoteNext_NotifiesWithClaimWindow(t *testing.T) {
	st := &storeMock{}
	nt := &notifierMock{}
	promoter := service.NewWaitlistPromoter(st, nt, 90*time.Minute)

	var claimRef string
	var notifiedAt, expiresAt time.Time
	entry := &model.WaitlistEntry{ID: 5, SessionID: testSessionID, ClientID: 77, Status: model.WaitlistNotified}
	st.On("PromoteNextWaiting", mock.Anything, testSessionID, mock.AnythingOfType("string"),
		mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) {
			claimRef = args.String(2)
			notifiedAt = args.Get(3).(time.Time)
			expiresAt = args.Get(4).(time.Time)
			entry.ClaimRef = &claimRef
			entry.NotifiedAt = &notifiedAt
			entry.ExpiresAt = &expiresAt
		}).
		Return(entry, nil)
	nt.On("NotifyWaitlistClaim", mock.Anything, mock.AnythingOfType("queue.WaitlistClaimNotice")).Return(nil)

	entry, err := promoter.PromoteNext(context.Background(), testSession())

	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.NotEmpty(t, claimRef)
	assert.Equal(t, 90*time.Minute, expiresAt.Sub(notifiedAt))

	notice := nt.Calls[0].Arguments.Get(1).(queue.WaitlistClaimNotice)
	assert.Equal(t, uint64(77), notice.ClientID)
	assert.Equal(t, claimRef, notice.ClaimRef)
	assert.Equal(t, expiresAt.UTC().Format(time.RFC3339), notice.ExpiresAt)
}

func TestPromoteNext_NotifyFailureKeepsPromotion(t *testing.T) {
	st := &storeMock{}
	nt := &notifierMock{}
	promoter := service.NewWaitlistPromoter(st, nt, 2*time.Hour)

	expires := time.Now().UTC().Add(2 * time.Hour)
	st.On("PromoteNextWaiting", mock.Anything, testSessionID, mock.AnythingOfType("string"),
		mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return(&model.WaitlistEntry{ID: 5, SessionID: testSessionID, ClientID: 77, ExpiresAt: &expires}, nil)
	nt.On("NotifyWaitlistClaim", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	entry, err := promoter.PromoteNext(context.Background(), testSession())

	require.NoError(t, err)
	assert.NotNil(t, entry)
}

func TestPromoteNext_StoreError(t *testing.T) {
	st := &storeMock{}
	nt := &notifierMock{}
	promoter := service.NewWaitlistPromoter(st, nt, 2*time.Hour)

	st.On("PromoteNextWaiting", mock.Anything, testSessionID, mock.AnythingOfType("string"),
		mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return(nil, errors.New("deadlock"))

	_, err := promoter.PromoteNext(context.Background(), testSession())

	assert.Error(t, err)
	nt.AssertNotCalled(t, "NotifyWaitlistClaim", mock.Anything, mock.Anything)
}
