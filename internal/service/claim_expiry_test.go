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
	"github.com/renholm/studio-class-booking/internal/repository"
	"github.com/renholm/studio-class-booking/internal/service"
)

func sweeperFixture() (*storeMock, *notifierMock, *service.ClaimExpirySweeper) {
	st := &storeMock{}
	nt := &notifierMock{}
	promoter := service.NewWaitlistPromoter(st, nt, 2*time.Hour)
	sweeper := service.NewClaimExpirySweeper(st, promoter, time.Minute)
	return st, nt, sweeper
}

func TestSweepOnce_NothingDue(t *testing.T) {
	st, _, sweeper := sweeperFixture()

	st.On("ExpireDueClaims", mock.Anything, mock.AnythingOfType("time.Time")).
		Return([]model.WaitlistEntry{}, nil)

	n, err := sweeper.SweepOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
	st.AssertNotCalled(t, "SessionByID", mock.Anything, mock.Anything)
}

func TestSweepOnce_RepromotesFreedSeat(t *testing.T) {
	st, nt, sweeper := sweeperFixture()

	expired := []model.WaitlistEntry{
		{ID: 5, SessionID: testSessionID, ClientID: 77, Status: model.WaitlistExpired},
	}
	st.On("ExpireDueClaims", mock.Anything, mock.AnythingOfType("time.Time")).Return(expired, nil)
	st.On("SessionByID", mock.Anything, testSessionID).Return(testSession(), nil)

	expires := time.Now().UTC().Add(2 * time.Hour)
	promoted := &model.WaitlistEntry{ID: 6, SessionID: testSessionID, ClientID: 78, ExpiresAt: &expires}
	st.On("PromoteNextWaiting", mock.Anything, testSessionID, mock.AnythingOfType("string"),
		mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).Return(promoted, nil)
	nt.On("NotifyWaitlistClaim", mock.Anything, mock.Anything).Return(nil)

	n, err := sweeper.SweepOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	st.AssertExpectations(t)
	nt.AssertExpectations(t)
}

func TestSweepOnce_SkipsVanishedSession(t *testing.T) {
	st, _, sweeper := sweeperFixture()

	expired := []model.WaitlistEntry{
		{ID: 5, SessionID: testSessionID, ClientID: 77, Status: model.WaitlistExpired},
	}
	st.On("ExpireDueClaims", mock.Anything, mock.AnythingOfType("time.Time")).Return(expired, nil)
	st.On("SessionByID", mock.Anything, testSessionID).Return(nil, repository.ErrSessionNotFound)

	n, err := sweeper.SweepOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	st.AssertNotCalled(t, "PromoteNextWaiting",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepOnce_SkipsStartedSession(t *testing.T) {
	st, _, sweeper := sweeperFixture()

	expired := []model.WaitlistEntry{
		{ID: 5, SessionID: testSessionID, ClientID: 77, Status: model.WaitlistExpired},
	}
	started := testSession()
	started.StartsAt = time.Now().UTC().Add(-time.Hour)
	st.On("ExpireDueClaims", mock.Anything, mock.AnythingOfType("time.Time")).Return(expired, nil)
	st.On("SessionByID", mock.Anything, testSessionID).Return(started, nil)

	n, err := sweeper.SweepOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	st.AssertNotCalled(t, "PromoteNextWaiting",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepOnce_StoreError(t *testing.T) {
	st, _, sweeper := sweeperFixture()

	st.On("ExpireDueClaims", mock.Anything, mock.AnythingOfType("time.Time")).
		Return(nil, errors.New("deadlock"))

	_, err := sweeper.SweepOnce(context.Background())

	assert.Error(t, err)
}
