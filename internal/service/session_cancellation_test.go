package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/renholm/studio-class-booking/internal/gateway"
	"github.com/renholm/studio-class-booking/internal/model"
	"github.com/renholm/studio-class-booking/internal/queue"
	"github.com/renholm/studio-class-booking/internal/repository"
	"github.com/renholm/studio-class-booking/internal/service"
)

const testStudioID uint64 = 3

func sessionFixture() (*storeMock, *gatewayMock, *notifierMock, *service.SessionCancellationService) {
	st := &storeMock{}
	gw := &gatewayMock{}
	nt := &notifierMock{}
	svc := service.NewSessionCancellationService(st, gw, nt)
	return st, gw, nt, svc
}

func paidReservation(id, paymentID uint64, clientID uint64, amountCents int64, intentRef string) repository.ReservationWithPayment {
	return repository.ReservationWithPayment{
		Reservation: model.Reservation{
			ID:          id,
			SessionID:   testSessionID,
			ClientID:    clientID,
			Status:      model.ReservationConfirmed,
			AmountCents: amountCents,
			PaymentID:   u64Ptr(paymentID),
		},
		Payment: &model.Payment{
			ID:               paymentID,
			AmountCents:      amountCents,
			Status:           model.PaymentSucceeded,
			PaymentIntentRef: strPtr(intentRef),
		},
	}
}

func sessionView(reservations []repository.ReservationWithPayment, waitlist []model.WaitlistEntry) *repository.SessionCancellationView {
	now := time.Now().UTC()
	return &repository.SessionCancellationView{
		Session: model.ClassSession{
			ID:          testSessionID,
			StudioID:    testStudioID,
			Title:       "Vinyasa Flow",
			TeacherName: "Mara Lindqvist",
			Location:    "Studio B",
			StartsAt:    now.Add(48 * time.Hour),
			EndsAt:      now.Add(49 * time.Hour),
			Capacity:    12,
		},
		Reservations: reservations,
		Waitlist:     waitlist,
	}
}

func TestCancelClassSession_RefundsAllThenPurges(t *testing.T) {
	st, gw, nt, svc := sessionFixture()
	ctx := context.Background()
	view := sessionView([]repository.ReservationWithPayment{
		paidReservation(11, 91, 42, 5000, "pi_a"),
		paidReservation(12, 92, 43, 3000, "pi_b"),
	}, []model.WaitlistEntry{
		{ID: 5, SessionID: testSessionID, ClientID: 77, Status: model.WaitlistWaiting},
	})

	st.On("SessionForCancellation", ctx, testSessionID, testStudioID).Return(view, nil)
	gw.On("Refund", ctx, "pi_a", int64(5000), gateway.IdempotencyKey("pi_a", 11)).
		Return(&gateway.RefundReceipt{RefundRef: "re_a", RefundedCents: 5000}, nil)
	gw.On("Refund", ctx, "pi_b", int64(3000), gateway.IdempotencyKey("pi_b", 12)).
		Return(&gateway.RefundReceipt{RefundRef: "re_b", RefundedCents: 3000}, nil)
	st.On("ApplyRefund", ctx, uint64(91), int64(5000), "re_a", mock.AnythingOfType("time.Time")).Return(nil)
	st.On("ApplyRefund", ctx, uint64(92), int64(3000), "re_b", mock.AnythingOfType("time.Time")).Return(nil)
	st.On("PurgeSession", ctx, testSessionID).Return(nil)
	nt.On("NotifyCancellation", ctx, mock.MatchedBy(func(n queue.CancellationNotice) bool {
		return n.CancelledBy == "studio" && !n.WasWaitlistOnly
	})).Return(nil).Twice()
	nt.On("NotifyCancellation", ctx, mock.MatchedBy(func(n queue.CancellationNotice) bool {
		return n.ClientID == 77 && n.WasWaitlistOnly && n.RefundStatus == string(service.RefundNone)
	})).Return(nil).Once()

	result, err := svc.CancelClassSession(ctx, testSessionID, testStudioID)

	require.NoError(t, err)
	assert.Equal(t, 2, result.RefundedClients)
	assert.Equal(t, 2, result.NotifiedClients)
	assert.Equal(t, 1, result.NotifiedWaitlist)
	st.AssertExpectations(t)
	gw.AssertExpectations(t)
	nt.AssertExpectations(t)
}

func TestCancelClassSession_OneFailureAbortsEverything(t *testing.T) {
	st, gw, nt, svc := sessionFixture()
	ctx := context.Background()
	view := sessionView([]repository.ReservationWithPayment{
		paidReservation(11, 91, 42, 5000, "pi_a"),
		paidReservation(12, 92, 43, 3000, "pi_b"),
	}, nil)

	st.On("SessionForCancellation", ctx, testSessionID, testStudioID).Return(view, nil)
	gw.On("Refund", ctx, "pi_a", int64(5000), mock.AnythingOfType("string")).
		Return(&gateway.RefundReceipt{RefundRef: "re_a", RefundedCents: 5000}, nil)
	st.On("ApplyRefund", ctx, uint64(91), int64(5000), "re_a", mock.AnythingOfType("time.Time")).Return(nil)
	gwErr := &gateway.Error{Code: "gateway_timeout", Message: "upstream timed out", Transient: true}
	gw.On("Refund", ctx, "pi_b", int64(3000), mock.AnythingOfType("string")).Return(nil, gwErr)
	st.On("RecordRefundFailure", ctx, uint64(92), gwErr.Error()).Return(nil)

	_, err := svc.CancelClassSession(ctx, testSessionID, testStudioID)

	var bulkErr *service.BulkRefundError
	require.ErrorAs(t, err, &bulkErr)
	require.Len(t, bulkErr.Failures, 1)
	assert.Equal(t, uint64(12), bulkErr.Failures[0].ReservationID)
	assert.Equal(t, uint64(92), bulkErr.Failures[0].PaymentID)
	// The first refund stays on record so a retry will not send it twice.
	st.AssertCalled(t, "ApplyRefund", ctx, uint64(91), int64(5000), "re_a", mock.AnythingOfType("time.Time"))
	st.AssertNotCalled(t, "PurgeSession", mock.Anything, mock.Anything)
	nt.AssertNotCalled(t, "NotifyCancellation", mock.Anything, mock.Anything)
}

func TestCancelClassSession_RetrySkipsSettledPayments(t *testing.T) {
	st, gw, nt, svc := sessionFixture()
	ctx := context.Background()
	settled := paidReservation(11, 91, 42, 5000, "pi_a")
	settled.Payment.Status = model.PaymentRefunded
	settled.Payment.RefundedCents = 5000
	settled.Payment.RefundRef = strPtr("re_prior")
	view := sessionView([]repository.ReservationWithPayment{
		settled,
		paidReservation(12, 92, 43, 3000, "pi_b"),
	}, nil)

	st.On("SessionForCancellation", ctx, testSessionID, testStudioID).Return(view, nil)
	gw.On("Refund", ctx, "pi_b", int64(3000), mock.AnythingOfType("string")).
		Return(&gateway.RefundReceipt{RefundRef: "re_b", RefundedCents: 3000}, nil)
	st.On("ApplyRefund", ctx, uint64(92), int64(3000), "re_b", mock.AnythingOfType("time.Time")).Return(nil)
	st.On("PurgeSession", ctx, testSessionID).Return(nil)
	nt.On("NotifyCancellation", ctx, mock.Anything).Return(nil)

	result, err := svc.CancelClassSession(ctx, testSessionID, testStudioID)

	require.NoError(t, err)
	assert.Equal(t, 2, result.RefundedClients)
	gw.AssertNotCalled(t, "Refund", ctx, "pi_a", mock.Anything, mock.Anything)
}

func TestCancelClassSession_MissingPaymentBlocksPurge(t *testing.T) {
	st, _, _, svc := sessionFixture()
	ctx := context.Background()
	broken := paidReservation(11, 91, 42, 5000, "pi_a")
	broken.Payment = nil
	view := sessionView([]repository.ReservationWithPayment{broken}, nil)

	st.On("SessionForCancellation", ctx, testSessionID, testStudioID).Return(view, nil)

	_, err := svc.CancelClassSession(ctx, testSessionID, testStudioID)

	var bulkErr *service.BulkRefundError
	require.ErrorAs(t, err, &bulkErr)
	require.Len(t, bulkErr.Failures, 1)
	assert.Equal(t, uint64(11), bulkErr.Failures[0].ReservationID)
	st.AssertNotCalled(t, "PurgeSession", mock.Anything, mock.Anything)
}

func TestCancelClassSession_UnpaidReservationsSkipGateway(t *testing.T) {
	st, gw, nt, svc := sessionFixture()
	ctx := context.Background()
	free := repository.ReservationWithPayment{
		Reservation: model.Reservation{
			ID: 11, SessionID: testSessionID, ClientID: 42,
			Status: model.ReservationConfirmed, AmountCents: 0,
		},
	}
	view := sessionView([]repository.ReservationWithPayment{free}, nil)

	st.On("SessionForCancellation", ctx, testSessionID, testStudioID).Return(view, nil)
	st.On("PurgeSession", ctx, testSessionID).Return(nil)
	nt.On("NotifyCancellation", ctx, mock.MatchedBy(func(n queue.CancellationNotice) bool {
		return n.RefundStatus == string(service.RefundNone)
	})).Return(nil)

	result, err := svc.CancelClassSession(ctx, testSessionID, testStudioID)

	require.NoError(t, err)
	assert.Zero(t, result.RefundedClients)
	assert.Equal(t, 1, result.NotifiedClients)
	gw.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelClassSession_ScopeForbidden(t *testing.T) {
	st, _, _, svc := sessionFixture()
	ctx := context.Background()

	st.On("SessionForCancellation", ctx, testSessionID, uint64(99)).
		Return(nil, repository.ErrForbidden)

	_, err := svc.CancelClassSession(ctx, testSessionID, 99)

	assert.ErrorIs(t, err, repository.ErrForbidden)
}

func TestCancelClassSession_PartialRefundTopUp(t *testing.T) {
	st, gw, nt, svc := sessionFixture()
	ctx := context.Background()
	partial := paidReservation(11, 91, 42, 5000, "pi_a")
	partial.Payment.Status = model.PaymentPartiallyRefunded
	partial.Payment.RefundedCents = 2000
	view := sessionView([]repository.ReservationWithPayment{partial}, nil)

	st.On("SessionForCancellation", ctx, testSessionID, testStudioID).Return(view, nil)
	// Only the 3000 still held is sent back.
	gw.On("Refund", ctx, "pi_a", int64(3000), mock.AnythingOfType("string")).
		Return(&gateway.RefundReceipt{RefundRef: "re_top", RefundedCents: 3000}, nil)
	st.On("ApplyRefund", ctx, uint64(91), int64(3000), "re_top", mock.AnythingOfType("time.Time")).Return(nil)
	st.On("PurgeSession", ctx, testSessionID).Return(nil)
	nt.On("NotifyCancellation", ctx, mock.Anything).Return(nil)

	result, err := svc.CancelClassSession(ctx, testSessionID, testStudioID)

	require.NoError(t, err)
	assert.Equal(t, 1, result.RefundedClients)
	gw.AssertExpectations(t)
}
