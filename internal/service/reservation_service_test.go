package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teerapat-l/seatgate/internal/domain"
	"github.com/teerapat-l/seatgate/internal/dto"
	"github.com/teerapat-l/seatgate/internal/repository"
)

// stubTokenGate is a TokenGate that admits everyone unless told otherwise
type stubTokenGate struct {
	mu             sync.Mutex
	validateErr    error
	completedUsers []int64
}

func (g *stubTokenGate) ValidateActive(_ context.Context, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.validateErr
}

func (g *stubTokenGate) CompleteUserToken(_ context.Context, userID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completedUsers = append(g.completedUsers, userID)
	return nil
}

type reservationFixture struct {
	seats *repository.MemorySeatStore
	gate  *stubTokenGate
	svc   ReservationService
}

func newReservationFixture(t *testing.T, cfg *ReservationServiceConfig) *reservationFixture {
	t.Helper()

	seats := repository.NewMemorySeatStore()
	gate := &stubTokenGate{}
	svc := NewReservationService(seats, nil, gate, nil, cfg)

	return &reservationFixture{seats: seats, gate: gate, svc: svc}
}

func (f *reservationFixture) createSeat(t *testing.T, seatID string) {
	t.Helper()
	require.NoError(t, f.seats.PutSeat(context.Background(), &domain.Seat{
		ID:         seatID,
		ConcertID:  "concert-1",
		ScheduleID: "schedule-1",
		SeatNumber: 1,
		Price:      1200,
		Status:     domain.SeatStatusAvailable,
	}))
}

func TestReservationService_HoldSeat(t *testing.T) {
	f := newReservationFixture(t, nil)
	f.createSeat(t, "seat-1")

	resp, err := f.svc.HoldSeat(context.Background(), "tok-1", &dto.HoldSeatRequest{
		UserID: 1,
		SeatID: "seat-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ReservationID)
	assert.Equal(t, string(domain.ReservationStatusPending), resp.Status)
	assert.Equal(t, "seat-1", resp.SeatID)
	assert.True(t, resp.ExpiresAt.After(time.Now()))
}

func TestReservationService_HoldSeat_TokenNotActive(t *testing.T) {
	f := newReservationFixture(t, nil)
	f.createSeat(t, "seat-1")
	f.gate.validateErr = domain.ErrTokenNotActive

	_, err := f.svc.HoldSeat(context.Background(), "tok-1", &dto.HoldSeatRequest{
		UserID: 1,
		SeatID: "seat-1",
	})
	assert.ErrorIs(t, err, domain.ErrTokenNotActive)
}

func TestReservationService_HoldSeat_SeatNotFound(t *testing.T) {
	f := newReservationFixture(t, nil)

	_, err := f.svc.HoldSeat(context.Background(), "tok-1", &dto.HoldSeatRequest{
		UserID: 1,
		SeatID: "missing",
	})
	assert.ErrorIs(t, err, domain.ErrSeatNotFound)
}

func TestReservationService_HoldSeat_SeatAlreadyReserved(t *testing.T) {
	f := newReservationFixture(t, nil)
	f.createSeat(t, "seat-1")
	ctx := context.Background()

	_, err := f.svc.HoldSeat(ctx, "tok-1", &dto.HoldSeatRequest{UserID: 1, SeatID: "seat-1"})
	require.NoError(t, err)

	_, err = f.svc.HoldSeat(ctx, "tok-2", &dto.HoldSeatRequest{UserID: 2, SeatID: "seat-1"})
	assert.ErrorIs(t, err, domain.ErrSeatAlreadyReserved)
}

func TestReservationService_HoldSeat_UserLimit(t *testing.T) {
	f := newReservationFixture(t, nil)
	f.createSeat(t, "seat-1")
	f.createSeat(t, "seat-2")
	ctx := context.Background()

	_, err := f.svc.HoldSeat(ctx, "tok-1", &dto.HoldSeatRequest{UserID: 1, SeatID: "seat-1"})
	require.NoError(t, err)

	_, err = f.svc.HoldSeat(ctx, "tok-1", &dto.HoldSeatRequest{UserID: 1, SeatID: "seat-2"})
	assert.ErrorIs(t, err, domain.ErrUserReservationLimit)
}

func TestReservationService_HoldSeat_Validation(t *testing.T) {
	f := newReservationFixture(t, nil)

	_, err := f.svc.HoldSeat(context.Background(), "tok-1", &dto.HoldSeatRequest{UserID: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidSeatID)

	_, err = f.svc.HoldSeat(context.Background(), "tok-1", &dto.HoldSeatRequest{SeatID: "seat-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidUserID)

	_, err = f.svc.HoldSeat(context.Background(), "tok-1", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidSeatID)
}

func TestReservationService_ConfirmReservation(t *testing.T) {
	f := newReservationFixture(t, nil)
	f.createSeat(t, "seat-1")
	ctx := context.Background()

	held, err := f.svc.HoldSeat(ctx, "tok-1", &dto.HoldSeatRequest{UserID: 1, SeatID: "seat-1"})
	require.NoError(t, err)

	confirmed, err := f.svc.ConfirmReservation(ctx, held.ReservationID, &dto.ConfirmReservationRequest{
		UserID:    1,
		PaymentID: "pay-1",
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReservationStatusConfirmed), confirmed.Status)
	assert.Equal(t, "pay-1", confirmed.PaymentID)
	assert.NotNil(t, confirmed.ConfirmedAt)

	// The purchase retired the user's admission token
	assert.Equal(t, []int64{1}, f.gate.completedUsers)

	// The seat is sold
	seat, err := f.seats.GetSeat(ctx, "seat-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SeatStatusConfirmed, seat.Status)
}

func TestReservationService_ConfirmReservation_WrongUser(t *testing.T) {
	f := newReservationFixture(t, nil)
	f.createSeat(t, "seat-1")
	ctx := context.Background()

	held, err := f.svc.HoldSeat(ctx, "tok-1", &dto.HoldSeatRequest{UserID: 1, SeatID: "seat-1"})
	require.NoError(t, err)

	_, err = f.svc.ConfirmReservation(ctx, held.ReservationID, &dto.ConfirmReservationRequest{
		UserID:    2,
		PaymentID: "pay-1",
	})
	assert.ErrorIs(t, err, domain.ErrReservationAccessDenied)
	assert.Empty(t, f.gate.completedUsers)
}

func TestReservationService_ConfirmReservation_ExpiredHold(t *testing.T) {
	f := newReservationFixture(t, &ReservationServiceConfig{HoldTTL: time.Nanosecond})
	f.createSeat(t, "seat-1")
	ctx := context.Background()

	held, err := f.svc.HoldSeat(ctx, "tok-1", &dto.HoldSeatRequest{UserID: 1, SeatID: "seat-1"})
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	_, err = f.svc.ConfirmReservation(ctx, held.ReservationID, &dto.ConfirmReservationRequest{
		UserID:    1,
		PaymentID: "pay-1",
	})
	assert.ErrorIs(t, err, domain.ErrReservationExpired)
}

func TestReservationService_CancelReservation(t *testing.T) {
	f := newReservationFixture(t, nil)
	f.createSeat(t, "seat-1")
	ctx := context.Background()

	held, err := f.svc.HoldSeat(ctx, "tok-1", &dto.HoldSeatRequest{UserID: 1, SeatID: "seat-1"})
	require.NoError(t, err)

	cancelled, err := f.svc.CancelReservation(ctx, held.ReservationID, &dto.CancelReservationRequest{
		UserID: 1,
		Reason: "changed plans",
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReservationStatusCancelled), cancelled.Status)
	assert.Equal(t, "changed plans", cancelled.CancelReason)

	seat, err := f.seats.GetSeat(ctx, "seat-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SeatStatusAvailable, seat.Status)
}

func TestReservationService_CancelReservation_WrongUser(t *testing.T) {
	f := newReservationFixture(t, nil)
	f.createSeat(t, "seat-1")
	ctx := context.Background()

	held, err := f.svc.HoldSeat(ctx, "tok-1", &dto.HoldSeatRequest{UserID: 1, SeatID: "seat-1"})
	require.NoError(t, err)

	_, err = f.svc.CancelReservation(ctx, held.ReservationID, &dto.CancelReservationRequest{UserID: 2})
	assert.ErrorIs(t, err, domain.ErrReservationAccessDenied)
}

func TestReservationService_CancelReservation_ConfirmedRejectedByDefault(t *testing.T) {
	f := newReservationFixture(t, nil)
	f.createSeat(t, "seat-1")
	ctx := context.Background()

	held, err := f.svc.HoldSeat(ctx, "tok-1", &dto.HoldSeatRequest{UserID: 1, SeatID: "seat-1"})
	require.NoError(t, err)

	_, err = f.svc.ConfirmReservation(ctx, held.ReservationID, &dto.ConfirmReservationRequest{
		UserID:    1,
		PaymentID: "pay-1",
	})
	require.NoError(t, err)

	_, err = f.svc.CancelReservation(ctx, held.ReservationID, &dto.CancelReservationRequest{UserID: 1})
	assert.ErrorIs(t, err, domain.ErrReservationAlreadyConfirmed)
}

func TestReservationService_CancelReservation_ConfirmedAllowedByPolicy(t *testing.T) {
	f := newReservationFixture(t, &ReservationServiceConfig{AllowConfirmedCancel: true})
	f.createSeat(t, "seat-1")
	ctx := context.Background()

	held, err := f.svc.HoldSeat(ctx, "tok-1", &dto.HoldSeatRequest{UserID: 1, SeatID: "seat-1"})
	require.NoError(t, err)

	_, err = f.svc.ConfirmReservation(ctx, held.ReservationID, &dto.ConfirmReservationRequest{
		UserID:    1,
		PaymentID: "pay-1",
	})
	require.NoError(t, err)

	cancelled, err := f.svc.CancelReservation(ctx, held.ReservationID, &dto.CancelReservationRequest{
		UserID: 1,
		Reason: "refund",
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReservationStatusCancelled), cancelled.Status)
}

func TestReservationService_CancelBySystem(t *testing.T) {
	f := newReservationFixture(t, nil)
	f.createSeat(t, "seat-1")
	ctx := context.Background()

	held, err := f.svc.HoldSeat(ctx, "tok-1", &dto.HoldSeatRequest{UserID: 1, SeatID: "seat-1"})
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelBySystem(ctx, held.ReservationID, "payment failed"))

	got, err := f.svc.GetReservation(ctx, held.ReservationID, 1)
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReservationStatusCancelled), got.Status)
	assert.Equal(t, "payment failed", got.CancelReason)
}

func TestReservationService_GetReservation_AccessDenied(t *testing.T) {
	f := newReservationFixture(t, nil)
	f.createSeat(t, "seat-1")
	ctx := context.Background()

	held, err := f.svc.HoldSeat(ctx, "tok-1", &dto.HoldSeatRequest{UserID: 1, SeatID: "seat-1"})
	require.NoError(t, err)

	_, err = f.svc.GetReservation(ctx, held.ReservationID, 2)
	assert.ErrorIs(t, err, domain.ErrReservationAccessDenied)
}

func TestReservationService_ReclaimExpired(t *testing.T) {
	f := newReservationFixture(t, &ReservationServiceConfig{HoldTTL: time.Nanosecond})
	f.createSeat(t, "seat-1")
	f.createSeat(t, "seat-2")
	ctx := context.Background()

	// seat-2 belongs to another concert, so user 1 can hold both
	seat2, err := f.seats.GetSeat(ctx, "seat-2")
	require.NoError(t, err)
	seat2.ConcertID = "concert-2"
	require.NoError(t, f.seats.PutSeat(ctx, seat2))

	held1, err := f.svc.HoldSeat(ctx, "tok-1", &dto.HoldSeatRequest{UserID: 1, SeatID: "seat-1"})
	require.NoError(t, err)
	held2, err := f.svc.HoldSeat(ctx, "tok-1", &dto.HoldSeatRequest{UserID: 1, SeatID: "seat-2"})
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	reclaimed, err := f.svc.ReclaimExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, reclaimed)

	for _, id := range []string{held1.ReservationID, held2.ReservationID} {
		got, err := f.svc.GetReservation(ctx, id, 1)
		require.NoError(t, err)
		assert.Equal(t, string(domain.ReservationStatusExpired), got.Status)
	}

	// Seats are back in inventory
	seat, err := f.seats.GetSeat(ctx, "seat-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SeatStatusAvailable, seat.Status)

	// A second pass finds nothing
	reclaimed, err = f.svc.ReclaimExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, reclaimed)
}

// slowSeatStore stretches the in-flight window of each hold so the
// ceiling test can observe overlapping attempts
type slowSeatStore struct {
	*repository.MemorySeatStore
	delay time.Duration
}

func (s *slowSeatStore) HoldSeat(ctx context.Context, params repository.HoldSeatParams) (*repository.HoldResult, error) {
	time.Sleep(s.delay)
	return s.MemorySeatStore.HoldSeat(ctx, params)
}

func TestReservationService_HoldSeat_ConcurrentCeiling(t *testing.T) {
	seats := repository.NewMemorySeatStore()
	slow := &slowSeatStore{MemorySeatStore: seats, delay: 20 * time.Millisecond}
	gate := &stubTokenGate{}
	svc := NewReservationService(slow, nil, gate, nil, &ReservationServiceConfig{ConcurrentCeiling: 1})
	ctx := context.Background()

	const attempts = 10
	for i := 1; i <= attempts; i++ {
		require.NoError(t, seats.PutSeat(ctx, &domain.Seat{
			ID:         fmt.Sprintf("seat-%d", i),
			ConcertID:  fmt.Sprintf("concert-%d", i),
			ScheduleID: "schedule-1",
			SeatNumber: i,
			Status:     domain.SeatStatusAvailable,
		}))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	shed := 0

	for i := 1; i <= attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.HoldSeat(ctx, "tok-1", &dto.HoldSeatRequest{
				UserID: int64(n),
				SeatID: fmt.Sprintf("seat-%d", n),
			})
			if errors.Is(err, domain.ErrTooManyHoldAttempts) {
				mu.Lock()
				shed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	// With a ceiling of one, overlapping attempts get shed rather than queued
	assert.Greater(t, shed, 0)

	// The ceiling only counts in-flight attempts; a later hold succeeds
	resp, err := svc.HoldSeat(ctx, "tok-1", &dto.HoldSeatRequest{UserID: 99, SeatID: "seat-1"})
	if err == nil {
		assert.NotEmpty(t, resp.ReservationID)
	} else {
		assert.ErrorIs(t, err, domain.ErrSeatAlreadyReserved)
	}
}

func TestReservationService_ListUserReservations(t *testing.T) {
	f := newReservationFixture(t, nil)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		seatID := fmt.Sprintf("seat-%d", i)
		f.createSeat(t, seatID)
		seat, err := f.seats.GetSeat(ctx, seatID)
		require.NoError(t, err)
		seat.ConcertID = fmt.Sprintf("concert-%d", i)
		require.NoError(t, f.seats.PutSeat(ctx, seat))

		_, err = f.svc.HoldSeat(ctx, "tok-1", &dto.HoldSeatRequest{UserID: 1, SeatID: seatID})
		require.NoError(t, err)
	}

	list, err := f.svc.ListUserReservations(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, list.Total)
	assert.Equal(t, "seat-3", list.Reservations[0].SeatID)
}

func TestReservationService_CreateAndListSeats(t *testing.T) {
	f := newReservationFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.CreateSeats(ctx, &dto.CreateSeatsRequest{
		ConcertID:  "concert-1",
		ScheduleID: "schedule-1",
		SeatCount:  10,
		Price:      900,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, created.Total)

	listed, err := f.svc.ListSeats(ctx, "concert-1", "schedule-1")
	require.NoError(t, err)
	assert.Equal(t, 10, listed.Total)
	for _, seat := range listed.Seats {
		assert.Equal(t, string(domain.SeatStatusAvailable), seat.Status)
	}
}
