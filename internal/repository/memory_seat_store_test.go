package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teerapat-l/seatgate/internal/domain"
)

func newTestSeat(id string) *domain.Seat {
	return &domain.Seat{
		ID:         id,
		ConcertID:  "concert-1",
		ScheduleID: "schedule-1",
		SeatNumber: 1,
		Price:      1500,
		Status:     domain.SeatStatusAvailable,
	}
}

func holdParams(reservationID string, userID int64, seatID string) HoldSeatParams {
	return HoldSeatParams{
		ReservationID: reservationID,
		UserID:        userID,
		SeatID:        seatID,
		HoldTTL:       5 * time.Minute,
		Now:           time.Now(),
	}
}

func TestMemorySeatStore_HoldSeat(t *testing.T) {
	store := NewMemorySeatStore()
	ctx := context.Background()

	require.NoError(t, store.PutSeat(ctx, newTestSeat("seat-1")))

	result, err := store.HoldSeat(ctx, holdParams("res-1", 1, "seat-1"))
	require.NoError(t, err)
	require.True(t, result.Success)

	reservation := result.Reservation
	assert.Equal(t, "res-1", reservation.ID)
	assert.Equal(t, domain.ReservationStatusPending, reservation.Status)
	assert.True(t, reservation.ExpiresAt.After(reservation.CreatedAt))

	seat, err := store.GetSeat(ctx, "seat-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SeatStatusHeld, seat.Status)
}

func TestMemorySeatStore_HoldSeat_SeatNotFound(t *testing.T) {
	store := NewMemorySeatStore()

	result, err := store.HoldSeat(context.Background(), holdParams("res-1", 1, "missing"))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ErrCodeSeatNotFound, result.ErrorCode)
}

func TestMemorySeatStore_HoldSeat_AlreadyHeld(t *testing.T) {
	store := NewMemorySeatStore()
	ctx := context.Background()

	require.NoError(t, store.PutSeat(ctx, newTestSeat("seat-1")))

	result, err := store.HoldSeat(ctx, holdParams("res-1", 1, "seat-1"))
	require.NoError(t, err)
	require.True(t, result.Success)

	result, err = store.HoldSeat(ctx, holdParams("res-2", 2, "seat-1"))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ErrCodeSeatNotAvailable, result.ErrorCode)
}

func TestMemorySeatStore_HoldSeat_UserLimitPerConcert(t *testing.T) {
	store := NewMemorySeatStore()
	ctx := context.Background()

	require.NoError(t, store.PutSeat(ctx, newTestSeat("seat-1")))
	require.NoError(t, store.PutSeat(ctx, newTestSeat("seat-2")))

	result, err := store.HoldSeat(ctx, holdParams("res-1", 1, "seat-1"))
	require.NoError(t, err)
	require.True(t, result.Success)

	// Same user, same concert, different seat
	result, err = store.HoldSeat(ctx, holdParams("res-2", 1, "seat-2"))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ErrCodeUserLimit, result.ErrorCode)

	// A different concert is unaffected
	other := newTestSeat("seat-3")
	other.ConcertID = "concert-2"
	require.NoError(t, store.PutSeat(ctx, other))

	result, err = store.HoldSeat(ctx, holdParams("res-3", 1, "seat-3"))
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestMemorySeatStore_HoldSeat_ConcurrentOneWinner(t *testing.T) {
	store := NewMemorySeatStore()
	ctx := context.Background()

	require.NoError(t, store.PutSeat(ctx, newTestSeat("seat-1")))

	const attempts = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			result, err := store.HoldSeat(ctx, holdParams(
				fmt.Sprintf("res-%d", n), int64(n+1), "seat-1"))
			if err == nil && result.Success {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestMemorySeatStore_ConfirmReservation(t *testing.T) {
	store := NewMemorySeatStore()
	ctx := context.Background()

	require.NoError(t, store.PutSeat(ctx, newTestSeat("seat-1")))
	result, err := store.HoldSeat(ctx, holdParams("res-1", 1, "seat-1"))
	require.NoError(t, err)
	require.True(t, result.Success)

	confirmed, err := store.ConfirmReservation(ctx, ConfirmParams{
		ReservationID: "res-1",
		PaymentID:     "pay-1",
		Now:           time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusConfirmed, confirmed.Status)
	assert.Equal(t, "pay-1", confirmed.PaymentID)
	assert.NotNil(t, confirmed.ConfirmedAt)

	seat, err := store.GetSeat(ctx, "seat-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SeatStatusConfirmed, seat.Status)

	// Confirming twice conflicts
	_, err = store.ConfirmReservation(ctx, ConfirmParams{
		ReservationID: "res-1",
		PaymentID:     "pay-2",
		Now:           time.Now(),
	})
	assert.ErrorIs(t, err, domain.ErrReservationAlreadyConfirmed)
}

func TestMemorySeatStore_ConfirmReservation_ExpiredHold(t *testing.T) {
	store := NewMemorySeatStore()
	ctx := context.Background()

	require.NoError(t, store.PutSeat(ctx, newTestSeat("seat-1")))

	params := holdParams("res-1", 1, "seat-1")
	params.HoldTTL = time.Minute
	result, err := store.HoldSeat(ctx, params)
	require.NoError(t, err)
	require.True(t, result.Success)

	_, err = store.ConfirmReservation(ctx, ConfirmParams{
		ReservationID: "res-1",
		PaymentID:     "pay-1",
		Now:           time.Now().Add(2 * time.Minute),
	})
	assert.ErrorIs(t, err, domain.ErrReservationExpired)

	// The reservation is untouched until the reaper reclaims it
	reservation, err := store.GetReservation(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusPending, reservation.Status)
}

func TestMemorySeatStore_ReleaseReservation_Cancel(t *testing.T) {
	store := NewMemorySeatStore()
	ctx := context.Background()

	require.NoError(t, store.PutSeat(ctx, newTestSeat("seat-1")))
	result, err := store.HoldSeat(ctx, holdParams("res-1", 1, "seat-1"))
	require.NoError(t, err)
	require.True(t, result.Success)

	released, err := store.ReleaseReservation(ctx, ReleaseParams{
		ReservationID: "res-1",
		Reason:        "changed my mind",
		Now:           time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusCancelled, released.Status)
	assert.Equal(t, "changed my mind", released.CancelReason)
	assert.NotNil(t, released.CancelledAt)

	// The seat returns to inventory
	seat, err := store.GetSeat(ctx, "seat-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SeatStatusAvailable, seat.Status)

	// And the user may hold again
	result, err = store.HoldSeat(ctx, holdParams("res-2", 1, "seat-1"))
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestMemorySeatStore_ReleaseReservation_ConfirmedNeedsOverride(t *testing.T) {
	store := NewMemorySeatStore()
	ctx := context.Background()

	require.NoError(t, store.PutSeat(ctx, newTestSeat("seat-1")))
	result, err := store.HoldSeat(ctx, holdParams("res-1", 1, "seat-1"))
	require.NoError(t, err)
	require.True(t, result.Success)

	_, err = store.ConfirmReservation(ctx, ConfirmParams{
		ReservationID: "res-1",
		PaymentID:     "pay-1",
		Now:           time.Now(),
	})
	require.NoError(t, err)

	_, err = store.ReleaseReservation(ctx, ReleaseParams{
		ReservationID: "res-1",
		Reason:        "refund",
		Now:           time.Now(),
	})
	assert.ErrorIs(t, err, domain.ErrReservationAlreadyConfirmed)

	released, err := store.ReleaseReservation(ctx, ReleaseParams{
		ReservationID:  "res-1",
		Reason:         "refund",
		AllowConfirmed: true,
		Now:            time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusCancelled, released.Status)
}

func TestMemorySeatStore_ReleaseReservation_MarkExpired(t *testing.T) {
	store := NewMemorySeatStore()
	ctx := context.Background()

	require.NoError(t, store.PutSeat(ctx, newTestSeat("seat-1")))

	params := holdParams("res-1", 1, "seat-1")
	params.HoldTTL = time.Minute
	result, err := store.HoldSeat(ctx, params)
	require.NoError(t, err)
	require.True(t, result.Success)

	released, err := store.ReleaseReservation(ctx, ReleaseParams{
		ReservationID: "res-1",
		Reason:        "hold TTL expired",
		MarkExpired:   true,
		Now:           time.Now().Add(2 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusExpired, released.Status)

	// Releasing twice conflicts
	_, err = store.ReleaseReservation(ctx, ReleaseParams{
		ReservationID: "res-1",
		Reason:        "again",
		MarkExpired:   true,
		Now:           time.Now(),
	})
	assert.ErrorIs(t, err, domain.ErrReservationAlreadyReleased)
}

func TestMemorySeatStore_FindExpiredPending(t *testing.T) {
	store := NewMemorySeatStore()
	ctx := context.Background()

	require.NoError(t, store.PutSeat(ctx, newTestSeat("seat-1")))
	require.NoError(t, store.PutSeat(ctx, newTestSeat("seat-2")))

	short := holdParams("res-1", 1, "seat-1")
	short.HoldTTL = time.Minute
	result, err := store.HoldSeat(ctx, short)
	require.NoError(t, err)
	require.True(t, result.Success)

	long := holdParams("res-2", 2, "seat-2")
	long.HoldTTL = time.Hour
	result, err = store.HoldSeat(ctx, long)
	require.NoError(t, err)
	require.True(t, result.Success)

	expired, err := store.FindExpiredPending(ctx, time.Now().Add(5*time.Minute))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "res-1", expired[0].ID)
}

func TestMemorySeatStore_ListUserReservations_NewestFirst(t *testing.T) {
	store := NewMemorySeatStore()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		seat := newTestSeat(fmt.Sprintf("seat-%d", i))
		seat.ConcertID = fmt.Sprintf("concert-%d", i)
		require.NoError(t, store.PutSeat(ctx, seat))

		params := holdParams(fmt.Sprintf("res-%d", i), 1, seat.ID)
		params.Now = time.Now().Add(time.Duration(i) * time.Second)
		result, err := store.HoldSeat(ctx, params)
		require.NoError(t, err)
		require.True(t, result.Success)
	}

	reservations, err := store.ListUserReservations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, reservations, 3)
	assert.Equal(t, "res-3", reservations[0].ID)
	assert.Equal(t, "res-1", reservations[2].ID)
}
