package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teerapat-l/seatgate/internal/domain"
	"github.com/teerapat-l/seatgate/internal/dto"
	"github.com/teerapat-l/seatgate/internal/repository"
	"github.com/teerapat-l/seatgate/internal/service"
)

func newPaymentFixture(t *testing.T) (*repository.MemorySeatStore, *PaymentConsumer, string) {
	t.Helper()

	seats := repository.NewMemorySeatStore()
	reservations := service.NewReservationService(seats, nil, openGate{}, nil, nil)
	consumer := NewPaymentConsumer(nil, reservations, &PaymentConsumerConfig{
		WorkerCount:   1,
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	})
	ctx := context.Background()

	require.NoError(t, seats.PutSeat(ctx, &domain.Seat{
		ID:         "seat-1",
		ConcertID:  "concert-1",
		ScheduleID: "schedule-1",
		SeatNumber: 1,
		Status:     domain.SeatStatusAvailable,
	}))

	held, err := reservations.HoldSeat(ctx, "tok-1", &dto.HoldSeatRequest{UserID: 1, SeatID: "seat-1"})
	require.NoError(t, err)

	return seats, consumer, held.ReservationID
}

func TestPaymentConsumer_Settle_Completed(t *testing.T) {
	seats, consumer, reservationID := newPaymentFixture(t)
	ctx := context.Background()

	err := consumer.settle(ctx, &PaymentEvent{
		EventType:     PaymentEventCompleted,
		ReservationID: reservationID,
		UserID:        1,
		PaymentID:     "pay-1",
	})
	require.NoError(t, err)

	reservation, err := seats.GetReservation(ctx, reservationID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusConfirmed, reservation.Status)
	assert.Equal(t, "pay-1", reservation.PaymentID)
}

func TestPaymentConsumer_Settle_Failed(t *testing.T) {
	seats, consumer, reservationID := newPaymentFixture(t)
	ctx := context.Background()

	err := consumer.settle(ctx, &PaymentEvent{
		EventType:     PaymentEventFailed,
		ReservationID: reservationID,
		UserID:        1,
		Reason:        "card declined",
	})
	require.NoError(t, err)

	reservation, err := seats.GetReservation(ctx, reservationID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusCancelled, reservation.Status)
	assert.Equal(t, "card declined", reservation.CancelReason)

	// The seat is back in inventory
	seat, err := seats.GetSeat(ctx, "seat-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SeatStatusAvailable, seat.Status)
}

func TestPaymentConsumer_Settle_UnknownEventType(t *testing.T) {
	seats, consumer, reservationID := newPaymentFixture(t)
	ctx := context.Background()

	err := consumer.settle(ctx, &PaymentEvent{
		EventType:     "payment.pending",
		ReservationID: reservationID,
	})
	require.NoError(t, err)

	// Nothing changed
	reservation, err := seats.GetReservation(ctx, reservationID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusPending, reservation.Status)
}

func TestPaymentConsumer_IsTerminalSettleError(t *testing.T) {
	assert.True(t, isTerminalSettleError(domain.ErrReservationAlreadyConfirmed))
	assert.True(t, isTerminalSettleError(domain.ErrReservationAlreadyReleased))
	assert.True(t, isTerminalSettleError(domain.ErrReservationNotFound))
	assert.True(t, isTerminalSettleError(domain.ErrReservationExpired))
	assert.True(t, isTerminalSettleError(domain.ErrReservationAccessDenied))
	assert.False(t, isTerminalSettleError(context.DeadlineExceeded))
}
