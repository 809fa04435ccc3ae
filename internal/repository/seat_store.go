package repository

import (
	"context"
	"time"

	"github.com/teerapat-l/seatgate/internal/domain"
)

// Error codes returned by seat store operations
const (
	ErrCodeSeatNotFound        = "SEAT_NOT_FOUND"
	ErrCodeSeatNotAvailable    = "SEAT_NOT_AVAILABLE"
	ErrCodeUserLimit           = "USER_LIMIT"
	ErrCodeReservationNotFound = "RESERVATION_NOT_FOUND"
	ErrCodeReservationExpired  = "RESERVATION_EXPIRED"
	ErrCodeAlreadyConfirmed    = "ALREADY_CONFIRMED"
	ErrCodeAlreadyReleased     = "ALREADY_RELEASED"
)

// HoldSeatParams contains parameters for placing a hold on a seat
type HoldSeatParams struct {
	ReservationID string
	UserID        int64
	SeatID        string
	HoldTTL       time.Duration
	Now           time.Time
}

// HoldResult contains the result of a hold attempt
type HoldResult struct {
	Success      bool
	Reservation  *domain.Reservation
	ErrorCode    string
	ErrorMessage string
}

// ConfirmParams contains parameters for confirming a reservation
type ConfirmParams struct {
	ReservationID string
	PaymentID     string
	Now           time.Time
}

// ReleaseParams contains parameters for cancelling or reclaiming a hold
type ReleaseParams struct {
	ReservationID string
	Reason        string
	// MarkExpired records the release as a TTL reclaim rather than a cancel
	MarkExpired bool
	// AllowConfirmed permits releasing a CONFIRMED reservation
	AllowConfirmed bool
	Now            time.Time
}

// SeatStore is the authority on seat state and live reservations.
// Seat transitions and the per-user-per-concert limit are enforced
// atomically inside the store.
type SeatStore interface {
	// PutSeat creates or replaces a seat
	PutSeat(ctx context.Context, seat *domain.Seat) error

	// GetSeat returns the seat or ErrSeatNotFound
	GetSeat(ctx context.Context, seatID string) (*domain.Seat, error)

	// ListSeats returns all seats for a concert schedule
	ListSeats(ctx context.Context, concertID, scheduleID string) ([]*domain.Seat, error)

	// HoldSeat atomically transitions an AVAILABLE seat to HELD and
	// creates a PENDING reservation. At most one concurrent attempt
	// wins a given seat. Contention and limit failures come back as
	// error codes in the result, not as errors.
	HoldSeat(ctx context.Context, params HoldSeatParams) (*HoldResult, error)

	// ConfirmReservation transitions a live PENDING reservation and its
	// seat to CONFIRMED. Fails once the hold has expired.
	ConfirmReservation(ctx context.Context, params ConfirmParams) (*domain.Reservation, error)

	// ReleaseReservation cancels or reclaims a hold, returning the seat
	// to AVAILABLE and freeing the user's concert slot
	ReleaseReservation(ctx context.Context, params ReleaseParams) (*domain.Reservation, error)

	// GetReservation returns the reservation or ErrReservationNotFound
	GetReservation(ctx context.Context, reservationID string) (*domain.Reservation, error)

	// ListUserReservations returns all reservations for a user, newest first
	ListUserReservations(ctx context.Context, userID int64) ([]*domain.Reservation, error)

	// FindExpiredPending returns PENDING reservations whose hold TTL
	// has lapsed as of now
	FindExpiredPending(ctx context.Context, now time.Time) ([]*domain.Reservation, error)
}
