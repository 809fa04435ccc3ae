package repository

import (
	"context"
	"time"

	"github.com/teerapat-l/seatgate/internal/domain"
)

// ReservationRecords is the durable audit trail of reservations. The
// seat store stays authoritative for live state; records are written
// after the fact and a write failure never rolls back a hold.
type ReservationRecords interface {
	// Insert writes a freshly created PENDING reservation
	Insert(ctx context.Context, reservation *domain.Reservation) error

	// MarkConfirmed records a successful payment confirmation
	MarkConfirmed(ctx context.Context, reservationID, paymentID string, at time.Time) error

	// MarkReleased records a cancel or TTL reclaim
	MarkReleased(ctx context.Context, reservationID string, status domain.ReservationStatus, reason string, at time.Time) error

	// GetByID returns the recorded reservation or ErrReservationNotFound
	GetByID(ctx context.Context, reservationID string) (*domain.Reservation, error)

	// ListByUser returns the user's recorded reservations, newest first
	ListByUser(ctx context.Context, userID int64) ([]*domain.Reservation, error)
}

// NoOpReservationRecords discards all writes. Used when no database
// is configured.
type NoOpReservationRecords struct{}

// NewNoOpReservationRecords creates a records sink that drops everything
func NewNoOpReservationRecords() *NoOpReservationRecords {
	return &NoOpReservationRecords{}
}

func (n *NoOpReservationRecords) Insert(_ context.Context, _ *domain.Reservation) error {
	return nil
}

func (n *NoOpReservationRecords) MarkConfirmed(_ context.Context, _, _ string, _ time.Time) error {
	return nil
}

func (n *NoOpReservationRecords) MarkReleased(_ context.Context, _ string, _ domain.ReservationStatus, _ string, _ time.Time) error {
	return nil
}

func (n *NoOpReservationRecords) GetByID(_ context.Context, _ string) (*domain.Reservation, error) {
	return nil, domain.ErrReservationNotFound
}

func (n *NoOpReservationRecords) ListByUser(_ context.Context, _ int64) ([]*domain.Reservation, error) {
	return nil, nil
}

var _ ReservationRecords = (*NoOpReservationRecords)(nil)
