package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/teerapat-l/seatgate/internal/domain"
	"github.com/teerapat-l/seatgate/pkg/telemetry"
)

// PostgresReservationRecords implements ReservationRecords using
// PostgreSQL with pgxpool
type PostgresReservationRecords struct {
	pool *pgxpool.Pool
}

// NewPostgresReservationRecords creates a new PostgresReservationRecords
func NewPostgresReservationRecords(pool *pgxpool.Pool) *PostgresReservationRecords {
	return &PostgresReservationRecords{pool: pool}
}

// Insert writes a freshly created PENDING reservation
func (r *PostgresReservationRecords) Insert(ctx context.Context, reservation *domain.Reservation) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.insert")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", reservation.ID),
		attribute.Int64("user_id", reservation.UserID),
	)

	query := `
		INSERT INTO reservations (
			id, user_id, concert_id, schedule_id, seat_id,
			seat_number, price, status, created_at, expires_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10
		)
	`

	_, err := r.pool.Exec(ctx, query,
		reservation.ID,
		reservation.UserID,
		reservation.ConcertID,
		reservation.ScheduleID,
		reservation.SeatID,
		reservation.SeatNumber,
		reservation.Price,
		string(reservation.Status),
		reservation.CreatedAt,
		reservation.ExpiresAt,
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to insert reservation record: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// MarkConfirmed records a successful payment confirmation
func (r *PostgresReservationRecords) MarkConfirmed(ctx context.Context, reservationID, paymentID string, at time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.mark_confirmed")
	defer span.End()

	span.SetAttributes(attribute.String("reservation_id", reservationID))

	query := `
		UPDATE reservations
		SET status = $2, payment_id = $3, confirmed_at = $4
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query,
		reservationID,
		string(domain.ReservationStatusConfirmed),
		paymentID,
		at,
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to mark reservation confirmed: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// MarkReleased records a cancel or TTL reclaim
func (r *PostgresReservationRecords) MarkReleased(ctx context.Context, reservationID string, status domain.ReservationStatus, reason string, at time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.mark_released")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
		attribute.String("status", string(status)),
	)

	query := `
		UPDATE reservations
		SET status = $2, cancel_reason = $3, cancelled_at = $4
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, reservationID, string(status), reason, at)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to mark reservation released: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID returns the recorded reservation
func (r *PostgresReservationRecords) GetByID(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("reservation_id", reservationID))

	query := `
		SELECT
			id, user_id, concert_id, schedule_id, seat_id,
			seat_number, price, status, payment_id, cancel_reason,
			created_at, expires_at, confirmed_at, cancelled_at
		FROM reservations
		WHERE id = $1
	`

	reservation, err := scanReservation(r.pool.QueryRow(ctx, query, reservationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrReservationNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get reservation record: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return reservation, nil
}

// ListByUser returns the user's recorded reservations, newest first
func (r *PostgresReservationRecords) ListByUser(ctx context.Context, userID int64) ([]*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.list_by_user")
	defer span.End()

	span.SetAttributes(attribute.Int64("user_id", userID))

	query := `
		SELECT
			id, user_id, concert_id, schedule_id, seat_id,
			seat_number, price, status, payment_id, cancel_reason,
			created_at, expires_at, confirmed_at, cancelled_at
		FROM reservations
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list reservation records: %w", err)
	}
	defer rows.Close()

	var reservations []*domain.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan reservation record: %w", err)
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate reservation records: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(reservations)))
	span.SetStatus(codes.Ok, "")
	return reservations, nil
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	reservation := &domain.Reservation{}
	var (
		status       string
		paymentID    *string
		cancelReason *string
		confirmedAt  *time.Time
		cancelledAt  *time.Time
	)

	err := row.Scan(
		&reservation.ID,
		&reservation.UserID,
		&reservation.ConcertID,
		&reservation.ScheduleID,
		&reservation.SeatID,
		&reservation.SeatNumber,
		&reservation.Price,
		&status,
		&paymentID,
		&cancelReason,
		&reservation.CreatedAt,
		&reservation.ExpiresAt,
		&confirmedAt,
		&cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	reservation.Status = domain.ReservationStatus(status)
	if paymentID != nil {
		reservation.PaymentID = *paymentID
	}
	if cancelReason != nil {
		reservation.CancelReason = *cancelReason
	}
	reservation.ConfirmedAt = confirmedAt
	reservation.CancelledAt = cancelledAt

	return reservation, nil
}

// Ensure PostgresReservationRecords implements ReservationRecords
var _ ReservationRecords = (*PostgresReservationRecords)(nil)
