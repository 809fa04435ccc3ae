package repository

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/teerapat-l/seatgate/internal/domain"
	pkgredis "github.com/teerapat-l/seatgate/pkg/redis"
	"github.com/teerapat-l/seatgate/pkg/telemetry"
)

//go:embed scripts/hold_seat.lua
var holdSeatScript string

//go:embed scripts/confirm_reservation.lua
var confirmReservationScript string

//go:embed scripts/release_reservation.lua
var releaseReservationScript string

// Script names for caching
const (
	scriptHoldSeat           = "hold_seat"
	scriptConfirmReservation = "confirm_reservation"
	scriptReleaseReservation = "release_reservation"
)

// Redis key layout for seats and reservations
const (
	seatKeyPrefix        = "seat:"
	seatIndexPrefix      = "seat:index:"
	reservationKeyPrefix = "reservation:"
	userLimitPrefix      = "reservation:user:"
	userHistoryPrefix    = "reservation:history:"
	pendingHoldsKey      = "reservation:pending"
)

// RedisSeatStore implements SeatStore using Redis hashes and Lua
// scripts for the atomic seat transitions
type RedisSeatStore struct {
	client *pkgredis.Client
}

// NewRedisSeatStore creates a new RedisSeatStore
func NewRedisSeatStore(client *pkgredis.Client) *RedisSeatStore {
	return &RedisSeatStore{client: client}
}

// LoadScripts loads all reservation Lua scripts into Redis
func (s *RedisSeatStore) LoadScripts(ctx context.Context) error {
	scripts := map[string]string{
		scriptHoldSeat:           holdSeatScript,
		scriptConfirmReservation: confirmReservationScript,
		scriptReleaseReservation: releaseReservationScript,
	}

	for name, script := range scripts {
		if _, err := s.client.LoadScript(ctx, name, script); err != nil {
			return fmt.Errorf("failed to load script %s: %w", name, err)
		}
	}

	return nil
}

// PutSeat creates or replaces a seat and indexes it under its schedule
func (s *RedisSeatStore) PutSeat(ctx context.Context, seat *domain.Seat) error {
	if seat.ID == "" {
		return domain.ErrInvalidSeatID
	}

	status := seat.Status
	if status == "" {
		status = domain.SeatStatusAvailable
	}

	err := s.client.HSet(ctx, seatKeyPrefix+seat.ID,
		"id", seat.ID,
		"concert_id", seat.ConcertID,
		"schedule_id", seat.ScheduleID,
		"seat_number", seat.SeatNumber,
		"price", seat.Price,
		"status", string(status),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to put seat: %w", err)
	}

	indexKey := fmt.Sprintf("%s%s:%s", seatIndexPrefix, seat.ConcertID, seat.ScheduleID)
	if err := s.client.ZAdd(ctx, indexKey, redis.Z{
		Score:  float64(seat.SeatNumber),
		Member: seat.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to index seat: %w", err)
	}

	return nil
}

// GetSeat returns the seat or ErrSeatNotFound
func (s *RedisSeatStore) GetSeat(ctx context.Context, seatID string) (*domain.Seat, error) {
	fields, err := s.client.HGetAll(ctx, seatKeyPrefix+seatID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get seat: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrSeatNotFound
	}
	return parseSeatHash(fields), nil
}

// ListSeats returns all seats for a concert schedule ordered by seat number
func (s *RedisSeatStore) ListSeats(ctx context.Context, concertID, scheduleID string) ([]*domain.Seat, error) {
	indexKey := fmt.Sprintf("%s%s:%s", seatIndexPrefix, concertID, scheduleID)
	ids, err := s.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}

	seats := make([]*domain.Seat, 0, len(ids))
	for _, id := range ids {
		seat, err := s.GetSeat(ctx, id)
		if err != nil {
			continue
		}
		seats = append(seats, seat)
	}
	return seats, nil
}

// HoldSeat atomically places a PENDING hold on an AVAILABLE seat
func (s *RedisSeatStore) HoldSeat(ctx context.Context, params HoldSeatParams) (*HoldResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.seat.hold")
	defer span.End()

	span.SetAttributes(
		attribute.String("seat_id", params.SeatID),
		attribute.Int64("user_id", params.UserID),
	)

	keys := []string{
		seatKeyPrefix + params.SeatID,
		reservationKeyPrefix + params.ReservationID,
		pendingHoldsKey,
	}
	args := []interface{}{
		params.ReservationID,   // ARGV[1]: reservation_id
		params.UserID,          // ARGV[2]: user_id
		params.Now.UnixMilli(), // ARGV[3]: now
		params.Now.Add(params.HoldTTL).UnixMilli(), // ARGV[4]: expires_at
		userLimitPrefix,   // ARGV[5]: user limit prefix
		userHistoryPrefix, // ARGV[6]: user history prefix
	}

	result := s.client.EvalWithFallback(ctx, scriptHoldSeat, holdSeatScript, keys, args...)
	if result.Err() != nil {
		span.RecordError(result.Err())
		span.SetStatus(codes.Error, result.Err().Error())
		return nil, fmt.Errorf("failed to execute hold_seat script: %w", result.Err())
	}

	values, err := result.Slice()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to parse script result: %w", err)
	}
	if len(values) == 0 {
		span.SetStatus(codes.Error, "empty script result")
		return nil, fmt.Errorf("empty script result")
	}

	success, _ := toInt64(values[0])
	if success != 1 {
		if len(values) < 3 {
			span.SetStatus(codes.Error, "unexpected result length")
			return nil, fmt.Errorf("unexpected script result length: %d", len(values))
		}
		errorCode, _ := values[1].(string)
		errorMessage, _ := values[2].(string)
		span.SetAttributes(attribute.String("error_code", errorCode))
		span.SetStatus(codes.Error, errorCode)
		return &HoldResult{
			Success:      false,
			ErrorCode:    errorCode,
			ErrorMessage: errorMessage,
		}, nil
	}

	reservation, err := s.GetReservation(ctx, params.ReservationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return &HoldResult{Success: true, Reservation: reservation}, nil
}

// ConfirmReservation transitions a live PENDING hold to CONFIRMED
func (s *RedisSeatStore) ConfirmReservation(ctx context.Context, params ConfirmParams) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.seat.confirm")
	defer span.End()

	span.SetAttributes(attribute.String("reservation_id", params.ReservationID))

	keys := []string{
		reservationKeyPrefix + params.ReservationID,
		pendingHoldsKey,
	}
	args := []interface{}{
		params.PaymentID,       // ARGV[1]: payment_id
		params.Now.UnixMilli(), // ARGV[2]: now
		seatKeyPrefix,          // ARGV[3]: seat key prefix
	}

	result := s.client.EvalWithFallback(ctx, scriptConfirmReservation, confirmReservationScript, keys, args...)
	if result.Err() != nil {
		span.RecordError(result.Err())
		span.SetStatus(codes.Error, result.Err().Error())
		return nil, fmt.Errorf("failed to execute confirm_reservation script: %w", result.Err())
	}

	if err := scriptResultError(result, span); err != nil {
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return s.GetReservation(ctx, params.ReservationID)
}

// ReleaseReservation cancels or reclaims a hold and frees its seat
func (s *RedisSeatStore) ReleaseReservation(ctx context.Context, params ReleaseParams) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.seat.release")
	defer span.End()

	span.SetAttributes(attribute.String("reservation_id", params.ReservationID))

	terminalStatus := string(domain.ReservationStatusCancelled)
	if params.MarkExpired {
		terminalStatus = string(domain.ReservationStatusExpired)
	}
	allowConfirmed := "0"
	if params.AllowConfirmed {
		allowConfirmed = "1"
	}

	keys := []string{
		reservationKeyPrefix + params.ReservationID,
		pendingHoldsKey,
	}
	args := []interface{}{
		params.Reason,          // ARGV[1]: cancel reason
		terminalStatus,         // ARGV[2]: terminal status
		params.Now.UnixMilli(), // ARGV[3]: now
		allowConfirmed,         // ARGV[4]: allow_confirmed
		seatKeyPrefix,          // ARGV[5]: seat key prefix
		userLimitPrefix,        // ARGV[6]: user limit prefix
	}

	result := s.client.EvalWithFallback(ctx, scriptReleaseReservation, releaseReservationScript, keys, args...)
	if result.Err() != nil {
		span.RecordError(result.Err())
		span.SetStatus(codes.Error, result.Err().Error())
		return nil, fmt.Errorf("failed to execute release_reservation script: %w", result.Err())
	}

	if err := scriptResultError(result, span); err != nil {
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return s.GetReservation(ctx, params.ReservationID)
}

// GetReservation returns the reservation or ErrReservationNotFound
func (s *RedisSeatStore) GetReservation(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	fields, err := s.client.HGetAll(ctx, reservationKeyPrefix+reservationID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrReservationNotFound
	}
	return parseReservationHash(fields)
}

// ListUserReservations returns the user's reservations, newest first
func (s *RedisSeatStore) ListUserReservations(ctx context.Context, userID int64) ([]*domain.Reservation, error) {
	historyKey := fmt.Sprintf("%s%d", userHistoryPrefix, userID)
	ids, err := s.client.ZRange(ctx, historyKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list user reservations: %w", err)
	}

	reservations := make([]*domain.Reservation, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		reservation, err := s.GetReservation(ctx, ids[i])
		if err != nil {
			continue
		}
		reservations = append(reservations, reservation)
	}
	return reservations, nil
}

// FindExpiredPending returns PENDING reservations past their hold TTL
func (s *RedisSeatStore) FindExpiredPending(ctx context.Context, now time.Time) ([]*domain.Reservation, error) {
	ids, err := s.client.ZRangeByScore(ctx, pendingHoldsKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan expired holds: %w", err)
	}

	expired := make([]*domain.Reservation, 0, len(ids))
	for _, id := range ids {
		reservation, err := s.GetReservation(ctx, id)
		if err != nil {
			continue
		}
		expired = append(expired, reservation)
	}
	return expired, nil
}

// scriptResultError maps a {0, code, message} script result to a domain error
func scriptResultError(result *redis.Cmd, span interface{ SetStatus(codes.Code, string) }) error {
	values, err := result.Slice()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to parse script result: %w", err)
	}
	if len(values) == 0 {
		span.SetStatus(codes.Error, "empty script result")
		return fmt.Errorf("empty script result")
	}

	success, _ := toInt64(values[0])
	if success == 1 {
		return nil
	}
	if len(values) < 2 {
		span.SetStatus(codes.Error, "unexpected result length")
		return fmt.Errorf("unexpected script result length: %d", len(values))
	}

	errorCode, _ := values[1].(string)
	span.SetStatus(codes.Error, errorCode)
	return codeToError(errorCode)
}

// codeToError maps seat store error codes to domain sentinel errors
func codeToError(code string) error {
	switch code {
	case ErrCodeSeatNotFound:
		return domain.ErrSeatNotFound
	case ErrCodeSeatNotAvailable:
		return domain.ErrSeatAlreadyReserved
	case ErrCodeUserLimit:
		return domain.ErrUserReservationLimit
	case ErrCodeReservationNotFound:
		return domain.ErrReservationNotFound
	case ErrCodeReservationExpired:
		return domain.ErrReservationExpired
	case ErrCodeAlreadyConfirmed:
		return domain.ErrReservationAlreadyConfirmed
	case ErrCodeAlreadyReleased:
		return domain.ErrReservationAlreadyReleased
	default:
		return fmt.Errorf("unexpected seat store error code: %s", code)
	}
}

func parseSeatHash(fields map[string]string) *domain.Seat {
	seatNumber, _ := strconv.Atoi(fields["seat_number"])
	price, _ := strconv.ParseFloat(fields["price"], 64)
	return &domain.Seat{
		ID:         fields["id"],
		ConcertID:  fields["concert_id"],
		ScheduleID: fields["schedule_id"],
		SeatNumber: seatNumber,
		Price:      price,
		Status:     domain.SeatStatus(fields["status"]),
	}
}

func parseReservationHash(fields map[string]string) (*domain.Reservation, error) {
	userID, err := strconv.ParseInt(fields["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reservation user_id: %w", err)
	}

	seatNumber, _ := strconv.Atoi(fields["seat_number"])
	price, _ := strconv.ParseFloat(fields["price"], 64)

	reservation := &domain.Reservation{
		ID:           fields["id"],
		UserID:       userID,
		ConcertID:    fields["concert_id"],
		ScheduleID:   fields["schedule_id"],
		SeatID:       fields["seat_id"],
		SeatNumber:   seatNumber,
		Price:        price,
		Status:       domain.ReservationStatus(fields["status"]),
		PaymentID:    fields["payment_id"],
		CancelReason: fields["cancel_reason"],
	}

	if ms, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		reservation.CreatedAt = time.UnixMilli(ms)
	}
	if ms, err := strconv.ParseInt(fields["expires_at"], 10, 64); err == nil {
		reservation.ExpiresAt = time.UnixMilli(ms)
	}
	if raw, ok := fields["confirmed_at"]; ok && raw != "" {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			confirmedAt := time.UnixMilli(ms)
			reservation.ConfirmedAt = &confirmedAt
		}
	}
	if raw, ok := fields["cancelled_at"]; ok && raw != "" {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cancelledAt := time.UnixMilli(ms)
			reservation.CancelledAt = &cancelledAt
		}
	}

	return reservation, nil
}

// Ensure RedisSeatStore implements SeatStore
var _ SeatStore = (*RedisSeatStore)(nil)
