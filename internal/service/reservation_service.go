package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/teerapat-l/seatgate/internal/domain"
	"github.com/teerapat-l/seatgate/internal/dto"
	"github.com/teerapat-l/seatgate/internal/repository"
	"github.com/teerapat-l/seatgate/pkg/logger"
	"github.com/teerapat-l/seatgate/pkg/telemetry"
)

// TokenGate is the slice of the waiting room the reservation engine
// needs: admission checks before a hold, token retirement after a
// confirmed purchase.
type TokenGate interface {
	ValidateActive(ctx context.Context, tokenID string) error
	CompleteUserToken(ctx context.Context, userID int64) error
}

// ReservationService defines the interface for seat reservation logic
type ReservationService interface {
	// HoldSeat places a TTL-bounded hold on a seat for an admitted user
	HoldSeat(ctx context.Context, tokenID string, req *dto.HoldSeatRequest) (*dto.ReservationResponse, error)

	// ConfirmReservation finalizes a hold after payment completes
	ConfirmReservation(ctx context.Context, reservationID string, req *dto.ConfirmReservationRequest) (*dto.ReservationResponse, error)

	// CancelReservation releases a hold at the owner's request
	CancelReservation(ctx context.Context, reservationID string, req *dto.CancelReservationRequest) (*dto.ReservationResponse, error)

	// CancelBySystem releases a hold on behalf of the platform, e.g.
	// after a payment failure. Skips the ownership check.
	CancelBySystem(ctx context.Context, reservationID, reason string) error

	// GetReservation returns a reservation to its owner
	GetReservation(ctx context.Context, reservationID string, userID int64) (*dto.ReservationResponse, error)

	// ListUserReservations returns the user's reservations, newest first
	ListUserReservations(ctx context.Context, userID int64) (*dto.ReservationListResponse, error)

	// ReclaimExpired releases all pending holds past their TTL.
	// Returns the number reclaimed.
	ReclaimExpired(ctx context.Context) (int, error)

	// CreateSeats registers a block of seats for a concert schedule
	CreateSeats(ctx context.Context, req *dto.CreateSeatsRequest) (*dto.SeatListResponse, error)

	// ListSeats returns the seats of a concert schedule
	ListSeats(ctx context.Context, concertID, scheduleID string) (*dto.SeatListResponse, error)
}

// reservationService implements ReservationService
type reservationService struct {
	seats                repository.SeatStore
	records              repository.ReservationRecords
	tokenGate            TokenGate
	publisher            EventPublisher
	holdTTL              time.Duration
	concurrentCeiling    int64
	allowConfirmedCancel bool

	inflight atomic.Int64
}

// ReservationServiceConfig contains configuration for the reservation service
type ReservationServiceConfig struct {
	HoldTTL              time.Duration
	ConcurrentCeiling    int64
	AllowConfirmedCancel bool
}

// NewReservationService creates a new reservation service
func NewReservationService(
	seats repository.SeatStore,
	records repository.ReservationRecords,
	tokenGate TokenGate,
	publisher EventPublisher,
	cfg *ReservationServiceConfig,
) ReservationService {
	holdTTL := 5 * time.Minute
	ceiling := int64(200)
	allowConfirmedCancel := false

	if cfg != nil {
		if cfg.HoldTTL > 0 {
			holdTTL = cfg.HoldTTL
		}
		if cfg.ConcurrentCeiling > 0 {
			ceiling = cfg.ConcurrentCeiling
		}
		allowConfirmedCancel = cfg.AllowConfirmedCancel
	}

	if records == nil {
		records = repository.NewNoOpReservationRecords()
	}
	if publisher == nil {
		publisher = NewNoOpEventPublisher()
	}

	return &reservationService{
		seats:                seats,
		records:              records,
		tokenGate:            tokenGate,
		publisher:            publisher,
		holdTTL:              holdTTL,
		concurrentCeiling:    ceiling,
		allowConfirmedCancel: allowConfirmedCancel,
	}
}

// HoldSeat places a TTL-bounded hold on a seat for an admitted user
func (s *reservationService) HoldSeat(ctx context.Context, tokenID string, req *dto.HoldSeatRequest) (*dto.ReservationResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.hold")
	defer span.End()

	if req == nil || req.SeatID == "" {
		span.SetStatus(codes.Error, "invalid seat_id")
		return nil, domain.ErrInvalidSeatID
	}
	if req.UserID <= 0 {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}

	span.SetAttributes(
		attribute.Int64("user_id", req.UserID),
		attribute.String("seat_id", req.SeatID),
	)

	if err := s.tokenGate.ValidateActive(ctx, tokenID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Shed load once too many holds are in flight at once
	if s.inflight.Add(1) > s.concurrentCeiling {
		s.inflight.Add(-1)
		span.SetStatus(codes.Error, "hold ceiling reached")
		return nil, domain.ErrTooManyHoldAttempts
	}
	defer s.inflight.Add(-1)

	result, err := s.seats.HoldSeat(ctx, repository.HoldSeatParams{
		ReservationID: uuid.New().String(),
		UserID:        req.UserID,
		SeatID:        req.SeatID,
		HoldTTL:       s.holdTTL,
		Now:           time.Now(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !result.Success {
		span.SetAttributes(attribute.String("error_code", result.ErrorCode))
		span.SetStatus(codes.Error, result.ErrorCode)
		switch result.ErrorCode {
		case repository.ErrCodeSeatNotFound:
			return nil, domain.ErrSeatNotFound
		case repository.ErrCodeSeatNotAvailable:
			return nil, domain.ErrSeatAlreadyReserved
		case repository.ErrCodeUserLimit:
			return nil, domain.ErrUserReservationLimit
		default:
			return nil, domain.ErrSeatAlreadyReserved
		}
	}

	reservation := result.Reservation

	// The seat store is authoritative; record and event failures are
	// logged, never rolled back
	if err := s.records.Insert(ctx, reservation); err != nil {
		logger.Get().Error("failed to record reservation",
			zap.String("reservation_id", reservation.ID),
			zap.Error(err),
		)
	}
	if err := s.publisher.PublishReservationCreated(ctx, reservation); err != nil {
		logger.Get().Error("failed to publish reservation created event",
			zap.String("reservation_id", reservation.ID),
			zap.Error(err),
		)
	}
	s.publishSeatTransition(ctx, reservation.SeatID, domain.SeatStatusAvailable, domain.SeatStatusHeld)

	span.SetAttributes(attribute.String("reservation_id", reservation.ID))
	span.SetStatus(codes.Ok, "")
	return toReservationResponse(reservation), nil
}

// ConfirmReservation finalizes a hold after payment completes
func (s *reservationService) ConfirmReservation(ctx context.Context, reservationID string, req *dto.ConfirmReservationRequest) (*dto.ReservationResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.confirm")
	defer span.End()

	if reservationID == "" {
		span.SetStatus(codes.Error, "invalid reservation_id")
		return nil, domain.ErrInvalidReservationID
	}
	if req == nil || req.UserID <= 0 {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
		attribute.Int64("user_id", req.UserID),
	)

	existing, err := s.seats.GetReservation(ctx, reservationID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !existing.BelongsToUser(req.UserID) {
		span.SetStatus(codes.Error, "access denied")
		return nil, domain.ErrReservationAccessDenied
	}

	reservation, err := s.seats.ConfirmReservation(ctx, repository.ConfirmParams{
		ReservationID: reservationID,
		PaymentID:     req.PaymentID,
		Now:           time.Now(),
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.records.MarkConfirmed(ctx, reservation.ID, reservation.PaymentID, time.Now()); err != nil {
		logger.Get().Error("failed to record confirmation",
			zap.String("reservation_id", reservation.ID),
			zap.Error(err),
		)
	}
	if err := s.publisher.PublishReservationConfirmed(ctx, reservation); err != nil {
		logger.Get().Error("failed to publish reservation confirmed event",
			zap.String("reservation_id", reservation.ID),
			zap.Error(err),
		)
	}
	if err := s.publisher.PublishSeatConfirmed(ctx, reservation); err != nil {
		logger.Get().Error("failed to publish seat confirmed event",
			zap.String("seat_id", reservation.SeatID),
			zap.Error(err),
		)
	}
	s.publishSeatTransition(ctx, reservation.SeatID, domain.SeatStatusHeld, domain.SeatStatusConfirmed)

	// The purchase consumed the user's admission
	if err := s.tokenGate.CompleteUserToken(ctx, reservation.UserID); err != nil {
		logger.Get().Warn("failed to retire token after purchase",
			zap.Int64("user_id", reservation.UserID),
			zap.Error(err),
		)
	}

	span.SetStatus(codes.Ok, "")
	return toReservationResponse(reservation), nil
}

// CancelReservation releases a hold at the owner's request
func (s *reservationService) CancelReservation(ctx context.Context, reservationID string, req *dto.CancelReservationRequest) (*dto.ReservationResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.cancel")
	defer span.End()

	if reservationID == "" {
		span.SetStatus(codes.Error, "invalid reservation_id")
		return nil, domain.ErrInvalidReservationID
	}
	if req == nil || req.UserID <= 0 {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
		attribute.Int64("user_id", req.UserID),
	)

	existing, err := s.seats.GetReservation(ctx, reservationID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !existing.BelongsToUser(req.UserID) {
		span.SetStatus(codes.Error, "access denied")
		return nil, domain.ErrReservationAccessDenied
	}

	reason := req.Reason
	if reason == "" {
		reason = "cancelled by user"
	}

	reservation, err := s.release(ctx, repository.ReleaseParams{
		ReservationID:  reservationID,
		Reason:         reason,
		MarkExpired:    false,
		AllowConfirmed: s.allowConfirmedCancel,
		Now:            time.Now(),
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return toReservationResponse(reservation), nil
}

// CancelBySystem releases a hold on behalf of the platform
func (s *reservationService) CancelBySystem(ctx context.Context, reservationID, reason string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.cancel_by_system")
	defer span.End()

	if reservationID == "" {
		span.SetStatus(codes.Error, "invalid reservation_id")
		return domain.ErrInvalidReservationID
	}

	span.SetAttributes(attribute.String("reservation_id", reservationID))

	if reason == "" {
		reason = "cancelled by system"
	}

	_, err := s.release(ctx, repository.ReleaseParams{
		ReservationID: reservationID,
		Reason:        reason,
		MarkExpired:   false,
		Now:           time.Now(),
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetReservation returns a reservation to its owner
func (s *reservationService) GetReservation(ctx context.Context, reservationID string, userID int64) (*dto.ReservationResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.get")
	defer span.End()

	if reservationID == "" {
		span.SetStatus(codes.Error, "invalid reservation_id")
		return nil, domain.ErrInvalidReservationID
	}
	if userID <= 0 {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}

	span.SetAttributes(attribute.String("reservation_id", reservationID))

	reservation, err := s.seats.GetReservation(ctx, reservationID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !reservation.BelongsToUser(userID) {
		span.SetStatus(codes.Error, "access denied")
		return nil, domain.ErrReservationAccessDenied
	}

	span.SetStatus(codes.Ok, "")
	return toReservationResponse(reservation), nil
}

// ListUserReservations returns the user's reservations, newest first
func (s *reservationService) ListUserReservations(ctx context.Context, userID int64) (*dto.ReservationListResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.list")
	defer span.End()

	if userID <= 0 {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}

	span.SetAttributes(attribute.Int64("user_id", userID))

	reservations, err := s.seats.ListUserReservations(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resp := &dto.ReservationListResponse{
		Reservations: make([]*dto.ReservationResponse, 0, len(reservations)),
		Total:        len(reservations),
	}
	for _, reservation := range reservations {
		resp.Reservations = append(resp.Reservations, toReservationResponse(reservation))
	}

	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// ReclaimExpired releases all pending holds past their TTL
func (s *reservationService) ReclaimExpired(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.reclaim_expired")
	defer span.End()

	now := time.Now()
	expired, err := s.seats.FindExpiredPending(ctx, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	reclaimed := 0
	for _, reservation := range expired {
		released, err := s.seats.ReleaseReservation(ctx, repository.ReleaseParams{
			ReservationID: reservation.ID,
			Reason:        "hold TTL expired",
			MarkExpired:   true,
			Now:           now,
		})
		if err != nil {
			// A concurrent confirm or cancel won; skip
			if domain.IsConflictError(err) || domain.IsNotFoundError(err) {
				continue
			}
			logger.Get().Error("failed to reclaim expired hold",
				zap.String("reservation_id", reservation.ID),
				zap.Error(err),
			)
			continue
		}

		if err := s.records.MarkReleased(ctx, released.ID, released.Status, released.CancelReason, now); err != nil {
			logger.Get().Error("failed to record reclaim",
				zap.String("reservation_id", released.ID),
				zap.Error(err),
			)
		}
		if err := s.publisher.PublishReservationExpired(ctx, released); err != nil {
			logger.Get().Error("failed to publish reservation expired event",
				zap.String("reservation_id", released.ID),
				zap.Error(err),
			)
		}
		s.publishSeatTransition(ctx, released.SeatID, domain.SeatStatusHeld, domain.SeatStatusAvailable)
		reclaimed++
	}

	if reclaimed > 0 {
		logger.Get().Info("reclaimed expired holds", zap.Int("count", reclaimed))
	}

	span.SetAttributes(attribute.Int("reclaimed", reclaimed))
	span.SetStatus(codes.Ok, "")
	return reclaimed, nil
}

// CreateSeats registers a block of seats for a concert schedule
func (s *reservationService) CreateSeats(ctx context.Context, req *dto.CreateSeatsRequest) (*dto.SeatListResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.create_seats")
	defer span.End()

	if req == nil || req.ConcertID == "" || req.ScheduleID == "" || req.SeatCount <= 0 {
		span.SetStatus(codes.Error, "invalid request")
		return nil, domain.ErrInvalidSeatID
	}

	span.SetAttributes(
		attribute.String("concert_id", req.ConcertID),
		attribute.String("schedule_id", req.ScheduleID),
		attribute.Int("seat_count", req.SeatCount),
	)

	resp := &dto.SeatListResponse{
		ConcertID:  req.ConcertID,
		ScheduleID: req.ScheduleID,
		Seats:      make([]*dto.SeatResponse, 0, req.SeatCount),
	}

	for number := 1; number <= req.SeatCount; number++ {
		seat := &domain.Seat{
			ID:         uuid.New().String(),
			ConcertID:  req.ConcertID,
			ScheduleID: req.ScheduleID,
			SeatNumber: number,
			Price:      req.Price,
			Status:     domain.SeatStatusAvailable,
		}
		if err := s.seats.PutSeat(ctx, seat); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		resp.Seats = append(resp.Seats, toSeatResponse(seat))
	}
	resp.Total = len(resp.Seats)

	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// ListSeats returns the seats of a concert schedule
func (s *reservationService) ListSeats(ctx context.Context, concertID, scheduleID string) (*dto.SeatListResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.list_seats")
	defer span.End()

	if concertID == "" || scheduleID == "" {
		span.SetStatus(codes.Error, "invalid request")
		return nil, domain.ErrInvalidSeatID
	}

	seats, err := s.seats.ListSeats(ctx, concertID, scheduleID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resp := &dto.SeatListResponse{
		ConcertID:  concertID,
		ScheduleID: scheduleID,
		Seats:      make([]*dto.SeatResponse, 0, len(seats)),
		Total:      len(seats),
	}
	for _, seat := range seats {
		resp.Seats = append(resp.Seats, toSeatResponse(seat))
	}

	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// release runs the shared cancel path: store release, durable record,
// cancelled event
func (s *reservationService) release(ctx context.Context, params repository.ReleaseParams) (*domain.Reservation, error) {
	reservation, err := s.seats.ReleaseReservation(ctx, params)
	if err != nil {
		return nil, err
	}

	if err := s.records.MarkReleased(ctx, reservation.ID, reservation.Status, reservation.CancelReason, params.Now); err != nil {
		logger.Get().Error("failed to record release",
			zap.String("reservation_id", reservation.ID),
			zap.Error(err),
		)
	}
	if err := s.publisher.PublishReservationCancelled(ctx, reservation); err != nil {
		logger.Get().Error("failed to publish reservation cancelled event",
			zap.String("reservation_id", reservation.ID),
			zap.Error(err),
		)
	}

	previous := domain.SeatStatusHeld
	if reservation.ConfirmedAt != nil {
		previous = domain.SeatStatusConfirmed
	}
	s.publishSeatTransition(ctx, reservation.SeatID, previous, domain.SeatStatusAvailable)

	return reservation, nil
}

// publishSeatTransition emits the seat state change, log-only on failure
func (s *reservationService) publishSeatTransition(ctx context.Context, seatID string, previous, next domain.SeatStatus) {
	if err := s.publisher.PublishSeatStatusChanged(ctx, seatID, previous, next); err != nil {
		logger.Get().Error("failed to publish seat status changed event",
			zap.String("seat_id", seatID),
			zap.Error(err),
		)
	}
}

func toReservationResponse(reservation *domain.Reservation) *dto.ReservationResponse {
	return &dto.ReservationResponse{
		ReservationID: reservation.ID,
		UserID:        reservation.UserID,
		ConcertID:     reservation.ConcertID,
		ScheduleID:    reservation.ScheduleID,
		SeatID:        reservation.SeatID,
		SeatNumber:    reservation.SeatNumber,
		Price:         reservation.Price,
		Status:        string(reservation.Status),
		PaymentID:     reservation.PaymentID,
		CancelReason:  reservation.CancelReason,
		CreatedAt:     reservation.CreatedAt,
		ExpiresAt:     reservation.ExpiresAt,
		ConfirmedAt:   reservation.ConfirmedAt,
		CancelledAt:   reservation.CancelledAt,
	}
}

func toSeatResponse(seat *domain.Seat) *dto.SeatResponse {
	return &dto.SeatResponse{
		SeatID:     seat.ID,
		ConcertID:  seat.ConcertID,
		ScheduleID: seat.ScheduleID,
		SeatNumber: seat.SeatNumber,
		Price:      seat.Price,
		Status:     string(seat.Status),
	}
}
