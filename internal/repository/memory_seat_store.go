package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/teerapat-l/seatgate/internal/domain"
)

// MemorySeatStore is an in-memory SeatStore for tests and local development
type MemorySeatStore struct {
	mu           sync.Mutex
	seats        map[string]*domain.Seat
	reservations map[string]*domain.Reservation
	userConcert  map[string]string // "{userID}:{concertID}" -> live reservationID
	userHistory  map[int64][]string
}

// NewMemorySeatStore creates an empty in-memory seat store
func NewMemorySeatStore() *MemorySeatStore {
	return &MemorySeatStore{
		seats:        make(map[string]*domain.Seat),
		reservations: make(map[string]*domain.Reservation),
		userConcert:  make(map[string]string),
		userHistory:  make(map[int64][]string),
	}
}

func userConcertKey(userID int64, concertID string) string {
	return fmt.Sprintf("%d:%s", userID, concertID)
}

// PutSeat creates or replaces a seat
func (s *MemorySeatStore) PutSeat(_ context.Context, seat *domain.Seat) error {
	if seat.ID == "" {
		return domain.ErrInvalidSeatID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *seat
	if cp.Status == "" {
		cp.Status = domain.SeatStatusAvailable
	}
	s.seats[cp.ID] = &cp
	return nil
}

// GetSeat returns a copy of the seat
func (s *MemorySeatStore) GetSeat(_ context.Context, seatID string) (*domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seat, ok := s.seats[seatID]
	if !ok {
		return nil, domain.ErrSeatNotFound
	}
	cp := *seat
	return &cp, nil
}

// ListSeats returns all seats for a concert schedule
func (s *MemorySeatStore) ListSeats(_ context.Context, concertID, scheduleID string) ([]*domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var seats []*domain.Seat
	for _, seat := range s.seats {
		if seat.ConcertID == concertID && seat.ScheduleID == scheduleID {
			cp := *seat
			seats = append(seats, &cp)
		}
	}
	return seats, nil
}

// HoldSeat atomically places a PENDING hold on an AVAILABLE seat
func (s *MemorySeatStore) HoldSeat(_ context.Context, params HoldSeatParams) (*HoldResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seat, ok := s.seats[params.SeatID]
	if !ok {
		return &HoldResult{
			Success:      false,
			ErrorCode:    ErrCodeSeatNotFound,
			ErrorMessage: "seat does not exist",
		}, nil
	}

	if seat.Status != domain.SeatStatusAvailable {
		return &HoldResult{
			Success:      false,
			ErrorCode:    ErrCodeSeatNotAvailable,
			ErrorMessage: "seat is already held or confirmed",
		}, nil
	}

	limitKey := userConcertKey(params.UserID, seat.ConcertID)
	if liveID, ok := s.userConcert[limitKey]; ok {
		if live, exists := s.reservations[liveID]; exists && live.IsLive() {
			return &HoldResult{
				Success:      false,
				ErrorCode:    ErrCodeUserLimit,
				ErrorMessage: "user already has a live reservation for this concert",
			}, nil
		}
		delete(s.userConcert, limitKey)
	}

	reservation := &domain.Reservation{
		ID:         params.ReservationID,
		UserID:     params.UserID,
		ConcertID:  seat.ConcertID,
		ScheduleID: seat.ScheduleID,
		SeatID:     seat.ID,
		SeatNumber: seat.SeatNumber,
		Price:      seat.Price,
		Status:     domain.ReservationStatusPending,
		CreatedAt:  params.Now,
		ExpiresAt:  params.Now.Add(params.HoldTTL),
	}

	seat.Status = domain.SeatStatusHeld
	s.reservations[reservation.ID] = reservation
	s.userConcert[limitKey] = reservation.ID
	s.userHistory[params.UserID] = append(s.userHistory[params.UserID], reservation.ID)

	cp := *reservation
	return &HoldResult{Success: true, Reservation: &cp}, nil
}

// ConfirmReservation transitions a live PENDING hold to CONFIRMED
func (s *MemorySeatStore) ConfirmReservation(_ context.Context, params ConfirmParams) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, ok := s.reservations[params.ReservationID]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}

	switch reservation.Status {
	case domain.ReservationStatusConfirmed:
		return nil, domain.ErrReservationAlreadyConfirmed
	case domain.ReservationStatusCancelled, domain.ReservationStatusExpired:
		return nil, domain.ErrReservationAlreadyReleased
	}

	if reservation.IsExpired(params.Now) {
		return nil, domain.ErrReservationExpired
	}

	reservation.Status = domain.ReservationStatusConfirmed
	confirmedAt := params.Now
	reservation.ConfirmedAt = &confirmedAt
	reservation.PaymentID = params.PaymentID

	if seat, ok := s.seats[reservation.SeatID]; ok {
		seat.Status = domain.SeatStatusConfirmed
	}

	cp := *reservation
	return &cp, nil
}

// ReleaseReservation cancels or reclaims a hold and frees its seat
func (s *MemorySeatStore) ReleaseReservation(_ context.Context, params ReleaseParams) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, ok := s.reservations[params.ReservationID]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}

	switch reservation.Status {
	case domain.ReservationStatusCancelled, domain.ReservationStatusExpired:
		return nil, domain.ErrReservationAlreadyReleased
	case domain.ReservationStatusConfirmed:
		if !params.AllowConfirmed {
			return nil, domain.ErrReservationAlreadyConfirmed
		}
	}

	if params.MarkExpired {
		reservation.Status = domain.ReservationStatusExpired
	} else {
		reservation.Status = domain.ReservationStatusCancelled
	}
	cancelledAt := params.Now
	reservation.CancelledAt = &cancelledAt
	reservation.CancelReason = params.Reason

	if seat, ok := s.seats[reservation.SeatID]; ok {
		seat.Status = domain.SeatStatusAvailable
	}

	limitKey := userConcertKey(reservation.UserID, reservation.ConcertID)
	if liveID, ok := s.userConcert[limitKey]; ok && liveID == reservation.ID {
		delete(s.userConcert, limitKey)
	}

	cp := *reservation
	return &cp, nil
}

// GetReservation returns a copy of the reservation
func (s *MemorySeatStore) GetReservation(_ context.Context, reservationID string) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, ok := s.reservations[reservationID]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	cp := *reservation
	return &cp, nil
}

// ListUserReservations returns the user's reservations, newest first
func (s *MemorySeatStore) ListUserReservations(_ context.Context, userID int64) ([]*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.userHistory[userID]
	reservations := make([]*domain.Reservation, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if reservation, ok := s.reservations[ids[i]]; ok {
			cp := *reservation
			reservations = append(reservations, &cp)
		}
	}
	return reservations, nil
}

// FindExpiredPending returns PENDING reservations past their hold TTL
func (s *MemorySeatStore) FindExpiredPending(_ context.Context, now time.Time) ([]*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*domain.Reservation
	for _, reservation := range s.reservations {
		if reservation.IsExpired(now) {
			cp := *reservation
			expired = append(expired, &cp)
		}
	}
	return expired, nil
}

var _ SeatStore = (*MemorySeatStore)(nil)
