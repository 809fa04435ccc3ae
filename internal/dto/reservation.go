package dto

import "time"

// HoldSeatRequest represents a request to place a hold on a seat
type HoldSeatRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	SeatID string `json:"seat_id" binding:"required"`
}

// ConfirmReservationRequest represents a payment-completed confirmation
type ConfirmReservationRequest struct {
	UserID    int64  `json:"user_id" binding:"required"`
	PaymentID string `json:"payment_id" binding:"required"`
}

// CancelReservationRequest represents a user-initiated cancellation
type CancelReservationRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Reason string `json:"reason"`
}

// ReservationResponse represents a reservation in API responses
type ReservationResponse struct {
	ReservationID string     `json:"reservation_id"`
	UserID        int64      `json:"user_id"`
	ConcertID     string     `json:"concert_id"`
	ScheduleID    string     `json:"schedule_id"`
	SeatID        string     `json:"seat_id"`
	SeatNumber    int        `json:"seat_number"`
	Price         float64    `json:"price"`
	Status        string     `json:"status"`
	PaymentID     string     `json:"payment_id,omitempty"`
	CancelReason  string     `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
}

// ReservationListResponse represents a user's reservation history
type ReservationListResponse struct {
	Reservations []*ReservationResponse `json:"reservations"`
	Total        int                    `json:"total"`
}

// SeatResponse represents a seat in API responses
type SeatResponse struct {
	SeatID     string  `json:"seat_id"`
	ConcertID  string  `json:"concert_id"`
	ScheduleID string  `json:"schedule_id"`
	SeatNumber int     `json:"seat_number"`
	Price      float64 `json:"price"`
	Status     string  `json:"status"`
}

// SeatListResponse represents the seats of a concert schedule
type SeatListResponse struct {
	ConcertID  string          `json:"concert_id"`
	ScheduleID string          `json:"schedule_id"`
	Seats      []*SeatResponse `json:"seats"`
	Total      int             `json:"total"`
}

// CreateSeatsRequest represents an admin request to register seats
type CreateSeatsRequest struct {
	ConcertID  string  `json:"concert_id" binding:"required"`
	ScheduleID string  `json:"schedule_id" binding:"required"`
	SeatCount  int     `json:"seat_count" binding:"required,min=1"`
	Price      float64 `json:"price" binding:"required,min=0"`
}
