package domain

import "time"

// SeatStatus represents the state of a seat
type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "AVAILABLE"
	SeatStatusHeld      SeatStatus = "HELD"
	SeatStatusConfirmed SeatStatus = "CONFIRMED"
)

// Seat represents a single seat in a concert schedule
type Seat struct {
	ID         string     `json:"id"`
	ConcertID  string     `json:"concert_id"`
	ScheduleID string     `json:"schedule_id"`
	SeatNumber int        `json:"seat_number"`
	Price      float64    `json:"price"`
	Status     SeatStatus `json:"status"`
}

// ReservationStatus represents the lifecycle state of a reservation
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "PENDING"
	ReservationStatusConfirmed ReservationStatus = "CONFIRMED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
	ReservationStatusExpired   ReservationStatus = "EXPIRED"
)

// Reservation represents a time-limited claim on a seat pending payment
type Reservation struct {
	ID           string            `json:"id"`
	UserID       int64             `json:"user_id"`
	ConcertID    string            `json:"concert_id"`
	ScheduleID   string            `json:"schedule_id"`
	SeatID       string            `json:"seat_id"`
	SeatNumber   int               `json:"seat_number"`
	Price        float64           `json:"price"`
	Status       ReservationStatus `json:"status"`
	PaymentID    string            `json:"payment_id,omitempty"`
	CancelReason string            `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	ExpiresAt    time.Time         `json:"expires_at"`
	ConfirmedAt  *time.Time        `json:"confirmed_at,omitempty"`
	CancelledAt  *time.Time        `json:"cancelled_at,omitempty"`
}

// IsPending reports whether the reservation is still an unpaid hold
func (r *Reservation) IsPending() bool {
	return r.Status == ReservationStatusPending
}

// IsConfirmed reports whether the reservation has been paid for
func (r *Reservation) IsConfirmed() bool {
	return r.Status == ReservationStatusConfirmed
}

// IsLive reports whether the reservation still occupies its seat
func (r *Reservation) IsLive() bool {
	return r.Status == ReservationStatusPending || r.Status == ReservationStatusConfirmed
}

// IsExpired reports whether a pending hold has outlived its TTL.
// ExpiresAt only applies while PENDING; a confirmed reservation never expires.
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.Status == ReservationStatusPending && now.After(r.ExpiresAt)
}

// BelongsToUser reports whether the reservation is owned by the given user
func (r *Reservation) BelongsToUser(userID int64) bool {
	return r.UserID == userID
}
