package domain

import "time"

// EventType identifies the kind of a domain event
type EventType string

const (
	EventReservationCreated   EventType = "reservation.created"
	EventReservationConfirmed EventType = "reservation.confirmed"
	EventReservationCancelled EventType = "reservation.cancelled"
	EventReservationExpired   EventType = "reservation.expired"
	EventSeatConfirmed        EventType = "seat.confirmed"
	EventSeatStatusChanged    EventType = "seat.status_changed"
)

// Event is the envelope published for every domain event
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// Key returns the partition key for the event
func (e *Event) Key() string {
	switch p := e.Payload.(type) {
	case ReservationCreatedPayload:
		return p.ReservationID
	case ReservationConfirmedPayload:
		return p.ReservationID
	case ReservationCancelledPayload:
		return p.ReservationID
	case ReservationExpiredPayload:
		return p.ReservationID
	case SeatConfirmedPayload:
		return p.SeatID
	case SeatStatusChangedPayload:
		return p.SeatID
	default:
		return e.ID
	}
}

// ReservationCreatedPayload is emitted when a seat hold is created
type ReservationCreatedPayload struct {
	ReservationID string    `json:"reservation_id"`
	UserID        int64     `json:"user_id"`
	ConcertID     string    `json:"concert_id"`
	SeatID        string    `json:"seat_id"`
	SeatNumber    int       `json:"seat_number"`
	Price         float64   `json:"price"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// ReservationConfirmedPayload is emitted when payment completes a hold
type ReservationConfirmedPayload struct {
	ReservationID string  `json:"reservation_id"`
	UserID        int64   `json:"user_id"`
	ConcertID     string  `json:"concert_id"`
	SeatID        string  `json:"seat_id"`
	PaymentID     string  `json:"payment_id"`
	Price         float64 `json:"price"`
}

// ReservationCancelledPayload is emitted on user cancel or payment failure
type ReservationCancelledPayload struct {
	ReservationID string `json:"reservation_id"`
	UserID        int64  `json:"user_id"`
	ConcertID     string `json:"concert_id"`
	SeatID        string `json:"seat_id"`
	CancelReason  string `json:"cancel_reason"`
	IsExpired     bool   `json:"is_expired"`
}

// ReservationExpiredPayload is emitted when a hold is reclaimed by TTL
type ReservationExpiredPayload struct {
	ReservationID string    `json:"reservation_id"`
	UserID        int64     `json:"user_id"`
	ConcertID     string    `json:"concert_id"`
	SeatID        string    `json:"seat_id"`
	ExpiredAt     time.Time `json:"expired_at"`
}

// SeatConfirmedPayload is emitted when a seat is permanently assigned
type SeatConfirmedPayload struct {
	SeatID        string `json:"seat_id"`
	ScheduleID    string `json:"schedule_id"`
	SeatNumber    int    `json:"seat_number"`
	UserID        int64  `json:"user_id"`
	ReservationID string `json:"reservation_id"`
	PaymentID     string `json:"payment_id"`
}

// SeatStatusChangedPayload is emitted on every seat state transition
type SeatStatusChangedPayload struct {
	SeatID         string     `json:"seat_id"`
	PreviousStatus SeatStatus `json:"previous_status"`
	NewStatus      SeatStatus `json:"new_status"`
}

// NewEvent wraps a payload in an event envelope
func NewEvent(id string, eventType EventType, payload interface{}) *Event {
	return &Event{
		ID:         id,
		Type:       eventType,
		OccurredAt: time.Now(),
		Payload:    payload,
	}
}
