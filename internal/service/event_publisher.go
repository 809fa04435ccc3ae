package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teerapat-l/seatgate/internal/domain"
	"github.com/teerapat-l/seatgate/pkg/kafka"
)

// EventPublisher defines the interface for publishing reservation events
type EventPublisher interface {
	// PublishReservationCreated publishes a reservation created event
	PublishReservationCreated(ctx context.Context, reservation *domain.Reservation) error

	// PublishReservationConfirmed publishes a reservation confirmed event
	PublishReservationConfirmed(ctx context.Context, reservation *domain.Reservation) error

	// PublishReservationCancelled publishes a reservation cancelled event
	PublishReservationCancelled(ctx context.Context, reservation *domain.Reservation) error

	// PublishReservationExpired publishes a TTL reclaim event
	PublishReservationExpired(ctx context.Context, reservation *domain.Reservation) error

	// PublishSeatConfirmed publishes a permanent seat assignment event
	PublishSeatConfirmed(ctx context.Context, reservation *domain.Reservation) error

	// PublishSeatStatusChanged publishes a seat state transition event
	PublishSeatStatusChanged(ctx context.Context, seatID string, previous, next domain.SeatStatus) error

	// Close closes the event publisher
	Close() error
}

// KafkaEventPublisher implements EventPublisher using Kafka
type KafkaEventPublisher struct {
	producer    *kafka.Producer
	topic       string
	serviceName string
}

// EventPublisherConfig contains configuration for the event publisher
type EventPublisherConfig struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "reservation-events"
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "seatgate"
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "seatgate-producer"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Brokers,
		ClientID:      clientID,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
		BatchSize:     100,
		LingerMs:      10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaEventPublisher{
		producer:    producer,
		topic:       topic,
		serviceName: serviceName,
	}, nil
}

// PublishReservationCreated publishes a reservation created event
func (p *KafkaEventPublisher) PublishReservationCreated(ctx context.Context, reservation *domain.Reservation) error {
	return p.publishEvent(ctx, domain.EventReservationCreated, domain.ReservationCreatedPayload{
		ReservationID: reservation.ID,
		UserID:        reservation.UserID,
		ConcertID:     reservation.ConcertID,
		SeatID:        reservation.SeatID,
		SeatNumber:    reservation.SeatNumber,
		Price:         reservation.Price,
		ExpiresAt:     reservation.ExpiresAt,
	})
}

// PublishReservationConfirmed publishes a reservation confirmed event
func (p *KafkaEventPublisher) PublishReservationConfirmed(ctx context.Context, reservation *domain.Reservation) error {
	return p.publishEvent(ctx, domain.EventReservationConfirmed, domain.ReservationConfirmedPayload{
		ReservationID: reservation.ID,
		UserID:        reservation.UserID,
		ConcertID:     reservation.ConcertID,
		SeatID:        reservation.SeatID,
		PaymentID:     reservation.PaymentID,
		Price:         reservation.Price,
	})
}

// PublishReservationCancelled publishes a reservation cancelled event
func (p *KafkaEventPublisher) PublishReservationCancelled(ctx context.Context, reservation *domain.Reservation) error {
	return p.publishEvent(ctx, domain.EventReservationCancelled, domain.ReservationCancelledPayload{
		ReservationID: reservation.ID,
		UserID:        reservation.UserID,
		ConcertID:     reservation.ConcertID,
		SeatID:        reservation.SeatID,
		CancelReason:  reservation.CancelReason,
		IsExpired:     reservation.Status == domain.ReservationStatusExpired,
	})
}

// PublishReservationExpired publishes a TTL reclaim event
func (p *KafkaEventPublisher) PublishReservationExpired(ctx context.Context, reservation *domain.Reservation) error {
	expiredAt := time.Now()
	if reservation.CancelledAt != nil {
		expiredAt = *reservation.CancelledAt
	}
	return p.publishEvent(ctx, domain.EventReservationExpired, domain.ReservationExpiredPayload{
		ReservationID: reservation.ID,
		UserID:        reservation.UserID,
		ConcertID:     reservation.ConcertID,
		SeatID:        reservation.SeatID,
		ExpiredAt:     expiredAt,
	})
}

// PublishSeatConfirmed publishes a permanent seat assignment event
func (p *KafkaEventPublisher) PublishSeatConfirmed(ctx context.Context, reservation *domain.Reservation) error {
	return p.publishEvent(ctx, domain.EventSeatConfirmed, domain.SeatConfirmedPayload{
		SeatID:        reservation.SeatID,
		ScheduleID:    reservation.ScheduleID,
		SeatNumber:    reservation.SeatNumber,
		UserID:        reservation.UserID,
		ReservationID: reservation.ID,
		PaymentID:     reservation.PaymentID,
	})
}

// PublishSeatStatusChanged publishes a seat state transition event
func (p *KafkaEventPublisher) PublishSeatStatusChanged(ctx context.Context, seatID string, previous, next domain.SeatStatus) error {
	return p.publishEvent(ctx, domain.EventSeatStatusChanged, domain.SeatStatusChangedPayload{
		SeatID:         seatID,
		PreviousStatus: previous,
		NewStatus:      next,
	})
}

// Close closes the event publisher
func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		p.producer.Close()
	}
	return nil
}

// publishEvent publishes a domain event to Kafka
func (p *KafkaEventPublisher) publishEvent(ctx context.Context, eventType domain.EventType, payload interface{}) error {
	event := domain.NewEvent(uuid.New().String(), eventType, payload)

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := map[string]string{
		"event_type":   string(eventType),
		"event_id":     event.ID,
		"source":       p.serviceName,
		"content_type": "application/json",
	}

	msg := &kafka.Message{
		Topic:     p.topic,
		Key:       []byte(event.Key()),
		Value:     value,
		Headers:   headers,
		Timestamp: time.Now(),
	}

	if err := p.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}

	return nil
}

// NoOpEventPublisher is a no-op implementation of EventPublisher for testing
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a new no-op event publisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

// PublishReservationCreated is a no-op
func (p *NoOpEventPublisher) PublishReservationCreated(ctx context.Context, reservation *domain.Reservation) error {
	return nil
}

// PublishReservationConfirmed is a no-op
func (p *NoOpEventPublisher) PublishReservationConfirmed(ctx context.Context, reservation *domain.Reservation) error {
	return nil
}

// PublishReservationCancelled is a no-op
func (p *NoOpEventPublisher) PublishReservationCancelled(ctx context.Context, reservation *domain.Reservation) error {
	return nil
}

// PublishReservationExpired is a no-op
func (p *NoOpEventPublisher) PublishReservationExpired(ctx context.Context, reservation *domain.Reservation) error {
	return nil
}

// PublishSeatConfirmed is a no-op
func (p *NoOpEventPublisher) PublishSeatConfirmed(ctx context.Context, reservation *domain.Reservation) error {
	return nil
}

// PublishSeatStatusChanged is a no-op
func (p *NoOpEventPublisher) PublishSeatStatusChanged(ctx context.Context, seatID string, previous, next domain.SeatStatus) error {
	return nil
}

// Close is a no-op
func (p *NoOpEventPublisher) Close() error {
	return nil
}
