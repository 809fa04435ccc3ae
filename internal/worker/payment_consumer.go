package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/teerapat-l/seatgate/internal/domain"
	"github.com/teerapat-l/seatgate/internal/dto"
	"github.com/teerapat-l/seatgate/internal/service"
	"github.com/teerapat-l/seatgate/pkg/kafka"
	"github.com/teerapat-l/seatgate/pkg/logger"
)

// Payment event types emitted by the payment service
const (
	PaymentEventCompleted = "payment.completed"
	PaymentEventFailed    = "payment.failed"
)

// PaymentEvent represents the event received from the payment service
type PaymentEvent struct {
	EventType     string `json:"event_type"`
	ReservationID string `json:"reservation_id"`
	UserID        int64  `json:"user_id"`
	PaymentID     string `json:"payment_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
}

// PaymentConsumerConfig contains configuration for the payment consumer
type PaymentConsumerConfig struct {
	WorkerCount   int
	RetryAttempts int
	RetryDelay    time.Duration
}

// PaymentConsumer consumes payment outcomes and settles the matching
// reservations: completed payments confirm the hold, failed payments
// release the seat.
type PaymentConsumer struct {
	consumer     *kafka.Consumer
	reservations service.ReservationService
	config       *PaymentConsumerConfig
}

// NewPaymentConsumer creates a new payment consumer
func NewPaymentConsumer(
	consumer *kafka.Consumer,
	reservations service.ReservationService,
	config *PaymentConsumerConfig,
) *PaymentConsumer {
	if config == nil {
		config = &PaymentConsumerConfig{
			WorkerCount:   5,
			RetryAttempts: 3,
			RetryDelay:    time.Second,
		}
	}
	return &PaymentConsumer{
		consumer:     consumer,
		reservations: reservations,
		config:       config,
	}
}

// Start starts the consumer and begins processing payment events
func (w *PaymentConsumer) Start(ctx context.Context) error {
	log := logger.Get()
	log.Info(fmt.Sprintf("Starting payment consumer with %d workers", w.config.WorkerCount))

	recordsCh := make(chan *kafka.Record, w.config.WorkerCount*10)

	for i := 0; i < w.config.WorkerCount; i++ {
		go w.worker(ctx, i, recordsCh)
	}

	return w.poll(ctx, recordsCh)
}

// poll continuously polls for messages from Kafka
func (w *PaymentConsumer) poll(ctx context.Context, recordsCh chan<- *kafka.Record) error {
	log := logger.Get()

	for {
		select {
		case <-ctx.Done():
			close(recordsCh)
			return ctx.Err()
		default:
			records, err := w.consumer.Poll(ctx)
			if err != nil {
				log.Error(fmt.Sprintf("Failed to poll payment events: %v", err))
				time.Sleep(time.Second)
				continue
			}

			for _, record := range records {
				select {
				case recordsCh <- record:
				case <-ctx.Done():
					close(recordsCh)
					return ctx.Err()
				}
			}
		}
	}
}

// worker processes records from the channel
func (w *PaymentConsumer) worker(ctx context.Context, id int, recordsCh <-chan *kafka.Record) {
	log := logger.Get()
	log.Info(fmt.Sprintf("Payment worker %d started", id))

	for record := range recordsCh {
		if err := w.processRecord(ctx, record); err != nil {
			log.Error(fmt.Sprintf("Payment worker %d failed to process record: %v", id, err))
		}
	}

	log.Info(fmt.Sprintf("Payment worker %d stopped", id))
}

// processRecord processes a single payment event record
func (w *PaymentConsumer) processRecord(ctx context.Context, record *kafka.Record) error {
	log := logger.Get()

	var event PaymentEvent
	if err := json.Unmarshal(record.Value, &event); err != nil {
		log.Error(fmt.Sprintf("Failed to unmarshal payment event: %v", err))
		// Commit the record to avoid reprocessing malformed messages
		return w.consumer.CommitRecords(ctx, []*kafka.Record{record})
	}

	if event.ReservationID == "" {
		log.Warn(fmt.Sprintf("Payment event without reservation_id, skipping: type=%s", event.EventType))
		return w.consumer.CommitRecords(ctx, []*kafka.Record{record})
	}

	log.Info(fmt.Sprintf("Processing payment event: type=%s, reservation_id=%s", event.EventType, event.ReservationID))

	var lastErr error
	for attempt := 0; attempt < w.config.RetryAttempts; attempt++ {
		err := w.settle(ctx, &event)
		if err == nil {
			lastErr = nil
			break
		}
		if isTerminalSettleError(err) {
			// The reservation already reached a final state; nothing to retry
			log.Warn(fmt.Sprintf("Payment event for settled reservation %s: %v", event.ReservationID, err))
			lastErr = nil
			break
		}
		lastErr = err
		log.Warn(fmt.Sprintf("Attempt %d failed to settle reservation %s: %v", attempt+1, event.ReservationID, err))
		time.Sleep(w.config.RetryDelay)
	}

	if lastErr != nil {
		log.Error(fmt.Sprintf("Failed to settle reservation after %d attempts: reservation_id=%s, error=%v",
			w.config.RetryAttempts, event.ReservationID, lastErr))
		// Still commit to avoid an infinite loop; the hold reaper will
		// reclaim the seat if the hold was never confirmed
	} else {
		log.Info(fmt.Sprintf("Settled payment event: type=%s, reservation_id=%s", event.EventType, event.ReservationID))
	}

	return w.consumer.CommitRecords(ctx, []*kafka.Record{record})
}

// isTerminalSettleError reports whether the reservation can no longer
// change state, so retrying the event is pointless
func isTerminalSettleError(err error) bool {
	return domain.IsConflictError(err) ||
		domain.IsNotFoundError(err) ||
		domain.IsExpiredError(err) ||
		errors.Is(err, domain.ErrReservationAccessDenied)
}

// settle applies the payment outcome to the reservation
func (w *PaymentConsumer) settle(ctx context.Context, event *PaymentEvent) error {
	switch event.EventType {
	case PaymentEventCompleted:
		_, err := w.reservations.ConfirmReservation(ctx, event.ReservationID, &dto.ConfirmReservationRequest{
			UserID:    event.UserID,
			PaymentID: event.PaymentID,
		})
		return err
	case PaymentEventFailed:
		reason := event.Reason
		if reason == "" {
			reason = "payment failed"
		}
		return w.reservations.CancelBySystem(ctx, event.ReservationID, reason)
	default:
		logger.Get().Debug(fmt.Sprintf("Ignoring unknown payment event type: %s", event.EventType))
		return nil
	}
}
