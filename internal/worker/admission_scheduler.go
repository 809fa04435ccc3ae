package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/teerapat-l/seatgate/internal/service"
	"github.com/teerapat-l/seatgate/pkg/logger"
)

// AdmissionSchedulerConfig contains configuration for the admission scheduler
type AdmissionSchedulerConfig struct {
	// PromotionInterval is the cadence for promoting waiting tokens
	PromotionInterval time.Duration
	// CleanupInterval is the cadence for expiring stale active tokens
	CleanupInterval time.Duration
	// SnapshotInterval is the cadence for logging queue depth
	SnapshotInterval time.Duration
}

// DefaultAdmissionSchedulerConfig returns default configuration
func DefaultAdmissionSchedulerConfig() *AdmissionSchedulerConfig {
	return &AdmissionSchedulerConfig{
		PromotionInterval: 5 * time.Second,
		CleanupInterval:   30 * time.Second,
		SnapshotInterval:  time.Minute,
	}
}

// AdmissionScheduler drives the waiting room on three independent
// cadences: batch promotion, active-token cleanup, and queue snapshots.
type AdmissionScheduler struct {
	tokens  service.TokenService
	config  *AdmissionSchedulerConfig
	log     *logger.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	// Stats
	totalPromoted    int64
	totalExpired     int64
	lastPromotedAt   time.Time
	lastPromotedSize int
}

// AdmissionSchedulerStats reports scheduler statistics
type AdmissionSchedulerStats struct {
	IsRunning        bool      `json:"is_running"`
	TotalPromoted    int64     `json:"total_promoted"`
	TotalExpired     int64     `json:"total_expired"`
	LastPromotedAt   time.Time `json:"last_promoted_at"`
	LastPromotedSize int       `json:"last_promoted_size"`
}

// NewAdmissionScheduler creates a new admission scheduler
func NewAdmissionScheduler(tokens service.TokenService, config *AdmissionSchedulerConfig) *AdmissionScheduler {
	if config == nil {
		config = DefaultAdmissionSchedulerConfig()
	}

	return &AdmissionScheduler{
		tokens: tokens,
		config: config,
		log:    logger.Get(),
		stopCh: make(chan struct{}),
	}
}

// Start starts the scheduler loops
func (s *AdmissionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("admission scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	s.log.Info("Starting admission scheduler")

	s.wg.Add(3)
	go s.loop(ctx, s.config.PromotionInterval, s.promote)
	go s.loop(ctx, s.config.CleanupInterval, s.cleanup)
	go s.loop(ctx, s.config.SnapshotInterval, s.snapshot)

	return nil
}

// Stop stops the scheduler and waits for in-flight ticks to finish
func (s *AdmissionScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.log.Info("Stopping admission scheduler")
	close(s.stopCh)
	s.wg.Wait()
	s.log.Info("Admission scheduler stopped")
}

// loop runs fn on its own ticker until the scheduler stops
func (s *AdmissionScheduler) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on start
	s.runTick(ctx, fn)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runTick(ctx, fn)
		}
	}
}

// runTick invokes one tick, isolating panics so one bad tick cannot
// take the scheduler down
func (s *AdmissionScheduler) runTick(ctx context.Context, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(fmt.Sprintf("Admission scheduler tick panicked: %v", r))
		}
	}()
	fn(ctx)
}

// promote activates the next batch of waiting tokens
func (s *AdmissionScheduler) promote(ctx context.Context) {
	promoted, err := s.tokens.PromoteBatch(ctx)
	if err != nil {
		s.log.Error(fmt.Sprintf("Failed to promote waiting tokens: %v", err))
		return
	}

	s.mu.Lock()
	s.totalPromoted += int64(promoted)
	s.lastPromotedAt = time.Now()
	s.lastPromotedSize = promoted
	s.mu.Unlock()

	if promoted > 0 {
		s.log.Info(fmt.Sprintf("Promoted %d tokens from the waiting queue", promoted))
	}
}

// cleanup expires active tokens past their TTL
func (s *AdmissionScheduler) cleanup(ctx context.Context) {
	expired, err := s.tokens.CleanupExpiredActive(ctx)
	if err != nil {
		s.log.Error(fmt.Sprintf("Failed to clean up expired tokens: %v", err))
		return
	}

	s.mu.Lock()
	s.totalExpired += int64(expired)
	s.mu.Unlock()

	if expired > 0 {
		s.log.Info(fmt.Sprintf("Expired %d stale active tokens", expired))
	}
}

// snapshot logs the current queue depth
func (s *AdmissionScheduler) snapshot(ctx context.Context) {
	snap, err := s.tokens.Snapshot(ctx)
	if err != nil {
		s.log.Error(fmt.Sprintf("Failed to snapshot queue: %v", err))
		return
	}

	s.log.Info(fmt.Sprintf("Queue snapshot: waiting=%d active=%d free_slots=%d",
		snap.WaitingCount, snap.ActiveCount, snap.FreeSlots))
}

// GetStats returns scheduler statistics
func (s *AdmissionScheduler) GetStats() *AdmissionSchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &AdmissionSchedulerStats{
		IsRunning:        s.running,
		TotalPromoted:    s.totalPromoted,
		TotalExpired:     s.totalExpired,
		LastPromotedAt:   s.lastPromotedAt,
		LastPromotedSize: s.lastPromotedSize,
	}
}
