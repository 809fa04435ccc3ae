package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/teerapat-l/seatgate/internal/service"
	"github.com/teerapat-l/seatgate/pkg/logger"
)

// HoldReaperConfig contains configuration for the hold reaper
type HoldReaperConfig struct {
	// ScanInterval is the interval between scans for expired holds
	ScanInterval time.Duration
}

// DefaultHoldReaperConfig returns default configuration
func DefaultHoldReaperConfig() *HoldReaperConfig {
	return &HoldReaperConfig{
		ScanInterval: 10 * time.Second,
	}
}

// HoldReaper scans for pending holds past their TTL and releases their
// seats back to inventory.
type HoldReaper struct {
	reservations service.ReservationService
	config       *HoldReaperConfig
	log          *logger.Logger
	stopCh       chan struct{}
	wg           sync.WaitGroup
	mu           sync.Mutex
	running      bool

	// Stats
	totalReclaimed   int64
	lastScanTime     time.Time
	lastReclaimCount int
}

// HoldReaperStats reports reaper statistics
type HoldReaperStats struct {
	IsRunning        bool      `json:"is_running"`
	TotalReclaimed   int64     `json:"total_reclaimed"`
	LastScanTime     time.Time `json:"last_scan_time"`
	LastReclaimCount int       `json:"last_reclaim_count"`
}

// NewHoldReaper creates a new hold reaper
func NewHoldReaper(reservations service.ReservationService, config *HoldReaperConfig) *HoldReaper {
	if config == nil {
		config = DefaultHoldReaperConfig()
	}

	return &HoldReaper{
		reservations: reservations,
		config:       config,
		log:          logger.Get(),
		stopCh:       make(chan struct{}),
	}
}

// Start starts the reaper loop
func (r *HoldReaper) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("hold reaper already running")
	}
	r.running = true
	r.mu.Unlock()

	r.log.Info("Starting hold reaper")

	r.wg.Add(1)
	go r.scan(ctx)

	return nil
}

// Stop stops the reaper and waits for the current scan to finish
func (r *HoldReaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	r.log.Info("Stopping hold reaper")
	close(r.stopCh)
	r.wg.Wait()
	r.log.Info("Hold reaper stopped")
}

// scan periodically reclaims expired holds
func (r *HoldReaper) scan(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.ScanInterval)
	defer ticker.Stop()

	// Run immediately on start
	r.reclaim(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.reclaim(ctx)
		}
	}
}

// reclaim runs one reclaim pass
func (r *HoldReaper) reclaim(ctx context.Context) {
	reclaimed, err := r.reservations.ReclaimExpired(ctx)
	if err != nil {
		r.log.Error(fmt.Sprintf("Failed to reclaim expired holds: %v", err))
		return
	}

	r.mu.Lock()
	r.totalReclaimed += int64(reclaimed)
	r.lastScanTime = time.Now()
	r.lastReclaimCount = reclaimed
	r.mu.Unlock()
}

// GetStats returns reaper statistics
func (r *HoldReaper) GetStats() *HoldReaperStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return &HoldReaperStats{
		IsRunning:        r.running,
		TotalReclaimed:   r.totalReclaimed,
		LastScanTime:     r.lastScanTime,
		LastReclaimCount: r.lastReclaimCount,
	}
}
