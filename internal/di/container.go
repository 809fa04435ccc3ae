package di

import (
	"github.com/teerapat-l/seatgate/internal/handler"
	"github.com/teerapat-l/seatgate/internal/repository"
	"github.com/teerapat-l/seatgate/internal/service"
	"github.com/teerapat-l/seatgate/internal/worker"
	"github.com/teerapat-l/seatgate/pkg/database"
	"github.com/teerapat-l/seatgate/pkg/redis"
)

// Container holds all dependencies for the gate service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client

	// Repositories
	TokenStore repository.TokenStore
	SeatStore  repository.SeatStore
	Records    repository.ReservationRecords

	// Publishers
	EventPublisher service.EventPublisher

	// Services
	TokenService       service.TokenService
	ReservationService service.ReservationService

	// Workers
	AdmissionScheduler *worker.AdmissionScheduler
	HoldReaper         *worker.HoldReaper

	// Handlers
	HealthHandler      *handler.HealthHandler
	TokenHandler       *handler.TokenHandler
	ReservationHandler *handler.ReservationHandler
	AdminHandler       *handler.AdminHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB             *database.PostgresDB
	Redis          *redis.Client
	TokenStore     repository.TokenStore
	SeatStore      repository.SeatStore
	Records        repository.ReservationRecords
	EventPublisher service.EventPublisher

	TokenConfig       *service.TokenServiceConfig
	ReservationConfig *service.ReservationServiceConfig
	SchedulerConfig   *worker.AdmissionSchedulerConfig
	ReaperConfig      *worker.HoldReaperConfig
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:             cfg.DB,
		Redis:          cfg.Redis,
		TokenStore:     cfg.TokenStore,
		SeatStore:      cfg.SeatStore,
		Records:        cfg.Records,
		EventPublisher: cfg.EventPublisher,
	}

	// Initialize services
	c.TokenService = service.NewTokenService(c.TokenStore, cfg.TokenConfig)
	c.ReservationService = service.NewReservationService(
		c.SeatStore,
		c.Records,
		c.TokenService,
		c.EventPublisher,
		cfg.ReservationConfig,
	)

	// Initialize workers
	c.AdmissionScheduler = worker.NewAdmissionScheduler(c.TokenService, cfg.SchedulerConfig)
	c.HoldReaper = worker.NewHoldReaper(c.ReservationService, cfg.ReaperConfig)

	// Initialize handlers
	checkers := make(map[string]handler.HealthChecker)
	if c.Redis != nil {
		checkers["redis"] = c.Redis
	}
	if c.DB != nil {
		checkers["postgres"] = c.DB
	}
	c.HealthHandler = handler.NewHealthHandler(checkers)
	c.TokenHandler = handler.NewTokenHandler(c.TokenService)
	c.ReservationHandler = handler.NewReservationHandler(c.ReservationService)
	c.AdminHandler = handler.NewAdminHandler(c.TokenService, c.ReservationService, c.AdmissionScheduler, c.HoldReaper)

	return c
}
