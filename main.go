package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/teerapat-l/seatgate/internal/config"
	"github.com/teerapat-l/seatgate/internal/di"
	"github.com/teerapat-l/seatgate/internal/repository"
	"github.com/teerapat-l/seatgate/internal/service"
	"github.com/teerapat-l/seatgate/internal/worker"
	"github.com/teerapat-l/seatgate/pkg/database"
	"github.com/teerapat-l/seatgate/pkg/logger"
	pkgredis "github.com/teerapat-l/seatgate/pkg/redis"
	"github.com/teerapat-l/seatgate/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := &logger.Config{
		Level:       cfg.Log.Level,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting gate service...")

	ctx := context.Background()

	// Initialize tracing
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
	}); err != nil {
		appLog.Warn(fmt.Sprintf("Telemetry init failed, continuing without tracing: %v", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	// Initialize Redis connection
	redisClient, err := pkgredis.NewClient(ctx, &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
		MaxRetries:    3,
		RetryInterval: time.Second,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Redis connection failed: %v", err))
	}
	defer redisClient.Close()
	appLog.Info("Redis connected")

	// Initialize PostgreSQL for durable reservation records. The
	// service degrades to Redis-only when the database is unreachable.
	var db *database.PostgresDB
	var records repository.ReservationRecords
	db, err = database.NewPostgres(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxRetries:      3,
		RetryInterval:   2 * time.Second,
		EnableTracing:   cfg.OTel.Enabled,
	})
	if err != nil {
		appLog.Warn(fmt.Sprintf("Database connection failed, reservation records disabled: %v", err))
		db = nil
		records = repository.NewNoOpReservationRecords()
	} else {
		defer db.Close()
		records = repository.NewPostgresReservationRecords(db.Pool())
		appLog.Info("Database connected")
	}

	// Initialize Kafka event publisher
	var eventPublisher service.EventPublisher
	if cfg.Kafka.Enabled {
		eventPublisher, err = service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
			Brokers:     cfg.Kafka.Brokers,
			ServiceName: cfg.App.Name,
			ClientID:    cfg.Kafka.ClientID,
		})
		if err != nil {
			appLog.Warn(fmt.Sprintf("Kafka connection failed, using no-op publisher: %v", err))
			eventPublisher = service.NewNoOpEventPublisher()
		} else {
			appLog.Info("Kafka event publisher connected")
		}
	} else {
		eventPublisher = service.NewNoOpEventPublisher()
	}
	defer eventPublisher.Close()

	// Initialize repositories
	tokenStore := repository.NewRedisTokenStore(redisClient)
	seatStore := repository.NewRedisSeatStore(redisClient)

	// Pre-load Lua scripts into Redis
	if err := tokenStore.LoadScripts(ctx); err != nil {
		appLog.Warn(fmt.Sprintf("Failed to pre-load admission scripts: %v", err))
	}
	if err := seatStore.LoadScripts(ctx); err != nil {
		appLog.Warn(fmt.Sprintf("Failed to pre-load reservation scripts: %v", err))
	}

	// Build dependency injection container
	container := di.NewContainer(&di.ContainerConfig{
		DB:             db,
		Redis:          redisClient,
		TokenStore:     tokenStore,
		SeatStore:      seatStore,
		Records:        records,
		EventPublisher: eventPublisher,
		TokenConfig: &service.TokenServiceConfig{
			MaxActiveTokens:    cfg.Admission.MaxActiveTokens,
			PromotionBatchSize: cfg.Admission.PromotionBatchSize,
			PromotionInterval:  cfg.Admission.PromotionInterval,
			ActiveTTL:          cfg.Admission.ActiveTTL,
		},
		ReservationConfig: &service.ReservationServiceConfig{
			HoldTTL:              cfg.Reservation.HoldTTL,
			ConcurrentCeiling:    cfg.Reservation.ConcurrentCeiling,
			AllowConfirmedCancel: cfg.Reservation.AllowConfirmedCancel,
		},
		SchedulerConfig: &worker.AdmissionSchedulerConfig{
			PromotionInterval: cfg.Admission.PromotionInterval,
			CleanupInterval:   cfg.Admission.CleanupInterval,
			SnapshotInterval:  cfg.Admission.SnapshotInterval,
		},
		ReaperConfig: &worker.HoldReaperConfig{
			ScanInterval: cfg.Reservation.ReaperInterval,
		},
	})

	// Start background workers
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	if err := container.AdmissionScheduler.Start(workerCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start admission scheduler: %v", err))
	}
	defer container.AdmissionScheduler.Stop()

	if err := container.HoldReaper.Start(workerCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start hold reaper: %v", err))
	}
	defer container.HoldReaper.Stop()

	// Setup Gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DisableConsoleColor()

	router := gin.New()
	router.Use(gin.Recovery())

	// Health check endpoints
	router.GET("/health", container.HealthHandler.Liveness)
	router.GET("/health/ready", container.HealthHandler.Readiness)

	// API routes
	v1 := router.Group("/api/v1")
	{
		waitingRoom := v1.Group("/waiting-room")
		{
			waitingRoom.POST("/enter", container.TokenHandler.Enter)
			waitingRoom.GET("/status/:token_id", container.TokenHandler.Status)
		}

		reservations := v1.Group("/reservations")
		{
			reservations.POST("", container.ReservationHandler.HoldSeat)
			reservations.POST("/:id/confirm", container.ReservationHandler.Confirm)
			reservations.POST("/:id/cancel", container.ReservationHandler.Cancel)
			reservations.GET("/:id", container.ReservationHandler.Get)
		}

		v1.GET("/users/:user_id/reservations", container.ReservationHandler.ListByUser)
		v1.GET("/concerts/:concert_id/schedules/:schedule_id/seats", container.ReservationHandler.ListSeats)

		admin := v1.Group("/admin")
		{
			admin.GET("/queue", container.AdminHandler.QueueSnapshot)
			admin.GET("/workers", container.AdminHandler.WorkerStats)
			admin.POST("/seats", container.AdminHandler.CreateSeats)
			admin.POST("/promote", container.AdminHandler.PromoteNow)
			admin.POST("/reclaim", container.AdminHandler.ReclaimNow)
		}
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		appLog.Info(fmt.Sprintf("Gate service listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	appLog.Info("Server exited gracefully")
}
