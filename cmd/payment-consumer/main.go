package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teerapat-l/seatgate/internal/config"
	"github.com/teerapat-l/seatgate/internal/repository"
	"github.com/teerapat-l/seatgate/internal/service"
	"github.com/teerapat-l/seatgate/internal/worker"
	"github.com/teerapat-l/seatgate/pkg/database"
	"github.com/teerapat-l/seatgate/pkg/kafka"
	"github.com/teerapat-l/seatgate/pkg/logger"
	pkgredis "github.com/teerapat-l/seatgate/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := &logger.Config{
		Level:       cfg.Log.Level,
		ServiceName: "payment-consumer",
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting payment consumer...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis connection
	redisClient, err := pkgredis.NewClient(ctx, &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	defer redisClient.Close()
	appLog.Info("Redis connected")

	// Initialize PostgreSQL for durable reservation records
	var records repository.ReservationRecords
	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:          cfg.Database.Host,
		Port:          cfg.Database.Port,
		User:          cfg.Database.User,
		Password:      cfg.Database.Password,
		Database:      cfg.Database.DBName,
		SSLMode:       cfg.Database.SSLMode,
		MaxConns:      10,
		MinConns:      2,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
	})
	if err != nil {
		appLog.Warn(fmt.Sprintf("Database connection failed, reservation records disabled: %v", err))
		records = repository.NewNoOpReservationRecords()
	} else {
		defer db.Close()
		records = repository.NewPostgresReservationRecords(db.Pool())
		appLog.Info("Database connected")
	}

	// Initialize Kafka consumer
	consumer, err := kafka.NewConsumer(ctx, &kafka.ConsumerConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.ConsumerGroup,
		Topics:         []string{cfg.Kafka.PaymentTopic},
		ClientID:       "payment-consumer",
		MaxRetries:     3,
		RetryInterval:  2 * time.Second,
		SessionTimeout: 30 * time.Second,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to create Kafka consumer: %v", err))
	}
	defer consumer.Close()
	appLog.Info("Kafka consumer connected")

	// Initialize event publisher for downstream reservation events
	var eventPublisher service.EventPublisher
	eventPublisher, err = service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
		Brokers:     cfg.Kafka.Brokers,
		ServiceName: "payment-consumer",
		ClientID:    "payment-consumer-producer",
	})
	if err != nil {
		appLog.Warn(fmt.Sprintf("Kafka producer connection failed, using no-op publisher: %v", err))
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

	// Initialize services
	tokenService := service.NewTokenService(tokenStore, &service.TokenServiceConfig{
		MaxActiveTokens:    cfg.Admission.MaxActiveTokens,
		PromotionBatchSize: cfg.Admission.PromotionBatchSize,
		PromotionInterval:  cfg.Admission.PromotionInterval,
		ActiveTTL:          cfg.Admission.ActiveTTL,
	})
	reservationService := service.NewReservationService(
		seatStore,
		records,
		tokenService,
		eventPublisher,
		&service.ReservationServiceConfig{
			HoldTTL:              cfg.Reservation.HoldTTL,
			ConcurrentCeiling:    cfg.Reservation.ConcurrentCeiling,
			AllowConfirmedCancel: cfg.Reservation.AllowConfirmedCancel,
		},
	)

	// Create worker
	paymentConsumer := worker.NewPaymentConsumer(consumer, reservationService, &worker.PaymentConsumerConfig{
		WorkerCount:   5,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	})

	// Run until interrupted
	errCh := make(chan error, 1)
	go func() {
		errCh <- paymentConsumer.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLog.Info(fmt.Sprintf("Received signal %v, shutting down...", sig))
		cancel()
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			appLog.Error(fmt.Sprintf("Payment consumer stopped: %v", err))
		}
	}

	appLog.Info("Payment consumer exited")
}
