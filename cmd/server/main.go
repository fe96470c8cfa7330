package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stamin-up/service-requests/internal/application"
	"github.com/stamin-up/service-requests/internal/config"
	requestEvents "github.com/stamin-up/service-requests/internal/events"
	"github.com/stamin-up/service-requests/internal/handler"
	"github.com/stamin-up/service-requests/internal/repository"
	"github.com/stamin-up/service-requests/pkg/auth"
	"github.com/stamin-up/service-requests/pkg/database"
	"github.com/stamin-up/service-requests/pkg/health"
	"github.com/stamin-up/service-requests/pkg/kafka"
	"github.com/stamin-up/service-requests/pkg/logger"
	"github.com/stamin-up/service-requests/pkg/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-requests")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-requests",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(&repository.RequestModel{}); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		dbURL := cfg.DBConfig.DatabaseURL()
		if err := database.RunMigrations(dbURL, "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		15*time.Minute,
		7*24*time.Hour,
	)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Initialize repository
	requestRepo := repository.NewGormRequestRepository(db)

	// Initialize application service
	requestService := application.NewRequestService(
		requestRepo,
		kafkaProducer,
		log,
	)

	// Initialize and start moderation event consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupID := cfg.KafkaConfig.GroupPrefix + "request-service"
	moderationConsumer := requestEvents.NewModerationEventConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		requestService,
		log,
	)
	defer func() { _ = moderationConsumer.Close() }()

	go func() {
		log.Info("starting moderation event consumer")
		for {
			err := moderationConsumer.Start(ctx)
			if ctx.Err() != nil {
				return
			}
			log.Error("moderation event consumer stopped, resuming", zap.Error(err))
			time.Sleep(5 * time.Second)
		}
	}()

	// Initialize HTTP handlers
	requestHandler := handler.NewRequestHandler(requestService)
	adminHandler := handler.NewAdminRequestHandler(requestService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, "service-requests")
	healthHandler.RegisterRoutes(router)

	// Register routes
	requestHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	adminHandler.RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-requests...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-requests stopped")
}
