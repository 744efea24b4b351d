package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segyhp/agriloan-engine/internal/config"
	"github.com/segyhp/agriloan-engine/internal/handler"
	"github.com/segyhp/agriloan-engine/internal/repository"
	"github.com/segyhp/agriloan-engine/internal/service"
	"github.com/segyhp/agriloan-engine/pkg/logger"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, "agriloan-server")

	// Initialize database
	db, err := repository.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Initialize payment coordination, redis when enabled
	var (
		redisClient *redis.Client
		lock        repository.PaymentLock
		idempotency repository.IdempotencyStore
	)
	if cfg.Redis.Enabled {
		redisClient = initRedis(cfg)
		defer redisClient.Close()

		lock = repository.NewRedisPaymentLock(redisClient)
		idempotency = repository.NewRedisIdempotencyStore(redisClient)
	} else {
		log.Warn().Msg("Redis disabled, payment lock and idempotency are process-local")
		lock = repository.NewMemoryPaymentLock()
		idempotency = repository.NewMemoryIdempotencyStore()
	}

	// Initialize repositories
	loanRepo := repository.NewLoanRepository(db)
	productRepo := repository.NewProductRepository(db)

	// Initialize services
	lendingService := service.NewLendingService(loanRepo, productRepo, lock, idempotency, cfg)
	analyticsService := service.NewAnalyticsService(loanRepo, cfg.Business.HistoryLimit)
	productService := service.NewProductService(productRepo)

	router := handler.NewRouter(
		handler.NewLoanHandler(lendingService),
		handler.NewAnalyticsHandler(analyticsService),
		handler.NewProductHandler(productService),
		handler.NewHealthHandler(db, redisClient, cfg.Health.Timeout),
	)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", server.Addr).Str("driver", cfg.Database.Driver).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return
	}

	log.Info().Msg("Server exited")
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
