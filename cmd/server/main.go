package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"promo-redemption/internal/events"
	"promo-redemption/internal/repository"
	"promo-redemption/internal/service"
	"promo-redemption/pkg/config"
	"promo-redemption/pkg/database"
	"promo-redemption/pkg/logger"
	"promo-redemption/pkg/tracing"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"
)

const serviceName = "promo-redemption-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(serviceName, cfg.LogLevel)

	tp, err := tracing.InitTracerProvider(serviceName, cfg.JaegerEndpoint)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize tracing")
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			zlog.Error().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	// Connect to MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoDB, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() {
		if err := mongoDB.Disconnect(context.Background()); err != nil {
			zlog.Error().Err(err).Msg("error disconnecting from MongoDB")
		}
	}()
	zlog.Info().Str("db", cfg.MongoDB).Msg("connected to MongoDB")

	// Initialize repositories
	promoRepo := repository.NewPromoCodeRepository(mongoDB.Database)
	orderRepo := repository.NewOrderRepository(mongoDB.Database)
	var usageReader repository.UsageReader = repository.NewUsageRepository(mongoDB.Database)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		usageReader = repository.NewCachedUsageReader(usageReader, rdb, cfg.UsageCacheTTL)
		zlog.Info().Str("addr", cfg.RedisAddr).Msg("usage count cache enabled")
	}

	publisher := events.NewKafkaPublisher(events.NewWriter(cfg.KafkaBrokers, cfg.PromoAppliedTopic))
	defer func() {
		if err := publisher.Close(); err != nil {
			zlog.Error().Err(err).Msg("error closing Kafka writer")
		}
	}()

	// Initialize services
	uow := database.NewUnitOfWork(mongoDB.Client, cfg.MongoTxMaxCommitTime)
	svc := services{
		redemption: service.NewRedemptionService(uow, promoRepo, orderRepo, usageReader, publisher,
			service.WithPublishTimeout(cfg.EventPublishTimeout)),
		promoCodes: service.NewPromoCodeService(promoRepo),
		orders:     service.NewOrderService(orderRepo),
	}

	if cfg.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(cfg.GinMode)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: setupRouter(svc),
	}

	go func() {
		zlog.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("server forced to shutdown")
	}

	zlog.Info().Msg("server exited")
}
