package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"promo-redemption/internal/analytics"
	"promo-redemption/internal/events"
	"promo-redemption/internal/repository"
	"promo-redemption/pkg/config"
	"promo-redemption/pkg/database"
	"promo-redemption/pkg/logger"
	"promo-redemption/pkg/tracing"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"
)

const serviceName = "promo-usage-materializer"

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	mongoDB, err := database.Connect(connectCtx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() {
		if err := mongoDB.Disconnect(context.Background()); err != nil {
			zlog.Error().Err(err).Msg("error disconnecting from MongoDB")
		}
	}()

	usageRepo := repository.NewUsageRepository(mongoDB.Database)

	var materializer *analytics.Materializer
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		materializer = analytics.NewMaterializer(usageRepo, repository.NewCachedUsageReader(usageRepo, rdb, cfg.UsageCacheTTL))
	} else {
		materializer = analytics.NewMaterializer(usageRepo, nil)
	}

	consumer := events.NewConsumer(
		events.NewReader(cfg.KafkaBrokers, cfg.PromoAppliedTopic, cfg.ConsumerGroup),
		materializer,
		events.WithMaxAttempts(cfg.MaxHandleAttempts),
	)
	defer func() {
		if err := consumer.Close(); err != nil {
			zlog.Error().Err(err).Msg("error closing Kafka reader")
		}
	}()

	// Metrics only; the consumer has no API
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	zlog.Info().
		Strs("brokers", cfg.KafkaBrokers).
		Str("topic", cfg.PromoAppliedTopic).
		Str("group", cfg.ConsumerGroup).
		Msg("consuming PromoCodeApplied events")

	if err := consumer.Run(ctx); err != nil {
		zlog.Error().Err(err).Msg("consumer stopped")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	zlog.Info().Msg("consumer exited")
}
