package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/murphys-tech/catalog-api/internal/assignment"
	"github.com/murphys-tech/catalog-api/internal/config"
	"github.com/murphys-tech/catalog-api/internal/db"
	"github.com/murphys-tech/catalog-api/internal/lock"
	"github.com/murphys-tech/catalog-api/internal/notice"
	"github.com/murphys-tech/catalog-api/internal/obs"
	"github.com/murphys-tech/catalog-api/internal/renewalwatch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "catalog"), nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, "catalog-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	sweeper := &renewalwatch.Sweeper{
		Assignments: &assignment.Store{Pool: pool},
		Notices: &notice.Service{
			Store:      &notice.Store{Pool: pool},
			DefaultTTL: cfg.NoticeDefaultTTL,
		},
		Locker:  lock.Locker{R: redisClient},
		LockTTL: 5 * time.Minute,
		Logger:  logger,
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for asynq")
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(renewalwatch.TaskOverdueSweep, sweeper.Handler())

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
	})
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})
	if _, err := scheduler.Register(cfg.OverdueSweepCron, renewalwatch.NewOverdueSweepTask()); err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.OverdueSweepCron).Msg("register sweep schedule")
	}

	errCh := make(chan error, 2)
	go func() { errCh <- server.Run(mux) }()
	go func() { errCh <- scheduler.Run() }()

	logger.Info().Str("cron", cfg.OverdueSweepCron).Msg("worker starting")
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("worker stopped with error")
		}
	}

	scheduler.Shutdown()
	server.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
