package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/lyceum-platform/lyceum/internal/app"
	"github.com/lyceum-platform/lyceum/internal/authz/pgstore"
	"github.com/lyceum-platform/lyceum/internal/observability"
	"github.com/lyceum-platform/lyceum/internal/platform/cache"
	"github.com/lyceum-platform/lyceum/internal/platform/db"
	"github.com/lyceum-platform/lyceum/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	memberships := pgstore.NewCachedReader(pgstore.NewReader(pool), redisClient, cfg.MembershipCacheTTL)

	tasks := &jobs.Tasks{
		Pool:        pool,
		Invalidator: memberships,
		Retention:   cfg.RetentionPeriod,
		Logger:      logger,
		Metrics:     metrics,
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		Logger: logger,
		Tasks:  tasks,
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: jobs.NewRetentionPurgeTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
