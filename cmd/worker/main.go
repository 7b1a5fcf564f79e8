package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/app"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/attempts"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/platform/cache"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/platform/db"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/shared"
	"github.com/DQHuy2112/BE-QLKH-sub001/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 4})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	housekeeping := &jobs.HousekeepingJob{
		Idempotency:          shared.NewIdempotencyStore(pool),
		Audit:                shared.NewAuditLogger(pool),
		Approvals:            shared.NewApprovalRecorder(pool, logger),
		IdempotencyRetention: cfg.IdempotencyKeep,
		AuditRetention:       cfg.AuditKeep,
		Logger:               logger,
	}
	// the api sweeps its own in-process tracker
	if cfg.AttemptBackend == "redis" {
		housekeeping.Attempts = attempts.NewRedisTracker(redisClient,
			attempts.Policy{Limit: cfg.AttemptLimit, Window: cfg.AttemptWindow})
	}

	cron, err := jobs.Schedule()
	if err != nil {
		logger.Error("build schedule", slog.Any("error", err))
		os.Exit(1)
	}
	if housekeeping.Attempts == nil {
		cron = dropTask(cron, jobs.TaskHousekeepingAttempts)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  housekeeping.Handlers(),
		Cron:      cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.Int("cron_entries", len(cron)))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

func dropTask(entries []jobs.CronRegistration, taskType string) []jobs.CronRegistration {
	out := entries[:0]
	for _, e := range entries {
		if e.Task.Type() != taskType {
			out = append(out, e)
		}
	}
	return out
}
