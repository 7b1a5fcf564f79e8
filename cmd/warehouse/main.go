package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/app"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/attempts"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/clients"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/directory"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/events"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/movement"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/observability"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/platform/cache"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/platform/db"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/rbac"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/reconcile"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/sequence"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/shared"
	"github.com/DQHuy2112/BE-QLKH-sub001/jobs"
)

const attemptSweepInterval = 10 * time.Minute

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	metrics := observability.NewMetrics()

	fatal := clients.Policy{Timeout: cfg.OutboundTimeout, Fatal: true}
	advisory := clients.Policy{Timeout: cfg.OutboundTimeout}
	catalogClient := clients.NewCatalogClient(cfg.CatalogURL, advisory)
	storeClient := clients.NewStoreClient(cfg.StoreURL, fatal)
	partnerClient := clients.NewPartnerClient(cfg.PartnerURL, advisory)
	userClient := clients.NewUserClient(cfg.UserURL, fatal)

	resolver := directory.NewResolver(catalogClient, storeClient, partnerClient,
		cache.NewJSONCache(redisClient, "names", cfg.NameCacheTTL))
	dispatcher := reconcile.NewDispatcher(catalogClient, advisory, logger, metrics.Registerer())

	var codes movement.CodeGenerator = sequence.NewPostgresGenerator(dbpool)
	if cfg.CodeSequenceBackend == "redis" {
		codes = sequence.NewRedisGenerator(redisClient).
			WithSeed(sequence.LedgerSeed(dbpool, movement.CodeTables()))
	}

	publisher, err := events.Connect(cfg.NATSURL, "warehouse-api", logger)
	if err != nil {
		logger.Error("connect nats", slog.Any("error", err))
		os.Exit(1)
	}
	defer publisher.Close()

	movementService := movement.NewService(movement.NewRepository(dbpool), codes, dispatcher, resolver, logger)
	movementService.SetApprovals(shared.NewApprovalRecorder(dbpool, logger))
	movementService.SetAudit(shared.NewAuditLogger(dbpool))
	movementService.SetIdempotency(shared.NewIdempotencyStore(dbpool))
	movementService.SetEvents(publisher)
	movementService.SetDispatchBudget(cfg.DispatchBudget)

	tracker := newAttemptTracker(ctx, cfg, redisClient, logger)

	rbacService := rbac.NewService(userClient, cache.NewJSONCache(redisClient, "permissions", cfg.PermissionTTL))
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger, Disabled: !cfg.AuthzEnabled}
	if !cfg.AuthzEnabled {
		logger.Warn("authorization disabled, every permission check passes")
	}

	movementHandler := movement.NewHandler(logger, movementService, rbacMiddleware, tracker)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		MovementHandler: movementHandler,
		RBACMiddleware:  rbacMiddleware,
		JobHandler:      jobHandler,
		Metrics:         metrics,
		Checks: map[string]app.HealthCheck{
			"postgres": func(r *http.Request) error { return dbpool.Ping(r.Context()) },
			"redis":    func(r *http.Request) error { return redisClient.Ping(r.Context()).Err() },
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// newAttemptTracker builds the configured tracker. The in-process tracker is
// swept here because the worker cannot reach its memory.
func newAttemptTracker(ctx context.Context, cfg *app.Config, client *redis.Client, logger *slog.Logger) attempts.Tracker {
	policy := attempts.Policy{Limit: cfg.AttemptLimit, Window: cfg.AttemptWindow}
	if cfg.AttemptBackend == "redis" {
		return attempts.NewRedisTracker(client, policy)
	}
	tracker := attempts.NewMemoryTracker(policy)
	go func() {
		ticker := time.NewTicker(attemptSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := tracker.Sweep(ctx); err != nil {
					logger.Warn("attempt sweep", slog.Any("error", err))
				} else if n > 0 {
					logger.Debug("attempt sweep", slog.Int("removed", n))
				}
			}
		}
	}()
	return tracker
}
