package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-hotel/internal/app"
	"github.com/odyssey-erp/odyssey-hotel/internal/inventory"
	"github.com/odyssey-erp/odyssey-hotel/internal/platform/db"
	"github.com/odyssey-erp/odyssey-hotel/internal/shared"
	"github.com/odyssey-erp/odyssey-hotel/jobs"
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

	var (
		pool  *pgxpool.Pool
		items inventory.Lister
	)
	if cfg.StoreDriver == app.StoreDriverPostgres {
		pool, err = db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
		if err != nil {
			logger.Error("connect database", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		items = inventory.NewRepository(pool)
	} else {
		seed := app.Seed{}
		if cfg.SeedFile != "" {
			if seed, err = app.LoadSeed(cfg.SeedFile); err != nil {
				logger.Error("load seed", slog.Any("error", err))
				os.Exit(1)
			}
		}
		items = inventory.NewMemoryStore(seed.Items...)
	}

	stockScan := jobs.NewStockScanJob(items, logger, nil)
	stockTask, err := jobs.NewStockScanTask("")
	if err != nil {
		logger.Error("build stock scan task", slog.Any("error", err))
		os.Exit(1)
	}

	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskStockScan, Handler: stockScan.Handle},
	}
	cron := []jobs.CronRegistration{
		{Spec: cfg.StockScanSchedule, Task: stockTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
	}
	if pool != nil {
		cleanup := &jobs.IdempotencyCleanupJob{
			Store:     shared.NewIdempotencyStore(pool),
			Retention: cfg.IdempotencyRetention,
			Logger:    logger,
		}
		cleanupTask, err := jobs.NewIdempotencyCleanupTask(cfg.IdempotencyRetention)
		if err != nil {
			logger.Error("build cleanup task", slog.Any("error", err))
			os.Exit(1)
		}
		handlers = append(handlers, jobs.TaskHandler{Type: jobs.TaskIdempotencyCleanup, Handler: cleanup.Handle})
		cron = append(cron, jobs.CronRegistration{Spec: "0 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:    logger,
		Handlers:  handlers,
		Cron:      cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("stock_scan", cfg.StockScanSchedule))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
