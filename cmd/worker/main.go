package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/soletrack/soletrack/internal/app"
	"github.com/soletrack/soletrack/internal/inventory"
	"github.com/soletrack/soletrack/internal/observability"
	"github.com/soletrack/soletrack/internal/platform/pocketbase"
	"github.com/soletrack/soletrack/jobs"
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

	auth := pocketbase.NewTokenProvider(cfg.StoreURL, cfg.StoreEmail, cfg.StorePassword, cfg.StoreTimeout)
	store := pocketbase.NewClient(cfg.StoreURL, auth, cfg.StoreTimeout)
	repo := inventory.NewRepository(store, cfg.StoreURL)

	metrics := observability.NewMetrics()
	engineMetrics := observability.NewEngineMetrics(metrics.Registerer())
	jobMetrics := jobs.NewMetrics(metrics.Registerer())
	reconcileJob := jobs.NewStockReconcileJob(repo, engineMetrics, jobMetrics, logger)

	reconcileTask, err := jobs.NewStockReconcileTask()
	if err != nil {
		logger.Error("build reconcile task", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStockReconcile, Handler: reconcileJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ReconcileCron, Task: reconcileTask, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("reconcile_cron", cfg.ReconcileCron))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker exited", slog.Any("error", err))
		os.Exit(1)
	}
}
