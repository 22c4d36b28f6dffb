package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/soletrack/soletrack/internal/app"
	"github.com/soletrack/soletrack/internal/inventory"
	"github.com/soletrack/soletrack/internal/observability"
	"github.com/soletrack/soletrack/internal/platform/pocketbase"
	"github.com/soletrack/soletrack/internal/shared"
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

	auth := pocketbase.NewTokenProvider(cfg.StoreURL, cfg.StoreEmail, cfg.StorePassword, cfg.StoreTimeout)
	store := pocketbase.NewClient(cfg.StoreURL, auth, cfg.StoreTimeout)
	if err := store.Ping(ctx); err != nil {
		logger.Warn("store ping failed, continuing", slog.Any("error", err))
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	var idempotency *shared.IdempotencyStore
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping failed, idempotency keys disabled", slog.Any("error", err))
	} else {
		idempotency = shared.NewIdempotencyStore(redisClient, cfg.IdempotencyTTL)
	}

	metrics := observability.NewMetrics()
	engineMetrics := observability.NewEngineMetrics(metrics.Registerer())

	repo := inventory.NewRepository(store, cfg.StoreURL)
	service := inventory.NewService(repo, shared.NewKeyedMutex(), idempotency, engineMetrics, logger)
	handler := inventory.NewHandler(logger, service)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		InventoryHandler: handler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
