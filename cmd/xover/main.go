package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/jonasfh/xover/internal/adapter/http"
	"github.com/jonasfh/xover/internal/adapter/postgres"
	"github.com/jonasfh/xover/internal/config"
	"github.com/jonasfh/xover/internal/observability"
	"github.com/jonasfh/xover/internal/service"
	"github.com/jonasfh/xover/internal/spatial"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	metrics.StoreReady.Set(1)

	engine := spatial.NewEngine(store, logger)
	svc := service.New(store, engine, service.Options{
		CrossoverRangeMeters: cfg.CrossoverRangeMeters,
		CrossoverMinDepth:    cfg.CrossoverMinDepth,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, store, cfg.QueryTimeout, logger, metrics)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := store.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
