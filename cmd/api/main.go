package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anucha1993/tour-api-sub001/internal/api"
	"github.com/anucha1993/tour-api-sub001/internal/application/service"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/config"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/logging"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/storage"
	"github.com/anucha1993/tour-api-sub001/internal/scheduler"
)

func main() {
	var configFile = flag.String("config", "config.yaml", "Configuration file path")
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)
	logger := logging.NewLogger(cfg.Observability.Logging)

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	syncService := service.NewSyncService(store, cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(syncService, store, cfg.Scheduler, logger)
		go sched.Run(ctx)
	}

	server := api.NewServer(api.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, store, syncService, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", slog.String("error", err.Error()))
	}
}
