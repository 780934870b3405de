package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/anucha1993/tour-api-sub001/internal/application/service"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/config"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/logging"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/storage"
)

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Configuration file path")
		code       = flag.String("wholesaler", "", "Wholesaler code to sync (required)")
		syncType   = flag.String("type", storage.RunTypeManual, "Sync type: incremental, full, manual")
		limit      = flag.Int("limit", 0, "Maximum tours to process (0 = all)")
		dryRun     = flag.Bool("dry-run", false, "Preview the mapping for a sample record from stdin instead of syncing")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)
	if *verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	logger := logging.NewLogger(cfg.Observability.Logging)

	if *code == "" {
		fmt.Fprintln(os.Stderr, "usage: sync -wholesaler <code> [-type incremental|full|manual] [-limit n] [-dry-run]")
		os.Exit(2)
	}

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	w, err := store.GetWholesalerByCode(*code)
	if err != nil || w == nil {
		logger.Error("wholesaler not found", slog.String("code", *code))
		os.Exit(1)
	}

	syncService := service.NewSyncService(store, cfg, logger)

	if *dryRun {
		runPreview(syncService, w.ID, logger)
		return
	}

	runID, err := syncService.StartSync(w.ID, *syncType, nil, *limit)
	if err != nil {
		logger.Error("failed to start sync", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("sync started", slog.String("run_id", runID))

	// Poll until the run reaches a terminal state.
	for {
		time.Sleep(2 * time.Second)
		run, err := syncService.GetSyncRunStatus(runID)
		if err != nil {
			logger.Error("failed to read run status", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if run.Status == storage.RunStatusRunning {
			continue
		}

		out, _ := json.MarshalIndent(run, "", "  ")
		fmt.Println(string(out))
		if run.Status != storage.RunStatusCompleted {
			os.Exit(1)
		}
		return
	}
}

// runPreview reads one sample record from stdin and prints the mapped
// sections without persisting anything.
func runPreview(svc *service.SyncService, wholesalerID int64, logger *slog.Logger) {
	var record json.RawMessage
	if err := json.NewDecoder(os.Stdin).Decode(&record); err != nil {
		logger.Error("failed to read sample record from stdin", slog.String("error", err.Error()))
		os.Exit(1)
	}

	preview, err := svc.PreviewMapping(wholesalerID, record)
	if err != nil {
		logger.Error("preview failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(preview, "", "  ")
	fmt.Println(string(out))
}
