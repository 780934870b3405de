// Package service exposes the sync engine to the API, CLI, and scheduler:
// asynchronous run dispatch with per-wholesaler single-flight, heartbeat
// upkeep, and stuck-run reaping.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/anucha1993/tour-api-sub001/internal/adapters/httpx"
	"github.com/anucha1993/tour-api-sub001/internal/adapters/wholesaler"
	"github.com/anucha1993/tour-api-sub001/internal/adapters/wholesaler/rest"
	appsync "github.com/anucha1993/tour-api-sub001/internal/application/sync"
	"github.com/anucha1993/tour-api-sub001/internal/domain/lookup"
	"github.com/anucha1993/tour-api-sub001/internal/domain/mapping"
	"github.com/anucha1993/tour-api-sub001/internal/errs"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/config"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/storage"
)

// SyncService coordinates sync runs. One run per wholesaler at a time; a
// second start while one is in flight is rejected, not queued.
type SyncService struct {
	repo     storage.Repository
	cfg      *config.Config
	resolver mapping.Resolver
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewSyncService wires the service with a lookup resolver backed by the
// repository.
func NewSyncService(repo storage.Repository, cfg *config.Config, logger *slog.Logger) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{
		repo:     repo,
		cfg:      cfg,
		resolver: lookup.NewResolver(repo, logger),
		logger:   logger,
		locks:    map[int64]*sync.Mutex{},
	}
}

func (s *SyncService) lockFor(wholesalerID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[wholesalerID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[wholesalerID] = lock
	}
	return lock
}

// StartSync creates a run record and dispatches the pass in the background.
// payload, when non-nil, replaces the adapter fetch (manual ingestion).
func (s *SyncService) StartSync(wholesalerID int64, syncType string, payload []json.RawMessage, limit int) (string, error) {
	switch syncType {
	case "":
		syncType = storage.RunTypeManual
	case storage.RunTypeIncremental, storage.RunTypeFull, storage.RunTypeManual:
	default:
		return "", errs.Newf(errs.KindValidation, "unknown sync type %q", syncType)
	}

	w, err := s.repo.GetWholesaler(wholesalerID)
	if err != nil {
		return "", err
	}
	if w == nil {
		return "", errs.Newf(errs.KindNotFound, "wholesaler %d not found", wholesalerID)
	}
	if !w.Active {
		return "", errs.Newf(errs.KindValidation, "wholesaler %s is inactive", w.Code)
	}

	lock := s.lockFor(w.ID)
	if !lock.TryLock() {
		return "", errs.Newf(errs.KindValidation, "a sync is already running for wholesaler %s", w.Code)
	}

	run, err := s.repo.StartSyncRun(w.ID, syncType)
	if err != nil {
		lock.Unlock()
		return "", err
	}

	go s.execute(lock, w, run, payload, limit)
	return run.RunID, nil
}

func (s *SyncService) execute(lock *sync.Mutex, w *storage.Wholesaler, run *storage.SyncRun, payload []json.RawMessage, limit int) {
	defer lock.Unlock()

	ctx := context.Background()
	stopHeartbeat := s.startHeartbeat(run.RunID)
	defer stopHeartbeat()

	orch, err := s.orchestratorFor(w)
	if err != nil {
		s.finish(run.RunID, storage.RunStatusFailed, storage.RunCounters{}, err.Error())
		return
	}

	result, err := orch.Run(ctx, run.RunID, appsync.RunOptions{
		SyncType: run.Type,
		Payload:  payload,
		Limit:    limit,
	})

	status := storage.RunStatusCompleted
	summary := result.ErrorSummary()
	if err != nil {
		status = storage.RunStatusFailed
		summary = err.Error()
	}
	s.finish(run.RunID, status, result.Counters, summary)
}

func (s *SyncService) finish(runID, status string, counters storage.RunCounters, summary string) {
	if err := s.repo.FinishSyncRun(runID, status, counters, summary); err != nil {
		s.logger.Error("failed to finalize sync run", "run_id", runID, "error", err)
	}
}

// startHeartbeat refreshes the run's heartbeat until stopped. The reaper
// treats a stale heartbeat as a crashed worker, so the interval must stay
// well under the stuck threshold.
func (s *SyncService) startHeartbeat(runID string) func() {
	interval := s.cfg.Sync.HeartbeatInterval.Std()
	if interval <= 0 {
		interval = 30 * time.Second
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := s.repo.HeartbeatSyncRun(runID); err != nil {
					s.logger.Warn("heartbeat failed", "run_id", runID, "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}

// ReapStuckRuns closes runs whose heartbeat went stale. Called by the
// scheduler on a short fixed interval.
func (s *SyncService) ReapStuckRuns() (int, error) {
	threshold := s.cfg.Scheduler.StuckThreshold.Std()
	reaped, err := s.repo.ReapStuckRuns(threshold, "heartbeat not refreshed within threshold")
	if err != nil {
		return 0, err
	}
	for _, run := range reaped {
		s.logger.Warn("reaped stuck sync run",
			"run_id", run.RunID,
			"wholesaler_id", run.WholesalerID,
			"started_at", run.StartedAt,
		)
	}
	return len(reaped), nil
}

// GetSyncRunStatus returns one run by its public ID.
func (s *SyncService) GetSyncRunStatus(runID string) (*storage.SyncRun, error) {
	run, err := s.repo.GetSyncRun(runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, errs.Newf(errs.KindNotFound, "sync run %s not found", runID)
	}
	return run, nil
}

// ListSyncRuns returns recent runs, optionally filtered by wholesaler.
func (s *SyncService) ListSyncRuns(wholesalerID int64, limit int) ([]storage.SyncRun, error) {
	return s.repo.ListSyncRuns(wholesalerID, limit)
}

// ListWholesalers returns configured wholesalers.
func (s *SyncService) ListWholesalers(activeOnly bool) ([]storage.Wholesaler, error) {
	return s.repo.ListWholesalers(activeOnly)
}

// PreviewMapping dry-runs the mapping configuration over a sample record.
func (s *SyncService) PreviewMapping(wholesalerID int64, record json.RawMessage) (*appsync.Preview, error) {
	orch, err := s.orchestratorForID(wholesalerID)
	if err != nil {
		return nil, err
	}
	return orch.PreviewMapping(record), nil
}

// SyncOneTour ingests one payload synchronously, for manual testing and
// collaborator pushes.
func (s *SyncService) SyncOneTour(ctx context.Context, wholesalerID int64, payload json.RawMessage) (*appsync.OneTourResult, error) {
	orch, err := s.orchestratorForID(wholesalerID)
	if err != nil {
		return nil, err
	}
	return orch.SyncOneTour(ctx, payload)
}

// CheckWholesalerHealth verifies the upstream is reachable.
func (s *SyncService) CheckWholesalerHealth(ctx context.Context, wholesalerID int64) error {
	w, err := s.repo.GetWholesaler(wholesalerID)
	if err != nil {
		return err
	}
	if w == nil {
		return errs.Newf(errs.KindNotFound, "wholesaler %d not found", wholesalerID)
	}
	adapter, err := s.adapterFor(w)
	if err != nil {
		return err
	}
	return adapter.HealthCheck(ctx)
}

func (s *SyncService) orchestratorForID(wholesalerID int64) (*appsync.Orchestrator, error) {
	w, err := s.repo.GetWholesaler(wholesalerID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, errs.Newf(errs.KindNotFound, "wholesaler %d not found", wholesalerID)
	}
	return s.orchestratorFor(w)
}

func (s *SyncService) orchestratorFor(w *storage.Wholesaler) (*appsync.Orchestrator, error) {
	adapter, err := s.adapterFor(w)
	if err != nil {
		return nil, err
	}
	return appsync.NewOrchestrator(s.repo, adapter, w, s.cfg.Sync, s.resolver, s.logger)
}

// adapterFor builds the generic REST adapter from the wholesaler's stored
// configuration: endpoint table, auth scheme, rate and timeout limits.
func (s *SyncService) adapterFor(w *storage.Wholesaler) (wholesaler.Adapter, error) {
	endpoints, err := w.EndpointTable()
	if err != nil {
		return nil, errs.Wrap(err, errs.KindConfiguration, "invalid endpoint table")
	}

	creds, err := httpx.ParseCredentials(w.Credentials)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindConfiguration, "invalid credentials")
	}

	timeout := s.cfg.Sync.RequestTimeout.Std()
	if w.TimeoutSeconds > 0 {
		timeout = time.Duration(w.TimeoutSeconds) * time.Second
	}

	auth, err := httpx.NewAuthenticator(w.AuthScheme, creds, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, errs.Wrap(err, errs.KindConfiguration, "invalid auth scheme")
	}

	client := httpx.NewClient(httpx.Options{
		Timeout:   timeout,
		RateLimit: w.RateLimit,
		Auth:      auth,
		Logger:    s.logger,
	})

	return rest.New(rest.Config{
		Name:      w.Code,
		BaseURL:   w.BaseURL,
		Endpoints: endpoints,
		Capabilities: wholesaler.Capabilities{
			Availability: w.SupportsAvailability,
			Hold:         w.SupportsHold,
			Modify:       w.SupportsModify,
		},
	}, client, s.logger), nil
}
