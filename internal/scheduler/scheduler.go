// Package scheduler triggers incremental syncs on each wholesaler's
// configured interval and runs the stuck-run reaper on a short fixed
// schedule, independent of how long syncs take.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/anucha1993/tour-api-sub001/internal/application/service"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/config"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/storage"
)

// Scheduler dispatches due syncs. Dispatch is best-effort: a wholesaler with
// a run already in flight is skipped, not queued.
type Scheduler struct {
	svc    *service.SyncService
	repo   storage.Repository
	cfg    config.SchedulerConfig
	logger *slog.Logger

	lastDispatch map[int64]time.Time
}

// New creates a Scheduler.
func New(svc *service.SyncService, repo storage.Repository, cfg config.SchedulerConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		svc:          svc,
		repo:         repo,
		cfg:          cfg,
		logger:       logger,
		lastDispatch: map[int64]time.Time{},
	}
}

// Run blocks until ctx is cancelled, ticking the dispatcher and the reaper
// on their own intervals.
func (s *Scheduler) Run(ctx context.Context) {
	tick := time.NewTicker(s.cfg.TickInterval.Std())
	defer tick.Stop()
	reap := time.NewTicker(s.cfg.ReaperInterval.Std())
	defer reap.Stop()

	s.logger.Info("scheduler started",
		"tick_interval", s.cfg.TickInterval.Std().String(),
		"reaper_interval", s.cfg.ReaperInterval.Std().String(),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-tick.C:
			s.dispatchDue()
		case <-reap.C:
			if _, err := s.svc.ReapStuckRuns(); err != nil {
				s.logger.Error("reaper pass failed", "error", err)
			}
		}
	}
}

// dispatchDue starts an incremental sync for every active wholesaler whose
// schedule interval has elapsed since its last dispatch.
func (s *Scheduler) dispatchDue() {
	wholesalers, err := s.repo.ListWholesalers(true)
	if err != nil {
		s.logger.Error("listing wholesalers failed", "error", err)
		return
	}

	now := time.Now()
	for _, w := range wholesalers {
		if w.Schedule == "" {
			continue
		}
		interval, err := time.ParseDuration(w.Schedule)
		if err != nil {
			s.logger.Warn("invalid schedule", "wholesaler", w.Code, "schedule", w.Schedule)
			continue
		}
		if last, ok := s.lastDispatch[w.ID]; ok && now.Sub(last) < interval {
			continue
		}

		runID, err := s.svc.StartSync(w.ID, storage.RunTypeIncremental, nil, 0)
		if err != nil {
			// Usually a run still in flight; next tick retries.
			s.logger.Debug("dispatch skipped", "wholesaler", w.Code, "reason", err)
			continue
		}
		s.lastDispatch[w.ID] = now
		s.logger.Info("dispatched scheduled sync", "wholesaler", w.Code, "run_id", runID)
	}
}
