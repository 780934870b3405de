// Package sync implements the sync orchestrator: one pass of
// fetch -> map -> resolve -> upsert against a single wholesaler.
package sync

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/anucha1993/tour-api-sub001/internal/adapters/wholesaler"
	"github.com/anucha1993/tour-api-sub001/internal/domain/mapping"
	"github.com/anucha1993/tour-api-sub001/internal/errs"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/config"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/storage"
)

// endpointResolver is the optional adapter surface needed for two-phase mode.
// The generic REST adapter implements it.
type endpointResolver interface {
	Endpoint(name string, anchor json.RawMessage) (string, error)
	HasEndpoint(name string) bool
}

// Orchestrator drives sync passes for one wholesaler. Mapping rows are
// parsed once at construction; a parse failure is a configuration error that
// fails the run before any fetch.
type Orchestrator struct {
	repo          storage.Repository
	adapter       wholesaler.Adapter
	w             *storage.Wholesaler
	cfg           config.SyncConfig
	engine        *mapping.Engine
	previewEngine *mapping.Engine
	logger        *slog.Logger
}

// NewOrchestrator loads and parses the wholesaler's mapping rows and wires
// the engine. resolver may be nil when no mapping uses a lookup transform.
func NewOrchestrator(
	repo storage.Repository,
	adapter wholesaler.Adapter,
	w *storage.Wholesaler,
	cfg config.SyncConfig,
	resolver mapping.Resolver,
	logger *slog.Logger,
) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rows, err := repo.ListFieldMappings(w.ID)
	if err != nil {
		return nil, err
	}
	spec, err := mapping.Parse(rows)
	if err != nil {
		return nil, err
	}

	live := resolver
	if resolver != nil && cfg.AutoCreateReferences {
		live = autoCreateResolver{inner: resolver}
	}

	return &Orchestrator{
		repo:    repo,
		adapter: adapter,
		w:       w,
		cfg:     cfg,
		engine:  mapping.NewEngine(spec, live),
		// Preview must not write reference rows, whatever the mappings say.
		previewEngine: mapping.NewEngine(spec, readOnlyResolver{inner: resolver}),
		logger:        logger.With("wholesaler", w.Code),
	}, nil
}

// autoCreateResolver turns the engine-wide auto-create setting on for every
// lookup, regardless of the per-mapping flag.
type autoCreateResolver struct {
	inner mapping.Resolver
}

func (r autoCreateResolver) Resolve(kind, token string, _ bool) (int64, error) {
	return r.inner.Resolve(kind, token, true)
}

// readOnlyResolver disables auto-create for preview paths.
type readOnlyResolver struct {
	inner mapping.Resolver
}

func (r readOnlyResolver) Resolve(kind, token string, _ bool) (int64, error) {
	if r.inner == nil {
		return 0, errs.New(errs.KindConfiguration, "no lookup resolver configured")
	}
	return r.inner.Resolve(kind, token, false)
}

// RunOptions selects what one pass processes.
type RunOptions struct {
	SyncType string
	// Payload, when non-nil, replaces the adapter fetch entirely. Records may
	// be raw upstream shapes or pre-mapped canonical sections.
	Payload []json.RawMessage
	// Limit caps processed tours; 0 falls back to the engine-wide cap.
	Limit int
}

// RunResult aggregates one pass.
type RunResult struct {
	Counters  storage.RunCounters
	TourCodes []string
	Errors    []string
	Warnings  []string
}

// ErrorSummary flattens per-tour errors for the run record.
func (r *RunResult) ErrorSummary() string {
	if len(r.Errors) == 0 {
		return ""
	}
	summary := strings.Join(r.Errors, "; ")
	if len(summary) > 2000 {
		summary = summary[:2000]
	}
	return summary
}

// Run executes one sync pass. A fetch or configuration failure aborts the
// run; a single tour's failure is recorded and the batch continues.
func (o *Orchestrator) Run(ctx context.Context, runID string, opts RunOptions) (*RunResult, error) {
	result := &RunResult{}

	limit := opts.Limit
	if limit == 0 {
		limit = o.cfg.MaxToursPerRun
	}

	if opts.Payload != nil {
		for _, record := range opts.Payload {
			if limit > 0 && len(result.TourCodes) >= limit {
				break
			}
			o.processRecord(ctx, record, result)
		}
	} else if err := o.runFetch(ctx, opts, limit, result); err != nil {
		return result, err
	}

	o.acknowledge(ctx, runID, result)

	o.logger.Info("sync pass finished",
		"run_id", runID,
		"type", opts.SyncType,
		"tours", len(result.TourCodes),
		"errors", len(result.Errors),
	)
	return result, nil
}

func (o *Orchestrator) runFetch(ctx context.Context, opts RunOptions, limit int, result *RunResult) error {
	cursor := ""
	if opts.SyncType == storage.RunTypeIncremental {
		saved, err := o.repo.GetCursor(o.w.ID, opts.SyncType)
		if err != nil {
			return err
		}
		if saved != nil {
			cursor = saved.Cursor
		}
	}

	for {
		page, err := o.adapter.FetchTours(ctx, cursor)
		if err != nil {
			return errs.Wrap(err, errs.KindConnection, "fetching tours")
		}
		if err := o.saveCursor(opts.SyncType, page.NextCursor); err != nil {
			return err
		}

		for _, record := range page.Tours {
			if limit > 0 && len(result.TourCodes) >= limit {
				return o.finishCursor(opts.SyncType)
			}
			o.processRecord(ctx, record, result)
		}

		if !page.HasMore || page.NextCursor == "" || page.NextCursor == cursor {
			break
		}
		cursor = page.NextCursor
	}

	return o.finishCursor(opts.SyncType)
}

// saveCursor persists the pagination position after each successful fetch.
func (o *Orchestrator) saveCursor(syncType, cursor string) error {
	now := time.Now().UTC()
	return o.repo.SaveCursor(&storage.SyncCursor{
		WholesalerID: o.w.ID,
		SyncType:     syncType,
		Cursor:       cursor,
		LastSyncedAt: &now,
	})
}

// finishCursor resets the position after a completed full pass so the next
// run starts from the beginning again.
func (o *Orchestrator) finishCursor(syncType string) error {
	if syncType != storage.RunTypeFull {
		return nil
	}
	return o.saveCursor(syncType, "")
}

// processRecord maps and persists one tour, recording the failure and moving
// on when it cannot.
func (o *Orchestrator) processRecord(ctx context.Context, record json.RawMessage, result *RunResult) {
	outcome, err := o.processTour(ctx, record)
	if err != nil {
		result.Errors = append(result.Errors, tourLabel(record)+": "+err.Error())
		o.logger.Warn("tour failed", "tour", tourLabel(record), "error", err)
		return
	}

	result.TourCodes = append(result.TourCodes, outcome.TourCode)
	result.Warnings = append(result.Warnings, outcome.Warnings...)
	result.Counters.Add(outcome.Counters)
}

// acknowledge reports ingested tour codes upstream. A failure here is logged
// but never fails the run; the data is already persisted.
func (o *Orchestrator) acknowledge(ctx context.Context, runID string, result *RunResult) {
	if o.adapter == nil || len(result.TourCodes) == 0 {
		return
	}
	supported, err := o.adapter.AcknowledgeSynced(ctx, result.TourCodes, runID)
	if err != nil {
		o.logger.Warn("acknowledge failed", "run_id", runID, "error", err)
		return
	}
	if supported {
		o.logger.Debug("acknowledged tours", "run_id", runID, "count", len(result.TourCodes))
	}
}
