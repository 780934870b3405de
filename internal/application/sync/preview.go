package sync

import (
	"context"
	"encoding/json"

	"github.com/anucha1993/tour-api-sub001/internal/errs"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/storage"
)

// Preview is the dry-run result for mapping-configuration UIs. Data problems
// surface as warnings, never as an error; only a structurally unusable
// record is blocking.
type Preview struct {
	Sections map[string]json.RawMessage `json:"sections"`
	Warnings []string                   `json:"warnings,omitempty"`
	Errors   []string                   `json:"errors,omitempty"`
}

// PreviewMapping runs the mapping engine over a sample record without
// persisting anything. Reference lookups resolve read-only.
func (o *Orchestrator) PreviewMapping(record json.RawMessage) *Preview {
	result, err := o.previewEngine.Apply(record)
	if err != nil {
		return &Preview{Errors: []string{err.Error()}}
	}
	return &Preview{Sections: result.Sections, Warnings: result.Warnings}
}

// OneTourResult reports the manual single-tour ingestion path.
type OneTourResult struct {
	TourID   int64               `json:"tour_id"`
	TourCode string              `json:"tour_code"`
	IsNew    bool                `json:"is_new"`
	Counters storage.RunCounters `json:"counters"`
	Warnings []string            `json:"warnings,omitempty"`
}

// SyncOneTour ingests a single payload, raw or pre-mapped, through the same
// pipeline a full run uses.
func (o *Orchestrator) SyncOneTour(ctx context.Context, payload json.RawMessage) (*OneTourResult, error) {
	if len(payload) == 0 {
		return nil, errs.New(errs.KindValidation, "payload is empty")
	}

	outcome, err := o.processTour(ctx, payload)
	if err != nil {
		return nil, err
	}
	return &OneTourResult{
		TourID:   outcome.TourID,
		TourCode: outcome.TourCode,
		IsNew:    outcome.IsNew,
		Counters: outcome.Counters,
		Warnings: outcome.Warnings,
	}, nil
}
