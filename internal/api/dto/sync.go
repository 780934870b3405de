package dto

import (
	"encoding/json"

	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/storage"
)

// StartSyncRequest is the request body for starting a sync run.
type StartSyncRequest struct {
	WholesalerID int64  `json:"wholesaler_id"`
	SyncType     string `json:"sync_type"` // "incremental", "full", "manual"
	Limit        int    `json:"limit"`     // max tours to process (0 = engine default)
	// Records optionally replaces the upstream fetch with already-retrieved
	// (raw or pre-mapped) tour payloads.
	Records []json.RawMessage `json:"records,omitempty"`
}

// StartSyncResponse is returned when a sync run is accepted.
type StartSyncResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// SyncRunResponse represents one sync run.
type SyncRunResponse struct {
	RunID        string              `json:"run_id"`
	WholesalerID int64               `json:"wholesaler_id"`
	Type         string              `json:"type"`
	Status       string              `json:"status"`
	StartedAt    string              `json:"started_at"`
	HeartbeatAt  *string             `json:"heartbeat_at,omitempty"`
	CompletedAt  *string             `json:"completed_at,omitempty"`
	Counters     storage.RunCounters `json:"counters"`
	ErrorSummary string              `json:"error_summary,omitempty"`
}

// SyncRunListResponse lists sync runs.
type SyncRunListResponse struct {
	Runs  []SyncRunResponse `json:"runs"`
	Count int               `json:"count"`
}

// PreviewRequest carries a sample upstream record for a mapping dry-run.
type PreviewRequest struct {
	Record json.RawMessage `json:"record"`
}

// PreviewResponse is the dry-run mapping result.
type PreviewResponse struct {
	Sections map[string]json.RawMessage `json:"sections"`
	Warnings []string                   `json:"warnings,omitempty"`
	Errors   []string                   `json:"errors,omitempty"`
}

// OneTourResponse reports a manual single-tour ingestion.
type OneTourResponse struct {
	TourID   int64               `json:"tour_id"`
	TourCode string              `json:"tour_code"`
	IsNew    bool                `json:"is_new"`
	Counters storage.RunCounters `json:"counters"`
	Warnings []string            `json:"warnings,omitempty"`
}

// WholesalerResponse represents one configured wholesaler.
type WholesalerResponse struct {
	ID        int64  `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	BaseURL   string `json:"base_url"`
	SyncMode  string `json:"sync_mode"`
	Schedule  string `json:"schedule,omitempty"`
	Active    bool   `json:"active"`
	TourCount int    `json:"tour_count"`
}

// WholesalerListResponse lists wholesalers.
type WholesalerListResponse struct {
	Wholesalers []WholesalerResponse `json:"wholesalers"`
	Count       int                  `json:"count"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
