package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/anucha1993/tour-api-sub001/internal/api/dto"
	"github.com/anucha1993/tour-api-sub001/internal/application/service"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/storage"
)

// SyncHandler handles sync run HTTP requests.
type SyncHandler struct {
	*Base
	svc *service.SyncService
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(repo storage.Repository, svc *service.SyncService) *SyncHandler {
	return &SyncHandler{Base: NewBase(repo), svc: svc}
}

// StartSync handles POST /api/sync - dispatches a sync run.
func (h *SyncHandler) StartSync(w http.ResponseWriter, r *http.Request) {
	var req dto.StartSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if req.WholesalerID == 0 {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("wholesaler_id is required"))
		return
	}

	runID, err := h.svc.StartSync(req.WholesalerID, req.SyncType, req.Records, req.Limit)
	if err != nil {
		h.WriteEngineError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusAccepted, dto.StartSyncResponse{
		RunID:  runID,
		Status: storage.RunStatusRunning,
	})
}

// ListRuns handles GET /api/runs - returns recent sync runs.
func (h *SyncHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 20)
	wholesalerID := int64(ParseIntParam(r, "wholesaler_id", 0))

	runs, err := h.svc.ListSyncRuns(wholesalerID, limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.SyncRunListResponse{
		Runs:  make([]dto.SyncRunResponse, 0, len(runs)),
		Count: len(runs),
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, toSyncRunResponse(run))
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// GetRun handles GET /api/runs/{runId} - returns a single sync run.
func (h *SyncHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runId")
	if runID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	run, err := h.svc.GetSyncRunStatus(runID)
	if err != nil {
		h.WriteEngineError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, toSyncRunResponse(*run))
}

func toSyncRunResponse(run storage.SyncRun) dto.SyncRunResponse {
	resp := dto.SyncRunResponse{
		RunID:        run.RunID,
		WholesalerID: run.WholesalerID,
		Type:         run.Type,
		Status:       run.Status,
		StartedAt:    run.StartedAt.Format(time.RFC3339),
		Counters:     run.Counters,
		ErrorSummary: run.ErrorSummary,
	}
	if run.HeartbeatAt != nil {
		hb := run.HeartbeatAt.Format(time.RFC3339)
		resp.HeartbeatAt = &hb
	}
	if run.CompletedAt != nil {
		done := run.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &done
	}
	return resp
}
