package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/anucha1993/tour-api-sub001/internal/api/dto"
	"github.com/anucha1993/tour-api-sub001/internal/application/service"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/storage"
)

// WholesalersHandler handles wholesaler HTTP requests.
type WholesalersHandler struct {
	*Base
	svc *service.SyncService
}

// NewWholesalersHandler creates a new wholesalers handler.
func NewWholesalersHandler(repo storage.Repository, svc *service.SyncService) *WholesalersHandler {
	return &WholesalersHandler{Base: NewBase(repo), svc: svc}
}

// List handles GET /api/wholesalers.
func (h *WholesalersHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := ParseBoolParam(r, "active", false)

	wholesalers, err := h.repo.ListWholesalers(activeOnly)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.WholesalerListResponse{
		Wholesalers: make([]dto.WholesalerResponse, 0, len(wholesalers)),
		Count:       len(wholesalers),
	}
	for _, ws := range wholesalers {
		count, _ := h.repo.CountTours(ws.ID)
		response.Wholesalers = append(response.Wholesalers, dto.WholesalerResponse{
			ID:        ws.ID,
			Code:      ws.Code,
			Name:      ws.Name,
			BaseURL:   ws.BaseURL,
			SyncMode:  ws.SyncMode,
			Schedule:  ws.Schedule,
			Active:    ws.Active,
			TourCount: count,
		})
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// Preview handles POST /api/wholesalers/{id}/preview - mapping dry-run.
func (h *WholesalersHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.wholesalerID(w, r)
	if !ok {
		return
	}

	var req dto.PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if len(req.Record) == 0 || string(req.Record) == "null" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("record is required"))
		return
	}

	preview, err := h.svc.PreviewMapping(id, req.Record)
	if err != nil {
		h.WriteEngineError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.PreviewResponse{
		Sections: preview.Sections,
		Warnings: preview.Warnings,
		Errors:   preview.Errors,
	})
}

// SyncOneTour handles POST /api/wholesalers/{id}/tours - manual ingestion of
// a single tour payload.
func (h *WholesalersHandler) SyncOneTour(w http.ResponseWriter, r *http.Request) {
	id, ok := h.wholesalerID(w, r)
	if !ok {
		return
	}

	var payload json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	result, err := h.svc.SyncOneTour(r.Context(), id, payload)
	if err != nil {
		h.WriteEngineError(w, err)
		return
	}

	status := http.StatusOK
	if result.IsNew {
		status = http.StatusCreated
	}
	h.WriteJSON(w, status, dto.OneTourResponse{
		TourID:   result.TourID,
		TourCode: result.TourCode,
		IsNew:    result.IsNew,
		Counters: result.Counters,
		Warnings: result.Warnings,
	})
}

// Health handles GET /api/wholesalers/{id}/health - upstream reachability.
func (h *WholesalersHandler) Health(w http.ResponseWriter, r *http.Request) {
	id, ok := h.wholesalerID(w, r)
	if !ok {
		return
	}

	if err := h.svc.CheckWholesalerHealth(r.Context(), id); err != nil {
		h.WriteEngineError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.HealthResponse{Status: "ok"})
}

func (h *WholesalersHandler) wholesalerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid wholesaler ID"))
		return 0, false
	}
	return id, true
}
