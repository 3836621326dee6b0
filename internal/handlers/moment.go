package handlers

import (
	"net/http"

	"lovechat-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// MomentHandler handles memories and calendar events
type MomentHandler struct {
	pairService   *services.PairService
	momentService *services.MomentService
}

// NewMomentHandler creates a new moment handler
func NewMomentHandler(pairService *services.PairService, momentService *services.MomentService) *MomentHandler {
	return &MomentHandler{
		pairService:   pairService,
		momentService: momentService,
	}
}

// ListMemories handles GET /api/v1/memories
func (h *MomentHandler) ListMemories(w http.ResponseWriter, r *http.Request) {
	pc, ok := pairContext(w, r, h.pairService)
	if !ok {
		return
	}

	memories, err := h.momentService.ListMemories(r.Context(), pc)
	if err != nil {
		respondServiceError(w, r, err, "Failed to list memories")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"memories": memories})
}

// AddMemory handles POST /api/v1/memories
func (h *MomentHandler) AddMemory(w http.ResponseWriter, r *http.Request) {
	pc, ok := pairContext(w, r, h.pairService)
	if !ok {
		return
	}
	var req services.AddMemoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	memory, err := h.momentService.AddMemory(r.Context(), pc, req)
	if err != nil {
		respondServiceError(w, r, err, "Failed to add memory")
		return
	}
	respondJSON(w, http.StatusCreated, memory)
}

// DeleteMemory handles DELETE /api/v1/memories/{memory_id}
func (h *MomentHandler) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	pc, ok := pairContext(w, r, h.pairService)
	if !ok {
		return
	}

	if err := h.momentService.DeleteMemory(r.Context(), pc, chi.URLParam(r, "memory_id")); err != nil {
		respondServiceError(w, r, err, "Failed to delete memory")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListEvents handles GET /api/v1/events
func (h *MomentHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	pc, ok := pairContext(w, r, h.pairService)
	if !ok {
		return
	}

	events, err := h.momentService.ListEvents(r.Context(), pc)
	if err != nil {
		respondServiceError(w, r, err, "Failed to list events")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// AddEvent handles POST /api/v1/events
func (h *MomentHandler) AddEvent(w http.ResponseWriter, r *http.Request) {
	pc, ok := pairContext(w, r, h.pairService)
	if !ok {
		return
	}
	var req services.AddEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	event, err := h.momentService.AddEvent(r.Context(), pc, req)
	if err != nil {
		respondServiceError(w, r, err, "Failed to add event")
		return
	}
	respondJSON(w, http.StatusCreated, event)
}

// DeleteEvent handles DELETE /api/v1/events/{event_id}
func (h *MomentHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	pc, ok := pairContext(w, r, h.pairService)
	if !ok {
		return
	}

	if err := h.momentService.DeleteEvent(r.Context(), pc, chi.URLParam(r, "event_id")); err != nil {
		respondServiceError(w, r, err, "Failed to delete event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
