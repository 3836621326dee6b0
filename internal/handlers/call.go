package handlers

import (
	"net/http"

	"lovechat-backend/internal/middleware"
	"lovechat-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// CallHandler handles call signaling over HTTP; the same operations are also
// reachable as WebSocket frames.
type CallHandler struct {
	pairService *services.PairService
	callService *services.CallService
}

// NewCallHandler creates a new call handler
func NewCallHandler(pairService *services.PairService, callService *services.CallService) *CallHandler {
	return &CallHandler{
		pairService: pairService,
		callService: callService,
	}
}

// ListCalls handles GET /api/v1/calls
func (h *CallHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	pc, ok := pairContext(w, r, h.pairService)
	if !ok {
		return
	}

	calls, err := h.callService.Active(r.Context(), pc)
	if err != nil {
		respondServiceError(w, r, err, "Failed to list calls")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"calls": calls})
}

// StartCall handles POST /api/v1/calls
func (h *CallHandler) StartCall(w http.ResponseWriter, r *http.Request) {
	var req services.StartCallRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	signal, err := h.callService.StartCall(r.Context(), middleware.GetUserID(r.Context()), "", req.Kind)
	if err != nil {
		respondServiceError(w, r, err, "Failed to start call")
		return
	}
	respondJSON(w, http.StatusCreated, signal)
}

// AnswerCall handles POST /api/v1/calls/{call_id}/answer
func (h *CallHandler) AnswerCall(w http.ResponseWriter, r *http.Request) {
	signal, err := h.callService.Answer(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "call_id"))
	if err != nil {
		respondServiceError(w, r, err, "Failed to answer call")
		return
	}
	respondJSON(w, http.StatusOK, signal)
}

// RejectCall handles POST /api/v1/calls/{call_id}/reject
func (h *CallHandler) RejectCall(w http.ResponseWriter, r *http.Request) {
	if err := h.callService.Reject(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "call_id")); err != nil {
		respondServiceError(w, r, err, "Failed to reject call")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EndCall handles POST /api/v1/calls/end
func (h *CallHandler) EndCall(w http.ResponseWriter, r *http.Request) {
	if err := h.callService.End(r.Context(), middleware.GetUserID(r.Context()), ""); err != nil {
		respondServiceError(w, r, err, "Failed to end call")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
