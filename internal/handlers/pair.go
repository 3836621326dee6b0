package handlers

import (
	"net/http"

	"lovechat-backend/internal/middleware"
	"lovechat-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// PairHandler handles pairing HTTP requests. Both parties learn about every
// transition from the bus, not from this response.
type PairHandler struct {
	pairService *services.PairService
}

// NewPairHandler creates a new pair handler
func NewPairHandler(pairService *services.PairService) *PairHandler {
	return &PairHandler{
		pairService: pairService,
	}
}

// GetStatus handles GET /api/v1/pair
func (h *PairHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.pairService.Status(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "Failed to get pair status")
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// SendRequest handles POST /api/v1/pair/requests
func (h *PairHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	var req services.CreatePairRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Target == "" {
		respondError(w, "target is required", http.StatusBadRequest)
		return
	}

	pairReq, err := h.pairService.SendRequest(r.Context(), middleware.GetUserID(r.Context()), req.Target)
	if err != nil {
		respondServiceError(w, r, err, "Failed to send pairing request")
		return
	}
	respondJSON(w, http.StatusCreated, pairReq)
}

// AcceptRequest handles POST /api/v1/pair/requests/{request_id}/accept
func (h *PairHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	pc, err := h.pairService.AcceptRequest(r.Context(), chi.URLParam(r, "request_id"), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "Failed to accept pairing request")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"partner_id": pc.PartnerID,
		"channel_id": pc.ChannelID,
	})
}

// RejectRequest handles POST /api/v1/pair/requests/{request_id}/reject
func (h *PairHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.pairService.RejectRequest(r.Context(), chi.URLParam(r, "request_id"), middleware.GetUserID(r.Context())); err != nil {
		respondServiceError(w, r, err, "Failed to reject pairing request")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Disconnect handles POST /api/v1/pair/disconnect
func (h *PairHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	var req services.DisconnectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.pairService.Disconnect(r.Context(), middleware.GetUserID(r.Context()), req.Phrase); err != nil {
		respondServiceError(w, r, err, "Failed to disconnect")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
