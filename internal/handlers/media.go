package handlers

import (
	"net/http"

	"lovechat-backend/internal/middleware"
	"lovechat-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// MediaHandler hands out presigned upload URLs
type MediaHandler struct {
	pairService  *services.PairService
	mediaService *services.MediaService
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(pairService *services.PairService, mediaService *services.MediaService) *MediaHandler {
	return &MediaHandler{
		pairService:  pairService,
		mediaService: mediaService,
	}
}

// Upload handles POST /api/v1/uploads
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	pc, ok := pairContext(w, r, h.pairService)
	if !ok {
		return
	}
	var req services.UploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.mediaService.PresignUpload(r.Context(), pc, req)
	if err != nil {
		respondServiceError(w, r, err, "Failed to generate upload URL")
		return
	}

	log.Info().
		Str("user_id", middleware.GetUserID(r.Context())).
		Str("key", res.Key).
		Msg("Upload URL generated")

	respondJSON(w, http.StatusOK, res)
}
