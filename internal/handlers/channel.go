package handlers

import (
	"net/http"
	"time"

	"lovechat-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// ChannelHandler serves the shared channel: config, messages and reactions
type ChannelHandler struct {
	pairService     *services.PairService
	channelService  *services.ChannelService
	messageService  *services.MessageService
	presenceService *services.PresenceService
}

// NewChannelHandler creates a new channel handler
func NewChannelHandler(
	pairService *services.PairService,
	channelService *services.ChannelService,
	messageService *services.MessageService,
	presenceService *services.PresenceService,
) *ChannelHandler {
	return &ChannelHandler{
		pairService:     pairService,
		channelService:  channelService,
		messageService:  messageService,
		presenceService: presenceService,
	}
}

// WallpaperRequest sets the channel wallpaper
type WallpaperRequest struct {
	URL string `json:"url"`
}

// GetChannel handles GET /api/v1/channel
func (h *ChannelHandler) GetChannel(w http.ResponseWriter, r *http.Request) {
	pc, ok := pairContext(w, r, h.pairService)
	if !ok {
		return
	}

	snap, err := h.channelService.Snapshot(r.Context(), pc)
	if err != nil {
		respondServiceError(w, r, err, "Failed to get channel")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// SetWallpaper handles PUT /api/v1/channel/wallpaper
func (h *ChannelHandler) SetWallpaper(w http.ResponseWriter, r *http.Request) {
	pc, ok := pairContext(w, r, h.pairService)
	if !ok {
		return
	}
	var req WallpaperRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.channelService.SetWallpaper(r.Context(), pc, req.URL); err != nil {
		respondServiceError(w, r, err, "Failed to set wallpaper")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPartnerPresence handles GET /api/v1/channel/presence
func (h *ChannelHandler) GetPartnerPresence(w http.ResponseWriter, r *http.Request) {
	pc, ok := pairContext(w, r, h.pairService)
	if !ok {
		return
	}

	presence, err := h.presenceService.Get(r.Context(), pc.PartnerID)
	if err != nil {
		respondServiceError(w, r, err, "Failed to get presence")
		return
	}
	respondJSON(w, http.StatusOK, presence)
}

// ListMessages handles GET /api/v1/channel/messages. With ?tz= the response
// is a timeline with day markers in that location.
func (h *ChannelHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	pc, ok := pairContext(w, r, h.pairService)
	if !ok {
		return
	}

	if tz := r.URL.Query().Get("tz"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			respondError(w, "Invalid tz", http.StatusBadRequest)
			return
		}
		entries, err := h.messageService.Timeline(r.Context(), pc, loc)
		if err != nil {
			respondServiceError(w, r, err, "Failed to list messages")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"timeline": entries})
		return
	}

	msgs, err := h.messageService.List(r.Context(), pc)
	if err != nil {
		respondServiceError(w, r, err, "Failed to list messages")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

// SendMessage handles POST /api/v1/channel/messages
func (h *ChannelHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	pc, ok := pairContext(w, r, h.pairService)
	if !ok {
		return
	}
	var req services.SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.messageService.Send(r.Context(), pc, req)
	if err != nil {
		respondServiceError(w, r, err, "Failed to send message")
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

// DeleteMessage handles DELETE /api/v1/channel/messages/{message_id}
func (h *ChannelHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	pc, ok := pairContext(w, r, h.pairService)
	if !ok {
		return
	}

	if err := h.messageService.Delete(r.Context(), pc, chi.URLParam(r, "message_id")); err != nil {
		respondServiceError(w, r, err, "Failed to delete message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// React handles POST /api/v1/channel/messages/{message_id}/reactions
func (h *ChannelHandler) React(w http.ResponseWriter, r *http.Request) {
	pc, ok := pairContext(w, r, h.pairService)
	if !ok {
		return
	}
	var req services.ReactRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reactions, err := h.messageService.React(r.Context(), pc, chi.URLParam(r, "message_id"), req.Emoji)
	if err != nil {
		respondServiceError(w, r, err, "Failed to react")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"reactions": reactions})
}

// MarkRead handles POST /api/v1/channel/read
func (h *ChannelHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	pc, ok := pairContext(w, r, h.pairService)
	if !ok {
		return
	}

	ids, err := h.messageService.Observe(r.Context(), pc)
	if err != nil {
		respondServiceError(w, r, err, "Failed to mark messages read")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"read": ids})
}
