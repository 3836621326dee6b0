package handlers

import (
	"net/http"

	"lovechat-backend/internal/middleware"
	"lovechat-backend/internal/services"
)

// NotificationHandler serves the notification inbox
type NotificationHandler struct {
	notificationService *services.NotificationService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.notificationService.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "Failed to list notifications")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"notifications": items})
}

// MarkAllRead handles POST /api/v1/notifications/read
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notificationService.MarkAllRead(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "Failed to mark notifications read")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
