package handlers

import (
	"net/http"
	"strconv"

	"landrace-threat/internal/errs"
	"landrace-threat/internal/models"
	"landrace-threat/internal/notify"
)

// NotificationHandler handles in-app notification requests
type NotificationHandler struct {
	dispatcher *notify.Dispatcher
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(dispatcher *notify.Dispatcher) *NotificationHandler {
	return &NotificationHandler{
		dispatcher: dispatcher,
	}
}

// ListNotifications lists the caller's notifications, newest first
// @Summary List notifications
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param unread query bool false "Only unread notifications"
// @Success 200 {array} models.Notification
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /notifications [get]
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))

	list, err := h.dispatcher.ListForRecipient(r.Context(), userID, unreadOnly)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}

	respondWithJSON(w, http.StatusOK, list)
}

// MarkRead marks one notification as read
// @Summary Mark notification read
// @Tags Notifications
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 204 "Marked"
// @Failure 403 {object} ErrorResponse "Not the recipient"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, string(errs.KindValidation), ErrMsgInvalidNotificationID)
		return
	}

	if err := h.dispatcher.MarkRead(r.Context(), id, userID); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
