package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dispatchd/notification-dispatcher/internal/domain"
	"github.com/dispatchd/notification-dispatcher/internal/service"
)

// NotificationHandler handles notification HTTP requests
type NotificationHandler struct {
	service  *service.IngestService
	validate *validator.Validate
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(service *service.IngestService) *NotificationHandler {
	return &NotificationHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers notification routes
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/send", h.Send)
	r.Get("/{id}", h.GetByID)
}

// Send accepts a notification request, persists it and queues it for
// delivery. The response acknowledges queueing only; delivery outcome
// is read back from the notification row.
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req service.SendRequest
	if err := DecodeJSON(r, &req); err != nil {
		HandleError(w, err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		JSONMessages(w, http.StatusInternalServerError, "Invalid data field: "+err.Error())
		return
	}

	resp, err := h.service.Send(r.Context(), req)
	if err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, resp)
}

// GetByID returns a notification row, including its delivery status.
func (h *NotificationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		HandleError(w, domain.NewValidationError("id", "must be a valid UUID"))
		return
	}

	notification, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, notification)
}
