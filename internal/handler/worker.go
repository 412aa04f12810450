package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// WorkerStatus reports whether the queue consumer loop is active.
type WorkerStatus interface {
	Running() bool
}

// WorkerHandler exposes the queue consumer's running flag.
type WorkerHandler struct {
	status WorkerStatus
}

// NewWorkerHandler creates a new WorkerHandler
func NewWorkerHandler(status WorkerStatus) *WorkerHandler {
	return &WorkerHandler{status: status}
}

// RegisterRoutes registers worker routes
func (h *WorkerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/queue/status", h.QueueStatus)
}

// QueueStatus reports the consumer state as a plain-text body.
func (h *WorkerHandler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	body := "Queue worker stopped"
	if h.status.Running() {
		body = "Queue worker is running"
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}
