package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dispatchd/notification-dispatcher/internal/domain"
)

// ErrorResponse is the failure body for the ingestion API. Every
// rejected request carries a human-readable messages field.
type ErrorResponse struct {
	Messages string `json:"messages"`
}

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// JSONMessages writes an error body in the {"messages": ...} shape.
func JSONMessages(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Messages: message})
}

// HandleError maps ingestion errors onto the HTTP surface. The
// contract is a flat one: every failure is a 500 with a messages body,
// with validation errors carrying their field detail.
func HandleError(w http.ResponseWriter, err error) {
	var validationErr domain.ValidationError
	if errors.As(err, &validationErr) {
		JSONMessages(w, http.StatusInternalServerError, "Invalid data field: "+validationErr.Error())
		return
	}

	if errors.Is(err, domain.ErrNotFound) {
		JSONMessages(w, http.StatusNotFound, "resource not found")
		return
	}

	JSONMessages(w, http.StatusInternalServerError, err.Error())
}

// DecodeJSON decodes a JSON request body.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return domain.NewValidationError("body", "request body is required")
	}

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(v); err != nil {
		return domain.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return nil
}
