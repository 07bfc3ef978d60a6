// Package respond writes JSON responses and maps domain errors to HTTP status codes.
package respond

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kilianp07/ambudispatch/core/model"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidRequest), errors.Is(err, model.ErrInvalidCoordinate):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnknownRequest):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrNoLocationResolved):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err using Status. Validation errors carry their field map.
func Error(w http.ResponseWriter, err error) {
	body := ErrorBody{Error: err.Error()}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		body.Fields = ve.Fields
	}
	JSON(w, Status(err), body)
}

// BadRequest writes a 400 with msg.
func BadRequest(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, ErrorBody{Error: msg})
}
