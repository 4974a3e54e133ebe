package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"devdash/internal/config"
	"devdash/internal/models"
	"devdash/internal/ports"
	"devdash/internal/service"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type SuccessResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Process *models.Process `json:"process,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("encode json response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   err.Error(),
		Message: message,
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrProcessNotFound), errors.Is(err, config.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyRunning),
		errors.Is(err, service.ErrNotRunning),
		errors.Is(err, service.ErrPortUnavailable):
		return http.StatusConflict
	case errors.Is(err, ports.ErrNoAvailablePort), errors.Is(err, service.ErrSupervisorShutdown):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrInvalidCommand):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024))
	return dec.Decode(v)
}
