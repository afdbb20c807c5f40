package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fabworks/lasercut/internal/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Errors []ValidationError `json:"errors,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, message string, statusCode int, validationErrors []ValidationError) {
	respondJSON(w, statusCode, ErrorResponse{
		Error:  message,
		Errors: validationErrors,
	})
}

// respondDomainError maps the error kinds to HTTP statuses. Upstream failures
// keep the underlying message so an environment problem is never silently
// rewritten.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		respondError(w, err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, domain.ErrUnauthorized):
		respondError(w, err.Error(), http.StatusForbidden, nil)
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, err.Error(), http.StatusNotFound, nil)
	case errors.Is(err, domain.ErrIllegalTransition), errors.Is(err, domain.ErrStatusConflict):
		respondError(w, err.Error(), http.StatusConflict, nil)
	default:
		respondError(w, err.Error(), http.StatusBadGateway, nil)
	}
}
