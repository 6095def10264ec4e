package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"pricewatch/internal/core"
	"pricewatch/internal/log"
	"pricewatch/internal/resolver"
	"pricewatch/internal/services"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrInvalidAccount),
		errors.Is(err, services.ErrInvalidMonth),
		errors.Is(err, services.ErrNoFiles),
		errors.Is(err, errTooManyFiles):
		return http.StatusBadRequest
	case errors.Is(err, resolver.ErrMissingFilename),
		errors.Is(err, resolver.ErrUnsupportedType),
		errors.Is(err, resolver.ErrEmptyFile),
		errors.Is(err, resolver.ErrFileTooLarge),
		errors.Is(err, core.ErrEmptySubject),
		errors.Is(err, core.ErrInvalidTotal):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error response. Server faults are logged with their cause
// and answered with a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		writeError(w, status, err.Error())
		return
	}
	log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Request failed", err,
		log.ComponentHTTP, op, log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()))
	writeError(w, status, "internal error")
}
