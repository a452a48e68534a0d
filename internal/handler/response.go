package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON / writeError, so all endpoints
// share one error shape:
//
//	{"error": "not_found", "message": "collection not found with id abc123"}
//
// "error" is the machine-readable kind (apperror.KindOf), "message" is for
// humans.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/movieshelf/internal/apperror"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the error body of every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// writeJSON sends data as JSON. Headers and status go out before the body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps an error kind to its HTTP status.
//
//	validation_error → 400    unauthorized → 401    forbidden → 403
//	not_found        → 404    conflict     → 409
//	unavailable, partial_failure → 502 (the store or catalog upstream failed)
func statusFor(kind string) int {
	switch kind {
	case "validation_error":
		return http.StatusBadRequest
	case "unauthorized":
		return http.StatusUnauthorized
	case "forbidden":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "conflict":
		return http.StatusConflict
	case "unavailable", "partial_failure":
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError maps a domain error to its HTTP status and error body.
//
// Errors without an AppError in their chain are answered with a generic 500;
// their text may hold driver or file-system details and is only logged.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		slog.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	kind := apperror.KindOf(err)
	writeJSON(w, statusFor(kind), ErrorResponse{
		Error:   kind,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}

// decodeJSON reads a JSON body into v. Malformed input becomes a validation
// error so writeError answers 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("body", "request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed("body", fmt.Sprintf("request body must be %d bytes or less", maxBodyBytes))
		}
		return apperror.ValidationFailed("body", "invalid JSON body: "+err.Error())
	}
	return nil
}

// HandleHealth reports liveness.
//
// HTTP: GET /healthz
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
