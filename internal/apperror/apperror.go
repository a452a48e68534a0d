// Package apperror defines the error kinds shared by the store drivers, the
// services and the HTTP handlers.
//
// ERROR KINDS:
// Every failure that crosses a package boundary carries one sentinel kind
// (ErrNotFound, ErrUnavailable, ...). Callers branch on the kind with
// errors.Is and never on message text:
//
//	if errors.Is(err, apperror.ErrNotFound) { ... }
//
// An AppError can also carry the underlying cause (a driver error, an HTTP
// failure). Unwrap returns both, so errors.Is matches the kind AND the cause.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("unavailable")
	ErrPartial      = errors.New("partial failure")
)

type AppError struct {
	Err     error  // kind sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying driver or transport error
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned when credentials are missing or wrong.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Unavailable wraps a transport or store failure (network, auth against the
// remote store, quota). op names the failed operation, e.g. "listing collections".
func Unavailable(op string, cause error) *AppError {
	msg := op + ": store unavailable"
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", op, cause)
	}
	return &AppError{
		Err:     ErrUnavailable,
		Message: msg,
		Cause:   cause,
	}
}

// Partial reports a multi-step operation that completed some remote writes and
// could not undo them. The persisted state no longer satisfies its invariants.
func Partial(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrPartial,
		Message: message,
		Cause:   cause,
	}
}

// KindOf returns a short machine-readable name for the error's kind, or
// "internal" when err carries no known kind.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPartial):
		return "partial_failure"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	}
	return "internal"
}
