package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// TABLE-DRIVEN TESTS:
// One slice of cases, one loop, one t.Run per case.

func TestErrorsIs(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("collection", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("name", "name is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("membership", "abc123"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unavailable wraps ErrUnavailable",
			err:       Unavailable("listing collections", cause),
			target:    ErrUnavailable,
			wantMatch: true,
		},
		{
			name:      "Unavailable also matches its cause",
			err:       Unavailable("listing collections", cause),
			target:    cause,
			wantMatch: true,
		},
		{
			name:      "Partial matches wrapped kind of its cause",
			err:       Partial("membership kept", NotFound("collection", "c1")),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "fmt wrapping preserves the kind",
			err:       fmt.Errorf("saving movie: %w", Unauthorized("bad token")),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("collection", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "ValidationFailed does NOT match ErrNotFound",
			err:       ValidationFailed("name", "too long"),
			target:    ErrNotFound,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("collection", "abc123"),
			wantMessage: "collection not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("name", "name is required"),
			wantMessage: "name is required",
		},
		{
			name:        "Conflict message includes resource and id",
			err:         Conflict("membership", "abc123"),
			wantMessage: "membership conflict with id abc123",
		},
		{
			name:        "Unavailable includes op and cause",
			err:         Unavailable("getting collection", errors.New("timeout")),
			wantMessage: "getting collection: timeout",
		},
		{
			name:        "Unavailable without cause",
			err:         Unavailable("getting collection", nil),
			wantMessage: "getting collection: store unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{NotFound("collection", "x"), "not_found"},
		{ValidationFailed("name", "x"), "validation_error"},
		{Conflict("collection", "x"), "conflict"},
		{Forbidden("x"), "forbidden"},
		{Unauthorized("x"), "unauthorized"},
		{Unavailable("x", nil), "unavailable"},
		{Partial("x", Unavailable("y", nil)), "partial_failure"},
		{errors.New("boom"), "internal"},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("collectionId", "a collection must be selected")

	if err.Field != "collectionId" {
		t.Errorf("Field = %q, want %q", err.Field, "collectionId")
	}
}
