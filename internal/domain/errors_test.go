package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		status   int
	}{
		{
			name:     "validation",
			err:      NewValidationError("documents not found", "a", "b"),
			sentinel: ErrValidation,
			status:   http.StatusBadRequest,
		},
		{
			name:     "not found",
			err:      NewNotFoundError("node", "x"),
			sentinel: ErrNotFound,
			status:   http.StatusNotFound,
		},
		{
			name:     "conflict",
			err:      &ConflictError{Message: "folder has children", ResourceType: "folder", ResourceID: "f"},
			sentinel: ErrConflict,
			status:   http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("wrapped: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false, want true", wrapped, tt.sentinel)
			}

			var httpErr HTTPError
			if !errors.As(wrapped, &httpErr) {
				t.Fatalf("errors.As HTTPError failed for %T", tt.err)
			}
			if httpErr.StatusCode() != tt.status {
				t.Errorf("StatusCode() = %d, want %d", httpErr.StatusCode(), tt.status)
			}
		})
	}
}

func TestValidationErrorMessageIncludesIDs(t *testing.T) {
	err := NewValidationError("documents do not belong to specified parent", "id-1", "id-2")
	want := "documents do not belong to specified parent: id-1, id-2"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	bare := NewValidationError("title is required")
	if bare.Error() != "title is required" {
		t.Errorf("Error() = %q, want %q", bare.Error(), "title is required")
	}
}
