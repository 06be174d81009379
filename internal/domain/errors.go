package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSearchUnavailable marks a failure of the ranked search engine.
	// The search service recovers from it by switching to substring search.
	ErrSearchUnavailable = errors.New("search engine unavailable")

	// ErrPersistence wraps storage and transaction failures.
	ErrPersistence = errors.New("persistence failure")
)

type (
	// NotFoundError indicates a referenced resource was not found
	NotFoundError struct {
		ResourceType string
		ResourceID   string
	}

	// ValidationError indicates invalid input. IDs lists the offending
	// resource ids when the failure is about specific nodes.
	ValidationError struct {
		Message string
		IDs     []string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}
)

// NewValidationError builds a ValidationError for the given ids.
func NewValidationError(message string, ids ...string) *ValidationError {
	return &ValidationError{Message: message, IDs: ids}
}

// NewNotFoundError builds a NotFoundError for a resource.
func NewNotFoundError(resourceType, id string) *NotFoundError {
	return &NotFoundError{ResourceType: resourceType, ResourceID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s: not found", e.ResourceType, e.ResourceID)
}

func (e *ValidationError) Error() string {
	if len(e.IDs) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.IDs, ", "))
}

func (e *UnauthorizedError) Error() string { return e.Message }

func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }

func (e *NotFoundError) Is(target error) bool     { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool   { return target == ErrValidation }
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }

// ConflictError represents an operation that would violate a structural invariant
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (document, folder)
	ResourceID   string // ID of the offending resource
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return e.Message
}

// StatusCode implements the HTTPError interface
func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
