package httputil

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	userIDKey    contextKey = "userID"
	requestIDKey contextKey = "requestID"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds client-supplied ids before they reach the logs
const maxRequestIDLength = 128

// WithUserID attributes the request to an authenticated user
func WithUserID(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), userIDKey, userID)
	return r.WithContext(ctx)
}

// GetUserID returns the attributed user, or "" when the request is anonymous
func GetUserID(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}

// WithRequestID tags the request with id. An empty or oversized id is
// replaced by a fresh UUID. The id actually stored is returned.
func WithRequestID(r *http.Request, id string) (*http.Request, string) {
	if id == "" || len(id) > maxRequestIDLength {
		id = uuid.NewString()
	}
	ctx := context.WithValue(r.Context(), requestIDKey, id)
	return r.WithContext(ctx), id
}

// GetRequestID returns the id set by WithRequestID, or ""
func GetRequestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}
