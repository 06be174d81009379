package handler

import (
	"context"
	"net/http"
	"time"

	"kbase/internal/httputil"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness and database reachability
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a health handler. db may be nil.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthCheck is a simple health check endpoint
// GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{
		"status": "ok",
		"time":   time.Now(),
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = err.Error()
		}
	}

	httputil.RespondJSON(w, status, body)
}
