package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"kbase/internal/domain"
	"kbase/internal/httputil"
)

// handleError converts domain errors to RFC 7807 responses.
// Validation errors naming specific nodes carry them in an "ids" field.
func handleError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		validationErr *domain.ValidationError
		conflictErr   *domain.ConflictError
	)

	switch {
	case errors.As(err, &validationErr) && len(validationErr.IDs) > 0:
		httputil.RespondErrorWithExtras(w, http.StatusBadRequest, validationErr.Error(),
			map[string]interface{}{"ids": validationErr.IDs})
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &conflictErr):
		extras := map[string]interface{}{}
		if conflictErr.ResourceID != "" {
			extras["resource_id"] = conflictErr.ResourceID
		}
		if conflictErr.ResourceType != "" {
			extras["resource_type"] = conflictErr.ResourceType
		}
		httputil.RespondErrorWithExtras(w, http.StatusConflict, conflictErr.Error(), extras)
	case errors.Is(err, domain.ErrConflict):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to write
	default:
		logger.Error("request failed", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
