package handler

import (
	"log/slog"
	"net/http"

	"kbase/internal/domain/models/docsystem"
	docsysSvc "kbase/internal/domain/services/docsystem"
	"kbase/internal/httputil"
)

// TreeHandler handles HTTP requests for tree operations
type TreeHandler struct {
	treeService docsysSvc.TreeService
	logger      *slog.Logger
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(treeService docsysSvc.TreeService, logger *slog.Logger) *TreeHandler {
	return &TreeHandler{
		treeService: treeService,
		logger:      logger,
	}
}

// GetTree returns the nested folder/document tree
// GET /api/nodes/tree?root_only=&expand=
func (h *TreeHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	rootOnly, err := httputil.QueryBool(r, "root_only")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	expand, err := httputil.QueryBool(r, "expand")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	tree, err := h.treeService.GetTree(r.Context(), docsystem.TreeOptions{RootOnly: rootOnly, Expand: expand})
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, tree)
}
