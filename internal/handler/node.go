package handler

import (
	"log/slog"
	"net/http"

	docsysSvc "kbase/internal/domain/services/docsystem"
	"kbase/internal/httputil"
)

// NodeHandler handles node HTTP requests
type NodeHandler struct {
	store     docsysSvc.TreeStore
	structure docsysSvc.StructureService
	logger    *slog.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(store docsysSvc.TreeStore, structure docsysSvc.StructureService, logger *slog.Logger) *NodeHandler {
	return &NodeHandler{
		store:     store,
		structure: structure,
		logger:    logger,
	}
}

// updateNodeRequest is the PATCH body. parent_id distinguishes absent from null.
type updateNodeRequest struct {
	Title    *string                 `json:"title"`
	Content  *string                 `json:"content"`
	ParentID httputil.OptionalString `json:"parent_id"`
}

// moveNodeRequest is the move body. An absent parent_id keeps the current parent.
type moveNodeRequest struct {
	ParentID httputil.OptionalString `json:"parent_id"`
	Position *int                    `json:"position"`
}

type reorderResponse struct {
	Updated int `json:"updated"`
}

// An empty parent_id string is read as null (root level).
func toOptionalParent(o httputil.OptionalString) docsysSvc.OptionalParent {
	parent := docsysSvc.OptionalParent{Present: o.Present}
	if !o.IsNull() && o.Or("") != "" {
		parent.Value = o.Value
	}
	return parent
}

// CreateNode creates a document or folder
// POST /api/nodes
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req docsysSvc.CreateNodeRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.UserID = httputil.GetUserID(r)

	node, err := h.store.Create(r.Context(), &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, node)
}

// GetNode retrieves a node
// GET /api/nodes/{id}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	node, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, node)
}

// ListChildren lists the children of a folder, or root-level nodes when parent_id is omitted
// GET /api/nodes?parent_id=&recursive=
func (h *NodeHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	recursive, err := httputil.QueryBool(r, "recursive")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	nodes, err := h.store.ListChildren(r.Context(), httputil.QueryOptional(r, "parent_id"), recursive)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, nodes)
}

// UpdateNode renames, edits or re-parents a node
// PATCH /api/nodes/{id}
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var body updateNodeRequest
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	node, err := h.store.Update(r.Context(), r.PathValue("id"), &docsysSvc.UpdateNodeRequest{
		Title:    body.Title,
		Content:  body.Content,
		ParentID: toOptionalParent(body.ParentID),
	})
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, node)
}

// DeleteNode deletes a document or an empty folder
// DELETE /api/nodes/{id}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondNoContent(w)
}

// MoveNode re-parents and/or repositions a node
// POST /api/nodes/{id}/move
func (h *NodeHandler) MoveNode(w http.ResponseWriter, r *http.Request) {
	var body moveNodeRequest
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	node, err := h.structure.Move(r.Context(), r.PathValue("id"), &docsysSvc.MoveNodeRequest{
		ParentID: toOptionalParent(body.ParentID),
		Position: body.Position,
	})
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, node)
}

// Reorder assigns positions inside one sibling group
// POST /api/nodes/reorder
func (h *NodeHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req docsysSvc.ReorderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.structure.Reorder(r.Context(), &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, reorderResponse{Updated: updated})
}

// GetPath returns the breadcrumb from the root down to the node
// GET /api/nodes/{id}/path
func (h *NodeHandler) GetPath(w http.ResponseWriter, r *http.Request) {
	crumb, err := h.store.Breadcrumb(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, crumb)
}
