package docsystem

import (
	"context"

	"kbase/internal/domain/models/docsystem"
)

// TreeStore owns node lifecycle and hierarchy queries
type TreeStore interface {
	// Create inserts a node at the end of its sibling group
	Create(ctx context.Context, req *CreateNodeRequest) (*docsystem.Node, error)

	// Get retrieves a node by ID
	Get(ctx context.Context, id string) (*docsystem.Node, error)

	// Update changes title and/or content; a parent change is handed to the structure engine
	Update(ctx context.Context, id string, req *UpdateNodeRequest) (*docsystem.Node, error)

	// Delete removes a document or an empty folder
	Delete(ctx context.Context, id string) error

	// ListChildren lists children of parentID (nil = root).
	// When recursive, the whole subtree is returned depth-first in position order.
	ListChildren(ctx context.Context, parentID *string, recursive bool) ([]docsystem.Node, error)

	// AncestorChain returns the nodes from the root down to id, inclusive
	AncestorChain(ctx context.Context, id string) ([]docsystem.Node, error)

	// WouldCreateCycle reports whether placing nodeID under candidateParentID would form a loop
	WouldCreateCycle(ctx context.Context, nodeID, candidateParentID string) (bool, error)

	// Breadcrumb returns the ancestor chain and its titles joined for display
	Breadcrumb(ctx context.Context, id string) (*docsystem.Breadcrumb, error)
}

// OptionalParent tracks tri-state semantics for parent updates (RFC 7396 PATCH).
// Transport-agnostic - handlers map from httputil.OptionalString.
//   - Present=false: field absent (don't change)
//   - Present=true, Value=nil: move to root
//   - Present=true, Value=&id: move under id
type OptionalParent struct {
	Present bool
	Value   *string
}

// CreateNodeRequest represents a node creation request
type CreateNodeRequest struct {
	UserID   string             `json:"-"` // Set by handler from auth context
	Title    string             `json:"title"`
	Content  *string            `json:"content,omitempty"` // Documents only
	Kind     docsystem.NodeKind `json:"type"`
	ParentID *string            `json:"parent_id,omitempty"` // nil = root level
}

// UpdateNodeRequest represents a partial node update
type UpdateNodeRequest struct {
	Title    *string
	Content  *string
	ParentID OptionalParent
}

// Empty reports whether the request changes nothing
func (r *UpdateNodeRequest) Empty() bool {
	return r.Title == nil && r.Content == nil && !r.ParentID.Present
}
