package docsystem

import (
	"context"

	"kbase/internal/domain/models/docsystem"
)

// StructureService moves nodes between and within sibling groups
type StructureService interface {
	// Move re-parents and/or repositions a node, keeping every affected
	// sibling group contiguous
	Move(ctx context.Context, id string, req *MoveNodeRequest) (*docsystem.Node, error)

	// Reorder assigns positions inside one sibling group and returns the number of ids applied
	Reorder(ctx context.Context, req *ReorderRequest) (int, error)
}

// MoveNodeRequest represents a move.
// An absent ParentID keeps the current parent; a nil Position appends when the
// parent changes and keeps the current slot otherwise.
type MoveNodeRequest struct {
	ParentID OptionalParent
	Position *int
}

// ReorderRequest lists a sibling group's nodes in their desired order
type ReorderRequest struct {
	ParentID *string  `json:"parent_id"`
	NodeIDs  []string `json:"node_ids"`
}
