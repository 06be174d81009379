package docsystem

import (
	"context"

	"kbase/internal/domain/models/docsystem"
)

// PositionRange selects sibling positions; nil bounds are open. Both bounds are inclusive.
type PositionRange struct {
	Min *int
	Max *int
}

// Contains reports whether pos falls inside the range
func (r PositionRange) Contains(pos int) bool {
	if r.Min != nil && pos < *r.Min {
		return false
	}
	if r.Max != nil && pos > *r.Max {
		return false
	}
	return true
}

// TreeLock selects how a transaction holds the tree-wide structure lock
type TreeLock int

const (
	// TreeShared admits any number of edits confined to their own sibling groups
	TreeShared TreeLock = iota
	// TreeExclusive is required by edits that change ancestry or rewrite subtree paths
	TreeExclusive
)

// NodeRepository defines data access operations for nodes.
// Every method participates in the transaction carried by ctx, if any.
type NodeRepository interface {
	// Create inserts a node; ID and timestamps must already be set
	Create(ctx context.Context, node *docsystem.Node) error

	// GetByID retrieves a node by ID
	GetByID(ctx context.Context, id string) (*docsystem.Node, error)

	// GetByIDs retrieves the nodes that exist among ids, keyed by id
	GetByIDs(ctx context.Context, ids []string) (map[string]*docsystem.Node, error)

	// ListChildren lists direct children of parentID (nil = root) ordered by position
	ListChildren(ctx context.Context, parentID *string) ([]docsystem.Node, error)

	// CountChildren counts direct children of parentID (nil = root)
	CountChildren(ctx context.Context, parentID *string) (int, error)

	// ListDescendants returns every node below id, in no particular order
	ListDescendants(ctx context.Context, id string) ([]docsystem.Node, error)

	// ListAll returns every node ordered by path then position
	ListAll(ctx context.Context) ([]docsystem.Node, error)

	// Update writes title, content, parent, path, position and updated_at
	Update(ctx context.Context, node *docsystem.Node) error

	// UpdateDetails writes title, content, path and updated_at only.
	// Parent and position stay whatever the sibling-group owners left them.
	UpdateDetails(ctx context.Context, node *docsystem.Node) error

	// UpdatePaths rewrites the path of each node id in paths
	UpdatePaths(ctx context.Context, paths map[string]string) error

	// ShiftPositions adds delta to the position of every child of parentID within rng
	ShiftPositions(ctx context.Context, parentID *string, rng PositionRange, delta int) error

	// SetPositions assigns position = index for each id in order
	SetPositions(ctx context.Context, orderedIDs []string) error

	// Delete removes a node
	Delete(ctx context.Context, id string) error

	// LockSiblingGroups serializes structural mutations of the given sibling groups
	// until the surrounding transaction ends. nil stands for the root group.
	LockSiblingGroups(ctx context.Context, parentIDs ...*string) error

	// LockTree takes the tree-wide structure lock for the surrounding transaction.
	// It must precede LockSiblingGroups in the same transaction.
	LockTree(ctx context.Context, mode TreeLock) error
}
