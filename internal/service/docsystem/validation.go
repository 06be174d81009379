package docsystem

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"kbase/internal/config"
	"kbase/internal/domain"
	models "kbase/internal/domain/models/docsystem"
	docsysRepo "kbase/internal/domain/repositories/docsystem"
)

// HierarchyGuard holds the structural checks shared by every mutation that
// places a node under a parent (create, update, move).
type HierarchyGuard struct {
	nodeRepo docsysRepo.NodeRepository
}

// NewHierarchyGuard creates a new hierarchy guard
func NewHierarchyGuard(nodeRepo docsysRepo.NodeRepository) *HierarchyGuard {
	return &HierarchyGuard{nodeRepo: nodeRepo}
}

// ResolveParent loads the folder a node is about to be placed under.
// Returns nil for the root. A missing parent yields *domain.NotFoundError,
// a non-folder parent a *domain.ValidationError.
func (g *HierarchyGuard) ResolveParent(ctx context.Context, parentID *string) (*models.Node, error) {
	if parentID == nil {
		return nil, nil
	}
	parent, err := g.nodeRepo.GetByID(ctx, *parentID)
	if err != nil {
		return nil, err
	}
	if !parent.IsFolder() {
		return nil, domain.NewValidationError("parent must be a folder", parent.ID)
	}
	return parent, nil
}

// ValidatePlacement checks that nodeID may live under parentID and returns the parent.
// nodeID is empty for nodes that don't exist yet.
func (g *HierarchyGuard) ValidatePlacement(ctx context.Context, nodeID string, parentID *string) (*models.Node, error) {
	if parentID != nil && *parentID == nodeID {
		return nil, domain.NewValidationError("cannot move node to be its own parent", nodeID)
	}

	parent, err := g.ResolveParent(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil || nodeID == "" {
		return parent, nil
	}

	cycle, err := g.WouldCreateCycle(ctx, nodeID, parent.ID)
	if err != nil {
		return nil, err
	}
	if cycle {
		return nil, domain.NewValidationError("cannot move node under its own descendant", nodeID, parent.ID)
	}
	return parent, nil
}

// WouldCreateCycle walks up from candidateParentID and reports whether nodeID is on the way.
// A chain that revisits an id counts as a cycle; a missing parent ends the walk.
func (g *HierarchyGuard) WouldCreateCycle(ctx context.Context, nodeID, candidateParentID string) (bool, error) {
	if nodeID == candidateParentID {
		return true, nil
	}

	visited := make(map[string]struct{})
	currentID := candidateParentID
	for {
		if currentID == nodeID {
			return true, nil
		}
		if _, seen := visited[currentID]; seen {
			return true, nil
		}
		visited[currentID] = struct{}{}

		current, err := g.nodeRepo.GetByID(ctx, currentID)
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if current.ParentID == nil {
			return false, nil
		}
		currentID = *current.ParentID
	}
}

// AncestorChain returns the nodes from the root down to id.
// The walk stops quietly at a dangling parent reference or a revisited id.
func (g *HierarchyGuard) AncestorChain(ctx context.Context, id string) ([]models.Node, error) {
	node, err := g.nodeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	chain := []models.Node{*node}
	visited := map[string]struct{}{node.ID: {}}
	for current := node; current.ParentID != nil && len(chain) < config.MaxTreeDepth; {
		parentID := *current.ParentID
		if _, seen := visited[parentID]; seen {
			break
		}
		visited[parentID] = struct{}{}

		parent, err := g.nodeRepo.GetByID(ctx, parentID)
		if errors.Is(err, domain.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		chain = append(chain, *parent)
		current = parent
	}

	// Collected node→root; flip to root→node
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// isUUID is an ozzo rule body for node identifiers
func isUUID(value interface{}) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case *string:
		if v == nil {
			return nil
		}
		s = *v
	default:
		return fmt.Errorf("must be a string")
	}
	if s == "" {
		return nil
	}
	if _, err := uuid.Parse(s); err != nil {
		return fmt.Errorf("must be a valid UUID")
	}
	return nil
}
