package docsystem

import (
	"context"
	"log/slog"
	"sort"

	models "kbase/internal/domain/models/docsystem"
	docsysRepo "kbase/internal/domain/repositories/docsystem"
	docsysSvc "kbase/internal/domain/services/docsystem"
)

// treeService implements the TreeService interface
type treeService struct {
	nodeRepo docsysRepo.NodeRepository
	logger   *slog.Logger
}

// NewTreeService creates a new tree service
func NewTreeService(nodeRepo docsysRepo.NodeRepository, logger *slog.Logger) docsysSvc.TreeService {
	return &treeService{
		nodeRepo: nodeRepo,
		logger:   logger,
	}
}

// GetTree builds the nested forest, every level ordered by position
func (s *treeService) GetTree(ctx context.Context, opts models.TreeOptions) ([]*models.TreeNode, error) {
	var nodes []models.Node
	var err error
	if opts.RootOnly {
		nodes, err = s.nodeRepo.ListChildren(ctx, nil)
	} else {
		nodes, err = s.nodeRepo.ListAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	// First pass: create all tree nodes
	byID := make(map[string]*models.TreeNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = &models.TreeNode{
			ID:        n.ID,
			Title:     n.Title,
			Kind:      n.Kind,
			ParentID:  n.ParentID,
			Path:      n.Path,
			Position:  n.Position,
			UpdatedAt: n.UpdatedAt,
			Children:  []*models.TreeNode{},
		}
	}

	// Second pass: attach children to parents. Nodes whose parent is not in
	// the set (root level, or dangling) become roots.
	roots := make([]*models.TreeNode, 0)
	for _, n := range nodes {
		node := byID[n.ID]
		if n.ParentID != nil {
			if parent, ok := byID[*n.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	// Third pass: order every level and apply expansion
	sortTree(roots, opts.Expand)

	s.logger.Debug("tree built",
		"node_count", len(nodes),
		"root_count", len(roots),
		"root_only", opts.RootOnly,
	)

	return roots, nil
}

func sortTree(level []*models.TreeNode, expand bool) {
	sort.SliceStable(level, func(i, j int) bool { return level[i].Position < level[j].Position })
	for _, n := range level {
		n.Expanded = expand
		sortTree(n.Children, expand)
	}
}
