package docsystem

import (
	"context"

	"kbase/internal/domain/models/docsystem"
)

// TreeService defines operations for building node trees
type TreeService interface {
	// GetTree builds the nested folder/document forest
	GetTree(ctx context.Context, opts docsystem.TreeOptions) ([]*docsystem.TreeNode, error)
}
