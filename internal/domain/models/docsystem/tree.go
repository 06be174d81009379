package docsystem

import "time"

// TreeNode is a node with its children nested, metadata only (no content)
type TreeNode struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Kind      NodeKind    `json:"type"`
	ParentID  *string     `json:"parent_id"`
	Path      string      `json:"path"`
	Position  int         `json:"position"`
	UpdatedAt time.Time   `json:"updated_at"`
	Expanded  bool        `json:"expanded,omitempty"`
	Children  []*TreeNode `json:"children"`
}

// TreeOptions controls how the tree view is built
type TreeOptions struct {
	RootOnly bool // only root-level nodes, no nesting
	Expand   bool // mark every node expanded
}
