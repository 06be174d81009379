package docsystem

import (
	"time"
)

// NodeKind distinguishes documents from folders
type NodeKind string

const (
	NodeKindDocument NodeKind = "document"
	NodeKindFolder   NodeKind = "folder"
)

// Valid reports whether k is a known kind
func (k NodeKind) Valid() bool {
	return k == NodeKindDocument || k == NodeKindFolder
}

// Node is a document or folder in the hierarchy.
// Position is zero-based and contiguous within a sibling group (same ParentID).
type Node struct {
	ID        string    `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Content   *string   `json:"content,omitempty" db:"content"` // NULL for folders
	Kind      NodeKind  `json:"type" db:"kind"`
	ParentID  *string   `json:"parent_id" db:"parent_id"` // NULL = root level
	Path      string    `json:"path" db:"path"`           // Slug path mirroring the ancestor chain
	Position  int       `json:"position" db:"position"`
	CreatedBy string    `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsFolder reports whether the node can hold children
func (n *Node) IsFolder() bool {
	return n.Kind == NodeKindFolder
}

// ContentString returns the content or "" when absent
func (n *Node) ContentString() string {
	if n.Content == nil {
		return ""
	}
	return *n.Content
}

// SameParent reports whether two optional parent references point at the same group
func SameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Breadcrumb is the root-to-node chain with its display path
type Breadcrumb struct {
	Chain    []Node `json:"path"`
	FullPath string `json:"full_path"`
}
