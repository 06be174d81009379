package docsystem

import (
	"context"

	"kbase/internal/domain/models/docsystem"
)

// SearchService runs document searches
type SearchService interface {
	// Search returns ranked results, falling back to substring matching when
	// the ranked engine is unavailable
	Search(ctx context.Context, req *SearchRequest) (*docsystem.SearchResults, error)
}

// SearchRequest represents a search request
type SearchRequest struct {
	Query  string `json:"query"`            // Raw user input (required)
	Limit  int    `json:"limit,omitempty"`  // Results per page (default: 20, max: 100)
	Offset int    `json:"offset,omitempty"` // Skip N results (default: 0)
}
