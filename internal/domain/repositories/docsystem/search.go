package docsystem

import (
	"context"

	"kbase/internal/domain/models/docsystem"
)

// RankedSearcher runs relevance-ranked full-text queries over documents
type RankedSearcher interface {
	// RankedSearch returns hits ordered by rank descending plus the total match count
	RankedSearch(ctx context.Context, opts *docsystem.SearchOptions) (*docsystem.HitPage, error)

	// Markup reports the tags the engine puts around matches in snippets
	Markup() docsystem.HighlightMarkup
}

// SubstringSearcher runs case-insensitive substring matching over title and content.
// Hits are ordered by updated_at descending.
type SubstringSearcher interface {
	SubstringSearch(ctx context.Context, opts *docsystem.SearchOptions) (*docsystem.HitPage, error)
}

// SearchIndexer keeps an out-of-store ranked index in sync with committed nodes
type SearchIndexer interface {
	Index(ctx context.Context, node *docsystem.Node) error
	Remove(ctx context.Context, id string) error
}
