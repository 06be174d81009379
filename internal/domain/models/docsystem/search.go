package docsystem

// SearchMode records which path produced a result page
type SearchMode string

const (
	// SearchModeRanked means the ranked full-text engine answered the query
	SearchModeRanked SearchMode = "ranked"

	// SearchModeFallback means the ranked engine failed and substring matching was used.
	// Ranks are uniform and ordering is by recency.
	SearchModeFallback SearchMode = "fallback"
)

// Default search configuration values
const (
	DefaultSearchLimit    = 20
	MaxSearchLimit        = 100
	DefaultSearchLanguage = "english"
)

// SearchOptions is what the persistence layer receives after validation and sanitization
type SearchOptions struct {
	// Query is the sanitized search string
	Query string

	// Pagination
	Limit  int
	Offset int

	// Language is the text search configuration used for stemming (e.g. "english")
	Language string
}

// ApplyDefaults fills in default values for unset fields
func (opts *SearchOptions) ApplyDefaults() {
	if opts.Limit == 0 {
		opts.Limit = DefaultSearchLimit
	}
	if opts.Language == "" {
		opts.Language = DefaultSearchLanguage
	}
}

// HighlightMarkup is the pair of tags an engine wraps around matched terms
type HighlightMarkup struct {
	Open  string
	Close string

	// Escaped is set when the engine HTML-escapes the text between its tags
	Escaped bool
}

// RankedHit is a single document returned by a search engine, before breadcrumbs
// and highlighting are applied.
type RankedHit struct {
	Node Node

	// Snippet is the engine-produced excerpt. It may already carry engine markup.
	Snippet string

	// Rank is the relevance score (higher = better match)
	Rank float64
}

// HitPage is one page of hits plus the total match count independent of limit/offset
type HitPage struct {
	Hits       []RankedHit
	TotalCount int
}

// SearchResult is a single search result as returned to callers
type SearchResult struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Snippet string  `json:"snippet"`
	Rank    float64 `json:"rank"`
	Path    string  `json:"path"` // Ancestor titles joined with " > "
}

// SearchResults contains the full search response with pagination metadata
type SearchResults struct {
	Results []SearchResult `json:"results"`

	// TotalCount is the total number of matches (regardless of limit/offset)
	TotalCount int `json:"total"`

	// HasMore indicates if there are more results beyond this page
	HasMore bool `json:"has_more"`

	Offset int        `json:"offset"`
	Limit  int        `json:"limit"`
	Query  string     `json:"query"`
	Mode   SearchMode `json:"mode"`
}

// NewSearchResults creates a SearchResults with calculated HasMore flag
func NewSearchResults(results []SearchResult, totalCount int, opts *SearchOptions, mode SearchMode) *SearchResults {
	if results == nil {
		results = []SearchResult{}
	}
	return &SearchResults{
		Results:    results,
		TotalCount: totalCount,
		HasMore:    (opts.Offset + len(results)) < totalCount,
		Offset:     opts.Offset,
		Limit:      opts.Limit,
		Mode:       mode,
	}
}
