package docsystem

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"kbase/internal/config"
	"kbase/internal/domain"
	models "kbase/internal/domain/models/docsystem"
	docsysRepo "kbase/internal/domain/repositories/docsystem"
	"kbase/internal/domain/services"
	docsysSvc "kbase/internal/domain/services/docsystem"
)

type searchService struct {
	ranked      docsysRepo.RankedSearcher
	substring   docsysRepo.SubstringSearcher
	guard       *HierarchyGuard
	highlighter *Highlighter
	settings    *config.SearchSettings
	notifier    services.Notifier
	logger      *slog.Logger
}

// NewSearchService creates a new search service
func NewSearchService(
	ranked docsysRepo.RankedSearcher,
	substring docsysRepo.SubstringSearcher,
	guard *HierarchyGuard,
	settings *config.SearchSettings,
	notifier services.Notifier,
	logger *slog.Logger,
) docsysSvc.SearchService {
	return &searchService{
		ranked:      ranked,
		substring:   substring,
		guard:       guard,
		highlighter: NewHighlighter(settings),
		settings:    settings,
		notifier:    notifier,
		logger:      logger,
	}
}

// Search runs the ranked engine and drops to substring matching if it fails.
// In fallback mode every result carries the same rank and results are newest first.
func (s *searchService) Search(ctx context.Context, req *docsysSvc.SearchRequest) (*models.SearchResults, error) {
	if err := s.validateSearchRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	opts := &models.SearchOptions{
		Query:    SanitizeQuery(req.Query),
		Limit:    req.Limit,
		Offset:   req.Offset,
		Language: s.settings.Language,
	}
	opts.ApplyDefaults()

	// Nothing searchable survived sanitization
	if opts.Query == "" {
		results := models.NewSearchResults(nil, 0, opts, models.SearchModeRanked)
		results.Query = req.Query
		return results, nil
	}

	mode := models.SearchModeRanked
	page, err := s.ranked.RankedSearch(ctx, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.notifier.Warn(ctx, "ranked search unavailable, falling back to substring search",
			"query", opts.Query,
			"error", err,
		)
		mode = models.SearchModeFallback
		page, err = s.substring.SubstringSearch(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: substring search: %v", domain.ErrPersistence, err)
		}
	}

	results := make([]models.SearchResult, 0, len(page.Hits))
	for _, hit := range page.Hits {
		results = append(results, s.buildResult(ctx, hit, opts.Query, mode))
	}

	out := models.NewSearchResults(results, page.TotalCount, opts, mode)
	out.Query = req.Query

	s.logger.Debug("search completed",
		"query", opts.Query,
		"mode", mode,
		"results", len(results),
		"total", page.TotalCount,
	)

	return out, nil
}

func (s *searchService) buildResult(ctx context.Context, hit models.RankedHit, query string, mode models.SearchMode) models.SearchResult {
	content := hit.Node.ContentString()

	result := models.SearchResult{
		ID:      hit.Node.ID,
		Title:   hit.Node.Title,
		Content: content,
		Rank:    hit.Rank,
		Path:    s.breadcrumb(ctx, &hit.Node),
	}

	if mode == models.SearchModeFallback {
		result.Rank = s.settings.Fallback.Rank
		result.Snippet = s.highlighter.HighlightText(s.highlighter.FallbackSnippet(content, query), query)
		return result
	}

	result.Snippet = s.highlighter.OptimalSnippet(hit.Snippet, s.ranked.Markup(), content, query)
	return result
}

// breadcrumb joins ancestor titles with " > ". A failed lookup degrades to the
// node's own title rather than failing the search.
func (s *searchService) breadcrumb(ctx context.Context, node *models.Node) string {
	chain, err := s.guard.AncestorChain(ctx, node.ID)
	if err != nil {
		s.logger.Warn("failed to build search breadcrumb", "id", node.ID, "error", err)
		return node.Title
	}
	return joinTitles(chain, " > ")
}

// validateSearchRequest validates a search request
func (s *searchService) validateSearchRequest(req *docsysSvc.SearchRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Query,
			validation.Required,
			validation.By(func(value interface{}) error {
				if strings.TrimSpace(value.(string)) == "" {
					return fmt.Errorf("cannot be blank")
				}
				return nil
			}),
		),
		validation.Field(&req.Limit, validation.Min(1), validation.Max(models.MaxSearchLimit)),
		validation.Field(&req.Offset, validation.Min(0)),
	)
}
