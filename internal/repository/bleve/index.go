// Package bleve provides an in-process ranked search engine over documents.
package bleve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	blevesearch "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/highlight/highlighter/html"
	"github.com/blevesearch/bleve/v2/search/query"
	"kbase/internal/domain"
	models "kbase/internal/domain/models/docsystem"
	docsysRepo "kbase/internal/domain/repositories/docsystem"
)

const (
	docType      = "node"
	fieldTitle   = "title"
	fieldContent = "content"
)

// markup is what the html highlighter wraps around matches. Its fragments
// come back HTML-escaped.
var markup = models.HighlightMarkup{Open: "<mark>", Close: "</mark>", Escaped: true}

// NodeSource is the slice of the node store the index reads from
type NodeSource interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.Node, error)
	ListAll(ctx context.Context) ([]models.Node, error)
}

// indexedDoc is the stored form of a document
type indexedDoc struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Index is a bleve-backed RankedSearcher and SearchIndexer.
// Only documents are indexed; folders are never returned.
type Index struct {
	index  blevesearch.Index
	nodes  NodeSource
	logger *slog.Logger
}

var (
	_ docsysRepo.RankedSearcher = (*Index)(nil)
	_ docsysRepo.SearchIndexer  = (*Index)(nil)
)

func newMapping() mapping.IndexMapping {
	im := blevesearch.NewIndexMapping()

	text := blevesearch.NewTextFieldMapping()
	text.Analyzer = en.AnalyzerName

	stamp := blevesearch.NewDateTimeFieldMapping()
	stamp.IncludeInAll = false

	doc := blevesearch.NewDocumentMapping()
	doc.AddFieldMappingsAt(fieldTitle, text)
	doc.AddFieldMappingsAt(fieldContent, text)
	doc.AddFieldMappingsAt("updated_at", stamp)

	im.AddDocumentMapping(docType, doc)
	im.DefaultType = docType
	im.DefaultMapping = doc
	im.DefaultAnalyzer = en.AnalyzerName
	return im
}

// Open opens the index at path, creating it when missing. An empty path keeps
// the index in memory, which suits tests and single-process deployments that
// rebuild at startup.
func Open(path string, nodes NodeSource, logger *slog.Logger) (*Index, error) {
	var (
		idx blevesearch.Index
		err error
	)

	switch {
	case path == "":
		idx, err = blevesearch.NewMemOnly(newMapping())
	default:
		if _, statErr := os.Stat(path); statErr == nil {
			idx, err = blevesearch.Open(path)
		} else {
			idx, err = blevesearch.New(path, newMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}

	return &Index{index: idx, nodes: nodes, logger: logger}, nil
}

// Close closes the underlying index
func (i *Index) Close() error {
	return i.index.Close()
}

// Markup implements docsysRepo.RankedSearcher
func (i *Index) Markup() models.HighlightMarkup {
	return markup
}

// Index implements docsysRepo.SearchIndexer. A folder is removed instead.
func (i *Index) Index(ctx context.Context, node *models.Node) error {
	if node.Kind != models.NodeKindDocument {
		return i.Remove(ctx, node.ID)
	}
	if err := i.index.Index(node.ID, toIndexed(node)); err != nil {
		return fmt.Errorf("%w: index node %s: %v", domain.ErrSearchUnavailable, node.ID, err)
	}
	return nil
}

// Remove implements docsysRepo.SearchIndexer
func (i *Index) Remove(ctx context.Context, id string) error {
	if err := i.index.Delete(id); err != nil {
		return fmt.Errorf("%w: remove node %s: %v", domain.ErrSearchUnavailable, id, err)
	}
	return nil
}

// Rebuild indexes every document in the store in one batch and returns the count.
// Entries for nodes that no longer exist are not pruned; point a fresh path at it for that.
func (i *Index) Rebuild(ctx context.Context) (int, error) {
	nodes, err := i.nodes.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list nodes for index rebuild: %w", err)
	}

	batch := i.index.NewBatch()
	count := 0
	for idx := range nodes {
		node := &nodes[idx]
		if node.Kind != models.NodeKindDocument {
			continue
		}
		if err := batch.Index(node.ID, toIndexed(node)); err != nil {
			return 0, fmt.Errorf("%w: batch node %s: %v", domain.ErrSearchUnavailable, node.ID, err)
		}
		count++
	}

	if err := i.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("%w: apply index batch: %v", domain.ErrSearchUnavailable, err)
	}

	i.logger.Info("search index rebuilt", "documents", count)
	return count, nil
}

// RankedSearch implements docsysRepo.RankedSearcher. Every query term must
// match (after English stemming), like plainto_tsquery.
func (i *Index) RankedSearch(ctx context.Context, opts *models.SearchOptions) (*models.HitPage, error) {
	mq := blevesearch.NewMatchQuery(opts.Query)
	mq.Analyzer = en.AnalyzerName
	mq.SetOperator(query.MatchQueryOperatorAnd)

	req := blevesearch.NewSearchRequestOptions(mq, opts.Limit, opts.Offset, false)
	req.Highlight = blevesearch.NewHighlightWithStyle(html.Name)
	req.Highlight.AddField(fieldContent)

	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchUnavailable, err)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	nodes, err := i.nodes.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve search hits: %w", err)
	}

	hits := make([]models.RankedHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		node, ok := nodes[hit.ID]
		if !ok || node.Kind != models.NodeKindDocument {
			i.logger.Warn("stale search index entry", "id", hit.ID)
			continue
		}

		var snippet string
		if fragments := hit.Fragments[fieldContent]; len(fragments) > 0 {
			snippet = fragments[0]
		}

		hits = append(hits, models.RankedHit{
			Node:    *node,
			Snippet: snippet,
			Rank:    hit.Score,
		})
	}

	return &models.HitPage{Hits: hits, TotalCount: int(res.Total)}, nil
}

func toIndexed(node *models.Node) indexedDoc {
	return indexedDoc{
		Title:     node.Title,
		Content:   node.ContentString(),
		UpdatedAt: node.UpdatedAt,
	}
}
