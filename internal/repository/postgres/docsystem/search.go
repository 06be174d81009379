package docsystem

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"kbase/internal/config"
	"kbase/internal/domain"
	models "kbase/internal/domain/models/docsystem"
	docsysRepo "kbase/internal/domain/repositories/docsystem"
	"kbase/internal/repository/postgres"
)

// ts_headline default StartSel/StopSel. Text between them comes back unescaped.
var headlineMarkup = models.HighlightMarkup{Open: "<b>", Close: "</b>"}

// PostgresSearchRepository runs ranked full-text search over the stored
// content_vector and ILIKE substring matching over title and content.
type PostgresSearchRepository struct {
	pool     *pgxpool.Pool
	tables   *postgres.TableNames
	headline config.HeadlineSettings
	logger   *slog.Logger
}

// NewSearchRepository creates a search repository
func NewSearchRepository(cfg *postgres.RepositoryConfig, headline config.HeadlineSettings) *PostgresSearchRepository {
	return &PostgresSearchRepository{
		pool:     cfg.Pool,
		tables:   cfg.Tables,
		headline: headline,
		logger:   cfg.Logger,
	}
}

var (
	_ docsysRepo.RankedSearcher    = (*PostgresSearchRepository)(nil)
	_ docsysRepo.SubstringSearcher = (*PostgresSearchRepository)(nil)
)

// Markup implements docsysRepo.RankedSearcher
func (r *PostgresSearchRepository) Markup() models.HighlightMarkup {
	return headlineMarkup
}

// RankedSearch matches plainto_tsquery against content_vector, ordered by ts_rank.
// Any failure is reported as ErrSearchUnavailable so the caller can fall back.
func (r *PostgresSearchRepository) RankedSearch(ctx context.Context, opts *models.SearchOptions) (*models.HitPage, error) {
	query := fmt.Sprintf(`
		SELECT %[1]s,
		       ts_headline($1::regconfig, coalesce(content, ''), plainto_tsquery($1::regconfig, $2), $3) AS snippet,
		       ts_rank(content_vector, plainto_tsquery($1::regconfig, $2))::float8 AS rank
		FROM %[2]s
		WHERE kind = 'document'
		  AND content_vector @@ plainto_tsquery($1::regconfig, $2)
		ORDER BY rank DESC, updated_at DESC, id
		LIMIT $4 OFFSET $5
	`, nodeColumns, r.tables.Nodes)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, opts.Language, opts.Query, r.headline.Options(), opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: full-text query: %v", domain.ErrSearchUnavailable, err)
	}
	defer rows.Close()

	var hits []models.RankedHit
	for rows.Next() {
		var hit models.RankedHit
		var kind string
		err := rows.Scan(
			&hit.Node.ID,
			&hit.Node.Title,
			&hit.Node.Content,
			&kind,
			&hit.Node.ParentID,
			&hit.Node.Path,
			&hit.Node.Position,
			&hit.Node.CreatedBy,
			&hit.Node.CreatedAt,
			&hit.Node.UpdatedAt,
			&hit.Snippet,
			&hit.Rank,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scan search result: %v", domain.ErrSearchUnavailable, err)
		}
		hit.Node.Kind = models.NodeKind(kind)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate search results: %v", domain.ErrSearchUnavailable, err)
	}

	countQuery := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s
		WHERE kind = 'document'
		  AND content_vector @@ plainto_tsquery($1::regconfig, $2)
	`, r.tables.Nodes)

	var total int
	if err := executor.QueryRow(ctx, countQuery, opts.Language, opts.Query).Scan(&total); err != nil {
		return nil, fmt.Errorf("%w: count matches: %v", domain.ErrSearchUnavailable, err)
	}

	r.logger.Debug("ranked search",
		"query", opts.Query,
		"language", opts.Language,
		"hits", len(hits),
		"total", total,
	)

	return &models.HitPage{Hits: hits, TotalCount: total}, nil
}

// SubstringSearch matches the query case-insensitively as a literal substring.
// Snippets are left empty; the service windows them around the first occurrence.
func (r *PostgresSearchRepository) SubstringSearch(ctx context.Context, opts *models.SearchOptions) (*models.HitPage, error) {
	pattern := "%" + EscapeLike(opts.Query) + "%"

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE kind = 'document'
		  AND (title ILIKE $1 ESCAPE '\' OR content ILIKE $1 ESCAPE '\')
		ORDER BY updated_at DESC, id
		LIMIT $2 OFFSET $3
	`, nodeColumns, r.tables.Nodes)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, pattern, opts.Limit, opts.Offset)
	if err != nil {
		return nil, postgres.WrapError("substring search", err)
	}
	defer rows.Close()

	var hits []models.RankedHit
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, postgres.WrapError("scan substring result", err)
		}
		hits = append(hits, models.RankedHit{Node: *node})
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.WrapError("iterate substring results", err)
	}

	countQuery := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s
		WHERE kind = 'document'
		  AND (title ILIKE $1 ESCAPE '\' OR content ILIKE $1 ESCAPE '\')
	`, r.tables.Nodes)

	var total int
	if err := executor.QueryRow(ctx, countQuery, pattern).Scan(&total); err != nil {
		return nil, postgres.WrapError("count substring matches", err)
	}

	return &models.HitPage{Hits: hits, TotalCount: total}, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike makes s match literally inside a LIKE pattern with ESCAPE '\'
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// NoopIndexer satisfies SearchIndexer when the store itself maintains the index.
// content_vector is a generated column, so Postgres needs no separate sync.
type NoopIndexer struct{}

// Index implements docsysRepo.SearchIndexer
func (NoopIndexer) Index(context.Context, *models.Node) error { return nil }

// Remove implements docsysRepo.SearchIndexer
func (NoopIndexer) Remove(context.Context, string) error { return nil }
