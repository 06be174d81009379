package docsystem

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"kbase/internal/domain"
	models "kbase/internal/domain/models/docsystem"
	"kbase/internal/domain/repositories"
	docsysRepo "kbase/internal/domain/repositories/docsystem"
	"kbase/internal/repository/postgres"
)

// nodeColumns is the select list shared by every node query
const nodeColumns = `id::text, title, content, kind, parent_id::text, path, position, created_by, created_at, updated_at`

const (
	// rootLockKey names the lock of the root sibling group
	rootLockKey = "root"
	// treeLockKey names the tree-wide structure lock
	treeLockKey = "tree"
)

// PostgresNodeRepository implements docsysRepo.NodeRepository
type PostgresNodeRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewNodeRepository creates a new node repository
func NewNodeRepository(config *postgres.RepositoryConfig) docsysRepo.NodeRepository {
	return &PostgresNodeRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*models.Node, error) {
	var node models.Node
	var kind string
	err := row.Scan(
		&node.ID,
		&node.Title,
		&node.Content,
		&kind,
		&node.ParentID,
		&node.Path,
		&node.Position,
		&node.CreatedBy,
		&node.CreatedAt,
		&node.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	node.Kind = models.NodeKind(kind)
	return &node, nil
}

// parentClause renders the sibling-group predicate starting at placeholder $n
func parentClause(parentID *string, n int) (string, []any) {
	if parentID == nil {
		return "parent_id IS NULL", nil
	}
	return fmt.Sprintf("parent_id = $%d", n), []any{*parentID}
}

func (r *PostgresNodeRepository) queryNodes(ctx context.Context, op, query string, args ...any) ([]models.Node, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, postgres.WrapError(op, err)
	}
	defer rows.Close()

	var nodes []models.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, postgres.WrapError(op, err)
		}
		nodes = append(nodes, *node)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.WrapError(op, err)
	}
	return nodes, nil
}

// Create inserts a node
func (r *PostgresNodeRepository) Create(ctx context.Context, node *models.Node) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, title, content, kind, parent_id, path, position, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.tables.Nodes)

	executor := postgres.GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		node.ID,
		node.Title,
		node.Content,
		string(node.Kind),
		node.ParentID,
		node.Path,
		node.Position,
		node.CreatedBy,
		node.CreatedAt,
		node.UpdatedAt,
	)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("node %s already exists", node.ID),
				ResourceType: string(node.Kind),
				ResourceID:   node.ID,
			}
		}
		if postgres.IsPgForeignKeyError(err) && node.ParentID != nil {
			return domain.NewNotFoundError("folder", *node.ParentID)
		}
		return postgres.WrapError("create node", err)
	}
	return nil
}

// GetByID retrieves a node by ID
func (r *PostgresNodeRepository) GetByID(ctx context.Context, id string) (*models.Node, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, nodeColumns, r.tables.Nodes)

	executor := postgres.GetExecutor(ctx, r.pool)
	node, err := scanNode(executor.QueryRow(ctx, query, id))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, domain.NewNotFoundError("node", id)
		}
		return nil, postgres.WrapError("get node", err)
	}
	return node, nil
}

// GetByIDs retrieves the nodes that exist among ids
func (r *PostgresNodeRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Node, error) {
	out := make(map[string]*models.Node, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ANY($1::uuid[])`, nodeColumns, r.tables.Nodes)
	nodes, err := r.queryNodes(ctx, "get nodes", query, ids)
	if err != nil {
		return nil, err
	}
	for i := range nodes {
		out[nodes[i].ID] = &nodes[i]
	}
	return out, nil
}

// ListChildren lists direct children ordered by position
func (r *PostgresNodeRepository) ListChildren(ctx context.Context, parentID *string) ([]models.Node, error) {
	where, args := parentClause(parentID, 1)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY position, created_at`,
		nodeColumns, r.tables.Nodes, where)
	return r.queryNodes(ctx, "list children", query, args...)
}

// CountChildren counts direct children
func (r *PostgresNodeRepository) CountChildren(ctx context.Context, parentID *string) (int, error) {
	where, args := parentClause(parentID, 1)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, r.tables.Nodes, where)

	var count int
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, postgres.WrapError("count children", err)
	}
	return count, nil
}

// ListDescendants walks the subtree below id. UNION drops revisited rows,
// which terminates the walk on corrupted data containing a loop.
func (r *PostgresNodeRepository) ListDescendants(ctx context.Context, id string) ([]models.Node, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE subtree(id) AS (
			SELECT n.id FROM %[1]s n WHERE n.parent_id = $1
			UNION
			SELECT c.id FROM %[1]s c JOIN subtree s ON c.parent_id = s.id
		)
		SELECT %[2]s FROM %[1]s WHERE id IN (SELECT id FROM subtree) AND id <> $1
	`, r.tables.Nodes, nodeColumns)
	return r.queryNodes(ctx, "list descendants", query, id)
}

// ListAll returns every node ordered by path then position
func (r *PostgresNodeRepository) ListAll(ctx context.Context) ([]models.Node, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY path, position`, nodeColumns, r.tables.Nodes)
	return r.queryNodes(ctx, "list nodes", query)
}

// Update writes the mutable columns of a node
func (r *PostgresNodeRepository) Update(ctx context.Context, node *models.Node) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, content = $2, parent_id = $3, path = $4, position = $5, updated_at = $6
		WHERE id = $7
	`, r.tables.Nodes)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query,
		node.Title,
		node.Content,
		node.ParentID,
		node.Path,
		node.Position,
		node.UpdatedAt,
		node.ID,
	)
	if err != nil {
		return postgres.WrapError("update node", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("node", node.ID)
	}
	return nil
}

// UpdateDetails writes title, content and path without touching parent or position
func (r *PostgresNodeRepository) UpdateDetails(ctx context.Context, node *models.Node) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, content = $2, path = $3, updated_at = $4
		WHERE id = $5
	`, r.tables.Nodes)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, node.Title, node.Content, node.Path, node.UpdatedAt, node.ID)
	if err != nil {
		return postgres.WrapError("update node details", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("node", node.ID)
	}
	return nil
}

// UpdatePaths rewrites paths in one statement
func (r *PostgresNodeRepository) UpdatePaths(ctx context.Context, paths map[string]string) error {
	if len(paths) == 0 {
		return nil
	}

	ids := make([]string, 0, len(paths))
	values := make([]string, 0, len(paths))
	for id, path := range paths {
		ids = append(ids, id)
		values = append(values, path)
	}

	query := fmt.Sprintf(`
		UPDATE %s AS n
		SET path = v.path
		FROM unnest($1::text[], $2::text[]) AS v(id, path)
		WHERE n.id = v.id::uuid
	`, r.tables.Nodes)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, ids, values); err != nil {
		return postgres.WrapError("update paths", err)
	}
	return nil
}

// ShiftPositions adds delta to every sibling position inside rng
func (r *PostgresNodeRepository) ShiftPositions(ctx context.Context, parentID *string, rng docsysRepo.PositionRange, delta int) error {
	args := []any{delta}
	where, parentArgs := parentClause(parentID, 2)
	args = append(args, parentArgs...)

	conditions := []string{where}
	if rng.Min != nil {
		args = append(args, *rng.Min)
		conditions = append(conditions, fmt.Sprintf("position >= $%d", len(args)))
	}
	if rng.Max != nil {
		args = append(args, *rng.Max)
		conditions = append(conditions, fmt.Sprintf("position <= $%d", len(args)))
	}

	query := fmt.Sprintf(`UPDATE %s SET position = position + $1 WHERE %s`,
		r.tables.Nodes, strings.Join(conditions, " AND "))

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, args...); err != nil {
		return postgres.WrapError("shift positions", err)
	}
	return nil
}

// SetPositions assigns position = index in one statement
func (r *PostgresNodeRepository) SetPositions(ctx context.Context, orderedIDs []string) error {
	if len(orderedIDs) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		UPDATE %s AS n
		SET position = v.ord - 1
		FROM unnest($1::text[]) WITH ORDINALITY AS v(id, ord)
		WHERE n.id = v.id::uuid
	`, r.tables.Nodes)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, orderedIDs); err != nil {
		return postgres.WrapError("set positions", err)
	}
	return nil
}

// Delete removes a node. The foreign key refuses folders that still hold children.
func (r *PostgresNodeRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Nodes)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id)
	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return &domain.ConflictError{
				Message:      "cannot delete folder with children",
				ResourceType: string(models.NodeKindFolder),
				ResourceID:   id,
			}
		}
		return postgres.WrapError("delete node", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("node", id)
	}
	return nil
}

// LockSiblingGroups takes transaction-scoped advisory locks on each group.
// Keys are deduplicated and sorted so concurrent callers acquire them in the same order.
func (r *PostgresNodeRepository) LockSiblingGroups(ctx context.Context, parentIDs ...*string) error {
	tx, err := repositories.RequireTx(ctx)
	if err != nil {
		return fmt.Errorf("%w: lock sibling groups: %w", domain.ErrPersistence, err)
	}

	seen := make(map[string]struct{}, len(parentIDs))
	keys := make([]string, 0, len(parentIDs))
	for _, parentID := range parentIDs {
		key := r.tables.Nodes + ":" + rootLockKey
		if parentID != nil {
			key = r.tables.Nodes + ":" + *parentID
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return postgres.WrapError("lock sibling group", err)
		}
	}

	r.logger.Debug("sibling groups locked", "keys", keys)
	return nil
}

// LockTree takes the transaction-scoped tree lock, shared or exclusive.
// Postgres grants a lock the transaction already holds, so joined
// transactions may ask again.
func (r *PostgresNodeRepository) LockTree(ctx context.Context, mode docsysRepo.TreeLock) error {
	tx, err := repositories.RequireTx(ctx)
	if err != nil {
		return fmt.Errorf("%w: lock tree: %w", domain.ErrPersistence, err)
	}

	query := `SELECT pg_advisory_xact_lock_shared(hashtextextended($1, 0))`
	if mode == docsysRepo.TreeExclusive {
		query = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
	}
	if _, err := tx.Exec(ctx, query, r.tables.Nodes+":"+treeLockKey); err != nil {
		return postgres.WrapError("lock tree", err)
	}
	return nil
}
