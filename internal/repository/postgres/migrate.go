package postgres

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"kbase/internal/domain"
	"kbase/internal/repository/postgres/migrations"
)

// VersionTable returns the goose bookkeeping table for a prefix
func VersionTable(prefix string) string {
	return prefix + "goose_db_version"
}

// RunMigrations applies the embedded migrations for the given table prefix.
// goose keeps package-level state, so callers must not run it concurrently.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, prefix string) error {
	if err := os.Setenv(migrations.PrefixEnv, prefix); err != nil {
		return fmt.Errorf("set migration prefix: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)
	goose.SetTableName(VersionTable(prefix))
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("%w: run migrations: %v", domain.ErrPersistence, err)
	}
	return nil
}

// DropSchema drops the node table and the goose bookkeeping table for a prefix
func DropSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	for _, table := range []string{tables.Nodes, VersionTable(tables.Prefix)} {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return fmt.Errorf("%w: drop %s: %v", domain.ErrPersistence, table, err)
		}
	}
	return nil
}

// ClearNodes deletes every node while keeping the schema
func ClearNodes(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	if _, err := pool.Exec(ctx, "TRUNCATE "+tables.Nodes); err != nil {
		return fmt.Errorf("%w: clear nodes: %v", domain.ErrPersistence, err)
	}
	return nil
}
