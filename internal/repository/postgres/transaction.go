package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"kbase/internal/domain"
	"kbase/internal/domain/repositories"
)

// TransactionManager implements repositories.TransactionManager on a pgx pool
type TransactionManager struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(pool *pgxpool.Pool, logger *slog.Logger) repositories.TransactionManager {
	return &TransactionManager{pool: pool, logger: logger}
}

// ExecTx runs fn inside a transaction. If ctx already carries one, fn joins it
// and the outermost caller decides whether to commit.
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if repositories.GetTx(ctx) != nil {
		return fn(ctx)
	}

	tx, err := tm.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", domain.ErrPersistence, err)
	}

	// Rollback after a successful commit returns ErrTxClosed
	defer func() {
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			tm.logger.Error("rollback failed", "error", err)
		}
	}()

	if err := fn(repositories.SetTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit transaction: %v", domain.ErrPersistence, err)
	}

	return nil
}
