package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNoTx is returned by operations that only make sense inside ExecTx
var ErrNoTx = errors.New("no transaction in context")

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager runs units of work that must commit atomically, such
// as a move together with its sibling shifts and path cascade.
//
// ExecTx joins the transaction already carried by ctx, if any, so a service
// may call another service's transactional method from inside its own unit.
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}

type txContextKey struct{}

// SetTx stores a transaction in the context
func SetTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// GetTx returns the transaction carried by ctx, or nil
func GetTx(ctx context.Context) pgx.Tx {
	tx, ok := ctx.Value(txContextKey{}).(pgx.Tx)
	if !ok {
		return nil
	}
	return tx
}

// RequireTx is GetTx for statements whose effect is scoped to a transaction,
// like pg_advisory_xact_lock.
func RequireTx(ctx context.Context) (pgx.Tx, error) {
	tx := GetTx(ctx)
	if tx == nil {
		return nil, ErrNoTx
	}
	return tx, nil
}
