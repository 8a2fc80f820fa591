package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cimillas/stockledger/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type txKey struct{}

// ledgerTxOptions is read committed: a guarded UPDATE that waited on a row
// lock re-evaluates its WHERE against the committed row, and a conflicting
// INSERT ... ON CONFLICT DO NOTHING sees the winner's row.
var ledgerTxOptions = pgx.TxOptions{
	IsoLevel:   pgx.ReadCommitted,
	AccessMode: pgx.ReadWrite,
}

// withTx runs fn in a ledger transaction carried by the context. Nested calls
// join the outer transaction. Server-side aborts come back wrapping
// domain.ErrTransactionAborted.
func withTx(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		// The rollback still has to reach the server after ctx is cancelled.
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return classifyTxErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classifyTxErr(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func classifyTxErr(err error) error {
	if errors.Is(err, domain.ErrTransactionAborted) || !isTxConflict(err) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrTransactionAborted, err)
}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isTxConflict reports serialization failures and deadlocks; the whole
// transaction was rolled back by the server.
func isTxConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}
