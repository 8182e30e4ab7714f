// Package internal contains the PostgreSQL transaction helpers and the
// testcontainers setup used by the postgres package.
package internal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxBeginner represents a pgx-related component that can initiate transactions.
type TxBeginner interface {
	BeginTx(ctx context.Context, options pgx.TxOptions) (pgx.Tx, error)
}

// RunTransaction runs a critical data change path in a transaction,
// seamlessly handling the transaction lifecycle (begin, commit, rollback),
// and returns the value produced by do once the transaction is committed.
//
// The transaction is rolled back if do returns an error. The error is wrapped,
// so errors.Is and errors.As still match it.
func RunTransaction[T any](
	ctx context.Context,
	db TxBeginner,
	options pgx.TxOptions, //nolint:gocritic // The pgx API uses value semantics, will do the same here.
	do func(ctx context.Context, tx pgx.Tx) (T, error),
) (result T, err error) {
	var zeroValue T

	withContext := func(msg string, err error) error {
		return fmt.Errorf("%s, %w", msg, err)
	}

	tx, err := db.BeginTx(ctx, options)
	if err != nil {
		return zeroValue, withContext("failed to begin transaction", err)
	}

	defer func() {
		if err == nil {
			return
		}

		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			err = fmt.Errorf("failed to rollback transaction, %w (caused by: %w)", rollbackErr, err)
		}
	}()

	result, err = do(ctx, tx)
	if err != nil {
		return zeroValue, withContext("failed to perform transaction", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return zeroValue, withContext("failed to commit transaction", err)
	}

	return result, nil
}
