package db

import (
	"context"
	"database/sql"
	"fmt"
)

// WithTx runs fn against a transaction, committing when fn returns nil and rolling back otherwise.
func WithTx(ctx context.Context, database *sql.DB, fn func(qry *Queries) error) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	err = fn(New(tx))
	if err != nil {
		return err
	}
	return tx.Commit()
}
