package storage

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
)

// TxFunc is a function that runs within a transaction.
type TxFunc func(*sql.Tx) error

// WithTransaction runs fn inside a single transaction. It commits when fn
// returns nil and rolls back on error or panic; a panic is re-raised.
func (db *DB) WithTransaction(ctx context.Context, fn TxFunc) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "failed to begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = eris.Wrapf(err, "rollback failed: %v", rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			err = eris.Wrap(cErr, "failed to commit transaction")
		}
	}()

	return fn(tx)
}
