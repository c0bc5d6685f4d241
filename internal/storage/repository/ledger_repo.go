// Package repository provides data access for the MTGO tables.
package repository

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/ramonehamilton/MTGO-Companion/internal/storage/models"
)

// LedgerRepository reads and writes the Processed_Files ledger.
type LedgerRepository interface {
	// ProcessedFilenames returns every filename already ingested.
	ProcessedFilenames(ctx context.Context) (map[string]struct{}, error)

	// InsertTx records ingested files inside tx. Existing entries are kept.
	InsertTx(ctx context.Context, tx *sql.Tx, files []models.ProcessedFile) (int64, error)

	// Count returns the number of ledger entries.
	Count(ctx context.Context) (int, error)
}

type ledgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository creates a new ledger repository.
func NewLedgerRepository(db *sql.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) ProcessedFilenames(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT Filename FROM Processed_Files`)
	if err != nil {
		return nil, eris.Wrap(err, "failed to query processed files")
	}
	defer func() { _ = rows.Close() }()

	seen := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "failed to scan processed file")
		}
		seen[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to iterate processed files")
	}
	return seen, nil
}

func (r *ledgerRepository) InsertTx(ctx context.Context, tx *sql.Tx, files []models.ProcessedFile) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO Processed_Files (Filename, Match_ID, Processed_Date)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return 0, eris.Wrap(err, "failed to prepare ledger insert")
	}
	defer func() { _ = stmt.Close() }()

	var inserted int64
	for _, f := range files {
		res, err := stmt.ExecContext(ctx, f.Filename, f.MatchID, f.ProcessedDate.Format(models.DateLayout))
		if err != nil {
			return inserted, eris.Wrapf(err, "failed to record %s", f.Filename)
		}
		inserted += rowsAffected(res)
	}
	return inserted, nil
}

func (r *ledgerRepository) Count(ctx context.Context) (int, error) {
	return count(ctx, r.db, `SELECT COUNT(*) FROM Processed_Files`)
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

func count(ctx context.Context, db *sql.DB, query string, args ...any) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "failed to count rows")
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
