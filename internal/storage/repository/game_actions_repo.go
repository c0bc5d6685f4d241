package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ramonehamilton/MTGO-Companion/internal/storage/models"
)

// GameActionRepository stores the raw tail of each game's transcript.
type GameActionRepository interface {
	// UpsertTx writes action logs inside tx; a later write replaces an earlier one.
	UpsertTx(ctx context.Context, tx *sql.Tx, logs []models.ActionLog) (int64, error)

	// Get returns the stored lines for one game, or nil when absent.
	Get(ctx context.Context, key models.ActionLogKey) ([]string, error)
}

type gameActionRepository struct {
	db *sql.DB
}

// NewGameActionRepository creates a new game action repository.
func NewGameActionRepository(db *sql.DB) GameActionRepository {
	return &gameActionRepository{db: db}
}

func (r *gameActionRepository) UpsertTx(ctx context.Context, tx *sql.Tx, logs []models.ActionLog) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO GameActions (Match_ID, Game_Num, Game_Actions)
		VALUES (?, ?, ?)
		ON CONFLICT (Match_ID, Game_Num) DO UPDATE SET Game_Actions = excluded.Game_Actions
	`)
	if err != nil {
		return 0, eris.Wrap(err, "failed to prepare game action upsert")
	}
	defer func() { _ = stmt.Close() }()

	var written int64
	for _, l := range logs {
		res, err := stmt.ExecContext(ctx, l.Key.MatchID, l.Key.GameNum, strings.Join(l.Lines, "\n"))
		if err != nil {
			return written, eris.Wrapf(err, "failed to write actions for %s/%d", l.Key.MatchID, l.Key.GameNum)
		}
		written += rowsAffected(res)
	}
	return written, nil
}

func (r *gameActionRepository) Get(ctx context.Context, key models.ActionLogKey) ([]string, error) {
	var text string
	err := r.db.QueryRowContext(ctx, `
		SELECT Game_Actions FROM GameActions WHERE Match_ID = ? AND Game_Num = ?
	`, key.MatchID, key.GameNum).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to get actions for %s/%d", key.MatchID, key.GameNum)
	}
	if text == "" {
		return []string{}, nil
	}
	return strings.Split(text, "\n"), nil
}
