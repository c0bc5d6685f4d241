package repository

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/ramonehamilton/MTGO-Companion/internal/storage/models"
)

// GameRepository handles database operations for game rows.
type GameRepository interface {
	// InsertTx inserts game rows inside tx, ignoring duplicates.
	InsertTx(ctx context.Context, tx *sql.Tx, games []models.Game) (int64, error)

	// ForMatch returns the games of a match as seen by player, in game order.
	ForMatch(ctx context.Context, matchID, player string) ([]models.Game, error)

	// Count returns the number of game rows.
	Count(ctx context.Context) (int, error)

	// Record returns the player's game wins and losses.
	Record(ctx context.Context, player string) (wins, losses int, err error)

	// ByMulligans groups the player's games by how often they mulliganed.
	ByMulligans(ctx context.Context, player string) ([]models.MulliganRecord, error)

	// ByLength groups the player's games into turn-count buckets.
	ByLength(ctx context.Context, player string) ([]models.TurnBucket, error)
}

type gameRepository struct {
	db *sql.DB
}

// NewGameRepository creates a new game repository.
func NewGameRepository(db *sql.DB) GameRepository {
	return &gameRepository{db: db}
}

func (r *gameRepository) InsertTx(ctx context.Context, tx *sql.Tx, games []models.Game) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO Games (
			Match_ID, P1, P2, Game_Num, PD_Selector, PD_Choice, On_Play, On_Draw,
			P1_Mulls, P2_Mulls, Turns, Game_Winner
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, eris.Wrap(err, "failed to prepare game insert")
	}
	defer func() { _ = stmt.Close() }()

	var inserted int64
	for _, g := range games {
		res, err := stmt.ExecContext(ctx,
			g.MatchID, g.P1, g.P2, g.GameNum, g.PDSelector, g.PDChoice, g.OnPlay, g.OnDraw,
			g.P1Mulls, g.P2Mulls, g.Turns, g.GameWinner,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "failed to insert game %s/%d", g.MatchID, g.GameNum)
		}
		inserted += rowsAffected(res)
	}
	return inserted, nil
}

func (r *gameRepository) ForMatch(ctx context.Context, matchID, player string) ([]models.Game, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT Match_ID, P1, P2, Game_Num, PD_Selector, PD_Choice, On_Play, On_Draw,
			P1_Mulls, P2_Mulls, Turns, Game_Winner
		FROM Games
		WHERE Match_ID = ? AND P1 = ?
		ORDER BY Game_Num
	`, matchID, player)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to query games for %s", matchID)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Game
	for rows.Next() {
		var g models.Game
		if err := rows.Scan(
			&g.MatchID, &g.P1, &g.P2, &g.GameNum, &g.PDSelector, &g.PDChoice, &g.OnPlay, &g.OnDraw,
			&g.P1Mulls, &g.P2Mulls, &g.Turns, &g.GameWinner,
		); err != nil {
			return nil, eris.Wrap(err, "failed to scan game")
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to iterate games")
	}
	return out, nil
}

func (r *gameRepository) Count(ctx context.Context) (int, error) {
	return count(ctx, r.db, `SELECT COUNT(*) FROM Games`)
}

func (r *gameRepository) Record(ctx context.Context, player string) (wins, losses int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN Game_Winner = 'P1' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN Game_Winner = 'P2' THEN 1 ELSE 0 END), 0)
		FROM Games
		WHERE P1 = ?
	`, player).Scan(&wins, &losses)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "failed to get game record for %s", player)
	}
	return wins, losses, nil
}

func (r *gameRepository) ByMulligans(ctx context.Context, player string) ([]models.MulliganRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT P1_Mulls, COUNT(*), SUM(CASE WHEN Game_Winner = 'P1' THEN 1 ELSE 0 END)
		FROM Games
		WHERE P1 = ?
		GROUP BY P1_Mulls
		ORDER BY P1_Mulls
	`, player)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to query mulligans for %s", player)
	}
	defer func() { _ = rows.Close() }()

	var out []models.MulliganRecord
	for rows.Next() {
		var m models.MulliganRecord
		if err := rows.Scan(&m.Mulligans, &m.Games, &m.Wins); err != nil {
			return nil, eris.Wrap(err, "failed to scan mulligan record")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to iterate mulligan records")
	}
	return out, nil
}

func (r *gameRepository) ByLength(ctx context.Context, player string) ([]models.TurnBucket, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			CASE
				WHEN Turns <= 5 THEN '1-5'
				WHEN Turns <= 8 THEN '6-8'
				WHEN Turns <= 12 THEN '9-12'
				ELSE '13+'
			END AS Bucket,
			COUNT(*),
			SUM(CASE WHEN Game_Winner = 'P1' THEN 1 ELSE 0 END)
		FROM Games
		WHERE P1 = ? AND Turns > 0
		GROUP BY Bucket
		ORDER BY MIN(Turns)
	`, player)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to query game length for %s", player)
	}
	defer func() { _ = rows.Close() }()

	var out []models.TurnBucket
	for rows.Next() {
		var b models.TurnBucket
		if err := rows.Scan(&b.Label, &b.Games, &b.Wins); err != nil {
			return nil, eris.Wrap(err, "failed to scan game length")
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to iterate game length")
	}
	return out, nil
}
