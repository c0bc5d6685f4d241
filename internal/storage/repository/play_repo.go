package repository

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/ramonehamilton/MTGO-Companion/internal/storage/models"
)

// PlayRepository handles database operations for play rows.
type PlayRepository interface {
	// InsertTx inserts play rows inside tx, ignoring duplicates.
	InsertTx(ctx context.Context, tx *sql.Tx, plays []models.Play) (int64, error)

	// ForGame returns the plays of one game as seen by player, in play order.
	ForGame(ctx context.Context, matchID string, gameNum int, player string) ([]models.Play, error)

	// Count returns the number of play rows.
	Count(ctx context.Context) (int, error)

	// CastBy returns the cards player cast most often.
	CastBy(ctx context.Context, player string, limit int) ([]models.CardCount, error)

	// CastAgainst returns the cards player's opponents cast most often.
	CastAgainst(ctx context.Context, player string, limit int) ([]models.CardCount, error)

	// WinRateByCard returns game results for the cards player cast in at
	// least minGames games, most played first.
	WinRateByCard(ctx context.Context, player string, minGames, limit int) ([]models.CardWinRate, error)
}

type playRepository struct {
	db *sql.DB
}

// NewPlayRepository creates a new play repository.
func NewPlayRepository(db *sql.DB) PlayRepository {
	return &playRepository{db: db}
}

func (r *playRepository) InsertTx(ctx context.Context, tx *sql.Tx, plays []models.Play) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO Plays (
			Match_ID, Game_Num, Play_Num, Turn_Num, Casting_Player, Action, Primary_Card,
			Target1, Target2, Target3, Opp_Target, Self_Target, Cards_Drawn, Attackers,
			Active_Player, Nonactive_Player, P1
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, eris.Wrap(err, "failed to prepare play insert")
	}
	defer func() { _ = stmt.Close() }()

	var inserted int64
	for _, p := range plays {
		res, err := stmt.ExecContext(ctx,
			p.MatchID, p.GameNum, p.PlayNum, p.TurnNum, p.CastingPlayer, p.Action, p.PrimaryCard,
			p.Target1, p.Target2, p.Target3, boolToInt(p.OppTarget), boolToInt(p.SelfTarget),
			p.CardsDrawn, p.Attackers, p.ActivePlayer, p.NonactivePlayer, p.P1,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "failed to insert play %s/%d/%d", p.MatchID, p.GameNum, p.PlayNum)
		}
		inserted += rowsAffected(res)
	}
	return inserted, nil
}

func (r *playRepository) ForGame(ctx context.Context, matchID string, gameNum int, player string) ([]models.Play, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT Match_ID, Game_Num, Play_Num, Turn_Num, Casting_Player, Action, Primary_Card,
			Target1, Target2, Target3, Opp_Target, Self_Target, Cards_Drawn, Attackers,
			Active_Player, Nonactive_Player, P1
		FROM Plays
		WHERE Match_ID = ? AND Game_Num = ? AND P1 = ?
		ORDER BY Play_Num
	`, matchID, gameNum, player)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to query plays for %s/%d", matchID, gameNum)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Play
	for rows.Next() {
		var p models.Play
		if err := rows.Scan(
			&p.MatchID, &p.GameNum, &p.PlayNum, &p.TurnNum, &p.CastingPlayer, &p.Action, &p.PrimaryCard,
			&p.Target1, &p.Target2, &p.Target3, &p.OppTarget, &p.SelfTarget, &p.CardsDrawn, &p.Attackers,
			&p.ActivePlayer, &p.NonactivePlayer, &p.P1,
		); err != nil {
			return nil, eris.Wrap(err, "failed to scan play")
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to iterate plays")
	}
	return out, nil
}

func (r *playRepository) Count(ctx context.Context) (int, error) {
	return count(ctx, r.db, `SELECT COUNT(*) FROM Plays`)
}

func (r *playRepository) CastBy(ctx context.Context, player string, limit int) ([]models.CardCount, error) {
	return r.castCounts(ctx, `Casting_Player = ?`, player, limit)
}

func (r *playRepository) CastAgainst(ctx context.Context, player string, limit int) ([]models.CardCount, error) {
	return r.castCounts(ctx, `Casting_Player <> ?`, player, limit)
}

// castCounts counts casts in the player's own perspective rows so each play
// is seen once.
func (r *playRepository) castCounts(ctx context.Context, casterClause, player string, limit int) ([]models.CardCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT Primary_Card, COUNT(*) AS n
		FROM Plays
		WHERE P1 = ? AND `+casterClause+`
		  AND Action = ? AND Primary_Card <> ?
		GROUP BY Primary_Card
		ORDER BY n DESC, Primary_Card
		LIMIT ?
	`, player, player, models.ActionCasts, models.NA, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to count casts for %s", player)
	}
	defer func() { _ = rows.Close() }()

	var out []models.CardCount
	for rows.Next() {
		var c models.CardCount
		if err := rows.Scan(&c.Card, &c.Count); err != nil {
			return nil, eris.Wrap(err, "failed to scan card count")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to iterate card counts")
	}
	return out, nil
}

func (r *playRepository) WinRateByCard(ctx context.Context, player string, minGames, limit int) ([]models.CardWinRate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.Primary_Card,
		       COUNT(DISTINCT p.Match_ID || '-' || p.Game_Num) AS games,
		       COUNT(DISTINCT CASE WHEN g.Game_Winner = ? THEN p.Match_ID || '-' || p.Game_Num END) AS wins
		FROM Plays p
		JOIN Games g ON g.Match_ID = p.Match_ID AND g.Game_Num = p.Game_Num AND g.P1 = p.P1
		WHERE p.P1 = ? AND p.Casting_Player = ?
		  AND p.Action = ? AND p.Primary_Card <> ?
		GROUP BY p.Primary_Card
		HAVING games >= ?
		ORDER BY games DESC, p.Primary_Card
		LIMIT ?
	`, models.LabelP1, player, player, models.ActionCasts, models.NA, minGames, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to query card win rates for %s", player)
	}
	defer func() { _ = rows.Close() }()

	var out []models.CardWinRate
	for rows.Next() {
		var c models.CardWinRate
		if err := rows.Scan(&c.Card, &c.Games, &c.Wins); err != nil {
			return nil, eris.Wrap(err, "failed to scan card win rate")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to iterate card win rates")
	}
	return out, nil
}
