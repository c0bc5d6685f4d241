package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/ramonehamilton/MTGO-Companion/internal/storage/models"
)

// MatchRepository handles database operations for match rows.
type MatchRepository interface {
	// InsertTx inserts match rows inside tx, ignoring (Match_ID, P1) duplicates.
	InsertTx(ctx context.Context, tx *sql.Tx, matches []models.Match) (int64, error)

	// Get returns the match as seen by player, or nil when absent.
	Get(ctx context.Context, matchID, player string) (*models.Match, error)

	// ForPlayer returns every match as seen by player, oldest first.
	ForPlayer(ctx context.Context, player string) ([]models.Match, error)

	// CountDistinct returns the number of distinct match identifiers.
	CountDistinct(ctx context.Context) (int, error)

	// TopPlayer returns the primary player with the most matches.
	TopPlayer(ctx context.Context) (string, error)

	// Record returns the match record for player.
	Record(ctx context.Context, player string) (*models.PlayerRecord, error)

	// Recent returns the player's most recent matches, newest first.
	Recent(ctx context.Context, player string, limit int) ([]models.RecentMatch, error)

	// Daily returns the player's record grouped by day, newest first.
	Daily(ctx context.Context, player string) ([]models.DailyRecord, error)

	// Scores returns how often each final score occurred for player.
	Scores(ctx context.Context, player string) ([]models.ScoreCount, error)
}

type matchRepository struct {
	db *sql.DB
}

// NewMatchRepository creates a new match repository.
func NewMatchRepository(db *sql.DB) MatchRepository {
	return &matchRepository{db: db}
}

func (r *matchRepository) InsertTx(ctx context.Context, tx *sql.Tx, matches []models.Match) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO Matches (
			Match_ID, Draft_ID, P1, P1_Arch, P1_Subarch, P2, P2_Arch, P2_Subarch,
			P1_Roll, P2_Roll, Roll_Winner, P1_Wins, P2_Wins, Match_Winner,
			Format, Limited_Format, Match_Type, Date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, eris.Wrap(err, "failed to prepare match insert")
	}
	defer func() { _ = stmt.Close() }()

	var inserted int64
	for _, m := range matches {
		res, err := stmt.ExecContext(ctx,
			m.MatchID, m.DraftID, m.P1, m.P1Arch, m.P1Subarch, m.P2, m.P2Arch, m.P2Subarch,
			m.P1Roll, m.P2Roll, m.RollWinner, m.P1Wins, m.P2Wins, m.MatchWinner,
			m.Format, m.LimitedFormat, m.MatchType, m.Date,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "failed to insert match %s for %s", m.MatchID, m.P1)
		}
		inserted += rowsAffected(res)
	}
	return inserted, nil
}

const matchColumns = `
	Match_ID, Draft_ID, P1, P1_Arch, P1_Subarch, P2, P2_Arch, P2_Subarch,
	P1_Roll, P2_Roll, Roll_Winner, P1_Wins, P2_Wins, Match_Winner,
	Format, Limited_Format, Match_Type, Date`

type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(row scanner) (*models.Match, error) {
	m := &models.Match{}
	err := row.Scan(
		&m.MatchID, &m.DraftID, &m.P1, &m.P1Arch, &m.P1Subarch, &m.P2, &m.P2Arch, &m.P2Subarch,
		&m.P1Roll, &m.P2Roll, &m.RollWinner, &m.P1Wins, &m.P2Wins, &m.MatchWinner,
		&m.Format, &m.LimitedFormat, &m.MatchType, &m.Date,
	)
	return m, err
}

func (r *matchRepository) Get(ctx context.Context, matchID, player string) (*models.Match, error) {
	m, err := scanMatch(r.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM Matches WHERE Match_ID = ? AND P1 = ?`,
		matchID, player))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to get match %s", matchID)
	}
	return m, nil
}

func (r *matchRepository) ForPlayer(ctx context.Context, player string) ([]models.Match, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM Matches WHERE P1 = ? ORDER BY Date, Match_ID`,
		player)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to list matches for %s", player)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "failed to scan match")
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to iterate matches")
	}
	return out, nil
}

func (r *matchRepository) CountDistinct(ctx context.Context) (int, error) {
	return count(ctx, r.db, `SELECT COUNT(DISTINCT Match_ID) FROM Matches`)
}

func (r *matchRepository) TopPlayer(ctx context.Context) (string, error) {
	var player string
	err := r.db.QueryRowContext(ctx, `
		SELECT P1 FROM Matches
		GROUP BY P1
		ORDER BY COUNT(*) DESC, P1
		LIMIT 1
	`).Scan(&player)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "failed to find top player")
	}
	return player, nil
}

func (r *matchRepository) Record(ctx context.Context, player string) (*models.PlayerRecord, error) {
	rec := &models.PlayerRecord{Player: player}
	var first, last sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN Match_Winner = 'P1' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN Match_Winner = 'P2' THEN 1 ELSE 0 END), 0),
			MIN(Date),
			MAX(Date)
		FROM Matches
		WHERE P1 = ?
	`, player).Scan(&rec.Matches, &rec.MatchWins, &rec.MatchLosses, &first, &last)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to get record for %s", player)
	}
	rec.FirstDate = first.String
	rec.LastDate = last.String
	return rec, nil
}

func (r *matchRepository) Recent(ctx context.Context, player string, limit int) ([]models.RecentMatch, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT Date, P2, Match_Winner = 'P1', P1_Wins, P2_Wins
		FROM Matches
		WHERE P1 = ?
		ORDER BY Date DESC
		LIMIT ?
	`, player, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to query recent matches for %s", player)
	}
	defer func() { _ = rows.Close() }()

	var out []models.RecentMatch
	for rows.Next() {
		var m models.RecentMatch
		if err := rows.Scan(&m.Date, &m.Opponent, &m.Won, &m.P1Wins, &m.P2Wins); err != nil {
			return nil, eris.Wrap(err, "failed to scan recent match")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to iterate recent matches")
	}
	return out, nil
}

func (r *matchRepository) Daily(ctx context.Context, player string) ([]models.DailyRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			SUBSTR(Date, 1, 10) AS Day,
			COUNT(*),
			SUM(CASE WHEN Match_Winner = 'P1' THEN 1 ELSE 0 END),
			SUM(CASE WHEN Match_Winner = 'P2' THEN 1 ELSE 0 END)
		FROM Matches
		WHERE P1 = ?
		GROUP BY Day
		ORDER BY Day DESC
	`, player)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to query daily record for %s", player)
	}
	defer func() { _ = rows.Close() }()

	var out []models.DailyRecord
	for rows.Next() {
		var d models.DailyRecord
		if err := rows.Scan(&d.Day, &d.Matches, &d.Wins, &d.Losses); err != nil {
			return nil, eris.Wrap(err, "failed to scan daily record")
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to iterate daily record")
	}
	return out, nil
}

func (r *matchRepository) Scores(ctx context.Context, player string) ([]models.ScoreCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT P1_Wins, P2_Wins, COUNT(*) AS n
		FROM Matches
		WHERE P1 = ?
		GROUP BY P1_Wins, P2_Wins
		ORDER BY CASE WHEN P1_Wins > P2_Wins THEN 0 ELSE 1 END, n DESC, P1_Wins DESC
	`, player)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to query scores for %s", player)
	}
	defer func() { _ = rows.Close() }()

	var out []models.ScoreCount
	for rows.Next() {
		var s models.ScoreCount
		if err := rows.Scan(&s.Wins, &s.Losses, &s.Matches); err != nil {
			return nil, eris.Wrap(err, "failed to scan score")
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to iterate scores")
	}
	return out, nil
}
