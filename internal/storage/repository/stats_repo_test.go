package repository

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/ramonehamilton/MTGO-Companion/internal/storage/models"
)

// setupTestDB creates an in-memory database with the schema from the
// storage migrations.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	schema, err := os.ReadFile(filepath.Join("..", "migrations", "000001_init_schema.up.sql"))
	if err != nil {
		t.Fatalf("failed to read schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

func match(id, p1, p2, winner, date string, p1Wins, p2Wins int) models.Match {
	return models.Match{
		MatchID: id, DraftID: models.NA,
		P1: p1, P1Arch: models.NA, P1Subarch: models.NA,
		P2: p2, P2Arch: models.NA, P2Subarch: models.NA,
		RollWinner: models.NA, P1Wins: p1Wins, P2Wins: p2Wins, MatchWinner: winner,
		Format: models.NA, LimitedFormat: models.NA, MatchType: models.NA, Date: date,
	}
}

func insert(t *testing.T, db *sql.DB, fn func(tx *sql.Tx) error) {
	t.Helper()
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		t.Fatalf("insert failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
}

func seed(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()

	matches := []models.Match{
		match("a", "Hero", "Bob", models.LabelP1, "2024-05-01 10:00:00", 2, 1),
		match("b", "Hero", "Carol", models.LabelP2, "2024-05-01 12:00:00", 0, 2),
		match("c", "Hero", "Dave", models.LabelP1, "2024-05-03 09:00:00", 2, 0),
		match("a", "Bob", "Hero", models.LabelP2, "2024-05-01 10:00:00", 1, 2),
	}
	games := []models.Game{
		{MatchID: "a", P1: "Hero", P2: "Bob", GameNum: 1, P1Mulls: 0, Turns: 4, GameWinner: models.LabelP1},
		{MatchID: "a", P1: "Hero", P2: "Bob", GameNum: 2, P1Mulls: 1, Turns: 7, GameWinner: models.LabelP2},
		{MatchID: "a", P1: "Hero", P2: "Bob", GameNum: 3, P1Mulls: 0, Turns: 14, GameWinner: models.LabelP1},
		{MatchID: "b", P1: "Hero", P2: "Carol", GameNum: 1, P1Mulls: 1, Turns: 10, GameWinner: models.LabelP2},
	}
	plays := []models.Play{
		{MatchID: "a", GameNum: 1, PlayNum: 1, CastingPlayer: "Hero", Action: models.ActionCasts, PrimaryCard: "Ponder", P1: "Hero"},
		{MatchID: "a", GameNum: 1, PlayNum: 2, CastingPlayer: "Hero", Action: models.ActionCasts, PrimaryCard: "Ponder", P1: "Hero"},
		{MatchID: "a", GameNum: 1, PlayNum: 3, CastingPlayer: "Hero", Action: models.ActionCasts, PrimaryCard: "Brainstorm", P1: "Hero"},
		{MatchID: "a", GameNum: 1, PlayNum: 4, CastingPlayer: "Hero", Action: models.ActionLandDrop, PrimaryCard: "Island", P1: "Hero"},
		{MatchID: "a", GameNum: 1, PlayNum: 5, CastingPlayer: "Bob", Action: models.ActionCasts, PrimaryCard: "Duress", P1: "Hero"},
		{MatchID: "a", GameNum: 1, PlayNum: 6, CastingPlayer: "Bob", Action: models.ActionCasts, PrimaryCard: models.NA, P1: "Hero"},
		// Bob's perspective of the same play must not be counted for Hero.
		{MatchID: "a", GameNum: 1, PlayNum: 1, CastingPlayer: "Hero", Action: models.ActionCasts, PrimaryCard: "Ponder", P1: "Bob"},
	}

	insert(t, db, func(tx *sql.Tx) error {
		if _, err := NewMatchRepository(db).InsertTx(ctx, tx, matches); err != nil {
			return err
		}
		if _, err := NewGameRepository(db).InsertTx(ctx, tx, games); err != nil {
			return err
		}
		_, err := NewPlayRepository(db).InsertTx(ctx, tx, plays)
		return err
	})
}

func TestMatchRepository_Stats(t *testing.T) {
	db := setupTestDB(t)
	seed(t, db)
	ctx := context.Background()
	repo := NewMatchRepository(db)

	top, err := repo.TopPlayer(ctx)
	if err != nil {
		t.Fatalf("TopPlayer failed: %v", err)
	}
	if top != "Hero" {
		t.Errorf("expected Hero, got %q", top)
	}

	n, err := repo.CountDistinct(ctx)
	if err != nil {
		t.Fatalf("CountDistinct failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 distinct matches, got %d", n)
	}

	rec, err := repo.Record(ctx, "Hero")
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if rec.Matches != 3 || rec.MatchWins != 2 || rec.MatchLosses != 1 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.FirstDate != "2024-05-01 10:00:00" || rec.LastDate != "2024-05-03 09:00:00" {
		t.Errorf("unexpected date range: %s .. %s", rec.FirstDate, rec.LastDate)
	}

	recent, err := repo.Recent(ctx, "Hero", 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	wantRecent := []models.RecentMatch{
		{Date: "2024-05-03 09:00:00", Opponent: "Dave", Won: true, P1Wins: 2, P2Wins: 0},
		{Date: "2024-05-01 12:00:00", Opponent: "Carol", Won: false, P1Wins: 0, P2Wins: 2},
	}
	if !reflect.DeepEqual(recent, wantRecent) {
		t.Errorf("expected %+v, got %+v", wantRecent, recent)
	}

	daily, err := repo.Daily(ctx, "Hero")
	if err != nil {
		t.Fatalf("Daily failed: %v", err)
	}
	wantDaily := []models.DailyRecord{
		{Day: "2024-05-03", Matches: 1, Wins: 1, Losses: 0},
		{Day: "2024-05-01", Matches: 2, Wins: 1, Losses: 1},
	}
	if !reflect.DeepEqual(daily, wantDaily) {
		t.Errorf("expected %+v, got %+v", wantDaily, daily)
	}

	scores, err := repo.Scores(ctx, "Hero")
	if err != nil {
		t.Fatalf("Scores failed: %v", err)
	}
	wantScores := []models.ScoreCount{{Wins: 2, Losses: 1, Matches: 1}, {Wins: 2, Losses: 0, Matches: 1}, {Wins: 0, Losses: 2, Matches: 1}}
	if len(scores) != 3 || scores[2] != wantScores[2] {
		t.Errorf("expected losses last, got %+v", scores)
	}
}

func TestMatchRepository_ForPlayer(t *testing.T) {
	db := setupTestDB(t)
	seed(t, db)

	got, err := NewMatchRepository(db).ForPlayer(context.Background(), "Hero")
	if err != nil {
		t.Fatalf("ForPlayer failed: %v", err)
	}
	var ids []string
	for _, m := range got {
		ids = append(ids, m.MatchID)
		if m.P1 != "Hero" {
			t.Errorf("match %s: expected P1 Hero, got %s", m.MatchID, m.P1)
		}
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("ForPlayer ids = %v, want %v", ids, want)
	}
	if got[1].MatchWinner != models.LabelP2 || got[1].P2 != "Carol" {
		t.Errorf("unexpected match b: %+v", got[1])
	}
}

func TestMatchRepository_TopPlayerEmpty(t *testing.T) {
	db := setupTestDB(t)

	top, err := NewMatchRepository(db).TopPlayer(context.Background())
	if err != nil {
		t.Fatalf("TopPlayer failed: %v", err)
	}
	if top != "" {
		t.Errorf("expected empty player, got %q", top)
	}
}

func TestGameRepository_Stats(t *testing.T) {
	db := setupTestDB(t)
	seed(t, db)
	ctx := context.Background()
	repo := NewGameRepository(db)

	wins, losses, err := repo.Record(ctx, "Hero")
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if wins != 2 || losses != 2 {
		t.Errorf("expected 2-2, got %d-%d", wins, losses)
	}

	mulls, err := repo.ByMulligans(ctx, "Hero")
	if err != nil {
		t.Fatalf("ByMulligans failed: %v", err)
	}
	wantMulls := []models.MulliganRecord{{Mulligans: 0, Games: 2, Wins: 2}, {Mulligans: 1, Games: 2, Wins: 0}}
	if !reflect.DeepEqual(mulls, wantMulls) {
		t.Errorf("expected %+v, got %+v", wantMulls, mulls)
	}

	buckets, err := repo.ByLength(ctx, "Hero")
	if err != nil {
		t.Fatalf("ByLength failed: %v", err)
	}
	var labels []string
	for _, b := range buckets {
		labels = append(labels, b.Label)
	}
	if strings.Join(labels, ",") != "1-5,6-8,9-12,13+" {
		t.Errorf("unexpected buckets: %v", labels)
	}
}

func TestPlayRepository_CastCounts(t *testing.T) {
	db := setupTestDB(t)
	seed(t, db)
	ctx := context.Background()
	repo := NewPlayRepository(db)

	mine, err := repo.CastBy(ctx, "Hero", 10)
	if err != nil {
		t.Fatalf("CastBy failed: %v", err)
	}
	wantMine := []models.CardCount{{Card: "Ponder", Count: 2}, {Card: "Brainstorm", Count: 1}}
	if !reflect.DeepEqual(mine, wantMine) {
		t.Errorf("expected %+v, got %+v", wantMine, mine)
	}

	theirs, err := repo.CastAgainst(ctx, "Hero", 10)
	if err != nil {
		t.Fatalf("CastAgainst failed: %v", err)
	}
	wantTheirs := []models.CardCount{{Card: "Duress", Count: 1}}
	if !reflect.DeepEqual(theirs, wantTheirs) {
		t.Errorf("expected %+v, got %+v", wantTheirs, theirs)
	}
}

func TestPlayRepository_WinRateByCard(t *testing.T) {
	db := setupTestDB(t)
	seed(t, db)
	ctx := context.Background()
	repo := NewPlayRepository(db)

	got, err := repo.WinRateByCard(ctx, "Hero", 1, 10)
	if err != nil {
		t.Fatalf("WinRateByCard failed: %v", err)
	}
	// Ponder was cast twice in one game, which counts once.
	want := []models.CardWinRate{{Card: "Brainstorm", Games: 1, Wins: 1}, {Card: "Ponder", Games: 1, Wins: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("WinRateByCard = %+v, want %+v", got, want)
	}

	got, err = repo.WinRateByCard(ctx, "Hero", 2, 10)
	if err != nil {
		t.Fatalf("WinRateByCard failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no cards with 2 games, got %+v", got)
	}
}

func TestLedgerRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewLedgerRepository(db)

	files := []models.ProcessedFile{
		{Filename: "Match_GameLog_a.dat", MatchID: "a"},
		{Filename: "Match_GameLog_b.dat", MatchID: "b"},
		{Filename: "Match_GameLog_a.dat", MatchID: "a"},
	}

	var inserted int64
	insert(t, db, func(tx *sql.Tx) error {
		var err error
		inserted, err = repo.InsertTx(ctx, tx, files)
		return err
	})
	if inserted != 2 {
		t.Errorf("expected 2 new ledger rows, got %d", inserted)
	}

	seen, err := repo.ProcessedFilenames(ctx)
	if err != nil {
		t.Fatalf("ProcessedFilenames failed: %v", err)
	}
	if len(seen) != 2 {
		t.Errorf("expected 2 filenames, got %v", seen)
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected count 2, got %d", n)
	}
}
