package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ramonehamilton/MTGO-Companion/internal/storage/models"
)

// setupTestService creates a service backed by a migrated temporary database.
func setupTestService(t *testing.T) *Service {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(DefaultConfig(dbPath))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return NewService(db)
}

// testBatch returns an already inverted two-game match between Alice and Bob.
func testBatch(matchID string) models.Batch {
	m := models.Match{
		MatchID: matchID, DraftID: models.NA,
		P1: "Alice", P1Arch: models.NA, P1Subarch: models.NA,
		P2: "Bob", P2Arch: models.NA, P2Subarch: models.NA,
		P1Roll: 5, P2Roll: 2, RollWinner: models.LabelP1,
		P1Wins: 2, P2Wins: 0, MatchWinner: models.LabelP1,
		Format: models.NA, LimitedFormat: models.NA, MatchType: models.NA,
		Date: "2024-06-01 20:15:00",
	}
	mirror := m
	mirror.P1, mirror.P2 = "Bob", "Alice"
	mirror.P1Roll, mirror.P2Roll = 2, 5
	mirror.RollWinner = models.LabelP2
	mirror.P1Wins, mirror.P2Wins = 0, 2
	mirror.MatchWinner = models.LabelP2

	var games []models.Game
	var plays []models.Play
	var actions []models.ActionLog
	for _, perspective := range []struct {
		p1, p2, winner string
	}{{"Alice", "Bob", models.LabelP1}, {"Bob", "Alice", models.LabelP2}} {
		for n := 1; n <= 2; n++ {
			games = append(games, models.Game{
				MatchID: matchID, P1: perspective.p1, P2: perspective.p2, GameNum: n,
				PDSelector: models.NA, PDChoice: models.NA, OnPlay: models.NA, OnDraw: models.NA,
				Turns: 4 + n, GameWinner: perspective.winner,
			})
			plays = append(plays, models.Play{
				MatchID: matchID, GameNum: n, PlayNum: 1, TurnNum: 1,
				CastingPlayer: "Alice", Action: models.ActionCasts, PrimaryCard: "Lightning Bolt",
				Target1: "Bob", Target2: models.NA, Target3: models.NA,
				OppTarget: perspective.p1 == "Alice", SelfTarget: perspective.p1 == "Bob",
				ActivePlayer: models.NA, NonactivePlayer: models.NA, P1: perspective.p1,
			})
		}
	}
	for n := 1; n <= 2; n++ {
		actions = append(actions, models.ActionLog{
			Key:   models.ActionLogKey{MatchID: matchID, GameNum: n},
			Lines: []string{"@PAlice casts @[Lightning Bolt@:1:1] targeting @PBob.", "@PBob has conceded from the game."},
		})
	}

	return models.Batch{
		Matches: []models.Match{m, mirror},
		Games:   games,
		Plays:   plays,
		Actions: actions,
	}
}

func ledgerEntry(matchID string) models.ProcessedFile {
	return models.ProcessedFile{
		Filename:      "Match_GameLog_" + matchID + ".dat",
		MatchID:       matchID,
		ProcessedDate: time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC),
	}
}
