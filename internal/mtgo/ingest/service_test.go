package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ramonehamilton/MTGO-Companion/internal/archetype"
	"github.com/ramonehamilton/MTGO-Companion/internal/mtgo/gamelog"
	"github.com/ramonehamilton/MTGO-Companion/internal/storage"
	"github.com/ramonehamilton/MTGO-Companion/internal/storage/models"
)

const matchA = `@PAlice joined the game.
@PBob joined the game.
@PAlice rolled a 6.
@PBob rolled a 3.
@PAlice chooses to play first.
Turn 1: Alice
@PAlice plays @[Mountain@:101,1:@].
@PAlice casts @[Goblin Guide@:102,1:@].
Turn 2: Bob
@PBob plays @[Island@:103,1:@].
Turn 3: Alice
@PAlice casts @[Lightning Bolt@:104,1:@] targeting @PBob.
@PBob has conceded from the game.
@PAlice joined the game.
@PBob joined the game.
@PBob chooses to play first.
Turn 1: Bob
@PBob plays @[Island@:103,1:@].
Turn 2: Alice
@PAlice casts @[Lightning Bolt@:104,1:@] targeting @PBob.
@PAlice wins the game.
`

// matchB stops in the middle of its first game.
const matchB = `@PCarol joined the game.
@PDave joined the game.
@PCarol chooses to play first.
Turn 1: Carol
@PCarol plays @[Forest@:201,1:@].
Turn 2: Dave
@PDave casts @[Thoughtseize@:202,1:@] targeting @PCarol.
`

var modTime = time.Date(2024, 6, 1, 20, 15, 0, 0, time.UTC)

func writeLog(t *testing.T, dir, matchID, body string) string {
	t.Helper()
	path := filepath.Join(dir, gamelog.FileToken+matchID+gamelog.FileExt)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
	return path
}

func newTestService(t *testing.T, opts Options) (*Service, *storage.Service) {
	t.Helper()

	db, err := storage.Open(storage.DefaultConfig(filepath.Join(t.TempDir(), "mtgo.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := storage.NewService(db)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return modTime.Add(time.Hour) }
	}
	return NewService(store, opts), store
}

func countRows(t *testing.T, store *storage.Service, table string) int {
	t.Helper()
	var n int
	require.NoError(t, store.DB().Conn().QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestRun_GoodAndTruncatedTranscript(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "MatchA", matchA)
	writeLog(t, dir, "MatchB", matchB)

	svc, store := newTestService(t, Options{Workers: 2})
	sum, err := svc.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Found)
	assert.Equal(t, 2, sum.New)
	assert.Equal(t, 1, sum.Parsed)
	assert.Equal(t, 1, sum.Errored)
	assert.Equal(t, 0, sum.Skipped)

	require.Len(t, sum.Errors, 1)
	assert.Equal(t, "Match_GameLog_MatchB.dat", sum.Errors[0].Filename)
	var malformed *gamelog.MalformedError
	assert.True(t, errors.As(sum.Errors[0].Err, &malformed))

	assert.Equal(t, 1, countRows(t, store, "Processed_Files"))
	assert.Equal(t, 2, countRows(t, store, "Matches"))
	assert.Equal(t, 4, countRows(t, store, "Games"))
	assert.Equal(t, 0, countRows(t, store, "Matches WHERE Match_ID = 'MatchB'"))

	require.NotNil(t, sum.Database)
	assert.Equal(t, 1, sum.Database.ProcessedFiles)
	assert.Equal(t, 1, sum.Database.UniqueMatches)
	assert.Equal(t, 4, sum.Database.Games)

	m := svc.Metrics().Stats()
	assert.Equal(t, uint64(1), m.Runs)
	assert.Equal(t, uint64(1), m.FilesParsed)
	assert.Equal(t, uint64(1), m.FilesErrored)
	assert.Equal(t, uint64(1), m.MatchesStored)
	assert.Equal(t, 2, m.ParseLatency.Count)
	assert.Equal(t, 1, m.CommitLatency.Count)
}

func TestRun_BothPerspectives(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "MatchA", matchA)

	svc, store := newTestService(t, Options{})
	_, err := svc.Run(context.Background(), dir)
	require.NoError(t, err)

	ctx := context.Background()
	alice, err := store.Matches().Get(ctx, "MatchA", "Alice")
	require.NoError(t, err)
	require.NotNil(t, alice)
	bob, err := store.Matches().Get(ctx, "MatchA", "Bob")
	require.NoError(t, err)
	require.NotNil(t, bob)

	assert.Equal(t, models.LabelP1, alice.MatchWinner)
	assert.Equal(t, models.LabelP2, bob.MatchWinner)
	assert.Equal(t, 2, alice.P1Wins)
	assert.Equal(t, 2, bob.P2Wins)
	assert.Equal(t, alice.P1Roll, bob.P2Roll)
	assert.Equal(t, "2024-06-01 20:15:00", alice.Date)

	for _, player := range []string{"Alice", "Bob"} {
		m, err := store.Matches().Get(ctx, "MatchA", player)
		require.NoError(t, err)
		games, err := store.Games().ForMatch(ctx, "MatchA", player)
		require.NoError(t, err)
		assert.Equal(t, len(games), m.P1Wins+m.P2Wins, "wins must add up to games for %s", player)
	}

	plays, err := store.Plays().ForGame(ctx, "MatchA", 1, "Bob")
	require.NoError(t, err)
	require.NotEmpty(t, plays)
	last := plays[len(plays)-1]
	assert.Equal(t, "Lightning Bolt", last.PrimaryCard)
	assert.True(t, last.SelfTarget, "Bolt at Bob is a self target from Bob's side")
	assert.False(t, last.OppTarget)

	lines, err := store.Actions().Get(ctx, models.ActionLogKey{MatchID: "MatchA", GameNum: 2})
	require.NoError(t, err)
	assert.Equal(t, "@PAlice wins the game.", lines[len(lines)-1])
}

func TestRun_RerunIsNoop(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "MatchA", matchA)

	svc, store := newTestService(t, Options{})
	_, err := svc.Run(context.Background(), dir)
	require.NoError(t, err)

	sum, err := svc.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Found)
	assert.Equal(t, 1, sum.AlreadyProcessed)
	assert.Equal(t, 0, sum.New)
	assert.Equal(t, 0, sum.Parsed)
	assert.Nil(t, sum.Committed)

	assert.Equal(t, 1, countRows(t, store, "Processed_Files"))
	assert.Equal(t, 2, countRows(t, store, "Matches"))
}

func TestRun_FailedFileIsRetried(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "MatchB", matchB)

	svc, store := newTestService(t, Options{})
	sum, err := svc.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Errored)
	assert.Nil(t, sum.Committed)
	assert.Equal(t, 0, countRows(t, store, "Processed_Files"))

	// The client finishes writing the log.
	writeLog(t, dir, "MatchB", matchB+"@PCarol has conceded from the game.\n")

	sum, err = svc.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.New)
	assert.Equal(t, 1, sum.Parsed)
	assert.Equal(t, 0, sum.Errored)
	assert.Equal(t, 1, countRows(t, store, "Processed_Files"))
	assert.Equal(t, 2, countRows(t, store, "Matches WHERE Match_ID = 'MatchB'"))
}

func TestRun_RowsSurviveSourceDeletion(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "MatchA", matchA)

	svc, store := newTestService(t, Options{})
	_, err := svc.Run(context.Background(), dir)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))

	sum, err := svc.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Found)
	assert.Equal(t, 1, countRows(t, store, "Processed_Files"))
	assert.Equal(t, 2, countRows(t, store, "Matches"))
	assert.Equal(t, 4, countRows(t, store, "Games"))
}

func TestRun_RejectedTranscriptIsNotLedgered(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "Empty", "Just some text with no players in it.\n")
	writeLog(t, dir, "Lonely", "@PAlice joined the game.\n")

	svc, store := newTestService(t, Options{})
	sum, err := svc.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Skipped)
	assert.Equal(t, 0, sum.Errored)
	require.Len(t, sum.Skips, 2)
	assert.Equal(t, gamelog.RejectUnrecognizedFormat, sum.Skips[0].Rejection.Cause)
	assert.Equal(t, 0, countRows(t, store, "Processed_Files"))
	assert.Nil(t, sum.Committed)
}

func TestRun_UnrecognizedLinePreserved(t *testing.T) {
	dir := t.TempDir()
	body := `@PAlice joined the game.
@PBob joined the game.
Turn 1: Alice
@PAlice plays @[Swamp@:1,1:@].
@PAlice casts @[Dark Ritual@:2,1:@].
Turn 2: Bob
@PBob plays @[Island@:3,1:@].
@PBob exiles @[Tormod's Crypt@:4,1:@] with a strange effect.
Turn 3: Alice
@PAlice casts @[Hypnotic Specter@:5,1:@].
@PBob has conceded from the game.
`
	writeLog(t, dir, "Turns", body)

	svc, store := newTestService(t, Options{})
	sum, err := svc.Run(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Parsed)

	plays, err := store.Plays().ForGame(context.Background(), "Turns", 1, "Alice")
	require.NoError(t, err)
	var turns []int
	for _, p := range plays {
		turns = append(turns, p.TurnNum)
	}
	assert.Equal(t, []int{1, 1, 2, 3}, turns)

	lines, err := store.Actions().Get(context.Background(), models.ActionLogKey{MatchID: "Turns", GameNum: 1})
	require.NoError(t, err)
	assert.Contains(t, lines, "@PBob exiles @[Tormod's Crypt@:4,1:@] with a strange effect.")
}

func TestRun_Reprocess(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "MatchA", matchA)

	svc, store := newTestService(t, Options{})
	_, err := svc.Run(context.Background(), dir)
	require.NoError(t, err)

	force := NewService(store, Options{Reprocess: true, Logger: zap.NewNop()})

	sum, err := force.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.New)
	assert.Equal(t, 1, sum.Parsed)
	require.NotNil(t, sum.Committed)
	assert.Zero(t, sum.Committed.Matches)
	assert.Zero(t, sum.Committed.Files)
	assert.Equal(t, 2, countRows(t, store, "Matches"))
}

func TestRun_ClassifiesArchetypes(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "MatchA", matchA)

	rulesPath := filepath.Join(t.TempDir(), "rules.toml")
	rules := "[[archetypes]]\nname = \"Burn\"\ncards = { \"Lightning Bolt\" = 1.0, \"Goblin Guide\" = 1.0 }\n"
	require.NoError(t, os.WriteFile(rulesPath, []byte(rules), 0o644))
	loaded, err := archetype.LoadRules(rulesPath)
	require.NoError(t, err)

	svc, store := newTestService(t, Options{Classifier: archetype.NewClassifier(loaded)})
	_, err = svc.Run(context.Background(), dir)
	require.NoError(t, err)

	bob, err := store.Matches().Get(context.Background(), "MatchA", "Bob")
	require.NoError(t, err)
	assert.Equal(t, models.NA, bob.P1Arch)
	assert.Equal(t, "Burn", bob.P2Arch)
}

func TestRun_MissingFolder(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	_, err := svc.Run(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "scan"))
}

func TestRun_CanceledContext(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "MatchA", matchA)

	svc, store := newTestService(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Run(ctx, dir)
	require.Error(t, err)
	assert.Equal(t, 0, countRows(t, store, "Processed_Files"))
}

// matchInProgress is matchA as written while the players sideboard for game 2.
const matchInProgress = `@PAlice joined the game.
@PBob joined the game.
@PAlice chooses to play first.
Turn 1: Alice
@PAlice casts @[Lightning Bolt@:104,1:@] targeting @PBob.
@PBob has conceded from the game.
@PAlice joined the game.
@PBob joined the game.
`

const matchRest = `@PBob chooses to play first.
Turn 1: Bob
@PBob plays @[Island@:103,1:@].
Turn 2: Alice
@PBob wins the game.
@PAlice joined the game.
@PBob joined the game.
@PAlice chooses to play first.
Turn 1: Alice
@PAlice casts @[Lightning Bolt@:104,1:@] targeting @PBob.
@PAlice wins the game.
`

func TestRun_SettleWaitsForMatchInProgress(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "Live", matchInProgress)

	now := modTime.Add(10 * time.Second)
	svc, store := newTestService(t, Options{
		Settle: time.Minute,
		Now:    func() time.Time { return now },
	})

	sum, err := svc.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Found)
	assert.Equal(t, 1, sum.Unsettled)
	assert.Equal(t, 0, sum.New)
	assert.Nil(t, sum.Committed)
	assert.Equal(t, 0, countRows(t, store, "Processed_Files"))

	// The match finishes and the log goes quiet.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(matchRest)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	finished := modTime.Add(5 * time.Minute)
	require.NoError(t, os.Chtimes(path, finished, finished))
	now = finished.Add(2 * time.Minute)

	sum, err = svc.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Unsettled)
	assert.Equal(t, 1, sum.Parsed)

	alice, err := store.Matches().Get(context.Background(), "Live", "Alice")
	require.NoError(t, err)
	assert.Equal(t, 2, alice.P1Wins)
	assert.Equal(t, 1, alice.P2Wins)
	assert.Equal(t, 6, countRows(t, store, "Games"))
}
