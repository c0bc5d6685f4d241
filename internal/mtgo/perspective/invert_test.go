package perspective

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/MTGO-Companion/internal/storage/models"
)

func sampleBatch() models.Batch {
	return models.Batch{
		Matches: []models.Match{
			{
				MatchID: "m1", DraftID: models.NA,
				P1: "Alice", P1Arch: "Burn", P1Subarch: "Boros",
				P2: "Bob", P2Arch: "Tempo", P2Subarch: models.NA,
				P1Roll: 6, P2Roll: 2, RollWinner: models.LabelP1,
				P1Wins: 2, P2Wins: 1, MatchWinner: models.LabelP1,
				Format: "Modern", LimitedFormat: models.NA, MatchType: "League",
				Date: "2024-03-09 18:30:00",
			},
			{
				MatchID: "m2", DraftID: "d7",
				P1: "Carol", P1Arch: models.NA, P1Subarch: models.NA,
				P2: "Alice", P2Arch: models.NA, P2Subarch: models.NA,
				RollWinner: models.NA, P1Wins: 0, P2Wins: 1, MatchWinner: models.LabelP2,
				Format: models.NA, LimitedFormat: "Draft", MatchType: models.NA,
				Date: "2024-03-10 09:00:00",
			},
		},
		Games: []models.Game{
			{MatchID: "m1", P1: "Alice", P2: "Bob", GameNum: 1, PDSelector: models.LabelP1, PDChoice: models.ChoicePlay,
				OnPlay: models.LabelP1, OnDraw: models.LabelP2, P1Mulls: 0, P2Mulls: 2, Turns: 7, GameWinner: models.LabelP1},
			{MatchID: "m1", P1: "Alice", P2: "Bob", GameNum: 2, PDSelector: models.LabelP2, PDChoice: models.ChoiceDraw,
				OnPlay: models.LabelP1, OnDraw: models.LabelP2, P1Mulls: 1, P2Mulls: 0, Turns: 9, GameWinner: models.LabelP2},
			{MatchID: "m2", P1: "Carol", P2: "Alice", GameNum: 1, PDSelector: models.NA, PDChoice: models.NA,
				OnPlay: models.LabelP2, OnDraw: models.LabelP1, Turns: 4, GameWinner: models.LabelP2},
		},
		Plays: []models.Play{
			{MatchID: "m1", GameNum: 1, PlayNum: 1, TurnNum: 1, CastingPlayer: "Alice", Action: models.ActionCasts,
				PrimaryCard: "Lightning Bolt", Target1: "Bob", Target2: models.NA, Target3: models.NA,
				OppTarget: true, ActivePlayer: models.LabelP1, NonactivePlayer: models.LabelP2, P1: "Alice"},
			{MatchID: "m1", GameNum: 1, PlayNum: 2, TurnNum: 2, CastingPlayer: "Bob", Action: models.ActionDraws,
				PrimaryCard: models.NA, Target1: models.NA, Target2: models.NA, Target3: models.NA, CardsDrawn: 1,
				ActivePlayer: models.LabelP2, NonactivePlayer: models.LabelP1, P1: "Alice"},
			{MatchID: "m2", GameNum: 1, PlayNum: 1, TurnNum: 0, CastingPlayer: "Carol", Action: models.ActionTriggers,
				PrimaryCard: "Leyline of Sanctity", Target1: models.NA, Target2: models.NA, Target3: models.NA,
				ActivePlayer: models.NA, NonactivePlayer: models.NA, P1: "Carol"},
		},
		Actions: []models.ActionLog{
			{Key: models.ActionLogKey{MatchID: "m1", GameNum: 1}, Lines: []string{"a"}},
			{Key: models.ActionLogKey{MatchID: "m1", GameNum: 2}, Lines: []string{"b"}},
			{Key: models.ActionLogKey{MatchID: "m2", GameNum: 1}, Lines: []string{"c"}},
		},
	}
}

func TestMirrorMatch(t *testing.T) {
	m := sampleBatch().Matches[0]
	got := MirrorMatch(m)

	assert.Equal(t, "Bob", got.P1)
	assert.Equal(t, "Alice", got.P2)
	assert.Equal(t, "Tempo", got.P1Arch)
	assert.Equal(t, "Boros", got.P2Subarch)
	assert.Equal(t, 2, got.P1Roll)
	assert.Equal(t, 6, got.P2Roll)
	assert.Equal(t, models.LabelP2, got.RollWinner)
	assert.Equal(t, 1, got.P1Wins)
	assert.Equal(t, 2, got.P2Wins)
	assert.Equal(t, models.LabelP2, got.MatchWinner)

	// Shared attributes are untouched.
	assert.Equal(t, m.MatchID, got.MatchID)
	assert.Equal(t, m.Format, got.Format)
	assert.Equal(t, m.MatchType, got.MatchType)
	assert.Equal(t, m.Date, got.Date)
}

func TestMirrorGame(t *testing.T) {
	g := sampleBatch().Games[0]
	got := MirrorGame(g)

	assert.Equal(t, "Bob", got.P1)
	assert.Equal(t, "Alice", got.P2)
	assert.Equal(t, models.LabelP2, got.PDSelector)
	assert.Equal(t, models.ChoicePlay, got.PDChoice)
	assert.Equal(t, models.LabelP2, got.OnPlay)
	assert.Equal(t, models.LabelP1, got.OnDraw)
	assert.Equal(t, 2, got.P1Mulls)
	assert.Equal(t, 0, got.P2Mulls)
	assert.Equal(t, models.LabelP2, got.GameWinner)
	assert.Equal(t, g.GameNum, got.GameNum)
	assert.Equal(t, g.Turns, got.Turns)
}

func TestMirrorPlay(t *testing.T) {
	p := sampleBatch().Plays[0]
	got := MirrorPlay(p, "Bob")

	assert.Equal(t, "Bob", got.P1)
	assert.Equal(t, "Alice", got.CastingPlayer)
	assert.False(t, got.OppTarget)
	assert.True(t, got.SelfTarget)
	assert.Equal(t, models.LabelP2, got.ActivePlayer)
	assert.Equal(t, models.LabelP1, got.NonactivePlayer)
	assert.Equal(t, p.PrimaryCard, got.PrimaryCard)
	assert.Equal(t, p.Target1, got.Target1)
}

func TestInvert_DoublesRows(t *testing.T) {
	b := sampleBatch()
	out := Invert(b)

	require.Len(t, out.Matches, 4)
	require.Len(t, out.Games, 6)
	require.Len(t, out.Plays, 6)
	assert.Len(t, out.Actions, 3, "action logs are not duplicated per perspective")

	// Originals first, mirrors after, in batch order.
	assert.Equal(t, b.Matches, out.Matches[:2])
	assert.Equal(t, "Bob", out.Matches[2].P1)
	assert.Equal(t, "Alice", out.Matches[3].P1)

	assert.Equal(t, "Bob", out.Plays[3].P1)
	assert.Equal(t, "Bob", out.Plays[4].P1)
	assert.Equal(t, "Alice", out.Plays[5].P1)
}

func TestInvert_EveryPlayerIsPrimary(t *testing.T) {
	out := Invert(sampleBatch())

	primaries := map[string][]string{}
	for _, m := range out.Matches {
		primaries[m.P1] = append(primaries[m.P1], m.MatchID)
	}
	assert.ElementsMatch(t, []string{"m1", "m2"}, primaries["Alice"])
	assert.ElementsMatch(t, []string{"m1"}, primaries["Bob"])
	assert.ElementsMatch(t, []string{"m2"}, primaries["Carol"])

	// (MatchID, P1) stays unique.
	seen := map[[2]string]bool{}
	for _, m := range out.Matches {
		key := [2]string{m.MatchID, m.P1}
		assert.False(t, seen[key], "duplicate match row %v", key)
		seen[key] = true
	}
}

func TestMirror_IsInvolution(t *testing.T) {
	b := sampleBatch()
	assert.Equal(t, b, Mirror(Mirror(b)))

	inverted := Invert(b)
	assert.Equal(t, inverted, Mirror(Mirror(inverted)))
}

func TestInvert_MirroredHalfRestoresOriginal(t *testing.T) {
	b := sampleBatch()
	out := Invert(b)

	mirrored := models.Batch{
		Matches: out.Matches[len(b.Matches):],
		Games:   out.Games[len(b.Games):],
		Plays:   out.Plays[len(b.Plays):],
		Actions: out.Actions,
	}
	back := Mirror(mirrored)

	assert.Equal(t, b.Matches, back.Matches)
	assert.Equal(t, b.Games, back.Games)
	assert.Equal(t, b.Plays, back.Plays)
}

func TestInvert_RowSetClosedUnderMirror(t *testing.T) {
	out := Invert(sampleBatch())
	flipped := Mirror(out)

	assert.ElementsMatch(t, out.Matches, flipped.Matches)
	assert.ElementsMatch(t, out.Games, flipped.Games)
	assert.ElementsMatch(t, out.Plays, flipped.Plays)
}

func TestDedupeActions_LastWriteWins(t *testing.T) {
	key := models.ActionLogKey{MatchID: "m1", GameNum: 1}
	logs := []models.ActionLog{
		{Key: key, Lines: []string{"old"}},
		{Key: models.ActionLogKey{MatchID: "m1", GameNum: 2}, Lines: []string{"other"}},
		{Key: key, Lines: []string{"new"}},
	}

	got := DedupeActions(logs)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"new"}, got[0].Lines)
	assert.Equal(t, []string{"other"}, got[1].Lines)
}

func TestInvert_Empty(t *testing.T) {
	out := Invert(models.Batch{})
	assert.True(t, out.Empty())
	assert.Empty(t, out.Games)
	assert.Empty(t, out.Plays)
	assert.Empty(t, out.Actions)
}
