// Package perspective mirrors parsed matches so every match can be queried
// from either player's point of view.
//
// A transcript is anchored to the player who appears first in it. Invert
// emits each row twice: once as parsed and once with every player-specific
// column swapped, so "WHERE P1 = ?" finds every match a player took part in.
package perspective

import (
	"github.com/ramonehamilton/MTGO-Companion/internal/storage/models"
)

// swapLabel exchanges the P1 and P2 labels and leaves sentinels untouched.
func swapLabel(label string) string {
	switch label {
	case models.LabelP1:
		return models.LabelP2
	case models.LabelP2:
		return models.LabelP1
	default:
		return label
	}
}

// MirrorMatch returns the match as seen by its second player.
func MirrorMatch(m models.Match) models.Match {
	out := m
	out.P1, out.P2 = m.P2, m.P1
	out.P1Arch, out.P2Arch = m.P2Arch, m.P1Arch
	out.P1Subarch, out.P2Subarch = m.P2Subarch, m.P1Subarch
	out.P1Roll, out.P2Roll = m.P2Roll, m.P1Roll
	out.P1Wins, out.P2Wins = m.P2Wins, m.P1Wins
	out.RollWinner = swapLabel(m.RollWinner)
	out.MatchWinner = swapLabel(m.MatchWinner)
	return out
}

// MirrorGame returns the game as seen by its second player.
func MirrorGame(g models.Game) models.Game {
	out := g
	out.P1, out.P2 = g.P2, g.P1
	out.P1Mulls, out.P2Mulls = g.P2Mulls, g.P1Mulls
	out.PDSelector = swapLabel(g.PDSelector)
	out.OnPlay = swapLabel(g.OnPlay)
	out.OnDraw = swapLabel(g.OnDraw)
	out.GameWinner = swapLabel(g.GameWinner)
	return out
}

// MirrorPlay returns the play as seen by the other player. p2 is the name of
// the player who becomes primary.
func MirrorPlay(p models.Play, p2 string) models.Play {
	out := p
	out.P1 = p2
	out.OppTarget, out.SelfTarget = p.SelfTarget, p.OppTarget
	out.ActivePlayer = swapLabel(p.ActivePlayer)
	out.NonactivePlayer = swapLabel(p.NonactivePlayer)
	return out
}

// Invert returns a batch holding every row of b followed by its mirror.
// Matches, games and plays double; action logs are perspective free and are
// passed through once per (match, game), keeping the last write for a key.
func Invert(b models.Batch) models.Batch {
	out := models.Batch{
		Matches: make([]models.Match, 0, 2*len(b.Matches)),
		Games:   make([]models.Game, 0, 2*len(b.Games)),
		Plays:   make([]models.Play, 0, 2*len(b.Plays)),
	}

	// Plays carry only the primary name, so the opponent comes from the match.
	opponents := make(map[string]map[string]string, len(b.Matches))
	for _, m := range b.Matches {
		out.Matches = append(out.Matches, m)
		if opponents[m.MatchID] == nil {
			opponents[m.MatchID] = make(map[string]string, 2)
		}
		opponents[m.MatchID][m.P1] = m.P2
	}
	for _, m := range b.Matches {
		out.Matches = append(out.Matches, MirrorMatch(m))
	}

	out.Games = append(out.Games, b.Games...)
	for _, g := range b.Games {
		out.Games = append(out.Games, MirrorGame(g))
	}

	out.Plays = append(out.Plays, b.Plays...)
	for _, p := range b.Plays {
		out.Plays = append(out.Plays, MirrorPlay(p, opponents[p.MatchID][p.P1]))
	}

	out.Actions = DedupeActions(b.Actions)
	return out
}

// DedupeActions keeps one action log per (match, game), in first-seen order,
// holding the value of the last write for that key.
func DedupeActions(logs []models.ActionLog) []models.ActionLog {
	index := make(map[models.ActionLogKey]int, len(logs))
	out := make([]models.ActionLog, 0, len(logs))
	for _, l := range logs {
		if i, ok := index[l.Key]; ok {
			out[i] = l
			continue
		}
		index[l.Key] = len(out)
		out = append(out, l)
	}
	return out
}

// Mirror flips every row of an already materialized batch to the other
// perspective. Applying it twice returns the original batch.
func Mirror(b models.Batch) models.Batch {
	out := models.Batch{
		Matches: make([]models.Match, 0, len(b.Matches)),
		Games:   make([]models.Game, 0, len(b.Games)),
		Plays:   make([]models.Play, 0, len(b.Plays)),
		Actions: b.Actions,
	}

	opponents := make(map[string]map[string]string, len(b.Matches))
	for _, m := range b.Matches {
		out.Matches = append(out.Matches, MirrorMatch(m))
		if opponents[m.MatchID] == nil {
			opponents[m.MatchID] = make(map[string]string, 2)
		}
		opponents[m.MatchID][m.P1] = m.P2
	}
	for _, g := range b.Games {
		out.Games = append(out.Games, MirrorGame(g))
	}
	for _, p := range b.Plays {
		out.Plays = append(out.Plays, MirrorPlay(p, opponents[p.MatchID][p.P1]))
	}
	return out
}
