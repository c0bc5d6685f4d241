// Package stats derives player statistics that are simpler to compute in Go
// than in SQL.
package stats

import (
	"fmt"

	"github.com/ramonehamilton/MTGO-Companion/internal/storage/models"
)

// Streaks summarizes consecutive match results.
type Streaks struct {
	Current     int // positive for wins, negative for losses
	LongestWin  int
	LongestLoss int
}

// CalculateStreaks computes win and loss streaks from matches seen from the
// primary player's side, ordered oldest to newest. A match without a winner
// ends any streak.
func CalculateStreaks(matches []models.Match) Streaks {
	var s Streaks
	wins, losses := 0, 0

	for _, m := range matches {
		switch m.MatchWinner {
		case models.LabelP1:
			wins++
			losses = 0
			s.LongestWin = max(s.LongestWin, wins)
		case models.LabelP2:
			losses++
			wins = 0
			s.LongestLoss = max(s.LongestLoss, losses)
		default:
			wins, losses = 0, 0
		}
	}

	switch {
	case wins > 0:
		s.Current = wins
	case losses > 0:
		s.Current = -losses
	}
	return s
}

// FormatCurrentStreak returns a human-readable string for the current streak.
func FormatCurrentStreak(streak int) string {
	switch {
	case streak == 0:
		return "No active streak"
	case streak == 1:
		return "1 win streak"
	case streak > 1:
		return fmt.Sprintf("%d win streak", streak)
	case streak == -1:
		return "1 loss streak"
	default:
		return fmt.Sprintf("%d loss streak", -streak)
	}
}
