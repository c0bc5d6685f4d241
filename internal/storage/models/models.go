// Package models defines the records recovered from MTGO game logs and
// persisted by the storage layer.
package models

import "time"

// NA marks a field that does not apply or could not be determined.
// Aggregate queries filter on it, so it is used instead of empty strings.
const NA = "NA"

// Perspective labels. Winner, selector and active-player columns store one of
// these relative to the row's primary player (P1).
const (
	LabelP1 = "P1"
	LabelP2 = "P2"
)

// Play/draw choices.
const (
	ChoicePlay = "Play"
	ChoiceDraw = "Draw"
)

// Action kinds recorded in the Plays table.
const (
	ActionLandDrop  = "Land Drop"
	ActionCasts     = "Casts"
	ActionActivated = "Activated Ability"
	ActionTriggers  = "Triggers"
	ActionAttacks   = "Attacks"
	ActionDraws     = "Draws"
	ActionDiscards  = "Discards"
)

// DateLayout is the layout used for Matches.Date and Processed_Files.Processed_Date.
const DateLayout = "2006-01-02 15:04:05"

// Match is one row of the Matches table.
// The pair (MatchID, P1) is unique.
type Match struct {
	MatchID       string `csv:"Match_ID" json:"match_id"`
	DraftID       string `csv:"Draft_ID" json:"draft_id"`
	P1            string `csv:"P1" json:"p1"`
	P1Arch        string `csv:"P1_Arch" json:"p1_arch"`
	P1Subarch     string `csv:"P1_Subarch" json:"p1_subarch"`
	P2            string `csv:"P2" json:"p2"`
	P2Arch        string `csv:"P2_Arch" json:"p2_arch"`
	P2Subarch     string `csv:"P2_Subarch" json:"p2_subarch"`
	P1Roll        int    `csv:"P1_Roll" json:"p1_roll"`
	P2Roll        int    `csv:"P2_Roll" json:"p2_roll"`
	RollWinner    string `csv:"Roll_Winner" json:"roll_winner"` // P1, P2 or NA
	P1Wins        int    `csv:"P1_Wins" json:"p1_wins"`
	P2Wins        int    `csv:"P2_Wins" json:"p2_wins"`
	MatchWinner   string `csv:"Match_Winner" json:"match_winner"` // P1, P2 or NA
	Format        string `csv:"Format" json:"format"`
	LimitedFormat string `csv:"Limited_Format" json:"limited_format"`
	MatchType     string `csv:"Match_Type" json:"match_type"`
	Date          string `csv:"Date" json:"date"`
}

// Game is one row of the Games table.
// GameNum is unique within (MatchID, P1).
type Game struct {
	MatchID    string
	P1         string
	P2         string
	GameNum    int
	PDSelector string // P1, P2 or NA
	PDChoice   string // Play, Draw or NA
	OnPlay     string // P1 or P2
	OnDraw     string // P1 or P2
	P1Mulls    int
	P2Mulls    int
	Turns      int
	GameWinner string // P1 or P2
}

// Play is one row of the Plays table.
// PlayNum is contiguous and strictly increasing within a game; TurnNum never decreases.
type Play struct {
	MatchID         string
	GameNum         int
	PlayNum         int
	TurnNum         int
	CastingPlayer   string
	Action          string
	PrimaryCard     string
	Target1         string
	Target2         string
	Target3         string
	OppTarget       bool // targeted P1's opponent
	SelfTarget      bool // targeted P1
	CardsDrawn      int
	Attackers       int
	ActivePlayer    string // P1 or P2
	NonactivePlayer string // P1 or P2
	P1              string
}

// ActionLogKey identifies one game of one match.
type ActionLogKey struct {
	MatchID string
	GameNum int
}

// ActionLog is the bounded raw-line capture of a single game.
type ActionLog struct {
	Key   ActionLogKey
	Lines []string
}

// ProcessedFile is one row of the Processed_Files ledger.
type ProcessedFile struct {
	Filename      string
	MatchID       string
	ProcessedDate time.Time
}

// ParsedMatch is everything recovered from one transcript, anchored to the
// player who appears first in it.
type ParsedMatch struct {
	Match   Match
	Games   []Game
	Plays   []Play
	Actions []ActionLog
}

// Batch is an ordered collection of rows bound for a single commit.
type Batch struct {
	Matches []Match
	Games   []Game
	Plays   []Play
	Actions []ActionLog
}

// Append adds a parsed match to the batch, preserving order.
func (b *Batch) Append(pm *ParsedMatch) {
	b.Matches = append(b.Matches, pm.Match)
	b.Games = append(b.Games, pm.Games...)
	b.Plays = append(b.Plays, pm.Plays...)
	b.Actions = append(b.Actions, pm.Actions...)
}

// Empty reports whether the batch has no matches.
func (b *Batch) Empty() bool {
	return len(b.Matches) == 0
}

// DatabaseSummary holds row counts reported after an ingest run.
type DatabaseSummary struct {
	ProcessedFiles int
	UniqueMatches  int
	Games          int
	Plays          int
	Location       string
}

// PlayerRecord is a read-only summary of one player's results.
type PlayerRecord struct {
	Player      string
	Matches     int
	MatchWins   int
	MatchLosses int
	GameWins    int
	GameLosses  int
	FirstDate   string
	LastDate    string
}

// RecentMatch is one line of the recent-matches listing.
type RecentMatch struct {
	Date     string
	Opponent string
	Won      bool
	P1Wins   int
	P2Wins   int
}

// DailyRecord aggregates match results per calendar day.
type DailyRecord struct {
	Day     string
	Matches int
	Wins    int
	Losses  int
}

// CardCount is a card with how many times it was cast.
type CardCount struct {
	Card  string
	Count int
}

// ScoreCount is how many matches ended with a given score.
type ScoreCount struct {
	Wins    int
	Losses  int
	Matches int
}

// MulliganRecord aggregates game results by the primary player's mulligans.
type MulliganRecord struct {
	Mulligans int
	Games     int
	Wins      int
}

// TurnBucket aggregates game results by game length.
type TurnBucket struct {
	Label string
	Games int
	Wins  int
}

// CardWinRate is how often the primary player won games in which they cast a
// card.
type CardWinRate struct {
	Card  string
	Games int
	Wins  int
}
