package gamelog

import (
	"fmt"

	"github.com/ramonehamilton/MTGO-Companion/internal/storage/models"
)

// RejectCause enumerates the policy reasons a transcript is skipped.
type RejectCause int

const (
	// RejectUnsupportedVersion is a log written by a client version whose
	// grammar is not understood (no @P player markers).
	RejectUnsupportedVersion RejectCause = iota + 1

	// RejectUnrecognizedFormat is input with no recognizable game log line.
	RejectUnrecognizedFormat

	// RejectNoGames is a transcript in which no game was started.
	RejectNoGames

	// RejectUnknownPlayers means both player names could not be determined.
	RejectUnknownPlayers

	// RejectTooManyPlayers is a multiplayer game.
	RejectTooManyPlayers

	// RejectUnsupportedResult is a game that ended in a draw.
	RejectUnsupportedResult
)

// String returns a human readable cause.
func (c RejectCause) String() string {
	switch c {
	case RejectUnsupportedVersion:
		return "unsupported log version"
	case RejectUnrecognizedFormat:
		return "format unrecognized"
	case RejectNoGames:
		return "no games found"
	case RejectUnknownPlayers:
		return "players could not be determined"
	case RejectTooManyPlayers:
		return "more than two players"
	case RejectUnsupportedResult:
		return "unsupported game result"
	default:
		return "unknown rejection"
	}
}

// Rejection explains why a transcript was skipped.
type Rejection struct {
	Cause  RejectCause
	Detail string
}

// String formats the rejection for logs and summaries.
func (r *Rejection) String() string {
	if r.Detail == "" {
		return r.Cause.String()
	}
	return fmt.Sprintf("%s: %s", r.Cause, r.Detail)
}

// Result holds exactly one of a parsed match or a rejection.
type Result struct {
	Parsed    *models.ParsedMatch
	Rejection *Rejection
}

// Rejected reports whether the transcript was skipped by policy.
func (r Result) Rejected() bool {
	return r.Rejection != nil
}

func parsed(pm *models.ParsedMatch) Result {
	return Result{Parsed: pm}
}

func rejected(cause RejectCause, detail string) Result {
	return Result{Rejection: &Rejection{Cause: cause, Detail: detail}}
}

// MalformedError is returned when a transcript cannot be interpreted safely,
// e.g. it stops in the middle of a game.
type MalformedError struct {
	Filename string
	Line     int // 1-based line number, 0 when not tied to a line
	Cause    string
}

func (e *MalformedError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed transcript %s (line %d): %s", e.Filename, e.Line, e.Cause)
	}
	return fmt.Sprintf("malformed transcript %s: %s", e.Filename, e.Cause)
}
