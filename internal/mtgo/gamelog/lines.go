package gamelog

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// namePat matches an MTGO screen name without a trailing dot, so sentence
// punctuation is left out of the match. subjectPat is used where a verb
// follows the name and keeps a trailing dot ("@PJ.R. casts").
const (
	namePat    = `[^\s.,;:'@\[\]]+(?:\.[^\s.,;:'@\[\]]+)*`
	subjectPat = namePat + `\.?`
)

var (
	reJoined   = regexp.MustCompile(`^@P(` + subjectPat + `) joined the game`)
	reRolled   = regexp.MustCompile(`^@P(` + subjectPat + `) rolled a (\d+)`)
	reChooses  = regexp.MustCompile(`^@P(` + subjectPat + `) chooses to (not )?play first`)
	reMulligan = regexp.MustCompile(`^@P(` + subjectPat + `) mulligans to (\w+) cards?`)
	reBegins   = regexp.MustCompile(`^@P(` + subjectPat + `) begins the game with (\w+) cards? in hand`)
	reTurn     = regexp.MustCompile(`^Turn (\d+):\s*(?:@P)?(` + namePat + `)`)
	reWins     = regexp.MustCompile(`^@P(` + subjectPat + `) wins the game`)
	reLoses    = regexp.MustCompile(`^@P(` + subjectPat + `) (?:has conceded|has lost the game|loses the game)`)
	reDraw     = regexp.MustCompile(`(?i)^the game is a draw`)

	reCardAction = regexp.MustCompile(`^@P(` + subjectPat + `) (plays|casts|discards) (.*)$`)
	reActivates  = regexp.MustCompile(`^@P(` + subjectPat + `) activates an ability of (.*)$`)
	reTriggers   = regexp.MustCompile(`^@P(` + subjectPat + `)'s (.*?) triggers(.*)$`)
	reAttacked   = regexp.MustCompile(`^@P(` + subjectPat + `) is being attacked by (.*)$`)
	reDraws      = regexp.MustCompile(`^@P(` + subjectPat + `) draws (\w+) cards?`)

	// reRef matches a card reference (@[Name@:ids:@]) or a player reference (@PName).
	reRef = regexp.MustCompile(`@\[([^@\]]+)(?:@:[^\]]*)?\]|@P(` + namePat + `)`)

	// reLegacy matches game log phrasing in transcripts that lack @P markers.
	reLegacy = regexp.MustCompile(`(?i)joined the game|rolled a \d|chooses to (?:not )?play first|wins the game`)
)

var numberWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// parseCount reads "a", "two", "7" and the like. ok is false for anything else.
func parseCount(word string) (int, bool) {
	word = strings.ToLower(word)
	if n, ok := numberWords[word]; ok {
		return n, true
	}
	n, err := strconv.Atoi(word)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// cleanLine drops control characters left between entries by the client
// and trims surrounding whitespace.
func cleanLine(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\t':
			return ' '
		case r < 0x20, r == 0x7f, r >= 0x80 && r < 0xa0, r == utf8.RuneError:
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// reference is a card or player mentioned in a line, in order of appearance.
type reference struct {
	name   string
	player bool
}

func references(s string) []reference {
	var refs []reference
	for _, m := range reRef.FindAllStringSubmatch(s, -1) {
		if m[1] != "" {
			refs = append(refs, reference{name: strings.TrimSpace(m[1])})
			continue
		}
		refs = append(refs, reference{name: m[2], player: true})
	}
	return refs
}

func firstCard(refs []reference) string {
	for _, r := range refs {
		if !r.player {
			return r.name
		}
	}
	return ""
}

func countCards(refs []reference) int {
	n := 0
	for _, r := range refs {
		if !r.player {
			n++
		}
	}
	return n
}

// splitTargeting separates the subject of an action from its targets.
func splitTargeting(s string) (subject, targets string) {
	subject, targets, _ = strings.Cut(s, " targeting ")
	return subject, targets
}
