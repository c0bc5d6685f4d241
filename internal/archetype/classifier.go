// Package archetype labels decks from the cards a player was seen to play.
package archetype

import (
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/rotisserie/eris"

	"github.com/ramonehamilton/MTGO-Companion/internal/storage/models"
)

// Rule describes one archetype by the cards that signal it.
type Rule struct {
	Name         string             `toml:"name"`
	Subarchetype string             `toml:"subarchetype"`
	MinScore     float64            `toml:"min_score"` // Score needed to match (default 1)
	Cards        map[string]float64 `toml:"cards"`     // Card name -> weight
}

// Rules is the archetype rules file.
type Rules struct {
	Archetypes []Rule `toml:"archetypes"`
}

// Indicator is a seen card that counted towards the chosen archetype.
type Indicator struct {
	Card   string
	Weight float64
}

// Result is the outcome of classifying one player's cards.
type Result struct {
	Archetype    string
	Subarchetype string
	Score        float64
	Indicators   []Indicator // Sorted by weight, heaviest first
}

// Unknown is the result when no rule matches.
var Unknown = Result{Archetype: models.NA, Subarchetype: models.NA}

// Classifier assigns archetypes using signature card rules.
type Classifier struct {
	rules []Rule
	cards [][]string // Card names of each rule, sorted
}

// LoadRules reads an archetype rules file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read archetype rules %s", path)
	}

	var rules Rules
	if err := toml.Unmarshal(data, &rules); err != nil {
		return nil, eris.Wrapf(err, "parse archetype rules %s", path)
	}
	for i, r := range rules.Archetypes {
		if r.Name == "" {
			return nil, eris.Errorf("archetype rule %d has no name", i+1)
		}
		if len(r.Cards) == 0 {
			return nil, eris.Errorf("archetype %q lists no cards", r.Name)
		}
	}
	return &rules, nil
}

// NewClassifier creates a classifier. Rules earlier in the list win ties.
func NewClassifier(rules *Rules) *Classifier {
	c := &Classifier{}
	if rules == nil {
		return c
	}
	c.rules = make([]Rule, len(rules.Archetypes))
	copy(c.rules, rules.Archetypes)
	c.cards = make([][]string, len(c.rules))
	for i := range c.rules {
		names := make([]string, 0, len(c.rules[i].Cards))
		for card := range c.rules[i].Cards {
			names = append(names, card)
		}
		sort.Strings(names)
		c.cards[i] = names

		if c.rules[i].MinScore <= 0 {
			c.rules[i].MinScore = 1
		}
		if c.rules[i].Subarchetype == "" {
			c.rules[i].Subarchetype = models.NA
		}
	}
	return c
}

// Classify returns the best scoring archetype for a set of card names.
func (c *Classifier) Classify(cards map[string]struct{}) Result {
	best := Unknown
	for i, rule := range c.rules {
		var score float64
		var indicators []Indicator
		// Sorted order: float addition is not associative.
		for _, card := range c.cards[i] {
			if _, ok := cards[card]; ok {
				weight := rule.Cards[card]
				score += weight
				indicators = append(indicators, Indicator{Card: card, Weight: weight})
			}
		}
		if score < rule.MinScore || score <= best.Score {
			continue
		}

		sort.Slice(indicators, func(i, j int) bool {
			if indicators[i].Weight != indicators[j].Weight {
				return indicators[i].Weight > indicators[j].Weight
			}
			return indicators[i].Card < indicators[j].Card
		})
		best = Result{
			Archetype:    rule.Name,
			Subarchetype: rule.Subarchetype,
			Score:        score,
			Indicators:   indicators,
		}
	}
	return best
}

// ClassifyBatch fills in the archetype columns of every match in b from the
// cards each player revealed: every play except a draw counts, discards
// included. Columns that already hold a value are kept. b must not be
// inverted yet.
func (c *Classifier) ClassifyBatch(b *models.Batch) {
	if len(c.rules) == 0 {
		return
	}

	type seat struct{ match, player string }
	seen := make(map[seat]map[string]struct{})
	for _, p := range b.Plays {
		if p.PrimaryCard == models.NA || p.PrimaryCard == "" || p.Action == models.ActionDraws {
			continue
		}
		k := seat{p.MatchID, p.CastingPlayer}
		if seen[k] == nil {
			seen[k] = make(map[string]struct{})
		}
		seen[k][p.PrimaryCard] = struct{}{}
	}

	for i := range b.Matches {
		m := &b.Matches[i]
		if isUnset(m.P1Arch) {
			r := c.Classify(seen[seat{m.MatchID, m.P1}])
			m.P1Arch, m.P1Subarch = r.Archetype, r.Subarchetype
		}
		if isUnset(m.P2Arch) {
			r := c.Classify(seen[seat{m.MatchID, m.P2}])
			m.P2Arch, m.P2Subarch = r.Archetype, r.Subarchetype
		}
	}
}

func isUnset(s string) bool {
	return s == "" || s == models.NA
}
