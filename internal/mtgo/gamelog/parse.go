// Package gamelog reads and parses MTGO match transcripts (Match_GameLog_*.dat).
//
// A transcript is a human readable record of every game in a match. Player
// references are written as @PName and card references as @[Card Name@:ids:@].
// The parser is a line oriented state machine; lines it does not understand are
// kept in the per-game raw action buffer and otherwise ignored.
package gamelog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ramonehamilton/MTGO-Companion/internal/storage/models"
)

// Options tunes the parser.
type Options struct {
	// ActionLogLines is how many raw lines are retained per game.
	// Default: 15
	ActionLogLines int
}

// DefaultOptions returns the parser defaults.
func DefaultOptions() Options {
	return Options{ActionLogLines: DefaultActionLogLines}
}

type parseState int

const (
	stateAwaitingMatchHeader parseState = iota
	stateInGame
	stateInTurn
	stateTerminal
)

const noPlayer = -1

type gameState struct {
	num         int
	selector    int
	choice      string
	mulls       [2]int
	turn        int
	active      int
	firstActive int
	winner      int
	plays       []pendingPlay
	buffer      *actionBuffer

	// started is set by the first game line other than a join or a roll.
	started bool
}

// stub reports whether the game holds nothing but join lines, as written
// when a player rejoins after the last game.
func (g *gameState) stub() bool {
	return !g.started
}

type pendingPlay struct {
	play          models.Play
	active        int
	playerTargets []string
}

type parser struct {
	t          Transcript
	opts       Options
	players    []string
	rolls      [2]int
	state      parseState
	games      []*gameState
	cur        *gameState
	pending    []string
	recognized int
	lineNo     int
}

// Parse parses a transcript with the default options.
func Parse(t Transcript) (Result, error) {
	return ParseWithOptions(t, DefaultOptions())
}

// ParseWithOptions turns one transcript into a parsed match or a rejection.
// The returned error is always a *MalformedError; any other failure inside the
// parser, including a panic, is reported the same way.
func ParseWithOptions(t Transcript, opts Options) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = &MalformedError{Filename: t.Filename, Cause: fmt.Sprintf("parser fault: %v", r)}
		}
	}()

	if opts.ActionLogLines <= 0 {
		opts.ActionLogLines = DefaultActionLogLines
	}

	p := &parser{t: t, opts: opts, state: stateAwaitingMatchHeader}
	return p.run()
}

func (p *parser) run() (Result, error) {
	if !strings.Contains(p.t.Text, "@P") {
		if reLegacy.MatchString(p.t.Text) {
			return rejected(RejectUnsupportedVersion, "no @P player markers"), nil
		}
		return rejected(RejectUnrecognizedFormat, ""), nil
	}

	text := strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(p.t.Text)
	for i, raw := range strings.Split(text, "\n") {
		line := cleanLine(raw)
		if line == "" {
			continue
		}
		p.lineNo = i + 1

		rej, err := p.handle(line)
		if err != nil {
			return Result{}, err
		}
		if rej != nil {
			return Result{Rejection: rej}, nil
		}
	}

	return p.finish()
}

func (p *parser) malformed(format string, args ...any) error {
	return &MalformedError{Filename: p.t.Filename, Line: p.lineNo, Cause: fmt.Sprintf(format, args...)}
}

// register returns the index of a player, adding it if there is room.
func (p *parser) register(name string) (int, *Rejection) {
	for i, known := range p.players {
		if known == name {
			return i, nil
		}
	}
	if len(p.players) == 2 {
		return noPlayer, &Rejection{Cause: RejectTooManyPlayers, Detail: fmt.Sprintf("third player %q", name)}
	}
	p.players = append(p.players, name)
	return len(p.players) - 1, nil
}

// canonical resolves a player reference that lost its trailing dot to
// sentence punctuation ("targeting @PJ.R.").
func (p *parser) canonical(name string) string {
	for _, known := range p.players {
		if known == name {
			return name
		}
	}
	for _, known := range p.players {
		if known == name+"." {
			return known
		}
	}
	return name
}

func (p *parser) opponent(idx int) int {
	if len(p.players) < 2 || idx == noPlayer {
		return noPlayer
	}
	return 1 - idx
}

func (p *parser) gameOpen() bool {
	return p.state == stateInGame || p.state == stateInTurn
}

func (p *parser) openGame() {
	g := &gameState{
		num:         len(p.games) + 1,
		selector:    noPlayer,
		active:      noPlayer,
		firstActive: noPlayer,
		winner:      noPlayer,
		buffer:      newActionBuffer(p.opts.ActionLogLines),
	}
	// Lines seen before the first game belong to it.
	for _, l := range p.pending {
		g.buffer.add(l)
	}
	p.pending = nil

	p.games = append(p.games, g)
	p.cur = g
	p.state = stateInGame
}

func (p *parser) ensureGame() {
	if !p.gameOpen() {
		p.openGame()
	}
}

func (p *parser) record(line string) {
	if p.cur == nil {
		p.pending = append(p.pending, line)
		return
	}
	p.cur.buffer.add(line)
}

func (p *parser) handle(line string) (*Rejection, error) {
	rej, err := p.interpret(line)
	if rej != nil || err != nil {
		return rej, err
	}
	p.record(line)
	return nil, nil
}

// interpret updates structured state for a recognized line. Unrecognized lines
// fall through untouched.
func (p *parser) interpret(line string) (*Rejection, error) {
	if m := reJoined.FindStringSubmatch(line); m != nil {
		if _, rej := p.register(m[1]); rej != nil {
			return rej, nil
		}
		p.recognized++
		p.ensureGame()
		return nil, nil
	}

	if m := reRolled.FindStringSubmatch(line); m != nil {
		idx, rej := p.register(m[1])
		if rej != nil {
			return rej, nil
		}
		p.recognized++
		if n, err := strconv.Atoi(m[2]); err == nil {
			p.rolls[idx] = n
		}
		return nil, nil
	}

	if m := reChooses.FindStringSubmatch(line); m != nil {
		idx, rej := p.register(m[1])
		if rej != nil {
			return rej, nil
		}
		p.recognized++
		p.ensureGame()
		p.cur.started = true
		if p.cur.selector == noPlayer {
			p.cur.selector = idx
			p.cur.choice = models.ChoicePlay
			if m[2] != "" {
				p.cur.choice = models.ChoiceDraw
			}
		}
		return nil, nil
	}

	if m := reMulligan.FindStringSubmatch(line); m != nil {
		idx, rej := p.register(m[1])
		if rej != nil {
			return rej, nil
		}
		p.recognized++
		p.ensureGame()
		p.cur.started = true
		p.cur.mulls[idx]++
		return nil, nil
	}

	if m := reBegins.FindStringSubmatch(line); m != nil {
		idx, rej := p.register(m[1])
		if rej != nil {
			return rej, nil
		}
		p.recognized++
		p.ensureGame()
		p.cur.started = true
		if n, ok := parseCount(m[2]); ok && n <= 7 && 7-n > p.cur.mulls[idx] {
			p.cur.mulls[idx] = 7 - n
		}
		return nil, nil
	}

	if m := reTurn.FindStringSubmatch(line); m != nil {
		return nil, p.turn(m[1], m[2])
	}

	if m := reWins.FindStringSubmatch(line); m != nil {
		idx, rej := p.register(m[1])
		if rej != nil {
			return rej, nil
		}
		p.recognized++
		p.finishGame(idx)
		return nil, nil
	}

	if m := reLoses.FindStringSubmatch(line); m != nil {
		idx, rej := p.register(m[1])
		if rej != nil {
			return rej, nil
		}
		p.recognized++
		p.finishGame(p.opponent(idx))
		return nil, nil
	}

	if reDraw.MatchString(line) {
		game := len(p.games)
		return &Rejection{Cause: RejectUnsupportedResult, Detail: fmt.Sprintf("game %d ended in a draw", game)}, nil
	}

	return p.action(line)
}

func (p *parser) turn(number, name string) error {
	k, err := strconv.Atoi(number)
	if err != nil {
		return p.malformed("invalid turn number %q", number)
	}

	name = p.canonical(name)
	idx := noPlayer
	for i, known := range p.players {
		if known == name {
			idx = i
		}
	}
	if idx == noPlayer {
		if len(p.players) == 2 {
			return p.malformed("turn %d belongs to %q, who is not in this match", k, name)
		}
		p.players = append(p.players, name)
		idx = len(p.players) - 1
	}

	p.recognized++
	p.ensureGame()
	g := p.cur
	g.started = true
	// Turns never regress; a lower number keeps the last known turn.
	if k > g.turn {
		g.turn = k
	}
	g.active = idx
	if g.firstActive == noPlayer {
		g.firstActive = idx
	}
	p.state = stateInTurn
	return nil
}

func (p *parser) finishGame(winner int) {
	if !p.gameOpen() || winner == noPlayer {
		return
	}
	p.cur.winner = winner
	p.state = stateTerminal
}

func (p *parser) action(line string) (*Rejection, error) {
	var (
		actor   string
		kind    string
		subject string
		targets string
		drawn   int
		attack  bool
	)

	switch m := reCardAction.FindStringSubmatch(line); {
	case m != nil:
		actor = m[1]
		switch m[2] {
		case "plays":
			kind = models.ActionLandDrop
		case "casts":
			kind = models.ActionCasts
		default:
			kind = models.ActionDiscards
		}
		subject, targets = splitTargeting(m[3])
	default:
		if m := reActivates.FindStringSubmatch(line); m != nil {
			actor, kind = m[1], models.ActionActivated
			subject, targets = splitTargeting(m[2])
		} else if m := reTriggers.FindStringSubmatch(line); m != nil {
			actor, kind, subject = m[1], models.ActionTriggers, m[2]
			_, targets = splitTargeting(m[3])
		} else if m := reAttacked.FindStringSubmatch(line); m != nil {
			actor, kind, subject, attack = m[1], models.ActionAttacks, m[2], true
		} else if m := reDraws.FindStringSubmatch(line); m != nil {
			n, ok := parseCount(m[2])
			if !ok {
				return nil, nil
			}
			actor, kind, drawn = m[1], models.ActionDraws, n
		} else {
			return nil, nil
		}
	}

	idx, rej := p.register(actor)
	if rej != nil {
		return rej, nil
	}
	p.recognized++

	// Actions outside an open game carry no structured meaning.
	if !p.gameOpen() {
		return nil, nil
	}

	g := p.cur
	g.started = true
	subjectRefs := references(subject)
	pp := pendingPlay{
		play: models.Play{
			MatchID:       p.t.MatchID,
			GameNum:       g.num,
			PlayNum:       len(g.plays) + 1,
			TurnNum:       g.turn,
			CastingPlayer: p.players[idx],
			Action:        kind,
			PrimaryCard:   models.NA,
			Target1:       models.NA,
			Target2:       models.NA,
			Target3:       models.NA,
			CardsDrawn:    drawn,
		},
		active: g.active,
	}
	if card := firstCard(subjectRefs); card != "" {
		pp.play.PrimaryCard = card
	}

	var targetRefs []reference
	if attack {
		// The named player is the defender; the attacker is the other player.
		attacker := p.opponent(idx)
		if attacker == noPlayer {
			return nil, nil
		}
		pp.play.CastingPlayer = p.players[attacker]
		pp.play.Attackers = countCards(subjectRefs)
		targetRefs = []reference{{name: p.players[idx], player: true}}
	} else {
		targetRefs = references(targets)
	}
	for i := range targetRefs {
		if targetRefs[i].player {
			targetRefs[i].name = p.canonical(targetRefs[i].name)
		}
	}

	slots := []*string{&pp.play.Target1, &pp.play.Target2, &pp.play.Target3}
	for i, ref := range targetRefs {
		if i < len(slots) {
			*slots[i] = ref.name
		}
		if ref.player {
			pp.playerTargets = append(pp.playerTargets, ref.name)
		}
	}

	g.plays = append(g.plays, pp)
	return nil, nil
}

func (p *parser) finish() (Result, error) {
	if p.recognized == 0 {
		return rejected(RejectUnrecognizedFormat, "no recognizable lines"), nil
	}
	if len(p.players) < 2 {
		return rejected(RejectUnknownPlayers, fmt.Sprintf("found %d player(s)", len(p.players))), nil
	}

	if p.gameOpen() {
		if !p.cur.stub() {
			p.lineNo = 0
			return Result{}, p.malformed("game %d has no result (transcript truncated)", p.cur.num)
		}
		// A trailing rejoin is dropped.
		p.games = p.games[:len(p.games)-1]
	}

	if len(p.games) == 0 {
		return rejected(RejectNoGames, ""), nil
	}

	return parsed(p.build()), nil
}

func label(idx int) string {
	switch idx {
	case 0:
		return models.LabelP1
	case 1:
		return models.LabelP2
	default:
		return models.NA
	}
}

func (p *parser) build() *models.ParsedMatch {
	p1, p2 := p.players[0], p.players[1]

	pm := &models.ParsedMatch{
		Match: models.Match{
			MatchID:       p.t.MatchID,
			DraftID:       models.NA,
			P1:            p1,
			P1Arch:        models.NA,
			P1Subarch:     models.NA,
			P2:            p2,
			P2Arch:        models.NA,
			P2Subarch:     models.NA,
			P1Roll:        p.rolls[0],
			P2Roll:        p.rolls[1],
			Format:        models.NA,
			LimitedFormat: models.NA,
			MatchType:     models.NA,
			Date:          p.t.ModTime.Format(models.DateLayout),
		},
	}

	for _, g := range p.games {
		onPlay := noPlayer
		switch {
		case g.selector != noPlayer && g.choice == models.ChoicePlay:
			onPlay = g.selector
		case g.selector != noPlayer && g.choice == models.ChoiceDraw:
			onPlay = p.opponent(g.selector)
		default:
			onPlay = g.firstActive
		}

		choice := g.choice
		if choice == "" {
			choice = models.NA
		}

		pm.Games = append(pm.Games, models.Game{
			MatchID:    p.t.MatchID,
			P1:         p1,
			P2:         p2,
			GameNum:    g.num,
			PDSelector: label(g.selector),
			PDChoice:   choice,
			OnPlay:     label(onPlay),
			OnDraw:     label(p.opponent(onPlay)),
			P1Mulls:    g.mulls[0],
			P2Mulls:    g.mulls[1],
			Turns:      g.turn,
			GameWinner: label(g.winner),
		})

		if g.winner == 0 {
			pm.Match.P1Wins++
		} else {
			pm.Match.P2Wins++
		}

		for _, pp := range g.plays {
			play := pp.play
			play.P1 = p1
			play.ActivePlayer = label(pp.active)
			play.NonactivePlayer = label(p.opponent(pp.active))
			for _, target := range pp.playerTargets {
				switch target {
				case p1:
					play.SelfTarget = true
				case p2:
					play.OppTarget = true
				}
			}
			pm.Plays = append(pm.Plays, play)
		}

		pm.Actions = append(pm.Actions, models.ActionLog{
			Key:   models.ActionLogKey{MatchID: p.t.MatchID, GameNum: g.num},
			Lines: g.buffer.snapshot(),
		})
	}

	pm.Match.RollWinner = label(p.rollWinner())
	switch {
	case pm.Match.P1Wins > pm.Match.P2Wins:
		pm.Match.MatchWinner = models.LabelP1
	case pm.Match.P2Wins > pm.Match.P1Wins:
		pm.Match.MatchWinner = models.LabelP2
	default:
		pm.Match.MatchWinner = models.NA
	}

	return pm
}

// rollWinner picks the higher roll, falling back to whoever chose play/draw
// in game one when rolls are missing or tied.
func (p *parser) rollWinner() int {
	if p.rolls[0] > 0 && p.rolls[1] > 0 && p.rolls[0] != p.rolls[1] {
		if p.rolls[0] > p.rolls[1] {
			return 0
		}
		return 1
	}
	if len(p.games) > 0 {
		return p.games[0].selector
	}
	return noPlayer
}
