// Package headsup runs two-player no-limit hold'em matches. Each player
// buys in with a fixed stack; the ledger escrows both buy-ins and pays out
// final stacks plus the pot share when the match ends.
package headsup

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/lox/wagerd/internal/engine"
	"github.com/lox/wagerd/internal/game"
	"github.com/lox/wagerd/poker"
)

// Config holds table stakes.
type Config struct {
	SmallBlind int64
	BigBlind   int64
}

func DefaultConfig() Config {
	return Config{SmallBlind: 5, BigBlind: 10}
}

type seat struct {
	player string
	stack  int64
	bet    int64
	hole   []poker.Card
	acted  bool
}

type match struct {
	id        uint64
	buyIn     int64
	stage     Stage
	seats     []seat
	current   int
	pot       int64
	deck      *poker.Deck
	board     []poker.Card
	folder    string
	payouts   map[string]int64
	winners   []string
	ranks     []poker.HandRank
	cancelled bool
}

func (m *match) Clone() *match {
	c := *m
	c.seats = slices.Clone(m.seats)
	for i := range c.seats {
		c.seats[i].hole = slices.Clone(m.seats[i].hole)
	}
	if m.deck != nil {
		c.deck = m.deck.Clone()
	}
	c.board = slices.Clone(m.board)
	c.payouts = maps.Clone(m.payouts)
	c.winners = slices.Clone(m.winners)
	c.ranks = slices.Clone(m.ranks)
	return &c
}

func (m *match) key() game.MatchKey {
	return game.MatchKey{Kind: game.Poker, ID: m.id}
}

func (m *match) seatOf(player string) int {
	for i, s := range m.seats {
		if s.player == player {
			return i
		}
	}
	return -1
}

// Engine runs heads-up matches.
type Engine struct {
	env     *engine.Env
	cfg     Config
	matches *engine.Table[*match]
	newDeck func() *poker.Deck
	logger  *log.Logger
}

func New(env *engine.Env, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.SmallBlind <= 0 {
		cfg.SmallBlind = def.SmallBlind
	}
	if cfg.BigBlind < cfg.SmallBlind {
		cfg.BigBlind = 2 * cfg.SmallBlind
	}
	return &Engine{
		env:     env,
		cfg:     cfg,
		matches: engine.NewTable[*match](),
		newDeck: func() *poker.Deck { return poker.NewDeck(env.Rand) },
		logger:  env.Logger.WithPrefix("headsup"),
	}
}

// Create opens a match with player in the first seat.
func (e *Engine) Create(ctx context.Context, player string, buyIn int64) (uint64, error) {
	if buyIn <= e.cfg.BigBlind {
		return 0, fmt.Errorf("%w: buy-in %d must exceed the big blind %d", game.ErrInvalidStake, buyIn, e.cfg.BigBlind)
	}
	id, err := e.env.Admit(ctx, game.Poker, player, buyIn, 2)
	if err != nil {
		return 0, err
	}
	m := &match{
		id:    id,
		buyIn: buyIn,
		stage: Waiting,
		seats: []seat{{player: player, stack: buyIn}},
	}
	e.matches.Insert(id, m)
	e.env.Publish(e.env.Event(game.EventMatchCreated, m.key(), player, map[string]any{"buyIn": buyIn}))
	e.logger.Debug("Match created", "match", id, "player", player, "buyIn", buyIn)
	return id, nil
}

// Join seats the second player, posts the blinds and deals.
func (e *Engine) Join(ctx context.Context, id uint64, player string, buyIn int64) error {
	var events []game.Event
	err := e.matches.Update(id, func(m *match) error {
		if m.stage != Waiting {
			return game.ErrNotJoinable
		}
		if _, err := e.env.Seat(ctx, m.key(), player, buyIn); err != nil {
			return err
		}
		if err := e.env.Registry.Seal(game.Poker, id); err != nil {
			return err
		}
		m.seats = append(m.seats, seat{player: player, stack: buyIn})
		events = append(events, e.env.Event(game.EventPlayerJoined, m.key(), player, nil))

		e.post(m, 0, e.cfg.SmallBlind)
		e.post(m, 1, e.cfg.BigBlind)

		m.deck = e.newDeck()
		cards := m.deck.Deal(4)
		m.seats[0].hole = []poker.Card{cards[0], cards[2]}
		m.seats[1].hole = []poker.Card{cards[1], cards[3]}
		m.stage = PreFlop
		m.current = 0

		events = append(events,
			e.env.Event(game.EventMatchStarted, m.key(), "", map[string]any{
				"players":    []string{m.seats[0].player, m.seats[1].player},
				"smallBlind": e.cfg.SmallBlind,
				"bigBlind":   e.cfg.BigBlind,
				"pot":        m.pot,
			}),
			e.env.Event(game.EventCardsDealt, m.key(), "", map[string]any{"stage": PreFlop.String()}),
		)
		return nil
	})
	if err != nil {
		return err
	}
	e.env.Publish(events...)
	return nil
}

func (e *Engine) post(m *match, i int, blind int64) {
	amount := min(blind, m.seats[i].stack)
	m.seats[i].stack -= amount
	m.seats[i].bet += amount
	m.pot += amount
}

// act runs one betting action for player.
func (e *Engine) act(ctx context.Context, id uint64, player string, fn func(m *match, me, opp *seat) (map[string]any, error)) error {
	var events []game.Event
	err := e.matches.Update(id, func(m *match) error {
		if !m.stage.betting() {
			return game.ErrNoActiveGame
		}
		i := m.seatOf(player)
		if i < 0 {
			return game.ErrNotParticipant
		}
		if i != m.current {
			return game.ErrNotYourTurn
		}

		me, opp := &m.seats[i], &m.seats[1-i]
		payload, err := fn(m, me, opp)
		if err != nil {
			return err
		}
		payload["pot"] = m.pot
		payload["stage"] = m.stage.String()
		events = append(events, e.env.Event(game.EventActionTaken, m.key(), player, payload))

		if m.stage == Finished {
			return e.settle(ctx, m, &events)
		}
		if me.acted && opp.acted && me.bet == opp.bet {
			return e.advance(ctx, m, &events)
		}
		m.current = 1 - i
		return nil
	})
	if err != nil {
		return err
	}
	e.env.Publish(events...)
	return nil
}

// Call matches the opponent's bet. A short stack calls all-in and the
// uncalled part of the opponent's bet goes back to them.
func (e *Engine) Call(ctx context.Context, id uint64, player string) error {
	return e.act(ctx, id, player, func(m *match, me, opp *seat) (map[string]any, error) {
		diff := opp.bet - me.bet
		amount := min(diff, me.stack)
		if excess := diff - amount; excess > 0 {
			opp.bet -= excess
			opp.stack += excess
			m.pot -= excess
		}
		me.stack -= amount
		me.bet += amount
		m.pot += amount
		me.acted = true

		action := "call"
		if diff == 0 {
			action = "check"
		}
		return map[string]any{"action": action, "amount": amount}, nil
	})
}

// Check passes the action when there is nothing to call.
func (e *Engine) Check(ctx context.Context, id uint64, player string) error {
	return e.act(ctx, id, player, func(m *match, me, opp *seat) (map[string]any, error) {
		if opp.bet != me.bet {
			return nil, fmt.Errorf("%w: %d to call", game.ErrCannotCheck, opp.bet-me.bet)
		}
		me.acted = true
		return map[string]any{"action": "check", "amount": int64(0)}, nil
	})
}

// Raise makes player's bet the opponent's bet plus amount.
func (e *Engine) Raise(ctx context.Context, id uint64, player string, amount int64) error {
	return e.act(ctx, id, player, func(m *match, me, opp *seat) (map[string]any, error) {
		if amount <= 0 {
			return nil, fmt.Errorf("%w: %d", game.ErrInvalidAmount, amount)
		}
		toCall := opp.bet - me.bet
		if amount > me.stack-toCall {
			return nil, fmt.Errorf("%w: raise %d over %d to call, have %d", game.ErrInsufficientStack, amount, toCall, me.stack)
		}
		need := toCall + amount
		me.stack -= need
		me.bet += need
		m.pot += need
		me.acted = true
		opp.acted = false
		return map[string]any{"action": "raise", "amount": need, "bet": me.bet}, nil
	})
}

// Fold concedes the pot to the opponent.
func (e *Engine) Fold(ctx context.Context, id uint64, player string) error {
	return e.act(ctx, id, player, func(m *match, me, opp *seat) (map[string]any, error) {
		m.folder = me.player
		m.winners = []string{opp.player}
		m.stage = Finished
		return map[string]any{"action": "fold"}, nil
	})
}

// advance closes the betting round and deals the next street. With a
// player all-in the board is run out to showdown.
func (e *Engine) advance(ctx context.Context, m *match, events *[]game.Event) error {
	for i := range m.seats {
		m.seats[i].bet = 0
		m.seats[i].acted = false
	}

	allIn := m.seats[0].stack == 0 || m.seats[1].stack == 0
	for {
		m.stage++
		if m.stage == Showdown {
			return e.showdown(ctx, m, events)
		}
		deal := m.stage.communityCards() - len(m.board)
		m.board = append(m.board, m.deck.Deal(deal)...)
		*events = append(*events, e.env.Event(game.EventCardsDealt, m.key(), "", map[string]any{
			"stage": m.stage.String(),
			"board": cardStrings(m.board),
		}))
		if !allIn {
			break
		}
	}

	// The big blind acts first after the flop.
	m.current = 1
	return nil
}

func (e *Engine) showdown(ctx context.Context, m *match, events *[]game.Event) error {
	m.ranks = make([]poker.HandRank, len(m.seats))
	for i, s := range m.seats {
		hand := poker.NewHand(append(slices.Clone(s.hole), m.board...)...)
		m.ranks[i] = poker.Evaluate7Cards(hand)
	}
	switch poker.CompareHands(m.ranks[0], m.ranks[1]) {
	case 1:
		m.winners = []string{m.seats[0].player}
	case -1:
		m.winners = []string{m.seats[1].player}
	default:
		m.winners = []string{m.seats[0].player, m.seats[1].player}
	}

	reveal := map[string]any{"board": cardStrings(m.board)}
	for i, s := range m.seats {
		reveal[s.player] = map[string]any{
			"hole": cardStrings(s.hole),
			"hand": m.ranks[i].String(),
		}
	}
	*events = append(*events, e.env.Event(game.EventMatchRevealed, m.key(), "", reveal))
	return e.settle(ctx, m, events)
}

// settle pays each player their stack plus their share of the pot. A split
// pot sends the odd chip to the second seat.
func (e *Engine) settle(ctx context.Context, m *match, events *[]game.Event) error {
	payouts := make(map[string]int64, len(m.seats))
	for _, s := range m.seats {
		payouts[s.player] = s.stack
	}
	if len(m.winners) == 1 {
		payouts[m.winners[0]] += m.pot
	} else {
		half := m.pot / 2
		payouts[m.seats[0].player] += half
		payouts[m.seats[1].player] += m.pot - half
	}

	if err := e.env.Settle(ctx, m.key(), payouts); err != nil {
		e.logger.Warn("Settlement failed", "match", m.id, "error", err)
		return err
	}

	m.payouts = payouts
	m.stage = Finished
	*events = append(*events, e.env.Event(game.EventMatchFinished, m.key(), "", map[string]any{
		"winners": slices.Clone(m.winners),
		"payouts": maps.Clone(payouts),
		"folded":  m.folder != "",
	}))
	e.logger.Info("Match finished", "match", m.id, "winners", m.winners, "pot", m.pot)
	return nil
}

// Leave lets the creator withdraw before an opponent joins.
func (e *Engine) Leave(ctx context.Context, id uint64, player string) error {
	var events []game.Event
	err := e.matches.Update(id, func(m *match) error {
		i := m.seatOf(player)
		if i < 0 {
			return game.ErrNotParticipant
		}
		if m.stage != Waiting {
			return game.ErrNotCancellable
		}
		if i != 0 {
			return game.ErrNotCreator
		}
		if err := e.env.RefundAll(ctx, m.key()); err != nil {
			return err
		}
		m.stage = Finished
		m.cancelled = true
		events = append(events,
			e.env.Event(game.EventPlayerLeft, m.key(), player, nil),
			e.env.Event(game.EventMatchCancelled, m.key(), player, nil),
		)
		return nil
	})
	if err != nil {
		return err
	}
	e.env.Publish(events...)
	return nil
}

func cardStrings(cards []poker.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}
