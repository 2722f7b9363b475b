// Package blackjack runs single-player blackjack against the house. The
// house matches the player's stake into escrow, so a win pays 1:1.
package blackjack

import (
	"context"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/lox/wagerd/internal/engine"
	"github.com/lox/wagerd/internal/game"
	"github.com/lox/wagerd/internal/ledger"
	"github.com/lox/wagerd/internal/secret"
	"github.com/lox/wagerd/poker"
)

// Config holds table rules.
type Config struct {
	// DealerStandsOn is the total at which the dealer stops drawing.
	DealerStandsOn int
}

// DefaultConfig is the standard dealer policy.
func DefaultConfig() Config {
	return Config{DealerStandsOn: 17}
}

type match struct {
	id          uint64
	player      string
	stake       int64
	status      Status
	result      Result
	deck        *poker.Deck
	playerCards []int
	dealerUp    int
	hole        secret.Handle
	holeCard    int
	dealerDraws []int
	stood       bool
}

func (m *match) Clone() *match {
	c := *m
	c.deck = m.deck.Clone()
	c.playerCards = slices.Clone(m.playerCards)
	c.dealerDraws = slices.Clone(m.dealerDraws)
	return &c
}

func (m *match) key() game.MatchKey {
	return game.MatchKey{Kind: game.Blackjack, ID: m.id}
}

// dealerCards is the full dealer hand. Valid once the hole card is revealed.
func (m *match) dealerCards() []int {
	return append([]int{m.dealerUp, m.holeCard}, m.dealerDraws...)
}

// Engine runs blackjack matches.
type Engine struct {
	env     *engine.Env
	cfg     Config
	matches *engine.Table[*match]
	newDeck func() *poker.Deck
	logger  *log.Logger
}

func New(env *engine.Env, cfg Config) *Engine {
	if cfg.DealerStandsOn <= 0 {
		cfg.DealerStandsOn = DefaultConfig().DealerStandsOn
	}
	return &Engine{
		env:     env,
		cfg:     cfg,
		matches: engine.NewTable[*match](),
		newDeck: func() *poker.Deck { return poker.NewDeck(env.Rand) },
		logger:  env.Logger.WithPrefix("blackjack"),
	}
}

// Start opens a match for player, escrows the player's and the house's
// stakes and deals. A natural on either side settles immediately.
func (e *Engine) Start(ctx context.Context, player string, stake int64) (uint64, error) {
	id, err := e.env.Admit(ctx, game.Blackjack, player, stake, 1)
	if err != nil {
		return 0, err
	}
	key := game.MatchKey{Kind: game.Blackjack, ID: id}

	if err := e.env.Ledger.Collect(ctx, key, ledger.House, stake); err != nil {
		if _, uerr := e.env.Unseat(ctx, key, player); uerr != nil {
			e.logger.Error("Failed to return stake after house refused", "match", id, "error", uerr)
		} else {
			e.env.Discard(key)
		}
		return 0, fmt.Errorf("house stake: %w", err)
	}

	deck := e.newDeck()
	cards := deck.Deal(4)
	m := &match{
		id:          id,
		player:      player,
		stake:       stake,
		status:      PlayerTurn,
		deck:        deck,
		playerCards: []int{rankOf(cards[0]), rankOf(cards[2])},
		dealerUp:    rankOf(cards[1]),
	}
	if m.hole, err = e.env.Secrets.Commit(ctx, rankOf(cards[3])); err != nil {
		if rerr := e.env.RefundAll(ctx, key); rerr != nil {
			e.logger.Error("Failed to refund after commit error", "match", id, "error", rerr)
		}
		return 0, fmt.Errorf("commit hole card: %w", err)
	}

	events := []game.Event{
		e.env.Event(game.EventMatchCreated, key, player, map[string]any{"stake": stake}),
		e.env.Event(game.EventCardsDealt, key, player, map[string]any{
			"playerCards":  slices.Clone(m.playerCards),
			"dealerUpCard": m.dealerUp,
		}),
	}

	natural, err := e.checkNaturals(ctx, m)
	if err != nil {
		// Dealt but undecided: keep the match so the peek can be retried.
		m.status = Dealing
	}
	if natural != NoResult {
		next := m.Clone()
		if serr := e.resolve(ctx, next, natural, &events); serr != nil {
			m.status, m.result = Dealing, natural
			err = serr
		} else {
			m = next
		}
	}

	e.matches.Insert(id, m)
	e.env.Publish(events...)
	e.logger.Info("Match started", "match", id, "player", player, "stake", stake, "status", m.status)
	return id, err
}

// checkNaturals looks for a blackjack on either opening hand. The dealer's
// hole card is only tested, never disclosed.
func (e *Engine) checkNaturals(ctx context.Context, m *match) (Result, error) {
	playerNatural := HandValue(m.playerCards) == 21
	dealerNatural, err := e.env.Secrets.Test(ctx, m.hole, func(hole int) bool {
		return HandValue([]int{m.dealerUp, hole}) == 21
	})
	if err != nil {
		return NoResult, fmt.Errorf("dealer peek: %w", err)
	}

	switch {
	case playerNatural && dealerNatural:
		return Push, nil
	case playerNatural:
		return PlayerBlackjack, nil
	case dealerNatural:
		return DealerBlackjack, nil
	}
	return NoResult, nil
}

// Hit draws a card for the player. A bust ends the match; reaching 21
// stands automatically.
func (e *Engine) Hit(ctx context.Context, id uint64, player string) error {
	var events []game.Event
	err := e.matches.Update(id, func(m *match) error {
		if m.status != PlayerTurn {
			return game.ErrNoActiveGame
		}
		if m.player != player {
			return game.ErrNotParticipant
		}

		card := rankOf(m.deck.DealOne())
		m.playerCards = append(m.playerCards, card)
		value := HandValue(m.playerCards)
		events = append(events, e.env.Event(game.EventActionTaken, m.key(), player, map[string]any{
			"action": "hit",
			"card":   card,
			"value":  value,
		}))

		switch {
		case value > 21:
			return e.resolve(ctx, m, PlayerBusts, &events)
		case value == 21:
			return e.playDealer(ctx, m, &events)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.env.Publish(events...)
	return nil
}

// Stand ends the player's turn and plays out the dealer. On a match whose
// opening settlement was refused, Stand retries it.
func (e *Engine) Stand(ctx context.Context, id uint64, player string) error {
	var events []game.Event
	err := e.matches.Update(id, func(m *match) error {
		if m.player != player {
			return game.ErrNotParticipant
		}
		switch m.status {
		case Dealing:
			return e.retryOpening(ctx, m, &events)
		case PlayerTurn:
		default:
			return game.ErrNoActiveGame
		}

		m.stood = true
		events = append(events, e.env.Event(game.EventActionTaken, m.key(), player, map[string]any{
			"action": "stand",
			"value":  HandValue(m.playerCards),
		}))
		return e.playDealer(ctx, m, &events)
	})
	if err != nil {
		return err
	}
	e.env.Publish(events...)
	return nil
}

func (e *Engine) retryOpening(ctx context.Context, m *match, events *[]game.Event) error {
	result := m.result
	if result == NoResult {
		var err error
		if result, err = e.checkNaturals(ctx, m); err != nil {
			return err
		}
		if result == NoResult {
			m.status = PlayerTurn
			return nil
		}
	}
	return e.resolve(ctx, m, result, events)
}

func (e *Engine) playDealer(ctx context.Context, m *match, events *[]game.Event) error {
	m.status = DealerTurn
	if err := e.revealHole(ctx, m, events); err != nil {
		return err
	}
	for HandValue(m.dealerCards()) < e.cfg.DealerStandsOn {
		m.dealerDraws = append(m.dealerDraws, rankOf(m.deck.DealOne()))
	}

	player, dealer := HandValue(m.playerCards), HandValue(m.dealerCards())
	var result Result
	switch {
	case dealer > 21:
		result = DealerBusts
	case player > dealer:
		result = PlayerWins
	case player == dealer:
		result = Push
	default:
		result = DealerWins
	}
	return e.resolve(ctx, m, result, events)
}

func (e *Engine) revealHole(ctx context.Context, m *match, events *[]game.Event) error {
	if m.holeCard != 0 {
		return nil
	}
	hole, err := e.env.Secrets.Reveal(ctx, m.hole)
	if err != nil {
		return fmt.Errorf("reveal hole card: %w", err)
	}
	m.holeCard = hole
	*events = append(*events, e.env.Event(game.EventMatchRevealed, m.key(), "", map[string]any{
		"holeCard": hole,
	}))
	return nil
}

// resolve reveals the hole card, settles the pot and finishes the match.
func (e *Engine) resolve(ctx context.Context, m *match, result Result, events *[]game.Event) error {
	if err := e.revealHole(ctx, m, events); err != nil {
		return err
	}

	share := result.playerShare(m.stake)
	distribution := map[string]int64{
		m.player:     share,
		ledger.House: 2*m.stake - share,
	}
	if err := e.env.Settle(ctx, m.key(), distribution); err != nil {
		e.logger.Warn("Settlement failed", "match", m.id, "result", result, "error", err)
		return err
	}

	m.status = Finished
	m.result = result
	*events = append(*events, e.env.Event(game.EventMatchFinished, m.key(), m.player, map[string]any{
		"result":      result.String(),
		"playerValue": HandValue(m.playerCards),
		"dealerValue": HandValue(m.dealerCards()),
		"payout":      share,
	}))
	e.logger.Info("Match finished", "match", m.id, "result", result, "payout", share)
	return nil
}

// HoleCard returns the dealer's hole card once the match is finished.
func (e *Engine) HoleCard(id uint64) (int, error) {
	m, err := e.matches.Get(id)
	if err != nil {
		return 0, err
	}
	if m.status != Finished {
		return 0, game.ErrHoleCardNotRevealed
	}
	return m.holeCard, nil
}

// View is the public state of a match.
type View struct {
	ID           uint64 `json:"id"`
	Player       string `json:"player"`
	Stake        int64  `json:"stake"`
	Pot          int64  `json:"pot"`
	Status       Status `json:"-"`
	StatusName   string `json:"status"`
	Result       string `json:"result,omitempty"`
	PlayerCards  []int  `json:"playerCards"`
	PlayerValue  int    `json:"playerValue"`
	DealerUpCard int    `json:"dealerUpCard"`
	DealerCards  []int  `json:"dealerCards,omitempty"`
	DealerValue  int    `json:"dealerValue,omitempty"`
	Stood        bool   `json:"stood"`
}

// View returns the public state of a match. The dealer's full hand is
// included only once the match is finished.
func (e *Engine) View(id uint64) (View, error) {
	m, err := e.matches.Get(id)
	if err != nil {
		return View{}, err
	}
	v := View{
		ID:           m.id,
		Player:       m.player,
		Stake:        m.stake,
		Status:       m.status,
		StatusName:   m.status.String(),
		PlayerCards:  m.playerCards,
		PlayerValue:  HandValue(m.playerCards),
		DealerUpCard: m.dealerUp,
		Stood:        m.stood,
	}
	if st, err := e.env.Ledger.Statement(m.key()); err == nil {
		v.Pot = st.Pot
	}
	if m.status == Finished {
		v.Result = m.result.String()
		v.DealerCards = m.dealerCards()
		v.DealerValue = HandValue(v.DealerCards)
	}
	return v, nil
}

// Matches returns the ids of every match, oldest first.
func (e *Engine) Matches() []uint64 {
	return e.matches.IDs()
}
