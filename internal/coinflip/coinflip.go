// Package coinflip runs two-player coin flips. Each player commits a side;
// once both have committed the coin is drawn from the randomness source
// and the player who called it takes the pot.
package coinflip

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/lox/wagerd/internal/engine"
	"github.com/lox/wagerd/internal/game"
	"github.com/lox/wagerd/internal/secret"
)

// Sides of the coin.
const (
	Heads = 0
	Tails = 1
)

// Status is the lifecycle stage of a flip.
type Status int

const (
	Waiting Status = iota
	Committing
	Revealed
	Finished
)

func (s Status) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Committing:
		return "committing"
	case Revealed:
		return "revealed"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

type match struct {
	id        uint64
	players   []string
	stake     int64
	status    Status
	commits   map[string]secret.Handle
	choices   map[string]int
	outcome   int
	winner    string
	cancelled bool
}

func (m *match) Clone() *match {
	c := *m
	c.players = slices.Clone(m.players)
	c.commits = maps.Clone(m.commits)
	c.choices = maps.Clone(m.choices)
	return &c
}

func (m *match) key() game.MatchKey {
	return game.MatchKey{Kind: game.CoinFlip, ID: m.id}
}

func (m *match) creator() string {
	return m.players[0]
}

// Engine runs coin flip matches.
type Engine struct {
	env     *engine.Env
	matches *engine.Table[*match]
	logger  *log.Logger
}

func New(env *engine.Env) *Engine {
	return &Engine{
		env:     env,
		matches: engine.NewTable[*match](),
		logger:  env.Logger.WithPrefix("coinflip"),
	}
}

// Create opens a flip and escrows the creator's stake.
func (e *Engine) Create(ctx context.Context, player string, stake int64) (uint64, error) {
	id, err := e.env.Admit(ctx, game.CoinFlip, player, stake, 2)
	if err != nil {
		return 0, err
	}
	m := &match{
		id:      id,
		players: []string{player},
		stake:   stake,
		status:  Waiting,
		commits: make(map[string]secret.Handle),
		choices: make(map[string]int),
		outcome: -1,
	}
	e.matches.Insert(id, m)
	e.env.Publish(e.env.Event(game.EventMatchCreated, m.key(), player, map[string]any{"stake": stake}))
	e.logger.Debug("Match created", "match", id, "player", player, "stake", stake)
	return id, nil
}

// Join seats the second player, after which both may commit.
func (e *Engine) Join(ctx context.Context, id uint64, player string, stake int64) error {
	var events []game.Event
	err := e.matches.Update(id, func(m *match) error {
		if m.status != Waiting {
			return game.ErrNotJoinable
		}
		if _, err := e.env.Seat(ctx, m.key(), player, stake); err != nil {
			return err
		}
		if err := e.env.Registry.Seal(game.CoinFlip, id); err != nil {
			return err
		}
		m.players = append(m.players, player)
		m.status = Committing
		events = append(events,
			e.env.Event(game.EventPlayerJoined, m.key(), player, nil),
			e.env.Event(game.EventMatchStarted, m.key(), "", map[string]any{"players": slices.Clone(m.players)}),
		)
		return nil
	})
	if err != nil {
		return err
	}
	e.env.Publish(events...)
	return nil
}

// SubmitChoice commits player's call. The second commit flips the coin and
// settles the match.
func (e *Engine) SubmitChoice(ctx context.Context, id uint64, player string, choice int) error {
	var events []game.Event
	err := e.matches.Update(id, func(m *match) error {
		if m.status != Committing {
			return game.ErrNotCommittable
		}
		if !slices.Contains(m.players, player) {
			return game.ErrNotParticipant
		}
		if _, ok := m.commits[player]; ok {
			return game.ErrAlreadyCommitted
		}
		if choice != Heads && choice != Tails {
			return fmt.Errorf("%w: %d", game.ErrInvalidChoice, choice)
		}

		h, err := e.env.Secrets.Commit(ctx, choice)
		if err != nil {
			return fmt.Errorf("commit choice: %w", err)
		}
		m.commits[player] = h
		events = append(events, e.env.Event(game.EventChoiceCommitted, m.key(), player, nil))

		if len(m.commits) < len(m.players) {
			return nil
		}
		return e.flip(ctx, m, &events)
	})
	if err != nil {
		return err
	}
	e.env.Publish(events...)
	return nil
}

func (e *Engine) flip(ctx context.Context, m *match, events *[]game.Event) error {
	for _, p := range m.players {
		v, err := e.env.Secrets.Reveal(ctx, m.commits[p])
		if err != nil {
			return fmt.Errorf("reveal choice: %w", err)
		}
		m.choices[p] = v
	}
	m.outcome = e.env.Rand.IntN(2)
	m.status = Revealed

	var callers []string
	for _, p := range m.players {
		if m.choices[p] == m.outcome {
			callers = append(callers, p)
		}
	}
	*events = append(*events, e.env.Event(game.EventMatchRevealed, m.key(), "", map[string]any{
		"outcome": m.outcome,
		"choices": maps.Clone(m.choices),
	}))

	// Both or neither calling it leaves no winner.
	if len(callers) == 1 {
		m.winner = callers[0]
		if err := e.env.Settle(ctx, m.key(), map[string]int64{m.winner: 2 * m.stake}); err != nil {
			return err
		}
	} else if err := e.env.RefundAll(ctx, m.key()); err != nil {
		return err
	}

	m.status = Finished
	*events = append(*events, e.env.Event(game.EventMatchFinished, m.key(), m.winner, map[string]any{
		"outcome": m.outcome,
		"winner":  m.winner,
	}))
	e.logger.Info("Coin flipped", "match", m.id, "outcome", m.outcome, "winner", m.winner)
	return nil
}

// Cancel lets the creator withdraw before anyone joins.
func (e *Engine) Cancel(ctx context.Context, id uint64, player string) error {
	var events []game.Event
	err := e.matches.Update(id, func(m *match) error {
		if m.creator() != player {
			return game.ErrNotCreator
		}
		return e.cancel(ctx, m, player, &events)
	})
	if err != nil {
		return err
	}
	e.env.Publish(events...)
	return nil
}

// Leave withdraws a waiting player. While waiting the only player is the
// creator, so this cancels the flip.
func (e *Engine) Leave(ctx context.Context, id uint64, player string) error {
	var events []game.Event
	err := e.matches.Update(id, func(m *match) error {
		if !slices.Contains(m.players, player) {
			return game.ErrNotParticipant
		}
		if err := e.cancel(ctx, m, player, &events); err != nil {
			return err
		}
		events = append([]game.Event{e.env.Event(game.EventPlayerLeft, m.key(), player, nil)}, events...)
		return nil
	})
	if err != nil {
		return err
	}
	e.env.Publish(events...)
	return nil
}

func (e *Engine) cancel(ctx context.Context, m *match, player string, events *[]game.Event) error {
	if m.status != Waiting {
		return game.ErrNotCancellable
	}
	if err := e.env.RefundAll(ctx, m.key()); err != nil {
		return err
	}
	m.status = Finished
	m.cancelled = true
	*events = append(*events, e.env.Event(game.EventMatchCancelled, m.key(), player, nil))
	return nil
}

// View is the public state of a flip.
type View struct {
	ID         uint64          `json:"id"`
	Players    []string        `json:"players"`
	Stake      int64           `json:"stake"`
	Pot        int64           `json:"pot"`
	Status     Status          `json:"-"`
	StatusName string          `json:"status"`
	Committed  map[string]bool `json:"committed"`
	Choices    map[string]int  `json:"choices,omitempty"`
	Outcome    *int            `json:"outcome,omitempty"`
	Winner     string          `json:"winner,omitempty"`
	Cancelled  bool            `json:"cancelled,omitempty"`
}

// View returns the public state of a flip. Choices appear once revealed.
func (e *Engine) View(id uint64) (View, error) {
	m, err := e.matches.Get(id)
	if err != nil {
		return View{}, err
	}
	v := View{
		ID:         m.id,
		Players:    m.players,
		Stake:      m.stake,
		Status:     m.status,
		StatusName: m.status.String(),
		Committed:  make(map[string]bool, len(m.players)),
		Winner:     m.winner,
		Cancelled:  m.cancelled,
	}
	for _, p := range m.players {
		_, v.Committed[p] = m.commits[p]
	}
	if st, err := e.env.Ledger.Statement(m.key()); err == nil {
		v.Pot = st.Pot
	}
	if m.status >= Revealed && !m.cancelled {
		v.Choices = m.choices
		outcome := m.outcome
		v.Outcome = &outcome
	}
	return v, nil
}

// Open returns the ids of flips waiting for a second player.
func (e *Engine) Open() []uint64 {
	var ids []uint64
	for _, id := range e.matches.IDs() {
		if m, err := e.matches.Get(id); err == nil && m.status == Waiting {
			ids = append(ids, id)
		}
	}
	return ids
}

// Matches returns the ids of every flip, oldest first.
func (e *Engine) Matches() []uint64 {
	return e.matches.IDs()
}
