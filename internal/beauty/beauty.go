// Package beauty runs "King of Diamonds" beauty contests: two to five
// players guess a number from 0 to 100 and whoever lands closest to 80% of
// the average takes the pot.
package beauty

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/wagerd/internal/engine"
	"github.com/lox/wagerd/internal/game"
	"github.com/lox/wagerd/internal/secret"
)

// Player count bounds for any contest.
const (
	MinPlayers = 2
	MaxPlayers = 5
)

// Status is the lifecycle stage of a contest.
type Status int

const (
	Waiting Status = iota
	Guessing
	Finished
)

func (s Status) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Guessing:
		return "guessing"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Config holds contest rules.
type Config struct {
	// GuessWindow is how long players have to guess once a contest starts.
	GuessWindow time.Duration
}

func DefaultConfig() Config {
	return Config{GuessWindow: 2 * time.Minute}
}

type match struct {
	id         uint64
	players    []string
	minPlayers int
	maxPlayers int
	fee        int64
	status     Status
	deadline   time.Time
	commits    map[string]secret.Handle
	guesses    map[string]int
	outcome    Outcome
	cancelled  bool
}

func (m *match) Clone() *match {
	c := *m
	c.players = slices.Clone(m.players)
	c.commits = maps.Clone(m.commits)
	c.guesses = maps.Clone(m.guesses)
	c.outcome.Eliminated = slices.Clone(m.outcome.Eliminated)
	return &c
}

func (m *match) key() game.MatchKey {
	return game.MatchKey{Kind: game.BeautyContest, ID: m.id}
}

// Engine runs beauty contests.
type Engine struct {
	env     *engine.Env
	cfg     Config
	matches *engine.Table[*match]
	logger  *log.Logger
}

func New(env *engine.Env, cfg Config) *Engine {
	if cfg.GuessWindow <= 0 {
		cfg.GuessWindow = DefaultConfig().GuessWindow
	}
	return &Engine{
		env:     env,
		cfg:     cfg,
		matches: engine.NewTable[*match](),
		logger:  env.Logger.WithPrefix("beauty"),
	}
}

// Create opens a contest for between minPlayers and maxPlayers players.
func (e *Engine) Create(ctx context.Context, player string, minPlayers, maxPlayers int, fee int64) (uint64, error) {
	if maxPlayers < MinPlayers || maxPlayers > MaxPlayers || minPlayers < MinPlayers || minPlayers > maxPlayers {
		return 0, fmt.Errorf("%w: min %d, max %d", game.ErrInvalidPlayerBounds, minPlayers, maxPlayers)
	}
	id, err := e.env.Admit(ctx, game.BeautyContest, player, fee, maxPlayers)
	if err != nil {
		return 0, err
	}
	m := &match{
		id:         id,
		players:    []string{player},
		minPlayers: minPlayers,
		maxPlayers: maxPlayers,
		fee:        fee,
		status:     Waiting,
		commits:    make(map[string]secret.Handle),
		guesses:    make(map[string]int),
	}
	e.matches.Insert(id, m)
	e.env.Publish(e.env.Event(game.EventMatchCreated, m.key(), player, map[string]any{
		"entryFee":   fee,
		"minPlayers": minPlayers,
		"maxPlayers": maxPlayers,
	}))
	e.logger.Debug("Contest created", "match", id, "player", player, "min", minPlayers, "max", maxPlayers, "fee", fee)
	return id, nil
}

// Join seats player. The contest starts on its own once it is full.
func (e *Engine) Join(ctx context.Context, id uint64, player string, fee int64) error {
	var events []game.Event
	err := e.matches.Update(id, func(m *match) error {
		// A full contest has already started, so capacity is reported first.
		if len(m.players) >= m.maxPlayers {
			return game.ErrGameFull
		}
		if m.status != Waiting {
			return game.ErrNotJoinable
		}
		if _, err := e.env.Seat(ctx, m.key(), player, fee); err != nil {
			return err
		}
		m.players = append(m.players, player)
		events = append(events, e.env.Event(game.EventPlayerJoined, m.key(), player, map[string]any{
			"players": len(m.players),
		}))

		if len(m.players) == m.maxPlayers {
			return e.start(m, &events)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.env.Publish(events...)
	return nil
}

// QuickMatch joins the oldest open contest of the given size and fee, or
// creates one if there is none.
func (e *Engine) QuickMatch(ctx context.Context, player string, players int, fee int64) (uint64, error) {
	if m, ok := e.env.Registry.FindOpen(game.BeautyContest, fee, players); ok {
		err := e.Join(ctx, m.ID, player, fee)
		if err == nil {
			return m.ID, nil
		}
		if !errors.Is(err, game.ErrGameFull) && !errors.Is(err, game.ErrNotJoinable) && !errors.Is(err, game.ErrMatchNotFound) {
			return 0, err
		}
	}
	return e.Create(ctx, player, players, players, fee)
}

// Start begins guessing once enough players have joined.
func (e *Engine) Start(ctx context.Context, id uint64, player string) error {
	var events []game.Event
	err := e.matches.Update(id, func(m *match) error {
		if !slices.Contains(m.players, player) {
			return game.ErrNotParticipant
		}
		if m.status != Waiting {
			return game.ErrNoActiveGame
		}
		if len(m.players) < m.minPlayers {
			return fmt.Errorf("%w: have %d, need %d", game.ErrNotEnoughPlayers, len(m.players), m.minPlayers)
		}
		return e.start(m, &events)
	})
	if err != nil {
		return err
	}
	e.env.Publish(events...)
	return nil
}

func (e *Engine) start(m *match, events *[]game.Event) error {
	if err := e.env.Registry.Seal(game.BeautyContest, m.id); err != nil {
		return err
	}
	m.status = Guessing
	m.deadline = e.env.Now().Add(e.cfg.GuessWindow)
	*events = append(*events, e.env.Event(game.EventMatchStarted, m.key(), "", map[string]any{
		"players":  slices.Clone(m.players),
		"deadline": m.deadline,
	}))
	e.logger.Debug("Contest started", "match", m.id, "players", len(m.players), "deadline", m.deadline)
	return nil
}

// SubmitGuess commits player's guess. The last guess finalizes the contest.
func (e *Engine) SubmitGuess(ctx context.Context, id uint64, player string, value int) error {
	var events []game.Event
	err := e.matches.Update(id, func(m *match) error {
		if m.status != Guessing {
			return game.ErrNotGuessing
		}
		if !slices.Contains(m.players, player) {
			return game.ErrNotParticipant
		}
		if value < MinGuess || value > MaxGuess {
			return fmt.Errorf("%w: %d", game.ErrOutOfRange, value)
		}
		if _, ok := m.commits[player]; ok {
			return game.ErrAlreadyGuessed
		}
		if !e.env.Now().Before(m.deadline) {
			return game.ErrDeadlinePassed
		}

		h, err := e.env.Secrets.Commit(ctx, value)
		if err != nil {
			return fmt.Errorf("commit guess: %w", err)
		}
		m.commits[player] = h
		events = append(events, e.env.Event(game.EventGuessSubmitted, m.key(), player, map[string]any{
			"submitted": len(m.commits),
		}))

		if len(m.commits) == len(m.players) {
			return e.finalize(ctx, m, &events)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.env.Publish(events...)
	return nil
}

// Finalize scores the contest. It is accepted once every guess is in or
// the deadline has passed.
func (e *Engine) Finalize(ctx context.Context, id uint64) error {
	var events []game.Event
	err := e.matches.Update(id, func(m *match) error {
		if m.status != Guessing {
			return game.ErrNotGuessing
		}
		if len(m.commits) < len(m.players) && e.env.Now().Before(m.deadline) {
			return fmt.Errorf("%w: %d of %d guesses, deadline %s", game.ErrFinalizeTooEarly,
				len(m.commits), len(m.players), m.deadline.Format(time.RFC3339))
		}
		return e.finalize(ctx, m, &events)
	})
	if err != nil {
		return err
	}
	e.env.Publish(events...)
	return nil
}

func (e *Engine) finalize(ctx context.Context, m *match, events *[]game.Event) error {
	for _, p := range m.players {
		h, ok := m.commits[p]
		if !ok {
			continue
		}
		v, err := e.env.Secrets.Reveal(ctx, h)
		if err != nil {
			return fmt.Errorf("reveal guess: %w", err)
		}
		m.guesses[p] = v
	}

	out := Resolve(m.players, m.guesses)
	*events = append(*events, e.env.Event(game.EventMatchRevealed, m.key(), "", map[string]any{
		"guesses": maps.Clone(m.guesses),
		"average": out.Average,
		"target":  out.Target,
	}))
	if len(out.Eliminated) > 0 {
		*events = append(*events, e.env.Event(game.EventPlayersEliminated, m.key(), "", map[string]any{
			"players": slices.Clone(out.Eliminated),
		}))
	}

	if out.Refund {
		if err := e.env.RefundAll(ctx, m.key()); err != nil {
			return err
		}
	} else {
		st, err := e.env.Ledger.Statement(m.key())
		if err != nil {
			return err
		}
		if err := e.env.Settle(ctx, m.key(), map[string]int64{out.Winner: st.Balance()}); err != nil {
			return err
		}
	}

	m.outcome = out
	m.status = Finished
	*events = append(*events, e.env.Event(game.EventMatchFinished, m.key(), out.Winner, map[string]any{
		"winner":   out.Winner,
		"refunded": out.Refund,
	}))
	e.logger.Info("Contest finished", "match", m.id, "winner", out.Winner, "target", out.Target, "refunded", out.Refund)
	return nil
}

// Leave withdraws a player before the contest starts and returns their fee.
// A contest left empty is cancelled.
func (e *Engine) Leave(ctx context.Context, id uint64, player string) error {
	var events []game.Event
	err := e.matches.Update(id, func(m *match) error {
		i := slices.Index(m.players, player)
		if i < 0 {
			return game.ErrNotParticipant
		}
		if m.status != Waiting {
			return game.ErrNotCancellable
		}
		if _, err := e.env.Unseat(ctx, m.key(), player); err != nil {
			return err
		}
		m.players = slices.Delete(m.players, i, i+1)
		events = append(events, e.env.Event(game.EventPlayerLeft, m.key(), player, nil))

		if len(m.players) > 0 {
			return nil
		}
		if err := e.env.RefundAll(ctx, m.key()); err != nil {
			return err
		}
		m.status = Finished
		m.cancelled = true
		events = append(events, e.env.Event(game.EventMatchCancelled, m.key(), player, nil))
		return nil
	})
	if err != nil {
		return err
	}
	e.env.Publish(events...)
	return nil
}

// HasGuessed reports whether player has submitted a guess.
func (e *Engine) HasGuessed(id uint64, player string) (bool, error) {
	m, err := e.matches.Get(id)
	if err != nil {
		return false, err
	}
	_, ok := m.commits[player]
	return ok, nil
}

// View is the public state of a contest.
type View struct {
	ID         uint64          `json:"id"`
	Players    []string        `json:"players"`
	MinPlayers int             `json:"minPlayers"`
	MaxPlayers int             `json:"maxPlayers"`
	EntryFee   int64           `json:"entryFee"`
	Pot        int64           `json:"pot"`
	Status     Status          `json:"-"`
	StatusName string          `json:"status"`
	Deadline   *time.Time      `json:"deadline,omitempty"`
	Guessed    map[string]bool `json:"guessed"`
	Guesses    map[string]int  `json:"guesses,omitempty"`
	Average    int             `json:"average,omitempty"`
	Target     int             `json:"target,omitempty"`
	Eliminated []string        `json:"eliminated,omitempty"`
	Winner     string          `json:"winner,omitempty"`
	Refunded   bool            `json:"refunded,omitempty"`
	Cancelled  bool            `json:"cancelled,omitempty"`
}

// View returns the public state of a contest. Guesses and scoring appear
// only once it is finished.
func (e *Engine) View(id uint64) (View, error) {
	m, err := e.matches.Get(id)
	if err != nil {
		return View{}, err
	}
	v := View{
		ID:         m.id,
		Players:    m.players,
		MinPlayers: m.minPlayers,
		MaxPlayers: m.maxPlayers,
		EntryFee:   m.fee,
		Status:     m.status,
		StatusName: m.status.String(),
		Guessed:    make(map[string]bool, len(m.players)),
		Cancelled:  m.cancelled,
	}
	for _, p := range m.players {
		_, v.Guessed[p] = m.commits[p]
	}
	if !m.deadline.IsZero() {
		deadline := m.deadline
		v.Deadline = &deadline
	}
	if st, err := e.env.Ledger.Statement(m.key()); err == nil {
		v.Pot = st.Pot
	}
	if m.status == Finished && !m.cancelled {
		v.Guesses = m.guesses
		v.Average = m.outcome.Average
		v.Target = m.outcome.Target
		v.Eliminated = m.outcome.Eliminated
		v.Winner = m.outcome.Winner
		v.Refunded = m.outcome.Refund
	}
	return v, nil
}

// Open returns the ids of contests still accepting players.
func (e *Engine) Open() []uint64 {
	var ids []uint64
	for _, id := range e.matches.IDs() {
		if m, err := e.matches.Get(id); err == nil && m.status == Waiting {
			ids = append(ids, id)
		}
	}
	return ids
}

// Matches returns the ids of every contest, oldest first.
func (e *Engine) Matches() []uint64 {
	return e.matches.IDs()
}
