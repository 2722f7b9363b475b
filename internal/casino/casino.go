// Package casino puts the four game engines behind one entry point for
// callers that deal in game names and match ids rather than engine types:
// the websocket server and the simulator.
package casino

import (
	"context"
	"fmt"

	"github.com/lox/wagerd/internal/beauty"
	"github.com/lox/wagerd/internal/blackjack"
	"github.com/lox/wagerd/internal/coinflip"
	"github.com/lox/wagerd/internal/engine"
	"github.com/lox/wagerd/internal/game"
	"github.com/lox/wagerd/internal/headsup"
	"github.com/lox/wagerd/internal/ledger"
	"github.com/lox/wagerd/internal/registry"
)

// Config holds per-game rules.
type Config struct {
	Blackjack blackjack.Config
	Poker     headsup.Config
	Beauty    beauty.Config
}

func DefaultConfig() Config {
	return Config{
		Blackjack: blackjack.DefaultConfig(),
		Poker:     headsup.DefaultConfig(),
		Beauty:    beauty.DefaultConfig(),
	}
}

// Casino owns an engine per game kind over one shared environment.
type Casino struct {
	Env       *engine.Env
	Blackjack *blackjack.Engine
	Poker     *headsup.Engine
	CoinFlip  *coinflip.Engine
	Beauty    *beauty.Engine
}

func New(wallet ledger.Wallet, cfg Config, opts ...engine.Option) *Casino {
	env := engine.New(wallet, opts...)
	return &Casino{
		Env:       env,
		Blackjack: blackjack.New(env, cfg.Blackjack),
		Poker:     headsup.New(env, cfg.Poker),
		CoinFlip:  coinflip.New(env),
		Beauty:    beauty.New(env, cfg.Beauty),
	}
}

// Action is a request to change a match.
type Action struct {
	Game       string `json:"game"`
	Op         string `json:"op"`
	Match      uint64 `json:"match,omitempty"`
	Stake      int64  `json:"stake,omitempty"`
	Amount     int64  `json:"amount,omitempty"`
	Value      int    `json:"value,omitempty"`
	MinPlayers int    `json:"minPlayers,omitempty"`
	MaxPlayers int    `json:"maxPlayers,omitempty"`
}

// Do applies an action on behalf of participant and returns the key of the
// match it touched.
func (c *Casino) Do(ctx context.Context, participant string, a Action) (game.MatchKey, error) {
	kind, err := game.ParseKind(a.Game)
	if err != nil {
		return game.MatchKey{}, err
	}
	key := game.MatchKey{Kind: kind, ID: a.Match}

	switch kind {
	case game.Blackjack:
		err = c.doBlackjack(ctx, participant, a, &key)
	case game.Poker:
		err = c.doPoker(ctx, participant, a, &key)
	case game.CoinFlip:
		err = c.doCoinFlip(ctx, participant, a, &key)
	case game.BeautyContest:
		err = c.doBeauty(ctx, participant, a, &key)
	}
	return key, err
}

func (c *Casino) doBlackjack(ctx context.Context, p string, a Action, key *game.MatchKey) (err error) {
	switch a.Op {
	case "start", "create":
		key.ID, err = c.Blackjack.Start(ctx, p, a.Stake)
		return err
	case "hit":
		return c.Blackjack.Hit(ctx, a.Match, p)
	case "stand":
		return c.Blackjack.Stand(ctx, a.Match, p)
	}
	return fmt.Errorf("%w: blackjack %q", game.ErrUnknownAction, a.Op)
}

func (c *Casino) doPoker(ctx context.Context, p string, a Action, key *game.MatchKey) (err error) {
	switch a.Op {
	case "create":
		key.ID, err = c.Poker.Create(ctx, p, a.Stake)
		return err
	case "join":
		return c.Poker.Join(ctx, a.Match, p, a.Stake)
	case "call":
		return c.Poker.Call(ctx, a.Match, p)
	case "check":
		return c.Poker.Check(ctx, a.Match, p)
	case "raise":
		return c.Poker.Raise(ctx, a.Match, p, a.Amount)
	case "fold":
		return c.Poker.Fold(ctx, a.Match, p)
	case "leave":
		return c.Poker.Leave(ctx, a.Match, p)
	}
	return fmt.Errorf("%w: poker %q", game.ErrUnknownAction, a.Op)
}

func (c *Casino) doCoinFlip(ctx context.Context, p string, a Action, key *game.MatchKey) (err error) {
	switch a.Op {
	case "create":
		key.ID, err = c.CoinFlip.Create(ctx, p, a.Stake)
		return err
	case "join":
		return c.CoinFlip.Join(ctx, a.Match, p, a.Stake)
	case "choose":
		return c.CoinFlip.SubmitChoice(ctx, a.Match, p, a.Value)
	case "cancel":
		return c.CoinFlip.Cancel(ctx, a.Match, p)
	case "leave":
		return c.CoinFlip.Leave(ctx, a.Match, p)
	}
	return fmt.Errorf("%w: coinflip %q", game.ErrUnknownAction, a.Op)
}

func (c *Casino) doBeauty(ctx context.Context, p string, a Action, key *game.MatchKey) (err error) {
	switch a.Op {
	case "create":
		key.ID, err = c.Beauty.Create(ctx, p, a.MinPlayers, a.MaxPlayers, a.Stake)
		return err
	case "quickmatch":
		key.ID, err = c.Beauty.QuickMatch(ctx, p, a.MaxPlayers, a.Stake)
		return err
	case "join":
		return c.Beauty.Join(ctx, a.Match, p, a.Stake)
	case "start":
		return c.Beauty.Start(ctx, a.Match, p)
	case "guess":
		return c.Beauty.SubmitGuess(ctx, a.Match, p, a.Value)
	case "finalize":
		return c.Beauty.Finalize(ctx, a.Match)
	case "leave":
		return c.Beauty.Leave(ctx, a.Match, p)
	}
	return fmt.Errorf("%w: beauty %q", game.ErrUnknownAction, a.Op)
}

// List returns the registry records of every match of kind.
func (c *Casino) List(kind game.Kind) []registry.Match {
	return c.Env.Registry.List(kind)
}
