// Package engine holds what every game engine shares: the ledger, the
// registry, the event bus, a clock, randomness and the secret provider,
// plus the per-match lock table engines keep their state in.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/wagerd/internal/game"
	"github.com/lox/wagerd/internal/ledger"
	"github.com/lox/wagerd/internal/randutil"
	"github.com/lox/wagerd/internal/registry"
	"github.com/lox/wagerd/internal/secret"
)

// Env is the set of collaborators engines run against.
type Env struct {
	Ledger   *ledger.Ledger
	Registry *registry.Registry
	Bus      *game.Bus
	Clock    quartz.Clock
	Rand     randutil.Source
	Secrets  secret.Provider
	Logger   *log.Logger
}

// Option configures an Env during creation.
type Option func(*envConfig)

type envConfig struct {
	clock   quartz.Clock
	rng     randutil.Source
	secrets secret.Provider
	bus     *game.Bus
	logger  *log.Logger
}

// WithClock sets the clock. Tests pass quartz.NewMock(t).
func WithClock(clock quartz.Clock) Option {
	return func(c *envConfig) { c.clock = clock }
}

// WithRand sets the randomness source. It is wrapped for concurrent use.
func WithRand(rng randutil.Source) Option {
	return func(c *envConfig) { c.rng = rng }
}

// WithSecrets sets the secret provider.
func WithSecrets(p secret.Provider) Option {
	return func(c *envConfig) { c.secrets = p }
}

// WithBus sets the event bus.
func WithBus(bus *game.Bus) Option {
	return func(c *envConfig) { c.bus = bus }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *envConfig) { c.logger = logger }
}

// New builds an Env over wallet. Unset collaborators default to the real
// clock, a ChaCha8 source, ElGamal secrets and the default logger.
func New(wallet ledger.Wallet, opts ...Option) *Env {
	cfg := &envConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.clock == nil {
		cfg.clock = quartz.NewReal()
	}
	if cfg.rng == nil {
		cfg.rng = randutil.Secure()
	}
	if cfg.secrets == nil {
		cfg.secrets = secret.NewElGamal()
	}
	if cfg.bus == nil {
		cfg.bus = game.NewBus()
	}
	if cfg.logger == nil {
		cfg.logger = log.Default()
	}

	return &Env{
		Ledger:   ledger.New(wallet, cfg.logger),
		Registry: registry.New(cfg.logger),
		Bus:      cfg.bus,
		Clock:    cfg.clock,
		Rand:     randutil.Synchronized(cfg.rng),
		Secrets:  cfg.secrets,
		Logger:   cfg.logger,
	}
}

// Now returns the current time from the env clock.
func (e *Env) Now() time.Time {
	return e.Clock.Now()
}

// Admit creates a match with participant seated and their stake in escrow.
// Nothing is left registered if the stake cannot be collected.
func (e *Env) Admit(ctx context.Context, kind game.Kind, participant string, stake int64, capacity int) (uint64, error) {
	if participant == ledger.House {
		return 0, game.ErrReservedID
	}
	id, err := e.Registry.Create(kind, participant, stake, capacity, e.Now())
	if err != nil {
		return 0, err
	}
	key := game.MatchKey{Kind: kind, ID: id}

	if err := e.Ledger.Open(key, stake); err != nil {
		e.abandon(kind, id, participant)
		return 0, err
	}
	if err := e.Ledger.Collect(ctx, key, participant, stake); err != nil {
		e.abandon(kind, id, participant)
		e.Discard(key)
		return 0, err
	}
	return id, nil
}

// Seat joins participant to a match and collects their stake, undoing the
// join if collection fails.
func (e *Env) Seat(ctx context.Context, key game.MatchKey, participant string, stake int64) (registry.Match, error) {
	if participant == ledger.House {
		return registry.Match{}, game.ErrReservedID
	}
	m, err := e.Registry.Join(key.Kind, key.ID, participant, stake)
	if err != nil {
		return registry.Match{}, err
	}
	if err := e.Ledger.Collect(ctx, key, participant, stake); err != nil {
		if _, lerr := e.Registry.Leave(key.Kind, key.ID, participant); lerr != nil {
			e.Logger.Error("Failed to unseat after refused stake", "match", key, "participant", participant, "error", lerr)
		}
		return registry.Match{}, err
	}
	return m, nil
}

// Unseat releases participant's stake and removes them from the match.
func (e *Env) Unseat(ctx context.Context, key game.MatchKey, participant string) (registry.Match, error) {
	if err := e.Ledger.Release(ctx, key, participant); err != nil {
		return registry.Match{}, err
	}
	m, err := e.Registry.Leave(key.Kind, key.ID, participant)
	if err != nil {
		return registry.Match{}, fmt.Errorf("stake released but leave failed: %w", err)
	}
	return m, nil
}

// Settle pays out the pot and frees the participants for new matches.
func (e *Env) Settle(ctx context.Context, key game.MatchKey, distribution map[string]int64) error {
	if err := e.Ledger.Payout(ctx, key, distribution); err != nil {
		return err
	}
	return e.finish(key)
}

// RefundAll returns every stake and frees the participants.
func (e *Env) RefundAll(ctx context.Context, key game.MatchKey) error {
	if err := e.Ledger.Refund(ctx, key); err != nil {
		return err
	}
	return e.finish(key)
}

func (e *Env) finish(key game.MatchKey) error {
	if err := e.Registry.ClearActive(key.Kind, key.ID); err != nil && !errors.Is(err, game.ErrMatchNotFound) {
		return err
	}
	return nil
}

// Discard drops the escrow of a match that was abandoned before anything
// stayed collected.
func (e *Env) Discard(key game.MatchKey) {
	if err := e.Ledger.Discard(key); err != nil {
		e.Logger.Error("Failed to discard escrow", "match", key, "error", err)
	}
}

func (e *Env) abandon(kind game.Kind, id uint64, participant string) {
	if _, err := e.Registry.Leave(kind, id, participant); err != nil {
		e.Logger.Error("Failed to abandon match", "kind", kind, "match", id, "error", err)
	}
}

// Event builds an event stamped with the env clock.
func (e *Env) Event(typ game.EventType, key game.MatchKey, participant string, payload map[string]any) game.Event {
	return game.NewEvent(typ, key, participant, e.Now(), payload)
}

// Publish hands events to the bus. Call it after releasing match locks.
func (e *Env) Publish(events ...game.Event) {
	e.Bus.Publish(events...)
}
