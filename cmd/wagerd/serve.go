package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/lox/wagerd/internal/auth"
	"github.com/lox/wagerd/internal/casino"
	"github.com/lox/wagerd/internal/config"
	"github.com/lox/wagerd/internal/engine"
	"github.com/lox/wagerd/internal/randutil"
	"github.com/lox/wagerd/internal/secret"
	"github.com/lox/wagerd/internal/server"
)

// ServeCmd runs the WebSocket server
type ServeCmd struct {
	Addr string `short:"a" help:"Server address to bind to (overrides config)"`
	Seed *int64 `help:"Deterministic RNG seed (overrides config)"`
}

func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return err
	}
	if c.Seed != nil {
		cfg.Server.Seed = *c.Seed
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	addr := cfg.Address()
	if c.Addr != "" {
		addr = c.Addr
	}

	logger := setupLogger(cfg.Server.LogLevel, g.Debug)
	cas := newCasino(cfg, logger)

	logger.Info("Starting wagerd",
		"addr", addr,
		"secrets", cfg.Server.Secrets,
		"wallets", len(cfg.Wallets),
		"dealer_stands_on", cfg.Blackjack.DealerStandsOn,
		"blinds", fmt.Sprintf("%d/%d", cfg.Poker.SmallBlind, cfg.Poker.BigBlind),
		"guess_window", cfg.Beauty.GuessWindow)

	var opts []server.Option
	if cfg.Server.AuthURL != "" {
		logger.Info("Validating credentials", "auth_url", cfg.Server.AuthURL)
		opts = append(opts, server.WithValidator(auth.NewHTTPValidator(cfg.Server.AuthURL, cfg.Server.AuthSecret)))
	}

	ctx := setupSignalHandler(logger)
	return server.NewServer(addr, cas, logger, opts...).Run(ctx)
}

// newCasino wires the configured wallet, randomness and secrets into a
// casino.
func newCasino(cfg *config.Config, logger *log.Logger) *casino.Casino {
	opts := []engine.Option{engine.WithLogger(logger)}

	if seed := cfg.Server.Seed; seed != 0 {
		logger.Warn("Using deterministic seed; shuffles are predictable", "seed", seed)
		opts = append(opts, engine.WithRand(randutil.New(seed)))
	}
	if cfg.Server.Secrets == "plain" {
		logger.Warn("Using plain secret provider; hidden values are held in the clear")
		opts = append(opts, engine.WithSecrets(secret.NewPlain()))
	}

	return casino.New(cfg.Wallet(), cfg.Rules(), opts...)
}
