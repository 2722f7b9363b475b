package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/lox/wagerd/internal/config"
	"github.com/lox/wagerd/internal/game"
	"github.com/lox/wagerd/internal/secret"
	"github.com/lox/wagerd/internal/simulator"
)

// SimulateCmd plays randomised matches in parallel
type SimulateCmd struct {
	Matches int      `default:"1000" help:"Number of matches to play"`
	Games   []string `help:"Games to play: blackjack, poker, coinflip, beauty (default all)"`
	Seed    int64    `default:"0" help:"RNG seed (0 for random)"`
	Workers int      `default:"0" help:"Parallel workers (0 for GOMAXPROCS)"`
	Stake   int64    `default:"10" help:"Stake per match"`
	Plain   bool     `help:"Use the plain secret provider instead of ElGamal"`
	Report  string   `type:"path" help:"Write a JSON report to this file"`
}

func (c *SimulateCmd) Run(g *Globals) error {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := setupLogger("warn", g.Debug)

	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}

	kinds := make([]game.Kind, 0, len(c.Games))
	for _, name := range c.Games {
		kind, err := game.ParseKind(name)
		if err != nil {
			return err
		}
		kinds = append(kinds, kind)
	}

	simCfg := simulator.Config{
		Matches: c.Matches,
		Games:   kinds,
		Seed:    c.Seed,
		Workers: c.Workers,
		Stake:   c.Stake,
		Rules:   cfg.Rules(),
		Logger:  logger,
	}
	if c.Plain {
		simCfg.Secrets = secret.NewPlain()
	}

	fmt.Printf("Starting simulation: %d matches on %d workers (seed: %d)\n",
		c.Matches, c.Workers, c.Seed)

	ctx := setupSignalHandler(logger)
	report, err := simulator.New(simCfg).Run(ctx)
	if report == nil {
		return err
	}
	simulator.PrintSummary(report)
	if c.Report != "" {
		if werr := simulator.WriteReport(c.Report, report); werr != nil {
			return werr
		}
		fmt.Printf("Report written to %s\n", c.Report)
	}
	return err
}
