package main

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/lox/wagerd/internal/config"
	"github.com/lox/wagerd/internal/secret"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommands(t *testing.T) {
	t.Parallel()

	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"})
	require.NoError(t, err)

	ctx, err := parser.Parse([]string{"-c", "other.hcl", "simulate", "--matches", "5", "--games", "poker,coinflip", "--plain"})
	require.NoError(t, err)
	assert.Equal(t, "simulate", ctx.Command())
	assert.Equal(t, "other.hcl", cli.Config)
	assert.Equal(t, 5, cli.Simulate.Matches)
	assert.Equal(t, []string{"poker", "coinflip"}, cli.Simulate.Games)
	assert.True(t, cli.Simulate.Plain)
}

func TestSetupLogger(t *testing.T) {
	t.Parallel()

	assert.Equal(t, log.WarnLevel, setupLogger("warn", false).GetLevel())
	assert.Equal(t, log.DebugLevel, setupLogger("warn", true).GetLevel())
	assert.Equal(t, log.InfoLevel, setupLogger("bogus", false).GetLevel())
}

func TestNewCasinoFromConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Server.Secrets = "plain"
	cfg.Server.Seed = 3
	cfg.Wallets = []config.WalletConfig{{Account: "alice", Balance: 50}}
	require.NoError(t, cfg.Validate())

	cas := newCasino(cfg, log.NewWithOptions(io.Discard, log.Options{}))
	assert.IsType(t, &secret.Plain{}, cas.Env.Secrets)

	id, err := cas.Blackjack.Start(context.Background(), "alice", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
}

func TestSimulateCommand(t *testing.T) {
	t.Parallel()

	report := filepath.Join(t.TempDir(), "report.json")
	cmd := &SimulateCmd{Matches: 8, Seed: 1, Workers: 2, Stake: 10, Plain: true, Games: []string{"coinflip", "beauty"}, Report: report}
	require.NoError(t, cmd.Run(&Globals{Config: t.TempDir() + "/absent.hcl"}))
	assert.FileExists(t, report)

	cmd.Games = []string{"roulette"}
	assert.Error(t, cmd.Run(&Globals{Config: t.TempDir() + "/absent.hcl"}))
}
