package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lox/wagerd/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wagerd.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.hcl"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "localhost:8080", cfg.Address())
	assert.Equal(t, "elgamal", cfg.Server.Secrets)
	assert.Equal(t, 17, cfg.Blackjack.DealerStandsOn)

	rules := cfg.Rules()
	assert.Equal(t, int64(5), rules.Poker.SmallBlind)
	assert.Equal(t, int64(10), rules.Poker.BigBlind)
	assert.Equal(t, 2*time.Minute, rules.Beauty.GuessWindow)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server {
  address   = "0.0.0.0"
  port      = 9000
  log_level = "debug"
  seed      = 42
  secrets   = "plain"
  auth_url  = "http://auth.local/validate"
}

ledger {
  house_reserve = 5000
}

blackjack {
  dealer_stands_on = 16
}

poker {
  small_blind = 1
  big_blind   = 2
}

beauty {
  guess_window = "30s"
}

wallet "alice" {
  balance = 100
}

wallet "bob" {
  balance = 250
}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:9000", cfg.Address())
	assert.Equal(t, int64(42), cfg.Server.Seed)
	assert.Equal(t, "http://auth.local/validate", cfg.Server.AuthURL)

	rules := cfg.Rules()
	assert.Equal(t, 16, rules.Blackjack.DealerStandsOn)
	assert.Equal(t, int64(2), rules.Poker.BigBlind)
	assert.Equal(t, 30*time.Second, rules.Beauty.GuessWindow)

	wallet := cfg.Wallet()
	assert.Equal(t, int64(5000), wallet.Balance(ledger.House))
	assert.Equal(t, int64(100), wallet.Balance("alice"))
	assert.Equal(t, int64(250), wallet.Balance("bob"))
}

func TestLoadPartialFile(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, `wallet "carol" { balance = 10 }`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.Server.Port)
	require.Len(t, cfg.Wallets, 1)
	assert.Equal(t, "carol", cfg.Wallets[0].Account)
}

func TestLoadRejectsMalformed(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, `server { port = `))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `server { colour = "red" }`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"log level", func(c *Config) { c.Server.LogLevel = "loud" }},
		{"secrets", func(c *Config) { c.Server.Secrets = "rot13" }},
		{"auth secret without url", func(c *Config) { c.Server.AuthSecret = "x" }},
		{"reserve", func(c *Config) { c.Ledger.HouseReserve = -1 }},
		{"dealer", func(c *Config) { c.Blackjack.DealerStandsOn = 25 }},
		{"small blind", func(c *Config) { c.Poker.SmallBlind = 0 }},
		{"big blind", func(c *Config) { c.Poker.BigBlind = c.Poker.SmallBlind }},
		{"window", func(c *Config) { c.Beauty.GuessWindow = "soon" }},
		{"house wallet", func(c *Config) { c.Wallets = []WalletConfig{{Account: ledger.House, Balance: 1}} }},
		{"duplicate wallet", func(c *Config) {
			c.Wallets = []WalletConfig{{Account: "a", Balance: 1}, {Account: "a", Balance: 2}}
		}},
		{"negative wallet", func(c *Config) { c.Wallets = []WalletConfig{{Account: "a", Balance: -1}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
