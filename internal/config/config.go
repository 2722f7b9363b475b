// Package config loads the wagerd HCL configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/lox/wagerd/internal/beauty"
	"github.com/lox/wagerd/internal/blackjack"
	"github.com/lox/wagerd/internal/casino"
	"github.com/lox/wagerd/internal/headsup"
	"github.com/lox/wagerd/internal/ledger"
)

// Config represents the complete wagerd configuration
type Config struct {
	Server    *ServerSettings    `hcl:"server,block"`
	Ledger    *LedgerSettings    `hcl:"ledger,block"`
	Blackjack *BlackjackSettings `hcl:"blackjack,block"`
	Poker     *PokerSettings     `hcl:"poker,block"`
	Beauty    *BeautySettings    `hcl:"beauty,block"`
	Wallets   []WalletConfig     `hcl:"wallet,block"`
}

// ServerSettings contains process-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	// Seed makes shuffles reproducible. Zero selects the secure source.
	Seed int64 `hcl:"seed,optional"`
	// Secrets is "elgamal" or "plain".
	Secrets string `hcl:"secrets,optional"`
	// AuthURL enables credential checks against an external service.
	AuthURL    string `hcl:"auth_url,optional"`
	AuthSecret string `hcl:"auth_secret,optional"`
}

type LedgerSettings struct {
	HouseReserve int64 `hcl:"house_reserve,optional"`
}

type BlackjackSettings struct {
	DealerStandsOn int `hcl:"dealer_stands_on,optional"`
}

type PokerSettings struct {
	SmallBlind int64 `hcl:"small_blind,optional"`
	BigBlind   int64 `hcl:"big_blind,optional"`
}

type BeautySettings struct {
	GuessWindow string `hcl:"guess_window,optional"`
}

// WalletConfig pre-funds a participant account.
type WalletConfig struct {
	Account string `hcl:"account,label"`
	Balance int64  `hcl:"balance"`
}

const (
	defaultAddress      = "localhost"
	defaultPort         = 8080
	defaultLogLevel     = "info"
	defaultSecrets      = "elgamal"
	defaultHouseReserve = 1_000_000
)

// Default returns the configuration used when no file is present
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load loads configuration from an HCL file. A missing file yields the
// defaults.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server == nil {
		c.Server = &ServerSettings{}
	}
	if c.Server.Address == "" {
		c.Server.Address = defaultAddress
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = defaultLogLevel
	}
	if c.Server.Secrets == "" {
		c.Server.Secrets = defaultSecrets
	}

	if c.Ledger == nil {
		c.Ledger = &LedgerSettings{}
	}
	if c.Ledger.HouseReserve == 0 {
		c.Ledger.HouseReserve = defaultHouseReserve
	}

	if c.Blackjack == nil {
		c.Blackjack = &BlackjackSettings{}
	}
	if c.Blackjack.DealerStandsOn == 0 {
		c.Blackjack.DealerStandsOn = blackjack.DefaultConfig().DealerStandsOn
	}

	if c.Poker == nil {
		c.Poker = &PokerSettings{}
	}
	if c.Poker.SmallBlind == 0 && c.Poker.BigBlind == 0 {
		def := headsup.DefaultConfig()
		c.Poker.SmallBlind, c.Poker.BigBlind = def.SmallBlind, def.BigBlind
	}

	if c.Beauty == nil {
		c.Beauty = &BeautySettings{}
	}
	if c.Beauty.GuessWindow == "" {
		c.Beauty.GuessWindow = beauty.DefaultConfig().GuessWindow.String()
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Server.LogLevel)
	}
	switch c.Server.Secrets {
	case "elgamal", "plain":
	default:
		return fmt.Errorf("invalid secrets provider: %s", c.Server.Secrets)
	}
	if c.Server.AuthSecret != "" && c.Server.AuthURL == "" {
		return fmt.Errorf("auth_secret requires auth_url")
	}

	if c.Ledger.HouseReserve < 0 {
		return fmt.Errorf("ledger: house reserve must not be negative")
	}
	if c.Blackjack.DealerStandsOn < 12 || c.Blackjack.DealerStandsOn > 21 {
		return fmt.Errorf("blackjack: dealer_stands_on must be between 12 and 21")
	}
	if c.Poker.SmallBlind <= 0 {
		return fmt.Errorf("poker: small blind must be positive")
	}
	if c.Poker.BigBlind <= c.Poker.SmallBlind {
		return fmt.Errorf("poker: big blind must be greater than small blind")
	}
	window, err := time.ParseDuration(c.Beauty.GuessWindow)
	if err != nil {
		return fmt.Errorf("beauty: guess_window: %w", err)
	}
	if window <= 0 {
		return fmt.Errorf("beauty: guess_window must be positive")
	}

	seen := make(map[string]bool, len(c.Wallets))
	for _, w := range c.Wallets {
		if w.Account == ledger.House {
			return fmt.Errorf("wallet %s: reserved account, use ledger.house_reserve", w.Account)
		}
		if seen[w.Account] {
			return fmt.Errorf("wallet %s: declared twice", w.Account)
		}
		seen[w.Account] = true
		if w.Balance < 0 {
			return fmt.Errorf("wallet %s: balance must not be negative", w.Account)
		}
	}
	return nil
}

// Address returns the full listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// Rules converts the per-game blocks into engine configuration. Call
// Validate first.
func (c *Config) Rules() casino.Config {
	window, _ := time.ParseDuration(c.Beauty.GuessWindow)
	return casino.Config{
		Blackjack: blackjack.Config{DealerStandsOn: c.Blackjack.DealerStandsOn},
		Poker:     headsup.Config{SmallBlind: c.Poker.SmallBlind, BigBlind: c.Poker.BigBlind},
		Beauty:    beauty.Config{GuessWindow: window},
	}
}

// Wallet builds an in-memory wallet holding the house reserve and every
// configured balance.
func (c *Config) Wallet() *ledger.MemoryWallet {
	w := ledger.NewMemoryWallet()
	w.Fund(ledger.House, c.Ledger.HouseReserve)
	for _, cfg := range c.Wallets {
		w.Fund(cfg.Account, cfg.Balance)
	}
	return w
}
