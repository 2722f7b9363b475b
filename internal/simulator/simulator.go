// Package simulator plays many randomised matches of every game against one
// casino and checks that chips are conserved.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/wagerd/internal/blackjack"
	"github.com/lox/wagerd/internal/casino"
	"github.com/lox/wagerd/internal/engine"
	"github.com/lox/wagerd/internal/fileutil"
	"github.com/lox/wagerd/internal/game"
	"github.com/lox/wagerd/internal/headsup"
	"github.com/lox/wagerd/internal/ledger"
	"github.com/lox/wagerd/internal/randutil"
	"github.com/lox/wagerd/internal/secret"
	"github.com/lox/wagerd/internal/statistics"
	"golang.org/x/sync/errgroup"
)

// Config holds configuration for running simulations
type Config struct {
	Matches int
	Games   []game.Kind
	Seed    int64
	Workers int
	Stake   int64
	Rules   casino.Config
	// Secrets defaults to ElGamal.
	Secrets secret.Provider
	Logger  *log.Logger
}

const (
	houseReserve  = 1 << 40
	maxPokerSteps = 200
)

// Report is the outcome of a simulation run
type Report struct {
	Stats       map[game.Kind]*statistics.Statistics
	FundsBefore int64
	FundsAfter  int64
	Duration    time.Duration
}

// Simulator runs match simulations
type Simulator struct {
	config Config
	casino *casino.Casino
	wallet *ledger.MemoryWallet

	mu     sync.Mutex
	funded int64
}

// New creates a new simulator with the given configuration
func New(config Config) *Simulator {
	if len(config.Games) == 0 {
		config.Games = game.Kinds
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.Stake <= 0 {
		config.Stake = 10
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	wallet := ledger.NewMemoryWallet()
	wallet.Fund(ledger.House, houseReserve)

	opts := []engine.Option{
		engine.WithRand(randutil.New(config.Seed)),
		engine.WithLogger(config.Logger),
	}
	if config.Secrets != nil {
		opts = append(opts, engine.WithSecrets(config.Secrets))
	}

	return &Simulator{
		config: config,
		casino: casino.New(wallet, config.Rules, opts...),
		wallet: wallet,
		funded: houseReserve,
	}
}

// Run plays every match and returns the per-game statistics
func (s *Simulator) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	results := make([]statistics.MatchResult, s.config.Matches)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for i := 0; i < s.config.Matches; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			kind := s.config.Games[i%len(s.config.Games)]
			seed := s.config.Seed + int64(i)
			res, err := s.play(ctx, kind, i, randutil.New(seed))
			if err != nil {
				return fmt.Errorf("%s match %d (seed %d): %w", kind, i, seed, err)
			}
			res.Seed = seed
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		Stats:       make(map[game.Kind]*statistics.Statistics),
		FundsBefore: s.totalFunded(),
		FundsAfter:  s.wallet.Total(),
		Duration:    time.Since(start),
	}
	for _, res := range results {
		stats, ok := report.Stats[res.Kind]
		if !ok {
			stats = &statistics.Statistics{Kind: res.Kind}
			report.Stats[res.Kind] = stats
		}
		stats.Add(res)
	}
	for kind, stats := range report.Stats {
		if err := stats.Validate(); err != nil {
			return nil, fmt.Errorf("%s statistics: %w", kind, err)
		}
	}
	if report.FundsBefore != report.FundsAfter {
		return report, fmt.Errorf("funds not conserved: %d before, %d after", report.FundsBefore, report.FundsAfter)
	}
	return report, nil
}

func (s *Simulator) play(ctx context.Context, kind game.Kind, n int, rng randutil.Source) (statistics.MatchResult, error) {
	switch kind {
	case game.Blackjack:
		return s.playBlackjack(ctx, n, rng)
	case game.Poker:
		return s.playPoker(ctx, n, rng)
	case game.CoinFlip:
		return s.playCoinFlip(ctx, n, rng)
	case game.BeautyContest:
		return s.playBeauty(ctx, n, rng)
	}
	return statistics.MatchResult{}, fmt.Errorf("unknown game kind %s", kind)
}

// seat funds a fresh participant with exactly amount.
func (s *Simulator) seat(n, i int, amount int64) string {
	name := fmt.Sprintf("sim-%d-%d", n, i)
	s.wallet.Fund(name, amount)
	s.mu.Lock()
	s.funded += amount
	s.mu.Unlock()
	return name
}

func (s *Simulator) totalFunded() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.funded
}

func (s *Simulator) result(kind game.Kind, player string, stake, pot int64, players int, refunded bool) statistics.MatchResult {
	return statistics.MatchResult{
		Kind:     kind,
		Stake:    stake,
		Pot:      pot,
		Net:      s.wallet.Balance(player) - stake,
		Players:  players,
		Refunded: refunded,
	}
}

func (s *Simulator) playBlackjack(ctx context.Context, n int, rng randutil.Source) (statistics.MatchResult, error) {
	stake := s.config.Stake
	player := s.seat(n, 0, stake)
	bj := s.casino.Blackjack

	id, err := bj.Start(ctx, player, stake)
	if err != nil {
		return statistics.MatchResult{}, err
	}
	// Hit below a per-match threshold between 12 and 17.
	threshold := 12 + rng.IntN(6)
	for {
		v, err := bj.View(id)
		if err != nil {
			return statistics.MatchResult{}, err
		}
		if v.Status != blackjack.PlayerTurn {
			if v.Status != blackjack.Finished {
				return statistics.MatchResult{}, fmt.Errorf("match stuck in %s", v.StatusName)
			}
			return s.result(game.Blackjack, player, stake, v.Pot, 1, false), nil
		}
		if v.PlayerValue < threshold {
			err = bj.Hit(ctx, id, player)
		} else {
			err = bj.Stand(ctx, id, player)
		}
		if err != nil {
			return statistics.MatchResult{}, err
		}
	}
}

func (s *Simulator) playCoinFlip(ctx context.Context, n int, rng randutil.Source) (statistics.MatchResult, error) {
	stake := s.config.Stake
	alice, bob := s.seat(n, 0, stake), s.seat(n, 1, stake)
	cf := s.casino.CoinFlip

	id, err := cf.Create(ctx, alice, stake)
	if err != nil {
		return statistics.MatchResult{}, err
	}
	if err := cf.Join(ctx, id, bob, stake); err != nil {
		return statistics.MatchResult{}, err
	}
	for _, p := range []string{alice, bob} {
		if err := cf.SubmitChoice(ctx, id, p, rng.IntN(2)); err != nil {
			return statistics.MatchResult{}, err
		}
	}
	v, err := cf.View(id)
	if err != nil {
		return statistics.MatchResult{}, err
	}
	return s.result(game.CoinFlip, alice, stake, v.Pot, 2, v.Winner == ""), nil
}

func (s *Simulator) playBeauty(ctx context.Context, n int, rng randutil.Source) (statistics.MatchResult, error) {
	fee := s.config.Stake
	size := 2 + rng.IntN(4)
	players := make([]string, size)
	for i := range players {
		players[i] = s.seat(n, i, fee)
	}
	bc := s.casino.Beauty

	id, err := bc.Create(ctx, players[0], 2, size, fee)
	if err != nil {
		return statistics.MatchResult{}, err
	}
	// The last join fills the contest and starts it.
	for _, p := range players[1:] {
		if err := bc.Join(ctx, id, p, fee); err != nil {
			return statistics.MatchResult{}, err
		}
	}
	// The last guess finalizes.
	for _, p := range players {
		if err := bc.SubmitGuess(ctx, id, p, rng.IntN(101)); err != nil {
			return statistics.MatchResult{}, err
		}
	}
	v, err := bc.View(id)
	if err != nil {
		return statistics.MatchResult{}, err
	}
	return s.result(game.BeautyContest, players[0], fee, v.Pot, size, v.Refunded), nil
}

func (s *Simulator) playPoker(ctx context.Context, n int, rng randutil.Source) (statistics.MatchResult, error) {
	buyIn := 20 * s.bigBlind()
	alice, bob := s.seat(n, 0, buyIn), s.seat(n, 1, buyIn)
	hu := s.casino.Poker

	id, err := hu.Create(ctx, alice, buyIn)
	if err != nil {
		return statistics.MatchResult{}, err
	}
	if err := hu.Join(ctx, id, bob, buyIn); err != nil {
		return statistics.MatchResult{}, err
	}

	for step := 0; ; step++ {
		v, err := hu.View(id, "")
		if err != nil {
			return statistics.MatchResult{}, err
		}
		if v.Stage == headsup.Finished {
			return s.result(game.Poker, alice, buyIn, v.Pot, 2, false), nil
		}
		if v.ToAct == "" {
			return statistics.MatchResult{}, fmt.Errorf("no player to act in %s", v.StageName)
		}
		if err := s.pokerMove(ctx, v, step, rng); err != nil {
			return statistics.MatchResult{}, err
		}
	}
}

// pokerMove plays one random but legal action for the player to act.
func (s *Simulator) pokerMove(ctx context.Context, v headsup.View, step int, rng randutil.Source) error {
	hu := s.casino.Poker
	player := v.ToAct

	var facing int64
	for _, seat := range v.Seats {
		if seat.Player == player {
			facing -= seat.Bet
		} else {
			facing += seat.Bet
		}
	}

	if step >= maxPokerSteps {
		return hu.Fold(ctx, v.ID, player)
	}

	roll := rng.IntN(10)
	if facing == 0 {
		if roll < 7 {
			return hu.Check(ctx, v.ID, player)
		}
		err := hu.Raise(ctx, v.ID, player, int64(1+rng.IntN(3))*s.bigBlind())
		if errors.Is(err, game.ErrInsufficientStack) {
			return hu.Check(ctx, v.ID, player)
		}
		return err
	}

	switch {
	case roll < 2:
		return hu.Fold(ctx, v.ID, player)
	case roll < 8:
		return hu.Call(ctx, v.ID, player)
	}
	err := hu.Raise(ctx, v.ID, player, s.bigBlind())
	if errors.Is(err, game.ErrInsufficientStack) {
		return hu.Call(ctx, v.ID, player)
	}
	return err
}

func (s *Simulator) bigBlind() int64 {
	if bb := s.config.Rules.Poker.BigBlind; bb > 0 {
		return bb
	}
	return headsup.DefaultConfig().BigBlind
}

// PrintSummary prints per-game results
func PrintSummary(report *Report) {
	fmt.Printf("\n=== SIMULATION RESULTS (%v) ===\n", report.Duration.Round(time.Millisecond))
	for _, kind := range game.Kinds {
		stats, ok := report.Stats[kind]
		if !ok {
			continue
		}
		low, high := stats.ConfidenceInterval95()
		fmt.Printf("\n--- %s ---\n", kind)
		fmt.Printf("Matches: %d (wins %d, losses %d, pushes %d, refunds %d)\n",
			stats.Matches, stats.Wins, stats.Losses, stats.Pushes, stats.Refunds)
		fmt.Printf("First seat: %.4f stakes/match, 95%% CI [%.4f, %.4f]\n", stats.Mean(), low, high)
		fmt.Printf("Percentiles: P5=%.3f, P50=%.3f, P95=%.3f\n",
			stats.Percentile(0.05), stats.Median(), stats.Percentile(0.95))
		fmt.Printf("Pots: avg %.1f, max %d chips; avg %.2f players\n",
			stats.AveragePot(), stats.MaxPot, float64(stats.Players)/float64(stats.Matches))
	}
	fmt.Printf("\nFunds: %d before, %d after\n", report.FundsBefore, report.FundsAfter)
}

// GameSummary is the per-game section of a written report.
type GameSummary struct {
	Game       string     `json:"game"`
	Matches    int        `json:"matches"`
	Mean       float64    `json:"mean"`
	StdDev     float64    `json:"stdDev"`
	CI95       [2]float64 `json:"ci95"`
	Wins       int        `json:"wins"`
	Losses     int        `json:"losses"`
	Pushes     int        `json:"pushes"`
	Refunds    int        `json:"refunds"`
	AveragePot float64    `json:"averagePot"`
	MaxPot     int64      `json:"maxPot"`
}

// Summaries returns one entry per simulated game in kind order.
func (r *Report) Summaries() []GameSummary {
	var out []GameSummary
	for _, kind := range game.Kinds {
		stats, ok := r.Stats[kind]
		if !ok {
			continue
		}
		low, high := stats.ConfidenceInterval95()
		out = append(out, GameSummary{
			Game:       kind.String(),
			Matches:    stats.Matches,
			Mean:       stats.Mean(),
			StdDev:     stats.StdDev(),
			CI95:       [2]float64{low, high},
			Wins:       stats.Wins,
			Losses:     stats.Losses,
			Pushes:     stats.Pushes,
			Refunds:    stats.Refunds,
			AveragePot: stats.AveragePot(),
			MaxPot:     stats.MaxPot,
		})
	}
	return out
}

// WriteReport saves the report as JSON.
func WriteReport(filename string, report *Report) error {
	return fileutil.WriteJSONAtomic(filename, struct {
		Duration    string        `json:"duration"`
		FundsBefore int64         `json:"fundsBefore"`
		FundsAfter  int64         `json:"fundsAfter"`
		Games       []GameSummary `json:"games"`
	}{
		Duration:    report.Duration.String(),
		FundsBefore: report.FundsBefore,
		FundsAfter:  report.FundsAfter,
		Games:       report.Summaries(),
	})
}
