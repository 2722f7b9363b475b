package statistics

import (
	"fmt"
	"math"
	"sort"

	"github.com/lox/wagerd/internal/game"
)

// MatchResult represents the outcome of a single match from the point of
// view of its first participant.
type MatchResult struct {
	Kind     game.Kind
	Seed     int64 // Seed of the match's randomness, for replay
	Stake    int64
	Pot      int64
	Net      int64 // Chips won or lost by the first participant
	Players  int
	Refunded bool
}

// NetStakes is Net expressed in stakes.
func (r MatchResult) NetStakes() float64 {
	if r.Stake == 0 {
		return 0
	}
	return float64(r.Net) / float64(r.Stake)
}

// Statistics tracks the results of many matches of one kind
type Statistics struct {
	Kind    game.Kind
	Matches int
	Sum     float64
	Sum2    float64   // Sum of squares for variance calculation
	Values  []float64 // Store all values for median/percentile calculation

	Wins    int
	Losses  int
	Pushes  int
	Refunds int

	WinSum  float64
	LossSum float64

	// Pot size analytics
	MaxPot   int64
	TotalPot int64
	Players  int
}

// Mean returns the arithmetic mean result in stakes per match
func (s *Statistics) Mean() float64 {
	if s.Matches == 0 {
		return 0
	}
	return s.Sum / float64(s.Matches)
}

// Variance returns the sample variance of all results
func (s *Statistics) Variance() float64 {
	if s.Matches < 2 {
		return 0
	}
	mean := s.Mean()
	return (s.Sum2 - float64(s.Matches)*mean*mean) / float64(s.Matches-1)
}

// StdDev returns the sample standard deviation of all results
func (s *Statistics) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// StdError returns the standard error of the mean
func (s *Statistics) StdError() float64 {
	if s.Matches == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Matches))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

// Add incorporates a match result
func (s *Statistics) Add(result MatchResult) {
	net := result.NetStakes()
	s.Matches++
	s.Sum += net
	s.Sum2 += net * net
	s.Values = append(s.Values, net)

	switch {
	case result.Refunded:
		s.Refunds++
	case result.Net > 0:
		s.Wins++
		s.WinSum += net
	case result.Net < 0:
		s.Losses++
		s.LossSum += net
	default:
		s.Pushes++
	}

	s.TotalPot += result.Pot
	s.Players += result.Players
	if result.Pot > s.MaxPot {
		s.MaxPot = result.Pot
	}
}

// Median returns the median value of all results
func (s *Statistics) Median() float64 {
	return s.Percentile(0.5)
}

// Percentile returns the value at the given percentile (0.0 to 1.0)
func (s *Statistics) Percentile(p float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := make([]float64, len(s.Values))
	copy(sorted, s.Values)
	sort.Float64s(sorted)

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// AveragePot returns the mean pot size in chips
func (s *Statistics) AveragePot() float64 {
	if s.Matches == 0 {
		return 0
	}
	return float64(s.TotalPot) / float64(s.Matches)
}

// IsBalanced checks that wins and losses account for the whole sum
func (s *Statistics) IsBalanced() bool {
	return math.Abs(s.Sum-s.WinSum-s.LossSum) <= 1e-6
}

// Validate performs consistency checks over the collected data
func (s *Statistics) Validate() error {
	if !s.IsBalanced() {
		return fmt.Errorf("result mismatch: sum=%.6f, wins=%.6f, losses=%.6f",
			s.Sum, s.WinSum, s.LossSum)
	}

	if s.Matches <= 0 {
		return fmt.Errorf("invalid match count: %d", s.Matches)
	}

	if len(s.Values) != s.Matches {
		return fmt.Errorf("values array length (%d) does not match match count (%d)",
			len(s.Values), s.Matches)
	}

	if total := s.Wins + s.Losses + s.Pushes + s.Refunds; total != s.Matches {
		return fmt.Errorf("outcome total (%d) does not match match count (%d)", total, s.Matches)
	}

	return nil
}
