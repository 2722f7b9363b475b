package beauty

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		guesses    []int
		average    int
		target     int
		winner     int // index into guesses, -1 for none
		eliminated int
	}{
		{"closest to target", []int{60, 30, 45}, 45, 36, 1, 0},
		{"exact match", []int{50, 40, 32}, 40, 32, 2, 0},
		{"five players", []int{100, 70, 50, 30, 10}, 52, 41, 2, 0},
		{"four players", []int{80, 50, 30, 20}, 45, 36, 2, 0},
		{"two players standard", []int{50, 30}, 40, 32, 1, 0},
		{"duplicates eliminated", []int{50, 50, 30}, 43, 34, 2, 2},
		{"all duplicates", []int{42, 42}, 42, 33, -1, 2},
		{"nash equilibrium", []int{0, 0}, 0, 0, -1, 2},
		{"zero beats one", []int{0, 1}, 0, 0, 0, 0},
		{"one beats hundred", []int{1, 100}, 50, 40, 0, 0},
		{"hundred beats zero", []int{100, 0}, 50, 40, 0, 0},
		{"one beats hundred reversed", []int{100, 1}, 50, 40, 1, 0},
		{"other pairs use distance", []int{40, 30}, 35, 28, 1, 0},
		{"duplicates still count toward average", []int{30, 50, 40, 40, 40}, 40, 32, 0, 3},
		{"sole survivor", []int{10, 10, 90}, 36, 28, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			players := make([]string, len(tt.guesses))
			guesses := make(map[string]int, len(tt.guesses))
			for i, g := range tt.guesses {
				players[i] = string(rune('a' + i))
				guesses[players[i]] = g
			}

			out := Resolve(players, guesses)
			assert.Equal(t, tt.average, out.Average)
			assert.Equal(t, tt.target, out.Target)
			assert.Len(t, out.Eliminated, tt.eliminated)
			if tt.winner < 0 {
				assert.Empty(t, out.Winner)
				assert.True(t, out.Refund)
				return
			}
			assert.Equal(t, players[tt.winner], out.Winner)
			assert.False(t, out.Refund)
		})
	}
}

func TestResolveEquidistantSurvivors(t *testing.T) {
	t.Parallel()

	// Average 30, target 24: 20 and 28 are both four away.
	players := []string{"a", "b", "c"}
	out := Resolve(players, map[string]int{"a": 28, "b": 20, "c": 42})
	assert.Equal(t, 24, out.Target)
	assert.Equal(t, "b", out.Winner)
}

func TestResolveMissingGuessesForfeit(t *testing.T) {
	t.Parallel()

	players := []string{"a", "b", "c"}
	out := Resolve(players, map[string]int{"a": 60, "b": 30})
	assert.Equal(t, 45, out.Average)
	assert.Equal(t, 36, out.Target)
	assert.Equal(t, "b", out.Winner)

	out = Resolve(players, nil)
	assert.True(t, out.Refund)
	assert.Empty(t, out.Winner)
}
