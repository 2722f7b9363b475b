package beauty

import "slices"

// Guess bounds.
const (
	MinGuess = 0
	MaxGuess = 100
)

// Outcome is the scoring of a finished contest.
type Outcome struct {
	Average    int
	Target     int
	Eliminated []string
	Winner     string
	// Refund is set when nobody is left to win.
	Refund bool
}

// duel holds the two-survivor pairs that are decided by precedence instead
// of distance: the key beats the value.
var duel = map[int]int{0: 1, 1: 100, 100: 0}

// Resolve scores guesses. Players without a guess forfeit: they are left
// out of the average and cannot win. Duplicated guesses eliminate everyone
// who made them. Equidistant survivors are separated by the lower guess.
func Resolve(players []string, guesses map[string]int) Outcome {
	var submitters []string
	for _, p := range players {
		if _, ok := guesses[p]; ok {
			submitters = append(submitters, p)
		}
	}
	if len(submitters) == 0 {
		return Outcome{Refund: true}
	}

	sum := 0
	counts := make(map[int]int, len(submitters))
	for _, p := range submitters {
		sum += guesses[p]
		counts[guesses[p]]++
	}
	out := Outcome{Average: sum / len(submitters)}
	out.Target = out.Average * 80 / 100

	var survivors []string
	for _, p := range submitters {
		if counts[guesses[p]] > 1 {
			out.Eliminated = append(out.Eliminated, p)
			continue
		}
		survivors = append(survivors, p)
	}
	if len(survivors) == 0 {
		out.Refund = true
		return out
	}

	if len(survivors) == 2 {
		a, b := survivors[0], survivors[1]
		ga, gb := guesses[a], guesses[b]
		if beaten, ok := duel[ga]; ok && beaten == gb {
			out.Winner = a
			return out
		}
		if beaten, ok := duel[gb]; ok && beaten == ga {
			out.Winner = b
			return out
		}
	}

	slices.SortStableFunc(survivors, func(a, b string) int {
		da, db := distance(guesses[a], out.Target), distance(guesses[b], out.Target)
		if da != db {
			return da - db
		}
		return guesses[a] - guesses[b]
	})
	out.Winner = survivors[0]
	return out
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
