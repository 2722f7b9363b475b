package blackjack

import "github.com/lox/wagerd/poker"

// HandValue totals blackjack ranks (Ace=1 ... King=13). Faces count ten;
// each Ace counts eleven unless that would bust the hand.
func HandValue(ranks []int) int {
	total, aces := 0, 0
	for _, r := range ranks {
		switch {
		case r == 1:
			total += 11
			aces++
		case r >= 10:
			total += 10
		default:
			total += r
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

// rankOf maps a deck card to its blackjack rank.
func rankOf(c poker.Card) int {
	if c.Rank() == poker.Ace {
		return 1
	}
	return int(c.Rank()) + 2
}
