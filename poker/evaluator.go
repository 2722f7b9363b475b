package poker

import (
	"fmt"
	"math/bits"

	ref "github.com/paulhankin/poker"
)

// HandType enumerates the categories of poker hands ordered from weakest to strongest.
type HandType uint8

const (
	HighCard HandType = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

var handTypeNames = [...]string{
	HighCard:      "High Card",
	Pair:          "Pair",
	TwoPair:       "Two Pair",
	ThreeOfAKind:  "Three of a Kind",
	Straight:      "Straight",
	Flush:         "Flush",
	FullHouse:     "Full House",
	FourOfAKind:   "Four of a Kind",
	StraightFlush: "Straight Flush",
}

func (t HandType) String() string {
	if int(t) < len(handTypeNames) {
		return handTypeNames[t]
	}
	return "Unknown"
}

// HandRank is the strength of the best five cards out of seven.
type HandRank struct {
	score int16
	typ   HandType
}

// Type returns the hand category.
func (hr HandRank) Type() HandType { return hr.typ }

func (hr HandRank) String() string { return hr.typ.String() }

// Evaluate7Cards scores a seven card hand. Scoring is delegated to
// paulhankin/poker; the category is derived from the rank and suit masks.
func Evaluate7Cards(hand Hand) HandRank {
	if n := hand.CountCards(); n != 7 {
		panic(fmt.Sprintf("poker: evaluate needs 7 cards, got %d", n))
	}
	var cards [7]ref.Card
	for i, c := range hand.Cards() {
		cards[i] = c.reference()
	}
	return HandRank{score: ref.Eval7(&cards), typ: classify(hand)}
}

// CompareHands compares two hands and returns 1 if a wins, -1 if b wins, 0 for tie
func CompareHands(a, b HandRank) int {
	switch {
	case a.score > b.score:
		return 1
	case a.score < b.score:
		return -1
	}
	return 0
}

// reference converts to the paulhankin encoding, where aces are rank 1.
func (c Card) reference() ref.Card {
	rank := ref.Rank(c.Rank() + 2)
	if c.Rank() == Ace {
		rank = 1
	}
	card, err := ref.MakeCard(ref.Suit(c.Suit()), rank)
	if err != nil {
		panic(err)
	}
	return card
}

const wheelMask = 1<<Ace | 1<<Two | 1<<Three | 1<<Four | 1<<Five

func hasStraight(mask uint16) bool {
	return mask&(mask>>1)&(mask>>2)&(mask>>3)&(mask>>4) != 0 || mask&wheelMask == wheelMask
}

// classify assumes seven cards, where a flush can never coexist with
// quads or a full house.
func classify(h Hand) HandType {
	var counts [13]int
	var all uint16
	flushSuit := -1
	for suit := uint8(0); suit < 4; suit++ {
		mask := h.GetSuitMask(suit)
		all |= mask
		if bits.OnesCount16(mask) >= 5 {
			flushSuit = int(suit)
		}
		for m := mask; m != 0; m &= m - 1 {
			counts[bits.TrailingZeros16(m)]++
		}
	}
	if flushSuit >= 0 && hasStraight(h.GetSuitMask(uint8(flushSuit))) {
		return StraightFlush
	}

	var quads, trips, pairs int
	for _, n := range counts {
		switch n {
		case 4:
			quads++
		case 3:
			trips++
		case 2:
			pairs++
		}
	}
	switch {
	case quads > 0:
		return FourOfAKind
	case trips > 1 || trips == 1 && pairs > 0:
		return FullHouse
	case flushSuit >= 0:
		return Flush
	case hasStraight(all):
		return Straight
	case trips == 1:
		return ThreeOfAKind
	case pairs > 1:
		return TwoPair
	case pairs == 1:
		return Pair
	}
	return HighCard
}
