package poker

import (
	rand "math/rand/v2"
)

// Source is the randomness a deck shuffles with. *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
}

// Deck represents a standard 52-card deck
type Deck struct {
	cards [52]Card // Fixed size array
	next  int
	rng   Source
}

// NewDeck creates a new shuffled deck with explicit RNG
func NewDeck(rng Source) *Deck {
	d := &Deck{rng: rng}

	i := 0
	for suit := range uint8(4) {
		for rank := range uint8(13) {
			d.cards[i] = NewCard(rank, suit)
			i++
		}
	}

	d.Shuffle()
	return d
}

// NewDeckFromCards builds an unshuffled deck that deals the given cards first,
// in order, followed by the rest of the pack. Used to script deals.
func NewDeckFromCards(top []Card) *Deck {
	d := &Deck{}
	var seen Hand
	i := 0
	for _, c := range top {
		if seen.HasCard(c) {
			panic("duplicate card " + c.String())
		}
		seen.AddCard(c)
		d.cards[i] = c
		i++
	}
	for suit := range uint8(4) {
		for rank := range uint8(13) {
			c := NewCard(rank, suit)
			if seen.HasCard(c) {
				continue
			}
			d.cards[i] = c
			i++
		}
	}
	return d
}

// Shuffle shuffles the deck using Fisher-Yates
func (d *Deck) Shuffle() {
	d.next = 0
	for i := len(d.cards) - 1; i > 0; i-- {
		var j int
		if d.rng != nil {
			j = d.rng.IntN(i + 1)
		} else {
			j = rand.IntN(i + 1)
		}
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal deals n cards from the deck
func (d *Deck) Deal(n int) []Card {
	if d.next+n > len(d.cards) {
		return nil
	}
	cards := make([]Card, n)
	copy(cards, d.cards[d.next:d.next+n])
	d.next += n
	return cards
}

// DealOne deals a single card from the deck
func (d *Deck) DealOne() Card {
	if d.next >= len(d.cards) {
		return 0
	}
	card := d.cards[d.next]
	d.next++
	return card
}

// CardsRemaining returns the number of cards left in the deck
func (d *Deck) CardsRemaining() int {
	return len(d.cards) - d.next
}

// Clone returns an independent copy sharing the random source.
func (d *Deck) Clone() *Deck {
	c := *d
	return &c
}
