package game

import "fmt"

// Kind identifies a game family. The set is closed.
type Kind int

const (
	Blackjack Kind = iota
	Poker
	CoinFlip
	BeautyContest
)

// Kinds lists every game family in declaration order.
var Kinds = []Kind{Blackjack, Poker, CoinFlip, BeautyContest}

func (k Kind) String() string {
	switch k {
	case Blackjack:
		return "blackjack"
	case Poker:
		return "poker"
	case CoinFlip:
		return "coinflip"
	case BeautyContest:
		return "beauty"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses the String form of a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MatchKey addresses a match. Ids are only unique within a kind.
type MatchKey struct {
	Kind Kind
	ID   uint64
}

func (k MatchKey) String() string {
	return fmt.Sprintf("%s/%d", k.Kind, k.ID)
}
