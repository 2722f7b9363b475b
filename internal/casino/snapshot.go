package casino

import (
	"fmt"

	"github.com/lox/wagerd/internal/beauty"
	"github.com/lox/wagerd/internal/blackjack"
	"github.com/lox/wagerd/internal/coinflip"
	"github.com/lox/wagerd/internal/game"
	"github.com/lox/wagerd/internal/headsup"
)

// Snapshot is the public state of one match. The set of implementations is
// closed: one per game kind.
type Snapshot interface {
	snapshot()
}

type BlackjackSnapshot struct{ blackjack.View }
type PokerSnapshot struct{ headsup.View }
type CoinFlipSnapshot struct{ coinflip.View }
type BeautySnapshot struct{ beauty.View }

func (BlackjackSnapshot) snapshot() {}
func (PokerSnapshot) snapshot()     {}
func (CoinFlipSnapshot) snapshot()  {}
func (BeautySnapshot) snapshot()    {}

// Snapshot returns the state of a match as viewer may see it.
func (c *Casino) Snapshot(key game.MatchKey, viewer string) (Snapshot, error) {
	switch key.Kind {
	case game.Blackjack:
		v, err := c.Blackjack.View(key.ID)
		return BlackjackSnapshot{v}, err
	case game.Poker:
		v, err := c.Poker.View(key.ID, viewer)
		return PokerSnapshot{v}, err
	case game.CoinFlip:
		v, err := c.CoinFlip.View(key.ID)
		return CoinFlipSnapshot{v}, err
	case game.BeautyContest:
		v, err := c.Beauty.View(key.ID)
		return BeautySnapshot{v}, err
	}
	return nil, fmt.Errorf("unknown game kind %d", key.Kind)
}

// Summary is the part of a snapshot every game shares.
type Summary struct {
	Kind         game.Kind `json:"-"`
	Game         string    `json:"game"`
	ID           uint64    `json:"id"`
	Status       string    `json:"status"`
	Participants []string  `json:"participants"`
	Pot          int64     `json:"pot"`
	Finished     bool      `json:"finished"`
	Winners      []string  `json:"winners,omitempty"`
}

// Describe reduces any snapshot to its summary.
func Describe(s Snapshot) Summary {
	switch s := s.(type) {
	case BlackjackSnapshot:
		sum := Summary{
			Kind:         game.Blackjack,
			ID:           s.ID,
			Status:       s.StatusName,
			Participants: []string{s.Player},
			Pot:          s.Pot,
			Finished:     s.Status == blackjack.Finished,
		}
		switch s.Result {
		case blackjack.PlayerBlackjack.String(), blackjack.DealerBusts.String(), blackjack.PlayerWins.String():
			sum.Winners = []string{s.Player}
		}
		return sum.named()
	case PokerSnapshot:
		sum := Summary{
			Kind:     game.Poker,
			ID:       s.ID,
			Status:   s.StageName,
			Pot:      s.Pot,
			Finished: s.Stage == headsup.Finished,
			Winners:  s.Winners,
		}
		for _, seat := range s.Seats {
			sum.Participants = append(sum.Participants, seat.Player)
		}
		return sum.named()
	case CoinFlipSnapshot:
		sum := Summary{
			Kind:         game.CoinFlip,
			ID:           s.ID,
			Status:       s.StatusName,
			Participants: s.Players,
			Pot:          s.Pot,
			Finished:     s.Status == coinflip.Finished,
		}
		if s.Winner != "" {
			sum.Winners = []string{s.Winner}
		}
		return sum.named()
	case BeautySnapshot:
		sum := Summary{
			Kind:         game.BeautyContest,
			ID:           s.ID,
			Status:       s.StatusName,
			Participants: s.Players,
			Pot:          s.Pot,
			Finished:     s.Status == beauty.Finished,
		}
		if s.Winner != "" {
			sum.Winners = []string{s.Winner}
		}
		return sum.named()
	}
	panic(fmt.Sprintf("casino: unhandled snapshot %T", s))
}

func (s Summary) named() Summary {
	s.Game = s.Kind.String()
	return s
}
