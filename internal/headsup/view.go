package headsup

import (
	"maps"
	"slices"
)

// SeatView is one player's public position.
type SeatView struct {
	Player string   `json:"player"`
	Stack  int64    `json:"stack"`
	Bet    int64    `json:"bet"`
	Hole   []string `json:"hole,omitempty"`
	Hand   string   `json:"hand,omitempty"`
}

// View is a match as seen by one viewer.
type View struct {
	ID        uint64           `json:"id"`
	BuyIn     int64            `json:"buyIn"`
	Stage     Stage            `json:"-"`
	StageName string           `json:"stage"`
	Seats     []SeatView       `json:"seats"`
	Pot       int64            `json:"pot"`
	Board     []string         `json:"board"`
	ToAct     string           `json:"toAct,omitempty"`
	Winners   []string         `json:"winners,omitempty"`
	Payouts   map[string]int64 `json:"payouts,omitempty"`
	Folded    string           `json:"folded,omitempty"`
	Cancelled bool             `json:"cancelled,omitempty"`
}

// View returns the match as viewer sees it. Hole cards are shown to their
// owner, and to everyone once the match reaches showdown.
func (e *Engine) View(id uint64, viewer string) (View, error) {
	m, err := e.matches.Get(id)
	if err != nil {
		return View{}, err
	}

	shown := m.ranks != nil
	v := View{
		ID:        m.id,
		BuyIn:     m.buyIn,
		Stage:     m.stage,
		StageName: m.stage.String(),
		Pot:       m.pot,
		Board:     cardStrings(m.board),
		Winners:   slices.Clone(m.winners),
		Payouts:   maps.Clone(m.payouts),
		Folded:    m.folder,
		Cancelled: m.cancelled,
	}
	for i, s := range m.seats {
		sv := SeatView{Player: s.player, Stack: s.stack, Bet: s.bet}
		if s.player == viewer || shown {
			sv.Hole = cardStrings(s.hole)
		}
		if shown {
			sv.Hand = m.ranks[i].String()
		}
		v.Seats = append(v.Seats, sv)
	}
	if m.stage.betting() {
		v.ToAct = m.seats[m.current].player
	}
	return v, nil
}

// Open returns the ids of matches waiting for an opponent.
func (e *Engine) Open() []uint64 {
	var ids []uint64
	for _, id := range e.matches.IDs() {
		if m, err := e.matches.Get(id); err == nil && m.stage == Waiting {
			ids = append(ids, id)
		}
	}
	return ids
}

// Matches returns the ids of every match, oldest first.
func (e *Engine) Matches() []uint64 {
	return e.matches.IDs()
}
