package blackjack

// Status is the lifecycle stage of a blackjack match.
type Status int

const (
	Dealing Status = iota
	PlayerTurn
	DealerTurn
	Finished
)

func (s Status) String() string {
	switch s {
	case Dealing:
		return "dealing"
	case PlayerTurn:
		return "player_turn"
	case DealerTurn:
		return "dealer_turn"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Result is how a match was decided.
type Result int

const (
	NoResult Result = iota
	PlayerBlackjack
	DealerBlackjack
	PlayerBusts
	DealerBusts
	PlayerWins
	DealerWins
	Push
)

func (r Result) String() string {
	switch r {
	case PlayerBlackjack:
		return "Player Blackjack"
	case DealerBlackjack:
		return "Dealer Blackjack"
	case PlayerBusts:
		return "Player Busts"
	case DealerBusts:
		return "Dealer Busts"
	case PlayerWins:
		return "Player Wins"
	case DealerWins:
		return "Dealer Wins"
	case Push:
		return "Push"
	default:
		return ""
	}
}

// playerShare is the player's cut of a two-stake pot.
func (r Result) playerShare(stake int64) int64 {
	switch r {
	case PlayerBlackjack, DealerBusts, PlayerWins:
		return 2 * stake
	case Push:
		return stake
	default:
		return 0
	}
}
