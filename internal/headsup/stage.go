package headsup

// Stage is the lifecycle stage of a heads-up match.
type Stage int

const (
	Waiting Stage = iota
	PreFlop
	Flop
	Turn
	River
	Showdown
	Finished
)

func (s Stage) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case PreFlop:
		return "preflop"
	case Flop:
		return "flop"
	case Turn:
		return "turn"
	case River:
		return "river"
	case Showdown:
		return "showdown"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// betting reports whether players can act in this stage.
func (s Stage) betting() bool {
	return s >= PreFlop && s <= River
}

// communityCards is how many board cards are out once the stage is reached.
func (s Stage) communityCards() int {
	switch s {
	case Flop:
		return 3
	case Turn:
		return 4
	case River, Showdown, Finished:
		return 5
	default:
		return 0
	}
}
