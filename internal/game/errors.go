package game

import "errors"

// Ledger errors
var (
	ErrStakeMismatch     = errors.New("stake does not match the required amount")
	ErrAlreadyCollected  = errors.New("stake already collected from participant")
	ErrPayoutExceedsPot  = errors.New("payout does not equal the pot")
	ErrAlreadySettled    = errors.New("match already settled")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Registry errors
var (
	ErrMatchNotFound  = errors.New("match not found")
	ErrAlreadyInMatch = errors.New("participant already has an active match")
	ErrNotJoinable    = errors.New("match is not accepting players")
	ErrAlreadyFull    = errors.New("match is full")
	ErrInvalidStake   = errors.New("stake must be positive")
	ErrReservedID     = errors.New("participant id is reserved")
	ErrNotParticipant = errors.New("not a participant in this match")
)

// Engine errors
var (
	ErrNoActiveGame        = errors.New("no active game")
	ErrNotYourTurn         = errors.New("not your turn")
	ErrHoleCardNotRevealed = errors.New("dealer's hole card not yet revealed")
	ErrNotCommittable      = errors.New("match is not accepting choices")
	ErrAlreadyCommitted    = errors.New("choice already committed")
	ErrInvalidChoice       = errors.New("choice must be 0 or 1")
	ErrNotCancellable      = errors.New("match can no longer be cancelled")
	ErrNotCreator          = errors.New("only the creator may do this")
	ErrInvalidPlayerBounds = errors.New("invalid player bounds")
	ErrGameFull            = errors.New("game is full")
	ErrNotEnoughPlayers    = errors.New("not enough players to start")
	ErrNotGuessing         = errors.New("match is not accepting guesses")
	ErrOutOfRange          = errors.New("guess out of range")
	ErrAlreadyGuessed      = errors.New("guess already submitted")
	ErrDeadlinePassed      = errors.New("guess deadline has passed")
	ErrFinalizeTooEarly    = errors.New("guesses outstanding and deadline not reached")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientStack   = errors.New("insufficient stack")
	ErrCannotCheck         = errors.New("cannot check facing a bet")
)

// Request errors
var (
	ErrUnknownKind   = errors.New("unknown game kind")
	ErrUnknownAction = errors.New("unknown action")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrStakeMismatch, "stake_mismatch"},
	{ErrAlreadyCollected, "already_collected"},
	{ErrPayoutExceedsPot, "payout_exceeds_pot"},
	{ErrAlreadySettled, "already_settled"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrMatchNotFound, "match_not_found"},
	{ErrAlreadyInMatch, "already_in_match"},
	{ErrNotJoinable, "not_joinable"},
	{ErrAlreadyFull, "already_full"},
	{ErrInvalidStake, "invalid_stake"},
	{ErrReservedID, "reserved_id"},
	{ErrNotParticipant, "not_participant"},
	{ErrNoActiveGame, "no_active_game"},
	{ErrNotYourTurn, "not_your_turn"},
	{ErrHoleCardNotRevealed, "hole_card_not_revealed"},
	{ErrNotCommittable, "not_committable"},
	{ErrAlreadyCommitted, "already_committed"},
	{ErrInvalidChoice, "invalid_choice"},
	{ErrNotCancellable, "not_cancellable"},
	{ErrNotCreator, "not_creator"},
	{ErrInvalidPlayerBounds, "invalid_player_bounds"},
	{ErrGameFull, "game_full"},
	{ErrNotEnoughPlayers, "not_enough_players"},
	{ErrNotGuessing, "not_guessing"},
	{ErrOutOfRange, "out_of_range"},
	{ErrAlreadyGuessed, "already_guessed"},
	{ErrDeadlinePassed, "deadline_passed"},
	{ErrFinalizeTooEarly, "finalize_too_early"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrInsufficientStack, "insufficient_stack"},
	{ErrCannotCheck, "cannot_check"},
	{ErrUnknownKind, "unknown_kind"},
	{ErrUnknownAction, "unknown_action"},
}

// Code returns the wire code for err, or "internal" when err is not part of
// the taxonomy.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
