// Package game holds the vocabulary shared by every wagering engine: the
// closed set of game kinds, the caller-facing error taxonomy, and the event
// stream engines publish on each state transition.
//
// # Errors
//
// Every engine action either applies completely or fails with one of the
// sentinel errors declared here, possibly wrapped with context. Callers test
// with errors.Is:
//
//	if errors.Is(err, game.ErrNotYourTurn) {
//	    // wait for the opponent
//	}
//
// Code maps an error onto the snake_case string used on the wire.
//
// # Events
//
// Engines publish Events to a Bus after the match lock is released. Events
// only ever carry public information; hidden values appear in a payload no
// earlier than the transition that reveals them.
package game
