package engine

import (
	"slices"
	"sync"

	"github.com/lox/wagerd/internal/game"
)

// Cloner is a match state that can produce a deep copy of itself.
type Cloner[T any] interface {
	Clone() T
}

type entry[T any] struct {
	mu    sync.Mutex
	state T
}

// Table holds per-match state behind a lock per match, so actions on
// different matches run in parallel while actions on one match serialize.
// Updates work on a copy that is committed only when the update succeeds.
type Table[T Cloner[T]] struct {
	mu      sync.RWMutex
	entries map[uint64]*entry[T]
}

func NewTable[T Cloner[T]]() *Table[T] {
	return &Table[T]{entries: make(map[uint64]*entry[T])}
}

// Insert stores the initial state of a new match.
func (t *Table[T]) Insert(id uint64, state T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = &entry[T]{state: state}
}

func (t *Table[T]) lookup(id uint64) (*entry[T], bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[id]
	return e, ok
}

// Update runs fn against a copy of the match state while holding the match
// lock, and commits the copy if fn returns nil.
func (t *Table[T]) Update(id uint64, fn func(next T) error) error {
	e, ok := t.lookup(id)
	if !ok {
		return game.ErrMatchNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.state.Clone()
	if err := fn(next); err != nil {
		return err
	}
	e.state = next
	return nil
}

// Get returns a copy of the match state.
func (t *Table[T]) Get(id uint64) (T, error) {
	e, ok := t.lookup(id)
	if !ok {
		var zero T
		return zero, game.ErrMatchNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone(), nil
}

// IDs returns the ids of every stored match in ascending order.
func (t *Table[T]) IDs() []uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]uint64, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
