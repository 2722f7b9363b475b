// Package secret conceals values until an engine reaches the transition at
// which they may be disclosed. Engines hold only Handles; the plaintext is
// recoverable through Reveal, and Test discloses a single predicate result.
package secret

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Handle identifies a committed value.
type Handle string

// ErrUnknownHandle is returned for handles the provider never issued.
var ErrUnknownHandle = errors.New("unknown secret handle")

// Provider is the commit/reveal boundary for hidden values.
type Provider interface {
	Commit(ctx context.Context, value int) (Handle, error)
	Reveal(ctx context.Context, h Handle) (int, error)
	// Test evaluates pred against the hidden value without disclosing it.
	Test(ctx context.Context, h Handle, pred func(int) bool) (bool, error)
}

func newHandle() Handle {
	id, err := uuid.NewRandom()
	if err != nil {
		id = uuid.New()
	}
	return Handle(id.String())
}

// Plain keeps values in memory unencrypted. For tests and simulations.
type Plain struct {
	mu     sync.Mutex
	values map[Handle]int
	reveal map[Handle]int
}

func NewPlain() *Plain {
	return &Plain{values: make(map[Handle]int), reveal: make(map[Handle]int)}
}

func (p *Plain) Commit(ctx context.Context, value int) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	h := newHandle()
	p.values[h] = value
	return h, nil
}

func (p *Plain) Reveal(ctx context.Context, h Handle) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[h]
	if !ok {
		return 0, ErrUnknownHandle
	}
	p.reveal[h]++
	return v, nil
}

func (p *Plain) Test(ctx context.Context, h Handle, pred func(int) bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	v, ok := p.values[h]
	p.mu.Unlock()
	if !ok {
		return false, ErrUnknownHandle
	}
	return pred(v), nil
}

// Revealed reports whether h has been revealed. Tests use it to check
// that nothing is disclosed early.
func (p *Plain) Revealed(h Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reveal[h] > 0
}

// RevealCount returns how many distinct handles have been revealed.
func (p *Plain) RevealCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reveal)
}
