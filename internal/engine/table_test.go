package engine

import (
	"errors"
	"sync"
	"testing"

	"github.com/lox/wagerd/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	n     int
	steps []int
}

func (c *counter) Clone() *counter {
	return &counter{n: c.n, steps: append([]int(nil), c.steps...)}
}

func TestTableUpdateCommitsOnSuccess(t *testing.T) {
	t.Parallel()

	tbl := NewTable[*counter]()
	tbl.Insert(1, &counter{})

	require.NoError(t, tbl.Update(1, func(c *counter) error {
		c.n++
		c.steps = append(c.steps, 1)
		return nil
	}))

	boom := errors.New("boom")
	err := tbl.Update(1, func(c *counter) error {
		c.n = 100
		c.steps = append(c.steps, 2)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := tbl.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.n)
	assert.Equal(t, []int{1}, got.steps)

	// Mutating a returned copy does not leak back.
	got.n = 50
	again, _ := tbl.Get(1)
	assert.Equal(t, 1, again.n)
}

func TestTableMissingMatch(t *testing.T) {
	t.Parallel()

	tbl := NewTable[*counter]()
	require.ErrorIs(t, tbl.Update(7, func(*counter) error { return nil }), game.ErrMatchNotFound)
	_, err := tbl.Get(7)
	require.ErrorIs(t, err, game.ErrMatchNotFound)
}

func TestTableSerializesPerMatch(t *testing.T) {
	t.Parallel()

	tbl := NewTable[*counter]()
	for id := uint64(1); id <= 4; id++ {
		tbl.Insert(id, &counter{})
	}

	var wg sync.WaitGroup
	for id := uint64(1); id <= 4; id++ {
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, tbl.Update(id, func(c *counter) error {
					c.n++
					return nil
				}))
			}()
		}
	}
	wg.Wait()

	for _, id := range tbl.IDs() {
		c, _ := tbl.Get(id)
		assert.Equal(t, 50, c.n)
	}
	assert.Equal(t, []uint64{1, 2, 3, 4}, tbl.IDs())
}
