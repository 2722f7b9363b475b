package randutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsDeterministic(t *testing.T) {
	t.Parallel()

	a, b := New(42), New(42)
	for range 100 {
		assert.Equal(t, a.IntN(1000), b.IntN(1000))
	}
	assert.NotEqual(t, New(1).Uint64(), New(2).Uint64())
}

func TestSecureDraws(t *testing.T) {
	t.Parallel()

	rng := Secure()
	seen := map[int]bool{}
	for range 200 {
		v := rng.IntN(2)
		assert.True(t, v == 0 || v == 1)
		seen[v] = true
	}
	assert.Len(t, seen, 2)
}

func TestSynchronized(t *testing.T) {
	t.Parallel()

	src := Synchronized(New(7))
	assert.Same(t, src, Synchronized(src))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 500 {
				v := src.IntN(52)
				assert.True(t, v >= 0 && v < 52)
			}
		}()
	}
	wg.Wait()
}
