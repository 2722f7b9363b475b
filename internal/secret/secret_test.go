package secret

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func providers() map[string]Provider {
	return map[string]Provider{
		"plain":   NewPlain(),
		"elgamal": NewElGamal(),
	}
}

func TestCommitReveal(t *testing.T) {
	t.Parallel()

	for name, p := range providers() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			values := []int{0, 1, 13, 21, 52, 100, 1 << 20}
			handles := make([]Handle, len(values))
			for i, v := range values {
				h, err := p.Commit(ctx, v)
				require.NoError(t, err)
				handles[i] = h
			}
			for i, h := range handles {
				got, err := p.Reveal(ctx, h)
				require.NoError(t, err)
				assert.Equal(t, values[i], got)
			}

			_, err := p.Reveal(ctx, "missing")
			require.ErrorIs(t, err, ErrUnknownHandle)
		})
	}
}

func TestPredicate(t *testing.T) {
	t.Parallel()

	for name, p := range providers() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			h, err := p.Commit(ctx, 10)
			require.NoError(t, err)

			ok, err := p.Test(ctx, h, func(v int) bool { return v == 10 })
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = p.Test(ctx, h, func(v int) bool { return v > 10 })
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestPlainTracksReveals(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	p := NewPlain()
	h, err := p.Commit(ctx, 7)
	require.NoError(t, err)

	_, err = p.Test(ctx, h, func(int) bool { return true })
	require.NoError(t, err)
	assert.False(t, p.Revealed(h))

	_, err = p.Reveal(ctx, h)
	require.NoError(t, err)
	assert.True(t, p.Revealed(h))
	assert.Equal(t, 1, p.RevealCount())
}

func TestElGamalCiphertextsDiffer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e := NewElGamal()
	a, err := e.Commit(ctx, 5)
	require.NoError(t, err)
	b, err := e.Commit(ctx, 5)
	require.NoError(t, err)

	ca, err := e.Ciphertext(a)
	require.NoError(t, err)
	cb, err := e.Ciphertext(b)
	require.NoError(t, err)
	assert.NotEqual(t, ca, cb)

	pk, err := e.PublicKey()
	require.NoError(t, err)
	assert.Len(t, pk, 32)

	_, err = e.Commit(ctx, -1)
	require.Error(t, err)
}

func TestCommitHonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, p := range providers() {
		_, err := p.Commit(ctx, 1)
		require.ErrorIs(t, err, context.Canceled)
	}
}
