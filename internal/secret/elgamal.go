package secret

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/suites"
)

var suite suites.Suite = suites.MustFind("Ed25519")

type ciphertext struct {
	k kyber.Point // ephemeral key kG
	c kyber.Point // M + kX
}

// ElGamal encrypts committed values to a key pair generated at
// construction. Only the provider can decrypt, and only via Reveal or Test.
type ElGamal struct {
	mu      sync.RWMutex
	private kyber.Scalar
	public  kyber.Point
	store   map[Handle]ciphertext
}

// NewElGamal generates a fresh key pair.
func NewElGamal() *ElGamal {
	x := suite.Scalar().Pick(suite.RandomStream())
	return &ElGamal{
		private: x,
		public:  suite.Point().Mul(x, nil),
		store:   make(map[Handle]ciphertext),
	}
}

// PublicKey returns the encryption key in its binary encoding.
func (e *ElGamal) PublicKey() ([]byte, error) {
	return e.public.MarshalBinary()
}

func (e *ElGamal) Commit(ctx context.Context, value int) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if value < 0 || uint64(value) > math.MaxUint32 {
		return "", fmt.Errorf("secret value %d out of range", value)
	}

	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(value))
	m := suite.Point().Embed(buf[:], suite.RandomStream())

	k := suite.Scalar().Pick(suite.RandomStream())
	ct := ciphertext{
		k: suite.Point().Mul(k, nil),
		c: suite.Point().Add(m, suite.Point().Mul(k, e.public)),
	}

	h := newHandle()
	e.mu.Lock()
	e.store[h] = ct
	e.mu.Unlock()
	return h, nil
}

// Ciphertext returns the encoded (kG, M+kX) pair for h, for publishing a
// commitment.
func (e *ElGamal) Ciphertext(h Handle) ([]byte, error) {
	e.mu.RLock()
	ct, ok := e.store[h]
	e.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownHandle
	}
	kb, err := ct.k.MarshalBinary()
	if err != nil {
		return nil, err
	}
	cb, err := ct.c.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(kb, cb...), nil
}

func (e *ElGamal) Reveal(ctx context.Context, h Handle) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return e.decrypt(h)
}

func (e *ElGamal) Test(ctx context.Context, h Handle, pred func(int) bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v, err := e.decrypt(h)
	if err != nil {
		return false, err
	}
	return pred(v), nil
}

func (e *ElGamal) decrypt(h Handle) (int, error) {
	e.mu.RLock()
	ct, ok := e.store[h]
	e.mu.RUnlock()
	if !ok {
		return 0, ErrUnknownHandle
	}

	s := suite.Point().Mul(e.private, ct.k)
	m := suite.Point().Sub(ct.c, s)
	data, err := m.Data()
	if err != nil {
		return 0, fmt.Errorf("decrypt %s: %w", h, err)
	}
	if len(data) != 4 {
		return 0, fmt.Errorf("decrypt %s: unexpected payload length %d", h, len(data))
	}
	return int(binary.BigEndian.Uint32(data)), nil
}
