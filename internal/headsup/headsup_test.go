package headsup

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/wagerd/internal/engine"
	"github.com/lox/wagerd/internal/game"
	"github.com/lox/wagerd/internal/ledger"
	"github.com/lox/wagerd/internal/randutil"
	"github.com/lox/wagerd/internal/secret"
	"github.com/lox/wagerd/poker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine *Engine
	wallet *ledger.MemoryWallet
	events *game.Recorder
}

// Scripted deals go alice, bob, alice, bob, then the board.
const acesOverKings = "As Kd Ah Kc 2s 7h 9d Jc 3h"

func newFixture(t *testing.T, deal string) *fixture {
	t.Helper()
	wallet := ledger.NewMemoryWallet()
	wallet.Fund("alice", 100)
	wallet.Fund("bob", 100)
	env := engine.New(wallet,
		engine.WithClock(quartz.NewMock(t)),
		engine.WithRand(randutil.New(9)),
		engine.WithSecrets(secret.NewPlain()),
		engine.WithLogger(log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})),
	)
	rec := &game.Recorder{}
	env.Bus.Subscribe(rec)

	e := New(env, DefaultConfig())
	if deal != "" {
		e.newDeck = func() *poker.Deck { return poker.NewDeckFromCards(poker.MustParseCards(deal)) }
	}
	return &fixture{engine: e, wallet: wallet, events: rec}
}

func (f *fixture) start(t *testing.T) uint64 {
	t.Helper()
	ctx := context.Background()
	id, err := f.engine.Create(ctx, "alice", 100)
	require.NoError(t, err)
	require.NoError(t, f.engine.Join(ctx, id, "bob", 100))
	return id
}

func (f *fixture) view(t *testing.T, id uint64) View {
	t.Helper()
	v, err := f.engine.View(id, "")
	require.NoError(t, err)
	return v
}

func TestHouseCannotSit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, "")
	f.wallet.Fund(ledger.House, 500)

	_, err := f.engine.Create(ctx, ledger.House, 100)
	require.ErrorIs(t, err, game.ErrReservedID)

	id, err := f.engine.Create(ctx, "alice", 100)
	require.NoError(t, err)
	require.ErrorIs(t, f.engine.Join(ctx, id, ledger.House, 100), game.ErrReservedID)
	assert.Equal(t, int64(500), f.wallet.Balance(ledger.House))
}

func TestJoinPostsBlinds(t *testing.T) {
	t.Parallel()
	f := newFixture(t, acesOverKings)
	id := f.start(t)

	v := f.view(t, id)
	assert.Equal(t, PreFlop, v.Stage)
	assert.Equal(t, int64(15), v.Pot)
	assert.Equal(t, int64(5), v.Seats[0].Bet)
	assert.Equal(t, int64(10), v.Seats[1].Bet)
	assert.Equal(t, int64(95), v.Seats[0].Stack)
	assert.Equal(t, int64(90), v.Seats[1].Stack)
	assert.Equal(t, "alice", v.ToAct)
	assert.Empty(t, v.Board)
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, "")

	_, err := f.engine.Create(ctx, "alice", 10)
	require.ErrorIs(t, err, game.ErrInvalidStake)

	id, err := f.engine.Create(ctx, "alice", 100)
	require.NoError(t, err)
	require.ErrorIs(t, f.engine.Join(ctx, id, "bob", 50), game.ErrStakeMismatch)
	require.ErrorIs(t, f.engine.Call(ctx, id, "alice"), game.ErrNoActiveGame)
	assert.Equal(t, []uint64{id}, f.engine.Open())
}

func TestCallEqualizesBets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, acesOverKings)
	id := f.start(t)

	before := f.view(t, id)
	diff := before.Seats[1].Bet - before.Seats[0].Bet

	require.NoError(t, f.engine.Call(ctx, id, "alice"))
	v := f.view(t, id)
	assert.Equal(t, v.Seats[0].Bet, v.Seats[1].Bet)
	assert.Equal(t, before.Pot+diff, v.Pot)
	// The big blind still has an option.
	assert.Equal(t, PreFlop, v.Stage)
	assert.Equal(t, "bob", v.ToAct)

	require.NoError(t, f.engine.Check(ctx, id, "bob"))
	v = f.view(t, id)
	assert.Equal(t, Flop, v.Stage)
	assert.Equal(t, []string{"2s", "7h", "9d"}, v.Board)
	assert.Equal(t, "bob", v.ToAct)
	assert.Zero(t, v.Seats[0].Bet)
	assert.Zero(t, v.Seats[1].Bet)
	assert.Equal(t, int64(20), v.Pot)
}

func TestRaisePassesTurn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, acesOverKings)
	id := f.start(t)

	require.NoError(t, f.engine.Raise(ctx, id, "alice", 20))
	v := f.view(t, id)
	assert.Equal(t, PreFlop, v.Stage)
	assert.Equal(t, "bob", v.ToAct)
	assert.Equal(t, int64(30), v.Seats[0].Bet)
	assert.Equal(t, int64(40), v.Pot)

	require.NoError(t, f.engine.Raise(ctx, id, "bob", 10))
	v = f.view(t, id)
	assert.Equal(t, PreFlop, v.Stage)
	assert.Equal(t, "alice", v.ToAct)
	assert.Equal(t, int64(40), v.Seats[1].Bet)

	require.NoError(t, f.engine.Call(ctx, id, "alice"))
	v = f.view(t, id)
	assert.Equal(t, Flop, v.Stage)
	assert.Equal(t, int64(80), v.Pot)
}

func TestActionValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, acesOverKings)
	id := f.start(t)

	require.ErrorIs(t, f.engine.Call(ctx, id, "bob"), game.ErrNotYourTurn)
	require.ErrorIs(t, f.engine.Fold(ctx, id, "carol"), game.ErrNotParticipant)
	require.ErrorIs(t, f.engine.Check(ctx, id, "alice"), game.ErrCannotCheck)
	require.ErrorIs(t, f.engine.Raise(ctx, id, "alice", 0), game.ErrInvalidAmount)
	require.ErrorIs(t, f.engine.Raise(ctx, id, "alice", 91), game.ErrInsufficientStack)
	require.ErrorIs(t, f.engine.Join(ctx, id, "carol", 100), game.ErrNotJoinable)

	v := f.view(t, id)
	assert.Equal(t, int64(15), v.Pot)
	assert.Equal(t, "alice", v.ToAct)
}

func TestRaiseBeyondInt64(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, acesOverKings)
	id := f.start(t)

	require.ErrorIs(t, f.engine.Raise(ctx, id, "alice", math.MaxInt64), game.ErrInsufficientStack)
	require.ErrorIs(t, f.engine.Raise(ctx, id, "alice", math.MaxInt64-4), game.ErrInsufficientStack)

	v := f.view(t, id)
	assert.Equal(t, int64(15), v.Pot)
	assert.Equal(t, int64(95), v.Seats[0].Stack)
	assert.Equal(t, int64(90), v.Seats[1].Stack)
	assert.Equal(t, "alice", v.ToAct)

	require.NoError(t, f.engine.Raise(ctx, id, "alice", 90))
	require.ErrorIs(t, f.engine.Raise(ctx, id, "bob", math.MaxInt64), game.ErrInsufficientStack)
	v = f.view(t, id)
	assert.Equal(t, int64(110), v.Pot)
	assert.Zero(t, v.Seats[0].Stack)
	assert.Equal(t, "bob", v.ToAct)
}

func TestFoldAwardsPot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, acesOverKings)
	id := f.start(t)

	require.NoError(t, f.engine.Fold(ctx, id, "alice"))
	v := f.view(t, id)
	assert.Equal(t, Finished, v.Stage)
	assert.Equal(t, []string{"bob"}, v.Winners)
	assert.Equal(t, "alice", v.Folded)
	assert.Equal(t, map[string]int64{"alice": 95, "bob": 105}, v.Payouts)
	assert.Nil(t, v.Seats[0].Hole)
	assert.Nil(t, v.Seats[1].Hole)

	assert.Equal(t, int64(95), f.wallet.Balance("alice"))
	assert.Equal(t, int64(105), f.wallet.Balance("bob"))
	require.ErrorIs(t, f.engine.Call(ctx, id, "bob"), game.ErrNoActiveGame)
}

func checkDown(t *testing.T, f *fixture, id uint64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.engine.Call(ctx, id, "alice"))
	require.NoError(t, f.engine.Check(ctx, id, "bob"))
	for range 3 {
		require.NoError(t, f.engine.Check(ctx, id, "bob"))
		require.NoError(t, f.engine.Check(ctx, id, "alice"))
	}
}

func TestShowdown(t *testing.T) {
	t.Parallel()
	f := newFixture(t, acesOverKings)
	id := f.start(t)
	checkDown(t, f, id)

	v := f.view(t, id)
	assert.Equal(t, Finished, v.Stage)
	assert.Equal(t, []string{"alice"}, v.Winners)
	assert.Equal(t, []string{"2s", "7h", "9d", "Jc", "3h"}, v.Board)
	assert.Equal(t, []string{"As", "Ah"}, v.Seats[0].Hole)
	assert.Equal(t, []string{"Kd", "Kc"}, v.Seats[1].Hole)
	assert.Equal(t, "Pair", v.Seats[0].Hand)

	assert.Equal(t, int64(110), f.wallet.Balance("alice"))
	assert.Equal(t, int64(90), f.wallet.Balance("bob"))

	types := f.events.Types(game.MatchKey{Kind: game.Poker, ID: id})
	assert.Contains(t, types, game.EventMatchRevealed)
	assert.Equal(t, game.EventMatchFinished, types[len(types)-1])
}

func TestSplitPot(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "2c 3d 2h 3c As Ks Qs Js Ts")
	id := f.start(t)
	checkDown(t, f, id)

	v := f.view(t, id)
	assert.ElementsMatch(t, []string{"alice", "bob"}, v.Winners)
	assert.Equal(t, int64(100), f.wallet.Balance("alice"))
	assert.Equal(t, int64(100), f.wallet.Balance("bob"))
}

func TestAllInRunsOutBoard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, acesOverKings)
	id := f.start(t)

	require.NoError(t, f.engine.Raise(ctx, id, "alice", 90))
	v := f.view(t, id)
	assert.Zero(t, v.Seats[0].Stack)

	require.NoError(t, f.engine.Call(ctx, id, "bob"))
	v = f.view(t, id)
	assert.Equal(t, Finished, v.Stage)
	assert.Len(t, v.Board, 5)
	assert.Equal(t, map[string]int64{"alice": 200, "bob": 0}, v.Payouts)
	assert.Equal(t, int64(200), f.wallet.Balance("alice"))
	assert.Zero(t, f.wallet.Balance("bob"))
}

func TestViewHidesOpponentCards(t *testing.T) {
	t.Parallel()
	f := newFixture(t, acesOverKings)
	id := f.start(t)

	v, err := f.engine.View(id, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"As", "Ah"}, v.Seats[0].Hole)
	assert.Nil(t, v.Seats[1].Hole)

	v, err = f.engine.View(id, "bob")
	require.NoError(t, err)
	assert.Nil(t, v.Seats[0].Hole)
	assert.Equal(t, []string{"Kd", "Kc"}, v.Seats[1].Hole)

	for _, e := range f.events.Events() {
		assert.NotContains(t, fmt.Sprint(e.Payload), "Kd")
	}
}

func TestLeave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, "")

	id, err := f.engine.Create(ctx, "alice", 100)
	require.NoError(t, err)
	require.ErrorIs(t, f.engine.Leave(ctx, id, "bob"), game.ErrNotParticipant)
	require.NoError(t, f.engine.Leave(ctx, id, "alice"))
	assert.Equal(t, int64(100), f.wallet.Balance("alice"))
	assert.True(t, f.view(t, id).Cancelled)

	id, err = f.engine.Create(ctx, "alice", 100)
	require.NoError(t, err)
	require.NoError(t, f.engine.Join(ctx, id, "bob", 100))
	require.ErrorIs(t, f.engine.Leave(ctx, id, "alice"), game.ErrNotCancellable)
}

func TestConcurrentMatchesConserveFunds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, "")

	const tables = 12
	for i := range tables {
		f.wallet.Fund(fmt.Sprintf("a%d", i), 100)
		f.wallet.Fund(fmt.Sprintf("b%d", i), 100)
	}
	total := f.wallet.Total()

	var wg sync.WaitGroup
	for i := range tables {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, b := fmt.Sprintf("a%d", i), fmt.Sprintf("b%d", i)
			id, err := f.engine.Create(ctx, a, 100)
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, f.engine.Join(ctx, id, b, 100))
			if i%3 == 0 {
				assert.NoError(t, f.engine.Fold(ctx, id, a))
				return
			}
			assert.NoError(t, f.engine.Raise(ctx, id, a, 10))
			assert.NoError(t, f.engine.Call(ctx, id, b))
			for range 3 {
				assert.NoError(t, f.engine.Check(ctx, id, b))
				assert.NoError(t, f.engine.Check(ctx, id, a))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, total, f.wallet.Total())
	for _, id := range f.engine.Matches() {
		v, _ := f.engine.View(id, "")
		assert.Equal(t, Finished, v.Stage)
	}
}
