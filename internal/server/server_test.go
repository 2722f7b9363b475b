package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/lox/wagerd/internal/auth"
	"github.com/lox/wagerd/internal/casino"
	"github.com/lox/wagerd/internal/coinflip"
	"github.com/lox/wagerd/internal/engine"
	"github.com/lox/wagerd/internal/game"
	"github.com/lox/wagerd/internal/ledger"
	"github.com/lox/wagerd/internal/secret"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tails struct{}

func (tails) IntN(int) int { return coinflip.Tails }

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *ledger.MemoryWallet) {
	t.Helper()
	wallet := ledger.NewMemoryWallet()
	for _, p := range []string{"alice", "bob", ledger.House} {
		wallet.Fund(p, 100)
	}
	c := casino.New(wallet, casino.DefaultConfig(),
		engine.WithClock(quartz.NewMock(t)),
		engine.WithRand(tails{}),
		engine.WithSecrets(secret.NewPlain()),
		engine.WithLogger(testLogger()),
	)
	srv := NewServer("", c, testLogger(), opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Stop()
		ts.Close()
	})
	return ts, wallet
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
	seq  int
}

func dial(t *testing.T, ts *httptest.Server) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(typ MessageType, data any) string {
	c.t.Helper()
	c.seq++
	msg, err := NewMessage(typ, data, time.Now())
	require.NoError(c.t, err)
	msg.RequestID = strconv.Itoa(c.seq)
	require.NoError(c.t, c.conn.WriteJSON(msg))
	return msg.RequestID
}

// next reads messages until one of type typ arrives, collecting any
// events seen on the way.
func (c *client) next(typ MessageType) (*Message, []game.Event) {
	c.t.Helper()
	var events []game.Event
	for {
		require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg Message
		require.NoError(c.t, c.conn.ReadJSON(&msg))
		if msg.Type == typ {
			return &msg, events
		}
		if msg.Type == MessageTypeEvent {
			var e game.Event
			require.NoError(c.t, json.Unmarshal(msg.Data, &e))
			events = append(events, e)
		}
	}
}

// waitEvent reads until an event of type typ arrives.
func (c *client) waitEvent(typ game.EventType) game.Event {
	c.t.Helper()
	for {
		msg, _ := c.next(MessageTypeEvent)
		var e game.Event
		require.NoError(c.t, json.Unmarshal(msg.Data, &e))
		if e.Type == typ {
			return e
		}
	}
}

// request sends a message and waits for its result or error.
func (c *client) request(typ MessageType, data any) (ResultData, *ErrorData) {
	c.t.Helper()
	id := c.send(typ, data)
	for {
		require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg Message
		require.NoError(c.t, c.conn.ReadJSON(&msg))
		if msg.RequestID != id {
			continue
		}
		switch msg.Type {
		case MessageTypeResult:
			var res struct {
				ResultData
				State json.RawMessage `json:"state"`
			}
			require.NoError(c.t, json.Unmarshal(msg.Data, &res))
			return res.ResultData, nil
		case MessageTypeError:
			var e ErrorData
			require.NoError(c.t, json.Unmarshal(msg.Data, &e))
			return ResultData{}, &e
		}
	}
}

func (c *client) auth(player string) {
	c.t.Helper()
	res, errData := c.request(MessageTypeAuth, AuthData{Player: player})
	require.Nil(c.t, errData)
	require.Equal(c.t, player, res.Player)
}

func TestServerHealth(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerStats(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	alice := dial(t, ts)
	alice.auth("alice")
	_, errData := alice.request(MessageTypeAction, ActionData{Game: "coinflip", Op: "create", Stake: 10})
	require.Nil(t, errData)

	resp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Connected clients: 1")
	assert.Contains(t, string(body), "Authenticated players: 1")
	assert.Contains(t, string(body), "coinflip matches: 1 (1 active)")
	assert.Contains(t, string(body), "blackjack matches: 0 (0 active)")
}

func TestServerRequiresAuth(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)
	c := dial(t, ts)

	_, errData := c.request(MessageTypeAction, ActionData{Game: "coinflip", Op: "create", Stake: 10})
	require.NotNil(t, errData)
	assert.Equal(t, "not_authenticated", errData.Code)

	_, errData = c.request(MessageTypeAuth, AuthData{})
	require.NotNil(t, errData)
	assert.Equal(t, "invalid_auth", errData.Code)

	_, errData = c.request(MessageTypeAuth, AuthData{Player: ledger.House})
	require.NotNil(t, errData)
	assert.Equal(t, "invalid_auth", errData.Code)

	_, errData = c.request(MessageType("dance"), struct{}{})
	require.NotNil(t, errData)
	assert.Equal(t, "unknown_message_type", errData.Code)
}

type tokenValidator map[string]string

func (v tokenValidator) Validate(_ context.Context, player, token string) (auth.Identity, error) {
	switch token {
	case "down":
		return auth.Identity{}, auth.ErrUnavailable
	case v[player]:
		return auth.Identity{Participant: player}, nil
	}
	return auth.Identity{}, auth.ErrInvalidToken
}

func TestServerValidatesCredentials(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t, WithValidator(tokenValidator{"alice": "s3cret"}))
	c := dial(t, ts)

	_, errData := c.request(MessageTypeAuth, AuthData{Player: "alice", Token: "guess"})
	require.NotNil(t, errData)
	assert.Equal(t, "invalid_auth", errData.Code)

	_, errData = c.request(MessageTypeAuth, AuthData{Player: "alice", Token: "down"})
	require.NotNil(t, errData)
	assert.Equal(t, "auth_unavailable", errData.Code)

	res, errData := c.request(MessageTypeAuth, AuthData{Player: "alice", Token: "s3cret"})
	require.Nil(t, errData)
	assert.Equal(t, "alice", res.Player)
}

func TestServerCoinFlipRoundTrip(t *testing.T) {
	t.Parallel()
	ts, wallet := newTestServer(t)

	alice := dial(t, ts)
	alice.auth("alice")
	bob := dial(t, ts)
	bob.auth("bob")

	res, errData := alice.request(MessageTypeAction, ActionData{Game: "coinflip", Op: "create", Stake: 10})
	require.Nil(t, errData)
	assert.Equal(t, "coinflip", res.Game)
	require.NotNil(t, res.Summary)
	assert.Equal(t, "waiting", res.Summary.Status)
	id := res.Match

	list, errData := bob.request(MessageTypeList, ListData{Game: "coinflip"})
	require.Nil(t, errData)
	require.Len(t, list.Matches, 1)
	assert.True(t, list.Matches[0].Joinable)

	_, errData = bob.request(MessageTypeAction, ActionData{Game: "coinflip", Op: "join", Match: id, Stake: 10})
	require.Nil(t, errData)

	_, errData = alice.request(MessageTypeAction, ActionData{Game: "coinflip", Op: "choose", Match: id, Value: coinflip.Heads})
	require.Nil(t, errData)

	res, errData = bob.request(MessageTypeAction, ActionData{Game: "coinflip", Op: "choose", Match: id, Value: coinflip.Tails})
	require.Nil(t, errData)
	assert.True(t, res.Summary.Finished)
	assert.Equal(t, []string{"bob"}, res.Summary.Winners)

	// Alice created the match, so she is watching it and sees it finish.
	finished := alice.waitEvent(game.EventMatchFinished)
	assert.Equal(t, id, finished.MatchID)
	assert.Equal(t, "coinflip", finished.Game)
	assert.Equal(t, int64(110), wallet.Balance("bob"))
	assert.Equal(t, int64(90), wallet.Balance("alice"))
}

func TestServerForwardsEvents(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	alice := dial(t, ts)
	alice.auth("alice")
	bob := dial(t, ts)
	bob.auth("bob")

	res, errData := alice.request(MessageTypeAction, ActionData{Game: "coinflip", Op: "create", Stake: 10})
	require.Nil(t, errData)

	_, errData = bob.request(MessageTypeAction, ActionData{Game: "coinflip", Op: "join", Match: res.Match, Stake: 10})
	require.Nil(t, errData)

	// Alice asks for state; by then the join event is already queued ahead
	// of the reply.
	alice.send(MessageTypeState, StateData{Game: "coinflip", Match: res.Match})
	_, events := alice.next(MessageTypeResult)

	var types []game.EventType
	for _, e := range events {
		assert.Equal(t, res.Match, e.MatchID)
		types = append(types, e.Type)
	}
	assert.Contains(t, types, game.EventPlayerJoined)
}

func TestServerReportsEngineErrors(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	alice := dial(t, ts)
	alice.auth("alice")

	tests := []struct {
		action ActionData
		code   string
	}{
		{ActionData{Game: "poker", Op: "call", Match: 9}, "match_not_found"},
		{ActionData{Game: "coinflip", Op: "create", Stake: 1000}, "insufficient_funds"},
		{ActionData{Game: "roulette", Op: "spin"}, "unknown_kind"},
		{ActionData{Game: "blackjack", Op: "split"}, "unknown_action"},
	}
	for _, tt := range tests {
		_, errData := alice.request(MessageTypeAction, tt.action)
		require.NotNil(t, errData, tt.code)
		assert.Equal(t, tt.code, errData.Code)
	}
}

func TestServerErrorNamesMatch(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	alice := dial(t, ts)
	alice.auth("alice")
	res, errData := alice.request(MessageTypeAction, ActionData{Game: "coinflip", Op: "create", Stake: 10})
	require.Nil(t, errData)

	_, errData = alice.request(MessageTypeAction, ActionData{Game: "coinflip", Op: "choose", Match: res.Match, Value: 1})
	require.NotNil(t, errData)
	assert.Equal(t, "not_committable", errData.Code)
	assert.Equal(t, "coinflip", errData.Game)
	assert.Equal(t, res.Match, errData.Match)

	_, errData = alice.request(MessageTypeAction, ActionData{Game: "coinflip", Op: "create", Stake: 1000})
	require.NotNil(t, errData)
	assert.Zero(t, errData.Match)
}
