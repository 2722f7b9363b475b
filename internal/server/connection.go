package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/wagerd/internal/auth"
	"github.com/lox/wagerd/internal/casino"
	"github.com/lox/wagerd/internal/game"
	"github.com/lox/wagerd/internal/ledger"
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn      *websocket.Conn
	server    *Server
	send      chan *Message
	player    string
	watching  map[game.MatchKey]bool
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, server *Server) *Connection {
	ctx, cancel := context.WithCancel(server.ctx)

	return &Connection{
		conn:     conn,
		server:   server,
		send:     make(chan *Message, 256),
		watching: make(map[game.MatchKey]bool),
		logger:   server.logger.WithPrefix("conn"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client without blocking
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug("Attempted to send message on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// Player returns the authenticated participant, if any
func (c *Connection) Player() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.player
}

func (c *Connection) setPlayer(player string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.player = player
}

// watch subscribes the connection to events of a match
func (c *Connection) watch(key game.MatchKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watching[key] = true
}

// Watching reports whether events of key are forwarded to this client
func (c *Connection) Watching(key game.MatchKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.watching[key]
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var (
	ErrConnectionClosed = websocket.ErrCloseSent
)

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := c.server.clock.NewTicker(pingPeriod, "conn", "ping")
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "player", c.Player())

	switch msg.Type {
	case MessageTypeAuth:
		var data AuthData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, "invalid_message", "Failed to parse auth data")
			return
		}
		c.handleAuth(msg.RequestID, data)

	case MessageTypeAction:
		var data ActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, "invalid_message", "Failed to parse action data")
			return
		}
		c.handleAction(msg.RequestID, data)

	case MessageTypeState:
		var data StateData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, "invalid_message", "Failed to parse state data")
			return
		}
		c.handleState(msg.RequestID, data)

	case MessageTypeList:
		var data ListData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, "invalid_message", "Failed to parse list data")
			return
		}
		c.handleList(msg.RequestID, data)

	default:
		c.sendError(msg.RequestID, "unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

func (c *Connection) reply(requestID string, typ MessageType, data any) {
	msg, err := NewMessage(typ, data, c.server.clock.Now())
	if err != nil {
		c.logger.Error("Failed to create message", "type", typ, "error", err)
		return
	}
	msg.RequestID = requestID
	_ = c.SendMessage(msg)
}

// sendError sends an error message to the client
func (c *Connection) sendError(requestID, code, message string) {
	c.reply(requestID, MessageTypeError, ErrorData{Code: code, Message: message})
}

// sendFailure reports an engine error using its wire code
func (c *Connection) sendFailure(requestID string, err error) {
	c.sendError(requestID, game.Code(err), err.Error())
}

func (c *Connection) handleAuth(requestID string, data AuthData) {
	c.logger.Info("Auth request", "player", data.Player)

	if data.Player == "" {
		c.sendError(requestID, "invalid_auth", "Player name required")
		return
	}

	id, err := c.server.validator.Validate(c.ctx, data.Player, data.Token)
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		c.sendError(requestID, "invalid_auth", "Invalid credentials")
		return
	case err != nil:
		c.logger.Warn("Auth service failed", "player", data.Player, "error", err)
		c.sendError(requestID, "auth_unavailable", "Authentication temporarily unavailable")
		return
	}

	if id.Participant == ledger.House {
		c.sendError(requestID, "invalid_auth", "Player name is reserved")
		return
	}
	if current := c.Player(); current != "" && current != id.Participant {
		c.sendError(requestID, "invalid_auth", "Already authenticated as "+current)
		return
	}

	c.setPlayer(id.Participant)
	c.reply(requestID, MessageTypeResult, ResultData{Player: id.Participant})
}

func (c *Connection) handleAction(requestID string, data ActionData) {
	player := c.Player()
	if player == "" {
		c.sendError(requestID, "not_authenticated", "Must authenticate first")
		return
	}
	c.logger.Info("Action", "player", player, "game", data.Game, "op", data.Op, "match", data.Match)

	// Watch first so the client sees the events its own action causes.
	if kind, err := game.ParseKind(data.Game); err == nil && data.Match != 0 {
		c.watch(game.MatchKey{Kind: kind, ID: data.Match})
	}

	key, err := c.server.casino.Do(c.ctx, player, data)
	if err != nil && key.ID == 0 {
		c.sendFailure(requestID, err)
		return
	}
	if err != nil {
		c.watch(key)
		c.reply(requestID, MessageTypeError, ErrorData{
			Code:    game.Code(err),
			Message: err.Error(),
			Game:    key.Kind.String(),
			Match:   key.ID,
		})
		return
	}
	c.watch(key)
	c.sendState(requestID, key, player)
}

func (c *Connection) handleState(requestID string, data StateData) {
	kind, err := game.ParseKind(data.Game)
	if err != nil {
		c.sendFailure(requestID, err)
		return
	}
	key := game.MatchKey{Kind: kind, ID: data.Match}
	c.watch(key)
	c.sendState(requestID, key, c.Player())
}

func (c *Connection) sendState(requestID string, key game.MatchKey, viewer string) {
	snap, err := c.server.casino.Snapshot(key, viewer)
	if err != nil {
		c.sendFailure(requestID, err)
		return
	}
	summary := casino.Describe(snap)
	c.reply(requestID, MessageTypeResult, ResultData{
		Game:    key.Kind.String(),
		Match:   key.ID,
		Summary: &summary,
		State:   snap,
	})
}

func (c *Connection) handleList(requestID string, data ListData) {
	kind, err := game.ParseKind(data.Game)
	if err != nil {
		c.sendFailure(requestID, err)
		return
	}

	matches := c.server.casino.List(kind)
	infos := make([]MatchInfo, 0, len(matches))
	for _, m := range matches {
		infos = append(infos, matchInfo(m))
	}
	c.reply(requestID, MessageTypeResult, ResultData{Game: kind.String(), Matches: infos})
}
