package server

import (
	"encoding/json"
	"time"

	"github.com/lox/wagerd/internal/casino"
	"github.com/lox/wagerd/internal/registry"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message stamped with at
func NewMessage(messageType MessageType, data any, at time.Time) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: at,
	}, nil
}

// Client → Server Messages

type AuthData struct {
	Player string `json:"player"`
	Token  string `json:"token,omitempty"`
}

// ActionData is a casino action verbatim.
type ActionData = casino.Action

type StateData struct {
	Game  string `json:"game"`
	Match uint64 `json:"match"`
}

type ListData struct {
	Game string `json:"game"`
}

// Server → Client Messages

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Game and Match name the match a failed action left in place, such
	// as a blackjack deal whose settlement must be retried.
	Game  string `json:"game,omitempty"`
	Match uint64 `json:"match,omitempty"`
}

// ResultData answers a request. Which fields are set depends on the
// request type.
type ResultData struct {
	Player  string          `json:"player,omitempty"`
	Game    string          `json:"game,omitempty"`
	Match   uint64          `json:"match,omitempty"`
	Summary *casino.Summary `json:"summary,omitempty"`
	State   casino.Snapshot `json:"state,omitempty"`
	Matches []MatchInfo     `json:"matches,omitempty"`
}

// MatchInfo is the lobby view of a registry record.
type MatchInfo struct {
	ID           uint64   `json:"id"`
	Participants []string `json:"participants"`
	Stake        int64    `json:"stake"`
	Capacity     int      `json:"capacity"`
	Joinable     bool     `json:"joinable"`
	Active       bool     `json:"active"`
}

func matchInfo(m registry.Match) MatchInfo {
	return MatchInfo{
		ID:           m.ID,
		Participants: m.Participants,
		Stake:        m.Stake,
		Capacity:     m.Capacity,
		Joinable:     m.Joinable && !m.Full(),
		Active:       m.Active,
	}
}
