package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents a game event type with type safety
type EventType string

// EventType constants for engine transitions
const (
	EventMatchCreated      EventType = "match_created"
	EventPlayerJoined      EventType = "player_joined"
	EventPlayerLeft        EventType = "player_left"
	EventMatchStarted      EventType = "match_started"
	EventCardsDealt        EventType = "cards_dealt"
	EventActionTaken       EventType = "action_taken"
	EventChoiceCommitted   EventType = "choice_committed"
	EventGuessSubmitted    EventType = "guess_submitted"
	EventPlayersEliminated EventType = "players_eliminated"
	EventMatchRevealed     EventType = "match_revealed"
	EventMatchFinished     EventType = "match_finished"
	EventMatchCancelled    EventType = "match_cancelled"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}

// Event is a notification of a state transition. Payload holds public
// fields only.
type Event struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Kind        Kind           `json:"-"`
	Game        string         `json:"game"`
	MatchID     uint64         `json:"matchId"`
	Participant string         `json:"participant,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	At          time.Time      `json:"at"`
}

// NewEvent stamps an event with a fresh time-ordered id.
func NewEvent(typ EventType, key MatchKey, participant string, at time.Time, payload map[string]any) Event {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Event{
		ID:          id.String(),
		Type:        typ,
		Kind:        key.Kind,
		Game:        key.Kind.String(),
		MatchID:     key.ID,
		Participant: participant,
		Payload:     payload,
		At:          at,
	}
}

// Key returns the match the event refers to.
func (e Event) Key() MatchKey {
	return MatchKey{Kind: e.Kind, ID: e.MatchID}
}

// EventSubscriber can subscribe to game events
type EventSubscriber interface {
	OnEvent(event Event)
}

// SubscriberFunc adapts a function to EventSubscriber.
type SubscriberFunc func(Event)

func (f SubscriberFunc) OnEvent(e Event) { f(e) }

// Bus manages event publishing and subscription. Safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	nextID      int
	subscribers map[int]EventSubscriber
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[int]EventSubscriber)}
}

// Subscribe adds a subscriber and returns a function that removes it.
func (b *Bus) Subscribe(subscriber EventSubscriber) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subscribers[id] = subscriber

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers, id)
	}
}

// Publish delivers events, in order, to every subscriber. Delivery is
// synchronous; subscribers must not block.
func (b *Bus) Publish(events ...Event) {
	if b == nil || len(events) == 0 {
		return
	}

	b.mu.RLock()
	subs := make([]EventSubscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, e := range events {
		for _, s := range subs {
			s.OnEvent(e)
		}
	}
}

// Recorder is an EventSubscriber that keeps every event it sees.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) OnEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types for one match, in order.
func (r *Recorder) Types(key MatchKey) []EventType {
	var types []EventType
	for _, e := range r.Events() {
		if e.Key() == key {
			types = append(types, e.Type)
		}
	}
	return types
}
