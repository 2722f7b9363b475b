// Package registry owns the index of matches and the active match of every
// participant, per game kind. A participant has at most one active match of
// a kind at a time.
package registry

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/wagerd/internal/game"
)

// Match is the registry's record of a match.
type Match struct {
	ID           uint64
	Kind         game.Kind
	Participants []string
	Stake        int64
	Capacity     int
	Joinable     bool
	Active       bool
	CreatedAt    time.Time
}

// Key returns the match key.
func (m Match) Key() game.MatchKey {
	return game.MatchKey{Kind: m.Kind, ID: m.ID}
}

// Creator is the participant that opened the match.
func (m Match) Creator() string {
	if len(m.Participants) == 0 {
		return ""
	}
	return m.Participants[0]
}

// Full reports whether capacity is reached.
func (m Match) Full() bool {
	return len(m.Participants) >= m.Capacity
}

// Has reports whether participant is seated in the match.
func (m Match) Has(participant string) bool {
	return slices.Contains(m.Participants, participant)
}

func (m *Match) clone() Match {
	c := *m
	c.Participants = slices.Clone(m.Participants)
	return c
}

type activeKey struct {
	kind        game.Kind
	participant string
}

// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	matches map[game.MatchKey]*Match
	active  map[activeKey]uint64
	counter map[game.Kind]uint64
	logger  *log.Logger
}

// New creates an empty registry.
func New(logger *log.Logger) *Registry {
	return &Registry{
		matches: make(map[game.MatchKey]*Match),
		active:  make(map[activeKey]uint64),
		counter: make(map[game.Kind]uint64),
		logger:  logger.WithPrefix("registry"),
	}
}

// Create opens a match with participant seated first and returns its id.
// Ids are allocated per kind starting at 1.
func (r *Registry) Create(kind game.Kind, participant string, stake int64, capacity int, now time.Time) (uint64, error) {
	if stake <= 0 {
		return 0, game.ErrInvalidStake
	}
	if capacity < 1 {
		return 0, fmt.Errorf("invalid capacity %d", capacity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.active[activeKey{kind, participant}]; ok {
		return 0, fmt.Errorf("%w: %s already in %s/%d", game.ErrAlreadyInMatch, participant, kind, id)
	}

	r.counter[kind]++
	id := r.counter[kind]
	m := &Match{
		ID:           id,
		Kind:         kind,
		Participants: []string{participant},
		Stake:        stake,
		Capacity:     capacity,
		Joinable:     capacity > 1,
		Active:       true,
		CreatedAt:    now,
	}
	r.matches[m.Key()] = m
	r.active[activeKey{kind, participant}] = id

	r.logger.Debug("Match created", "kind", kind, "match", id, "participant", participant, "stake", stake)
	return id, nil
}

// Join seats participant in an open match. Engines Seal a match when it
// leaves its join-accepting status.
func (r *Registry) Join(kind game.Kind, id uint64, participant string, stake int64) (Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.matches[game.MatchKey{Kind: kind, ID: id}]
	if !ok {
		return Match{}, game.ErrMatchNotFound
	}
	if !m.Joinable || !m.Active {
		return Match{}, game.ErrNotJoinable
	}
	if stake != m.Stake {
		return Match{}, fmt.Errorf("%w: got %d, want %d", game.ErrStakeMismatch, stake, m.Stake)
	}
	if m.Full() {
		return Match{}, game.ErrAlreadyFull
	}
	if other, ok := r.active[activeKey{kind, participant}]; ok {
		return Match{}, fmt.Errorf("%w: %s already in %s/%d", game.ErrAlreadyInMatch, participant, kind, other)
	}

	m.Participants = append(m.Participants, participant)
	r.active[activeKey{kind, participant}] = id

	r.logger.Debug("Player joined", "kind", kind, "match", id, "participant", participant, "seated", len(m.Participants))
	return m.clone(), nil
}

// Leave unseats participant from an active match.
// A match left empty becomes inactive.
func (r *Registry) Leave(kind game.Kind, id uint64, participant string) (Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.matches[game.MatchKey{Kind: kind, ID: id}]
	if !ok {
		return Match{}, game.ErrMatchNotFound
	}
	i := slices.Index(m.Participants, participant)
	if i < 0 {
		return Match{}, game.ErrNotParticipant
	}
	if !m.Active {
		return Match{}, game.ErrNotJoinable
	}

	m.Participants = slices.Delete(m.Participants, i, i+1)
	delete(r.active, activeKey{kind, participant})
	if len(m.Participants) == 0 {
		m.Active = false
		m.Joinable = false
	}

	r.logger.Debug("Player left", "kind", kind, "match", id, "participant", participant)
	return m.clone(), nil
}

// Seal stops a match accepting joins.
func (r *Registry) Seal(kind game.Kind, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.matches[game.MatchKey{Kind: kind, ID: id}]
	if !ok {
		return game.ErrMatchNotFound
	}
	m.Joinable = false
	return nil
}

// ClearActive releases every participant of a match so they can start or
// join another. The record is kept, inactive.
func (r *Registry) ClearActive(kind game.Kind, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.matches[game.MatchKey{Kind: kind, ID: id}]
	if !ok {
		return game.ErrMatchNotFound
	}
	for _, p := range m.Participants {
		if r.active[activeKey{kind, p}] == id {
			delete(r.active, activeKey{kind, p})
		}
	}
	m.Active = false
	m.Joinable = false

	r.logger.Debug("Match cleared", "kind", kind, "match", id)
	return nil
}

// Get returns a copy of a match record.
func (r *Registry) Get(kind game.Kind, id uint64) (Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.matches[game.MatchKey{Kind: kind, ID: id}]
	if !ok {
		return Match{}, game.ErrMatchNotFound
	}
	return m.clone(), nil
}

// ActiveMatch returns the id of participant's active match of kind.
func (r *Registry) ActiveMatch(kind game.Kind, participant string) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.active[activeKey{kind, participant}]
	return id, ok
}

// Counter returns how many matches of kind have been created.
func (r *Registry) Counter(kind game.Kind) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counter[kind]
}

// FindOpen returns the lowest-id joinable match with the given stake and
// capacity.
func (r *Registry) FindOpen(kind game.Kind, stake int64, capacity int) (Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *Match
	for key, m := range r.matches {
		if key.Kind != kind || !m.Active || !m.Joinable || m.Full() {
			continue
		}
		if m.Stake != stake || m.Capacity != capacity {
			continue
		}
		if best == nil || m.ID < best.ID {
			best = m
		}
	}
	if best == nil {
		return Match{}, false
	}
	return best.clone(), true
}

// List returns every match of kind ordered by id.
func (r *Registry) List(kind game.Kind) []Match {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Match
	for key, m := range r.matches {
		if key.Kind == kind {
			out = append(out, m.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
