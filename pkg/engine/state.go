package engine

import (
	"sync"
	"time"
)

// historyLimit caps the retained transcript history used by the
// meeting-type classifier. Old sessions rarely get near it.
const historyLimit = 500

// State holds everything the engine knows about one live session. It is
// owned by exactly one evaluation at a time; sessions are independent and
// nothing survives session end.
type State struct {
	SessionID string `json:"session_id"`

	Window    Window        `json:"window"`
	History   []Line        `json:"history"`
	Cooldowns CooldownTable `json:"cooldowns"`

	ManualType        MeetingType     `json:"manual_type,omitempty"`
	Snapshot          *VisualSnapshot `json:"snapshot,omitempty"`
	FirstTranscriptAt time.Time       `json:"first_transcript_at,omitempty"`

	Evaluations     int64 `json:"evaluations"`
	AlertCount      int64 `json:"alert_count"`
	SuggestionCount int64 `json:"suggestion_count"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// newState initializes session state at now.
func newState(sessionID string, windowSpan time.Duration, now time.Time) *State {
	return &State{
		SessionID:   sessionID,
		Window:      NewWindow(windowSpan),
		Cooldowns:   make(CooldownTable),
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// recordLine appends a transcript line to both the rolling window and the
// bounded history, stamping the first-transcript time on the first line.
func (s *State) recordLine(text string, now time.Time) {
	if s.FirstTranscriptAt.IsZero() {
		s.FirstTranscriptAt = now
	}
	s.Window.Add(text, now)
	s.History = append(s.History, Line{Text: text, At: now})
	if len(s.History) > historyLimit {
		s.History = s.History[len(s.History)-historyLimit:]
	}
}

// clone returns an independent copy of the state.
func (s *State) clone() *State {
	out := *s
	out.Window.Entries = append([]Line(nil), s.Window.Entries...)
	out.History = append([]Line(nil), s.History...)
	out.Cooldowns = make(CooldownTable, len(s.Cooldowns))
	for k, v := range s.Cooldowns {
		out.Cooldowns[k] = v
	}
	if s.Snapshot != nil {
		snap := *s.Snapshot
		out.Snapshot = &snap
	}
	return &out
}

// StateStore abstracts per-session state persistence.
type StateStore interface {
	Get(sessionID string) (*State, error)
	Set(sessionID string, state *State) error
	Delete(sessionID string) error
	// Cleanup removes sessions idle longer than maxIdle (relative to now)
	// and returns the removed session IDs. Stores with native expiry may
	// return nil.
	Cleanup(now time.Time, maxIdle time.Duration) ([]string, error)
}

// InMemoryStateStore provides process-local state storage.
type InMemoryStateStore struct {
	mu    sync.RWMutex
	items map[string]*State
}

// NewInMemoryStateStore creates an empty in-memory store.
func NewInMemoryStateStore() *InMemoryStateStore {
	return &InMemoryStateStore{items: make(map[string]*State)}
}

func (s *InMemoryStateStore) Get(sessionID string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[sessionID]
	if !ok {
		return nil, nil
	}
	return state.clone(), nil
}

func (s *InMemoryStateStore) Set(sessionID string, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[sessionID] = state.clone()
	return nil
}

func (s *InMemoryStateStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, sessionID)
	return nil
}

func (s *InMemoryStateStore) Cleanup(now time.Time, maxIdle time.Duration) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for id, state := range s.items {
		if now.Sub(state.LastUpdated) > maxIdle {
			delete(s.items, id)
			removed = append(removed, id)
		}
	}
	return removed, nil
}

// Len returns the number of tracked sessions.
func (s *InMemoryStateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
