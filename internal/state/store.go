// Package state holds the single session-scoped state container shared by
// the orchestration layer. Every mutation is an atomic multi-field replace
// and emits a state-changed event; the presentation layer subscribes and
// re-renders instead of being called directly.
package state

import (
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"smartrag-console/internal/domain"
)

// Topic is the watermill topic carrying state-changed events.
const Topic = "state.changed"

// EventType names the mutation that produced an event.
type EventType string

const (
	EventSessionCreated EventType = "session_created"
	EventSessionLoaded  EventType = "session_loaded"
	EventSessionReset   EventType = "session_reset"
	EventInteraction    EventType = "interaction_appended"
	EventIngestProgress EventType = "ingest_progress"
)

// Event is the payload published on Topic after each mutation.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	Completed int       `json:"completed,omitempty"`
	Total     int       `json:"total,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Store owns the active session id and its chat history. Documents are
// cached separately by the session controller, keyed by the id held here, so
// the two can never disagree about which session they describe.
type Store struct {
	mu        sync.RWMutex
	sessionID string
	history   []domain.Interaction
	publisher message.Publisher
	logger    *zap.Logger
}

// NewStore creates an empty state container publishing on pub.
func NewStore(pub message.Publisher, logger *zap.Logger) *Store {
	return &Store{publisher: pub, logger: logger}
}

// SessionID returns the active session id, or "" when none is active.
func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// History returns a copy of the chat history.
func (s *Store) History() []domain.Interaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Interaction, len(s.history))
	copy(out, s.history)
	return out
}

// Snapshot returns the session id and history as one consistent view.
func (s *Store) Snapshot() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := make([]domain.Interaction, len(s.history))
	copy(history, s.history)
	return domain.Session{ID: s.sessionID, History: history}
}

// BeginSession activates a freshly created session with an empty history.
func (s *Store) BeginSession(id string) {
	s.mu.Lock()
	s.sessionID = id
	s.history = nil
	s.mu.Unlock()
	s.publish(Event{Type: EventSessionCreated, SessionID: id})
}

// SwitchSession atomically replaces the active session id and history
// together. Callers fetch the history first and only then switch, so a
// failed fetch never leaves the container half-updated.
func (s *Store) SwitchSession(id string, history []domain.Interaction) {
	s.mu.Lock()
	s.sessionID = id
	s.history = history
	s.mu.Unlock()
	s.publish(Event{Type: EventSessionLoaded, SessionID: id})
}

// Reset clears the session id and history in one update.
func (s *Store) Reset() {
	s.mu.Lock()
	s.sessionID = ""
	s.history = nil
	s.mu.Unlock()
	s.publish(Event{Type: EventSessionReset})
}

// AppendInteraction records one completed Q&A exchange.
func (s *Store) AppendInteraction(it domain.Interaction) error {
	s.mu.Lock()
	if s.sessionID == "" {
		s.mu.Unlock()
		return domain.ErrNoActiveSession
	}
	id := s.sessionID
	s.history = append(s.history, it)
	s.mu.Unlock()
	s.publish(Event{Type: EventInteraction, SessionID: id})
	return nil
}

// PublishProgress surfaces an ingestion progress tick to subscribers.
func (s *Store) PublishProgress(evt Event) {
	evt.Type = EventIngestProgress
	s.publish(evt)
}

func (s *Store) publish(evt Event) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		s.logger.Error("failed to marshal state event", zap.Error(err))
		return
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	if err := s.publisher.Publish(Topic, msg); err != nil {
		s.logger.Error("failed to publish state event", zap.Error(err), zap.String("type", string(evt.Type)))
	}
}
