package memory

import (
	"context"
	"sync"
)

// InMemoryStore keeps sessions in process memory. Each session carries its
// own lock so concurrent requests for the same session serialize while
// different sessions proceed independently.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*lockedSession
}

type lockedSession struct {
	mu      sync.Mutex
	session Session
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*lockedSession)}
}

// sessionFor returns the locked holder for sessionID, creating it if absent.
func (s *InMemoryStore) sessionFor(sessionID string) *lockedSession {
	s.mu.RLock()
	ls, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return ls
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ls, ok = s.sessions[sessionID]; ok {
		return ls
	}
	ls = &lockedSession{session: Session{ID: sessionID, Slots: EmptySlots()}}
	s.sessions[sessionID] = ls
	return ls
}

// Get implements Store. The returned session is a copy; mutating it never
// affects the stored state.
func (s *InMemoryStore) Get(_ context.Context, sessionID string) (Session, error) {
	ls := s.sessionFor(sessionID)
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return copySession(ls.session), nil
}

// Append implements Store. All turns in one call commit atomically.
func (s *InMemoryStore) Append(_ context.Context, sessionID string, turns ...Turn) error {
	ls := s.sessionFor(sessionID)
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.session.Turns = trimTurns(append(ls.session.Turns, turns...))
	return nil
}

// UpdateSlots implements Store.
func (s *InMemoryStore) UpdateSlots(_ context.Context, sessionID string, update Slots) error {
	ls := s.sessionFor(sessionID)
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.session.Slots = ls.session.Slots.Merge(update)
	return nil
}

// Clear implements Store: history empties and slots reset to unknown.
func (s *InMemoryStore) Clear(_ context.Context, sessionID string) error {
	ls := s.sessionFor(sessionID)
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.session.Turns = nil
	ls.session.Slots = EmptySlots()
	return nil
}

func copySession(in Session) Session {
	out := in
	out.Turns = append([]Turn(nil), in.Turns...)
	return out
}
