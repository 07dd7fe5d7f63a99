package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) GetOrCreate(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshot(m.getLocked(id)), nil
}

func (m *MemoryStore) Append(_ context.Context, id string, log Log) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getLocked(id)
	s.Logs = append(s.Logs, log)
	return nil
}

func (m *MemoryStore) SetState(_ context.Context, id string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getLocked(id)
	s.State = &State{Node: state.Node, Flags: append([]string{}, state.Flags...)}
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) getLocked(id string) *Session {
	s, ok := m.sessions[id]
	if !ok {
		s = &Session{ID: id, Logs: []Log{}}
		m.sessions[id] = s
	}
	return s
}

func snapshot(s *Session) Session {
	out := Session{ID: s.ID, Logs: append([]Log{}, s.Logs...)}
	if s.State != nil {
		out.State = &State{Node: s.State.Node, Flags: append([]string{}, s.State.Flags...)}
	}
	return out
}
