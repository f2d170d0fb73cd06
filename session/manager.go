package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager tracks live sessions by id.
type Manager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[uuid.UUID]*Session)}
}

func (m *Manager) Add(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Invalidate()
		delete(m.sessions, id)
	}
}

// PruneIdle drops sessions idle longer than ttl so abandoned searches stop
// holding their batches; their sweeps die on the next staleness check.
func (m *Manager) PruneIdle(ttl time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	pruned := 0
	for id, s := range m.sessions {
		if s.IdleSince().Before(cutoff) {
			s.Invalidate()
			delete(m.sessions, id)
			pruned++
		}
	}
	return pruned
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
