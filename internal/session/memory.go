package session

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	session Session
	expires time.Time
}

// Memory is an in-process Store. Expired sessions are dropped when loaded
// and swept on every Save.
type Memory struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]entry
}

// NewMemory returns a Memory store. A non-positive ttl uses DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now, sessions: make(map[string]entry)}
}

// Load implements Store.
func (m *Memory) Load(ctx context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	if !m.now().Before(e.expires) {
		delete(m.sessions, id)
		return Session{}, ErrNotFound
	}
	return e.session, nil
}

// Save implements Store.
func (m *Memory) Save(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, e := range m.sessions {
		if !now.Before(e.expires) {
			delete(m.sessions, id)
		}
	}
	s.UpdatedAt = now
	m.sessions[s.ID] = entry{session: s, expires: now.Add(m.ttl)}
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
