package shell

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager owns the live sessions and evicts idle ones.
type Manager struct {
	deps *Deps
	ttl  time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns a Manager whose sessions expire after ttl of inactivity.
// A non-positive ttl disables eviction.
func NewManager(deps Deps, ttl time.Duration) (*Manager, error) {
	if deps.Store == nil || deps.Store.Files == nil {
		return nil, errors.New("shell: a model store is required")
	}
	return &Manager{
		deps:     &deps,
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		s.touch()
	}
	return s, ok
}

// Acquire returns the session for id, starting a new one with a fresh id when
// id is empty or unknown.
func (m *Manager) Acquire(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok && id != "" {
		s.touch()
		return s
	}
	s := newSession(uuid.NewString(), m.deps)
	m.sessions[s.ID] = s
	return s
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Evict drops sessions idle since before now-ttl and returns how many went.
func (m *Manager) Evict(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Run evicts idle sessions periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	if m.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(max(m.ttl/4, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.Evict(now); n > 0 {
				log.Printf("[Sessions] evicted %d idle sessions, %d live\n", n, m.Len())
			}
		}
	}
}
