package server

import (
	"sync"
	"time"
)

// registry tracks attached sessions and enforces the session cap.
type registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	max      int
}

func newRegistry(max int) *registry {
	return &registry{
		sessions: make(map[string]*Session),
		max:      max,
	}
}

func (r *registry) add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.sessions) >= r.max {
		return ErrTooManySessions
	}
	r.sessions[s.id] = s
	return nil
}

func (r *registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// A resumed session may have replaced this entry already.
	if current, ok := r.sessions[s.id]; ok && current == s {
		delete(r.sessions, s.id)
	}
}

func (r *registry) get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *registry) all() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// idle returns the sessions inactive for longer than maxIdle. The caller
// closes them outside the lock.
func (r *registry) idle(maxIdle time.Duration, now time.Time) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	var idle []*Session
	for _, s := range r.sessions {
		if s.idleFor(now) > maxIdle {
			idle = append(idle, s)
		}
	}
	return idle
}
