package websocket

import (
	"sort"
	"sync"

	"mediahub-be/internal/metrics"
)

// Registry maps each user to its current session. It is the only source of
// truth for who is online.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register stores s for its user and returns the session it displaced, if any.
func (r *Registry) Register(s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.sessions[s.user]
	r.sessions[s.user] = s
	metrics.RealtimeSessions.Set(float64(len(r.sessions)))
	return prev
}

// Unregister removes s only if it is still the registered session for its
// user, so a displaced socket closing never takes the newer one with it.
func (r *Registry) Unregister(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[s.user] != s {
		return false
	}
	delete(r.sessions, s.user)
	metrics.RealtimeSessions.Set(float64(len(r.sessions)))
	return true
}

func (r *Registry) Get(user string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[user]
	return s, ok
}

// Online returns the sorted list of online users.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]string, 0, len(r.sessions))
	for u := range r.sessions {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
