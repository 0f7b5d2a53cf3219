package core

import (
	"sync"

	"github.com/akovalev/netchat-server/internal/proto"
)

// Registry tracks every connected session and enforces one active
// connection per username. It is bounded: Register rejects new
// connections once the table is full.
type Registry struct {
	mu       sync.Mutex
	capacity int
	sessions map[*Session]struct{}
	byName   map[string]*Session
}

// NewRegistry builds a registry holding at most capacity sessions,
// counting both logged-in and pre-login connections.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		capacity: capacity,
		sessions: make(map[*Session]struct{}, capacity),
		byName:   make(map[string]*Session, capacity),
	}
}

// Register allocates a session for a new connection. The session is
// inactive until Activate succeeds.
func (r *Registry) Register(conn Conn) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.capacity {
		return nil, ErrServerFull
	}
	s := NewSession(conn)
	r.sessions[s] = struct{}{}
	return s, nil
}

// Activate binds a username to the session. Pre-login sessions never
// hold a name, so only active sessions count toward uniqueness.
func (r *Registry) Activate(s *Session, username string) error {
	if !proto.ValidUsername(username) {
		return ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byName[username]; taken {
		return ErrNameTaken
	}
	r.byName[username] = s
	s.activate(username)
	return nil
}

// Lookup resolves an active session by username.
func (r *Registry) Lookup(username string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byName[username]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Unregister removes the session. The name index is only touched if
// the session had been activated.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, s)
	if s.deactivate() {
		delete(r.byName, s.Name())
	}
}

// Len returns the number of connected sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// ActiveNames returns the usernames of all logged-in sessions.
func (r *Registry) ActiveNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}
