package core

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/akovalev/netchat-server/internal/proto"
)

// Conn is the write side of a client connection as the core sees it.
// Handlers own the read side; registry and rooms only ever push
// envelopes or close.
type Conn interface {
	WriteEnvelope(*proto.Envelope) error
	Close() error
}

// maxTrackedFiles bounds the per-session delivered-filename list used
// for collision detection. Once full, new names are no longer tracked.
const maxTrackedFiles = 64

// Session is the server-side state for one client connection.
// A session is exclusively owned by its handler; the registry and
// rooms hold lookup references only.
type Session struct {
	conn      Conn
	createdAt time.Time

	mu     sync.Mutex
	name   string
	room   string
	active bool

	filesMu sync.Mutex
	files   []string
}

// NewSession wraps a freshly accepted connection. The session stays
// inactive until the registry activates it with a username.
func NewSession(conn Conn) *Session {
	return &Session{
		conn:      conn,
		createdAt: time.Now(),
	}
}

// Conn returns the session's connection handle.
func (s *Session) Conn() Conn { return s.conn }

// CreatedAt returns when the connection was accepted.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Name returns the username, or "" before login.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Room returns the current room name, or "" when not in a room.
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// SetRoom records the session's current room. The room's membership
// list is mutated separately under the room's own lock; the handler
// calls SetRoom immediately after a successful membership change.
func (s *Session) SetRoom(room string) {
	s.mu.Lock()
	s.room = room
	s.mu.Unlock()
}

// Active reports whether the session has completed login.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Session) activate(name string) {
	s.mu.Lock()
	s.name = name
	s.active = true
	s.mu.Unlock()
}

func (s *Session) deactivate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasActive := s.active
	s.active = false
	return wasActive
}

// Send writes one envelope to the session's connection.
func (s *Session) Send(env *proto.Envelope) error {
	return s.conn.WriteEnvelope(env)
}

// ClaimFilename resolves name against the files already delivered to
// this session. On collision it inserts a numeric suffix before the
// extension, incrementing until unique (report.txt, report_1.txt,
// report_2.txt, ...). The claimed name is recorded while the tracked
// list has room.
func (s *Session) ClaimFilename(name string) (final string, renamed bool) {
	s.filesMu.Lock()
	defer s.filesMu.Unlock()

	final = name
	for i := 1; s.hasFileLocked(final); i++ {
		final = suffixedName(name, i)
		renamed = true
	}
	if len(s.files) < maxTrackedFiles {
		s.files = append(s.files, final)
	}
	return final, renamed
}

func (s *Session) hasFileLocked(name string) bool {
	for _, f := range s.files {
		if f == name {
			return true
		}
	}
	return false
}

func suffixedName(name string, n int) string {
	if dot := strings.LastIndex(name, "."); dot > 0 {
		return fmt.Sprintf("%s_%d%s", name[:dot], n, name[dot:])
	}
	return fmt.Sprintf("%s_%d", name, n)
}
