package core

import (
	"sync"

	"github.com/akovalev/netchat-server/internal/proto"
)

// Room groups sessions that receive each other's broadcasts.
// Membership is ordered, bounded, and duplicate-free.
type Room struct {
	Name string

	mu       sync.Mutex
	capacity int
	members  []*Session
}

// NewRoom constructs an empty room with the given member capacity.
func NewRoom(name string, capacity int) *Room {
	return &Room{
		Name:     name,
		capacity: capacity,
		members:  make([]*Session, 0, capacity),
	}
}

// AddMember inserts a session. Adding a session already present is a
// no-op success; a full room is rejected with ErrRoomFull.
func (r *Room) AddMember(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.members {
		if m == s {
			return nil
		}
	}
	if len(r.members) >= r.capacity {
		return ErrRoomFull
	}
	r.members = append(r.members, s)
	return nil
}

// RemoveMember deletes a session, preserving member order. Returns
// true if the session was a member.
func (r *Room) RemoveMember(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, m := range r.members {
		if m == s {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

// Broadcast writes the envelope to every active member except the one
// named by exclude ("" excludes nobody). The room lock is held across
// the fan-out so each member observes broadcasts in a single order; a
// failed write to one member never aborts delivery to the rest.
// Returns the number of successful deliveries.
func (r *Room) Broadcast(env *proto.Envelope, exclude string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	delivered := 0
	for _, m := range r.members {
		if !m.Active() || (exclude != "" && m.Name() == exclude) {
			continue
		}
		if err := m.Send(env); err != nil {
			// The member's own handler tears the session down on
			// its next read; skip and keep delivering.
			continue
		}
		delivered++
	}
	return delivered
}

// Len returns the current member count.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Members returns a snapshot of member usernames in join order.
func (r *Room) Members() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.members))
	for _, m := range r.members {
		names = append(names, m.Name())
	}
	return names
}
