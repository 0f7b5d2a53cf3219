package core

import (
	"sync"

	"github.com/akovalev/netchat-server/internal/proto"
)

// Directory owns the bounded set of named rooms. Rooms are created
// lazily on first join and never deleted; the table capacity is the
// upper bound on room churn.
type Directory struct {
	mu           sync.Mutex
	maxRooms     int
	roomCapacity int
	rooms        map[string]*Room
}

// NewDirectory builds a directory holding at most maxRooms rooms of
// roomCapacity members each.
func NewDirectory(maxRooms, roomCapacity int) *Directory {
	return &Directory{
		maxRooms:     maxRooms,
		roomCapacity: roomCapacity,
		rooms:        make(map[string]*Room, maxRooms),
	}
}

// FindOrCreate resolves a room by name, creating it on first use.
// ErrDirectoryFull means the room table itself is at capacity, which
// is distinct from any single room's membership being full.
func (d *Directory) FindOrCreate(name string) (*Room, error) {
	if !proto.ValidRoomName(name) {
		return nil, ErrInvalidName
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if room, ok := d.rooms[name]; ok {
		return room, nil
	}
	if len(d.rooms) >= d.maxRooms {
		return nil, ErrDirectoryFull
	}
	room := NewRoom(name, d.roomCapacity)
	d.rooms[name] = room
	return room, nil
}

// Find resolves an existing room without creating it.
func (d *Directory) Find(name string) (*Room, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[name]
	return room, ok
}

// Join moves the session into the named room.
//
// The switch sequence is deliberate: when the session is in another
// room, the old room is notified and left before the target is even
// resolved. If the target then rejects the member (room full), the
// session ends up in no room at all — a consistent state, not one to
// roll back.
func (d *Directory) Join(s *Session, name string) error {
	if name != "" && s.Room() == name {
		return nil
	}

	if old := s.Room(); old != "" {
		d.departRoom(s, old)
	}

	room, err := d.FindOrCreate(name)
	if err != nil {
		return err
	}
	if err := room.AddMember(s); err != nil {
		return err
	}

	room.Broadcast(&proto.Envelope{
		Kind:    proto.KindServerNotification,
		Sender:  s.Name(),
		Room:    name,
		Content: s.Name() + " joined the room",
	}, s.Name())
	s.SetRoom(name)
	return nil
}

// Leave removes the session from its current room. Calling it with no
// current room is a no-op: no error, no notification.
func (d *Directory) Leave(s *Session) {
	if old := s.Room(); old != "" {
		d.departRoom(s, old)
	}
}

// departRoom notifies the old room (excluding the mover) and drops the
// membership, clearing the session's room field.
func (d *Directory) departRoom(s *Session, name string) {
	room, ok := d.Find(name)
	if !ok {
		s.SetRoom("")
		return
	}
	room.Broadcast(&proto.Envelope{
		Kind:    proto.KindServerNotification,
		Sender:  s.Name(),
		Room:    name,
		Content: s.Name() + " left the room",
	}, s.Name())
	room.RemoveMember(s)
	s.SetRoom("")
}

// Len returns the number of rooms ever created.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rooms)
}

// RoomNames returns the names of all rooms.
func (d *Directory) RoomNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.rooms))
	for name := range d.rooms {
		names = append(names, name)
	}
	return names
}
