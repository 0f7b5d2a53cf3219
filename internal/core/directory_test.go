package core

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/akovalev/netchat-server/internal/proto"
)

func TestDirectoryJoinAndLeaveRoundTrip(t *testing.T) {
	reg := NewRegistry(4)
	dir := NewDirectory(4, 4)

	alice, _ := activeSession(t, reg, "alice")

	if err := dir.Join(alice, "alpha"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if alice.Room() != "alpha" {
		t.Fatalf("expected room alpha, got %q", alice.Room())
	}

	dir.Leave(alice)
	if alice.Room() != "" {
		t.Fatalf("expected empty room after leave, got %q", alice.Room())
	}
	room, _ := dir.Find("alpha")
	if room.Len() != 0 {
		t.Fatalf("room should be empty, has %d members", room.Len())
	}
}

func TestDirectorySwitchNotifiesBothRooms(t *testing.T) {
	reg := NewRegistry(8)
	dir := NewDirectory(4, 4)

	alice, _ := activeSession(t, reg, "alice")
	bob, bobConn := activeSession(t, reg, "bob")
	carol, carolConn := activeSession(t, reg, "carol")

	if err := dir.Join(bob, "alpha"); err != nil {
		t.Fatalf("join bob: %v", err)
	}
	if err := dir.Join(carol, "beta"); err != nil {
		t.Fatalf("join carol: %v", err)
	}
	if err := dir.Join(alice, "alpha"); err != nil {
		t.Fatalf("join alice: %v", err)
	}

	// Switch: alpha sees exactly one "left", beta exactly one "joined",
	// the mover sees neither.
	bobNotifsBefore := bobConn.countKind(proto.KindServerNotification)
	carolNotifsBefore := carolConn.countKind(proto.KindServerNotification)

	if err := dir.Join(alice, "beta"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if alice.Room() != "beta" {
		t.Fatalf("expected room beta, got %q", alice.Room())
	}

	if got := bobConn.countKind(proto.KindServerNotification) - bobNotifsBefore; got != 1 {
		t.Fatalf("old room: expected 1 notification, got %d", got)
	}
	if env := bobConn.lastKind(proto.KindServerNotification); env.Sender != "alice" || env.Room != "alpha" {
		t.Fatalf("unexpected left notification: %+v", env)
	}
	if got := carolConn.countKind(proto.KindServerNotification) - carolNotifsBefore; got != 1 {
		t.Fatalf("new room: expected 1 notification, got %d", got)
	}
	if env := carolConn.lastKind(proto.KindServerNotification); env.Sender != "alice" || env.Room != "beta" {
		t.Fatalf("unexpected joined notification: %+v", env)
	}

	alphaRoom, _ := dir.Find("alpha")
	for _, name := range alphaRoom.Members() {
		if name == "alice" {
			t.Fatalf("alice still listed in alpha after switch")
		}
	}
}

func TestDirectoryJoinCurrentRoomIsNoop(t *testing.T) {
	reg := NewRegistry(4)
	dir := NewDirectory(4, 4)

	alice, _ := activeSession(t, reg, "alice")
	bob, bobConn := activeSession(t, reg, "bob")

	if err := dir.Join(alice, "alpha"); err != nil {
		t.Fatalf("join alice: %v", err)
	}
	if err := dir.Join(bob, "alpha"); err != nil {
		t.Fatalf("join bob: %v", err)
	}

	before := bobConn.countKind(proto.KindServerNotification)
	if err := dir.Join(alice, "alpha"); err != nil {
		t.Fatalf("re-join: %v", err)
	}
	if got := bobConn.countKind(proto.KindServerNotification); got != before {
		t.Fatalf("re-join must not notify, got %d extra", got-before)
	}
}

func TestRoomCapacityRejectsOverflow(t *testing.T) {
	const capacity = 3
	reg := NewRegistry(8)
	dir := NewDirectory(4, capacity)

	for i := 0; i < capacity; i++ {
		s, _ := activeSession(t, reg, fmt.Sprintf("user%d", i))
		if err := dir.Join(s, "alpha"); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}

	late, _ := activeSession(t, reg, "late")
	if err := dir.Join(late, "alpha"); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}

	room, _ := dir.Find("alpha")
	if room.Len() != capacity {
		t.Fatalf("membership changed on rejected join: %d", room.Len())
	}
	if late.Room() != "" {
		t.Fatalf("rejected joiner should have no room, got %q", late.Room())
	}
}

func TestDirectorySwitchIntoFullRoomLeavesSessionRoomless(t *testing.T) {
	reg := NewRegistry(8)
	dir := NewDirectory(4, 1)

	alice, _ := activeSession(t, reg, "alice")
	bob, _ := activeSession(t, reg, "bob")

	if err := dir.Join(bob, "beta"); err != nil {
		t.Fatalf("join bob: %v", err)
	}
	if err := dir.Join(alice, "alpha"); err != nil {
		t.Fatalf("join alice: %v", err)
	}

	// The old room is left before the full target rejects; the session
	// ends up in no room, which is the contract, not an error state.
	if err := dir.Join(alice, "beta"); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}
	if alice.Room() != "" {
		t.Fatalf("expected no room, got %q", alice.Room())
	}
	alphaRoom, _ := dir.Find("alpha")
	if alphaRoom.Len() != 0 {
		t.Fatalf("old room should be empty, has %d", alphaRoom.Len())
	}
}

func TestDirectoryTableCapacity(t *testing.T) {
	reg := NewRegistry(8)
	dir := NewDirectory(2, 4)

	alice, _ := activeSession(t, reg, "alice")

	if _, err := dir.FindOrCreate("one"); err != nil {
		t.Fatalf("create one: %v", err)
	}
	if _, err := dir.FindOrCreate("two"); err != nil {
		t.Fatalf("create two: %v", err)
	}
	if _, err := dir.FindOrCreate("three"); !errors.Is(err, ErrDirectoryFull) {
		t.Fatalf("expected ErrDirectoryFull, got %v", err)
	}
	// Existing rooms stay reachable at capacity.
	if _, err := dir.FindOrCreate("one"); err != nil {
		t.Fatalf("find existing at capacity: %v", err)
	}
	if err := dir.Join(alice, "three"); !errors.Is(err, ErrDirectoryFull) {
		t.Fatalf("join new room at capacity: got %v", err)
	}
}

func TestDirectoryLeaveIsIdempotent(t *testing.T) {
	reg := NewRegistry(4)
	dir := NewDirectory(4, 4)

	alice, aliceConn := activeSession(t, reg, "alice")

	// Two leaves with no room: no error, no notification.
	dir.Leave(alice)
	dir.Leave(alice)
	if got := aliceConn.countKind(proto.KindServerNotification); got != 0 {
		t.Fatalf("leave without room must not notify, got %d", got)
	}
}

func TestDirectoryRejectsInvalidRoomName(t *testing.T) {
	dir := NewDirectory(4, 4)

	for _, name := range []string{"", "has space", "this_room_name_is_far_too_long_to_be_valid"} {
		if _, err := dir.FindOrCreate(name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("name %q: expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestBroadcastSurvivesMemberWriteFailure(t *testing.T) {
	reg := NewRegistry(8)
	dir := NewDirectory(4, 4)

	alice, _ := activeSession(t, reg, "alice")
	broken, brokenConn := activeSession(t, reg, "broken")
	carol, carolConn := activeSession(t, reg, "carol")

	for _, s := range []*Session{alice, broken, carol} {
		if err := dir.Join(s, "alpha"); err != nil {
			t.Fatalf("join: %v", err)
		}
	}
	brokenConn.fail = true

	room, _ := dir.Find("alpha")
	delivered := room.Broadcast(&proto.Envelope{
		Kind:    proto.KindBroadcast,
		Sender:  "alice",
		Room:    "alpha",
		Content: "hello",
	}, "alice")

	if delivered != 1 {
		t.Fatalf("expected 1 delivery past the broken member, got %d", delivered)
	}
	if got := carolConn.countKind(proto.KindBroadcast); got != 1 {
		t.Fatalf("carol should still receive the broadcast, got %d", got)
	}
}

func TestConcurrentJoinBroadcastLeaveKeepsMembershipConsistent(t *testing.T) {
	const (
		workers = 8
		cycles  = 50
	)
	reg := NewRegistry(workers)
	dir := NewDirectory(4, workers)
	rooms := []string{"alpha", "beta", "gamma"}

	sessions := make([]*Session, workers)
	for i := range sessions {
		s, _ := activeSession(t, reg, fmt.Sprintf("user%d", i))
		sessions[i] = s
	}

	var wg sync.WaitGroup
	for i, s := range sessions {
		wg.Add(1)
		go func(i int, s *Session) {
			defer wg.Done()
			for c := 0; c < cycles; c++ {
				name := rooms[(i+c)%len(rooms)]
				if err := dir.Join(s, name); err != nil && !errors.Is(err, ErrRoomFull) {
					t.Errorf("join: %v", err)
					return
				}
				if room, ok := dir.Find(name); ok {
					room.Broadcast(&proto.Envelope{
						Kind:    proto.KindBroadcast,
						Sender:  s.Name(),
						Room:    name,
						Content: "ping",
					}, s.Name())
				}
				dir.Leave(s)
			}
		}(i, s)
	}
	wg.Wait()

	// No duplicates, no count drift.
	total := 0
	for _, name := range rooms {
		room, ok := dir.Find(name)
		if !ok {
			continue
		}
		members := room.Members()
		seen := make(map[string]bool, len(members))
		for _, m := range members {
			if seen[m] {
				t.Fatalf("room %s lists %s twice", name, m)
			}
			seen[m] = true
		}
		total += len(members)
	}
	if total != 0 {
		t.Fatalf("all sessions left, but %d memberships remain", total)
	}
}
