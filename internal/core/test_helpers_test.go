package core

import (
	"errors"
	"sync"
	"testing"

	"github.com/akovalev/netchat-server/internal/proto"
)

// testConn records every envelope written to it.
type testConn struct {
	mu     sync.Mutex
	sent   []*proto.Envelope
	closed bool
	fail   bool
}

func (c *testConn) WriteEnvelope(env *proto.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("write failed")
	}
	c.sent = append(c.sent, env)
	return nil
}

func (c *testConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *testConn) countKind(kind proto.Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, env := range c.sent {
		if env.Kind == kind {
			n++
		}
	}
	return n
}

func (c *testConn) lastKind(kind proto.Kind) *proto.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.sent) - 1; i >= 0; i-- {
		if c.sent[i].Kind == kind {
			return c.sent[i]
		}
	}
	return nil
}

// activeSession registers and activates a session in one step.
func activeSession(t *testing.T, reg *Registry, name string) (*Session, *testConn) {
	t.Helper()

	conn := &testConn{}
	s, err := reg.Register(conn)
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	if err := reg.Activate(s, name); err != nil {
		t.Fatalf("activate %s: %v", name, err)
	}
	return s, conn
}
