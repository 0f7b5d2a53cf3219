package tcp

import (
	"net"
	"sync"

	"github.com/akovalev/netchat-server/internal/proto"
)

// Conn wraps a TCP connection with envelope framing. Writes are
// serialized: room fan-outs and transfer workers push envelopes to a
// session concurrently with its own handler's replies, and envelopes
// must never interleave on the wire. Reads are the handler's alone.
type Conn struct {
	writeMu sync.Mutex
	nc      net.Conn
}

// NewConn wraps an accepted network connection.
func NewConn(nc net.Conn) *Conn {
	return &Conn{nc: nc}
}

// WriteEnvelope sends one full envelope.
func (c *Conn) WriteEnvelope(env *proto.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return proto.Write(c.nc, env)
}

// ReadEnvelope blocks until one full envelope arrives. Closing the
// connection from another goroutine unblocks it with an error.
func (c *Conn) ReadEnvelope() (*proto.Envelope, error) {
	return proto.Read(c.nc)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.nc.Close()
}

// RemoteAddr returns the peer address for logging.
func (c *Conn) RemoteAddr() string {
	return c.nc.RemoteAddr().String()
}
