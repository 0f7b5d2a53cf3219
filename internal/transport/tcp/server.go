package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/akovalev/netchat-server/internal/core"
	"github.com/akovalev/netchat-server/internal/proto"
	"github.com/akovalev/netchat-server/internal/transfer"
)

// Server accepts connections, allocates sessions, and launches
// handlers. It retains a handle on every live connection so shutdown
// can unblock all reads and join the handlers within a bounded
// timeout instead of guessing when they have exited.
type Server struct {
	addr        string
	registry    *core.Registry
	directory   *core.Directory
	transfers   *transfer.Queue
	joinTimeout time.Duration
	log         *zerolog.Logger

	mu        sync.Mutex
	boundAddr string
	conns     map[*Conn]struct{}
	handlers  sync.WaitGroup
}

// NewServer builds the acceptor over already-constructed core state.
func NewServer(addr string, registry *core.Registry, directory *core.Directory,
	transfers *transfer.Queue, joinTimeout time.Duration, logger *zerolog.Logger) *Server {
	return &Server{
		addr:        addr,
		registry:    registry,
		directory:   directory,
		transfers:   transfers,
		joinTimeout: joinTimeout,
		log:         logger,
		conns:       make(map[*Conn]struct{}),
	}
}

// Run listens and accepts until ctx is cancelled, then performs the
// orderly shutdown. A bind failure is fatal and returned immediately.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.boundAddr = ln.Addr().String()
	s.mu.Unlock()
	s.log.Info().Str("addr", s.boundAddr).Msg("accepting connections")

	// Cancellation closes the listener, which unblocks Accept.
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.log.Warn().Err(err).Msg("accept failed")
			continue
		}
		s.launch(nc)
	}

	return s.shutdown()
}

func (s *Server) launch(nc net.Conn) {
	conn := NewConn(nc)

	sess, err := s.registry.Register(conn)
	if err != nil {
		s.log.Warn().Str("peer", conn.RemoteAddr()).Msg("turning away connection, server full")
		wireErr := core.WireError(err)
		_ = conn.WriteEnvelope(&proto.Envelope{
			Kind:    proto.KindError,
			Content: wireErr.Code + ": " + wireErr.Message,
		})
		_ = conn.Close()
		return
	}

	s.track(conn)
	s.handlers.Add(1)
	go func() {
		defer s.handlers.Done()
		defer s.untrack(conn)
		newHandler(conn, sess, s.registry, s.directory, s.transfers, s.log).run()
	}()
}

func (s *Server) track(conn *Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn *Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// shutdown closes every live connection to unblock handler reads,
// then joins the handlers with a bounded timeout.
func (s *Server) shutdown() error {
	s.mu.Lock()
	open := len(s.conns)
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.log.Info().Int("sessions", open).Msg("closing sessions")

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Msg("all handlers exited")
		return nil
	case <-time.After(s.joinTimeout):
		return fmt.Errorf("handlers still running after %s", s.joinTimeout)
	}
}

// Sessions returns the number of live connections.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Addr returns the bound listen address, or "" before Run has bound.
// Useful when listening on port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundAddr
}
