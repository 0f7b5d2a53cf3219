package tcp

import (
	"errors"
	"io"
	"net"

	"github.com/rs/zerolog"

	"github.com/akovalev/netchat-server/internal/core"
	"github.com/akovalev/netchat-server/internal/proto"
	"github.com/akovalev/netchat-server/internal/transfer"
)

// handlerState is the per-connection lifecycle.
type handlerState int

const (
	stateConnecting handlerState = iota
	stateAwaitingLogin
	stateActive
	stateClosing
	stateClosed
)

// handler owns one connection: the read loop, dispatch to the
// registry/directory/queue, and the teardown sequence.
type handler struct {
	conn      *Conn
	sess      *core.Session
	registry  *core.Registry
	directory *core.Directory
	transfers *transfer.Queue
	log       zerolog.Logger

	state handlerState
}

func newHandler(conn *Conn, sess *core.Session, registry *core.Registry,
	directory *core.Directory, transfers *transfer.Queue, logger *zerolog.Logger) *handler {
	return &handler{
		conn:      conn,
		sess:      sess,
		registry:  registry,
		directory: directory,
		transfers: transfers,
		log:       logger.With().Str("peer", conn.RemoteAddr()).Logger(),
		state:     stateConnecting,
	}
}

// run drives the connection to completion. It always leaves the
// session fully torn down.
func (h *handler) run() {
	defer h.teardown()

	h.state = stateAwaitingLogin
	if !h.awaitLogin() {
		return
	}

	h.state = stateActive
	h.log = h.log.With().Str("user", h.sess.Name()).Logger()
	h.log.Info().Msg("session active")
	h.dispatchLoop()
}

// awaitLogin reads envelopes until a login succeeds. Any non-login
// kind or read failure closes the connection; a rejected login keeps
// it open for another attempt.
func (h *handler) awaitLogin() bool {
	for {
		env, err := h.conn.ReadEnvelope()
		if err != nil {
			h.log.Debug().Err(err).Msg("read before login")
			return false
		}
		if env.Kind != proto.KindLogin {
			h.log.Warn().Uint8("kind", uint8(env.Kind)).Msg("expected login envelope")
			return false
		}

		if err := h.registry.Activate(h.sess, env.Sender); err != nil {
			wireErr := core.WireError(err)
			h.reply(&proto.Envelope{
				Kind:     proto.KindLoginFailure,
				Receiver: env.Sender,
				Content:  wireErr.Code + ": " + wireErr.Message,
			})
			continue
		}

		h.reply(&proto.Envelope{
			Kind:     proto.KindLoginSuccess,
			Receiver: env.Sender,
			Content:  "welcome, " + env.Sender,
		})
		return true
	}
}

func (h *handler) dispatchLoop() {
	for {
		env, err := h.conn.ReadEnvelope()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				h.log.Debug().Err(err).Msg("read failed")
			}
			return
		}

		switch env.Kind {
		case proto.KindJoinRoom:
			h.handleJoin(env)
		case proto.KindLeaveRoom:
			h.handleLeave()
		case proto.KindBroadcast:
			h.handleBroadcast(env)
		case proto.KindWhisper:
			h.handleWhisper(env)
		case proto.KindFileTransferRequest:
			h.handleTransferRequest(env)
		case proto.KindDisconnect:
			h.reply(&proto.Envelope{
				Kind:    proto.KindSuccess,
				Content: "goodbye, " + h.sess.Name(),
			})
			return
		default:
			h.replyError(&core.CoreError{
				Code:    core.ErrCodeBadRequest,
				Message: "unexpected envelope kind",
			})
		}
	}
}

func (h *handler) handleJoin(env *proto.Envelope) {
	if err := h.directory.Join(h.sess, env.Room); err != nil {
		h.replyError(core.WireError(err))
		return
	}
	h.reply(&proto.Envelope{
		Kind:    proto.KindSuccess,
		Room:    env.Room,
		Content: "joined " + env.Room,
	})
}

func (h *handler) handleLeave() {
	// Leaving with no room is still a success: leave is idempotent.
	room := h.sess.Room()
	h.directory.Leave(h.sess)
	h.reply(&proto.Envelope{
		Kind:    proto.KindSuccess,
		Room:    room,
		Content: "left the room",
	})
}

func (h *handler) handleBroadcast(env *proto.Envelope) {
	name := h.sess.Room()
	if name == "" {
		h.replyError(core.WireError(core.ErrNotInRoom))
		return
	}
	room, ok := h.directory.Find(name)
	if !ok {
		h.replyError(core.WireError(core.ErrNotInRoom))
		return
	}

	room.Broadcast(&proto.Envelope{
		Kind:    proto.KindBroadcast,
		Sender:  h.sess.Name(),
		Room:    name,
		Content: env.Content,
	}, h.sess.Name())
	h.reply(&proto.Envelope{
		Kind:    proto.KindSuccess,
		Room:    name,
		Content: "message sent",
	})
}

func (h *handler) handleWhisper(env *proto.Envelope) {
	if env.Receiver == h.sess.Name() {
		h.replyError(&core.CoreError{
			Code:    core.ErrCodeBadRequest,
			Message: "cannot whisper to yourself",
		})
		return
	}
	peer, err := h.registry.Lookup(env.Receiver)
	if err != nil {
		h.replyError(core.WireError(err))
		return
	}

	if err := peer.Send(&proto.Envelope{
		Kind:     proto.KindWhisper,
		Sender:   h.sess.Name(),
		Receiver: env.Receiver,
		Content:  env.Content,
	}); err != nil {
		// The peer's handler notices the broken socket on its own;
		// the sender just learns the whisper did not land.
		h.replyError(&core.CoreError{
			Code:    core.ErrCodeNotFound,
			Message: "could not deliver whisper",
		})
		return
	}
	h.reply(&proto.Envelope{
		Kind:     proto.KindSuccess,
		Receiver: env.Receiver,
		Content:  "whisper sent",
	})
}

func (h *handler) handleTransferRequest(env *proto.Envelope) {
	task, err := h.transfers.Submit(env.Filename, h.sess.Name(), env.Receiver, env.FileSize)
	if err != nil {
		h.reply(&proto.Envelope{
			Kind:     proto.KindFileTransferReject,
			Receiver: env.Receiver,
			Filename: env.Filename,
			Content:  err.Error(),
		})
		return
	}
	h.reply(&proto.Envelope{
		Kind:     proto.KindFileTransferAccept,
		Receiver: env.Receiver,
		Filename: env.Filename,
		Content:  "transfer queued: " + task.ID.String(),
	})
}

// teardown runs the closing sequence. The order matters: leaving the
// room broadcasts a departure while the session is still resolvable,
// and the registry slot must outlive the room cleanup so concurrent
// lookups never race past a half-closed session.
func (h *handler) teardown() {
	h.state = stateClosing
	h.directory.Leave(h.sess)
	h.registry.Unregister(h.sess)
	_ = h.conn.Close()
	h.state = stateClosed
	h.log.Info().Msg("session closed")
}

func (h *handler) reply(env *proto.Envelope) {
	if err := h.conn.WriteEnvelope(env); err != nil {
		h.log.Debug().Err(err).Msg("reply write failed")
	}
}

func (h *handler) replyError(ce *core.CoreError) {
	h.reply(&proto.Envelope{
		Kind:    proto.KindError,
		Content: ce.Code + ": " + ce.Message,
	})
}
