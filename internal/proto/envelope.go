package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Kind describes what an envelope carries.
type Kind uint8

const (
	// KindLogin is sent by the client to claim a username.
	KindLogin Kind = iota + 1
	// KindLoginSuccess confirms a successful login.
	KindLoginSuccess
	// KindLoginFailure rejects a login attempt.
	KindLoginFailure
	// KindJoinRoom requests to join (or switch to) a room.
	KindJoinRoom
	// KindLeaveRoom requests to leave the current room.
	KindLeaveRoom
	// KindBroadcast delivers a chat message to room members.
	KindBroadcast
	// KindWhisper delivers a private message to one user.
	KindWhisper
	// KindFileTransferRequest asks the server to queue a file delivery.
	KindFileTransferRequest
	// KindFileTransferData notifies the recipient of a delivered file.
	KindFileTransferData
	// KindFileTransferAccept confirms a transfer was queued.
	KindFileTransferAccept
	// KindFileTransferReject rejects a transfer request.
	KindFileTransferReject
	// KindDisconnect requests an orderly goodbye.
	KindDisconnect
	// KindError reports a protocol or validation error.
	KindError
	// KindSuccess confirms a request took effect.
	KindSuccess
	// KindServerNotification carries a server-originated announcement.
	KindServerNotification
)

// Fixed field widths of the wire envelope. The layout is a given
// contract shared with clients; every envelope occupies exactly
// EnvelopeSize bytes on the wire.
const (
	MaxUsernameLen = 16
	MaxRoomNameLen = 32
	MaxContentLen  = 1023
	MaxFilenameLen = 255

	// EnvelopeSize is kind + sender + receiver + room + content +
	// filename + file size, all fields NUL-padded to their maximum.
	EnvelopeSize = 1 + MaxUsernameLen + MaxUsernameLen + MaxRoomNameLen +
		MaxContentLen + MaxFilenameLen + 8
)

var (
	// ErrShortEnvelope is returned when a read or write moves fewer
	// bytes than a full envelope. The connection is unusable after it.
	ErrShortEnvelope = errors.New("short envelope")
	// ErrFieldTooLong is returned when a field exceeds its fixed width.
	ErrFieldTooLong = errors.New("field exceeds fixed width")
)

// Envelope is one fixed-layout protocol message.
type Envelope struct {
	Kind     Kind
	Sender   string
	Receiver string
	Room     string
	Content  string
	Filename string
	FileSize uint64
}

// Encode serializes the envelope into its fixed wire layout.
func (e *Envelope) Encode() ([]byte, error) {
	buf := make([]byte, EnvelopeSize)
	buf[0] = byte(e.Kind)

	off := 1
	for _, f := range []struct {
		value string
		width int
	}{
		{e.Sender, MaxUsernameLen},
		{e.Receiver, MaxUsernameLen},
		{e.Room, MaxRoomNameLen},
		{e.Content, MaxContentLen},
		{e.Filename, MaxFilenameLen},
	} {
		if len(f.value) > f.width {
			return nil, fmt.Errorf("%w: %d > %d", ErrFieldTooLong, len(f.value), f.width)
		}
		copy(buf[off:off+f.width], f.value)
		off += f.width
	}

	binary.BigEndian.PutUint64(buf[off:], e.FileSize)
	return buf, nil
}

// Decode parses a full wire envelope. The input must hold exactly
// EnvelopeSize bytes.
func Decode(buf []byte) (*Envelope, error) {
	if len(buf) != EnvelopeSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrShortEnvelope, len(buf))
	}

	e := &Envelope{Kind: Kind(buf[0])}
	off := 1
	for _, f := range []struct {
		dst   *string
		width int
	}{
		{&e.Sender, MaxUsernameLen},
		{&e.Receiver, MaxUsernameLen},
		{&e.Room, MaxRoomNameLen},
		{&e.Content, MaxContentLen},
		{&e.Filename, MaxFilenameLen},
	} {
		*f.dst = trimNul(buf[off : off+f.width])
		off += f.width
	}

	e.FileSize = binary.BigEndian.Uint64(buf[off:])
	return e, nil
}

// Read consumes exactly one envelope from r. A short read is fatal
// for the connection; partial envelopes are never reassembled.
func Read(r io.Reader) (*Envelope, error) {
	buf := make([]byte, EnvelopeSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %v", ErrShortEnvelope, err)
		}
		return nil, err
	}
	return Decode(buf)
}

// Write sends exactly one envelope to w.
func Write(w io.Writer, e *Envelope) error {
	buf, err := e.Encode()
	if err != nil {
		return err
	}
	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != EnvelopeSize {
		return fmt.Errorf("%w: wrote %d bytes", ErrShortEnvelope, n)
	}
	return nil
}

func trimNul(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
