package core

import "errors"

// Error codes carried in Error and rejection envelopes.
const (
	ErrCodeServerFull    = "server_full"
	ErrCodeInvalidName   = "invalid_name"
	ErrCodeNameTaken     = "name_taken"
	ErrCodeNotFound      = "not_found"
	ErrCodeRoomFull      = "room_full"
	ErrCodeDirectoryFull = "directory_full"
	ErrCodeNotInRoom     = "not_in_room"
	ErrCodeBadRequest    = "bad_request"
)

var (
	ErrServerFull    = errors.New("server full")
	ErrInvalidName   = errors.New("invalid name")
	ErrNameTaken     = errors.New("name taken")
	ErrNotFound      = errors.New("not found")
	ErrRoomFull      = errors.New("room full")
	ErrDirectoryFull = errors.New("room directory full")
	ErrNotInRoom     = errors.New("not in a room")
)

// CoreError wraps a code and human-readable message for wire replies.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// WireError maps a domain error to its wire code and message.
func WireError(err error) *CoreError {
	switch {
	case errors.Is(err, ErrServerFull):
		return &CoreError{Code: ErrCodeServerFull, Message: "server is full"}
	case errors.Is(err, ErrInvalidName):
		return &CoreError{Code: ErrCodeInvalidName, Message: "name must be alphanumeric and within length limits"}
	case errors.Is(err, ErrNameTaken):
		return &CoreError{Code: ErrCodeNameTaken, Message: "username is already taken"}
	case errors.Is(err, ErrNotFound):
		return &CoreError{Code: ErrCodeNotFound, Message: "no such user"}
	case errors.Is(err, ErrRoomFull):
		return &CoreError{Code: ErrCodeRoomFull, Message: "room is full"}
	case errors.Is(err, ErrDirectoryFull):
		return &CoreError{Code: ErrCodeDirectoryFull, Message: "no room slots left"}
	case errors.Is(err, ErrNotInRoom):
		return &CoreError{Code: ErrCodeNotInRoom, Message: "join a room first"}
	default:
		return &CoreError{Code: ErrCodeBadRequest, Message: err.Error()}
	}
}
