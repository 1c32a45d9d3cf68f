package game

import "errors"

// Error kinds. Every error returned by the manager unwraps to one of these.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state for action")
	ErrRoomFull     = errors.New("room full")
	ErrPlayerCount  = errors.New("wrong player count")
	ErrForbidden    = errors.New("forbidden")
)

// Error carries a client-facing message alongside its kind.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}
