package server

import "errors"

var (
	// ErrTooManySessions is returned when the session cap is reached.
	ErrTooManySessions = errors.New("server: too many sessions")

	// ErrSessionClosed is returned for operations on a closed session.
	ErrSessionClosed = errors.New("server: session closed")

	// ErrBadHandshake is returned when the client's first frame is not a
	// valid hello.
	ErrBadHandshake = errors.New("server: bad handshake")

	// ErrUnknownTarget is returned when an event names a node or event
	// with no registered handler.
	ErrUnknownTarget = errors.New("server: unknown event target")
)
