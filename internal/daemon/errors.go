package daemon

import "errors"

var (
	// ErrExtension wraps errors forwarded by the browser extension.
	ErrExtension = errors.New("extension error")

	// ErrUnexpectedMessage is returned when a control handler receives a
	// message of another kind.
	ErrUnexpectedMessage = errors.New("unexpected message type")

	// ErrNotStarted is returned by Run before Start succeeded.
	ErrNotStarted = errors.New("daemon not started")
)
