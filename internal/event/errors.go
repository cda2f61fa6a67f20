package event

import "errors"

var (
	// ErrUnknownType is returned by Decode when the envelope type has no variant.
	ErrUnknownType = errors.New("unknown message type")

	// ErrMissingType is returned by Decode when the envelope has no type field.
	ErrMissingType = errors.New("message has no type")

	// ErrNoHandler is returned by Dispatch when nothing is registered for a kind.
	ErrNoHandler = errors.New("no handler registered")

	// ErrAlreadyRegistered is returned by Register when the kind already has
	// an exclusive handler.
	ErrAlreadyRegistered = errors.New("handler already registered")

	// ErrHandlerPanic wraps a value recovered from a panicking handler.
	ErrHandlerPanic = errors.New("handler panicked")
)
