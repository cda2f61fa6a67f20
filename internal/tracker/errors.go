package tracker

import "errors"

var (
	// ErrUnexpectedMessage is returned when a handler receives a message
	// of a different type than the kind it is registered for.
	ErrUnexpectedMessage = errors.New("unexpected message type")

	// ErrInvalidClearPolicy is returned by ParseClearPolicy for unknown values.
	ErrInvalidClearPolicy = errors.New("invalid clear policy")
)
