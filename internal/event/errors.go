package event

import "errors"

var (
	// ErrEventNotFound is returned when an event ID does not exist.
	ErrEventNotFound = errors.New("event: not found")

	// ErrInvalidEvent is returned when event validation fails.
	ErrInvalidEvent = errors.New("event: invalid")

	// ErrInvalidLifecycle is returned for an unknown lifecycle value.
	ErrInvalidLifecycle = errors.New("event: invalid lifecycle")
)
