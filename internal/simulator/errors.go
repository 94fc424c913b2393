package simulator

import "errors"

// Simulator errors.
var (
	// ErrNotStarted is returned when operating on a device that is not
	// listening.
	ErrNotStarted = errors.New("simulator not started")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("simulator already started")
)
