package bridge

import "errors"

var (
	// ErrAlreadyStarted is returned by a second Host.Start.
	ErrAlreadyStarted = errors.New("bridge: host already started")
	// ErrNotStarted is returned when the host is used before Start.
	ErrNotStarted = errors.New("bridge: host not started")
	// ErrStopped is returned when the host is used after Stop.
	ErrStopped = errors.New("bridge: host stopped")
	// ErrReleased is returned by commands on a released handle.
	ErrReleased = errors.New("bridge: handle released")
)
