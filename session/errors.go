package session

import (
	"fmt"

	"github.com/ggoodman/langclient-go/connection"
)

var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = fmt.Errorf("%w: session already started", connection.ErrMisuse)
	// ErrStopped is returned when registering Features on, or starting, a
	// stopped Session.
	ErrStopped = fmt.Errorf("%w: session stopped", connection.ErrMisuse)
	// ErrNotRunning is returned by handler registration outside Running.
	ErrNotRunning = fmt.Errorf("%w: session not running", connection.ErrMisuse)
)
