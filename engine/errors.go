package engine

import (
	"errors"
	"fmt"
)

// ErrNotLoaded is returned by control calls that need a loaded session.
// It is informational: the call was a no-op, not a failure of the engine.
var ErrNotLoaded = errors.New("engine: no session loaded")

// LoadError reports that the main asset could not be opened. No playback
// is possible until a subsequent Load succeeds.
type LoadError struct {
	URI string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("engine: load %q: %v", e.URI, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
