package anneal

import "errors"

var (
	// ErrInvalidParams indicates a configuration error; the run never starts.
	ErrInvalidParams = errors.New("invalid solver parameters")
	// ErrAlreadyRunning is returned when Run is called twice on an engine.
	ErrAlreadyRunning = errors.New("engine already started")
)
