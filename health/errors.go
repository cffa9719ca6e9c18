package health

import "errors"

var (
	// ErrCheckTimeout is the Err of a check that did not finish before the
	// runner's deadline.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckPanicked is the Err of a check that panicked.
	ErrCheckPanicked = errors.New("health: check panicked")
)
