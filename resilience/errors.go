package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrMaxRetriesExceeded is returned when max retry attempts are exhausted.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")

	// ErrInvalidRequestHash is returned when a cache operation is keyed by
	// a hash that cache.ValidateKey rejects.
	ErrInvalidRequestHash = errors.New("resilience: invalid request hash")
)
