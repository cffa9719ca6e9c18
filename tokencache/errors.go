package tokencache

import "errors"

// Sentinel errors for cache operations. All are client-local: none of them
// involves the network, and none is worth retrying.
var (
	// ErrMalformedCache indicates serialized cache data could not be parsed.
	ErrMalformedCache = errors.New("tokencache: malformed cache data")

	// ErrInvalidEntity indicates an entity failed validation on write.
	ErrInvalidEntity = errors.New("tokencache: invalid entity")

	// ErrMalformedIDToken indicates an ID token could not be decoded.
	ErrMalformedIDToken = errors.New("tokencache: malformed id token")

	// ErrMalformedClientInfo indicates a client_info value could not be decoded.
	ErrMalformedClientInfo = errors.New("tokencache: malformed client info")
)
