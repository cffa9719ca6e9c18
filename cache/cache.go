package cache

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// MaxKeyLength bounds a key. Keys from DefaultKeyer are well under it.
const MaxKeyLength = 256

// ErrInvalidKey reports a key that no Keyer would produce.
var ErrInvalidKey = errors.New("cache: invalid key")

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// ValidateKey rejects blank keys, keys over MaxKeyLength and keys holding
// control characters. The returned error wraps ErrInvalidKey.
func ValidateKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return fmt.Errorf("%w: blank", ErrInvalidKey)
	case len(key) > MaxKeyLength:
		return fmt.Errorf("%w: %d bytes, limit %d", ErrInvalidKey, len(key), MaxKeyLength)
	case strings.IndexFunc(key, unicode.IsControl) >= 0:
		return fmt.Errorf("%w: control character", ErrInvalidKey)
	}
	return nil
}
