package resilience

import (
	"fmt"
	"time"

	"github.com/jonwraymond/tokenops/cache"
)

// ThrottlingConfig configures a ThrottlingCache.
type ThrottlingConfig struct {
	// DefaultTTL is used when Throttle is called without a duration.
	// Default: 120 seconds
	DefaultTTL time.Duration

	// MaxTTL caps any requested window, including provider Retry-After values.
	// Default: 1 hour
	MaxTTL time.Duration

	// SweepThreshold is the size above which writes purge expired windows.
	// Default: 100
	SweepThreshold int

	// Clock overrides time.Now.
	Clock cache.Clock
}

// ThrottlingCache remembers request hashes that must not reach the network
// until a deadline. Only presence and validity matter; there is no payload.
type ThrottlingCache struct {
	windows *cache.Memory[struct{}]
}

// NewThrottlingCache creates a throttling cache.
func NewThrottlingCache(config ThrottlingConfig) *ThrottlingCache {
	policy := cache.DefaultPolicy()
	if config.DefaultTTL > 0 {
		policy.DefaultTTL = config.DefaultTTL
	}
	if config.MaxTTL > 0 {
		policy.MaxTTL = config.MaxTTL
	}
	if config.SweepThreshold > 0 {
		policy.SweepThreshold = config.SweepThreshold
	}
	return &ThrottlingCache{
		windows: cache.NewMemory[struct{}](policy, cache.WithClock(config.Clock)),
	}
}

// Throttle opens a window of d for hash (DefaultTTL when d <= 0, clamped to
// MaxTTL) and returns when it closes.
func (c *ThrottlingCache) Throttle(hash string, d time.Duration) (time.Time, error) {
	if err := cache.ValidateKey(hash); err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidRequestHash, err)
	}
	return c.windows.Set(hash, struct{}{}, d), nil
}

// IsThrottled reports whether hash is inside an open window.
func (c *ThrottlingCache) IsThrottled(hash string) bool {
	_, ok := c.windows.Get(hash)
	return ok
}

// RetryIn returns the time left on the window for hash, or 0.
func (c *ThrottlingCache) RetryIn(hash string) time.Duration {
	left, ok := c.windows.Remaining(hash)
	if !ok {
		return 0
	}
	return left
}

// RetryInMs returns the milliseconds left on the window for hash, or 0.
func (c *ThrottlingCache) RetryInMs(hash string) int64 {
	ms := c.RetryIn(hash).Milliseconds()
	if ms == 0 && c.IsThrottled(hash) {
		// Sub-millisecond remainder still counts as throttled.
		return 1
	}
	return ms
}

// Release closes the window for hash early, for example after a success.
func (c *ThrottlingCache) Release(hash string) {
	c.windows.Delete(hash)
}

// Clear drops every window.
func (c *ThrottlingCache) Clear() {
	c.windows.Clear()
}

// Len returns the number of stored windows, including expired ones not yet swept.
func (c *ThrottlingCache) Len() int {
	return c.windows.Len()
}
