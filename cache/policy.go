package cache

import "time"

// Policy configures expiry and eviction for a Memory map.
type Policy struct {
	// DefaultTTL is the TTL to use when none is specified.
	// If zero, Set with a zero TTL stores nothing.
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed TTL. Override TTLs are clamped to this.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration

	// SweepThreshold is the entry count above which a write sweeps every
	// expired entry out of the map. Zero disables sweeping.
	SweepThreshold int
}

// DefaultPolicy is the policy for request windows such as throttling:
// two minutes unless told otherwise, never more than an hour, and a sweep
// once more than 100 windows are held.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL:     2 * time.Minute,
		MaxTTL:         time.Hour,
		SweepThreshold: 100,
	}
}

// EffectiveTTL returns the TTL to use, applying defaults and clamping.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}

	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}

	return ttl
}
