package resilience

import (
	"fmt"
	"time"

	"github.com/jonwraymond/tokenops/cache"
)

// Interaction-required defaults.
const (
	DefaultInteractionTTL     = 120 * time.Second
	InteractionSweepThreshold = 10
)

// InteractionConfig configures an InteractionCache.
type InteractionConfig struct {
	// TTL is how long an outcome is replayed.
	// Default: 120 seconds
	TTL time.Duration

	// SweepThreshold is the size above which writes purge expired outcomes.
	// Default: 10
	SweepThreshold int

	// Clock overrides time.Now.
	Clock cache.Clock
}

// InteractionCache replays interaction-required outcomes for a short window
// so that identical silent requests fail fast.
type InteractionCache struct {
	outcomes *cache.Memory[error]
	ttl      time.Duration
}

// NewInteractionCache creates an interaction-required cache.
func NewInteractionCache(config InteractionConfig) *InteractionCache {
	if config.TTL <= 0 {
		config.TTL = DefaultInteractionTTL
	}
	if config.SweepThreshold <= 0 {
		config.SweepThreshold = InteractionSweepThreshold
	}

	policy := cache.Policy{
		DefaultTTL:     config.TTL,
		MaxTTL:         config.TTL,
		SweepThreshold: config.SweepThreshold,
	}
	return &InteractionCache{
		outcomes: cache.NewMemory[error](policy, cache.WithClock(config.Clock)),
		ttl:      config.TTL,
	}
}

// Set records outcome for hash. A nil outcome is ignored.
func (c *InteractionCache) Set(hash string, outcome error) error {
	if err := cache.ValidateKey(hash); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequestHash, err)
	}
	if outcome == nil {
		return nil
	}
	c.outcomes.Set(hash, outcome, c.ttl)
	return nil
}

// Get returns the recorded outcome while now is in [expiry-TTL, expiry),
// and nil otherwise.
func (c *InteractionCache) Get(hash string) error {
	outcome, ok := c.outcomes.Get(hash)
	if !ok {
		return nil
	}
	return outcome
}

// Delete forgets the outcome for hash.
func (c *InteractionCache) Delete(hash string) {
	c.outcomes.Delete(hash)
}

// Clear forgets every outcome.
func (c *InteractionCache) Clear() {
	c.outcomes.Clear()
}

// Len returns the number of stored outcomes, including expired ones not yet swept.
func (c *InteractionCache) Len() int {
	return c.outcomes.Len()
}
