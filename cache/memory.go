package cache

import (
	"sync"
	"time"
)

// Memory is an in-memory map whose entries are only visible inside the
// window they were written for.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Visibility: an entry written at t with TTL d is returned only while
//   t <= now < t+d. Entries read outside that window are deleted.
// - Eviction: access-triggered only; no background goroutine.
type Memory[V any] struct {
	mu      sync.Mutex
	entries map[string]memoryEntry[V]
	policy  Policy
	now     Clock
}

type memoryEntry[V any] struct {
	value     V
	createdAt time.Time
	expiresAt time.Time
}

// Option configures a Memory map.
type Option func(*memoryOptions)

type memoryOptions struct {
	clock Clock
}

// WithClock sets the clock used for expiry decisions.
func WithClock(c Clock) Option {
	return func(o *memoryOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// NewMemory creates a new in-memory map with the given policy.
func NewMemory[V any](policy Policy, opts ...Option) *Memory[V] {
	o := memoryOptions{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Memory[V]{
		entries: make(map[string]memoryEntry[V]),
		policy:  policy,
		now:     o.clock,
	}
}

// Get returns the value stored under key if it is inside its validity window.
func (c *Memory[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookupLocked(key, c.now())
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Remaining returns how long the entry under key stays valid.
func (c *Memory[V]) Remaining(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.lookupLocked(key, now)
	if !ok {
		return 0, false
	}
	return e.expiresAt.Sub(now), true
}

// Set stores value under key for ttl, after applying the policy.
// It returns the absolute expiry, or the zero time when nothing was stored.
func (c *Memory[V]) Set(key string, value V, ttl time.Duration) time.Time {
	ttl = c.policy.EffectiveTTL(ttl)
	if ttl <= 0 {
		return time.Time{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expiresAt := now.Add(ttl)
	c.entries[key] = memoryEntry[V]{
		value:     value,
		createdAt: now,
		expiresAt: expiresAt,
	}

	if c.policy.SweepThreshold > 0 && len(c.entries) > c.policy.SweepThreshold {
		c.sweepLocked(now)
	}
	return expiresAt
}

// Delete removes a value. Idempotent.
func (c *Memory[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *Memory[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry[V])
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *Memory[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes every entry outside its window and returns how many went.
func (c *Memory[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.now())
}

// lookupLocked returns the entry if valid at now, deleting it otherwise.
// Caller must hold mu.
func (c *Memory[V]) lookupLocked(key string, now time.Time) (memoryEntry[V], bool) {
	e, ok := c.entries[key]
	if !ok {
		return e, false
	}
	if !e.validAt(now) {
		delete(c.entries, key)
		return e, false
	}
	return e, true
}

func (c *Memory[V]) sweepLocked(now time.Time) int {
	removed := 0
	for k, e := range c.entries {
		if !e.validAt(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// validAt reports whether now falls in [createdAt, expiresAt). A clock that
// moved backwards past createdAt invalidates the entry.
func (e memoryEntry[V]) validAt(now time.Time) bool {
	return !now.Before(e.createdAt) && now.Before(e.expiresAt)
}
