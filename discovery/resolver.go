package discovery

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/tokenops/cache"
	"github.com/jonwraymond/tokenops/observe"
)

// neverExpires stands in for "no expiry" so entries still fit cache.Memory.
const neverExpires = 100 * 365 * 24 * time.Hour

// DefaultFailureTTL is how long a self-alias fallback is cached.
const DefaultFailureTTL = 5 * time.Minute

// DefaultFetchTimeout bounds one shared discovery fetch.
const DefaultFetchTimeout = 30 * time.Second

// Config configures a Resolver.
type Config struct {
	// ValidateAuthority makes discovery failures fatal. When false an
	// undiscoverable host is treated as its own sole alias.
	ValidateAuthority bool

	// TTL bounds entries whose metadata carries no expiry.
	// Default: 0 (such entries never expire)
	TTL time.Duration

	// FailureTTL is how long a self-alias fallback is cached before
	// discovery is retried.
	// Default: 5 minutes
	FailureTTL time.Duration

	// FetchTimeout bounds a fetch. A fetch is shared by every caller
	// waiting on the host, so it does not end when one of them gives up.
	// Default: 30 seconds
	FetchTimeout time.Duration

	// Clock overrides time.Now.
	Clock cache.Clock

	// Logger receives fallback warnings.
	// Default: observe.NopLogger()
	Logger observe.Logger
}

// Resolver resolves and caches authority metadata.
//
// Contract:
// - Concurrency: safe for concurrent use. Concurrent misses for one host
//   share a single fetch.
// - Context: a caller returns ctx.Err() as soon as its context ends. The
//   fetch it started keeps running under FetchTimeout and carries the
//   context's values but not its cancellation.
// - Errors: wraps ErrDiscoveryFailed when ValidateAuthority is set.
type Resolver struct {
	fetcher Fetcher
	config  Config
	entries *cache.Memory[Metadata]
	group   singleflight.Group
	now     cache.Clock
	logger  observe.Logger
}

// NewResolver creates a Resolver that fetches through fetcher.
func NewResolver(fetcher Fetcher, config Config) *Resolver {
	if config.FailureTTL <= 0 {
		config.FailureTTL = DefaultFailureTTL
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultFetchTimeout
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}

	policy := cache.Policy{DefaultTTL: neverExpires}
	return &Resolver{
		fetcher: fetcher,
		config:  config,
		entries: cache.NewMemory[Metadata](policy, cache.WithClock(config.Clock)),
		now:     config.Clock,
		logger:  config.Logger,
	}
}

// Resolve returns the metadata for host, fetching it on a miss or after
// the cached entry expired.
func (r *Resolver) Resolve(ctx context.Context, host string) (Metadata, error) {
	host = normalizeHost(host)
	if host == "" {
		return Metadata{}, ErrInvalidHost
	}

	if m, ok := r.entries.Get(host); ok {
		return m.clone(), nil
	}

	flight := context.WithoutCancel(ctx)
	ch := r.group.DoChan(host, func() (any, error) {
		// Another flight may have filled the entry while we queued.
		if m, ok := r.entries.Get(host); ok {
			return m, nil
		}
		fctx, cancel := context.WithTimeout(flight, r.config.FetchTimeout)
		defer cancel()
		return r.discover(fctx, host)
	})
	select {
	case <-ctx.Done():
		return Metadata{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Metadata{}, res.Err
		}
		return res.Val.(Metadata).clone(), nil
	}
}

func (r *Resolver) discover(ctx context.Context, host string) (Metadata, error) {
	list, err := r.fetcher.Fetch(ctx, host)
	if err == nil {
		if m, ok := selectEntry(list, host); ok {
			r.store(m)
			return m, nil
		}
		err = fmt.Errorf("no metadata entry lists %s", host)
	}

	if r.config.ValidateAuthority {
		return Metadata{}, fmt.Errorf("%w: %s: %w", ErrDiscoveryFailed, host, err)
	}

	r.logger.Warn(ctx, "instance discovery failed; using host as its own alias",
		observe.Field{Key: "host", Value: host},
		observe.Field{Key: "error", Value: err},
	)
	m := selfAlias(host)
	// A fetch that ran out of time says nothing about the host, so the
	// next caller tries again.
	if ctx.Err() == nil {
		r.entries.Set(host, m, r.config.FailureTTL)
	}
	return m, nil
}

// store caches m under every alias it lists.
func (r *Resolver) store(m Metadata) {
	ttl := r.config.TTL
	if !m.ExpiresOn.IsZero() {
		ttl = m.ExpiresOn.Sub(r.now())
		if ttl <= 0 {
			return
		}
	}
	for _, alias := range m.Aliases {
		r.entries.Set(normalizeHost(alias), m, ttl)
	}
}

// Clear forgets every cached entry.
func (r *Resolver) Clear() {
	r.entries.Clear()
}

func selectEntry(list []Metadata, host string) (Metadata, bool) {
	for _, m := range list {
		if m.HasAlias(host) {
			return m, true
		}
	}
	return Metadata{}, false
}
