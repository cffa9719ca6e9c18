// Package resilience keeps a client from hammering an identity provider that
// has already said no.
//
// # Negative-result caches
//
// Two short-lived maps are keyed by the request hash (see cache.RequestHash):
//
//   - ThrottlingCache records "do not call before T" windows, populated from
//     Retry-After headers and 429/5xx responses. Default window 120s, hard cap
//     1 hour, swept once it holds more than 100 entries.
//
//   - InteractionCache records interaction-required outcomes for 120 seconds
//     so that a silent call repeated in a tight loop fails without re-running
//     the cache lookup or contacting the network. Swept past 10 entries.
//
// Neither cache runs a background goroutine; eviction happens on access.
//
// # Retry
//
// Retry re-runs an operation with backoff. It is used by the HTTP transport
// for connection-level failures only; provider error responses are never
// retried.
//
//	retry := resilience.NewRetry(resilience.RetryConfig{
//	    MaxAttempts:  2,
//	    InitialDelay: 100 * time.Millisecond,
//	})
//	err := retry.Execute(ctx, func(ctx context.Context) error {
//	    return postForm(ctx)
//	})
package resilience
