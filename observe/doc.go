// Package observe provides observability primitives for token acquisition.
//
// It is a pure instrumentation library: no network calls and no I/O beyond
// exporter setup. The auth package wraps each acquisition flow with a
// Middleware, which emits one span, one set of metric points and one log
// line per call.
//
// Spans are named token.acquire.<flow> and carry a cache_not_used attribute
// that is false when the result was served from the token cache.
package observe
