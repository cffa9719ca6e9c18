// Package cache provides the short-lived, access-swept maps that back the
// throttling and interaction-required caches, plus the deterministic request
// hash used to key them.
//
// It provides a generic Memory map with window-checked expiry, a SHA-256
// canonical JSON Keyer, and TTL policies with a hard cap and sweep threshold.
// Nothing in this package starts a goroutine: expired entries are purged when
// they are read and, once a map grows past its sweep threshold, on write.
package cache
