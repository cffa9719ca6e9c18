// Package discovery resolves an authority host to its instance metadata:
// the preferred network and cache hosts and the full set of aliases that
// name the same logical authority.
//
// A Resolver is owned by one client. It caches metadata per host (and per
// alias, so resolving any alias of a known authority is free), collapses
// concurrent fetches for the same host, and when authority validation is
// off falls back to treating an undiscoverable host as its own sole alias.
package discovery
