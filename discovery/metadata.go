package discovery

import (
	"net"
	"slices"
	"strings"
	"time"
)

// Metadata describes one logical authority.
type Metadata struct {
	PreferredNetwork string   `json:"preferred_network"`
	PreferredCache   string   `json:"preferred_cache"`
	Aliases          []string `json:"aliases"`

	// ExpiresOn is when the entry should be rediscovered. Zero means the
	// provider gave no expiry.
	ExpiresOn time.Time `json:"-"`
}

// HasAlias reports whether host is one of the aliases, ignoring case.
func (m Metadata) HasAlias(host string) bool {
	return slices.ContainsFunc(m.Aliases, func(a string) bool {
		return strings.EqualFold(a, host)
	})
}

// selfAlias is the metadata used for a host that could not be discovered.
func selfAlias(host string) Metadata {
	return Metadata{
		PreferredNetwork: host,
		PreferredCache:   host,
		Aliases:          []string{host},
	}
}

func (m Metadata) clone() Metadata {
	m.Aliases = slices.Clone(m.Aliases)
	return m
}

// normalizeHost lowercases host and strips a scheme, path or port. IPv6
// literals lose their brackets; a bare IPv6 address is kept whole.
func normalizeHost(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		return host[1 : len(host)-1]
	}
	return host
}
