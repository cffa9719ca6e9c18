package tokencache

import (
	"sort"
	"strings"
)

// ReservedScopes are OIDC scopes the provider adds to every user grant. They
// never appear in an access token's target and are ignored when matching.
var ReservedScopes = []string{"openid", "profile", "offline_access"}

// ScopeSet is a case-insensitive set of scopes.
type ScopeSet map[string]struct{}

// NewScopeSet builds a set from scopes, ignoring empty entries.
func NewScopeSet(scopes ...string) ScopeSet {
	s := make(ScopeSet, len(scopes))
	for _, scope := range scopes {
		scope = strings.ToLower(strings.TrimSpace(scope))
		if scope != "" {
			s[scope] = struct{}{}
		}
	}
	return s
}

// ParseTarget builds a set from a space-delimited target string.
func ParseTarget(target string) ScopeSet {
	return NewScopeSet(strings.Fields(target)...)
}

// ContainsAll reports whether every scope of other is in s.
func (s ScopeSet) ContainsAll(other ScopeSet) bool {
	for scope := range other {
		if _, ok := s[scope]; !ok {
			return false
		}
	}
	return true
}

// Intersects reports whether s and other share a scope.
func (s ScopeSet) Intersects(other ScopeSet) bool {
	for scope := range other {
		if _, ok := s[scope]; ok {
			return true
		}
	}
	return false
}

// WithoutReserved returns a copy of s minus ReservedScopes.
func (s ScopeSet) WithoutReserved() ScopeSet {
	out := make(ScopeSet, len(s))
	for scope := range s {
		out[scope] = struct{}{}
	}
	for _, r := range ReservedScopes {
		delete(out, r)
	}
	return out
}

// Sorted returns the scopes in lexical order.
func (s ScopeSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for scope := range s {
		out = append(out, scope)
	}
	sort.Strings(out)
	return out
}

// JoinScopes renders scopes as a target string, dropping blanks and
// case-insensitive duplicates but keeping the first-seen order and casing.
func JoinScopes(scopes []string) string {
	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		k := strings.ToLower(scope)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, scope)
	}
	return strings.Join(out, " ")
}

// NormalizeScopes returns the lowercase, sorted, deduplicated form of scopes
// with reserved scopes removed. It is the form used for request hashing.
func NormalizeScopes(scopes []string) []string {
	return NewScopeSet(scopes...).WithoutReserved().Sorted()
}
