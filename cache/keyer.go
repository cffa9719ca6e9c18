package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Keyer derives deterministic cache keys from request attributes.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map iteration order.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key generates a cache key for a kind of entry from its attributes.
	Key(kind string, input any) (string, error)
}

// DefaultKeyer generates SHA-256 based cache keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key generates a deterministic cache key.
// Format: <kind>:<hash>
// where hash is the first 32 hex characters of SHA-256(canonical JSON(input)).
func (k *DefaultKeyer) Key(kind string, input any) (string, error) {
	canonical, err := canonicalize(input)
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize input: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return kind + ":" + hex.EncodeToString(sum[:16]), nil
}

// RequestHash is the key shared by the throttling and interaction-required
// caches: one per (client, authority, account, scopes) combination.
// Scopes must already be normalized by the caller.
func RequestHash(k Keyer, clientID, authority, homeAccountID string, scopes []string) (string, error) {
	in := make([]any, len(scopes))
	for i, s := range scopes {
		in[i] = s
	}
	return k.Key("request", map[string]any{
		"client":    clientID,
		"authority": authority,
		"account":   homeAccountID,
		"scopes":    in,
	})
}

// canonicalize produces a deterministic JSON representation of the input.
// Maps are sorted by key; slices keep their order.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			out = append(out, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		out = append(append(out, kb...), ':')

		vb, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		out = append(out, vb...)
	}
	return append(out, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	out := []byte{'['}
	for i, v := range s {
		if i > 0 {
			out = append(out, ',')
		}
		vb, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		out = append(out, vb...)
	}
	return append(out, ']'), nil
}

// Ensure DefaultKeyer implements Keyer
var _ Keyer = (*DefaultKeyer)(nil)
