package health

import (
	"context"
	"slices"
	"strings"

	"github.com/jonwraymond/tokenops/discovery"
	"github.com/jonwraymond/tokenops/persist"
	"github.com/jonwraymond/tokenops/tokencache"
)

// CacheReadable checks that m can be loaded and that what it holds is a
// well-formed cache document. An empty medium is healthy.
func CacheReadable(m persist.Medium) Checker {
	return NewCheckFunc("cache", func(ctx context.Context) Result {
		data, err := m.Load(ctx)
		if err != nil {
			return Unhealthy("cache medium unreadable", err)
		}
		if data == nil {
			return Healthy("no cache persisted yet")
		}
		store := tokencache.NewStore()
		if err := store.Deserialize(data); err != nil {
			return Unhealthy("cache document malformed", err)
		}
		c := store.Contents(ctx)
		return Healthy("cache readable").WithDetails(map[string]any{
			"bytes":          len(data),
			"accounts":       len(c.Accounts),
			"access_tokens":  len(c.AccessTokens),
			"refresh_tokens": len(c.RefreshTokens),
			"id_tokens":      len(c.IDTokens),
		})
	})
}

// SignInState reports accounts that hold no refresh token. Silent
// acquisition for such an account always ends in interaction required.
func SignInState(store *tokencache.Store) Checker {
	return NewCheckFunc("sign_in", func(ctx context.Context) Result {
		c := store.Contents(ctx)
		if len(c.Accounts) == 0 {
			return Healthy("no accounts cached")
		}

		var stranded []string
		for _, a := range c.Accounts {
			hasRT := slices.ContainsFunc(c.RefreshTokens, func(rt tokencache.RefreshToken) bool {
				return strings.EqualFold(rt.HomeAccountID, a.HomeAccountID)
			})
			if !hasRT {
				stranded = append(stranded, a.HomeAccountID)
			}
		}
		if len(stranded) == 0 {
			return Healthy("every account can refresh silently").WithDetails(map[string]any{
				"accounts": len(c.Accounts),
			})
		}
		slices.Sort(stranded)
		stranded = slices.Compact(stranded)
		return Degraded("accounts need an interactive sign-in").WithDetails(map[string]any{
			"accounts": stranded,
		})
	})
}

// AuthorityDiscovery checks that r can resolve host's aliases. Build r with
// ValidateAuthority set, or a failed fetch reads as a healthy self alias.
func AuthorityDiscovery(r *discovery.Resolver, host string) Checker {
	return NewCheckFunc("discovery", func(ctx context.Context) Result {
		md, err := r.Resolve(ctx, host)
		if err != nil {
			return Unhealthy("instance discovery failed", err)
		}
		return Healthy("authority resolved").WithDetails(map[string]any{
			"preferred_network": md.PreferredNetwork,
			"preferred_cache":   md.PreferredCache,
			"aliases":           md.Aliases,
		})
	})
}
