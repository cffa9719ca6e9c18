package tokencache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonwraymond/tokenops/observe"
)

// Store is an in-memory token cache. It owns every entity it holds: inputs
// are copied in and results are copied out.
//
// Contract:
// - Concurrency: safe for concurrent use; one RWMutex guards all maps.
// - Hooks: fired outside the lock around every operation except Serialize
//   and Deserialize, which are what hooks call.
// - Errors: only write paths fail, and only with client-local errors.
type Store struct {
	mu            sync.RWMutex
	accounts      map[string]Account
	accessTokens  map[string]AccessToken
	refreshTokens map[string]RefreshToken
	idTokens      map[string]IDToken
	appMetadata   map[string]AppMetadata

	hook   Hook
	logger observe.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithHook installs a persistence hook.
func WithHook(h Hook) Option {
	return func(s *Store) { s.hook = h }
}

// WithLogger sets the logger used for hook failures and skipped entities.
// Default: observe.NopLogger().
func WithLogger(l observe.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used by AddResponse.
// Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		logger: observe.NopLogger(),
		now:    time.Now,
	}
	s.reset()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) reset() {
	s.accounts = make(map[string]Account)
	s.accessTokens = make(map[string]AccessToken)
	s.refreshTokens = make(map[string]RefreshToken)
	s.idTokens = make(map[string]IDToken)
	s.appMetadata = make(map[string]AppMetadata)
}

// access brackets fn with the hook pair. fn runs without any lock held and
// reports whether it changed state.
func (s *Store) access(ctx context.Context, clientID, homeAccountID string, fn func() bool) {
	hc := HookContext{ClientID: clientID, HomeAccountID: homeAccountID, Cache: s}
	if s.hook != nil {
		if err := s.hook.BeforeAccess(ctx, hc); err != nil {
			s.logger.Warn(ctx, "token cache hook failed",
				observe.Field{Key: "phase", Value: "before_access"},
				observe.Field{Key: "error", Value: err},
			)
		}
	}

	hc.HasStateChanged = fn()

	if s.hook != nil {
		if err := s.hook.AfterAccess(ctx, hc); err != nil {
			s.logger.Warn(ctx, "token cache hook failed",
				observe.Field{Key: "phase", Value: "after_access"},
				observe.Field{Key: "error", Value: err},
			)
		}
	}
}

// UpsertAccount inserts or overwrites an account by key.
func (s *Store) UpsertAccount(ctx context.Context, a Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	a = a.clone()
	s.access(ctx, "", a.HomeAccountID, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.accounts[a.Key()] = a
		return true
	})
	return nil
}

// UpsertAccessToken inserts or overwrites an access token by key.
func (s *Store) UpsertAccessToken(ctx context.Context, t AccessToken) error {
	t = t.normalize()
	if err := t.Validate(); err != nil {
		return err
	}
	s.access(ctx, t.ClientID, t.HomeAccountID, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.accessTokens[t.Key()] = t
		return true
	})
	return nil
}

// UpsertRefreshToken inserts or overwrites a refresh token by key.
func (s *Store) UpsertRefreshToken(ctx context.Context, t RefreshToken) error {
	t.CredentialType = CredentialTypeRefreshToken
	if err := t.Validate(); err != nil {
		return err
	}
	s.access(ctx, t.ClientID, t.HomeAccountID, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.refreshTokens[t.Key()] = t
		return true
	})
	return nil
}

// UpsertIDToken inserts or overwrites an ID token by key.
func (s *Store) UpsertIDToken(ctx context.Context, t IDToken) error {
	if err := t.Validate(); err != nil {
		return err
	}
	t = NewIDToken(t.Credential, t.Realm)
	s.access(ctx, t.ClientID, t.HomeAccountID, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.idTokens[t.Key()] = t
		return true
	})
	return nil
}

// UpsertAppMetadata inserts or overwrites app metadata by key.
func (s *Store) UpsertAppMetadata(ctx context.Context, m AppMetadata) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.access(ctx, m.ClientID, "", func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.appMetadata[m.Key()] = m
		return true
	})
	return nil
}

// AccessTokenQuery selects access tokens.
type AccessTokenQuery struct {
	ClientID      string
	HomeAccountID string // empty for app-only tokens
	// Realm must match when set. An empty realm matches any tenant.
	Realm string
	// Scopes must all be present in the token's target. Reserved OIDC scopes
	// are ignored.
	Scopes []string
	// Aliases lists the environments that name the same authority. Empty
	// matches every environment.
	Aliases []string
}

func (q AccessTokenQuery) matches(t AccessToken, want ScopeSet) bool {
	if !strings.EqualFold(t.ClientID, q.ClientID) ||
		!strings.EqualFold(t.HomeAccountID, q.HomeAccountID) ||
		!inAliases(t.Environment, q.Aliases) {
		return false
	}
	if q.Realm != "" && !strings.EqualFold(t.Realm, q.Realm) {
		return false
	}
	return t.Scopes().ContainsAll(want)
}

// FindAccessToken returns the access token whose scopes are a superset of
// the requested ones. When several match, the most recently cached wins.
// Expiry is not checked.
func (s *Store) FindAccessToken(ctx context.Context, q AccessTokenQuery) (AccessToken, bool) {
	want := NewScopeSet(q.Scopes...).WithoutReserved()

	var (
		best    AccessToken
		bestKey string
		found   bool
	)
	s.access(ctx, q.ClientID, q.HomeAccountID, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for key, t := range s.accessTokens {
			if !q.matches(t, want) {
				continue
			}
			if !found || t.CachedAt.After(best.CachedAt) ||
				(t.CachedAt.Equal(best.CachedAt) && key < bestKey) {
				best, bestKey, found = t, key, true
			}
		}
		return false
	})
	return best, found
}

// RefreshTokenQuery selects a refresh token.
type RefreshTokenQuery struct {
	ClientID string
	// FamilyID, when set, selects the family refresh token instead of the
	// client's own.
	FamilyID      string
	HomeAccountID string
	Aliases       []string
}

// FindRefreshToken returns the refresh token for the client or, when
// FamilyID is set, for the family. Aliases are tried in order.
func (s *Store) FindRefreshToken(ctx context.Context, q RefreshTokenQuery) (RefreshToken, bool) {
	id := q.ClientID
	if q.FamilyID != "" {
		id = q.FamilyID
	}

	var (
		rt    RefreshToken
		found bool
	)
	s.access(ctx, q.ClientID, q.HomeAccountID, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		rt, found = lookup(s.refreshTokens, q.Aliases, func(env string) string {
			return RefreshTokenKey(q.HomeAccountID, env, id)
		}, func(t RefreshToken) bool {
			if !strings.EqualFold(t.HomeAccountID, q.HomeAccountID) {
				return false
			}
			if q.FamilyID != "" {
				return strings.EqualFold(t.FamilyID, q.FamilyID)
			}
			return t.FamilyID == "" && strings.EqualFold(t.ClientID, q.ClientID)
		})
		return false
	})
	return rt, found
}

// IDTokenQuery selects an ID token.
type IDTokenQuery struct {
	ClientID      string
	HomeAccountID string
	Realm         string
	Aliases       []string
}

// FindIDToken returns the ID token for the client, account and realm.
func (s *Store) FindIDToken(ctx context.Context, q IDTokenQuery) (IDToken, bool) {
	var (
		t     IDToken
		found bool
	)
	s.access(ctx, q.ClientID, q.HomeAccountID, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		t, found = lookup(s.idTokens, q.Aliases, func(env string) string {
			return IDTokenKey(q.HomeAccountID, env, q.ClientID, q.Realm)
		}, func(t IDToken) bool {
			return strings.EqualFold(t.HomeAccountID, q.HomeAccountID) &&
				strings.EqualFold(t.ClientID, q.ClientID) &&
				strings.EqualFold(t.Realm, q.Realm)
		})
		return false
	})
	return t, found
}

// FindAppMetadata returns the app metadata recorded for clientID in any of
// aliases.
func (s *Store) FindAppMetadata(ctx context.Context, clientID string, aliases []string) (AppMetadata, bool) {
	var (
		m     AppMetadata
		found bool
	)
	s.access(ctx, clientID, "", func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		m, found = lookup(s.appMetadata, aliases, func(env string) string {
			return AppMetadataKey(env, clientID)
		}, func(m AppMetadata) bool {
			return strings.EqualFold(m.ClientID, clientID)
		})
		return false
	})
	return m, found
}

// Account returns the account with homeAccountID in any of aliases.
func (s *Store) Account(ctx context.Context, homeAccountID string, aliases []string) (Account, bool) {
	var (
		a     Account
		found bool
	)
	s.access(ctx, "", homeAccountID, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		a, found = lookup(s.accounts, aliases, func(env string) string {
			return AccountKey(homeAccountID, env)
		}, func(a Account) bool {
			return strings.EqualFold(a.HomeAccountID, homeAccountID)
		})
		a = a.clone()
		return false
	})
	return a, found
}

// Accounts returns every cached account ordered by key.
func (s *Store) Accounts(ctx context.Context) []Account {
	var out []Account
	s.access(ctx, "", "", func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		out = make([]Account, 0, len(s.accounts))
		for _, key := range sortedKeys(s.accounts) {
			out = append(out, s.accounts[key].clone())
		}
		return false
	})
	return out
}

// RemoveAccount removes the account and every credential keyed to
// homeAccountID across all aliases in one write. Credentials of every client
// are removed, not only clientID's. It returns the number of entities
// removed.
func (s *Store) RemoveAccount(ctx context.Context, clientID, homeAccountID string, aliases []string) int {
	var removed int
	s.access(ctx, clientID, homeAccountID, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		owned := func(home, env string) bool {
			return strings.EqualFold(home, homeAccountID) && inAliases(env, aliases)
		}
		removed += deleteWhere(s.accounts, func(a Account) bool { return owned(a.HomeAccountID, a.Environment) })
		removed += deleteWhere(s.accessTokens, func(t AccessToken) bool { return owned(t.HomeAccountID, t.Environment) })
		removed += deleteWhere(s.refreshTokens, func(t RefreshToken) bool { return owned(t.HomeAccountID, t.Environment) })
		removed += deleteWhere(s.idTokens, func(t IDToken) bool { return owned(t.HomeAccountID, t.Environment) })
		return removed > 0
	})
	return removed
}

// RemoveRefreshToken removes rt. It reports whether rt was present.
func (s *Store) RemoveRefreshToken(ctx context.Context, rt RefreshToken) bool {
	var removed bool
	s.access(ctx, rt.ClientID, rt.HomeAccountID, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		key := rt.Key()
		if _, removed = s.refreshTokens[key]; removed {
			delete(s.refreshTokens, key)
		}
		return removed
	})
	return removed
}

// RemoveAccessToken removes t. It reports whether t was present.
func (s *Store) RemoveAccessToken(ctx context.Context, t AccessToken) bool {
	var removed bool
	s.access(ctx, t.ClientID, t.HomeAccountID, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		key := t.Key()
		if _, removed = s.accessTokens[key]; removed {
			delete(s.accessTokens, key)
		}
		return removed
	})
	return removed
}

// Contents is a point-in-time copy of a store, each slice ordered by key.
type Contents struct {
	Accounts      []Account
	AccessTokens  []AccessToken
	RefreshTokens []RefreshToken
	IDTokens      []IDToken
	AppMetadata   []AppMetadata
}

// Len returns the total number of entities.
func (c Contents) Len() int {
	return len(c.Accounts) + len(c.AccessTokens) + len(c.RefreshTokens) + len(c.IDTokens) + len(c.AppMetadata)
}

// Contents returns a copy of every entity in the store.
func (s *Store) Contents(ctx context.Context) Contents {
	var c Contents
	s.access(ctx, "", "", func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for _, k := range sortedKeys(s.accounts) {
			c.Accounts = append(c.Accounts, s.accounts[k].clone())
		}
		c.AccessTokens = sortedValues(s.accessTokens)
		c.RefreshTokens = sortedValues(s.refreshTokens)
		c.IDTokens = sortedValues(s.idTokens)
		c.AppMetadata = sortedValues(s.appMetadata)
		return false
	})
	return c
}

// lookup tries key(env) for each alias in order. With no aliases it falls
// back to a scan filtered by match.
func lookup[V any](m map[string]V, aliases []string, key func(env string) string, match func(V) bool) (V, bool) {
	for _, env := range aliases {
		if v, ok := m[key(env)]; ok && match(v) {
			return v, true
		}
	}
	if len(aliases) == 0 {
		for _, k := range sortedKeys(m) {
			if v := m[k]; match(v) {
				return v, true
			}
		}
	}
	var zero V
	return zero, false
}

func deleteWhere[V any](m map[string]V, pred func(V) bool) int {
	n := 0
	for k, v := range m {
		if pred(v) {
			delete(m, k)
			n++
		}
	}
	return n
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedValues[V any](m map[string]V) []V {
	out := make([]V, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, m[k])
	}
	return out
}
