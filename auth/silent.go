package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/tokenops/cache"
	"github.com/jonwraymond/tokenops/discovery"
	"github.com/jonwraymond/tokenops/observe"
	"github.com/jonwraymond/tokenops/resilience"
	"github.com/jonwraymond/tokenops/tokencache"
)

// DefaultExpiryBuffer is how close to expiry a cached access token is
// treated as already expired.
const DefaultExpiryBuffer = 5 * time.Minute

// DefaultFamilyID is the family tried when app metadata has not yet
// recorded whether the client belongs to a family.
const DefaultFamilyID = "1"

// StalePolicy controls whether expired access tokens may be served.
type StalePolicy int

const (
	// StaleNever treats a token past ExpiresOn as unusable.
	StaleNever StalePolicy = iota
	// StaleOnOutage serves a token past ExpiresOn but before
	// ExtendedExpiresOn when the refresh fails with a service or throttling
	// error.
	StaleOnOutage
)

// SilentParams describes one silent acquisition.
type SilentParams struct {
	Scopes  []string
	Account tokencache.Account
	// Authority overrides the client's authority for this call.
	Authority string
	// ForceRefresh skips the access token lookup.
	ForceRefresh bool
	// Claims is a claims challenge. A non-empty value also skips the access
	// token lookup.
	Claims string
}

// SilentConfig configures a SilentResolver.
type SilentConfig struct {
	ClientID  string
	Authority Authority

	Store     *tokencache.Store
	Discovery *discovery.Resolver
	Endpoint  TokenEndpoint

	// Default: a ThrottlingCache with default settings
	Throttle *resilience.ThrottlingCache
	// Default: an InteractionCache with default settings
	Interaction *resilience.InteractionCache
	// Default: cache.NewDefaultKeyer()
	Keyer cache.Keyer

	StalePolicy StalePolicy
	// Default: 5 minutes
	ExpiryBuffer time.Duration

	Logger observe.Logger
	Clock  func() time.Time
}

// SilentResolver decides, for one request, between a cached access token,
// a refresh token redemption and an interaction-required failure.
//
// Contract:
//   - Concurrency: safe for concurrent use. Concurrent misses for the same
//     request each redeem the refresh token; there is no coalescing.
//   - Errors: every failure is an *Error.
type SilentResolver struct {
	clientID    string
	authority   Authority
	store       *tokencache.Store
	discovery   *discovery.Resolver
	endpoint    TokenEndpoint
	throttle    *resilience.ThrottlingCache
	interaction *resilience.InteractionCache
	keyer       cache.Keyer
	stale       StalePolicy
	buffer      time.Duration
	logger      observe.Logger
	now         func() time.Time
}

// NewSilentResolver creates a SilentResolver.
func NewSilentResolver(config SilentConfig) (*SilentResolver, error) {
	switch {
	case config.ClientID == "":
		return nil, clientError("%w: client id is required", ErrInvalidArgument)
	case config.Store == nil:
		return nil, clientError("%w: token store is required", ErrInvalidArgument)
	case config.Discovery == nil:
		return nil, clientError("%w: discovery resolver is required", ErrInvalidArgument)
	case config.Endpoint == nil:
		return nil, clientError("%w: token endpoint is required", ErrInvalidArgument)
	case config.Authority.Host == "":
		return nil, clientError("%w: authority is required", ErrInvalidArgument)
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.Throttle == nil {
		config.Throttle = resilience.NewThrottlingCache(resilience.ThrottlingConfig{Clock: config.Clock})
	}
	if config.Interaction == nil {
		config.Interaction = resilience.NewInteractionCache(resilience.InteractionConfig{Clock: config.Clock})
	}
	if config.Keyer == nil {
		config.Keyer = cache.NewDefaultKeyer()
	}
	if config.ExpiryBuffer <= 0 {
		config.ExpiryBuffer = DefaultExpiryBuffer
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}

	return &SilentResolver{
		clientID:    config.ClientID,
		authority:   config.Authority,
		store:       config.Store,
		discovery:   config.Discovery,
		endpoint:    config.Endpoint,
		throttle:    config.Throttle,
		interaction: config.Interaction,
		keyer:       config.Keyer,
		stale:       config.StalePolicy,
		buffer:      config.ExpiryBuffer,
		logger:      config.Logger,
		now:         config.Clock,
	}, nil
}

// target is an authority after instance discovery.
type target struct {
	// authority points at the preferred network host.
	authority Authority
	// environment is the host cache entries are written under.
	environment string
	aliases     []string
}

func resolveTarget(ctx context.Context, r *discovery.Resolver, a Authority) (target, error) {
	t := target{authority: a, environment: a.Host, aliases: []string{a.Host}}
	if !a.usesDiscovery() {
		return t, nil
	}
	md, err := r.Resolve(ctx, a.Host)
	if err != nil {
		return target{}, &Error{Kind: KindClient, Err: err}
	}
	t.authority = a.withHost(md.PreferredNetwork)
	if md.PreferredCache != "" {
		t.environment = md.PreferredCache
	}
	if len(md.Aliases) > 0 {
		t.aliases = md.Aliases
	}
	return t, nil
}

// Acquire returns a token for p without user interaction.
func (r *SilentResolver) Acquire(ctx context.Context, p SilentParams) (AuthResult, error) {
	scopes := tokencache.NormalizeScopes(p.Scopes)
	if len(scopes) == 0 {
		return AuthResult{}, clientError("%w: at least one non-reserved scope is required", ErrInvalidArgument)
	}
	home := p.Account.HomeAccountID
	if home == "" {
		return AuthResult{}, &Error{Kind: KindClient, Err: ErrNoAccount}
	}

	a := r.authority
	if p.Authority != "" {
		var err error
		if a, err = ParseAuthority(p.Authority); err != nil {
			return AuthResult{}, err
		}
	}

	ctx, correlationID := ensureCorrelationID(ctx)
	t, err := resolveTarget(ctx, r.discovery, a)
	if err != nil {
		return AuthResult{}, withCorrelation(err, correlationID)
	}
	hash, err := cache.RequestHash(r.keyer, r.clientID, a.URL(), home, scopes)
	if err != nil {
		return AuthResult{}, &Error{Kind: KindClient, CorrelationID: correlationID, Err: err}
	}

	realm := a.Tenant
	if a.MultiTenant() && p.Account.Realm != "" {
		realm = p.Account.Realm
	}

	log := r.logger.WithRequest(observe.RequestMeta{
		ClientID:  r.clientID,
		Authority: a.URL(),
		Flow:      "silent",
		Scopes:    scopes,
	})

	// valid is a usable token due for proactive refresh. stale is an
	// expired token that may still be served during an outage.
	var valid, stale *tokencache.AccessToken
	if !p.ForceRefresh && p.Claims == "" {
		q := tokencache.AccessTokenQuery{
			ClientID:      r.clientID,
			HomeAccountID: home,
			Scopes:        scopes,
			Aliases:       t.aliases,
		}
		if a.MultiTenant() {
			q.Realm = p.Account.Realm
		} else {
			q.Realm = realm
		}
		if at, ok := r.store.FindAccessToken(ctx, q); ok {
			now := r.now()
			switch {
			case at.Expired(now, r.buffer):
				if r.stale == StaleOnOutage && (now.Before(at.ExpiresOn) || at.WithinExtendedExpiry(now)) {
					stale = &at
				}
			case at.ShouldRefresh(now):
				valid = &at
			default:
				return r.complete(ctx, at, SourceCache, t, correlationID), nil
			}
		}
	}

	fail := func(e *Error) (AuthResult, error) {
		switch {
		case valid != nil:
			log.Info(ctx, "proactive refresh failed, serving cached token",
				observe.Field{Key: "error_kind", Value: e.Kind.String()})
			return r.complete(ctx, *valid, SourceCache, t, correlationID), nil
		case stale != nil && (e.Kind == KindService || e.Kind == KindThrottled):
			log.Warn(ctx, "token service unavailable, serving stale token",
				observe.Field{Key: "error_kind", Value: e.Kind.String()})
			return r.complete(ctx, *stale, SourceStaleCache, t, correlationID), nil
		}
		return AuthResult{}, e
	}

	if cached := r.interaction.Get(hash); cached != nil {
		log.Debug(ctx, "replaying cached interaction-required outcome")
		e := *asError(cached)
		e.CorrelationID = correlationID
		return fail(&e)
	}

	rt, ok := r.findRefreshToken(ctx, home, t.aliases)
	if !ok {
		e := &Error{
			Kind:          KindInteraction,
			Code:          "no_tokens_found",
			Description:   "no refresh token found in the cache",
			CorrelationID: correlationID,
		}
		r.record(hash, e)
		return fail(e)
	}

	if r.throttle.IsThrottled(hash) {
		return fail(&Error{
			Kind:          KindThrottled,
			RetryAfter:    r.throttle.RetryIn(hash),
			CorrelationID: correlationID,
		})
	}

	params, err := BuildParams(RefreshTokenGrant{RefreshToken: rt.Secret}, ParamsRequest{
		ClientID: r.clientID,
		Scopes:   p.Scopes,
		Claims:   p.Claims,
	})
	if err != nil {
		return AuthResult{}, withCorrelation(err, correlationID)
	}
	resp, err := r.endpoint.Token(ctx, TokenRequest{
		URL:           t.authority.TokenURL(),
		Params:        params,
		CorrelationID: correlationID,
	})
	if err != nil {
		e := asError(err)
		if e.CorrelationID == "" {
			e.CorrelationID = correlationID
		}
		r.onRefreshFailure(ctx, log, hash, rt, e)
		return fail(e)
	}

	rec, err := r.store.AddResponse(ctx, tokencache.AddResponseParams{
		ClientID:        r.clientID,
		Environment:     t.environment,
		Realm:           realm,
		AuthorityType:   a.Type,
		HomeAccountID:   home,
		RequestedScopes: p.Scopes,
		Response:        resp,
	})
	if err != nil {
		return AuthResult{}, &Error{Kind: KindClient, CorrelationID: correlationID, Err: err}
	}
	return resultFromRecord(ctx, r.store, r.clientID, rec, t, correlationID), nil
}

// findRefreshToken prefers the family refresh token when the client is
// known to belong to a family, or when nothing is known about it yet.
func (r *SilentResolver) findRefreshToken(ctx context.Context, home string, aliases []string) (tokencache.RefreshToken, bool) {
	meta, known := r.store.FindAppMetadata(ctx, r.clientID, aliases)
	if !known || meta.FamilyID != "" {
		family := meta.FamilyID
		if family == "" {
			family = DefaultFamilyID
		}
		rt, ok := r.store.FindRefreshToken(ctx, tokencache.RefreshTokenQuery{
			ClientID:      r.clientID,
			FamilyID:      family,
			HomeAccountID: home,
			Aliases:       aliases,
		})
		if ok {
			return rt, true
		}
	}
	return r.store.FindRefreshToken(ctx, tokencache.RefreshTokenQuery{
		ClientID:      r.clientID,
		HomeAccountID: home,
		Aliases:       aliases,
	})
}

func (r *SilentResolver) onRefreshFailure(ctx context.Context, log observe.Logger, hash string, rt tokencache.RefreshToken, e *Error) {
	switch {
	case e.Kind == KindInvalidGrant:
		r.store.RemoveRefreshToken(ctx, rt)
		r.record(hash, e)
		log.Info(ctx, "refresh token rejected, removed from cache",
			observe.Field{Key: "code", Value: e.Code})
	case e.Kind == KindInteraction:
		r.record(hash, e)
	case e.shouldThrottle():
		until, err := r.throttle.Throttle(hash, e.RetryAfter)
		if err == nil {
			log.Warn(ctx, "token service asked to back off",
				observe.Field{Key: "status", Value: e.StatusCode},
				observe.Field{Key: "retry_at", Value: until.UTC().Format(time.RFC3339)})
		}
	}
}

// record caches a copy of e so callers may keep the one they were given.
func (r *SilentResolver) record(hash string, e *Error) {
	c := *e
	_ = r.interaction.Set(hash, &c)
}

// complete builds a result for a cached token, attaching the account and
// ID token recorded for it.
func (r *SilentResolver) complete(ctx context.Context, at tokencache.AccessToken, source Source, t target, correlationID string) AuthResult {
	res := newResult(at, source, correlationID)
	attachAccount(ctx, r.store, &res, r.clientID, at, t.aliases)
	return res
}

func resultFromRecord(ctx context.Context, store *tokencache.Store, clientID string, rec tokencache.CacheRecord, t target, correlationID string) AuthResult {
	res := newResult(rec.AccessToken, SourceIdentityProvider, correlationID)
	if rec.Account != nil {
		res.Account = *rec.Account
	}
	if rec.IDToken != nil {
		res.IDToken = rec.IDToken.Secret
	}
	if rec.Account == nil || rec.IDToken == nil {
		attachAccount(ctx, store, &res, clientID, rec.AccessToken, t.aliases)
	}
	return res
}

func attachAccount(ctx context.Context, store *tokencache.Store, res *AuthResult, clientID string, at tokencache.AccessToken, aliases []string) {
	if at.HomeAccountID == "" {
		return
	}
	if res.Account.HomeAccountID == "" {
		if acct, ok := store.Account(ctx, at.HomeAccountID, aliases); ok {
			res.Account = acct
		}
	}
	if res.IDToken == "" {
		if idt, ok := store.FindIDToken(ctx, tokencache.IDTokenQuery{
			ClientID:      clientID,
			HomeAccountID: at.HomeAccountID,
			Realm:         at.Realm,
			Aliases:       aliases,
		}); ok {
			res.IDToken = idt.Secret
		}
	}
}

func withCorrelation(err error, correlationID string) error {
	var e *Error
	if errors.As(err, &e) && e.CorrelationID == "" {
		e.CorrelationID = correlationID
	}
	return err
}
