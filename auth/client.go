package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/jonwraymond/tokenops/cache"
	"github.com/jonwraymond/tokenops/discovery"
	"github.com/jonwraymond/tokenops/observe"
	"github.com/jonwraymond/tokenops/resilience"
	"github.com/jonwraymond/tokenops/tokencache"
)

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	store      *tokencache.Store
	hook       tokencache.Hook
	endpoint   TokenEndpoint
	fetcher    discovery.Fetcher
	httpClient *http.Client
	logger     observe.Logger
	middleware *observe.Middleware
	clock      func() time.Time
}

// WithStore uses s instead of a new in-memory store.
func WithStore(s *tokencache.Store) Option {
	return func(o *clientOptions) { o.store = s }
}

// WithCacheHook installs a persistence hook on the store the client
// creates. Ignored when WithStore is used.
func WithCacheHook(h tokencache.Hook) Option {
	return func(o *clientOptions) { o.hook = h }
}

// WithTokenEndpoint replaces the HTTP token endpoint.
func WithTokenEndpoint(e TokenEndpoint) Option {
	return func(o *clientOptions) { o.endpoint = e }
}

// WithDiscoveryFetcher replaces the HTTP instance discovery fetcher.
func WithDiscoveryFetcher(f discovery.Fetcher) Option {
	return func(o *clientOptions) { o.fetcher = f }
}

// WithHTTPClient sets the HTTP client for token and discovery requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithLogger sets the logger shared by the client's components.
// Default: observe.NopLogger().
func WithLogger(l observe.Logger) Option {
	return func(o *clientOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMiddleware wraps every acquisition with m.
// Default: a Middleware logging through the client's logger.
func WithMiddleware(m *observe.Middleware) Option {
	return func(o *clientOptions) { o.middleware = m }
}

// WithClock overrides time.Now for every cache the client owns.
func WithClock(now func() time.Time) Option {
	return func(o *clientOptions) {
		if now != nil {
			o.clock = now
		}
	}
}

// Client acquires and caches tokens for one application.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Ownership: the store, discovery resolver, throttling and
//   interaction-required caches belong to this client alone.
// - Errors: acquisition failures are *Error values.
type Client struct {
	config      ClientConfig
	authority   Authority
	store       *tokencache.Store
	discovery   *discovery.Resolver
	endpoint    TokenEndpoint
	throttle    *resilience.ThrottlingCache
	interaction *resilience.InteractionCache
	keyer       cache.Keyer
	silent      *SilentResolver
	middleware  *observe.Middleware
	logger      observe.Logger
	now         func() time.Time
}

// New creates a Client.
func New(config ClientConfig, opts ...Option) (*Client, error) {
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	authority, err := ParseAuthority(config.Authority)
	if err != nil {
		return nil, err
	}

	o := clientOptions{
		logger: observe.NopLogger(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	store := o.store
	if store == nil {
		storeOpts := []tokencache.Option{
			tokencache.WithLogger(o.logger),
			tokencache.WithClock(o.clock),
		}
		if o.hook != nil {
			storeOpts = append(storeOpts, tokencache.WithHook(o.hook))
		}
		store = tokencache.NewStore(storeOpts...)
	}

	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = discovery.NewHTTPFetcher(discovery.HTTPFetcherConfig{
			Endpoint:   config.DiscoveryEndpoint,
			HTTPClient: httpClient,
			Clock:      o.clock,
		})
	}
	resolver := discovery.NewResolver(fetcher, discovery.Config{
		ValidateAuthority: config.ValidateAuthority,
		Clock:             o.clock,
		Logger:            o.logger,
	})

	endpoint := o.endpoint
	if endpoint == nil {
		endpoint = NewHTTPTokenEndpoint(HTTPTokenEndpointConfig{
			ClientSecret: config.ClientSecret,
			HTTPClient:   httpClient,
			Retry: resilience.RetryConfig{
				MaxAttempts: config.MaxAttempts,
				Jitter:      true,
			},
			Clock: o.clock,
		})
	}

	c := &Client{
		config:      config,
		authority:   authority,
		store:       store,
		discovery:   resolver,
		endpoint:    endpoint,
		throttle:    resilience.NewThrottlingCache(resilience.ThrottlingConfig{Clock: o.clock}),
		interaction: resilience.NewInteractionCache(resilience.InteractionConfig{Clock: o.clock}),
		keyer:       cache.NewDefaultKeyer(),
		middleware:  o.middleware,
		logger:      o.logger,
		now:         o.clock,
	}
	if c.middleware == nil {
		c.middleware = observe.NewMiddleware(nil, nil, o.logger)
	}

	c.silent, err = NewSilentResolver(SilentConfig{
		ClientID:     config.ClientID,
		Authority:    authority,
		Store:        store,
		Discovery:    resolver,
		Endpoint:     endpoint,
		Throttle:     c.throttle,
		Interaction:  c.interaction,
		Keyer:        c.keyer,
		StalePolicy:  config.StalePolicy(),
		ExpiryBuffer: config.ExpiryBuffer,
		Logger:       o.logger,
		Clock:        o.clock,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Store returns the client's token cache.
func (c *Client) Store() *tokencache.Store {
	return c.store
}

// AcquireTokenSilent returns a cached or refreshed token for p.Account.
func (c *Client) AcquireTokenSilent(ctx context.Context, p SilentParams) (AuthResult, error) {
	meta := observe.RequestMeta{
		ClientID:  c.config.ClientID,
		Authority: c.authorityURL(p.Authority),
		Flow:      "silent",
		Scopes:    p.Scopes,
	}
	return c.observed(ctx, meta, func(ctx context.Context) (AuthResult, error) {
		return c.silent.Acquire(ctx, p)
	})
}

// GrantParams describes one non-silent acquisition.
type GrantParams struct {
	Grant  Grant
	Scopes []string
	// Authority overrides the client's authority for this call.
	Authority string
	Claims    string
	// ForceRefresh skips the cache lookup client credentials grants make.
	ForceRefresh bool
}

// AcquireTokenByGrant redeems p.Grant at the token endpoint and caches the
// result. Client credentials grants first look for a cached app token.
//
// A successful user grant forgets every recorded interaction-required
// outcome, since the user has just interacted.
func (c *Client) AcquireTokenByGrant(ctx context.Context, p GrantParams) (AuthResult, error) {
	flow := "unknown"
	if p.Grant != nil {
		flow = p.Grant.Flow()
	}
	meta := observe.RequestMeta{
		ClientID:  c.config.ClientID,
		Authority: c.authorityURL(p.Authority),
		Flow:      flow,
		Scopes:    p.Scopes,
	}
	return c.observed(ctx, meta, func(ctx context.Context) (AuthResult, error) {
		return c.acquireByGrant(ctx, p)
	})
}

func (c *Client) acquireByGrant(ctx context.Context, p GrantParams) (AuthResult, error) {
	if p.Grant == nil {
		return AuthResult{}, clientError("%w: grant is required", ErrInvalidArgument)
	}
	if tokencache.JoinScopes(p.Scopes) == "" {
		return AuthResult{}, clientError("%w: at least one scope is required", ErrInvalidArgument)
	}
	a := c.authority
	if p.Authority != "" {
		var err error
		if a, err = ParseAuthority(p.Authority); err != nil {
			return AuthResult{}, err
		}
	}

	ctx, correlationID := ensureCorrelationID(ctx)
	t, err := resolveTarget(ctx, c.discovery, a)
	if err != nil {
		return AuthResult{}, withCorrelation(err, correlationID)
	}

	_, appOnly := p.Grant.(ClientCredentialsGrant)
	if appOnly && !p.ForceRefresh && p.Claims == "" {
		at, ok := c.store.FindAccessToken(ctx, tokencache.AccessTokenQuery{
			ClientID: c.config.ClientID,
			Realm:    a.Tenant,
			Scopes:   p.Scopes,
			Aliases:  t.aliases,
		})
		if now := c.now(); ok && !at.Expired(now, c.config.ExpiryBuffer) && !at.ShouldRefresh(now) {
			return newResult(at, SourceCache, correlationID), nil
		}
	}

	hash, err := cache.RequestHash(c.keyer, c.config.ClientID, a.URL(), "", tokencache.NormalizeScopes(p.Scopes))
	if err != nil {
		return AuthResult{}, &Error{Kind: KindClient, CorrelationID: correlationID, Err: err}
	}
	if c.throttle.IsThrottled(hash) {
		return AuthResult{}, &Error{
			Kind:          KindThrottled,
			RetryAfter:    c.throttle.RetryIn(hash),
			CorrelationID: correlationID,
		}
	}

	params, err := BuildParams(p.Grant, ParamsRequest{
		ClientID: c.config.ClientID,
		Scopes:   p.Scopes,
		Claims:   p.Claims,
	})
	if err != nil {
		return AuthResult{}, withCorrelation(err, correlationID)
	}
	resp, err := c.endpoint.Token(ctx, TokenRequest{
		URL:           t.authority.TokenURL(),
		Params:        params,
		CorrelationID: correlationID,
	})
	if err != nil {
		e := asError(err)
		if e.CorrelationID == "" {
			e.CorrelationID = correlationID
		}
		if e.shouldThrottle() {
			_, _ = c.throttle.Throttle(hash, e.RetryAfter)
		}
		return AuthResult{}, e
	}

	rec, err := c.store.AddResponse(ctx, tokencache.AddResponseParams{
		ClientID:        c.config.ClientID,
		Environment:     t.environment,
		Realm:           a.Tenant,
		AuthorityType:   a.Type,
		RequestedScopes: p.Scopes,
		Response:        resp,
	})
	if err != nil {
		return AuthResult{}, &Error{Kind: KindClient, CorrelationID: correlationID, Err: err}
	}
	if !appOnly {
		c.interaction.Clear()
	}
	return resultFromRecord(ctx, c.store, c.config.ClientID, rec, t, correlationID), nil
}

// Accounts returns every cached account.
func (c *Client) Accounts(ctx context.Context) []tokencache.Account {
	return c.store.Accounts(ctx)
}

// Account returns the cached account with homeAccountID under any alias of
// the client's authority.
func (c *Client) Account(ctx context.Context, homeAccountID string) (tokencache.Account, error) {
	t, err := resolveTarget(ctx, c.discovery, c.authority)
	if err != nil {
		return tokencache.Account{}, err
	}
	a, ok := c.store.Account(ctx, homeAccountID, t.aliases)
	if !ok {
		return tokencache.Account{}, &Error{Kind: KindClient, Err: ErrNoAccount}
	}
	return a, nil
}

// RemoveAccount removes account and every token issued to it under any
// alias of its environment. Removing an unknown account is not an error.
func (c *Client) RemoveAccount(ctx context.Context, account tokencache.Account) error {
	if account.HomeAccountID == "" {
		return &Error{Kind: KindClient, Err: ErrNoAccount}
	}
	a := c.authority
	if account.Environment != "" {
		a = a.withHost(account.Environment)
	}
	t, err := resolveTarget(ctx, c.discovery, a)
	if err != nil {
		return err
	}
	n := c.store.RemoveAccount(ctx, c.config.ClientID, account.HomeAccountID, t.aliases)
	c.logger.Debug(ctx, "account removed",
		observe.Field{Key: "home_account_id", Value: account.HomeAccountID},
		observe.Field{Key: "entries", Value: n})
	return nil
}

func (c *Client) authorityURL(override string) string {
	if override != "" {
		return override
	}
	return c.authority.URL()
}

// observed runs fn under the client's middleware.
func (c *Client) observed(ctx context.Context, meta observe.RequestMeta, fn func(context.Context) (AuthResult, error)) (AuthResult, error) {
	var res AuthResult
	acquire := c.middleware.Wrap(func(ctx context.Context, _ observe.RequestMeta) (observe.Outcome, error) {
		var err error
		res, err = fn(ctx)
		if err != nil {
			kind, _ := KindOf(err)
			return observe.Outcome{ErrorKind: kind.String()}, err
		}
		return observe.Outcome{FromCache: res.Source.FromCache()}, nil
	})
	_, err := acquire(ctx, meta)
	return res, err
}
