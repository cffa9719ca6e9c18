package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/tokenops/discovery"
	"github.com/jonwraymond/tokenops/tokencache"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	testClientID  = "client-1"
	testHost      = "login.example.com"
	testAliasHost = "login.alias.example.com"
	testTenant    = "tenant-1"
	testAuthority = "https://login.example.com/tenant-1"
	testHome      = "uid-1.tenant-1"
)

var userScopes = []string{"User.Read", "Mail.Read", "Files.Read"}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: epoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeEndpoint records requests and answers them with handler, which gets
// the 1-based call number.
type fakeEndpoint struct {
	mu       sync.Mutex
	requests []TokenRequest
	handler  func(n int, req TokenRequest) (*tokencache.TokenResponse, error)
}

func (e *fakeEndpoint) Token(_ context.Context, req TokenRequest) (*tokencache.TokenResponse, error) {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	n := len(e.requests)
	handler := e.handler
	e.mu.Unlock()
	return handler(n, req)
}

func (e *fakeEndpoint) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

func (e *fakeEndpoint) last() TokenRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requests[len(e.requests)-1]
}

func signIDToken(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign id token: %v", err)
	}
	return raw
}

func encodeClientInfo(t testing.TB, uid, utid string) string {
	t.Helper()
	b, err := json.Marshal(map[string]string{"uid": uid, "utid": utid})
	if err != nil {
		t.Fatalf("marshal client info: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// userResponse is the n-th token response for the test user.
func userResponse(t testing.TB, n int) *tokencache.TokenResponse {
	t.Helper()
	return &tokencache.TokenResponse{
		AccessToken:  fmt.Sprintf("at-%d", n),
		TokenType:    "Bearer",
		RefreshToken: fmt.Sprintf("rt-%d", n),
		IDToken: signIDToken(t, jwt.MapClaims{
			"oid":                "uid-1",
			"tid":                testTenant,
			"sub":                "sub-1",
			"name":               "Ada Lovelace",
			"preferred_username": "ada@example.com",
		}),
		ClientInfo:   encodeClientInfo(t, "uid-1", testTenant),
		Scope:        "openid profile offline_access User.Read Mail.Read Files.Read",
		ExpiresIn:    3600,
		ExtExpiresIn: 7200,
	}
}

func staticFetcher(aliases ...string) discovery.FetcherFunc {
	return func(context.Context, string) ([]discovery.Metadata, error) {
		return []discovery.Metadata{{
			PreferredNetwork: aliases[0],
			PreferredCache:   aliases[0],
			Aliases:          aliases,
		}}, nil
	}
}

type harness struct {
	client   *Client
	endpoint *fakeEndpoint
	clock    *fakeClock
}

// newHarness builds a client against a fake endpoint that, by default,
// answers every call with userResponse.
func newHarness(t testing.TB, mutate func(*ClientConfig), opts ...Option) *harness {
	t.Helper()
	clock := newFakeClock()
	endpoint := &fakeEndpoint{}
	endpoint.handler = func(n int, _ TokenRequest) (*tokencache.TokenResponse, error) {
		return userResponse(t, n), nil
	}

	config := ClientConfig{ClientID: testClientID, Authority: testAuthority}
	if mutate != nil {
		mutate(&config)
	}
	base := []Option{
		WithTokenEndpoint(endpoint),
		WithDiscoveryFetcher(staticFetcher(testHost, testAliasHost)),
		WithClock(clock.Now),
	}
	client, err := New(config, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &harness{client: client, endpoint: endpoint, clock: clock}
}

// signIn redeems an authorization code and returns the signed-in account.
func (h *harness) signIn(t testing.TB) tokencache.Account {
	t.Helper()
	res, err := h.client.AcquireTokenByGrant(context.Background(), GrantParams{
		Grant:  AuthorizationCodeGrant{Code: "code", RedirectURI: "http://localhost"},
		Scopes: userScopes,
	})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if res.Account.HomeAccountID != testHome {
		t.Fatalf("signed-in account = %q, want %q", res.Account.HomeAccountID, testHome)
	}
	return res.Account
}

func (h *harness) silent(t *testing.T, p SilentParams) (AuthResult, error) {
	t.Helper()
	return h.client.AcquireTokenSilent(context.Background(), p)
}

// failWith makes every later call fail with a provider error response.
func (h *harness) failWith(status int, code string, retryAfter time.Duration) {
	h.endpoint.mu.Lock()
	defer h.endpoint.mu.Unlock()
	h.endpoint.handler = func(int, TokenRequest) (*tokencache.TokenResponse, error) {
		return nil, classifyResponse(status, code, "", retryAfter)
	}
}
