package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Fetcher retrieves instance metadata for a host.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation and deadlines.
// - Errors: a provider error payload is returned as an error, never as an
//   empty list with a nil error.
type Fetcher interface {
	Fetch(ctx context.Context, host string) ([]Metadata, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, host string) ([]Metadata, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, host string) ([]Metadata, error) {
	return f(ctx, host)
}

// DefaultEndpoint is the well-known instance discovery endpoint.
const DefaultEndpoint = "https://login.microsoftonline.com/common/discovery/instance"

// HTTPFetcherConfig configures an HTTPFetcher.
type HTTPFetcherConfig struct {
	// Endpoint is the discovery URL.
	// Default: DefaultEndpoint
	Endpoint string

	// APIVersion is sent as the api-version query parameter.
	// Default: "1.1"
	APIVersion string

	// HTTPClient is the HTTP client to use for requests.
	// If nil, a default client with 30s timeout is used.
	HTTPClient *http.Client

	// Clock converts a Cache-Control max-age into ExpiresOn.
	// Default: time.Now
	Clock func() time.Time
}

// HTTPFetcher queries an instance discovery endpoint over HTTP.
type HTTPFetcher struct {
	config HTTPFetcherConfig
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(config HTTPFetcherConfig) *HTTPFetcher {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.APIVersion == "" {
		config.APIVersion = "1.1"
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &HTTPFetcher{config: config}
}

type instanceResponse struct {
	TenantDiscoveryEndpoint string     `json:"tenant_discovery_endpoint"`
	Metadata                []Metadata `json:"metadata"`
	Error                   string     `json:"error"`
	ErrorDescription        string     `json:"error_description"`
}

// Fetch sends the host as the authorization_endpoint hint and returns the
// metadata list. A Cache-Control max-age on the response sets ExpiresOn.
func (f *HTTPFetcher) Fetch(ctx context.Context, host string) ([]Metadata, error) {
	u, err := url.Parse(f.config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("api-version", f.config.APIVersion)
	q.Set("authorization_endpoint", "https://"+host+"/common/oauth2/v2.0/authorize")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch instance metadata: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read instance metadata: %w", err)
	}

	var payload instanceResponse
	decodeErr := json.Unmarshal(body, &payload)

	if resp.StatusCode != http.StatusOK || payload.Error != "" {
		return nil, &ResponseError{
			StatusCode:  resp.StatusCode,
			Code:        payload.Error,
			Description: payload.ErrorDescription,
		}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode instance metadata: %w", decodeErr)
	}

	if maxAge, ok := cacheMaxAge(resp.Header.Get("Cache-Control")); ok {
		expires := f.config.Clock().Add(maxAge)
		for i := range payload.Metadata {
			payload.Metadata[i].ExpiresOn = expires
		}
	}
	return payload.Metadata, nil
}

// cacheMaxAge extracts max-age from a Cache-Control header value.
func cacheMaxAge(header string) (time.Duration, bool) {
	for _, directive := range strings.Split(header, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		secs, err := strconv.Atoi(strings.Trim(value, `"`))
		if err != nil || secs <= 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

var _ Fetcher = (*HTTPFetcher)(nil)
