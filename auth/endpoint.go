package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonwraymond/tokenops/resilience"
	"github.com/jonwraymond/tokenops/tokencache"
)

// TokenRequest is one call to a token endpoint.
type TokenRequest struct {
	// URL is the token endpoint, see Authority.TokenURL.
	URL string
	// Params is the form built by BuildParams.
	Params        url.Values
	CorrelationID string
}

// TokenEndpoint redeems grants for tokens.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: provider error responses are returned as *Error classified by
//   code and status. Other errors are treated as service failures.
type TokenEndpoint interface {
	Token(ctx context.Context, req TokenRequest) (*tokencache.TokenResponse, error)
}

// TokenEndpointFunc adapts a function to TokenEndpoint.
type TokenEndpointFunc func(ctx context.Context, req TokenRequest) (*tokencache.TokenResponse, error)

// Token calls f.
func (f TokenEndpointFunc) Token(ctx context.Context, req TokenRequest) (*tokencache.TokenResponse, error) {
	return f(ctx, req)
}

const maxTokenResponseBytes = 1 << 20

// HTTPTokenEndpointConfig configures an HTTPTokenEndpoint.
type HTTPTokenEndpointConfig struct {
	// ClientSecret authenticates a confidential client. Empty for public
	// clients.
	ClientSecret string

	// HTTPClient sends the requests.
	// Default: a client with a 30 second timeout
	HTTPClient *http.Client

	// Retry governs retries of transport failures. Provider error
	// responses are never retried.
	// Default: 2 attempts, 100ms initial delay
	Retry resilience.RetryConfig

	// Clock is used to interpret HTTP-date Retry-After values.
	Clock func() time.Time
}

// HTTPTokenEndpoint posts form-encoded grants and decodes JSON responses.
type HTTPTokenEndpoint struct {
	secret string
	client *http.Client
	retry  *resilience.Retry
	now    func() time.Time
}

// NewHTTPTokenEndpoint creates an HTTPTokenEndpoint.
func NewHTTPTokenEndpoint(config HTTPTokenEndpointConfig) *HTTPTokenEndpoint {
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	retry := config.Retry
	if retry.RetryIf == nil {
		retry.RetryIf = isTransportFailure
	}
	return &HTTPTokenEndpoint{
		secret: config.ClientSecret,
		client: config.HTTPClient,
		retry:  resilience.NewRetry(retry),
		now:    config.Clock,
	}
}

// isTransportFailure reports whether err happened before any response
// arrived.
func isTransportFailure(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindService && e.StatusCode == 0
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCodes       []int  `json:"error_codes"`
	SubError         string `json:"suberror"`
	CorrelationID    string `json:"correlation_id"`
}

// Token posts req to the token endpoint.
func (e *HTTPTokenEndpoint) Token(ctx context.Context, req TokenRequest) (*tokencache.TokenResponse, error) {
	if req.URL == "" {
		return nil, clientError("%w: token endpoint url is required", ErrInvalidArgument)
	}
	form := url.Values{}
	for k, v := range req.Params {
		form[k] = append([]string(nil), v...)
	}
	if e.secret != "" && form.Get("client_secret") == "" {
		form.Set("client_secret", e.secret)
	}
	body := form.Encode()

	var resp *tokencache.TokenResponse
	err := e.retry.Execute(ctx, func(ctx context.Context) error {
		r, err := e.post(ctx, req, body)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		var te *Error
		if errors.As(err, &te) {
			return nil, te
		}
		return nil, &Error{Kind: KindService, CorrelationID: req.CorrelationID, Err: err}
	}
	return resp, nil
}

func (e *HTTPTokenEndpoint) post(ctx context.Context, req TokenRequest, body string) (*tokencache.TokenResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, strings.NewReader(body))
	if err != nil {
		return nil, clientError("create token request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	if req.CorrelationID != "" {
		httpReq.Header.Set("client-request-id", req.CorrelationID)
		httpReq.Header.Set("return-client-request-id", "true")
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, &Error{
			Kind:          KindService,
			CorrelationID: req.CorrelationID,
			Err:           fmt.Errorf("token request: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return nil, &Error{
			Kind:          KindService,
			StatusCode:    resp.StatusCode,
			CorrelationID: req.CorrelationID,
			Err:           fmt.Errorf("read token response: %w", err),
		}
	}

	var payload errorResponse
	_ = json.Unmarshal(data, &payload)
	if resp.StatusCode != http.StatusOK || payload.Error != "" {
		te := classifyResponse(resp.StatusCode, payload.Error, payload.ErrorDescription,
			parseRetryAfter(resp.Header.Get("Retry-After"), e.now()))
		te.CorrelationID = req.CorrelationID
		return nil, te
	}

	var tr tokencache.TokenResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, &Error{
			Kind:          KindClient,
			StatusCode:    resp.StatusCode,
			CorrelationID: req.CorrelationID,
			Err:           fmt.Errorf("decode token response: %w", err),
		}
	}
	if tr.AccessToken == "" {
		return nil, &Error{
			Kind:          KindClient,
			StatusCode:    resp.StatusCode,
			CorrelationID: req.CorrelationID,
			Err:           errors.New("token response has no access_token"),
		}
	}
	return &tr, nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

var _ TokenEndpoint = (*HTTPTokenEndpoint)(nil)
