package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/tokenops/observe"
	"github.com/jonwraymond/tokenops/secret"
)

// ClientConfig configures a Client.
//
// Loaded from YAML by LoadConfig:
//
//	client_id: 4a1aa1d5-c567-49d0-ad0b-cd957a47f842
//	client_secret: secretref:env:APP_CLIENT_SECRET
//	authority: https://login.microsoftonline.com/contoso.onmicrosoft.com
//	expiry_buffer: 5m
//	stale_on_outage: true
type ClientConfig struct {
	ClientID string `yaml:"client_id"`

	// ClientSecret makes the client confidential. It may be a secretref:
	// reference, resolved at load time.
	ClientSecret string `yaml:"client_secret"`

	// Authority is the default authority URL.
	// Default: DefaultAuthority
	Authority string `yaml:"authority"`

	// ValidateAuthority makes instance discovery failures fatal instead of
	// treating the host as its own alias.
	ValidateAuthority bool `yaml:"validate_authority"`

	// DiscoveryEndpoint is the instance discovery URL.
	// Default: discovery.DefaultEndpoint
	DiscoveryEndpoint string `yaml:"discovery_endpoint"`

	// ExpiryBuffer is how close to expiry a cached token counts as expired.
	// Default: 5 minutes
	ExpiryBuffer time.Duration `yaml:"expiry_buffer"`

	// StaleOnOutage serves tokens inside their extended-expiry window when
	// the provider is unavailable.
	StaleOnOutage bool `yaml:"stale_on_outage"`

	// Timeout bounds each HTTP request.
	// Default: 30 seconds
	Timeout time.Duration `yaml:"timeout"`

	// MaxAttempts bounds transport-level attempts per token request.
	// Default: 2
	MaxAttempts int `yaml:"max_attempts"`

	// Telemetry, when set, is used by callers to build an observe.Observer.
	Telemetry *observe.Config `yaml:"telemetry,omitempty"`
}

func (c *ClientConfig) applyDefaults() {
	if c.Authority == "" {
		c.Authority = DefaultAuthority
	}
	if c.ExpiryBuffer <= 0 {
		c.ExpiryBuffer = DefaultExpiryBuffer
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 2
	}
}

// Validate checks the configuration after defaults are applied.
func (c ClientConfig) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("%w: client_id is required", ErrInvalidArgument)
	}
	if _, err := ParseAuthority(c.Authority); err != nil {
		return err
	}
	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}
	return nil
}

// StalePolicy returns the policy selected by StaleOnOutage.
func (c ClientConfig) StalePolicy() StalePolicy {
	if c.StaleOnOutage {
		return StaleOnOutage
	}
	return StaleNever
}

// LoadConfig reads a YAML client configuration from path.
func LoadConfig(ctx context.Context, path string, resolver *secret.Resolver) (ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(ctx, data, resolver)
}

// ParseConfig decodes a YAML client configuration. ${VAR} references are
// expanded strictly before decoding, unknown fields are rejected, and the
// client secret is resolved through resolver.
func ParseConfig(ctx context.Context, data []byte, resolver *secret.Resolver) (ClientConfig, error) {
	expanded, err := secret.ExpandEnvStrict(string(data))
	if err != nil {
		return ClientConfig{}, fmt.Errorf("expand config: %w", err)
	}

	var cfg ClientConfig
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return ClientConfig{}, fmt.Errorf("%w: config is empty", ErrInvalidArgument)
		}
		return ClientConfig{}, fmt.Errorf("decode config: %w", err)
	}

	if cfg.ClientSecret != "" {
		cfg.ClientSecret, err = resolver.ResolveValue(ctx, cfg.ClientSecret)
		if err != nil {
			return ClientConfig{}, fmt.Errorf("resolve client_secret: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}
