package auth

import (
	"net"
	"net/url"
	"strings"

	"github.com/jonwraymond/tokenops/tokencache"
)

// DefaultAuthority is used when ClientConfig.Authority is empty.
const DefaultAuthority = "https://login.microsoftonline.com/common"

var multiTenantAliases = map[string]bool{
	"common":        true,
	"organizations": true,
	"consumers":     true,
}

// Authority identifies the identity provider endpoint tokens are issued by.
type Authority struct {
	Scheme string
	Host   string // lowercase, without port
	Port   string
	Tenant string
	// Policy is the B2C user flow, empty for other authority types.
	Policy string
	// Type is one of tokencache.AuthorityTypeAAD, AuthorityTypeADFS or
	// AuthorityTypeB2C.
	Type string
}

// ParseAuthority parses an authority URL such as
// https://login.microsoftonline.com/contoso.onmicrosoft.com.
//
// Plain http is accepted only for loopback hosts. A missing tenant means
// "common".
func ParseAuthority(raw string) (Authority, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Authority{}, clientError("%w: authority %q: %v", ErrInvalidArgument, raw, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return Authority{}, clientError("%w: authority %q has no host", ErrInvalidArgument, raw)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !isLoopback(host) {
			return Authority{}, clientError("%w: authority %q must use https", ErrInvalidArgument, raw)
		}
	default:
		return Authority{}, clientError("%w: authority %q must use https", ErrInvalidArgument, raw)
	}

	a := Authority{
		Scheme: u.Scheme,
		Host:   host,
		Port:   u.Port(),
		Type:   tokencache.AuthorityTypeAAD,
	}

	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	switch {
	case len(segments) > 0 && strings.EqualFold(segments[0], "adfs"):
		a.Type = tokencache.AuthorityTypeADFS
		a.Tenant = "adfs"
	case strings.HasSuffix(host, ".b2clogin.com") || (len(segments) > 0 && strings.EqualFold(segments[0], "tfp")):
		if len(segments) > 0 && strings.EqualFold(segments[0], "tfp") {
			segments = segments[1:]
		}
		if len(segments) < 2 {
			return Authority{}, clientError("%w: b2c authority %q needs a tenant and a policy", ErrInvalidArgument, raw)
		}
		a.Type = tokencache.AuthorityTypeB2C
		a.Tenant = segments[0]
		a.Policy = segments[1]
	case len(segments) > 0:
		a.Tenant = segments[0]
	default:
		a.Tenant = "common"
	}
	return a, nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (a Authority) hostPort() string {
	if a.Port == "" {
		return a.Host
	}
	return net.JoinHostPort(a.Host, a.Port)
}

// URL returns the canonical authority URL.
func (a Authority) URL() string {
	base := a.Scheme + "://" + a.hostPort()
	switch a.Type {
	case tokencache.AuthorityTypeADFS:
		return base + "/adfs"
	case tokencache.AuthorityTypeB2C:
		return base + "/" + a.Tenant + "/" + a.Policy
	default:
		return base + "/" + a.Tenant
	}
}

// TokenURL returns the authority's token endpoint.
func (a Authority) TokenURL() string {
	if a.Type == tokencache.AuthorityTypeADFS {
		return a.URL() + "/oauth2/token"
	}
	return a.URL() + "/oauth2/v2.0/token"
}

// MultiTenant reports whether the tenant is common, organizations or
// consumers.
func (a Authority) MultiTenant() bool {
	return multiTenantAliases[strings.ToLower(a.Tenant)]
}

// usesDiscovery reports whether the host's aliases come from instance
// discovery. ADFS and B2C hosts are their own only alias.
func (a Authority) usesDiscovery() bool {
	return a.Type == tokencache.AuthorityTypeAAD
}

func (a Authority) withHost(host string) Authority {
	if host == "" {
		return a
	}
	a.Host = strings.ToLower(host)
	return a
}
