package auth

import (
	"encoding/base64"
	"net/url"

	"github.com/jonwraymond/tokenops/tokencache"
)

// Wire grant types.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeJWTBearer         = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	GrantTypeDeviceCode        = "urn:ietf:params:oauth:grant-type:device_code"
	GrantTypePassword          = "password"
	GrantTypeSAML11Bearer      = "urn:ietf:params:oauth:grant-type:saml1_1-bearer"
	GrantTypeSAML20Bearer      = "urn:ietf:params:oauth:grant-type:saml2-bearer"
)

// SAML assertion types returned by WS-Trust endpoints.
const (
	SAML11AssertionType = "urn:oasis:names:tc:SAML:1.0:assertion"
	SAML20AssertionType = "urn:oasis:names:tc:SAML:2.0:assertion"
)

// Grant is one of the supported OAuth2 grants. The set is closed: only the
// variants in this package implement it.
type Grant interface {
	// Flow is the telemetry name of the grant.
	Flow() string
	isGrant()
}

// AuthorizationCodeGrant redeems an authorization code.
type AuthorizationCodeGrant struct {
	Code         string
	RedirectURI  string
	CodeVerifier string // PKCE
}

// ClientCredentialsGrant acquires an app-only token.
type ClientCredentialsGrant struct{}

// RefreshTokenGrant redeems a refresh token.
type RefreshTokenGrant struct {
	RefreshToken string
}

// OnBehalfOfGrant exchanges an incoming user assertion for a downstream token.
type OnBehalfOfGrant struct {
	Assertion string
}

// DeviceCodeGrant polls for the result of a device code flow.
type DeviceCodeGrant struct {
	DeviceCode string
}

// PasswordGrant is the resource owner password credentials grant.
type PasswordGrant struct {
	Username string
	Password string
}

// IntegratedAuthGrant redeems a SAML assertion obtained through WS-Trust.
type IntegratedAuthGrant struct {
	Assertion     string
	AssertionType string // SAML11AssertionType or SAML20AssertionType
}

func (AuthorizationCodeGrant) Flow() string { return "authorization_code" }
func (ClientCredentialsGrant) Flow() string { return "client_credentials" }
func (RefreshTokenGrant) Flow() string      { return "refresh_token" }
func (OnBehalfOfGrant) Flow() string        { return "on_behalf_of" }
func (DeviceCodeGrant) Flow() string        { return "device_code" }
func (PasswordGrant) Flow() string          { return "password" }
func (IntegratedAuthGrant) Flow() string    { return "integrated_auth" }

func (AuthorizationCodeGrant) isGrant() {}
func (ClientCredentialsGrant) isGrant() {}
func (RefreshTokenGrant) isGrant()      {}
func (OnBehalfOfGrant) isGrant()        {}
func (DeviceCodeGrant) isGrant()        {}
func (PasswordGrant) isGrant()          {}
func (IntegratedAuthGrant) isGrant()    {}

// ParamsRequest carries the inputs BuildParams needs besides the grant.
type ParamsRequest struct {
	ClientID string
	Scopes   []string
	// Claims is a claims challenge (JSON) forwarded verbatim.
	Claims string
}

// BuildParams returns the token request form for g.
//
// User grants request the reserved OIDC scopes as well, so that the
// response carries an ID token, a refresh token and client_info.
func BuildParams(g Grant, req ParamsRequest) (url.Values, error) {
	if req.ClientID == "" {
		return nil, clientError("%w: client id is required", ErrInvalidArgument)
	}

	v := url.Values{}
	v.Set("client_id", req.ClientID)
	user := true

	switch g := g.(type) {
	case AuthorizationCodeGrant:
		if g.Code == "" {
			return nil, clientError("%w: authorization code is required", ErrInvalidArgument)
		}
		v.Set("grant_type", GrantTypeAuthorizationCode)
		v.Set("code", g.Code)
		if g.RedirectURI != "" {
			v.Set("redirect_uri", g.RedirectURI)
		}
		if g.CodeVerifier != "" {
			v.Set("code_verifier", g.CodeVerifier)
		}
	case ClientCredentialsGrant:
		v.Set("grant_type", GrantTypeClientCredentials)
		user = false
	case RefreshTokenGrant:
		if g.RefreshToken == "" {
			return nil, clientError("%w: refresh token is required", ErrInvalidArgument)
		}
		v.Set("grant_type", GrantTypeRefreshToken)
		v.Set("refresh_token", g.RefreshToken)
	case OnBehalfOfGrant:
		if g.Assertion == "" {
			return nil, clientError("%w: user assertion is required", ErrInvalidArgument)
		}
		v.Set("grant_type", GrantTypeJWTBearer)
		v.Set("assertion", g.Assertion)
		v.Set("requested_token_use", "on_behalf_of")
	case DeviceCodeGrant:
		if g.DeviceCode == "" {
			return nil, clientError("%w: device code is required", ErrInvalidArgument)
		}
		v.Set("grant_type", GrantTypeDeviceCode)
		v.Set("device_code", g.DeviceCode)
	case PasswordGrant:
		if g.Username == "" {
			return nil, clientError("%w: username is required", ErrInvalidArgument)
		}
		v.Set("grant_type", GrantTypePassword)
		v.Set("username", g.Username)
		v.Set("password", g.Password)
	case IntegratedAuthGrant:
		if g.Assertion == "" {
			return nil, clientError("%w: saml assertion is required", ErrInvalidArgument)
		}
		switch g.AssertionType {
		case SAML11AssertionType:
			v.Set("grant_type", GrantTypeSAML11Bearer)
		case SAML20AssertionType, "":
			v.Set("grant_type", GrantTypeSAML20Bearer)
		default:
			return nil, clientError("%w: unknown saml assertion type %q", ErrInvalidArgument, g.AssertionType)
		}
		v.Set("assertion", base64.StdEncoding.EncodeToString([]byte(g.Assertion)))
	case nil:
		return nil, clientError("%w: grant is required", ErrInvalidArgument)
	default:
		return nil, clientError("%w: unsupported grant %T", ErrInvalidArgument, g)
	}

	scopes := append([]string(nil), req.Scopes...)
	if user {
		scopes = append(scopes, reservedScopes...)
		v.Set("client_info", "1")
	}
	if target := tokencache.JoinScopes(scopes); target != "" {
		v.Set("scope", target)
	}
	if req.Claims != "" {
		v.Set("claims", req.Claims)
	}
	return v, nil
}

var reservedScopes = []string{"openid", "profile", "offline_access"}
