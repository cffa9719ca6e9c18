package tokencache

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IDToken is a cached, still encoded ID token.
type IDToken struct {
	Credential
	CredentialType CredentialType
	Realm          string

	memo *idTokenMemo
}

type idTokenMemo struct {
	once   sync.Once
	claims IDTokenClaims
	err    error
}

// NewIDToken builds an ID token entity whose claims are decoded at most once.
func NewIDToken(cred Credential, realm string) IDToken {
	return IDToken{
		Credential:     cred,
		CredentialType: CredentialTypeIDToken,
		Realm:          realm,
		memo:           &idTokenMemo{},
	}
}

// Key returns the ID token's cache key.
func (t IDToken) Key() string {
	return IDTokenKey(t.HomeAccountID, t.Environment, t.ClientID, t.Realm)
}

// Validate checks the key fields.
func (t IDToken) Validate() error {
	return t.Credential.validate(CredentialTypeIDToken)
}

// Claims decodes the raw token. Entities built with NewIDToken (and every
// entity returned by a Store) decode once and reuse the result.
func (t IDToken) Claims() (IDTokenClaims, error) {
	if t.memo == nil {
		return ParseIDToken(t.Secret)
	}
	t.memo.once.Do(func() {
		t.memo.claims, t.memo.err = ParseIDToken(t.Secret)
	})
	return t.memo.claims.clone(), t.memo.err
}

// IDTokenClaims is the decoded form of an ID token.
type IDTokenClaims struct {
	Issuer            string
	Subject           string
	Audience          []string
	ExpiresAt         time.Time
	IssuedAt          time.Time
	Name              string
	PreferredUsername string
	ObjectID          string
	TenantID          string

	// Raw holds every claim, including the ones above.
	Raw map[string]any
}

// clone copies c so that no slice or map is shared with the original.
func (c IDTokenClaims) clone() IDTokenClaims {
	c.Audience = slices.Clone(c.Audience)
	c.Raw = cloneClaims(c.Raw)
	return c
}

// LocalAccountID is the object ID, falling back to the subject.
func (c IDTokenClaims) LocalAccountID() string {
	if c.ObjectID != "" {
		return c.ObjectID
	}
	return c.Subject
}

// Username is preferred_username, falling back to upn then email.
func (c IDTokenClaims) Username() string {
	if c.PreferredUsername != "" {
		return c.PreferredUsername
	}
	for _, k := range []string{"upn", "email"} {
		if v, ok := c.Raw[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// ParseIDToken decodes raw without verifying its signature. ID tokens in the
// cache were received directly from the token endpoint over TLS.
func ParseIDToken(raw string) (IDTokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return IDTokenClaims{}, fmt.Errorf("%w: %w", ErrMalformedIDToken, err)
	}

	out := IDTokenClaims{Raw: map[string]any(claims)}
	out.Issuer, _ = claims.GetIssuer()
	out.Subject, _ = claims.GetSubject()
	if aud, err := claims.GetAudience(); err == nil {
		out.Audience = []string(aud)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	out.Name, _ = claims["name"].(string)
	out.PreferredUsername, _ = claims["preferred_username"].(string)
	out.ObjectID, _ = claims["oid"].(string)
	out.TenantID, _ = claims["tid"].(string)

	return out, nil
}
