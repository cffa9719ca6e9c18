package auth

import (
	"time"

	"golang.org/x/oauth2"

	"github.com/jonwraymond/tokenops/tokencache"
)

// Source says where a token came from.
type Source int

const (
	// SourceCache is an unexpired cached access token.
	SourceCache Source = iota
	// SourceStaleCache is a cached token past its expiry but inside its
	// extended-expiry window, served because the provider was unavailable.
	SourceStaleCache
	// SourceIdentityProvider is a token minted by the provider for this call.
	SourceIdentityProvider
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceStaleCache:
		return "stale_cache"
	case SourceIdentityProvider:
		return "identity_provider"
	default:
		return "unknown"
	}
}

// FromCache reports whether no token was minted.
func (s Source) FromCache() bool {
	return s == SourceCache || s == SourceStaleCache
}

// AuthResult is a successful acquisition.
type AuthResult struct {
	AccessToken       string
	TokenType         string
	ExpiresOn         time.Time
	ExtendedExpiresOn time.Time
	// Scopes are the scopes the access token was granted for.
	Scopes []string
	// Account is the signed-in account, zero for app-only tokens.
	Account tokencache.Account
	// IDToken is the raw ID token, if one is cached for the account.
	IDToken       string
	Source        Source
	CorrelationID string
}

func newResult(at tokencache.AccessToken, source Source, correlationID string) AuthResult {
	tokenType := at.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return AuthResult{
		AccessToken:       at.Secret,
		TokenType:         tokenType,
		ExpiresOn:         at.ExpiresOn,
		ExtendedExpiresOn: at.ExtendedExpiresOn,
		Scopes:            at.Scopes().Sorted(),
		Source:            source,
		CorrelationID:     correlationID,
	}
}

// OAuth2Token converts r for use with golang.org/x/oauth2. The raw ID token,
// when present, is available as Extra("id_token").
func (r AuthResult) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken: r.AccessToken,
		TokenType:   r.TokenType,
		Expiry:      r.ExpiresOn,
	}
	if r.IDToken != "" {
		tok = tok.WithExtra(map[string]any{"id_token": r.IDToken})
	}
	return tok
}
