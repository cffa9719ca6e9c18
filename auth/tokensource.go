package auth

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/jonwraymond/tokenops/tokencache"
)

// TokenSource returns an oauth2.TokenSource that acquires tokens silently
// for account. It can be passed to oauth2.NewClient.
func (c *Client) TokenSource(ctx context.Context, account tokencache.Account, scopes ...string) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &silentTokenSource{
		ctx:    ctx,
		client: c,
		params: SilentParams{Scopes: scopes, Account: account},
	})
}

// AppTokenSource returns an oauth2.TokenSource backed by the client
// credentials grant.
func (c *Client) AppTokenSource(ctx context.Context, scopes ...string) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &grantTokenSource{
		ctx:    ctx,
		client: c,
		params: GrantParams{Grant: ClientCredentialsGrant{}, Scopes: scopes},
	})
}

type silentTokenSource struct {
	ctx    context.Context
	client *Client
	params SilentParams
}

// Token implements oauth2.TokenSource.
func (s *silentTokenSource) Token() (*oauth2.Token, error) {
	res, err := s.client.AcquireTokenSilent(s.ctx, s.params)
	if err != nil {
		return nil, err
	}
	return res.OAuth2Token(), nil
}

type grantTokenSource struct {
	ctx    context.Context
	client *Client
	params GrantParams
}

// Token implements oauth2.TokenSource.
func (s *grantTokenSource) Token() (*oauth2.Token, error) {
	res, err := s.client.AcquireTokenByGrant(s.ctx, s.params)
	if err != nil {
		return nil, err
	}
	return res.OAuth2Token(), nil
}
