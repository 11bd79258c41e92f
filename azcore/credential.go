package azcore

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// AccessToken is a bearer token with its expiry.
type AccessToken struct {
	Token     string
	ExpiresOn time.Time
}

// TokenRequestOptions carries the parameters of a token request.
type TokenRequestOptions struct {
	// Scopes the token should be valid for, e.g.
	// "https://vault.azure.net/.default".
	Scopes []string
}

// TokenCredential is anything that can produce bearer tokens. The
// identity package provides the implementations.
type TokenCredential interface {
	GetToken(ctx context.Context, options TokenRequestOptions) (AccessToken, error)
}

// tokenRefreshWindow is how long before expiry a cached token is
// considered stale.
const tokenRefreshWindow = 2 * time.Minute

// BearerTokenPolicy authenticates requests with a TokenCredential,
// caching the token until it nears expiry.
type BearerTokenPolicy struct {
	cred   TokenCredential
	scopes []string

	mu     sync.Mutex
	cached AccessToken
}

// NewBearerTokenPolicy creates a policy that requests tokens for the
// given scopes.
func NewBearerTokenPolicy(cred TokenCredential, scopes []string) *BearerTokenPolicy {
	return &BearerTokenPolicy{cred: cred, scopes: scopes}
}

func (p *BearerTokenPolicy) Do(req *Request) (*http.Response, error) {
	if req.Raw().URL.Scheme != "https" {
		// Never send a bearer token in the clear.
		return nil, errors.New("azcore: bearer token authentication requires https")
	}
	token, err := p.token(req.Raw().Context())
	if err != nil {
		return nil, err
	}
	req.Raw().Header.Set(headerAuthorization, "Bearer "+token)
	return req.Next()
}

func (p *BearerTokenPolicy) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached.Token != "" && time.Until(p.cached.ExpiresOn) > tokenRefreshWindow {
		return p.cached.Token, nil
	}
	token, err := p.cred.GetToken(ctx, TokenRequestOptions{Scopes: p.scopes})
	if err != nil {
		return "", err
	}
	p.cached = token
	return token.Token, nil
}
