// Package identity provides the token credentials clients authenticate
// with: the Microsoft Entra client-credentials flow, its
// environment-variable form, and a chained fallback.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/csmu-cenr/go-azure/azcore"
)

// DefaultAuthorityHost is the Entra endpoint for the public cloud.
const DefaultAuthorityHost = "https://login.microsoftonline.com/"

// CredentialUnavailableError means a credential could not even attempt
// authentication, so a chain should move on to its next source.
type CredentialUnavailableError struct {
	CredentialType string
	Message        string
}

func (e *CredentialUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s", e.CredentialType, e.Message)
}

// ClientSecretCredentialOptions holds optional settings for
// ClientSecretCredential.
type ClientSecretCredentialOptions struct {
	// AuthorityHost overrides the Entra endpoint, for sovereign clouds
	// and tests.
	AuthorityHost string

	// HTTPClient overrides the client used for token requests.
	HTTPClient *http.Client
}

// ClientSecretCredential authenticates a service principal with a
// client secret using the OAuth 2 client-credentials grant.
type ClientSecretCredential struct {
	config     clientcredentials.Config
	httpClient *http.Client
}

// NewClientSecretCredential creates a ClientSecretCredential.
func NewClientSecretCredential(tenantID, clientID, clientSecret string, options *ClientSecretCredentialOptions) (*ClientSecretCredential, error) {
	if tenantID == "" || clientID == "" || clientSecret == "" {
		return nil, errors.New("identity: tenantID, clientID and clientSecret are all required")
	}
	host := DefaultAuthorityHost
	var httpClient *http.Client
	if options != nil {
		if options.AuthorityHost != "" {
			host = options.AuthorityHost
		}
		httpClient = options.HTTPClient
	}
	return &ClientSecretCredential{
		config: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     strings.TrimRight(host, "/") + "/" + tenantID + "/oauth2/v2.0/token",
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
	}, nil
}

// GetToken requests a token for the given scopes.
func (c *ClientSecretCredential) GetToken(ctx context.Context, options azcore.TokenRequestOptions) (azcore.AccessToken, error) {
	if len(options.Scopes) == 0 {
		return azcore.AccessToken{}, errors.New("identity: at least one scope is required")
	}
	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}
	config := c.config
	config.Scopes = options.Scopes
	token, err := config.Token(ctx)
	if err != nil {
		return azcore.AccessToken{}, fmt.Errorf("identity: token request failed: %w", err)
	}
	return azcore.AccessToken{Token: token.AccessToken, ExpiresOn: token.Expiry}, nil
}

// Environment variable names read by NewEnvironmentCredential.
const (
	EnvTenantID     = "AZURE_TENANT_ID"
	EnvClientID     = "AZURE_CLIENT_ID"
	EnvClientSecret = "AZURE_CLIENT_SECRET"
)

// NewEnvironmentCredential builds a ClientSecretCredential from the
// conventional AZURE_* environment variables.
func NewEnvironmentCredential(options *ClientSecretCredentialOptions) (*ClientSecretCredential, error) {
	var missing []string
	for _, name := range []string{EnvTenantID, EnvClientID, EnvClientSecret} {
		if os.Getenv(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &CredentialUnavailableError{
			CredentialType: "EnvironmentCredential",
			Message:        "missing environment variables: " + strings.Join(missing, ", "),
		}
	}
	return NewClientSecretCredential(os.Getenv(EnvTenantID), os.Getenv(EnvClientID), os.Getenv(EnvClientSecret), options)
}

// ChainedTokenCredential tries its sources in order and sticks with
// the first one that delivers a token. Safe for use from concurrent
// pipelines.
type ChainedTokenCredential struct {
	mu         sync.Mutex
	sources    []azcore.TokenCredential
	successful azcore.TokenCredential
}

// NewChainedTokenCredential creates a chain from the given sources.
func NewChainedTokenCredential(sources ...azcore.TokenCredential) (*ChainedTokenCredential, error) {
	if len(sources) == 0 {
		return nil, errors.New("identity: a chain needs at least one credential")
	}
	for _, source := range sources {
		if source == nil {
			return nil, errors.New("identity: nil credential in chain")
		}
	}
	return &ChainedTokenCredential{sources: sources}, nil
}

// GetToken asks each source in turn, remembering the winner for
// subsequent calls.
func (c *ChainedTokenCredential) GetToken(ctx context.Context, options azcore.TokenRequestOptions) (azcore.AccessToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.successful != nil {
		return c.successful.GetToken(ctx, options)
	}
	var failures []string
	for _, source := range c.sources {
		token, err := source.GetToken(ctx, options)
		if err == nil {
			c.successful = source
			return token, nil
		}
		failures = append(failures, err.Error())
		var unavailable *CredentialUnavailableError
		if !errors.As(err, &unavailable) {
			// A credential that tried and failed ends the chain.
			break
		}
	}
	return azcore.AccessToken{}, &CredentialUnavailableError{
		CredentialType: "ChainedTokenCredential",
		Message:        strings.Join(failures, "; "),
	}
}
