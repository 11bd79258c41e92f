// Package keyvault is a hand-written client for Key Vault secrets:
// secret CRUD and listings plus the vault's soft-delete lifecycle,
// where deletes and recoveries are long-running operations polled
// until the secret becomes visible at its new location.
package keyvault

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/csmu-cenr/go-azure/azcore"
)

const (
	moduleName    = "keyvault"
	moduleVersion = "0.1.0"

	apiVersion = "7.4"

	// tokenScope covers every vault in the public cloud.
	tokenScope = "https://vault.azure.net/.default"
)

// ClientOptions contains the optional settings for Client.
type ClientOptions struct {
	azcore.ClientOptions
}

// Client talks to one vault's secrets collection.
type Client struct {
	vaultURL string
	pl       azcore.Pipeline
}

// NewClient creates a secrets client for the given vault URL.
func NewClient(vaultURL string, cred azcore.TokenCredential, options *ClientOptions) (*Client, error) {
	if cred == nil {
		return nil, errors.New("keyvault: a credential is required")
	}
	var opts *azcore.ClientOptions
	if options != nil {
		opts = &options.ClientOptions
	}
	auth := azcore.NewBearerTokenPolicy(cred, []string{tokenScope})
	plOpts := azcore.PipelineOptions{PerRetry: []azcore.Policy{auth}}
	return &Client{
		vaultURL: strings.TrimRight(vaultURL, "/"),
		pl:       azcore.NewPipeline(moduleName, moduleVersion, plOpts, opts),
	}, nil
}

// VaultURL returns the vault this client targets.
func (c *Client) VaultURL() string {
	return c.vaultURL
}

func (c *Client) url(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.vaultURL + "/" + strings.Join(escaped, "/") + "?api-version=" + apiVersion
}

// SetSecret stores a new version of a secret.
func (c *Client) SetSecret(ctx context.Context, name, value string, options *SetSecretOptions) (Secret, error) {
	body := struct {
		Value       string            `json:"value"`
		ContentType string            `json:"contentType,omitempty"`
		Attributes  *SecretAttributes `json:"attributes,omitempty"`
		Tags        map[string]string `json:"tags,omitempty"`
	}{Value: value}
	if options != nil {
		body.ContentType = options.ContentType
		body.Attributes = options.Attributes
		body.Tags = options.Tags
	}
	var secret Secret
	err := c.doJSON(ctx, http.MethodPut, c.url("secrets", name), body, &secret)
	return secret, err
}

// GetSecret retrieves a secret, by default its latest version.
func (c *Client) GetSecret(ctx context.Context, name string, options *GetSecretOptions) (Secret, error) {
	segments := []string{"secrets", name}
	if options != nil && options.Version != "" {
		segments = append(segments, options.Version)
	}
	var secret Secret
	err := c.doJSON(ctx, http.MethodGet, c.url(segments...), nil, &secret)
	return secret, err
}

// UpdateSecretProperties changes a secret version's metadata. The
// value itself cannot be changed; store a new version for that.
func (c *Client) UpdateSecretProperties(ctx context.Context, name string, properties SecretProperties, options *UpdateSecretPropertiesOptions) (SecretProperties, error) {
	segments := []string{"secrets", name}
	if options != nil && options.Version != "" {
		segments = append(segments, options.Version)
	}
	body := struct {
		ContentType string            `json:"contentType,omitempty"`
		Attributes  *SecretAttributes `json:"attributes,omitempty"`
		Tags        map[string]string `json:"tags,omitempty"`
	}{
		ContentType: properties.ContentType,
		Attributes:  properties.Attributes,
		Tags:        properties.Tags,
	}
	var updated SecretProperties
	err := c.doJSON(ctx, http.MethodPatch, c.url(segments...), body, &updated)
	return updated, err
}

// NewListSecretsPager lists the vault's secrets without their values,
// following the service's nextLink continuations.
func (c *Client) NewListSecretsPager() *azcore.Pager[ListSecretsResponse] {
	return c.newListPager(c.url("secrets"))
}

// NewListDeletedSecretsPager lists the vault's soft-deleted secrets.
func (c *Client) NewListDeletedSecretsPager() *azcore.Pager[ListSecretsResponse] {
	return c.newListPager(c.url("deletedsecrets"))
}

func (c *Client) newListPager(firstPage string) *azcore.Pager[ListSecretsResponse] {
	return azcore.NewPager(azcore.PagingHandler[ListSecretsResponse]{
		More: func(page ListSecretsResponse) bool {
			return page.NextLink != ""
		},
		Fetcher: func(ctx context.Context, current *ListSecretsResponse) (ListSecretsResponse, error) {
			endpoint := firstPage
			if current != nil {
				// nextLink is absolute and carries the api-version.
				endpoint = current.NextLink
			}
			var page ListSecretsResponse
			err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &page)
			return page, err
		},
	})
}

// BeginDeleteSecret starts deleting a secret. The vault soft-deletes
// asynchronously, so the returned poller waits until the secret is
// visible under /deletedsecrets before reporting completion.
func (c *Client) BeginDeleteSecret(ctx context.Context, name string) (*azcore.Poller[DeletedSecret], error) {
	req, err := azcore.NewRequest(ctx, http.MethodDelete, c.url("secrets", name))
	if err != nil {
		return nil, err
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return nil, err
	}
	if !azcore.HasStatusCode(resp, http.StatusOK) {
		return nil, azcore.NewResponseError(resp)
	}
	handler := &recoverableStatePoller[DeletedSecret]{
		client:  c,
		pollURL: c.url("deletedsecrets", name),
	}
	return azcore.NewPollerFromHandler[DeletedSecret](handler, resp), nil
}

// BeginRecoverDeletedSecret starts recovering a soft-deleted secret.
// The returned poller waits until the secret is visible under /secrets
// again.
func (c *Client) BeginRecoverDeletedSecret(ctx context.Context, name string) (*azcore.Poller[SecretProperties], error) {
	req, err := azcore.NewRequest(ctx, http.MethodPost, c.url("deletedsecrets", name, "recover"))
	if err != nil {
		return nil, err
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return nil, err
	}
	if !azcore.HasStatusCode(resp, http.StatusOK) {
		return nil, azcore.NewResponseError(resp)
	}
	handler := &recoverableStatePoller[SecretProperties]{
		client:  c,
		pollURL: c.url("secrets", name),
	}
	return azcore.NewPollerFromHandler[SecretProperties](handler, resp), nil
}

// PurgeDeletedSecret permanently removes a soft-deleted secret. The
// secret is unrecoverable afterwards.
func (c *Client) PurgeDeletedSecret(ctx context.Context, name string) error {
	req, err := azcore.NewRequest(ctx, http.MethodDelete, c.url("deletedsecrets", name))
	if err != nil {
		return err
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return err
	}
	if !azcore.HasStatusCode(resp, http.StatusNoContent) {
		return azcore.NewResponseError(resp)
	}
	return nil
}

// recoverableStatePoller polls a vault URL that returns 404 until the
// asynchronous transition lands, then decodes the final state.
type recoverableStatePoller[T any] struct {
	client  *Client
	pollURL string
	done    bool
	result  T
}

func (p *recoverableStatePoller[T]) Done() bool {
	return p.done
}

func (p *recoverableStatePoller[T]) Poll(ctx context.Context) (*http.Response, error) {
	req, err := azcore.NewRequest(ctx, http.MethodGet, p.pollURL)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.pl.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return resp, nil
	}
	if !azcore.HasStatusCode(resp, http.StatusOK) {
		return nil, azcore.NewResponseError(resp)
	}
	payload, err := azcore.Payload(resp)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &p.result); err != nil {
		return nil, fmt.Errorf("keyvault: invalid polling response: %w", err)
	}
	p.done = true
	return resp, nil
}

func (p *recoverableStatePoller[T]) Result(ctx context.Context, out *T) error {
	*out = p.result
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	req, err := azcore.NewRequest(ctx, method, endpoint)
	if err != nil {
		return err
	}
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		if err := req.SetBody(azcore.NopCloser(bytes.NewReader(encoded)), "application/json"); err != nil {
			return err
		}
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return err
	}
	if !azcore.HasStatusCode(resp, http.StatusOK) {
		return azcore.NewResponseError(resp)
	}
	payload, err := azcore.Payload(resp)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("keyvault: invalid response: %w", err)
	}
	return nil
}
