// Package appconfig is a hand-written client for Azure App
// Configuration: key-value CRUD, read-only locks, wildcard listings
// and sync-token session consistency over the shared azcore pipeline,
// authenticating with either the store's HMAC access key or a bearer
// token.
package appconfig

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
	moduleName    = "appconfig"
	moduleVersion = "0.1.0"

	apiVersion = "2023-10-01"

	contentTypeKV = "application/vnd.microsoft.appconfig.kv+json"
)

// ErrNotModified is returned by GetSetting when OnlyIfChanged is set
// and the setting has not changed.
var ErrNotModified = errors.New("appconfig: setting not modified")

// ClientOptions contains the optional settings for Client.
type ClientOptions struct {
	azcore.ClientOptions
}

// Client talks to one App Configuration store.
type Client struct {
	endpoint string
	pl       azcore.Pipeline
}

func newClient(endpoint string, authPolicy azcore.Policy, options *ClientOptions) *Client {
	var opts *azcore.ClientOptions
	if options != nil {
		opts = &options.ClientOptions
	}
	plOpts := azcore.PipelineOptions{
		PerRetry: []azcore.Policy{newSyncTokenPolicy(), authPolicy},
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		pl:       azcore.NewPipeline(moduleName, moduleVersion, plOpts, opts),
	}
}

// NewClient creates a Client that authenticates with a bearer token.
func NewClient(endpoint string, cred azcore.TokenCredential, options *ClientOptions) (*Client, error) {
	if cred == nil {
		return nil, errors.New("appconfig: a credential is required")
	}
	scope := strings.TrimRight(endpoint, "/") + "/.default"
	auth := azcore.NewBearerTokenPolicy(cred, []string{scope})
	return newClient(endpoint, auth, options), nil
}

// NewClientFromConnectionString creates a Client from a store
// connection string of the form Endpoint=...;Id=...;Secret=...
func NewClientFromConnectionString(connectionString string, options *ClientOptions) (*Client, error) {
	endpoint, id, secret, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}
	auth, err := newHMACAuthPolicy(id, secret)
	if err != nil {
		return nil, err
	}
	return newClient(endpoint, auth, options), nil
}

func parseConnectionString(connectionString string) (endpoint, id, secret string, err error) {
	for _, segment := range strings.Split(connectionString, ";") {
		if segment == "" {
			continue
		}
		name, value, found := strings.Cut(segment, "=")
		if !found {
			return "", "", "", fmt.Errorf("appconfig: malformed connection string segment %q", name)
		}
		switch name {
		case "Endpoint":
			endpoint = value
		case "Id":
			id = value
		case "Secret":
			secret = value
		}
	}
	if endpoint == "" || id == "" || secret == "" {
		return "", "", "", errors.New("appconfig: connection string must contain Endpoint, Id and Secret")
	}
	return endpoint, id, secret, nil
}

// Endpoint returns the store endpoint this client targets.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) kvURL(key, label string) string {
	query := url.Values{}
	query.Set("api-version", apiVersion)
	if label != "" {
		query.Set("label", label)
	}
	return c.endpoint + "/kv/" + url.PathEscape(key) + "?" + query.Encode()
}

// AddSetting creates a setting and fails if it already exists. The
// service reports an existing setting as a 412 ResponseError.
func (c *Client) AddSetting(ctx context.Context, setting Setting) (Setting, error) {
	req, err := c.newSettingRequest(ctx, http.MethodPut, c.kvURL(setting.Key, setting.Label), &setting)
	if err != nil {
		return Setting{}, err
	}
	azcore.SetIfNoneMatch(req, azcore.ETagAny)
	return c.doSetting(req)
}

// SetSetting creates or replaces a setting. With OnlyIfUnchanged the
// write only succeeds when the stored ETag still matches.
func (c *Client) SetSetting(ctx context.Context, setting Setting, options *SetSettingOptions) (Setting, error) {
	req, err := c.newSettingRequest(ctx, http.MethodPut, c.kvURL(setting.Key, setting.Label), &setting)
	if err != nil {
		return Setting{}, err
	}
	if options != nil && options.OnlyIfUnchanged != "" {
		azcore.SetIfMatch(req, options.OnlyIfUnchanged)
	}
	return c.doSetting(req)
}

// GetSetting retrieves one setting.
func (c *Client) GetSetting(ctx context.Context, key string, options *GetSettingOptions) (Setting, error) {
	label := ""
	if options != nil {
		label = options.Label
	}
	req, err := azcore.NewRequest(ctx, http.MethodGet, c.kvURL(key, label))
	if err != nil {
		return Setting{}, err
	}
	if options != nil {
		if options.AcceptDatetime != "" {
			req.Raw().Header.Set("Accept-Datetime", options.AcceptDatetime)
		}
		if options.OnlyIfChanged != "" {
			azcore.SetIfNoneMatch(req, options.OnlyIfChanged)
		}
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return Setting{}, err
	}
	if resp.StatusCode == http.StatusNotModified {
		return Setting{}, ErrNotModified
	}
	return settingFromResponse(resp)
}

// DeleteSetting removes a setting. Deleting a setting that does not
// exist is not an error.
func (c *Client) DeleteSetting(ctx context.Context, key string, options *DeleteSettingOptions) error {
	label := ""
	if options != nil {
		label = options.Label
	}
	req, err := azcore.NewRequest(ctx, http.MethodDelete, c.kvURL(key, label))
	if err != nil {
		return err
	}
	if options != nil && options.OnlyIfUnchanged != "" {
		azcore.SetIfMatch(req, options.OnlyIfUnchanged)
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return err
	}
	if !azcore.HasStatusCode(resp, http.StatusOK, http.StatusNoContent) {
		return azcore.NewResponseError(resp)
	}
	return nil
}

// SetReadOnly locks or unlocks a setting against writes.
func (c *Client) SetReadOnly(ctx context.Context, key, label string, readOnly bool) (Setting, error) {
	query := url.Values{}
	query.Set("api-version", apiVersion)
	if label != "" {
		query.Set("label", label)
	}
	endpoint := c.endpoint + "/locks/" + url.PathEscape(key) + "?" + query.Encode()
	method := http.MethodPut
	if !readOnly {
		method = http.MethodDelete
	}
	req, err := azcore.NewRequest(ctx, method, endpoint)
	if err != nil {
		return Setting{}, err
	}
	return c.doSetting(req)
}

// NewListSettingsPager lists settings matching the filters, following
// the service's @nextLink continuations.
func (c *Client) NewListSettingsPager(options *ListSettingsOptions) *azcore.Pager[ListSettingsResponse] {
	return azcore.NewPager(azcore.PagingHandler[ListSettingsResponse]{
		More: func(page ListSettingsResponse) bool {
			return page.NextLink != ""
		},
		Fetcher: func(ctx context.Context, current *ListSettingsResponse) (ListSettingsResponse, error) {
			endpoint := c.firstPageURL(options)
			if current != nil {
				// @nextLink is relative to the store endpoint and
				// already carries the api-version.
				endpoint = c.endpoint + current.NextLink
			}
			req, err := azcore.NewRequest(ctx, http.MethodGet, endpoint)
			if err != nil {
				return ListSettingsResponse{}, err
			}
			if options != nil && options.AcceptDatetime != "" {
				req.Raw().Header.Set("Accept-Datetime", options.AcceptDatetime)
			}
			resp, err := c.pl.Do(req)
			if err != nil {
				return ListSettingsResponse{}, err
			}
			if !azcore.HasStatusCode(resp, http.StatusOK) {
				return ListSettingsResponse{}, azcore.NewResponseError(resp)
			}
			payload, err := azcore.Payload(resp)
			if err != nil {
				return ListSettingsResponse{}, err
			}
			var page ListSettingsResponse
			if err := json.Unmarshal(payload, &page); err != nil {
				return ListSettingsResponse{}, fmt.Errorf("appconfig: invalid listing response: %w", err)
			}
			return page, nil
		},
	})
}

func (c *Client) firstPageURL(options *ListSettingsOptions) string {
	query := url.Values{}
	query.Set("api-version", apiVersion)
	if options != nil {
		if options.KeyFilter != "" {
			query.Set("key", options.KeyFilter)
		}
		if options.LabelFilter != "" {
			query.Set("label", options.LabelFilter)
		}
		if len(options.Fields) > 0 {
			query.Set("$select", strings.Join(options.Fields, ","))
		}
	}
	return c.endpoint + "/kv?" + query.Encode()
}

func (c *Client) newSettingRequest(ctx context.Context, method, endpoint string, setting *Setting) (*azcore.Request, error) {
	req, err := azcore.NewRequest(ctx, method, endpoint)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(setting)
	if err != nil {
		return nil, err
	}
	if err := req.SetBody(azcore.NopCloser(bytes.NewReader(body)), contentTypeKV); err != nil {
		return nil, err
	}
	return req, nil
}

func (c *Client) doSetting(req *azcore.Request) (Setting, error) {
	resp, err := c.pl.Do(req)
	if err != nil {
		return Setting{}, err
	}
	return settingFromResponse(resp)
}

func settingFromResponse(resp *http.Response) (Setting, error) {
	if !azcore.HasStatusCode(resp, http.StatusOK) {
		return Setting{}, azcore.NewResponseError(resp)
	}
	payload, err := azcore.Payload(resp)
	if err != nil {
		return Setting{}, err
	}
	var setting Setting
	if err := json.Unmarshal(payload, &setting); err != nil {
		return Setting{}, fmt.Errorf("appconfig: invalid setting response: %w", err)
	}
	return setting, nil
}
