// Package storage is a hand-written client for the Azure Blob service:
// service, container and blob clients over the shared azcore pipeline,
// with shared key signing, SAS generation and transactional checksum
// validation.
package storage

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/csmu-cenr/go-azure/azcore"
	"github.com/csmu-cenr/go-azure/sas"
)

const (
	moduleName    = "storage"
	moduleVersion = "0.1.0"

	// serviceVersion is sent as x-ms-version on every request.
	serviceVersion = "2021-12-02"

	headerDate           = "x-ms-date"
	headerVersion        = "x-ms-version"
	headerBlobType       = "x-ms-blob-type"
	headerMetadataPrefix = "x-ms-meta-"
)

// ErrNoSharedKey is returned when SAS generation is attempted on a
// client that was not built from a shared key credential.
var ErrNoSharedKey = errors.New("storage: SAS generation requires a shared key credential")

// ClientOptions contains the optional settings for storage clients.
type ClientOptions struct {
	azcore.ClientOptions
}

// versionPolicy stamps x-ms-version on every request.
type versionPolicy struct{}

func (versionPolicy) Do(req *azcore.Request) (*http.Response, error) {
	req.Raw().Header.Set(headerVersion, serviceVersion)
	return req.Next()
}

func newPipeline(authPolicy azcore.Policy, options *ClientOptions) azcore.Pipeline {
	var opts *azcore.ClientOptions
	if options != nil {
		opts = &options.ClientOptions
	}
	plOpts := azcore.PipelineOptions{PerCall: []azcore.Policy{versionPolicy{}}}
	if authPolicy != nil {
		plOpts.PerRetry = []azcore.Policy{authPolicy}
	}
	return azcore.NewPipeline(moduleName, moduleVersion, plOpts, opts)
}

// ServiceClient targets a storage account's blob endpoint.
type ServiceClient struct {
	endpoint  string
	pl        azcore.Pipeline
	sharedKey *SharedKeyCredential
}

// NewServiceClient creates a ServiceClient that authenticates with a
// bearer token.
func NewServiceClient(endpoint string, cred azcore.TokenCredential, options *ClientOptions) (*ServiceClient, error) {
	if cred == nil {
		return nil, errors.New("storage: a credential is required")
	}
	auth := azcore.NewBearerTokenPolicy(cred, []string{"https://storage.azure.com/.default"})
	return &ServiceClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		pl:       newPipeline(auth, options),
	}, nil
}

// NewServiceClientWithSharedKey creates a ServiceClient that signs
// requests with the account key.
func NewServiceClientWithSharedKey(endpoint string, cred *SharedKeyCredential, options *ClientOptions) (*ServiceClient, error) {
	if cred == nil {
		return nil, errors.New("storage: a credential is required")
	}
	return &ServiceClient{
		endpoint:  strings.TrimRight(endpoint, "/"),
		pl:        newPipeline(&sharedKeyPolicy{cred: cred}, options),
		sharedKey: cred,
	}, nil
}

// NewServiceClientFromConnectionString creates a ServiceClient from a
// storage connection string.
func NewServiceClientFromConnectionString(connectionString string, options *ClientOptions) (*ServiceClient, error) {
	settings, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}
	cred, err := NewSharedKeyCredential(settings.AccountName, settings.AccountKey)
	if err != nil {
		return nil, err
	}
	return NewServiceClientWithSharedKey(settings.ServiceURL, cred, options)
}

// Endpoint returns the blob endpoint this client targets.
func (c *ServiceClient) Endpoint() string {
	return c.endpoint
}

// NewContainerClient returns a client scoped to one container.
func (c *ServiceClient) NewContainerClient(containerName string) *ContainerClient {
	return &ContainerClient{
		endpoint:  c.endpoint + "/" + url.PathEscape(containerName),
		name:      containerName,
		pl:        c.pl,
		sharedKey: c.sharedKey,
	}
}

// NewListContainersPager lists the account's containers a page at a
// time, following the service's continuation markers.
func (c *ServiceClient) NewListContainersPager(options *ListContainersOptions) *azcore.Pager[ListContainersResponse] {
	return azcore.NewPager(azcore.PagingHandler[ListContainersResponse]{
		More: func(page ListContainersResponse) bool {
			return page.NextMarker != ""
		},
		Fetcher: func(ctx context.Context, current *ListContainersResponse) (ListContainersResponse, error) {
			marker := ""
			if current != nil {
				marker = current.NextMarker
			}
			query := url.Values{}
			query.Set("comp", "list")
			if marker != "" {
				query.Set("marker", marker)
			}
			if options != nil {
				if options.Prefix != "" {
					query.Set("prefix", options.Prefix)
				}
				if options.MaxResults > 0 {
					query.Set("maxresults", strconv.FormatInt(int64(options.MaxResults), 10))
				}
			}
			var page ListContainersResponse
			err := c.getXML(ctx, c.endpoint+"?"+query.Encode(), &page)
			return page, err
		},
	})
}

// GetSASURL returns the account endpoint with an account SAS attached.
func (c *ServiceClient) GetSASURL(resourceTypes sas.AccountResourceTypes, permissions sas.AccountPermissions, expiry time.Time) (string, error) {
	if c.sharedKey == nil {
		return "", ErrNoSharedKey
	}
	params, err := sas.AccountSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		Expiry:        expiry,
		Permissions:   permissions,
		Services:      sas.AccountServices{Blob: true},
		ResourceTypes: resourceTypes,
	}.SignWithSharedKey(c.sharedKey)
	if err != nil {
		return "", err
	}
	return c.endpoint + "/?" + params.Encode(), nil
}

func (c *ServiceClient) getXML(ctx context.Context, endpoint string, out any) error {
	req, err := azcore.NewRequest(ctx, http.MethodGet, endpoint)
	if err != nil {
		return err
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
	if err := xml.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("storage: invalid listing response: %w", err)
	}
	return nil
}
