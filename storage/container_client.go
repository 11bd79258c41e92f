package storage

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/csmu-cenr/go-azure/azcore"
	"github.com/csmu-cenr/go-azure/dates"
	"github.com/csmu-cenr/go-azure/sas"
)

// ContainerClient targets one container.
type ContainerClient struct {
	endpoint  string
	name      string
	pl        azcore.Pipeline
	sharedKey *SharedKeyCredential
}

// Name returns the container's name.
func (c *ContainerClient) Name() string {
	return c.name
}

// NewBlobClient returns a client scoped to one blob in the container.
func (c *ContainerClient) NewBlobClient(blobName string) *BlobClient {
	return &BlobClient{
		endpoint:  c.endpoint + "/" + escapeBlobPath(blobName),
		name:      blobName,
		container: c.name,
		pl:        c.pl,
		sharedKey: c.sharedKey,
	}
}

// escapeBlobPath escapes each segment of a blob name, keeping the
// virtual-directory slashes.
func escapeBlobPath(blobName string) string {
	segments := strings.Split(blobName, "/")
	for i := range segments {
		segments[i] = url.PathEscape(segments[i])
	}
	return strings.Join(segments, "/")
}

// Create creates the container. The service answers 409
// ContainerAlreadyExists when it is already there.
func (c *ContainerClient) Create(ctx context.Context) error {
	req, err := azcore.NewRequest(ctx, http.MethodPut, c.endpoint+"?restype=container")
	if err != nil {
		return err
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return err
	}
	if !azcore.HasStatusCode(resp, http.StatusCreated) {
		return azcore.NewResponseError(resp)
	}
	return nil
}

// Delete marks the container for deletion.
func (c *ContainerClient) Delete(ctx context.Context) error {
	req, err := azcore.NewRequest(ctx, http.MethodDelete, c.endpoint+"?restype=container")
	if err != nil {
		return err
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return err
	}
	if !azcore.HasStatusCode(resp, http.StatusAccepted) {
		return azcore.NewResponseError(resp)
	}
	return nil
}

// GetProperties fetches the container's properties and metadata.
func (c *ContainerClient) GetProperties(ctx context.Context) (ContainerGetPropertiesResponse, error) {
	req, err := azcore.NewRequest(ctx, http.MethodGet, c.endpoint+"?restype=container")
	if err != nil {
		return ContainerGetPropertiesResponse{}, err
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return ContainerGetPropertiesResponse{}, err
	}
	if !azcore.HasStatusCode(resp, http.StatusOK) {
		return ContainerGetPropertiesResponse{}, azcore.NewResponseError(resp)
	}
	return ContainerGetPropertiesResponse{
		ETag:         azcore.ETag(resp.Header.Get("ETag")),
		LastModified: lastModifiedFromHeader(resp.Header),
		LeaseState:   resp.Header.Get("x-ms-lease-state"),
		Metadata:     metadataFromHeaders(resp.Header),
	}, nil
}

// NewListBlobsFlatPager lists the container's blobs without any
// hierarchy, following continuation markers.
func (c *ContainerClient) NewListBlobsFlatPager(options *ListBlobsOptions) *azcore.Pager[ListBlobsFlatResponse] {
	return azcore.NewPager(azcore.PagingHandler[ListBlobsFlatResponse]{
		More: func(page ListBlobsFlatResponse) bool {
			return page.NextMarker != ""
		},
		Fetcher: func(ctx context.Context, current *ListBlobsFlatResponse) (ListBlobsFlatResponse, error) {
			query := url.Values{}
			query.Set("restype", "container")
			query.Set("comp", "list")
			if current != nil {
				query.Set("marker", current.NextMarker)
			}
			if options != nil {
				if options.Prefix != "" {
					query.Set("prefix", options.Prefix)
				}
				if options.MaxResults > 0 {
					query.Set("maxresults", strconv.FormatInt(int64(options.MaxResults), 10))
				}
			}
			var page ListBlobsFlatResponse
			err := c.getXML(ctx, c.endpoint+"?"+query.Encode(), &page)
			return page, err
		},
	})
}

// GetSASURL returns the container URL with a container SAS attached.
func (c *ContainerClient) GetSASURL(permissions sas.ContainerPermissions, expiry time.Time) (string, error) {
	if c.sharedKey == nil {
		return "", ErrNoSharedKey
	}
	params, err := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		Expiry:        expiry,
		Permissions:   permissions.String(),
		ContainerName: c.name,
	}.SignWithSharedKey(c.sharedKey)
	if err != nil {
		return "", err
	}
	return c.endpoint + "?" + params.Encode(), nil
}

func (c *ContainerClient) getXML(ctx context.Context, endpoint string, out any) error {
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

// metadataFromHeaders collects x-ms-meta-* headers into a map.
func metadataFromHeaders(header http.Header) map[string]string {
	var metadata map[string]string
	for name := range header {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, headerMetadataPrefix) {
			if metadata == nil {
				metadata = map[string]string{}
			}
			metadata[strings.TrimPrefix(lower, headerMetadataPrefix)] = header.Get(name)
		}
	}
	return metadata
}

// lastModifiedFromHeader parses a Last-Modified header, returning the
// zero value when absent.
func lastModifiedFromHeader(header http.Header) dates.RFC1123 {
	var lm dates.RFC1123
	if v := header.Get("Last-Modified"); v != "" {
		_ = lm.UnmarshalText([]byte(v))
	}
	return lm
}
