package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/csmu-cenr/go-azure/azcore"
	"github.com/csmu-cenr/go-azure/dates"
	"github.com/csmu-cenr/go-azure/sas"
)

// ErrChecksumMismatch means a downloaded body did not match the
// Content-MD5 the service attached to it.
var ErrChecksumMismatch = errors.New("storage: content checksum mismatch")

// BlobClient targets one blob.
type BlobClient struct {
	endpoint  string
	name      string
	container string
	pl        azcore.Pipeline
	sharedKey *SharedKeyCredential
}

// Name returns the blob's name.
func (c *BlobClient) Name() string {
	return c.name
}

// URL returns the blob's endpoint.
func (c *BlobClient) URL() string {
	return c.endpoint
}

// Upload writes body as a block blob, replacing any existing content.
func (c *BlobClient) Upload(ctx context.Context, body io.ReadSeekCloser, options *UploadOptions) (UploadResponse, error) {
	req, err := azcore.NewRequest(ctx, http.MethodPut, c.endpoint)
	if err != nil {
		return UploadResponse{}, err
	}
	contentType := ""
	if options != nil {
		contentType = options.ContentType
	}
	if err := req.SetBody(body, contentType); err != nil {
		return UploadResponse{}, err
	}
	req.Raw().Header.Set(headerBlobType, "BlockBlob")
	if options != nil {
		for name, value := range options.Metadata {
			req.Raw().Header.Set(headerMetadataPrefix+name, value)
		}
		azcore.SetIfMatch(req, options.IfMatch)
		azcore.SetIfNoneMatch(req, options.IfNoneMatch)
		if options.ComputeMD5 {
			sum, err := checksumOf(body)
			if err != nil {
				return UploadResponse{}, err
			}
			req.Raw().Header.Set("Content-MD5", sum)
		}
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return UploadResponse{}, err
	}
	if !azcore.HasStatusCode(resp, http.StatusCreated) {
		return UploadResponse{}, azcore.NewResponseError(resp)
	}
	return UploadResponse{
		ETag:         azcore.ETag(resp.Header.Get("ETag")),
		LastModified: lastModifiedFromHeader(resp.Header),
		ContentMD5:   resp.Header.Get("Content-MD5"),
	}, nil
}

// checksumOf computes the base64 MD5 of the body, leaving it rewound.
func checksumOf(body io.ReadSeeker) (string, error) {
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	hash := md5.New()
	if _, err := io.Copy(hash, body); err != nil {
		return "", err
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(hash.Sum(nil)), nil
}

// DownloadResponse is a blob's content and the headers describing it.
type DownloadResponse struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
	ContentMD5    string
	ETag          azcore.ETag
	LastModified  dates.RFC1123
	Metadata      map[string]string
}

// Download reads the blob. With ValidateMD5 the body is read eagerly
// and verified against the service's Content-MD5 before being handed
// back.
func (c *BlobClient) Download(ctx context.Context, options *DownloadOptions) (DownloadResponse, error) {
	req, err := azcore.NewRequest(ctx, http.MethodGet, c.endpoint)
	if err != nil {
		return DownloadResponse{}, err
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return DownloadResponse{}, err
	}
	if !azcore.HasStatusCode(resp, http.StatusOK, http.StatusPartialContent) {
		return DownloadResponse{}, azcore.NewResponseError(resp)
	}
	out := DownloadResponse{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentMD5:    resp.Header.Get("Content-MD5"),
		ETag:          azcore.ETag(resp.Header.Get("ETag")),
		LastModified:  lastModifiedFromHeader(resp.Header),
		Metadata:      metadataFromHeaders(resp.Header),
		ContentLength: resp.ContentLength,
	}
	if options != nil && options.ValidateMD5 {
		payload, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return DownloadResponse{}, err
		}
		if want := out.ContentMD5; want != "" {
			sum := md5.Sum(payload)
			if got := base64.StdEncoding.EncodeToString(sum[:]); got != want {
				return DownloadResponse{}, fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, got, want)
			}
		}
		out.Body = io.NopCloser(bytes.NewReader(payload))
		out.ContentLength = int64(len(payload))
	}
	return out, nil
}

// Delete marks the blob for deletion.
func (c *BlobClient) Delete(ctx context.Context) error {
	req, err := azcore.NewRequest(ctx, http.MethodDelete, c.endpoint)
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

// GetProperties fetches the blob's properties without its content.
func (c *BlobClient) GetProperties(ctx context.Context) (BlobGetPropertiesResponse, error) {
	req, err := azcore.NewRequest(ctx, http.MethodHead, c.endpoint)
	if err != nil {
		return BlobGetPropertiesResponse{}, err
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return BlobGetPropertiesResponse{}, err
	}
	if !azcore.HasStatusCode(resp, http.StatusOK) {
		return BlobGetPropertiesResponse{}, azcore.NewResponseError(resp)
	}
	contentLength, _ := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	return BlobGetPropertiesResponse{
		ETag:          azcore.ETag(resp.Header.Get("ETag")),
		LastModified:  lastModifiedFromHeader(resp.Header),
		ContentLength: contentLength,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentMD5:    resp.Header.Get("Content-MD5"),
		BlobType:      resp.Header.Get(headerBlobType),
		Metadata:      metadataFromHeaders(resp.Header),
	}, nil
}

// SetMetadata replaces the blob's metadata.
func (c *BlobClient) SetMetadata(ctx context.Context, metadata map[string]string) error {
	req, err := azcore.NewRequest(ctx, http.MethodPut, c.endpoint+"?comp=metadata")
	if err != nil {
		return err
	}
	for name, value := range metadata {
		req.Raw().Header.Set(headerMetadataPrefix+name, value)
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return err
	}
	if !azcore.HasStatusCode(resp, http.StatusOK) {
		return azcore.NewResponseError(resp)
	}
	return nil
}

// GetSASURL returns the blob URL with a blob SAS attached.
func (c *BlobClient) GetSASURL(permissions sas.BlobPermissions, expiry time.Time) (string, error) {
	if c.sharedKey == nil {
		return "", ErrNoSharedKey
	}
	params, err := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		Expiry:        expiry,
		Permissions:   permissions.String(),
		ContainerName: c.container,
		BlobName:      c.name,
	}.SignWithSharedKey(c.sharedKey)
	if err != nil {
		return "", err
	}
	return c.endpoint + "?" + params.Encode(), nil
}
