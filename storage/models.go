package storage

import (
	"encoding/xml"

	"github.com/csmu-cenr/go-azure/azcore"
	"github.com/csmu-cenr/go-azure/dates"
)

// The blob service speaks XML. These models mirror the service's
// EnumerationResults documents for container and blob listings.

// ListContainersResponse is one page of a container listing.
type ListContainersResponse struct {
	XMLName         xml.Name        `xml:"EnumerationResults"`
	ServiceEndpoint string          `xml:"ServiceEndpoint,attr"`
	Prefix          string          `xml:"Prefix"`
	Marker          string          `xml:"Marker"`
	MaxResults      int32           `xml:"MaxResults"`
	Containers      []ContainerItem `xml:"Containers>Container"`
	NextMarker      string          `xml:"NextMarker"`
}

// ContainerItem is one container in a listing.
type ContainerItem struct {
	Name       string              `xml:"Name"`
	Properties ContainerProperties `xml:"Properties"`
}

// ContainerProperties are the properties block of a listed container.
type ContainerProperties struct {
	LastModified dates.RFC1123 `xml:"Last-Modified"`
	ETag         azcore.ETag   `xml:"Etag"`
	LeaseStatus  string        `xml:"LeaseStatus"`
	LeaseState   string        `xml:"LeaseState"`
	PublicAccess string        `xml:"PublicAccess"`
}

// ListBlobsFlatResponse is one page of a flat blob listing.
type ListBlobsFlatResponse struct {
	XMLName         xml.Name   `xml:"EnumerationResults"`
	ServiceEndpoint string     `xml:"ServiceEndpoint,attr"`
	ContainerName   string     `xml:"ContainerName,attr"`
	Prefix          string     `xml:"Prefix"`
	Marker          string     `xml:"Marker"`
	MaxResults      int32      `xml:"MaxResults"`
	Blobs           []BlobItem `xml:"Blobs>Blob"`
	NextMarker      string     `xml:"NextMarker"`
}

// BlobItem is one blob in a listing.
type BlobItem struct {
	Name       string         `xml:"Name"`
	Properties BlobProperties `xml:"Properties"`
}

// BlobProperties are the properties block of a listed blob.
type BlobProperties struct {
	LastModified  dates.RFC1123 `xml:"Last-Modified"`
	ETag          azcore.ETag   `xml:"Etag"`
	ContentLength int64         `xml:"Content-Length"`
	ContentType   string        `xml:"Content-Type"`
	ContentMD5    string        `xml:"Content-MD5"`
	BlobType      string        `xml:"BlobType"`
	AccessTier    string        `xml:"AccessTier"`
}

// ListContainersOptions adjusts a container listing.
type ListContainersOptions struct {
	Prefix     string
	MaxResults int32
}

// ListBlobsOptions adjusts a blob listing.
type ListBlobsOptions struct {
	Prefix     string
	MaxResults int32
}

// UploadOptions adjusts a block blob upload.
type UploadOptions struct {
	ContentType string
	Metadata    map[string]string

	// ComputeMD5 attaches a client-computed Content-MD5 so the service
	// verifies the payload on arrival.
	ComputeMD5 bool

	// IfMatch uploads only when the blob's current ETag matches.
	IfMatch azcore.ETag
	// IfNoneMatch with azcore.ETagAny uploads only when the blob does
	// not already exist.
	IfNoneMatch azcore.ETag
}

// DownloadOptions adjusts a blob download.
type DownloadOptions struct {
	// ValidateMD5 reads the body eagerly and checks it against the
	// Content-MD5 the service returned.
	ValidateMD5 bool
}

// UploadResponse carries the result headers of an upload.
type UploadResponse struct {
	ETag         azcore.ETag
	LastModified dates.RFC1123
	ContentMD5   string
}

// BlobGetPropertiesResponse carries a blob's properties headers.
type BlobGetPropertiesResponse struct {
	ETag          azcore.ETag
	LastModified  dates.RFC1123
	ContentLength int64
	ContentType   string
	ContentMD5    string
	BlobType      string
	Metadata      map[string]string
}

// ContainerGetPropertiesResponse carries a container's properties
// headers.
type ContainerGetPropertiesResponse struct {
	ETag         azcore.ETag
	LastModified dates.RFC1123
	LeaseState   string
	Metadata     map[string]string
}
