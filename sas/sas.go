// Package sas builds Shared Access Signatures: HMAC-signed query
// strings granting time-limited access to storage resources.
package sas

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Version is the storage service version stamped into signatures.
const Version = "2021-12-02"

// Credential signs SAS string-to-sign payloads. The storage package's
// SharedKeyCredential satisfies it.
type Credential interface {
	AccountName() string
	ComputeHMACSHA256(message string) (string, error)
}

// Protocol restricts the schemes a SAS may be used over.
type Protocol string

const (
	ProtocolHTTPS        Protocol = "https"
	ProtocolHTTPSandHTTP Protocol = "https,http"
)

// formatTime renders SAS times the way the service expects:
// yyyy-mm-ddThh:mm:ssZ, UTC.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// Query parameter names, shared by account and service SAS.
const (
	paramVersion            = "sv"
	paramServices           = "ss"
	paramResourceTypes      = "srt"
	paramProtocol           = "spr"
	paramStart              = "st"
	paramExpiry             = "se"
	paramIP                 = "sip"
	paramIdentifier         = "si"
	paramResource           = "sr"
	paramPermissions        = "sp"
	paramSignature          = "sig"
	paramCacheControl       = "rscc"
	paramContentDisposition = "rscd"
	paramContentEncoding    = "rsce"
	paramContentLanguage    = "rscl"
	paramContentType        = "rsct"
)

// QueryParameters holds the components of a signed SAS token.
type QueryParameters struct {
	Version            string
	Services           string
	ResourceTypes      string
	Protocol           Protocol
	Start              string
	Expiry             string
	IPRange            string
	Identifier         string
	Resource           string
	Permissions        string
	Signature          string
	CacheControl       string
	ContentDisposition string
	ContentEncoding    string
	ContentLanguage    string
	ContentType        string
}

// Encode returns the token as a query string, ready to append to a
// resource URL.
func (p QueryParameters) Encode() string {
	values := url.Values{}
	add := func(name, value string) {
		if value != "" {
			values.Set(name, value)
		}
	}
	add(paramVersion, p.Version)
	add(paramServices, p.Services)
	add(paramResourceTypes, p.ResourceTypes)
	add(paramProtocol, string(p.Protocol))
	add(paramStart, p.Start)
	add(paramExpiry, p.Expiry)
	add(paramIP, p.IPRange)
	add(paramIdentifier, p.Identifier)
	add(paramResource, p.Resource)
	add(paramPermissions, p.Permissions)
	add(paramCacheControl, p.CacheControl)
	add(paramContentDisposition, p.ContentDisposition)
	add(paramContentEncoding, p.ContentEncoding)
	add(paramContentLanguage, p.ContentLanguage)
	add(paramContentType, p.ContentType)
	add(paramSignature, p.Signature)
	return values.Encode()
}

// NewQueryParameters parses a SAS token out of url.Values.
func NewQueryParameters(values url.Values) QueryParameters {
	return QueryParameters{
		Version:            values.Get(paramVersion),
		Services:           values.Get(paramServices),
		ResourceTypes:      values.Get(paramResourceTypes),
		Protocol:           Protocol(values.Get(paramProtocol)),
		Start:              values.Get(paramStart),
		Expiry:             values.Get(paramExpiry),
		IPRange:            values.Get(paramIP),
		Identifier:         values.Get(paramIdentifier),
		Resource:           values.Get(paramResource),
		Permissions:        values.Get(paramPermissions),
		Signature:          values.Get(paramSignature),
		CacheControl:       values.Get(paramCacheControl),
		ContentDisposition: values.Get(paramContentDisposition),
		ContentEncoding:    values.Get(paramContentEncoding),
		ContentLanguage:    values.Get(paramContentLanguage),
		ContentType:        values.Get(paramContentType),
	}
}

var errExpiryRequired = errors.New("sas: an expiry time is required")

// parsePermissionFlags validates that raw only contains characters
// from allowed and returns them in allowed's canonical order.
func parsePermissionFlags(raw, allowed string) (string, error) {
	for _, c := range raw {
		if !strings.ContainsRune(allowed, c) {
			return "", errors.New("sas: invalid permission flag " + string(c))
		}
	}
	ordered := strings.Builder{}
	for _, c := range allowed {
		if strings.ContainsRune(raw, c) {
			ordered.WriteRune(c)
		}
	}
	return ordered.String(), nil
}
