package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/csmu-cenr/go-azure/azcore"
)

// SharedKeyCredential authenticates requests with the storage
// account's access key.
type SharedKeyCredential struct {
	accountName string
	accountKey  []byte
}

// NewSharedKeyCredential creates a SharedKeyCredential from the
// account name and its base64-encoded key.
func NewSharedKeyCredential(accountName, accountKey string) (*SharedKeyCredential, error) {
	if accountName == "" {
		return nil, errors.New("storage: account name is required")
	}
	key, err := base64.StdEncoding.DecodeString(accountKey)
	if err != nil {
		return nil, fmt.Errorf("storage: account key is not valid base64: %w", err)
	}
	return &SharedKeyCredential{accountName: accountName, accountKey: key}, nil
}

// AccountName returns the storage account name.
func (c *SharedKeyCredential) AccountName() string {
	return c.accountName
}

// ComputeHMACSHA256 signs the message with the account key and
// returns the base64 signature. The sas package signs through this.
func (c *SharedKeyCredential) ComputeHMACSHA256(message string) (string, error) {
	mac := hmac.New(sha256.New, c.accountKey)
	if _, err := mac.Write([]byte(message)); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// buildStringToSign assembles the Shared Key payload: the standard
// headers in their fixed order, then canonicalized x-ms-* headers,
// then the canonicalized resource.
func (c *SharedKeyCredential) buildStringToSign(req *http.Request) (string, error) {
	headers := req.Header
	contentLength := headers.Get("Content-Length")
	if contentLength == "0" {
		contentLength = ""
	}
	canonicalizedResource, err := c.buildCanonicalizedResource(req.URL)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{
		req.Method,
		headers.Get("Content-Encoding"),
		headers.Get("Content-Language"),
		contentLength,
		headers.Get("Content-MD5"),
		headers.Get("Content-Type"),
		"", // Date is always empty; x-ms-date is signed instead
		headers.Get("If-Modified-Since"),
		headers.Get("If-Match"),
		headers.Get("If-None-Match"),
		headers.Get("If-Unmodified-Since"),
		headers.Get("Range"),
		c.buildCanonicalizedHeaders(headers) + canonicalizedResource,
	}, "\n"), nil
}

// buildCanonicalizedHeaders renders every x-ms-* header, lowercased
// and sorted, as "name:value\n".
func (c *SharedKeyCredential) buildCanonicalizedHeaders(headers http.Header) string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "x-ms-") {
			names = append(names, lower)
		}
	}
	sort.Strings(names)
	b := strings.Builder{}
	for _, name := range names {
		b.WriteString(name)
		b.WriteString(":")
		b.WriteString(strings.Join(headers.Values(name), ","))
		b.WriteString("\n")
	}
	return b.String()
}

// buildCanonicalizedResource is "/<account><path>" plus every query
// parameter, lowercased and sorted, as "\nname:value1,value2".
func (c *SharedKeyCredential) buildCanonicalizedResource(u *url.URL) (string, error) {
	b := strings.Builder{}
	b.WriteString("/")
	b.WriteString(c.accountName)
	if u.EscapedPath() == "" {
		b.WriteString("/")
	} else {
		b.WriteString(u.EscapedPath())
	}
	params, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", fmt.Errorf("storage: malformed query: %w", err)
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, strings.ToLower(name))
	}
	sort.Strings(names)
	for _, name := range names {
		values := params[name]
		sort.Strings(values)
		b.WriteString("\n")
		b.WriteString(name)
		b.WriteString(":")
		b.WriteString(strings.Join(values, ","))
	}
	return b.String(), nil
}

// sharedKeyPolicy signs every request with the account key.
type sharedKeyPolicy struct {
	cred *SharedKeyCredential
}

func (p *sharedKeyPolicy) Do(req *azcore.Request) (*http.Response, error) {
	raw := req.Raw()
	if raw.Header.Get(headerDate) == "" {
		raw.Header.Set(headerDate, time.Now().UTC().Format(http.TimeFormat))
	}
	stringToSign, err := p.cred.buildStringToSign(raw)
	if err != nil {
		return nil, err
	}
	signature, err := p.cred.ComputeHMACSHA256(stringToSign)
	if err != nil {
		return nil, err
	}
	raw.Header.Set("Authorization", fmt.Sprintf("SharedKey %s:%s", p.cred.accountName, signature))
	return req.Next()
}
