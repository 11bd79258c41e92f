package appconfig

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/csmu-cenr/go-azure/azcore"
)

// hmacAuthPolicy implements the App Configuration HMAC scheme: every
// request is signed over its method, path-and-query, date, host and
// body hash with the access key from the connection string.
type hmacAuthPolicy struct {
	credentialID string
	secret       []byte
}

func newHMACAuthPolicy(credentialID, secret string) (*hmacAuthPolicy, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("appconfig: access key secret is not valid base64: %w", err)
	}
	return &hmacAuthPolicy{credentialID: credentialID, secret: key}, nil
}

const signedHeaders = "x-ms-date;host;x-ms-content-sha256"

func (p *hmacAuthPolicy) Do(req *azcore.Request) (*http.Response, error) {
	raw := req.Raw()
	date := time.Now().UTC().Format(http.TimeFormat)

	contentHash, err := p.contentHash(req)
	if err != nil {
		return nil, err
	}
	stringToSign := fmt.Sprintf("%s\n%s\n%s;%s;%s",
		raw.Method, raw.URL.RequestURI(), date, raw.URL.Host, contentHash)
	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	raw.Header.Set("x-ms-date", date)
	raw.Header.Set("x-ms-content-sha256", contentHash)
	raw.Header.Set("Authorization", fmt.Sprintf(
		"HMAC-SHA256 Credential=%s&SignedHeaders=%s&Signature=%s",
		p.credentialID, signedHeaders, signature))
	return req.Next()
}

// contentHash is the base64 SHA-256 of the request body, rewound
// afterwards.
func (p *hmacAuthPolicy) contentHash(req *azcore.Request) (string, error) {
	hash := sha256.New()
	if body := req.Body(); body != nil {
		if _, err := body.Seek(0, io.SeekStart); err != nil {
			return "", err
		}
		if _, err := io.Copy(hash, body); err != nil {
			return "", err
		}
		if err := req.RewindBody(); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(hash.Sum(nil)), nil
}
