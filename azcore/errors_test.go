package azcore

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeResponse(status int, header http.Header, body string) *http.Response {
	u, _ := url.Parse("https://fake.vault.azure.net/secrets/name?sig=secret")
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Request:    &http.Request{Method: http.MethodGet, URL: u},
	}
}

func TestNewResponseErrorFromHeader(t *testing.T) {
	header := http.Header{}
	header.Set("x-ms-error-code", "BlobNotFound")
	err := NewResponseError(fakeResponse(http.StatusNotFound, header, ""))

	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "BlobNotFound", respErr.ErrorCode)
	assert.Equal(t, http.StatusNotFound, respErr.StatusCode)
}

func TestNewResponseErrorFromBody(t *testing.T) {
	body := `{"error":{"code":"SecretNotFound","message":"not found"}}`
	err := NewResponseError(fakeResponse(http.StatusNotFound, nil, body))

	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "SecretNotFound", respErr.ErrorCode)

	// The body must still be readable after error construction.
	payload, readErr := io.ReadAll(respErr.RawResponse.Body)
	require.NoError(t, readErr)
	assert.Equal(t, body, string(payload))
}

func TestNewResponseErrorFlatCode(t *testing.T) {
	err := NewResponseError(fakeResponse(http.StatusConflict, nil, `{"code":"Conflict"}`))
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "Conflict", respErr.ErrorCode)
}

func TestResponseErrorRedactsSignature(t *testing.T) {
	err := NewResponseError(fakeResponse(http.StatusForbidden, nil, ""))
	assert.NotContains(t, err.Error(), "sig=secret")
	assert.Contains(t, err.Error(), "sig=REDACTED")
}

func TestHasStatusCode(t *testing.T) {
	resp := fakeResponse(http.StatusAccepted, nil, "")
	assert.True(t, HasStatusCode(resp, http.StatusOK, http.StatusAccepted))
	assert.False(t, HasStatusCode(resp, http.StatusOK))
	assert.False(t, HasStatusCode(nil, http.StatusOK))
}

func TestETag(t *testing.T) {
	strong := ETag(`"abc"`)
	weak := ETag(`W/"abc"`)
	other := ETag(`"xyz"`)

	assert.True(t, strong.Equals(strong))
	assert.False(t, strong.Equals(weak), "weak tags never match strongly")
	assert.False(t, strong.Equals(other))
	assert.True(t, strong.WeakEquals(weak))
	assert.True(t, weak.IsWeak())
	assert.False(t, strong.IsWeak())
	assert.False(t, ETagAny.IsWeak())
}
