package sas

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCredential struct {
	account string
	key     []byte
}

func newTestCredential(t *testing.T) testCredential {
	t.Helper()
	return testCredential{
		account: "fakeaccount",
		key:     []byte("0123456789abcdef0123456789abcdef"),
	}
}

func (c testCredential) AccountName() string { return c.account }

func (c testCredential) ComputeHMACSHA256(message string) (string, error) {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

func (c testCredential) sign(t *testing.T, stringToSign string) string {
	t.Helper()
	sig, err := c.ComputeHMACSHA256(stringToSign)
	require.NoError(t, err)
	return sig
}

func TestAccountSASSignature(t *testing.T) {
	cred := newTestCredential(t)
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	expiry := start.Add(24 * time.Hour)

	params, err := AccountSignatureValues{
		Protocol:      ProtocolHTTPS,
		Start:         start,
		Expiry:        expiry,
		Permissions:   AccountPermissions{Read: true, Write: true, List: true},
		Services:      AccountServices{Blob: true},
		ResourceTypes: AccountResourceTypes{Service: true, Container: true, Object: true},
	}.SignWithSharedKey(cred)
	require.NoError(t, err)

	assert.Equal(t, "rwl", params.Permissions)
	assert.Equal(t, "b", params.Services)
	assert.Equal(t, "sco", params.ResourceTypes)
	assert.Equal(t, "2026-01-01T00:00:00Z", params.Start)
	assert.Equal(t, "2026-01-02T00:00:00Z", params.Expiry)

	want := cred.sign(t, "fakeaccount\nrwl\nb\nsco\n"+
		"2026-01-01T00:00:00Z\n2026-01-02T00:00:00Z\n\nhttps\n"+Version+"\n")
	assert.Equal(t, want, params.Signature)
}

func TestAccountSASRequiresExpiry(t *testing.T) {
	_, err := AccountSignatureValues{
		Permissions: AccountPermissions{Read: true},
	}.SignWithSharedKey(newTestCredential(t))
	assert.ErrorIs(t, err, errExpiryRequired)
}

func TestBlobSASSignature(t *testing.T) {
	cred := newTestCredential(t)
	expiry := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)

	params, err := BlobSignatureValues{
		Protocol:      ProtocolHTTPS,
		Expiry:        expiry,
		Permissions:   BlobPermissions{Read: true}.String(),
		ContainerName: "container",
		BlobName:      "dir/blob.txt",
		ContentType:   "text/plain",
	}.SignWithSharedKey(cred)
	require.NoError(t, err)

	assert.Equal(t, "b", params.Resource)
	want := cred.sign(t, "r\n\n2026-06-01T12:00:00Z\n"+
		"/blob/fakeaccount/container/dir/blob.txt\n\n\nhttps\n"+Version+
		"\n\n\n\n\ntext/plain")
	assert.Equal(t, want, params.Signature)
}

func TestContainerSASUsesResourceC(t *testing.T) {
	params, err := BlobSignatureValues{
		Expiry:        time.Now().Add(time.Hour),
		Permissions:   ContainerPermissions{Read: true, List: true}.String(),
		ContainerName: "container",
	}.SignWithSharedKey(newTestCredential(t))
	require.NoError(t, err)
	assert.Equal(t, "c", params.Resource)
	assert.Equal(t, "rl", params.Permissions)
}

func TestBlobSASStoredPolicyNeedsNoExpiry(t *testing.T) {
	params, err := BlobSignatureValues{
		ContainerName: "container",
		Identifier:    "policy-1",
	}.SignWithSharedKey(newTestCredential(t))
	require.NoError(t, err)
	assert.Equal(t, "policy-1", params.Identifier)
}

func TestBlobSASRequiresContainer(t *testing.T) {
	_, err := BlobSignatureValues{Expiry: time.Now()}.SignWithSharedKey(newTestCredential(t))
	assert.Error(t, err)
}

func TestQueryParametersRoundTrip(t *testing.T) {
	cred := newTestCredential(t)
	params, err := AccountSignatureValues{
		Expiry:        time.Now().Add(time.Hour),
		Permissions:   AccountPermissions{Read: true, Process: true},
		Services:      AccountServices{Blob: true, Queue: true},
		ResourceTypes: AccountResourceTypes{Object: true},
	}.SignWithSharedKey(cred)
	require.NoError(t, err)

	encoded := params.Encode()
	values, err := url.ParseQuery(encoded)
	require.NoError(t, err)
	parsed := NewQueryParameters(values)
	assert.Equal(t, params, parsed)
	assert.True(t, strings.Contains(encoded, "sig="))
}

func TestParsePermissions(t *testing.T) {
	perms, err := ParseAccountPermissions("lwr")
	require.NoError(t, err)
	assert.Equal(t, "rwl", perms.String(), "flags normalize to canonical order")

	_, err = ParseAccountPermissions("rz")
	assert.Error(t, err)

	container, err := ParseContainerPermissions("ldwcar")
	require.NoError(t, err)
	assert.Equal(t, "racwdl", container.String())
}
