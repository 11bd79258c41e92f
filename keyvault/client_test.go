package keyvault

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csmu-cenr/go-azure/azcore"
	"github.com/csmu-cenr/go-azure/dates"
	"github.com/csmu-cenr/go-azure/to"
)

type fakeTokenCredential struct{}

func (fakeTokenCredential) GetToken(ctx context.Context, options azcore.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: "vault-token", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

// testVaultClient serves over TLS because the bearer token policy
// refuses to send credentials on plain HTTP.
func testVaultClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL, fakeTokenCredential{}, &ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: srv.Client(),
			Retry:     azcore.RetryOptions{MaxRetries: -1},
		},
	})
	require.NoError(t, err)
	return client, srv
}

func TestSetAndGetSecret(t *testing.T) {
	store := map[string]Secret{}
	var srv *httptest.Server
	client, srv := testVaultClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, apiVersion, r.URL.Query().Get("api-version"))
		switch r.Method {
		case http.MethodPut:
			var body struct {
				Value       string `json:"value"`
				ContentType string `json:"contentType"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			secret := Secret{
				ID:          srv.URL + r.URL.Path + "/abc123",
				Value:       body.Value,
				ContentType: body.ContentType,
				Attributes: &SecretAttributes{
					Enabled: to.Ptr(true),
					Created: to.Ptr(dates.Unix(time.Unix(1773066605, 0))),
				},
			}
			store[r.URL.Path] = secret
			json.NewEncoder(w).Encode(secret)
		case http.MethodGet:
			secret, ok := store[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(secret)
		}
	}))

	set, err := client.SetSecret(context.Background(), "db-password", "hunter2",
		&SetSecretOptions{ContentType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, "db-password", set.Name())
	assert.Equal(t, "abc123", set.Version())

	got, err := client.GetSecret(context.Background(), "db-password", nil)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got.Value)
	assert.Equal(t, "text/plain", got.ContentType)
	require.NotNil(t, got.Attributes)
	assert.True(t, *got.Attributes.Enabled)
}

func TestGetSecretSendsBearerToken(t *testing.T) {
	var auth string
	client, _ := testVaultClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(Secret{Value: "v"})
	}))

	_, err := client.GetSecret(context.Background(), "s", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(client.VaultURL(), "https://"))
	assert.Equal(t, "Bearer vault-token", auth)
}

func TestGetSecretNotFound(t *testing.T) {
	client, _ := testVaultClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":"SecretNotFound","message":"not found"}}`)
	}))

	_, err := client.GetSecret(context.Background(), "missing", nil)
	var respErr *azcore.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "SecretNotFound", respErr.ErrorCode)
}

func TestUpdateSecretProperties(t *testing.T) {
	client, _ := testVaultClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/secrets/db-password/abc123", r.URL.Path)
		var body SecretProperties
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		body.ID = "https://vault/secrets/db-password/abc123"
		json.NewEncoder(w).Encode(body)
	}))

	updated, err := client.UpdateSecretProperties(context.Background(), "db-password",
		SecretProperties{ContentType: "application/json", Tags: map[string]string{"env": "prod"}},
		&UpdateSecretPropertiesOptions{Version: "abc123"})
	require.NoError(t, err)
	assert.Equal(t, "application/json", updated.ContentType)
	assert.Equal(t, map[string]string{"env": "prod"}, updated.Tags)
}

func TestListSecretsPagerFollowsNextLink(t *testing.T) {
	var srv *httptest.Server
	client, srv := testVaultClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/secrets", r.URL.Path)
		if r.URL.Query().Get("$skiptoken") == "" {
			fmt.Fprintf(w, `{"value":[{"id":"%s/secrets/one"}],"nextLink":"%s/secrets?api-version=%s&$skiptoken=tok"}`,
				srv.URL, srv.URL, apiVersion)
			return
		}
		fmt.Fprintf(w, `{"value":[{"id":"%s/secrets/two"}]}`, srv.URL)
	}))

	var names []string
	pager := client.NewListSecretsPager()
	for pager.More() {
		page, err := pager.NextPage(context.Background())
		require.NoError(t, err)
		for _, item := range page.Items {
			names = append(names, item.Name())
		}
	}
	assert.Equal(t, []string{"one", "two"}, names)
}

func TestBeginDeleteSecretPollsUntilVisible(t *testing.T) {
	polls := 0
	var srv *httptest.Server
	client, srv := testVaultClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete && r.URL.Path == "/secrets/db-password":
			fmt.Fprintf(w, `{"id":"%s/secrets/db-password/abc123","recoveryId":"%s/deletedsecrets/db-password"}`, srv.URL, srv.URL)
		case r.Method == http.MethodGet && r.URL.Path == "/deletedsecrets/db-password":
			polls++
			if polls < 3 {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			fmt.Fprintf(w, `{"id":"%s/secrets/db-password/abc123","recoveryId":"%s/deletedsecrets/db-password","deletedDate":1773066605}`, srv.URL, srv.URL)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	poller, err := client.BeginDeleteSecret(context.Background(), "db-password")
	require.NoError(t, err)
	assert.False(t, poller.Done())

	deleted, err := poller.PollUntilDone(context.Background(), time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, polls)
	assert.Equal(t, "db-password", deleted.Name())
	require.NotNil(t, deleted.DeletedDate)
	assert.Equal(t, int64(1773066605), time.Time(*deleted.DeletedDate).Unix())
}

func TestBeginRecoverDeletedSecret(t *testing.T) {
	recovered := false
	var srv *httptest.Server
	client, srv := testVaultClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/deletedsecrets/db-password/recover":
			fmt.Fprintf(w, `{"id":"%s/secrets/db-password/abc123"}`, srv.URL)
		case r.Method == http.MethodGet && r.URL.Path == "/secrets/db-password":
			if !recovered {
				recovered = true
				w.WriteHeader(http.StatusNotFound)
				return
			}
			fmt.Fprintf(w, `{"id":"%s/secrets/db-password/abc123"}`, srv.URL)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	poller, err := client.BeginRecoverDeletedSecret(context.Background(), "db-password")
	require.NoError(t, err)
	props, err := poller.PollUntilDone(context.Background(), time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "db-password", props.Name())
}

func TestPurgeDeletedSecret(t *testing.T) {
	client, _ := testVaultClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/deletedsecrets/db-password", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, client.PurgeDeletedSecret(context.Background(), "db-password"))
}

func TestParseID(t *testing.T) {
	name, version := parseID("https://myvault.vault.azure.net/secrets/mysecret/abc123")
	assert.Equal(t, "mysecret", name)
	assert.Equal(t, "abc123", version)

	name, version = parseID("https://myvault.vault.azure.net/deletedsecrets/mysecret")
	assert.Equal(t, "mysecret", name)
	assert.Empty(t, version)

	name, _ = parseID("")
	assert.Empty(t, name)
}
