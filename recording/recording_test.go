package recording

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/csmu-cenr/go-azure/azcore"
)

// stampPolicy simulates an auth policy so sanitization has something
// to scrub.
type stampPolicy struct{}

func (stampPolicy) Do(req *azcore.Request) (*http.Response, error) {
	req.Raw().Header.Set("Authorization", "SharedKey account:secret")
	req.Raw().Header.Set("x-ms-date", "Mon, 09 Mar 2026 14:30:05 GMT")
	return req.Next()
}

func testPipeline(transport azcore.Transporter) azcore.Pipeline {
	return azcore.NewPipeline("recordingtest", "0.0.1",
		azcore.PipelineOptions{PerRetry: []azcore.Policy{stampPolicy{}}},
		&azcore.ClientOptions{
			Transport: transport,
			Retry:     azcore.RetryOptions{MaxRetries: -1},
		})
}

func get(t *testing.T, pl azcore.Pipeline, endpoint string) *http.Response {
	t.Helper()
	req, err := azcore.NewRequest(context.Background(), http.MethodGet, endpoint)
	require.NoError(t, err)
	resp, err := pl.Do(req)
	require.NoError(t, err)
	return resp
}

func TestRecordThenPlayback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ms-request-id", "req-1")
		fmt.Fprintf(w, "payload for %s", r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	dir := t.TempDir()

	t.Setenv(EnvMode, string(ModeRecord))
	recorder, err := Start(t, dir)
	require.NoError(t, err)
	recorder.Variables()["container"] = "data-1234"

	pl := testPipeline(recorder)
	resp := get(t, pl, srv.URL+"/first?sig=supersecret")
	body, err := azcore.Payload(resp)
	require.NoError(t, err)
	assert.Equal(t, "payload for /first", string(body))
	require.NoError(t, recorder.Stop())

	// The cassette holds the sanitized interaction.
	data, err := os.ReadFile(filepath.Join(dir, strings.ReplaceAll(t.Name(), "/", "_")+".yaml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "supersecret")
	assert.NotContains(t, string(data), "SharedKey")
	assert.Contains(t, string(data), "REDACTED")

	var saved cassette
	require.NoError(t, yaml.Unmarshal(data, &saved))
	require.Len(t, saved.Interactions, 1)
	assert.Equal(t, "data-1234", saved.Variables["container"])
	assert.Equal(t, http.StatusOK, saved.Interactions[0].Response.StatusCode)

	// Play it back with the server gone.
	srv.Close()
	t.Setenv(EnvMode, string(ModePlayback))
	playback, err := Start(t, dir)
	require.NoError(t, err)
	assert.Equal(t, "data-1234", playback.Variables()["container"])

	resp = get(t, testPipeline(playback), srv.URL+"/first?sig=differentsecret")
	body, err = azcore.Payload(resp)
	require.NoError(t, err)
	assert.Equal(t, "payload for /first", string(body))
	assert.Equal(t, "req-1", resp.Header.Get("x-ms-request-id"))
}

func TestPlaybackUnknownRequest(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvMode, string(ModeRecord))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(srv.Close)

	recorder, err := Start(t, dir)
	require.NoError(t, err)
	get(t, testPipeline(recorder), srv.URL+"/known")
	require.NoError(t, recorder.Stop())

	t.Setenv(EnvMode, string(ModePlayback))
	playback, err := Start(t, dir)
	require.NoError(t, err)

	req, err := azcore.NewRequest(context.Background(), http.MethodGet, srv.URL+"/unknown")
	require.NoError(t, err)
	_, err = testPipeline(playback).Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recorded interaction")
}

func TestPlaybackMissingCassette(t *testing.T) {
	t.Setenv(EnvMode, string(ModePlayback))
	_, err := Start(t, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cassette")
}

func TestGetModeDefaultsToPlayback(t *testing.T) {
	t.Setenv(EnvMode, "")
	assert.Equal(t, ModePlayback, GetMode())
	t.Setenv(EnvMode, "record")
	assert.Equal(t, ModeRecord, GetMode())
	t.Setenv(EnvMode, "LIVE")
	assert.Equal(t, ModeLive, GetMode())
}

func TestAddReplacementScrubsAccountNames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "owned by realaccount")
	}))
	t.Cleanup(srv.Close)
	dir := t.TempDir()

	t.Setenv(EnvMode, string(ModeRecord))
	recorder, err := Start(t, dir)
	require.NoError(t, err)
	recorder.AddReplacement("realaccount", "fakeaccount")

	get(t, testPipeline(recorder), srv.URL+"/realaccount/container")
	require.NoError(t, recorder.Stop())

	data, err := os.ReadFile(filepath.Join(dir, t.Name()+".yaml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "realaccount")
	assert.Contains(t, string(data), "fakeaccount")

	// Playback matches when the same replacement is registered.
	t.Setenv(EnvMode, string(ModePlayback))
	playback, err := Start(t, dir)
	require.NoError(t, err)
	playback.AddReplacement("realaccount", "fakeaccount")
	resp := get(t, testPipeline(playback), srv.URL+"/realaccount/container")
	body, err := azcore.Payload(resp)
	require.NoError(t, err)
	assert.Equal(t, "owned by fakeaccount", string(body))
}

func TestSanitizeURL(t *testing.T) {
	u, err := url.Parse("https://fakeaccount.blob.core.windows.net/c/b?sig=abc&sv=2021-12-02")
	require.NoError(t, err)
	sanitized := sanitizeURL(u)
	assert.NotContains(t, sanitized, "abc")
	assert.Contains(t, sanitized, "sv=2021-12-02")
}
