// Package recording runs service client tests against YAML cassettes.
// In record mode real traffic is captured, sanitized and written to
// disk; in playback mode the cassette answers instead of the network,
// so recorded tests run without credentials or a live account.
package recording

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"
)

// Mode selects how a Recorder behaves.
type Mode string

const (
	// ModeLive sends requests to the real service and records nothing.
	ModeLive Mode = "live"

	// ModeRecord sends requests to the real service and writes the
	// sanitized traffic to the cassette.
	ModeRecord Mode = "record"

	// ModePlayback answers requests from the cassette.
	ModePlayback Mode = "playback"
)

// EnvMode is the environment variable that selects the mode.
const EnvMode = "AZURE_TEST_MODE"

// GetMode returns the mode from the environment, defaulting to
// playback so recorded suites run offline.
func GetMode() Mode {
	switch strings.ToLower(os.Getenv(EnvMode)) {
	case string(ModeLive):
		return ModeLive
	case string(ModeRecord):
		return ModeRecord
	default:
		return ModePlayback
	}
}

// cassette is the on-disk recording format.
type cassette struct {
	Version      int               `yaml:"version"`
	Variables    map[string]string `yaml:"variables,omitempty"`
	Interactions []interaction     `yaml:"interactions"`
}

type interaction struct {
	Request  recordedRequest  `yaml:"request"`
	Response recordedResponse `yaml:"response"`
}

type recordedRequest struct {
	Method  string            `yaml:"method"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Body    string            `yaml:"body,omitempty"`
}

type recordedResponse struct {
	StatusCode int               `yaml:"status_code"`
	Headers    map[string]string `yaml:"headers,omitempty"`
	Body       string            `yaml:"body,omitempty"`
}

const cassetteVersion = 1

// Recorder is a Transporter for test pipelines. Plug it into a
// client's Transport and drive the client as usual.
type Recorder struct {
	mode      Mode
	path      string
	transport *http.Client

	mu           sync.Mutex
	cassette     cassette
	used         []bool
	dirty        bool
	stopped      bool
	replacements [][2]string
}

// Start opens the cassette for the current test. The cassette file is
// <cassetteDir>/<test name>.yaml. Stop is registered as a test
// cleanup, so recordings are written even when the caller forgets.
func Start(t *testing.T, cassetteDir string) (*Recorder, error) {
	name := strings.ReplaceAll(t.Name(), "/", "_")
	r := &Recorder{
		mode:      GetMode(),
		path:      filepath.Join(cassetteDir, name+".yaml"),
		transport: http.DefaultClient,
		cassette:  cassette{Version: cassetteVersion, Variables: map[string]string{}},
	}
	if r.mode == ModePlayback {
		data, err := os.ReadFile(r.path)
		if err != nil {
			return nil, fmt.Errorf("recording: no cassette for %s, record it first: %w", t.Name(), err)
		}
		if err := yaml.Unmarshal(data, &r.cassette); err != nil {
			return nil, fmt.Errorf("recording: corrupt cassette %s: %w", r.path, err)
		}
		r.used = make([]bool, len(r.cassette.Interactions))
	}
	t.Cleanup(func() {
		if err := r.Stop(); err != nil {
			t.Errorf("recording: %v", err)
		}
	})
	return r, nil
}

// Mode returns the recorder's mode.
func (r *Recorder) Mode() Mode {
	return r.mode
}

// Variables is mutable run data persisted with the cassette, such as
// generated resource names a playback run must reuse.
func (r *Recorder) Variables() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cassette.Variables
}

// AddReplacement rewrites value to replacement in recorded URLs and
// bodies, and applies the same rewrite when matching during playback.
// Use it for per-run values such as real account names.
func (r *Recorder) AddReplacement(value, replacement string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replacements = append(r.replacements, [2]string{value, replacement})
}

func (r *Recorder) replace(s string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pair := range r.replacements {
		s = strings.ReplaceAll(s, pair[0], pair[1])
	}
	return s
}

// Do implements azcore.Transporter.
func (r *Recorder) Do(req *http.Request) (*http.Response, error) {
	switch r.mode {
	case ModePlayback:
		return r.playback(req)
	case ModeRecord:
		return r.record(req)
	default:
		return r.transport.Do(req)
	}
}

// Stop writes the cassette in record mode. It is safe to call more
// than once.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || r.mode != ModeRecord || !r.dirty {
		r.stopped = true
		return nil
	}
	r.stopped = true
	data, err := yaml.Marshal(r.cassette)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(r.path, data, 0o644)
}

func (r *Recorder) record(req *http.Request) (*http.Response, error) {
	reqBody, err := drainRequestBody(req)
	if err != nil {
		return nil, err
	}
	resp, err := r.transport.Do(req)
	if err != nil {
		return nil, err
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	recordedURL := r.replace(sanitizeURL(req.URL))
	recordedReqBody := r.replace(string(reqBody))
	recordedRespBody := r.replace(string(respBody))

	r.mu.Lock()
	r.cassette.Interactions = append(r.cassette.Interactions, interaction{
		Request: recordedRequest{
			Method:  req.Method,
			URL:     recordedURL,
			Headers: sanitizeHeaders(req.Header),
			Body:    recordedReqBody,
		},
		Response: recordedResponse{
			StatusCode: resp.StatusCode,
			Headers:    sanitizeHeaders(resp.Header),
			Body:       recordedRespBody,
		},
	})
	r.dirty = true
	r.mu.Unlock()
	return resp, nil
}

func (r *Recorder) playback(req *http.Request) (*http.Response, error) {
	if _, err := drainRequestBody(req); err != nil {
		return nil, err
	}
	wantURL := r.replace(sanitizeURL(req.URL))

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, recorded := range r.cassette.Interactions {
		if r.used[i] || recorded.Request.Method != req.Method || recorded.Request.URL != wantURL {
			continue
		}
		r.used[i] = true
		header := http.Header{}
		for name, value := range recorded.Response.Headers {
			header.Set(name, value)
		}
		return &http.Response{
			StatusCode:    recorded.Response.StatusCode,
			Status:        http.StatusText(recorded.Response.StatusCode),
			Header:        header,
			Body:          io.NopCloser(strings.NewReader(recorded.Response.Body)),
			ContentLength: int64(len(recorded.Response.Body)),
			Request:       req,
			Proto:         "HTTP/1.1",
			ProtoMajor:    1,
			ProtoMinor:    1,
		}, nil
	}
	return nil, fmt.Errorf("recording: no recorded interaction for %s %s", req.Method, wantURL)
}

func drainRequestBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// droppedHeaders never reach a cassette. Credentials and per-run
// values would make recordings both secret-bearing and unmatchable.
var droppedHeaders = map[string]bool{
	"Authorization":          true,
	"X-Ms-Date":              true,
	"X-Ms-Content-Sha256":    true,
	"X-Ms-Client-Request-Id": true,
	"Cookie":                 true,
	"Set-Cookie":             true,
	"Date":                   true,
}

// secretQueryParams have their values scrubbed from recorded URLs.
var secretQueryParams = []string{"sig", "Secret", "se", "st"}

func sanitizeHeaders(header http.Header) map[string]string {
	out := map[string]string{}
	for name, values := range header {
		if droppedHeaders[http.CanonicalHeaderKey(name)] || len(values) == 0 {
			continue
		}
		out[name] = values[0]
	}
	return out
}

func sanitizeURL(u *url.URL) string {
	sanitized := *u
	query := sanitized.Query()
	for _, param := range secretQueryParams {
		if query.Has(param) {
			query.Set(param, "REDACTED")
		}
	}
	sanitized.RawQuery = query.Encode()
	return sanitized.String()
}
