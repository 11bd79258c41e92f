package azcore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:    3,
		RetryDelay:    time.Millisecond,
		MaxRetryDelay: 5 * time.Millisecond,
	}
}

func TestRetryPolicyRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pl := NewPipeline("azcore", "0.1.0", PipelineOptions{}, &ClientOptions{Retry: fastRetryOptions()})
	req, err := NewRequest(context.Background(), http.MethodGet, srv.URL)
	require.NoError(t, err)
	resp, err := pl.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestRetryPolicyReturnsLastResponseWhenExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	options := fastRetryOptions()
	options.MaxRetries = 2
	pl := NewPipeline("azcore", "0.1.0", PipelineOptions{}, &ClientOptions{Retry: options})
	req, err := NewRequest(context.Background(), http.MethodGet, srv.URL)
	require.NoError(t, err)
	resp, err := pl.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls), "initial attempt plus two retries")
}

func TestRetryPolicyDoesNotRetrySuccessOrClientError(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusNotFound, http.StatusConflict} {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(status)
		}))
		pl := NewPipeline("azcore", "0.1.0", PipelineOptions{}, &ClientOptions{Retry: fastRetryOptions()})
		req, err := NewRequest(context.Background(), http.MethodGet, srv.URL)
		require.NoError(t, err)
		resp, err := pl.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		srv.Close()

		assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "status %d", status)
	}
}

func TestRetryPolicyRewindsBody(t *testing.T) {
	var calls int32
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}))
	defer srv.Close()

	pl := NewPipeline("azcore", "0.1.0", PipelineOptions{}, &ClientOptions{Retry: fastRetryOptions()})
	req, err := NewRequest(context.Background(), http.MethodPut, srv.URL)
	require.NoError(t, err)
	require.NoError(t, req.SetBody(NopCloser(strings.NewReader("payload")), "text/plain"))
	resp, err := pl.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Len(t, bodies, 2)
	assert.Equal(t, "payload", bodies[0])
	assert.Equal(t, "payload", bodies[1], "body must be replayed in full on retry")
}

func TestRetryPolicyHonorsRetryAfter(t *testing.T) {
	var calls int32
	var gap time.Duration
	var last time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		if atomic.AddInt32(&calls, 1) == 1 {
			last = now
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		gap = now.Sub(last)
	}))
	defer srv.Close()

	options := fastRetryOptions()
	options.MaxRetryDelay = 5 * time.Second
	pl := NewPipeline("azcore", "0.1.0", PipelineOptions{}, &ClientOptions{Retry: options})
	req, err := NewRequest(context.Background(), http.MethodGet, srv.URL)
	require.NoError(t, err)
	resp, err := pl.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.GreaterOrEqual(t, gap, 900*time.Millisecond, "should wait out Retry-After")
}

func TestRetryPolicyNegativeMaxRetriesDisables(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	options := fastRetryOptions()
	options.MaxRetries = -1
	pl := NewPipeline("azcore", "0.1.0", PipelineOptions{}, &ClientOptions{Retry: options})
	req, err := NewRequest(context.Background(), http.MethodGet, srv.URL)
	require.NoError(t, err)
	resp, err := pl.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestRetryAfterParsing(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	assert.Zero(t, RetryAfter(resp))

	resp.Header.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, RetryAfter(resp))

	resp.Header.Set("Retry-After", time.Now().Add(30*time.Second).UTC().Format(http.TimeFormat))
	got := RetryAfter(resp)
	assert.Greater(t, got, 20*time.Second)
	assert.LessOrEqual(t, got, 30*time.Second)

	resp.Header.Set("Retry-After", "not-a-delay")
	assert.Zero(t, RetryAfter(resp))
}
