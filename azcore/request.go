package azcore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
)

// Request wraps an *http.Request as it travels through the pipeline.
// The body is kept as a seeker so the retry policy can rewind it
// before every attempt.
type Request struct {
	req      *http.Request
	body     io.ReadSeekCloser
	policies []Policy
}

// NewRequest creates a Request to be sent through a Pipeline.
func NewRequest(ctx context.Context, method string, endpoint string) (*Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if req.URL.Host == "" {
		return nil, errors.New("azcore: no host in request URL")
	}
	return &Request{req: req}, nil
}

// Raw returns the underlying HTTP request.
func (req *Request) Raw() *http.Request {
	return req.req
}

// SetBody sets the request body and Content-Type. A nil body clears
// any previously set body.
func (req *Request) SetBody(body io.ReadSeekCloser, contentType string) error {
	if body == nil {
		req.body = nil
		req.req.Body = nil
		req.req.ContentLength = 0
		req.req.Header.Del(headerContentType)
		return nil
	}
	size, err := body.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if _, err = body.Seek(0, io.SeekStart); err != nil {
		return err
	}
	req.body = body
	req.req.Body = body
	req.req.ContentLength = size
	req.req.Header.Set(headerContentLength, strconv.FormatInt(size, 10))
	if contentType != "" {
		req.req.Header.Set(headerContentType, contentType)
	}
	return nil
}

// RewindBody seeks the body back to its beginning so the request can
// be replayed.
func (req *Request) RewindBody() error {
	if req.body == nil {
		return nil
	}
	_, err := req.body.Seek(0, io.SeekStart)
	req.req.Body = req.body
	return err
}

// Body returns the rewindable request body, or nil when there is none.
func (req *Request) Body() io.ReadSeekCloser {
	return req.body
}

// Next calls the next policy in the pipeline. Policies call this to
// pass the request along after doing their own work.
func (req *Request) Next() (*http.Response, error) {
	if len(req.policies) == 0 {
		return nil, errors.New("azcore: no more policies")
	}
	nextReq := *req
	nextReq.policies = req.policies[1:]
	return req.policies[0].Do(&nextReq)
}

// NopCloser wraps a ReadSeeker into a ReadSeekCloser with a no-op
// Close, the usual way to hand a byte buffer to SetBody.
func NopCloser(rs io.ReadSeeker) io.ReadSeekCloser {
	return nopCloser{rs}
}

type nopCloser struct {
	io.ReadSeeker
}

func (nopCloser) Close() error { return nil }
