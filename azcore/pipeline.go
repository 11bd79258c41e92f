// Package azcore holds the HTTP pipeline shared by every client in
// this module: policy ordering, retries, authentication, paging and
// long-running-operation polling. Service packages build their own
// typed clients on top of it.
package azcore

import (
	"net/http"

	"go.uber.org/zap"
)

const (
	headerAuthorization   = "Authorization"
	headerContentLength   = "Content-Length"
	headerContentType     = "Content-Type"
	headerRetryAfter      = "Retry-After"
	headerUserAgent       = "User-Agent"
	headerClientRequestID = "x-ms-client-request-id"
	headerReturnRequestID = "x-ms-return-client-request-id"
	headerErrorCode       = "x-ms-error-code"
)

// Policy is one stage of the pipeline. Implementations mutate or
// observe the request, call req.Next() and return the result.
type Policy interface {
	Do(req *Request) (*http.Response, error)
}

// PolicyFunc adapts a function into a Policy.
type PolicyFunc func(*Request) (*http.Response, error)

func (pf PolicyFunc) Do(req *Request) (*http.Response, error) {
	return pf(req)
}

// Transporter sends the final HTTP request. *http.Client satisfies it,
// and the recording package provides record/playback implementations.
type Transporter interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOptions carries the settings every client constructor accepts.
type ClientOptions struct {
	// Transport overrides the HTTP client used to send requests.
	Transport Transporter

	// Retry configures the retry policy.
	Retry RetryOptions

	// Telemetry configures the User-Agent header.
	Telemetry TelemetryOptions

	// Logger receives per-request log entries. Nil disables logging.
	Logger *zap.Logger

	// PerCallPolicies run once per API call, before the retry policy.
	PerCallPolicies []Policy

	// PerRetryPolicies run once per attempt, after the retry policy.
	PerRetryPolicies []Policy
}

// TelemetryOptions configures the telemetry policy.
type TelemetryOptions struct {
	// ApplicationID is prepended to the default User-Agent value.
	ApplicationID string

	// Disabled suppresses the User-Agent header entirely.
	Disabled bool
}

// Pipeline is an immutable chain of policies ending in a transport.
type Pipeline struct {
	policies []Policy
}

// PipelineOptions lets a client contribute its own policies when
// assembling a pipeline from ClientOptions.
type PipelineOptions struct {
	PerCall  []Policy
	PerRetry []Policy
}

// NewPipeline assembles the standard policy chain. The module name and
// version feed the telemetry policy. Ordering is fixed: telemetry and
// request ID first, then per-call policies, the retry policy, per-retry
// policies, logging, and finally the transport.
func NewPipeline(module, version string, plOpts PipelineOptions, options *ClientOptions) Pipeline {
	cp := ClientOptions{}
	if options != nil {
		cp = *options
	}
	if cp.Transport == nil {
		cp.Transport = http.DefaultClient
	}
	policies := []Policy{}
	if !cp.Telemetry.Disabled {
		policies = append(policies, newTelemetryPolicy(module, version, cp.Telemetry))
	}
	policies = append(policies, newClientRequestIDPolicy())
	policies = append(policies, cp.PerCallPolicies...)
	policies = append(policies, plOpts.PerCall...)
	policies = append(policies, newRetryPolicy(cp.Retry))
	policies = append(policies, cp.PerRetryPolicies...)
	policies = append(policies, plOpts.PerRetry...)
	if cp.Logger != nil {
		policies = append(policies, newLoggingPolicy(cp.Logger))
	}
	policies = append(policies, transportPolicy{trans: cp.Transport})
	return Pipeline{policies: policies}
}

// Do sends the request through the pipeline.
func (p Pipeline) Do(req *Request) (*http.Response, error) {
	req.policies = p.policies
	return req.Next()
}

type transportPolicy struct {
	trans Transporter
}

func (tp transportPolicy) Do(req *Request) (*http.Response, error) {
	resp, err := tp.trans.Do(req.Raw())
	if err != nil {
		return nil, err
	}
	if resp.Header == nil {
		resp.Header = http.Header{}
	}
	return resp, nil
}
