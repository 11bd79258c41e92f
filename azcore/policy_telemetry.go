package azcore

import (
	"fmt"
	"net/http"
	"runtime"
)

type telemetryPolicy struct {
	userAgent string
}

func newTelemetryPolicy(module, version string, options TelemetryOptions) *telemetryPolicy {
	ua := fmt.Sprintf("azsdk-go-%s/%s (%s; %s)", module, version, runtime.GOOS, runtime.GOARCH)
	if options.ApplicationID != "" {
		ua = options.ApplicationID + " " + ua
	}
	return &telemetryPolicy{userAgent: ua}
}

func (p *telemetryPolicy) Do(req *Request) (*http.Response, error) {
	// Leave a caller-supplied User-Agent alone.
	if req.Raw().Header.Get(headerUserAgent) == "" {
		req.Raw().Header.Set(headerUserAgent, p.userAgent)
	}
	return req.Next()
}
