package azcore

import (
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// loggingPolicy sits after the retry policy so each attempt is logged
// separately. Credentials never reach the log: the Authorization
// header is skipped and SAS signatures in the URL are redacted.
type loggingPolicy struct {
	logger *zap.Logger
}

func newLoggingPolicy(logger *zap.Logger) *loggingPolicy {
	return &loggingPolicy{logger: logger}
}

func (p *loggingPolicy) Do(req *Request) (*http.Response, error) {
	start := time.Now()
	endpoint := sanitizeURL(req.Raw().URL)
	resp, err := req.Next()
	fields := []zap.Field{
		zap.String("method", req.Raw().Method),
		zap.String("url", endpoint),
		zap.Duration("duration", time.Since(start)),
		zap.String("clientRequestID", req.Raw().Header.Get(headerClientRequestID)),
	}
	if err != nil {
		p.logger.Error("request failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	p.logger.Info("request complete", append(fields, zap.Int("status", resp.StatusCode))...)
	return resp, nil
}

// redactedQueryParams are query values that carry secrets.
var redactedQueryParams = []string{"sig", "Secret"}

func sanitizeURL(u *url.URL) string {
	query := u.Query()
	redacted := false
	for _, param := range redactedQueryParams {
		if query.Has(param) {
			query.Set(param, "REDACTED")
			redacted = true
		}
	}
	if !redacted {
		return u.String()
	}
	clean := *u
	clean.RawQuery = query.Encode()
	return clean.String()
}
