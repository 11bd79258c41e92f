package azcore

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryOptions configures the retry policy.
type RetryOptions struct {
	// MaxRetries is the number of retries after the initial attempt.
	// Zero means the default of 3; a negative value disables retries.
	MaxRetries int32

	// RetryDelay is the base delay between attempts. Zero means the
	// default of 800ms; a negative value means no delay.
	RetryDelay time.Duration

	// MaxRetryDelay caps the delay between attempts. Zero means the
	// default of 60s.
	MaxRetryDelay time.Duration

	// StatusCodes overrides the set of HTTP status codes considered
	// retriable.
	StatusCodes []int
}

var defaultRetryStatusCodes = []int{
	http.StatusRequestTimeout,      // 408
	http.StatusTooManyRequests,     // 429
	http.StatusInternalServerError, // 500
	http.StatusBadGateway,          // 502
	http.StatusServiceUnavailable,  // 503
	http.StatusGatewayTimeout,      // 504
}

type retryPolicy struct {
	options RetryOptions
}

func newRetryPolicy(options RetryOptions) *retryPolicy {
	if options.MaxRetries == 0 {
		options.MaxRetries = 3
	} else if options.MaxRetries < 0 {
		options.MaxRetries = 0
	}
	if options.RetryDelay == 0 {
		options.RetryDelay = 800 * time.Millisecond
	} else if options.RetryDelay < 0 {
		options.RetryDelay = 0
	}
	if options.MaxRetryDelay == 0 {
		options.MaxRetryDelay = 60 * time.Second
	}
	if options.StatusCodes == nil {
		options.StatusCodes = defaultRetryStatusCodes
	}
	return &retryPolicy{options: options}
}

// retriableStatusError carries a response with a retriable status
// through retry-go so the delay function can read Retry-After.
type retriableStatusError struct {
	resp *http.Response
}

func (e *retriableStatusError) Error() string {
	return fmt.Sprintf("retriable status code %d", e.resp.StatusCode)
}

func (p *retryPolicy) Do(req *Request) (*http.Response, error) {
	var resp *http.Response
	err := retry.Do(
		func() error {
			if resp != nil {
				// Drop the previous attempt before replaying.
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				resp = nil
			}
			if err := req.RewindBody(); err != nil {
				return retry.Unrecoverable(err)
			}
			r, err := req.Next()
			if err != nil {
				return err
			}
			resp = r
			if p.shouldRetry(r) {
				return &retriableStatusError{resp: r}
			}
			return nil
		},
		retry.Attempts(uint(p.options.MaxRetries)+1),
		retry.Context(req.Raw().Context()),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return retry.IsRecoverable(err) && !errors.Is(err, req.Raw().Context().Err())
		}),
		retry.DelayType(p.delay),
	)
	if err != nil {
		var rse *retriableStatusError
		if errors.As(err, &rse) {
			// Retries exhausted on an HTTP status. The caller still
			// gets the response; error mapping is the client's job.
			return rse.resp, nil
		}
		return nil, err
	}
	return resp, nil
}

func (p *retryPolicy) shouldRetry(resp *http.Response) bool {
	for _, code := range p.options.StatusCodes {
		if resp.StatusCode == code {
			return true
		}
	}
	return false
}

// delay honors Retry-After when the service sent one, otherwise backs
// off exponentially with jitter.
func (p *retryPolicy) delay(n uint, err error, _ *retry.Config) time.Duration {
	var rse *retriableStatusError
	if errors.As(err, &rse) {
		if ra := RetryAfter(rse.resp); ra > 0 {
			if ra > p.options.MaxRetryDelay {
				return p.options.MaxRetryDelay
			}
			return ra
		}
	}
	backoff := float64(p.options.RetryDelay) * math.Pow(2, float64(n))
	backoff *= 0.8 + 0.4*rand.Float64()
	if d := time.Duration(backoff); d < p.options.MaxRetryDelay {
		return d
	}
	return p.options.MaxRetryDelay
}

// RetryAfter returns the delay a response asked for, from a
// Retry-After header holding either seconds or an HTTP date. Zero when
// absent or malformed.
func RetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	ra := resp.Header.Get(headerRetryAfter)
	if ra == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(ra); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if at, err := time.Parse(http.TimeFormat, ra); err == nil {
		return time.Until(at)
	}
	return 0
}
