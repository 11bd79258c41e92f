package azcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Long-running operations: a service accepts the request, then the
// client polls a status endpoint until the operation reaches a
// terminal state.

// ErrOperationFailed is wrapped by poller errors for failed or
// canceled operations.
var ErrOperationFailed = errors.New("the operation did not succeed")

// PollingHandler drives one style of long-running operation. azcore
// ships the Operation-Location flavor; services with bespoke polling
// (Key Vault's deleted-secret recovery, for instance) provide their
// own.
type PollingHandler[T any] interface {
	// Done reports whether the operation reached a terminal state.
	Done() bool

	// Poll fetches the latest status.
	Poll(ctx context.Context) (*http.Response, error)

	// Result populates out once the operation has succeeded.
	Result(ctx context.Context, out *T) error
}

// Poller polls a long-running operation until completion.
type Poller[T any] struct {
	handler      PollingHandler[T]
	lastResponse *http.Response
	result       *T
}

// NewPollerFromHandler builds a Poller around a service-specific
// handler.
func NewPollerFromHandler[T any](handler PollingHandler[T], initial *http.Response) *Poller[T] {
	return &Poller[T]{handler: handler, lastResponse: initial}
}

// NewPoller builds a Poller for the common Operation-Location pattern
// from the service's initial response.
func NewPoller[T any](resp *http.Response, pl Pipeline) (*Poller[T], error) {
	handler, err := newOpLocationHandler[T](resp, pl)
	if err != nil {
		return nil, err
	}
	return &Poller[T]{handler: handler, lastResponse: resp}, nil
}

// Done reports whether the operation reached a terminal state.
func (p *Poller[T]) Done() bool {
	return p.handler.Done()
}

// Poll fetches the latest operation status.
func (p *Poller[T]) Poll(ctx context.Context) (*http.Response, error) {
	resp, err := p.handler.Poll(ctx)
	if err != nil {
		return nil, err
	}
	p.lastResponse = resp
	return resp, nil
}

// Result returns the operation's outcome. It must only be called once
// Done reports true.
func (p *Poller[T]) Result(ctx context.Context) (T, error) {
	var zero T
	if !p.Done() {
		return zero, errors.New("azcore: poller is not in a terminal state")
	}
	if p.result != nil {
		return *p.result, nil
	}
	out := new(T)
	if err := p.handler.Result(ctx, out); err != nil {
		return zero, err
	}
	p.result = out
	return *p.result, nil
}

// PollUntilDone polls at freq (or as directed by Retry-After) until
// the operation completes, then returns its result.
func (p *Poller[T]) PollUntilDone(ctx context.Context, freq time.Duration) (T, error) {
	if freq <= 0 {
		freq = 30 * time.Second
	}
	for !p.Done() {
		resp, err := p.Poll(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		if p.Done() {
			break
		}
		delay := freq
		if ra := RetryAfter(resp); ra > 0 {
			delay = ra
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return p.Result(ctx)
}

// Terminal status values, compared case-insensitively.
const (
	statusSucceeded  = "Succeeded"
	statusFailed     = "Failed"
	statusCanceled   = "Canceled"
	statusInProgress = "InProgress"
)

func isTerminalStatus(status string) bool {
	return strings.EqualFold(status, statusSucceeded) ||
		strings.EqualFold(status, statusFailed) ||
		strings.EqualFold(status, statusCanceled)
}

// opLocationHandler implements the Operation-Location protocol: poll
// the URL from the Operation-Location (or Azure-AsyncOperation) header
// and read the "status" property until it goes terminal.
type opLocationHandler[T any] struct {
	pl       Pipeline
	pollURL  string
	finalURL string
	status   string
	payload  []byte
}

func newOpLocationHandler[T any](resp *http.Response, pl Pipeline) (*opLocationHandler[T], error) {
	pollURL := resp.Header.Get("Operation-Location")
	if pollURL == "" {
		pollURL = resp.Header.Get("Azure-AsyncOperation")
	}
	if pollURL == "" {
		return nil, errors.New("azcore: response has no polling URL")
	}
	handler := &opLocationHandler[T]{
		pl:       pl,
		pollURL:  pollURL,
		finalURL: resp.Header.Get("Location"),
		status:   statusInProgress,
	}
	return handler, nil
}

func (h *opLocationHandler[T]) Done() bool {
	return isTerminalStatus(h.status)
}

func (h *opLocationHandler[T]) Poll(ctx context.Context) (*http.Response, error) {
	req, err := NewRequest(ctx, http.MethodGet, h.pollURL)
	if err != nil {
		return nil, err
	}
	resp, err := h.pl.Do(req)
	if err != nil {
		return nil, err
	}
	if !HasStatusCode(resp, http.StatusOK, http.StatusAccepted, http.StatusCreated) {
		return nil, NewResponseError(resp)
	}
	payload, err := Payload(resp)
	if err != nil {
		return nil, err
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("azcore: invalid polling response: %w", err)
	}
	if body.Status == "" {
		return nil, errors.New("azcore: polling response has no status")
	}
	h.status = body.Status
	h.payload = payload
	return resp, nil
}

func (h *opLocationHandler[T]) Result(ctx context.Context, out *T) error {
	if !strings.EqualFold(h.status, statusSucceeded) {
		return fmt.Errorf("%w: status %q", ErrOperationFailed, h.status)
	}
	payload := h.payload
	if h.finalURL != "" {
		req, err := NewRequest(ctx, http.MethodGet, h.finalURL)
		if err != nil {
			return err
		}
		resp, err := h.pl.Do(req)
		if err != nil {
			return err
		}
		if !HasStatusCode(resp, http.StatusOK) {
			return NewResponseError(resp)
		}
		if payload, err = Payload(resp); err != nil {
			return err
		}
	}
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, out)
}
