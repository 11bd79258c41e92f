package azcore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ResponseError is returned whenever a service answers with a
// non-success status code. ErrorCode holds the service's error code,
// taken from the x-ms-error-code header or the standard JSON error
// body, and is the stable value callers should switch on.
type ResponseError struct {
	// ErrorCode is the service-defined error code, e.g. "BlobNotFound".
	ErrorCode string

	// StatusCode is the HTTP status of the response.
	StatusCode int

	// RawResponse is the underlying response, its body replaced with a
	// re-readable copy.
	RawResponse *http.Response
}

// NewResponseError reads the body of a failed response and builds a
// *ResponseError. The response body is restored so callers can still
// inspect it.
func NewResponseError(resp *http.Response) error {
	respErr := &ResponseError{
		StatusCode:  resp.StatusCode,
		RawResponse: resp,
	}
	if code := resp.Header.Get(headerErrorCode); code != "" {
		respErr.ErrorCode = code
		return respErr
	}
	payload, err := payloadOf(resp)
	if err != nil || len(payload) == 0 {
		return respErr
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
		Code string `json:"code"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Error.Code != "" {
			respErr.ErrorCode = body.Error.Code
		} else {
			respErr.ErrorCode = body.Code
		}
	}
	return respErr
}

func (e *ResponseError) Error() string {
	out := &bytes.Buffer{}
	fmt.Fprintln(out, "==============================================================================")
	fmt.Fprintf(out, "RESPONSE %d", e.StatusCode)
	if e.RawResponse != nil {
		fmt.Fprintf(out, ": %s %s", e.RawResponse.Request.Method, sanitizeURL(e.RawResponse.Request.URL))
	}
	fmt.Fprintln(out)
	if e.ErrorCode != "" {
		fmt.Fprintf(out, "ERROR CODE: %s\n", e.ErrorCode)
	} else {
		fmt.Fprintln(out, "ERROR CODE UNAVAILABLE")
	}
	if e.RawResponse != nil {
		if payload, err := payloadOf(e.RawResponse); err == nil && len(payload) > 0 {
			fmt.Fprintln(out, "------------------------------------------------------------------------------")
			fmt.Fprintln(out, string(payload))
		}
	}
	fmt.Fprint(out, "==============================================================================")
	return out.String()
}

// payloadOf returns the full response body, leaving a fresh copy
// behind so the body can be read again.
func payloadOf(resp *http.Response) ([]byte, error) {
	if resp.Body == nil {
		return nil, nil
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(payload))
	return payload, nil
}

// HasStatusCode reports whether the response status is one of codes.
func HasStatusCode(resp *http.Response, codes ...int) bool {
	if resp == nil {
		return false
	}
	for _, code := range codes {
		if resp.StatusCode == code {
			return true
		}
	}
	return false
}

// Payload returns the response body as bytes, restoring it for later
// readers.
func Payload(resp *http.Response) ([]byte, error) {
	return payloadOf(resp)
}
