package azcore

import (
	"net/http"

	"github.com/google/uuid"
)

// clientRequestIDPolicy stamps every call with an x-ms-client-request-id
// so it can be correlated with service-side logs. The ID is set before
// the retry policy, keeping it stable across attempts.
type clientRequestIDPolicy struct{}

func newClientRequestIDPolicy() clientRequestIDPolicy {
	return clientRequestIDPolicy{}
}

func (clientRequestIDPolicy) Do(req *Request) (*http.Response, error) {
	if req.Raw().Header.Get(headerClientRequestID) == "" {
		req.Raw().Header.Set(headerClientRequestID, uuid.New().String())
	}
	if req.Raw().Header.Get(headerReturnRequestID) == "" {
		req.Raw().Header.Set(headerReturnRequestID, "true")
	}
	return req.Next()
}
