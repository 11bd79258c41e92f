package azcore

import "strings"

// ETag is an HTTP entity tag, quotes included.
type ETag string

// ETagAny matches any resource.
const ETagAny ETag = "*"

// IsWeak reports whether the tag carries the W/ weak prefix.
func (e ETag) IsWeak() bool {
	return strings.HasPrefix(string(e), "W/\"") && strings.HasSuffix(string(e), "\"")
}

// Equals performs a strong comparison: both tags must be strong and
// byte-identical.
func (e ETag) Equals(other ETag) bool {
	return !e.IsWeak() && !other.IsWeak() && e == other
}

// WeakEquals compares the tags ignoring weakness.
func (e ETag) WeakEquals(other ETag) bool {
	trim := func(t ETag) string {
		if t.IsWeak() {
			return string(t)[2:]
		}
		return string(t)
	}
	return trim(e) == trim(other)
}

// SetIfMatch adds an If-Match precondition to the request.
func SetIfMatch(req *Request, etag ETag) {
	if etag != "" {
		req.Raw().Header.Set("If-Match", string(etag))
	}
}

// SetIfNoneMatch adds an If-None-Match precondition to the request.
func SetIfNoneMatch(req *Request, etag ETag) {
	if etag != "" {
		req.Raw().Header.Set("If-None-Match", string(etag))
	}
}
