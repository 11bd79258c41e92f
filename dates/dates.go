// Package dates contains the wire formats Azure services use for
// timestamps. Storage puts RFC 1123 dates in headers, most JSON bodies
// carry RFC 3339 with optional fractional seconds, and Key Vault
// attributes are Unix timestamps.
package dates

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	rfc1123 = "Mon, 02 Jan 2006 15:04:05 GMT"
	rfc3339 = "2006-01-02T15:04:05.999999999Z07:00"
)

// RFC1123 is a time that marshals as `Mon, 02 Jan 2006 15:04:05 GMT`.
type RFC1123 time.Time

func (t RFC1123) MarshalText() ([]byte, error) {
	return []byte(time.Time(t).UTC().Format(rfc1123)), nil
}

func (t *RFC1123) UnmarshalText(data []byte) error {
	parsed, err := time.Parse(rfc1123, string(data))
	if err != nil {
		// Some services answer with the offset form.
		parsed, err = time.Parse(time.RFC1123, string(data))
		if err != nil {
			return err
		}
	}
	*t = RFC1123(parsed)
	return nil
}

func (t RFC1123) MarshalJSON() ([]byte, error) {
	text, _ := t.MarshalText()
	return json.Marshal(string(text))
}

func (t *RFC1123) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	return t.UnmarshalText([]byte(text))
}

func (t RFC1123) String() string {
	return time.Time(t).UTC().Format(rfc1123)
}

// RFC3339 is a time that marshals as RFC 3339 UTC, keeping fractional
// seconds when they are present.
type RFC3339 time.Time

func (t RFC3339) MarshalText() ([]byte, error) {
	return []byte(time.Time(t).UTC().Format(rfc3339)), nil
}

func (t *RFC3339) UnmarshalText(data []byte) error {
	parsed, err := time.Parse(rfc3339, string(data))
	if err != nil {
		return err
	}
	*t = RFC3339(parsed)
	return nil
}

func (t RFC3339) MarshalJSON() ([]byte, error) {
	text, _ := t.MarshalText()
	return json.Marshal(string(text))
}

func (t *RFC3339) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	return t.UnmarshalText([]byte(text))
}

func (t RFC3339) String() string {
	return time.Time(t).UTC().Format(rfc3339)
}

// Unix is a time that marshals as seconds since the epoch.
type Unix time.Time

func (t Unix) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(time.Time(t).Unix(), 10)), nil
}

func (t *Unix) UnmarshalJSON(data []byte) error {
	seconds, err := strconv.ParseInt(strings.Trim(string(data), `"`), 10, 64)
	if err != nil {
		return fmt.Errorf("dates: %q is not a unix timestamp: %w", string(data), err)
	}
	*t = Unix(time.Unix(seconds, 0).UTC())
	return nil
}

func (t Unix) String() string {
	return strconv.FormatInt(time.Time(t).Unix(), 10)
}
