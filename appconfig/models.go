package appconfig

import (
	"github.com/csmu-cenr/go-azure/azcore"
	"github.com/csmu-cenr/go-azure/dates"
)

// Setting is one key-value in an App Configuration store.
type Setting struct {
	Key          string            `json:"key"`
	Label        string            `json:"label,omitempty"`
	Value        string            `json:"value"`
	ContentType  string            `json:"content_type,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
	ETag         azcore.ETag       `json:"etag,omitempty"`
	IsReadOnly   bool              `json:"locked,omitempty"`
	LastModified *dates.RFC3339    `json:"last_modified,omitempty"`
}

// ListSettingsResponse is one page of a settings listing.
type ListSettingsResponse struct {
	Items    []Setting `json:"items"`
	NextLink string    `json:"@nextLink,omitempty"`
}

// GetSettingOptions adjusts GetSetting.
type GetSettingOptions struct {
	Label string

	// AcceptDatetime asks for the setting as it existed at that time.
	AcceptDatetime string

	// OnlyIfChanged skips the fetch when the stored ETag still
	// matches; ErrNotModified is returned in that case.
	OnlyIfChanged azcore.ETag
}

// SetSettingOptions adjusts SetSetting.
type SetSettingOptions struct {
	// OnlyIfUnchanged makes the write conditional on the setting's
	// ETag.
	OnlyIfUnchanged azcore.ETag
}

// DeleteSettingOptions adjusts DeleteSetting.
type DeleteSettingOptions struct {
	Label string

	// OnlyIfUnchanged makes the delete conditional on the setting's
	// ETag.
	OnlyIfUnchanged azcore.ETag
}

// ListSettingsOptions adjusts a settings listing. Filters accept *
// as a wildcard at either end.
type ListSettingsOptions struct {
	KeyFilter   string
	LabelFilter string

	// Fields limits which setting fields the service returns.
	Fields []string

	// AcceptDatetime lists the store as it existed at that time.
	AcceptDatetime string
}
