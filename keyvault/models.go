package keyvault

import (
	"net/url"
	"strings"

	"github.com/csmu-cenr/go-azure/dates"
)

// SecretAttributes holds a secret's management metadata.
type SecretAttributes struct {
	Enabled   *bool       `json:"enabled,omitempty"`
	NotBefore *dates.Unix `json:"nbf,omitempty"`
	Expires   *dates.Unix `json:"exp,omitempty"`
	Created   *dates.Unix `json:"created,omitempty"`
	Updated   *dates.Unix `json:"updated,omitempty"`

	// RecoveryLevel reflects the vault's soft-delete configuration.
	RecoveryLevel string `json:"recoveryLevel,omitempty"`
}

// Secret is a secret bundle as returned by the vault.
type Secret struct {
	// ID is the full secret identifier, including the version.
	ID          string            `json:"id,omitempty"`
	Value       string            `json:"value,omitempty"`
	ContentType string            `json:"contentType,omitempty"`
	Attributes  *SecretAttributes `json:"attributes,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`

	// Managed is true for secrets the vault maintains itself, such
	// as the backing secrets of certificates.
	Managed bool `json:"managed,omitempty"`
}

// Name returns the secret's name, parsed from its ID.
func (s Secret) Name() string {
	name, _ := parseID(s.ID)
	return name
}

// Version returns the secret's version, parsed from its ID.
func (s Secret) Version() string {
	_, version := parseID(s.ID)
	return version
}

// SecretProperties is a secret item without its value, as returned by
// listings.
type SecretProperties struct {
	ID          string            `json:"id,omitempty"`
	ContentType string            `json:"contentType,omitempty"`
	Attributes  *SecretAttributes `json:"attributes,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	Managed     bool              `json:"managed,omitempty"`
}

// Name returns the secret's name, parsed from its ID.
func (p SecretProperties) Name() string {
	name, _ := parseID(p.ID)
	return name
}

// DeletedSecret is a soft-deleted secret awaiting purge or recovery.
type DeletedSecret struct {
	Secret

	// RecoveryID is the identifier under /deletedsecrets used to
	// recover or purge the secret.
	RecoveryID         string      `json:"recoveryId,omitempty"`
	DeletedDate        *dates.Unix `json:"deletedDate,omitempty"`
	ScheduledPurgeDate *dates.Unix `json:"scheduledPurgeDate,omitempty"`
}

// ListSecretsResponse is one page of a secrets listing.
type ListSecretsResponse struct {
	Items    []SecretProperties `json:"value"`
	NextLink string             `json:"nextLink,omitempty"`
}

// SetSecretOptions adjusts SetSecret.
type SetSecretOptions struct {
	ContentType string
	Attributes  *SecretAttributes
	Tags        map[string]string
}

// GetSecretOptions adjusts GetSecret.
type GetSecretOptions struct {
	// Version selects a specific secret version. Empty means latest.
	Version string
}

// UpdateSecretPropertiesOptions adjusts UpdateSecretProperties.
type UpdateSecretPropertiesOptions struct {
	// Version selects the version to update. Empty means latest.
	Version string
}

// parseID splits a secret identifier such as
// https://myvault.vault.azure.net/secrets/mysecret/abc123 into its
// name and version.
func parseID(id string) (name, version string) {
	parsed, err := url.Parse(id)
	if err != nil {
		return "", ""
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	// secrets/<name>[/<version>], or deletedsecrets/<name>.
	if len(segments) < 2 {
		return "", ""
	}
	name = segments[1]
	if len(segments) > 2 {
		version = segments[2]
	}
	return name, version
}
