package storage

import (
	"errors"
	"fmt"
	"strings"
)

// connectionSettings is what a storage connection string carries.
type connectionSettings struct {
	ServiceURL  string
	AccountName string
	AccountKey  string
}

// parseConnectionString reads the semicolon-delimited key=value form:
//
//	DefaultEndpointsProtocol=https;AccountName=...;AccountKey=...;EndpointSuffix=core.windows.net
//
// An explicit BlobEndpoint wins over the constructed endpoint.
func parseConnectionString(connectionString string) (connectionSettings, error) {
	settings := map[string]string{}
	for _, part := range strings.Split(connectionString, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, found := strings.Cut(part, "=")
		if !found {
			return connectionSettings{}, fmt.Errorf("storage: malformed connection string segment %q", part)
		}
		settings[name] = value
	}

	accountName := settings["AccountName"]
	accountKey := settings["AccountKey"]
	if accountName == "" || accountKey == "" {
		return connectionSettings{}, errors.New("storage: connection string missing AccountName or AccountKey")
	}

	serviceURL := settings["BlobEndpoint"]
	if serviceURL == "" {
		protocol := settings["DefaultEndpointsProtocol"]
		if protocol == "" {
			protocol = "https"
		}
		suffix := settings["EndpointSuffix"]
		if suffix == "" {
			suffix = "core.windows.net"
		}
		serviceURL = fmt.Sprintf("%s://%s.blob.%s", protocol, accountName, suffix)
	}

	return connectionSettings{
		ServiceURL:  serviceURL,
		AccountName: accountName,
		AccountKey:  accountKey,
	}, nil
}
