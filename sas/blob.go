package sas

import (
	"errors"
	"strings"
	"time"
)

// ContainerPermissions describes what a container SAS may do.
type ContainerPermissions struct {
	Read   bool
	Add    bool
	Create bool
	Write  bool
	Delete bool
	List   bool
}

const containerPermissionOrder = "racwdl"

func (p ContainerPermissions) String() string {
	b := strings.Builder{}
	if p.Read {
		b.WriteByte('r')
	}
	if p.Add {
		b.WriteByte('a')
	}
	if p.Create {
		b.WriteByte('c')
	}
	if p.Write {
		b.WriteByte('w')
	}
	if p.Delete {
		b.WriteByte('d')
	}
	if p.List {
		b.WriteByte('l')
	}
	return b.String()
}

// ParseContainerPermissions reads a permission string in any order.
func ParseContainerPermissions(raw string) (ContainerPermissions, error) {
	ordered, err := parsePermissionFlags(raw, containerPermissionOrder)
	if err != nil {
		return ContainerPermissions{}, err
	}
	return ContainerPermissions{
		Read:   strings.Contains(ordered, "r"),
		Add:    strings.Contains(ordered, "a"),
		Create: strings.Contains(ordered, "c"),
		Write:  strings.Contains(ordered, "w"),
		Delete: strings.Contains(ordered, "d"),
		List:   strings.Contains(ordered, "l"),
	}, nil
}

// BlobPermissions describes what a blob SAS may do.
type BlobPermissions struct {
	Read   bool
	Add    bool
	Create bool
	Write  bool
	Delete bool
}

func (p BlobPermissions) String() string {
	b := strings.Builder{}
	if p.Read {
		b.WriteByte('r')
	}
	if p.Add {
		b.WriteByte('a')
	}
	if p.Create {
		b.WriteByte('c')
	}
	if p.Write {
		b.WriteByte('w')
	}
	if p.Delete {
		b.WriteByte('d')
	}
	return b.String()
}

// BlobSignatureValues is everything needed to produce a container or
// blob SAS. Leave BlobName empty to sign the whole container.
type BlobSignatureValues struct {
	Protocol      Protocol
	Start         time.Time
	Expiry        time.Time
	Permissions   string // from ContainerPermissions or BlobPermissions String()
	IPRange       string
	ContainerName string
	BlobName      string

	// Identifier names a stored access policy on the container.
	Identifier string

	// Response header overrides baked into the signature.
	CacheControl       string
	ContentDisposition string
	ContentEncoding    string
	ContentLanguage    string
	ContentType        string
}

// SignWithSharedKey produces the signed query parameters. The
// canonicalized resource is /blob/<account>/<container>[/<blob>]; the
// signed resource is "c" for a container and "b" for a blob.
func (v BlobSignatureValues) SignWithSharedKey(cred Credential) (QueryParameters, error) {
	if v.ContainerName == "" {
		return QueryParameters{}, errors.New("sas: a container name is required")
	}
	if v.Expiry.IsZero() && v.Identifier == "" {
		return QueryParameters{}, errExpiryRequired
	}
	resource := "c"
	path := "/" + v.ContainerName
	if v.BlobName != "" {
		resource = "b"
		path += "/" + v.BlobName
	}
	params := QueryParameters{
		Version:            Version,
		Protocol:           v.Protocol,
		Start:              formatTime(v.Start),
		Expiry:             formatTime(v.Expiry),
		IPRange:            v.IPRange,
		Identifier:         v.Identifier,
		Resource:           resource,
		Permissions:        v.Permissions,
		CacheControl:       v.CacheControl,
		ContentDisposition: v.ContentDisposition,
		ContentEncoding:    v.ContentEncoding,
		ContentLanguage:    v.ContentLanguage,
		ContentType:        v.ContentType,
	}
	canonicalizedResource := "/blob/" + cred.AccountName() + path
	stringToSign := strings.Join([]string{
		params.Permissions,
		params.Start,
		params.Expiry,
		canonicalizedResource,
		params.Identifier,
		params.IPRange,
		string(params.Protocol),
		params.Version,
		params.CacheControl,
		params.ContentDisposition,
		params.ContentEncoding,
		params.ContentLanguage,
		params.ContentType, // no trailing newline on resource signatures
	}, "\n")
	signature, err := cred.ComputeHMACSHA256(stringToSign)
	if err != nil {
		return QueryParameters{}, err
	}
	params.Signature = signature
	return params, nil
}
