package sas

import (
	"strings"
	"time"
)

// AccountPermissions describes what an account SAS may do. Flags are
// emitted in the service's canonical order.
type AccountPermissions struct {
	Read    bool
	Write   bool
	Delete  bool
	List    bool
	Add     bool
	Create  bool
	Update  bool
	Process bool
}

const accountPermissionOrder = "rwdlacup"

func (p AccountPermissions) String() string {
	b := strings.Builder{}
	if p.Read {
		b.WriteByte('r')
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
	if p.Add {
		b.WriteByte('a')
	}
	if p.Create {
		b.WriteByte('c')
	}
	if p.Update {
		b.WriteByte('u')
	}
	if p.Process {
		b.WriteByte('p')
	}
	return b.String()
}

// ParseAccountPermissions reads a permission string in any order.
func ParseAccountPermissions(raw string) (AccountPermissions, error) {
	ordered, err := parsePermissionFlags(raw, accountPermissionOrder)
	if err != nil {
		return AccountPermissions{}, err
	}
	return AccountPermissions{
		Read:    strings.Contains(ordered, "r"),
		Write:   strings.Contains(ordered, "w"),
		Delete:  strings.Contains(ordered, "d"),
		List:    strings.Contains(ordered, "l"),
		Add:     strings.Contains(ordered, "a"),
		Create:  strings.Contains(ordered, "c"),
		Update:  strings.Contains(ordered, "u"),
		Process: strings.Contains(ordered, "p"),
	}, nil
}

// AccountServices selects which storage services the SAS covers.
type AccountServices struct {
	Blob  bool
	Queue bool
	File  bool
}

func (s AccountServices) String() string {
	b := strings.Builder{}
	if s.Blob {
		b.WriteByte('b')
	}
	if s.Queue {
		b.WriteByte('q')
	}
	if s.File {
		b.WriteByte('f')
	}
	return b.String()
}

// AccountResourceTypes selects the resource levels the SAS covers.
type AccountResourceTypes struct {
	Service   bool
	Container bool
	Object    bool
}

func (rt AccountResourceTypes) String() string {
	b := strings.Builder{}
	if rt.Service {
		b.WriteByte('s')
	}
	if rt.Container {
		b.WriteByte('c')
	}
	if rt.Object {
		b.WriteByte('o')
	}
	return b.String()
}

// AccountSignatureValues is everything needed to produce an account
// SAS.
type AccountSignatureValues struct {
	Protocol      Protocol
	Start         time.Time
	Expiry        time.Time
	Permissions   AccountPermissions
	IPRange       string
	Services      AccountServices
	ResourceTypes AccountResourceTypes
}

// SignWithSharedKey produces the signed query parameters. The
// string-to-sign is the account name followed by permissions,
// services, resource types, start, expiry, IP, protocol and version,
// each newline-terminated.
func (v AccountSignatureValues) SignWithSharedKey(cred Credential) (QueryParameters, error) {
	if v.Expiry.IsZero() {
		return QueryParameters{}, errExpiryRequired
	}
	params := QueryParameters{
		Version:       Version,
		Services:      v.Services.String(),
		ResourceTypes: v.ResourceTypes.String(),
		Protocol:      v.Protocol,
		Start:         formatTime(v.Start),
		Expiry:        formatTime(v.Expiry),
		IPRange:       v.IPRange,
		Permissions:   v.Permissions.String(),
	}
	stringToSign := strings.Join([]string{
		cred.AccountName(),
		params.Permissions,
		params.Services,
		params.ResourceTypes,
		params.Start,
		params.Expiry,
		params.IPRange,
		string(params.Protocol),
		params.Version,
		"", // the account string-to-sign keeps its trailing newline
	}, "\n")
	signature, err := cred.ComputeHMACSHA256(stringToSign)
	if err != nil {
		return QueryParameters{}, err
	}
	params.Signature = signature
	return params, nil
}
