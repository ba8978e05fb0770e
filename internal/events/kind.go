package events

import "fmt"

// Kind names a domain event.
type Kind string

const (
	EntryCreated            Kind = "EntryCreated"
	EntryUpdated            Kind = "EntryUpdated"
	EntryDeleted            Kind = "EntryDeleted"
	EntryAclGuestUpdated    Kind = "EntryAclGuestUpdated"
	EntryProjectTypeUpdated Kind = "EntryProjectTypeUpdated"
	MetadataUpdated         Kind = "MetadataUpdated"
	ExternalMetadataUpdated Kind = "ExternalMetadataUpdated"
	ResourceUpdated         Kind = "ResourceUpdated"
	ResourceDeleted         Kind = "ResourceDeleted"
	RelationsUpdated        Kind = "RelationsUpdated"

	// All subscribes a handler to every kind.
	All Kind = "*"
)

// Kinds lists every concrete kind in declaration order.
var Kinds = []Kind{
	EntryCreated,
	EntryUpdated,
	EntryDeleted,
	EntryAclGuestUpdated,
	EntryProjectTypeUpdated,
	MetadataUpdated,
	ExternalMetadataUpdated,
	ResourceUpdated,
	ResourceDeleted,
	RelationsUpdated,
}

// ParseKind validates a kind name. "*" parses as All.
func ParseKind(s string) (Kind, error) {
	if s == string(All) {
		return All, nil
	}
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown event kind %q", s)
}
