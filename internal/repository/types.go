package repository

import (
	"fmt"
	"strings"

	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/vocab"
)

// EntryType says where an entry's metadata lives.
type EntryType int

const (
	Local EntryType = iota
	Link
	Reference
	LinkReference
)

var entryTypeTerms = map[EntryType]ir.Term{
	Local:         vocab.Local,
	Link:          vocab.Link,
	Reference:     vocab.Reference,
	LinkReference: vocab.LinkReference,
}

func (t EntryType) String() string {
	switch t {
	case Local:
		return "Local"
	case Link:
		return "Link"
	case Reference:
		return "Reference"
	case LinkReference:
		return "LinkReference"
	}
	return fmt.Sprintf("EntryType(%d)", int(t))
}

// Term returns the vocabulary term of t.
func (t EntryType) Term() ir.Term { return entryTypeTerms[t] }

// HasLocalMetadata reports whether entries of this type keep a local
// metadata graph.
func (t EntryType) HasLocalMetadata() bool { return t != Reference }

// HasExternalMetadata reports whether entries of this type point at
// external metadata with a cached copy.
func (t EntryType) HasExternalMetadata() bool { return t == Reference || t == LinkReference }

// GraphType is the built-in resource kind backing an entry.
type GraphType int

const (
	GraphNone GraphType = iota
	GraphList
	GraphResultList
	GraphContext
	GraphSystemContext
	GraphUser
	GraphGroup
	GraphPipeline
	GraphPipelineResult
	GraphString
	GraphGraph
)

var graphTypes = []struct {
	t    GraphType
	name string
	term ir.Term
}{
	{GraphNone, "None", vocab.None},
	{GraphList, "List", vocab.List},
	{GraphResultList, "ResultList", vocab.ResultList},
	{GraphContext, "Context", vocab.Context},
	{GraphSystemContext, "SystemContext", vocab.SystemContext},
	{GraphUser, "User", vocab.User},
	{GraphGroup, "Group", vocab.Group},
	{GraphPipeline, "Pipeline", vocab.Pipeline},
	{GraphPipelineResult, "PipelineResult", vocab.PipelineResult},
	{GraphString, "String", vocab.String},
	{GraphGraph, "Graph", vocab.Graph},
}

func (t GraphType) String() string {
	if int(t) >= 0 && int(t) < len(graphTypes) {
		return graphTypes[t].name
	}
	return fmt.Sprintf("GraphType(%d)", int(t))
}

func (t GraphType) Term() ir.Term {
	if int(t) >= 0 && int(t) < len(graphTypes) {
		return graphTypes[t].term
	}
	return ir.Term{}
}

// IsContext reports whether t is Context or SystemContext.
func (t GraphType) IsContext() bool { return t == GraphContext || t == GraphSystemContext }

// IsPrincipal reports whether t is User or Group.
func (t GraphType) IsPrincipal() bool { return t == GraphUser || t == GraphGroup }

// ResourceType classifies the represented resource.
type ResourceType int

const (
	InformationResource ResourceType = iota
	ResolvableInformationResource
	NamedResource
	UnknownResource
)

var resourceTypeTerms = map[ResourceType]ir.Term{
	InformationResource:           vocab.InformationResource,
	ResolvableInformationResource: vocab.ResolvableInformationResource,
	NamedResource:                 vocab.NamedResource,
	UnknownResource:               vocab.Unknown,
}

func (t ResourceType) String() string {
	switch t {
	case InformationResource:
		return "InformationResource"
	case ResolvableInformationResource:
		return "ResolvableInformationResource"
	case NamedResource:
		return "NamedResource"
	case UnknownResource:
		return "Unknown"
	}
	return fmt.Sprintf("ResourceType(%d)", int(t))
}

func (t ResourceType) Term() ir.Term { return resourceTypeTerms[t] }

// AccessProperty is one of the five rights an ACL grants.
type AccessProperty int

const (
	Administer AccessProperty = iota
	ReadMetadata
	WriteMetadata
	ReadResource
	WriteResource
)

// AccessProperties lists every property in declaration order.
var AccessProperties = []AccessProperty{Administer, ReadMetadata, WriteMetadata, ReadResource, WriteResource}

func (p AccessProperty) String() string {
	switch p {
	case Administer:
		return "Administer"
	case ReadMetadata:
		return "ReadMetadata"
	case WriteMetadata:
		return "WriteMetadata"
	case ReadResource:
		return "ReadResource"
	case WriteResource:
		return "WriteResource"
	}
	return fmt.Sprintf("AccessProperty(%d)", int(p))
}

// IsRead reports whether p is ReadMetadata or ReadResource.
func (p AccessProperty) IsRead() bool { return p == ReadMetadata || p == ReadResource }

// implied returns the write property that implies read property p.
func (p AccessProperty) implied() (AccessProperty, bool) {
	switch p {
	case ReadMetadata:
		return WriteMetadata, true
	case ReadResource:
		return WriteResource, true
	}
	return 0, false
}

// ParseEntryType accepts names case-insensitively.
func ParseEntryType(s string) (EntryType, error) {
	for t := range entryTypeTerms {
		if strings.EqualFold(t.String(), s) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown entry type %q", s)
}

func ParseGraphType(s string) (GraphType, error) {
	for _, g := range graphTypes {
		if strings.EqualFold(g.name, s) {
			return g.t, nil
		}
	}
	return 0, fmt.Errorf("unknown graph type %q", s)
}

func ParseResourceType(s string) (ResourceType, error) {
	for t := range resourceTypeTerms {
		if strings.EqualFold(t.String(), s) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown resource type %q", s)
}

func ParseAccessProperty(s string) (AccessProperty, error) {
	for _, p := range AccessProperties {
		if strings.EqualFold(p.String(), s) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown access property %q", s)
}

func entryTypeOf(t ir.Term) (EntryType, bool) {
	for et, term := range entryTypeTerms {
		if term == t {
			return et, true
		}
	}
	return 0, false
}

func graphTypeOf(t ir.Term) (GraphType, bool) {
	for _, g := range graphTypes {
		if g.term == t {
			return g.t, true
		}
	}
	return 0, false
}

func resourceTypeOf(t ir.Term) (ResourceType, bool) {
	for rt, term := range resourceTypeTerms {
		if term == t {
			return rt, true
		}
	}
	return 0, false
}
