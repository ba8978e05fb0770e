// Package vocab holds the fixed statement vocabulary of the repository and
// the URI layout of entries, metadata, resources and relations.
//
// The vocabulary must round-trip exactly: stores written by one version are
// read by the next, so terms are never renamed.
package vocab

import (
	"strconv"

	"github.com/roach88/mdrepo/internal/ir"
)

// Namespaces.
const (
	NS        = "http://entrystore.org/terms/"
	NSDCTerms = "http://purl.org/dc/terms/"
	NSRDF     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NSRDFS    = "http://www.w3.org/2000/01/rdf-schema#"
	NSOWL     = "http://www.w3.org/2002/07/owl#"
	NSProv    = "http://www.w3.org/ns/prov#"
)

func es(local string) ir.Term { return ir.IRI(NS + local) }

// Index and structure predicates.
var (
	Counter                = es("counter")
	MdHasEntry             = es("mdHasMMd")
	ResHasEntry            = es("resHasMMd")
	Alias                  = es("alias")
	Resource               = es("resource")
	Metadata               = es("metadata")
	Relation               = es("relation")
	ExternalMetadata       = es("externalMetadata")
	CachedExternalMetadata = es("cachedExternalMetadata")
	Cached                 = es("cached")
	ReferredIn             = es("referredIn")
	HasListMember          = es("hasListMember")
	HasGroupMember         = es("hasGroupMember")
	HomeContext            = es("homeContext")
	OriginallyCreatedIn    = es("originallyCreatedIn")
	Deleted                = es("deleted")
	DeletedBy              = es("deletedBy")
	Read                   = es("read")
	Write                  = es("write")
	HasQuota               = es("hasQuota")
	HasQuotaFillLevel      = es("hasQuotaFillLevel")
	ProjectType            = es("projectType")
)

// Entry types (location of metadata).
var (
	Local         = es("Local")
	Link          = es("Link")
	Reference     = es("Reference")
	LinkReference = es("LinkReference")
)

// Graph types (built-in resource kinds).
var (
	None           = es("None")
	List           = es("List")
	ResultList     = es("ResultList")
	Context        = es("Context")
	SystemContext  = es("SystemContext")
	User           = es("User")
	Group          = es("Group")
	Pipeline       = es("Pipeline")
	PipelineResult = es("PipelineResult")
	String         = es("String")
	Graph          = es("Graph")
)

// Resource types.
var (
	InformationResource           = es("InformationResource")
	ResolvableInformationResource = es("ResolvableInformationResource")
	NamedResource                 = es("NamedResource")
	Unknown                       = es("Unknown")
)

// Terms from other vocabularies.
var (
	Type        = ir.IRI(NSRDF + "type")
	Value       = ir.IRI(NSRDF + "value")
	Seq         = ir.IRI(NSRDF + "Seq")
	Label       = ir.IRI(NSRDFS + "label")
	SameAs      = ir.IRI(NSOWL + "sameAs")
	Created     = ir.IRI(NSDCTerms + "created")
	Modified    = ir.IRI(NSDCTerms + "modified")
	Creator     = ir.IRI(NSDCTerms + "creator")
	Contributor = ir.IRI(NSDCTerms + "contributor")
	Format      = ir.IRI(NSDCTerms + "format")
	Extent      = ir.IRI(NSDCTerms + "extent")

	WasAttributedTo = ir.IRI(NSProv + "wasAttributedTo")
	GeneratedAtTime = ir.IRI(NSProv + "generatedAtTime")
	WasRevisionOf   = ir.IRI(NSProv + "wasRevisionOf")
)

// SeqMember returns the rdf:_n container membership predicate (n from 1).
func SeqMember(n int) ir.Term {
	return ir.IRI(NSRDF + "_" + strconv.Itoa(n))
}

// SeqIndex parses an rdf:_n predicate, returning n and true on success.
func SeqIndex(p ir.Term) (int, bool) {
	const prefix = NSRDF + "_"
	if !p.IsIRI() || len(p.Value) <= len(prefix) || p.Value[:len(prefix)] != prefix {
		return 0, false
	}
	n := 0
	for _, c := range p.Value[len(prefix):] {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, n > 0
}

// structural predicates are rebuilt by the repository on every entry
// graph write; callers never supply them.
var structural = map[ir.Term]bool{
	Resource:               true,
	Metadata:               true,
	Relation:               true,
	ExternalMetadata:       true,
	CachedExternalMetadata: true,
	Cached:                 true,
	Created:                true,
	Modified:               true,
	Creator:                true,
	Contributor:            true,
	OriginallyCreatedIn:    true,
}

// IsStructural reports whether p is maintained by the repository itself.
func IsStructural(p ir.Term) bool {
	return structural[p]
}
