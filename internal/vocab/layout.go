package vocab

import (
	"strings"

	"github.com/roach88/mdrepo/internal/ir"
)

// Path segments below a context.
const (
	EntryPath                  = "entry"
	MetadataPath               = "metadata"
	CachedExternalMetadataPath = "cached-external-metadata"
	ResourcePath               = "resource"
	RelationsPath              = "relations"
)

// Well-known context and principal identifiers.
const (
	ContextsID   = "_contexts"
	PrincipalsID = "_principals"

	AdminID  = "_admin"
	GuestID  = "_guest"
	AdminsID = "_admins"
	UsersID  = "_users"
)

// Layout mints and splits repository URIs under Base, which ends in "/".
//
//	<base><ctx>                     context resource (and index graph)
//	<base><ctx>/entry/<id>          entry URI (and entry graph)
//	<base><ctx>/metadata/<id>       local metadata graph
//	<base><ctx>/resource/<id>       resource of Local entries
//	<base><ctx>/relations/<id>      inverse relations graph
type Layout struct {
	Base string
}

func (l Layout) uri(ctx, path, id string) ir.Term {
	return ir.IRI(l.Base + ctx + "/" + path + "/" + id)
}

// Context returns the resource URI of context ctx.
func (l Layout) Context(ctx string) ir.Term {
	return ir.IRI(l.Base + ctx)
}

func (l Layout) Entry(ctx, id string) ir.Term { return l.uri(ctx, EntryPath, id) }

func (l Layout) Metadata(ctx, id string) ir.Term { return l.uri(ctx, MetadataPath, id) }

func (l Layout) CachedExternalMetadata(ctx, id string) ir.Term {
	return l.uri(ctx, CachedExternalMetadataPath, id)
}

func (l Layout) Resource(ctx, id string) ir.Term { return l.uri(ctx, ResourcePath, id) }

func (l Layout) Relations(ctx, id string) ir.Term { return l.uri(ctx, RelationsPath, id) }

// Principal returns the principal URI of a user or group entry.
func (l Layout) Principal(id string) ir.Term { return l.Resource(PrincipalsID, id) }

// EntryPrefix is the common prefix of every entry URI in ctx.
func (l Layout) EntryPrefix(ctx string) string {
	return l.Base + ctx + "/" + EntryPath + "/"
}

// Split parses a repository URI into context id, path segment and entry
// id. A context resource URI yields an empty path and id. A query string
// is ignored.
func (l Layout) Split(uri string) (ctx, path, id string, ok bool) {
	rest, found := strings.CutPrefix(uri, l.Base)
	if !found || rest == "" {
		return "", "", "", false
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest = rest[:i]
	}
	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 1:
		return parts[0], "", "", parts[0] != ""
	case 3:
		if parts[0] == "" || parts[2] == "" {
			return "", "", "", false
		}
		switch parts[1] {
		case EntryPath, MetadataPath, CachedExternalMetadataPath, ResourcePath, RelationsPath:
			return parts[0], parts[1], parts[2], true
		}
	}
	return "", "", "", false
}

// Contains reports whether uri lies under Base.
func (l Layout) Contains(uri string) bool {
	return strings.HasPrefix(uri, l.Base)
}
