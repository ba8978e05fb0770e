package repository

import (
	"context"

	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/queryir"
	"github.com/roach88/mdrepo/internal/store"
	"github.com/roach88/mdrepo/internal/vocab"
)

// protected lists entry-graph predicates that SetGraph carries over from
// the current graph. They change only through dedicated setters.
var protected = []ir.Term{
	vocab.Metadata,
	vocab.Relation,
	vocab.CachedExternalMetadata,
	vocab.Cached,
	vocab.Created,
	vocab.Creator,
	vocab.Contributor,
	vocab.OriginallyCreatedIn,
}

// SetGraph replaces the entry graph. Requires Administer.
//
// A changed resource or external metadata URI of a non-Local entry is
// applied everywhere: the index, both metadata graphs and the relations
// graph are rewritten. Entry type and graph type are fixed. Structural
// and protected statements are taken from the current graph, as are
// provenance records.
func (e *Entry) SetGraph(s Session, g ir.Graph) error {
	r := e.repo
	m := r.lock()
	defer m.unlock()
	if e.IsDeleted() {
		return newEntryMissingError(e.URI())
	}
	if err := r.Authorize(s, e, Administer); err != nil {
		return err
	}

	old := e.Graph()
	g = ir.Triples(g)
	et, gt := e.EntryType(), e.GraphType()
	oldRes := e.resourceTerm()
	oldExt, _ := old.Object(e.uri, vocab.ExternalMetadata)

	newRes, ok := g.Object(e.uri, vocab.Resource)
	if !ok {
		newRes = oldRes
	}
	newExt := oldExt
	if t, ok := g.Object(e.uri, vocab.ExternalMetadata); ok && et.HasExternalMetadata() {
		newExt = t
	}
	for _, t := range g.Objects(e.uri, vocab.Type) {
		if got, ok := entryTypeOf(t); ok && got != et {
			return integrityViolation(e.URI(), "entry type is fixed as %s", et)
		}
	}
	for _, t := range g.Objects(newRes, vocab.Type) {
		if got, ok := graphTypeOf(t); ok && got != gt {
			return integrityViolation(e.URI(), "graph type is fixed as %s", gt)
		}
	}
	if newRes != oldRes && et == Local {
		return integrityViolation(e.URI(), "the resource of a Local entry cannot change")
	}
	if !newRes.IsIRI() || (et.HasExternalMetadata() && !newExt.IsIRI()) {
		return integrityViolation(e.URI(), "resource and external metadata must be URIs")
	}

	renames := map[ir.Term]ir.Term{}
	if newRes != oldRes {
		renames[oldRes] = newRes
	}
	if newExt != oldExt {
		renames[oldExt] = newExt
	}
	g = g.ReplaceAll(renames)

	md := e.LocalMetadataURI()
	next := ir.Graph{}
	for _, q := range g {
		if q.Subject == e.uri && (q.Predicate == vocab.Resource || q.Predicate == vocab.ExternalMetadata || isProtected(q.Predicate)) {
			continue
		}
		if _, rev := revisionOf(md, q.Subject.Value); rev {
			continue
		}
		next = append(next, q)
	}
	next.Add(e.uri, vocab.Resource, newRes)
	if et.HasExternalMetadata() {
		next.Add(e.uri, vocab.ExternalMetadata, newExt)
	}
	for _, q := range old.ReplaceAll(renames) {
		if q.Subject == e.uri && isProtected(q.Predicate) {
			next.Add(q.Subject, q.Predicate, q.Object)
		}
	}
	next = append(next, revisionStatements(old, md)...)
	next.Add(e.uri, vocab.Type, et.Term())
	if gt != GraphNone {
		next.Add(newRes, vocab.Type, gt.Term())
	}

	c := e.Context()
	var extra []func(context.Context, store.Tx) error
	if len(renames) > 0 {
		extra = append(extra, func(ctx context.Context, tx store.Tx) error {
			return e.renameIn(ctx, tx, c, renames, oldRes, newRes, oldExt, newExt)
		})
	}
	if err := e.commitGraph(m, s, "set entry graph", next, extra...); err != nil {
		return err
	}
	if len(renames) > 0 {
		c.indexRemove(oldRes.Value, oldExt.Value, e.URI())
		c.indexAdd(newRes.Value, newExt.Value, e.URI())
	}
	return nil
}

func isProtected(p ir.Term) bool {
	for _, x := range protected {
		if x == p {
			return true
		}
	}
	return false
}

// renameIn moves index statements and rewrites the graphs that mention the
// old URIs.
func (e *Entry) renameIn(ctx context.Context, tx store.Tx, c *Context, renames map[ir.Term]ir.Term, oldRes, newRes, oldExt, newExt ir.Term) error {
	if oldRes != newRes {
		if _, err := tx.Remove(ctx, queryir.S(oldRes, vocab.ResHasEntry, e.uri, c.uri)); err != nil {
			return err
		}
		if err := tx.Add(ctx, ir.NewQuad(newRes, vocab.ResHasEntry, e.uri, c.uri)); err != nil {
			return err
		}
	}
	if oldExt != newExt {
		if !oldExt.IsZero() {
			if _, err := tx.Remove(ctx, queryir.S(oldExt, vocab.MdHasEntry, e.uri, c.uri)); err != nil {
				return err
			}
		}
		if err := tx.Add(ctx, ir.NewQuad(newExt, vocab.MdHasEntry, e.uri, c.uri)); err != nil {
			return err
		}
	}
	for _, name := range []string{e.LocalMetadataURI(), e.CachedExternalMetadataURI(), e.RelationsURI()} {
		g := ir.IRI(name)
		cur, err := e.repo.readGraph(ctx, tx, g)
		if err != nil {
			return err
		}
		if len(cur) == 0 {
			continue
		}
		if err := replaceGraph(ctx, tx, g, cur.ReplaceAll(renames)); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceStatement sets the single object of (subject, predicate) in the
// entry graph; a zero object removes it. Repository-maintained
// predicates are refused. Requires Administer.
func (e *Entry) ReplaceStatement(s Session, subject, predicate, object ir.Term) error {
	if vocab.IsStructural(predicate) || (subject == e.uri && predicate == vocab.Type) {
		return integrityViolation(e.URI(), "%s is maintained by the repository", predicate.Value)
	}
	return e.updateGraph(s, Administer, "replace statement", func(g ir.Graph) ir.Graph {
		g = g.Without(subject, predicate, ir.Term{})
		if !object.IsZero() {
			g.Add(subject, predicate, object)
		}
		return g
	})
}

// SetFilename records the original file name of the payload.
func (e *Entry) SetFilename(s Session, name string) error {
	return e.ReplaceStatement(s, e.uri, vocab.Label, optionalLiteral(name))
}

// SetMimetype records the media type of the payload.
func (e *Entry) SetMimetype(s Session, mimetype string) error {
	return e.ReplaceStatement(s, e.uri, vocab.Format, optionalLiteral(mimetype))
}

// SetProjectType sets the project-type marker.
func (e *Entry) SetProjectType(s Session, projectType string) error {
	return e.ReplaceStatement(s, e.uri, vocab.ProjectType, optionalLiteral(projectType))
}

func optionalLiteral(v string) ir.Term {
	if v == "" {
		return ir.Term{}
	}
	return ir.Literal(v)
}

// SetCreator replaces the creator. Requires Administer.
func (e *Entry) SetCreator(s Session, principal string) error {
	return e.updateGraph(s, Administer, "set creator", func(g ir.Graph) ir.Graph {
		g = g.Without(e.uri, vocab.Creator, ir.Term{})
		if principal != "" {
			g.Add(e.uri, vocab.Creator, ir.IRI(principal))
		}
		return g
	})
}

// SetOriginalList sets or, with an empty list, clears the
// originally-created-in marker. Requires Administer.
func (e *Entry) SetOriginalList(s Session, list string) error {
	return e.updateGraph(s, Administer, "set original list", func(g ir.Graph) ir.Graph {
		g = g.Without(e.uri, vocab.OriginallyCreatedIn, ir.Term{})
		if list != "" {
			g.Add(e.uri, vocab.OriginallyCreatedIn, ir.IRI(list))
		}
		return g
	})
}

// UpdateCachedExternalMetadataDate marks the cached copy as refreshed
// now. Requires WriteMetadata.
func (e *Entry) UpdateCachedExternalMetadataDate(s Session) error {
	if !e.EntryType().HasExternalMetadata() {
		return integrityViolation(e.URI(), "%s entries have no external metadata", e.EntryType())
	}
	now := e.repo.timestamp()
	return e.updateGraph(s, WriteMetadata, "update cache date", func(g ir.Graph) ir.Graph {
		g = g.Without(e.uri, vocab.Cached, ir.Term{})
		g.Add(e.uri, vocab.Cached, now)
		return g
	})
}

func (e *Entry) updateGraph(s Session, p AccessProperty, op string, fn func(ir.Graph) ir.Graph) error {
	m := e.repo.lock()
	defer m.unlock()
	if err := e.repo.Authorize(s, e, p); err != nil {
		return err
	}
	return e.commitGraph(m, s, op, fn(e.Graph()))
}
