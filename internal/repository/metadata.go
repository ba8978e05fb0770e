package repository

import (
	"context"
	"log/slog"

	"github.com/roach88/mdrepo/internal/events"
	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/queryir"
	"github.com/roach88/mdrepo/internal/store"
	"github.com/roach88/mdrepo/internal/vocab"
)

// Metadata is one metadata graph of an entry: the local graph or the
// cached copy of external metadata.
type Metadata struct {
	repo  *Repository
	entry *Entry
	uri   ir.Term
	local bool
}

// LocalMetadata returns the local metadata graph, nil for Reference
// entries.
func (e *Entry) LocalMetadata() *Metadata {
	if !e.EntryType().HasLocalMetadata() {
		return nil
	}
	return &Metadata{repo: e.repo, entry: e, uri: ir.IRI(e.LocalMetadataURI()), local: true}
}

// CachedExternalMetadata returns the cached copy of external metadata,
// nil for Local and Link entries.
func (e *Entry) CachedExternalMetadata() *Metadata {
	if !e.EntryType().HasExternalMetadata() {
		return nil
	}
	return &Metadata{repo: e.repo, entry: e, uri: ir.IRI(e.CachedExternalMetadataURI())}
}

func (md *Metadata) URI() string { return md.uri.Value }

// Graph returns the statements. Requires ReadMetadata.
func (md *Metadata) Graph(s Session) (ir.Graph, error) {
	if err := md.repo.Authorize(s, md.entry, ReadMetadata); err != nil {
		return nil, err
	}
	g, err := md.repo.readGraph(context.Background(), md.repo.store, md.uri)
	if err != nil {
		return nil, storeError("read metadata", err)
	}
	return g, nil
}

// SetGraph replaces the statements. Requires WriteMetadata.
//
// Objects that are URIs of this repository are mirrored into the
// relations graph of the entry they name. With provenance enabled a local
// replacement appends a revision. A cached copy gets its cache date
// refreshed.
func (md *Metadata) SetGraph(s Session, g ir.Graph) error {
	r := md.repo
	e := md.entry
	m := r.lock()
	defer m.unlock()
	ctx := m.ctx
	if e.IsDeleted() {
		return newEntryMissingError(e.URI())
	}
	if err := r.Authorize(s, e, WriteMetadata); err != nil {
		return err
	}
	old, err := r.readGraph(ctx, r.store, md.uri)
	if err != nil {
		return storeError("set metadata", err)
	}
	g = ir.Triples(g)
	now := r.timestamp()
	var related, revised bool
	err = m.update("set metadata", func(tx store.Tx) error {
		if err := replaceGraph(ctx, tx, md.uri, g); err != nil {
			return err
		}
		var err error
		if related, err = r.relate(ctx, tx, e, old, g); err != nil {
			return err
		}
		if md.local && r.provenance {
			if revised, err = r.addMetadataEntity(ctx, tx, e, old, s, now); err != nil {
				return err
			}
		}
		if !md.local {
			if _, err := tx.Remove(ctx, queryir.S(e.uri, vocab.Cached, ir.Term{}, e.uri)); err != nil {
				return err
			}
			if err := tx.Add(ctx, ir.NewQuad(e.uri, vocab.Cached, now, e.uri)); err != nil {
				return err
			}
		}
		return e.stampIn(ctx, tx, s, now)
	}, e)
	if err != nil {
		return err
	}
	if err := e.refresh(ctx); err != nil {
		slog.Error("refresh entry", "entry", e.URI(), "error", err)
	}
	if revised {
		r.metrics.Revision()
	}
	if md.local {
		m.fire(s, events.MetadataUpdated, e)
	} else {
		m.fire(s, events.ExternalMetadataUpdated, e)
	}
	if related {
		m.fire(s, events.RelationsUpdated, e)
	}
	return nil
}

// MetadataGraph returns the metadata of the entry per its type: the local
// graph, the cached external graph, or both merged for LinkReference.
// Requires ReadMetadata.
func (e *Entry) MetadataGraph(s Session) (ir.Graph, error) {
	if err := e.repo.Authorize(s, e, ReadMetadata); err != nil {
		return nil, err
	}
	g, err := e.metadataGraphs(context.Background(), e.repo.store)
	if err != nil {
		return nil, storeError("read metadata", err)
	}
	return g, nil
}

func (e *Entry) metadataGraphs(ctx context.Context, st store.Statements) (ir.Graph, error) {
	var out ir.Graph
	et := e.EntryType()
	if et.HasLocalMetadata() {
		g, err := e.repo.readGraph(ctx, st, ir.IRI(e.LocalMetadataURI()))
		if err != nil {
			return nil, err
		}
		out = append(out, g...)
	}
	if et.HasExternalMetadata() {
		g, err := e.repo.readGraph(ctx, st, ir.IRI(e.CachedExternalMetadataURI()))
		if err != nil {
			return nil, err
		}
		for _, q := range g {
			out.Add(q.Subject, q.Predicate, q.Object)
		}
	}
	return out, nil
}

// relationsOf maps metadata statements whose object names an entry of
// this repository to the relation statements kept in that entry's
// relations graph.
func (r *Repository) relationsOf(e *Entry, g ir.Graph) map[ir.Quad]struct{} {
	out := make(map[ir.Quad]struct{})
	for _, q := range g {
		if !q.Object.IsIRI() {
			continue
		}
		ctxID, path, id, ok := r.layout.Split(q.Object.Value)
		if !ok || path == "" {
			continue
		}
		if ctxID == e.contextID && id == e.id {
			continue
		}
		out[ir.NewQuad(e.uri, q.Predicate, q.Object, r.layout.Relations(ctxID, id))] = struct{}{}
	}
	return out
}

// relate updates relation statements for a metadata change from old to
// next inside tx and reports whether anything changed.
func (r *Repository) relate(ctx context.Context, tx store.Tx, e *Entry, old, next ir.Graph) (bool, error) {
	before := r.relationsOf(e, old)
	after := r.relationsOf(e, next)
	changed := false
	for q := range before {
		if _, keep := after[q]; keep {
			continue
		}
		if _, err := tx.Remove(ctx, queryir.S(q.Subject, q.Predicate, q.Object, q.Graph)); err != nil {
			return false, err
		}
		changed = true
	}
	var add []ir.Quad
	for q := range after {
		if _, had := before[q]; !had {
			add = append(add, q)
		}
	}
	if len(add) > 0 {
		changed = true
		if err := tx.Add(ctx, add...); err != nil {
			return false, err
		}
	}
	return changed, nil
}

// Relations returns the statements other entries hold about this one,
// list membership included.
func (e *Entry) Relations() (ir.Graph, error) {
	g, err := e.repo.readGraph(context.Background(), e.repo.store, ir.IRI(e.RelationsURI()))
	if err != nil {
		return nil, storeError("read relations", err)
	}
	return g, nil
}
