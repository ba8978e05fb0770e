package repository

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/queryir"
	"github.com/roach88/mdrepo/internal/store"
	"github.com/roach88/mdrepo/internal/vocab"
)

// MetadataEntity is one revision of the local metadata of an entry.
// Revisions are kept as statements in the entry graph:
//
//	<md?rev=N> prov:wasAttributedTo <principal>
//	<md?rev=N> prov:generatedAtTime "t"
//	<md?rev=N> prov:wasRevisionOf <md?rev=N-1>
//	<md?rev=N> owl:sameAs <md>                 (head only)
//
// The content of a non-head revision is the named graph of its URI; the
// head's content is the metadata graph itself.
type MetadataEntity struct {
	URI          string
	Revision     int
	AttributedTo string
	GeneratedAt  time.Time
	RevisionOf   string
	Head         bool
}

func revisionURI(md string, n int) ir.Term {
	return ir.IRI(md + "?rev=" + strconv.Itoa(n))
}

func revisionOf(md, uri string) (int, bool) {
	s, ok := strings.CutPrefix(uri, md+"?rev=")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	return n, err == nil && n > 0
}

// Provenance reads the revision chain of an entry's local metadata. Reads
// never change the chain.
type Provenance struct {
	entry *Entry
}

// Provenance returns the ledger of the entry.
func (e *Entry) Provenance() *Provenance { return &Provenance{entry: e} }

// Entities returns every revision, oldest first.
func (p *Provenance) Entities() []MetadataEntity {
	return entitiesOf(p.entry.Graph(), p.entry.LocalMetadataURI())
}

func entitiesOf(g ir.Graph, md string) []MetadataEntity {
	byRev := map[int]*MetadataEntity{}
	get := func(s ir.Term) *MetadataEntity {
		n, ok := revisionOf(md, s.Value)
		if !ok {
			return nil
		}
		if ent, ok := byRev[n]; ok {
			return ent
		}
		ent := &MetadataEntity{URI: s.Value, Revision: n}
		byRev[n] = ent
		return ent
	}
	for _, q := range g {
		ent := get(q.Subject)
		if ent == nil {
			continue
		}
		switch q.Predicate {
		case vocab.WasAttributedTo:
			ent.AttributedTo = q.Object.Value
		case vocab.GeneratedAtTime:
			ent.GeneratedAt, _ = q.Object.Time()
		case vocab.WasRevisionOf:
			ent.RevisionOf = q.Object.Value
		case vocab.SameAs:
			ent.Head = q.Object.Value == md
		}
	}
	out := make([]MetadataEntity, 0, len(byRev))
	for _, ent := range byRev {
		out = append(out, *ent)
	}
	slices.SortFunc(out, func(a, b MetadataEntity) int { return a.Revision - b.Revision })
	return out
}

// Head returns the current revision.
func (p *Provenance) Head() (MetadataEntity, bool) {
	for _, ent := range p.Entities() {
		if ent.Head {
			return ent, true
		}
	}
	return MetadataEntity{}, false
}

// EntityAt returns the revision in effect at t.
func (p *Provenance) EntityAt(t time.Time) (MetadataEntity, bool) {
	var found MetadataEntity
	ok := false
	for _, ent := range p.Entities() {
		if ent.GeneratedAt.After(t) {
			break
		}
		found, ok = ent, true
	}
	return found, ok
}

// EntityFor returns the revision with the given URI.
func (p *Provenance) EntityFor(uri string) (MetadataEntity, bool) {
	for _, ent := range p.Entities() {
		if ent.URI == uri {
			return ent, true
		}
	}
	return MetadataEntity{}, false
}

// EntityForRevision returns revision n.
func (p *Provenance) EntityForRevision(n int) (MetadataEntity, bool) {
	for _, ent := range p.Entities() {
		if ent.Revision == n {
			return ent, true
		}
	}
	return MetadataEntity{}, false
}

// Graph returns the metadata as of revision ent. Requires ReadMetadata.
func (p *Provenance) Graph(s Session, ent MetadataEntity) (ir.Graph, error) {
	e := p.entry
	if err := e.repo.Authorize(s, e, ReadMetadata); err != nil {
		return nil, err
	}
	g := ir.IRI(ent.URI)
	if ent.Head {
		g = ir.IRI(e.LocalMetadataURI())
	}
	out, err := e.repo.readGraph(context.Background(), e.repo.store, g)
	if err != nil {
		return nil, storeError("read revision", err)
	}
	return out, nil
}

// addMetadataEntity appends a revision for a metadata replacement inside
// tx. old is the content being replaced; it becomes the stored content of
// the demoted head. Without an attributable principal nothing is
// recorded.
func (r *Repository) addMetadataEntity(ctx context.Context, tx store.Tx, e *Entry, old ir.Graph, s Session, now ir.Term) (bool, error) {
	principal := s.Principal()
	if principal == "" {
		return false, nil
	}
	md := e.LocalMetadataURI()
	g, err := r.readGraph(ctx, tx, e.uri)
	if err != nil {
		return false, err
	}
	ents := entitiesOf(g, md)
	next := 1
	var head ir.Term
	for _, ent := range ents {
		next = max(next, ent.Revision+1)
		if ent.Head {
			head = ir.IRI(ent.URI)
		}
	}
	if !head.IsZero() {
		if _, err := tx.Remove(ctx, queryir.S(head, vocab.SameAs, ir.IRI(md), e.uri)); err != nil {
			return false, err
		}
		if err := tx.Add(ctx, old.InGraph(head)...); err != nil {
			return false, err
		}
	}
	rev := revisionURI(md, next)
	quads := []ir.Quad{
		ir.NewQuad(rev, vocab.WasAttributedTo, ir.IRI(principal), e.uri),
		ir.NewQuad(rev, vocab.GeneratedAtTime, now, e.uri),
		ir.NewQuad(rev, vocab.SameAs, ir.IRI(md), e.uri),
	}
	if !head.IsZero() {
		quads = append(quads, ir.NewQuad(rev, vocab.WasRevisionOf, head, e.uri))
	}
	return true, tx.Add(ctx, quads...)
}

// revisionGraphs returns the named graphs holding revision content.
func (e *Entry) revisionGraphs(ctx context.Context, st store.Statements) ([]ir.Term, error) {
	g, err := e.repo.readGraph(ctx, st, e.uri)
	if err != nil {
		return nil, err
	}
	var out []ir.Term
	for _, ent := range entitiesOf(g, e.LocalMetadataURI()) {
		if !ent.Head {
			out = append(out, ir.IRI(ent.URI))
		}
	}
	return out, nil
}

// revisionStatements returns the provenance statements of g.
func revisionStatements(g ir.Graph, md string) ir.Graph {
	var out ir.Graph
	for _, q := range g {
		if _, ok := revisionOf(md, q.Subject.Value); ok {
			out = append(out, q)
		}
	}
	return out
}
