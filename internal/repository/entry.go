package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/roach88/mdrepo/internal/events"
	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/store"
	"github.com/roach88/mdrepo/internal/vocab"
)

// Entry is the in-memory view of one entry graph. Entries are obtained
// through a Context or the Repository and are unique per URI while
// referenced. Other entries, lists and contexts are reached by URI, never
// by pointer.
type Entry struct {
	repo      *Repository
	contextID string
	id        string
	uri       ir.Term

	mu      sync.RWMutex
	graph   ir.Graph
	acl     map[AccessProperty]map[string]bool
	deleted bool
}

func newEntry(r *Repository, ctxID, id string, g ir.Graph) *Entry {
	return &Entry{
		repo:      r,
		contextID: ctxID,
		id:        id,
		uri:       r.layout.Entry(ctxID, id),
		graph:     g,
	}
}

func (e *Entry) ID() string        { return e.id }
func (e *Entry) URI() string       { return e.uri.Value }
func (e *Entry) ContextID() string { return e.contextID }

// Context returns the owning context.
func (e *Entry) Context() *Context { return e.repo.context(e.contextID) }

func (e *Entry) LocalMetadataURI() string {
	return e.repo.layout.Metadata(e.contextID, e.id).Value
}

func (e *Entry) CachedExternalMetadataURI() string {
	return e.repo.layout.CachedExternalMetadata(e.contextID, e.id).Value
}

func (e *Entry) RelationsURI() string {
	return e.repo.layout.Relations(e.contextID, e.id).Value
}

// Graph returns a copy of the entry graph.
func (e *Entry) Graph() ir.Graph {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.graph)
}

// IsDeleted reports whether the entry was removed through this instance.
func (e *Entry) IsDeleted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.deleted
}

func (e *Entry) object(s, p ir.Term) (ir.Term, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.graph.Object(s, p)
}

func (e *Entry) objects(s, p ir.Term) []ir.Term {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.graph.Objects(s, p)
}

func (e *Entry) resourceTerm() ir.Term {
	t, _ := e.object(e.uri, vocab.Resource)
	return t
}

func (e *Entry) ResourceURI() string { return e.resourceTerm().Value }

// ExternalMetadataURI is empty for Local and Link entries.
func (e *Entry) ExternalMetadataURI() string {
	t, _ := e.object(e.uri, vocab.ExternalMetadata)
	return t.Value
}

func (e *Entry) EntryType() EntryType {
	for _, t := range e.objects(e.uri, vocab.Type) {
		if et, ok := entryTypeOf(t); ok {
			return et
		}
	}
	return Local
}

func (e *Entry) GraphType() GraphType {
	for _, t := range e.objects(e.resourceTerm(), vocab.Type) {
		if gt, ok := graphTypeOf(t); ok {
			return gt
		}
	}
	return GraphNone
}

func (e *Entry) ResourceType() ResourceType {
	for _, t := range e.objects(e.resourceTerm(), vocab.Type) {
		if rt, ok := resourceTypeOf(t); ok {
			return rt
		}
	}
	return InformationResource
}

func (e *Entry) timeOf(p ir.Term) time.Time {
	t, ok := e.object(e.uri, p)
	if !ok {
		return time.Time{}
	}
	ts, _ := t.Time()
	return ts
}

func (e *Entry) Created() time.Time  { return e.timeOf(vocab.Created) }
func (e *Entry) Modified() time.Time { return e.timeOf(vocab.Modified) }

// ExternalMetadataCached returns when the cached copy was last refreshed.
func (e *Entry) ExternalMetadataCached() time.Time { return e.timeOf(vocab.Cached) }

// Creator returns the creating principal, empty when unknown.
func (e *Entry) Creator() string {
	t, _ := e.object(e.uri, vocab.Creator)
	return t.Value
}

// Contributors returns every principal that modified the entry, sorted.
func (e *Entry) Contributors() []string {
	return termValues(e.objects(e.uri, vocab.Contributor))
}

// OriginalList returns the resource URI of the list the entry was created
// in by a non-owner, or empty.
func (e *Entry) OriginalList() string {
	t, _ := e.object(e.uri, vocab.OriginallyCreatedIn)
	return t.Value
}

func (e *Entry) Filename() string {
	t, _ := e.object(e.uri, vocab.Label)
	return t.Value
}

func (e *Entry) Mimetype() string {
	t, _ := e.object(e.uri, vocab.Format)
	return t.Value
}

// Filesize returns the payload size recorded for a data entry, or -1.
func (e *Entry) Filesize() int64 {
	t, ok := e.object(e.uri, vocab.Extent)
	if !ok {
		return -1
	}
	n, err := t.Int()
	if err != nil {
		return -1
	}
	return n
}

func (e *Entry) ProjectType() string {
	t, _ := e.object(e.uri, vocab.ProjectType)
	return t.Value
}

// aclSlot returns the subject and predicate holding the ACL of p.
func (e *Entry) aclSlot(p AccessProperty) (ir.Term, ir.Term) {
	switch p {
	case ReadMetadata:
		return ir.IRI(e.LocalMetadataURI()), vocab.Read
	case WriteMetadata:
		return ir.IRI(e.LocalMetadataURI()), vocab.Write
	case ReadResource:
		return e.resourceTerm(), vocab.Read
	case WriteResource:
		return e.resourceTerm(), vocab.Write
	default:
		return e.uri, vocab.Write
	}
}

func aclSlotOf(g ir.Graph, l vocab.Layout, ctxID, id string, p AccessProperty) (ir.Term, ir.Term) {
	entry := l.Entry(ctxID, id)
	res, _ := g.Object(entry, vocab.Resource)
	switch p {
	case ReadMetadata:
		return l.Metadata(ctxID, id), vocab.Read
	case WriteMetadata:
		return l.Metadata(ctxID, id), vocab.Write
	case ReadResource:
		return res, vocab.Read
	case WriteResource:
		return res, vocab.Write
	default:
		return entry, vocab.Write
	}
}

// allowed returns the cached principal set of p. The cache is rebuilt on
// first use after every graph change.
func (e *Entry) allowed(p AccessProperty) map[string]bool {
	e.mu.RLock()
	if e.acl != nil {
		set := e.acl[p]
		e.mu.RUnlock()
		return set
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.acl == nil {
		acl := make(map[AccessProperty]map[string]bool, len(AccessProperties))
		for _, prop := range AccessProperties {
			s, pred := aclSlotOf(e.graph, e.repo.layout, e.contextID, e.id, prop)
			set := make(map[string]bool)
			for _, o := range e.graph.Objects(s, pred) {
				set[o.Value] = true
			}
			acl[prop] = set
		}
		e.acl = acl
	}
	return e.acl[p]
}

// AllowedPrincipalsFor returns the principals granted p directly on the
// entry, sorted.
func (e *Entry) AllowedPrincipalsFor(p AccessProperty) []string {
	set := e.allowed(p)
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// HasACL reports whether any property has a direct grant, which overrides
// the context ACL.
func (e *Entry) HasACL() bool {
	for _, p := range AccessProperties {
		if len(e.allowed(p)) > 0 {
			return true
		}
	}
	return false
}

// SetAllowedPrincipalsFor replaces the principals granted p. Requires
// Administer.
func (e *Entry) SetAllowedPrincipalsFor(s Session, p AccessProperty, principals []string) error {
	return e.updateACL(s, p, func(map[string]bool) []string { return principals })
}

// AddAllowedPrincipalsFor grants p to more principals. Requires Administer.
func (e *Entry) AddAllowedPrincipalsFor(s Session, p AccessProperty, principals ...string) error {
	return e.updateACL(s, p, func(cur map[string]bool) []string {
		out := make([]string, 0, len(cur)+len(principals))
		for k := range cur {
			out = append(out, k)
		}
		return append(out, principals...)
	})
}

func (e *Entry) updateACL(s Session, p AccessProperty, next func(map[string]bool) []string) error {
	m := e.repo.lock()
	defer m.unlock()
	if err := e.repo.Authorize(s, e, Administer); err != nil {
		return err
	}
	g := withACL(e.Graph(), e.repo.layout, e.contextID, e.id, p, next(e.allowed(p)))
	return e.commitGraph(m, s, "update acl", g)
}

// withACL returns g with the grants of p replaced by principals.
func withACL(g ir.Graph, l vocab.Layout, ctxID, id string, p AccessProperty, principals []string) ir.Graph {
	subj, pred := aclSlotOf(g, l, ctxID, id, p)
	out := g.Without(subj, pred, ir.Term{})
	for _, pr := range principals {
		if pr != "" {
			out.Add(subj, pred, ir.IRI(pr))
		}
	}
	return out
}

// touched returns g with the modification date bumped and the principal
// recorded as contributor.
func (e *Entry) touched(g ir.Graph, s Session) ir.Graph {
	g = g.Without(e.uri, vocab.Modified, ir.Term{})
	g.Add(e.uri, vocab.Modified, e.repo.timestamp())
	if p := s.Principal(); p != "" && p != e.repo.GuestURI() {
		g.Add(e.uri, vocab.Contributor, ir.IRI(p))
	}
	return g
}

// commitGraph replaces the entry graph in its own transaction, bumping
// modification metadata, and fires EntryUpdated plus the specialized ACL
// and project-type events. extra runs inside the same transaction.
func (e *Entry) commitGraph(m *mutation, s Session, op string, g ir.Graph, extra ...func(context.Context, store.Tx) error) error {
	if e.IsDeleted() {
		return newEntryMissingError(e.URI())
	}
	before := e.Graph()
	g = e.touched(g, s)
	err := m.update(op, func(tx store.Tx) error {
		if err := replaceGraph(m.ctx, tx, e.uri, g); err != nil {
			return err
		}
		for _, fn := range extra {
			if err := fn(m.ctx, tx); err != nil {
				return err
			}
		}
		return nil
	}, e)
	if err != nil {
		return err
	}
	e.setGraph(g)
	e.fireGraphEvents(m, s, before, g)
	return nil
}

func (e *Entry) fireGraphEvents(m *mutation, s Session, before, after ir.Graph) {
	m.fire(s, events.EntryUpdated, e)
	guest := ir.IRI(e.repo.GuestURI())
	for _, p := range []AccessProperty{ReadMetadata, ReadResource} {
		sb, pb := aclSlotOf(before, e.repo.layout, e.contextID, e.id, p)
		sa, pa := aclSlotOf(after, e.repo.layout, e.contextID, e.id, p)
		if before.Contains(ir.Triple(sb, pb, guest)) != after.Contains(ir.Triple(sa, pa, guest)) {
			m.fire(s, events.EntryAclGuestUpdated, e)
			break
		}
	}
	pb, _ := before.Object(e.uri, vocab.ProjectType)
	pa, _ := after.Object(e.uri, vocab.ProjectType)
	if pb != pa {
		m.fire(s, events.EntryProjectTypeUpdated, e)
	}
}

// setGraph installs a committed graph and drops the ACL cache.
func (e *Entry) setGraph(g ir.Graph) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.graph = g
	e.acl = nil
}

func (e *Entry) markDeleted() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleted = true
	e.acl = nil
}

// refresh reloads the entry graph from the store.
func (e *Entry) refresh(ctx context.Context) error {
	g, err := e.repo.readGraph(ctx, e.repo.store, e.uri)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.graph = g
	e.acl = nil
	e.deleted = len(g) == 0
	return nil
}

// minimalGraph returns the statement set written when an entry is created.
func minimalGraph(l vocab.Layout, ctxID, id string, res, extMd ir.Term, et EntryType, gt GraphType, rt ResourceType, creator string, now ir.Term) ir.Graph {
	entry := l.Entry(ctxID, id)
	var g ir.Graph
	g.Add(entry, vocab.Type, et.Term())
	g.Add(entry, vocab.Resource, res)
	if et.HasLocalMetadata() {
		g.Add(entry, vocab.Metadata, l.Metadata(ctxID, id))
	}
	if et.HasExternalMetadata() {
		g.Add(entry, vocab.ExternalMetadata, extMd)
		g.Add(entry, vocab.CachedExternalMetadata, l.CachedExternalMetadata(ctxID, id))
	}
	g.Add(entry, vocab.Relation, l.Relations(ctxID, id))
	if gt != GraphNone {
		g.Add(res, vocab.Type, gt.Term())
	}
	g.Add(res, vocab.Type, rt.Term())
	g.Add(entry, vocab.Created, now)
	g.Add(entry, vocab.Modified, now)
	if creator != "" {
		g.Add(entry, vocab.Creator, ir.IRI(creator))
	}
	return g
}

func termValues(ts []ir.Term) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Value)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
