package repository

import (
	"context"
	"log/slog"
	"slices"
	"sort"

	"github.com/roach88/mdrepo/internal/events"
	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/queryir"
	"github.com/roach88/mdrepo/internal/store"
	"github.com/roach88/mdrepo/internal/vocab"
)

// List is the ordered child sequence of a List, ResultList or Group
// entry. The sequence lives in the resource graph as rdf:_n statements;
// each child records the list in its relations graph.
type List struct {
	repo   *Repository
	entry  *Entry
	member ir.Term
}

// List resolves an entry or resource URI to a list.
func (r *Repository) List(uri string) (*List, error) {
	e, err := r.EntryByURI(uri)
	if err != nil {
		return nil, err
	}
	switch e.GraphType() {
	case GraphList, GraphResultList, GraphGroup:
	default:
		return nil, integrityViolation(e.URI(), "not a list but %s", e.GraphType())
	}
	if e.EntryType() != Local {
		return nil, integrityViolation(e.URI(), "lists must be Local entries")
	}
	return r.listOf(e), nil
}

func (r *Repository) listOf(e *Entry) *List {
	member := vocab.HasListMember
	if e.GraphType() == GraphGroup {
		member = vocab.HasGroupMember
	}
	return &List{repo: r, entry: e, member: member}
}

func (l *List) Entry() *Entry { return l.entry }

// URI returns the resource URI of the list.
func (l *List) URI() string { return l.entry.ResourceURI() }

func (l *List) res() ir.Term { return l.entry.resourceTerm() }

// ChildOption relaxes a list rule for one call.
type ChildOption func(*childOptions)

type childOptions struct {
	skipParentCheck bool
	allowDuplicates bool
}

// SkipParentCheck lets a list child gain a second parent list.
func SkipParentCheck() ChildOption {
	return func(o *childOptions) { o.skipParentCheck = true }
}

// AllowDuplicates lets the same child appear more than once.
func AllowDuplicates() ChildOption {
	return func(o *childOptions) { o.allowDuplicates = true }
}

func applyChildOptions(opts []ChildOption) childOptions {
	var o childOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Children returns the child entry URIs in order. Requires ReadResource.
func (l *List) Children(s Session) ([]string, error) {
	if err := l.repo.Authorize(s, l.entry, ReadResource); err != nil {
		return nil, err
	}
	out, err := l.children(context.Background(), l.repo.store)
	if err != nil {
		return nil, storeError("read children", err)
	}
	return out, nil
}

func (l *List) children(ctx context.Context, st store.Statements) ([]string, error) {
	res := l.res()
	qs, err := st.Query(ctx, queryir.S(res, ir.Term{}, ir.Term{}, res))
	if err != nil {
		return nil, err
	}
	type item struct {
		n   int
		uri string
	}
	items := make([]item, 0, len(qs))
	for _, q := range qs {
		if n, ok := vocab.SeqIndex(q.Predicate); ok {
			items = append(items, item{n, q.Object.Value})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].n < items[j].n })
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.uri
	}
	return out, nil
}

// writeIn replaces the sequence, renumbering from 1.
func (l *List) writeIn(ctx context.Context, tx store.Tx, children []string) error {
	res := l.res()
	if _, err := tx.Remove(ctx, queryir.S(res, ir.Term{}, ir.Term{}, res)); err != nil {
		return err
	}
	quads := make([]ir.Quad, 0, len(children)+1)
	quads = append(quads, ir.NewQuad(res, vocab.Type, vocab.Seq, res))
	for i, c := range children {
		quads = append(quads, ir.NewQuad(res, vocab.SeqMember(i+1), ir.IRI(c), res))
	}
	return tx.Add(ctx, quads...)
}

// relationIn returns the statement recording the list in the child's
// relations graph.
func (l *List) relationIn(child ir.Term) (ir.Quad, bool) {
	ctxID, _, id, ok := l.repo.layout.Split(child.Value)
	if !ok {
		return ir.Quad{}, false
	}
	return ir.NewQuad(l.res(), l.member, child, l.repo.layout.Relations(ctxID, id)), true
}

// appendIn adds child at the end of the sequence inside tx.
func (l *List) appendIn(ctx context.Context, tx store.Tx, child ir.Term) error {
	cur, err := l.children(ctx, tx)
	if err != nil {
		return err
	}
	if err := l.writeIn(ctx, tx, append(cur, child.Value)); err != nil {
		return err
	}
	if q, ok := l.relationIn(child); ok {
		return tx.Add(ctx, q)
	}
	return nil
}

// dropIn removes every occurrence of child inside tx.
func (l *List) dropIn(ctx context.Context, tx store.Tx, child ir.Term) error {
	cur, err := l.children(ctx, tx)
	if err != nil {
		return err
	}
	next := slices.DeleteFunc(cur, func(c string) bool { return c == child.Value })
	if err := l.writeIn(ctx, tx, next); err != nil {
		return err
	}
	if q, ok := l.relationIn(child); ok {
		_, err := tx.Remove(ctx, queryir.S(q.Subject, q.Predicate, q.Object, q.Graph))
		return err
	}
	return nil
}

// child loads a prospective child and checks it lives in the list context.
func (l *List) child(uri string) (*Entry, error) {
	c, err := l.repo.Entry(uri)
	if err != nil {
		return nil, err
	}
	if c.ContextID() != l.entry.ContextID() {
		return nil, integrityViolation(uri, "child must belong to context %s", l.entry.ContextID())
	}
	if c.URI() == l.entry.URI() {
		return nil, integrityViolation(uri, "a list cannot contain itself")
	}
	return c, nil
}

// checkParent enforces a single parent list per list child.
func (l *List) checkParent(ctx context.Context, c *Entry, o childOptions) error {
	if o.skipParentCheck || l.member != vocab.HasListMember {
		return nil
	}
	switch c.GraphType() {
	case GraphList, GraphResultList:
	default:
		return nil
	}
	parents, err := c.referringLists(ctx, l.repo.store)
	if err != nil {
		return storeError("check parent", err)
	}
	for _, p := range parents {
		if p != l.res() {
			return integrityViolation(c.URI(), "already contained in list %s", p.Value)
		}
	}
	return nil
}

// orphaning reports whether removing c from l leaves it in no list.
func (l *List) orphaning(ctx context.Context, c *Entry) (bool, error) {
	parents, err := c.referringLists(ctx, l.repo.store)
	if err != nil {
		return false, storeError("check parents", err)
	}
	for _, p := range parents {
		if p != l.res() {
			return false, nil
		}
	}
	return true, nil
}

// AddChild appends an entry of the same context. Adding an existing
// child is refused unless duplicates are allowed. When the context owner
// adds a child its originally-created-in marker is cleared.
func (l *List) AddChild(s Session, childURI string, opts ...ChildOption) error {
	r := l.repo
	m := r.lock()
	defer m.unlock()
	return l.addChild(m, s, childURI, applyChildOptions(opts))
}

func (l *List) addChild(m *mutation, s Session, childURI string, o childOptions) error {
	r := l.repo
	ctx := m.ctx
	if err := r.Authorize(s, l.entry, WriteResource); err != nil {
		return err
	}
	c, err := l.child(childURI)
	if err != nil {
		return err
	}
	cur, err := l.children(ctx, r.store)
	if err != nil {
		return storeError("add child", err)
	}
	if slices.Contains(cur, c.URI()) && !o.allowDuplicates {
		return integrityViolation(c.URI(), "already a child of %s", l.URI())
	}
	if err := l.checkParent(ctx, c, o); err != nil {
		return err
	}
	owner, err := r.isOwner(s, l.entry.ContextID())
	if err != nil {
		return err
	}
	clearMarker := owner && c.OriginalList() != ""

	err = m.update("add child", func(tx store.Tx) error {
		if err := l.appendIn(ctx, tx, c.uri); err != nil {
			return err
		}
		if clearMarker {
			if _, err := tx.Remove(ctx, queryir.S(c.uri, vocab.OriginallyCreatedIn, ir.Term{}, c.uri)); err != nil {
				return err
			}
		}
		return touchIn(ctx, tx, l.entry.uri, r.timestamp())
	}, l.entry, c)
	if err != nil {
		return err
	}
	l.afterChange(m, s, c, clearMarker)
	return nil
}

// RemoveChild takes an entry out of the list. A removal that leaves the
// child in no list needs the context owner, unless the child was not
// created through a list by a non-owner.
func (l *List) RemoveChild(s Session, childURI string) error {
	r := l.repo
	m := r.lock()
	defer m.unlock()
	return l.removeChild(m, s, childURI)
}

func (l *List) removeChild(m *mutation, s Session, childURI string) error {
	r := l.repo
	ctx := m.ctx
	if err := r.Authorize(s, l.entry, WriteResource); err != nil {
		return err
	}
	c, err := r.Entry(childURI)
	if err != nil {
		return err
	}
	cur, err := l.children(ctx, r.store)
	if err != nil {
		return storeError("remove child", err)
	}
	if !slices.Contains(cur, c.URI()) {
		return integrityViolation(childURI, "not a child of %s", l.URI())
	}
	orphan, err := l.orphaning(ctx, c)
	if err != nil {
		return err
	}
	clearMarker := false
	if orphan && c.OriginalList() != "" {
		owner, err := r.isOwner(s, l.entry.ContextID())
		if err != nil {
			return err
		}
		if !owner {
			r.metrics.Denied(Administer.String())
			return newAuthorizationError(s.Principal(), childURI, Administer)
		}
		clearMarker = true
	}

	err = m.update("remove child", func(tx store.Tx) error {
		if err := l.dropIn(ctx, tx, c.uri); err != nil {
			return err
		}
		if clearMarker {
			if _, err := tx.Remove(ctx, queryir.S(c.uri, vocab.OriginallyCreatedIn, ir.Term{}, c.uri)); err != nil {
				return err
			}
		}
		return touchIn(ctx, tx, l.entry.uri, r.timestamp())
	}, l.entry, c)
	if err != nil {
		return err
	}
	l.afterChange(m, s, c, clearMarker)
	return nil
}

func (l *List) afterChange(m *mutation, s Session, c *Entry, childChanged bool) {
	if err := l.entry.refresh(m.ctx); err != nil {
		slog.Error("refresh list", "list", l.entry.URI(), "error", err)
	}
	if childChanged {
		if err := c.refresh(m.ctx); err != nil {
			slog.Error("refresh child", "entry", c.URI(), "error", err)
		}
		m.fire(s, events.EntryUpdated, c)
	}
	m.fire(s, events.ResourceUpdated, l.entry)
}

// SetChildren replaces the whole sequence. New children obey the parent
// rule, dropped children the orphan rule. When the context owner sets the
// sequence, the markers of added and dropped children are cleared.
func (l *List) SetChildren(s Session, uris []string, opts ...ChildOption) error {
	r := l.repo
	m := r.lock()
	defer m.unlock()
	ctx := m.ctx
	o := applyChildOptions(opts)
	if err := r.Authorize(s, l.entry, WriteResource); err != nil {
		return err
	}
	if !o.allowDuplicates {
		for i, u := range uris {
			if slices.Contains(uris[:i], u) {
				return integrityViolation(u, "duplicate child of %s", l.URI())
			}
		}
	}
	cur, err := l.children(ctx, r.store)
	if err != nil {
		return storeError("set children", err)
	}

	owner, err := r.isOwner(s, l.entry.ContextID())
	if err != nil {
		return err
	}
	var added, dropped []*Entry
	for _, u := range uris {
		if slices.Contains(cur, u) || slices.ContainsFunc(added, func(e *Entry) bool { return e.URI() == u }) {
			continue
		}
		c, err := l.child(u)
		if err != nil {
			return err
		}
		if err := l.checkParent(ctx, c, o); err != nil {
			return err
		}
		added = append(added, c)
	}
	for _, u := range cur {
		if slices.Contains(uris, u) {
			continue
		}
		c, err := r.Entry(u)
		if IsEntryMissingError(err) {
			continue
		}
		if err != nil {
			return err
		}
		orphan, err := l.orphaning(ctx, c)
		if err != nil {
			return err
		}
		if orphan && c.OriginalList() != "" && !owner {
			r.metrics.Denied(Administer.String())
			return newAuthorizationError(s.Principal(), u, Administer)
		}
		dropped = append(dropped, c)
	}
	var marked []*Entry
	if owner {
		for _, c := range slices.Concat(added, dropped) {
			if c.OriginalList() != "" {
				marked = append(marked, c)
			}
		}
	}

	refresh := slices.Concat([]*Entry{l.entry}, added, dropped)
	err = m.update("set children", func(tx store.Tx) error {
		if err := l.writeIn(ctx, tx, uris); err != nil {
			return err
		}
		for _, c := range added {
			if q, ok := l.relationIn(c.uri); ok {
				if err := tx.Add(ctx, q); err != nil {
					return err
				}
			}
		}
		for _, c := range dropped {
			if q, ok := l.relationIn(c.uri); ok {
				if _, err := tx.Remove(ctx, queryir.S(q.Subject, q.Predicate, q.Object, q.Graph)); err != nil {
					return err
				}
			}
		}
		for _, c := range marked {
			if _, err := tx.Remove(ctx, queryir.S(c.uri, vocab.OriginallyCreatedIn, ir.Term{}, c.uri)); err != nil {
				return err
			}
		}
		return touchIn(ctx, tx, l.entry.uri, r.timestamp())
	}, refresh...)
	if err != nil {
		return err
	}
	if err := l.entry.refresh(ctx); err != nil {
		slog.Error("refresh list", "list", l.entry.URI(), "error", err)
	}
	for _, c := range slices.Concat(added, dropped) {
		if err := c.refresh(ctx); err != nil {
			slog.Error("refresh child", "entry", c.URI(), "error", err)
		}
		m.fire(s, events.EntryUpdated, c)
	}
	m.fire(s, events.ResourceUpdated, l.entry)
	return nil
}

// MoveChildAfter places child directly after anchor.
func (l *List) MoveChildAfter(s Session, child, anchor string) error {
	return l.move(s, child, anchor, 1)
}

// MoveChildBefore places child directly before anchor.
func (l *List) MoveChildBefore(s Session, child, anchor string) error {
	return l.move(s, child, anchor, 0)
}

func (l *List) move(s Session, child, anchor string, offset int) error {
	r := l.repo
	m := r.lock()
	defer m.unlock()
	ctx := m.ctx
	if err := r.Authorize(s, l.entry, WriteResource); err != nil {
		return err
	}
	cur, err := l.children(ctx, r.store)
	if err != nil {
		return storeError("move child", err)
	}
	from := slices.Index(cur, child)
	if from < 0 {
		return integrityViolation(child, "not a child of %s", l.URI())
	}
	if !slices.Contains(cur, anchor) {
		return integrityViolation(anchor, "not a child of %s", l.URI())
	}
	if child == anchor {
		return nil
	}
	next := slices.Delete(slices.Clone(cur), from, from+1)
	at := slices.Index(next, anchor) + offset
	next = slices.Insert(next, at, child)

	err = m.update("move child", func(tx store.Tx) error {
		if err := l.writeIn(ctx, tx, next); err != nil {
			return err
		}
		return touchIn(ctx, tx, l.entry.uri, r.timestamp())
	}, l.entry)
	if err != nil {
		return err
	}
	if err := l.entry.refresh(ctx); err != nil {
		slog.Error("refresh list", "list", l.entry.URI(), "error", err)
	}
	m.fire(s, events.ResourceUpdated, l.entry)
	return nil
}

// removeIn clears the sequence and the relations it put on children.
func (l *List) removeIn(ctx context.Context, tx store.Tx) error {
	cur, err := l.children(ctx, tx)
	if err != nil {
		return err
	}
	for _, c := range cur {
		if q, ok := l.relationIn(ir.IRI(c)); ok {
			if _, err := tx.Remove(ctx, queryir.S(q.Subject, q.Predicate, q.Object, q.Graph)); err != nil {
				return err
			}
		}
	}
	_, err = tx.Remove(ctx, queryir.Graph(l.res()))
	return err
}

// ReferringLists returns the resource URIs of the lists and groups that
// contain the entry, sorted.
func (e *Entry) ReferringLists() ([]string, error) {
	ts, err := e.referringLists(context.Background(), e.repo.store)
	if err != nil {
		return nil, storeError("referring lists", err)
	}
	return termValues(ts), nil
}

func (e *Entry) referringLists(ctx context.Context, st store.Statements) ([]ir.Term, error) {
	rel := ir.IRI(e.RelationsURI())
	var out []ir.Term
	for _, p := range []ir.Term{vocab.HasListMember, vocab.HasGroupMember} {
		qs, err := st.Query(ctx, queryir.S(ir.Term{}, p, e.uri, rel))
		if err != nil {
			return nil, err
		}
		for _, q := range qs {
			out = append(out, q.Subject)
		}
	}
	return out, nil
}
