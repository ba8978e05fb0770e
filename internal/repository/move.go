package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/roach88/mdrepo/internal/blob"
	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/store"
	"github.com/roach88/mdrepo/internal/vocab"
)

// RemoveTree removes an entry and, when it is a list, every descendant
// that no other list refers to. Each removal passes the normal checks.
func (c *Context) RemoveTree(s Session, entryURI string) error {
	m := c.repo.lock()
	defer m.unlock()
	return c.removeTree(m, s, entryURI)
}

func (c *Context) removeTree(m *mutation, s Session, entryURI string) error {
	r := c.repo
	e, err := r.Entry(entryURI)
	if err != nil {
		return err
	}
	if l, ok := r.resourceOf(e).(*List); ok {
		children, err := l.children(m.ctx, r.store)
		if err != nil {
			return storeError("remove tree", err)
		}
		for _, u := range children {
			child, err := r.Entry(u)
			if IsEntryMissingError(err) {
				continue
			}
			if err != nil {
				return err
			}
			parents, err := child.referringLists(m.ctx, r.store)
			if err != nil {
				return storeError("remove tree", err)
			}
			if len(parents) > 1 {
				continue
			}
			if err := c.removeTree(m, s, u); err != nil {
				return err
			}
		}
	}
	return c.remove(m, s, entryURI)
}

// ApplyACLToChildren copies the ACL of the list to its children, and to
// their descendants when recursive. Requires Administer on every entry
// touched.
func (l *List) ApplyACLToChildren(s Session, recursive bool) error {
	m := l.repo.lock()
	defer m.unlock()
	return l.applyACL(m, s, l.entry, recursive, map[string]bool{l.entry.URI(): true})
}

func (l *List) applyACL(m *mutation, s Session, source *Entry, recursive bool, seen map[string]bool) error {
	r := l.repo
	if err := r.Authorize(s, l.entry, Administer); err != nil {
		return err
	}
	children, err := l.children(m.ctx, r.store)
	if err != nil {
		return storeError("apply acl", err)
	}
	for _, u := range children {
		if seen[u] {
			continue
		}
		seen[u] = true
		child, err := r.Entry(u)
		if IsEntryMissingError(err) {
			continue
		}
		if err != nil {
			return err
		}
		if err := r.Authorize(s, child, Administer); err != nil {
			return err
		}
		g := child.Graph()
		for _, p := range AccessProperties {
			g = withACL(g, r.layout, child.contextID, child.id, p, source.AllowedPrincipalsFor(p))
		}
		if err := child.commitGraph(m, s, "apply acl", g); err != nil {
			return err
		}
		if sub, ok := r.resourceOf(child).(*List); ok && recursive {
			if err := sub.applyACL(m, s, source, recursive, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// CopyEntryHere copies an entry, and the subtree below a list, into this
// context and appends the copy to toList when given. URIs of the source
// are rewritten to those of the copy. On failure every copy made so far
// is removed.
func (c *Context) CopyEntryHere(s Session, entryURI, toList string) (*Entry, error) {
	m := c.repo.lock()
	defer m.unlock()
	src, err := c.repo.Entry(entryURI)
	if err != nil {
		return nil, err
	}
	var created []*Entry
	dst, err := c.copyTree(m, s, src, toList, &created)
	if err != nil {
		c.discard(m, s, created)
		return nil, err
	}
	return dst, nil
}

// MoveEntryHere moves an entry into this context and into toList.
//
// Within one context only list membership changes: the entry joins toList
// and leaves fromList, or every other list when removeAll is set. Across
// contexts the subtree is copied here and the original removed; the
// source must be administrable.
func (c *Context) MoveEntryHere(s Session, entryURI, fromList, toList string, removeAll bool) (*Entry, error) {
	r := c.repo
	m := r.lock()
	defer m.unlock()
	src, err := r.Entry(entryURI)
	if err != nil {
		return nil, err
	}
	if src.ContextID() == c.id {
		return src, c.relink(m, s, src, fromList, toList, removeAll)
	}
	if err := r.Authorize(s, src, Administer); err != nil {
		return nil, err
	}
	var created []*Entry
	dst, err := c.copyTree(m, s, src, toList, &created)
	if err != nil {
		c.discard(m, s, created)
		return nil, err
	}
	if err := src.Context().removeTree(m, s, src.URI()); err != nil {
		c.discard(m, s, created)
		return nil, fmt.Errorf("move entry: remove source: %w", err)
	}
	slog.Info("entry moved", "from", src.URI(), "to", dst.URI())
	return dst, nil
}

func (c *Context) relink(m *mutation, s Session, e *Entry, fromList, toList string, removeAll bool) error {
	r := c.repo
	if toList != "" {
		to, err := r.List(toList)
		if err != nil {
			return err
		}
		if err := to.addChild(m, s, e.URI(), childOptions{skipParentCheck: true}); err != nil {
			return err
		}
	}
	var leave []string
	if removeAll {
		parents, err := e.referringLists(m.ctx, r.store)
		if err != nil {
			return storeError("move entry", err)
		}
		for _, p := range parents {
			leave = append(leave, p.Value)
		}
	} else if fromList != "" {
		leave = append(leave, fromList)
	}
	for _, u := range leave {
		from, err := r.List(u)
		if err != nil {
			return err
		}
		if from.URI() == toList || from.entry.URI() == toList {
			continue
		}
		if err := from.removeChild(m, s, e.URI()); err != nil {
			return err
		}
	}
	return nil
}

// discard removes partially created copies, newest first.
func (c *Context) discard(m *mutation, s Session, created []*Entry) {
	for i := len(created) - 1; i >= 0; i-- {
		e := created[i]
		if err := e.Context().remove(m, s.Escalate(), e.URI()); err != nil && !IsEntryMissingError(err) {
			slog.Error("discard partial copy", "entry", e.URI(), "error", err)
		}
	}
}

func (c *Context) copyTree(m *mutation, s Session, src *Entry, toList string, created *[]*Entry) (*Entry, error) {
	r := c.repo
	if err := r.Authorize(s, src, ReadMetadata); err != nil {
		return nil, err
	}
	if err := r.Authorize(s, src, ReadResource); err != nil {
		return nil, err
	}
	gt := src.GraphType()
	if gt.IsContext() || gt.IsPrincipal() {
		return nil, integrityViolation(src.URI(), "%s entries cannot be copied", gt)
	}
	n := NewEntry{
		EntryType:    src.EntryType(),
		GraphType:    gt,
		ResourceType: src.ResourceType(),
		List:         toList,
	}
	if n.EntryType != Local {
		n.ResourceURI = src.ResourceURI()
	}
	if n.EntryType.HasExternalMetadata() {
		n.ExternalMetadataURI = src.ExternalMetadataURI()
	}
	dst, err := c.create(m, s, n)
	if err != nil {
		return nil, err
	}
	*created = append(*created, dst)

	rewrite := map[ir.Term]ir.Term{
		src.uri:                                 dst.uri,
		ir.IRI(src.LocalMetadataURI()):          ir.IRI(dst.LocalMetadataURI()),
		ir.IRI(src.CachedExternalMetadataURI()): ir.IRI(dst.CachedExternalMetadataURI()),
		ir.IRI(src.RelationsURI()):              ir.IRI(dst.RelationsURI()),
	}
	if n.EntryType == Local {
		rewrite[src.resourceTerm()] = dst.resourceTerm()
	}

	g := dst.Graph()
	keepACL := !dst.HasACL()
	md := src.LocalMetadataURI()
	for _, q := range src.Graph().ReplaceAll(rewrite) {
		switch {
		case q.Subject == dst.uri && (vocab.IsStructural(q.Predicate) || q.Predicate == vocab.Type):
		case q.Predicate == vocab.Type && q.Subject == dst.resourceTerm():
		case (q.Predicate == vocab.Read || q.Predicate == vocab.Write) && !keepACL:
		default:
			if _, rev := revisionOf(md, q.Subject.Value); !rev {
				g.Add(q.Subject, q.Predicate, q.Object)
			}
		}
	}

	mdGraphs := map[ir.Term]ir.Term{}
	if n.EntryType.HasLocalMetadata() {
		mdGraphs[ir.IRI(src.LocalMetadataURI())] = ir.IRI(dst.LocalMetadataURI())
	}
	if n.EntryType.HasExternalMetadata() {
		mdGraphs[ir.IRI(src.CachedExternalMetadataURI())] = ir.IRI(dst.CachedExternalMetadataURI())
	}
	copyGraphs := func(ctx context.Context, tx store.Tx) error {
		for from, to := range mdGraphs {
			content, err := r.readGraph(ctx, tx, from)
			if err != nil {
				return err
			}
			content = content.ReplaceAll(rewrite)
			if err := replaceGraph(ctx, tx, to, content); err != nil {
				return err
			}
			if _, err := r.relate(ctx, tx, dst, nil, content); err != nil {
				return err
			}
		}
		switch r.resourceOf(src).(type) {
		case *StringResource, *GraphResource:
			content, err := r.readGraph(ctx, tx, src.resourceTerm())
			if err != nil {
				return err
			}
			return replaceGraph(ctx, tx, dst.resourceTerm(), content.ReplaceAll(rewrite))
		}
		return nil
	}
	if err := dst.commitGraph(m, s, "copy entry", g, copyGraphs); err != nil {
		return nil, err
	}

	switch res := r.resourceOf(src).(type) {
	case *Data:
		if err := c.copyPayload(m, res, dst); err != nil {
			return nil, err
		}
	case *List:
		children, err := res.children(m.ctx, r.store)
		if err != nil {
			return nil, storeError("copy entry", err)
		}
		for _, u := range children {
			child, err := r.Entry(u)
			if IsEntryMissingError(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if _, err := c.copyTree(m, s, child, dst.ResourceURI(), created); err != nil {
				return nil, err
			}
		}
	}
	return dst, nil
}

func (c *Context) copyPayload(m *mutation, src *Data, dst *Entry) error {
	r := c.repo
	data, err := r.blobs.Read(src.key())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("copy payload: %w", err)
	}
	return c.adjust(m.ctx, 0, int64(len(data)), func() error {
		if _, err := r.blobs.Write(blob.Key{Context: c.id, Entry: dst.ID()}, data); err != nil {
			return fmt.Errorf("copy payload: %w", err)
		}
		return nil
	})
}
