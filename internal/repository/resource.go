package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/mdrepo/internal/blob"
	"github.com/roach88/mdrepo/internal/events"
	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/queryir"
	"github.com/roach88/mdrepo/internal/store"
	"github.com/roach88/mdrepo/internal/vocab"
)

// Resource is the repository-held resource of a Local entry. The concrete
// type depends on the graph type: *Data, *List, *Group, *User,
// *ContextResource, *StringResource or *GraphResource.
type Resource interface {
	Entry() *Entry
}

// resourceRemover is implemented by resources that hold state besides the
// entry graphs. prepareRemove runs before the removal transaction,
// removeIn inside it and afterRemove after the commit.
type resourceRemover interface {
	prepareRemove(m *mutation) error
	removeIn(ctx context.Context, tx store.Tx) error
	afterRemove(m *mutation, s Session)
}

type resourceFactory func(r *Repository, e *Entry) Resource

var resourceKinds = map[GraphType]resourceFactory{}

func registerResource(f resourceFactory, types ...GraphType) {
	for _, t := range types {
		if _, dup := resourceKinds[t]; dup {
			panic(fmt.Sprintf("resource kind %s registered twice", t))
		}
		resourceKinds[t] = f
	}
}

func init() {
	registerResource(func(r *Repository, e *Entry) Resource { return &Data{repo: r, entry: e} },
		GraphNone, GraphPipelineResult)
	registerResource(func(r *Repository, e *Entry) Resource { return r.listOf(e) },
		GraphList, GraphResultList)
	registerResource(func(r *Repository, e *Entry) Resource { return &Group{r.listOf(e)} },
		GraphGroup)
	registerResource(func(r *Repository, e *Entry) Resource { return &User{repo: r, entry: e} },
		GraphUser)
	registerResource(func(r *Repository, e *Entry) Resource { return &ContextResource{repo: r, entry: e} },
		GraphContext, GraphSystemContext)
	registerResource(func(r *Repository, e *Entry) Resource { return &StringResource{repo: r, entry: e} },
		GraphString)
	registerResource(func(r *Repository, e *Entry) Resource { return &GraphResource{repo: r, entry: e} },
		GraphGraph, GraphPipeline)
}

// Resource returns the repository-held resource, or nil when the entry
// describes a resource kept elsewhere.
func (e *Entry) Resource() Resource {
	return e.repo.resourceOf(e)
}

func (r *Repository) resourceOf(e *Entry) Resource {
	if e.EntryType() != Local {
		return nil
	}
	f, ok := resourceKinds[e.GraphType()]
	if !ok {
		return nil
	}
	return f(r, e)
}

func (l *List) prepareRemove(*mutation) error { return nil }
func (l *List) afterRemove(*mutation, Session) {}

// ContextResource is the resource of a context entry.
type ContextResource struct {
	repo  *Repository
	entry *Entry

	doomed []*Entry
}

func (c *ContextResource) Entry() *Entry { return c.entry }

// Context returns the context the entry stands for.
func (c *ContextResource) Context() (*Context, error) {
	return c.repo.Context(c.entry.ID())
}

func (c *ContextResource) prepareRemove(*mutation) error {
	ctx := c.repo.context(c.entry.ID())
	uris, err := ctx.Entries()
	if err != nil {
		return err
	}
	for _, u := range uris {
		e, err := c.repo.Entry(u)
		if IsEntryMissingError(err) {
			continue
		}
		if err != nil {
			return err
		}
		c.doomed = append(c.doomed, e)
	}
	return nil
}

// removeIn drops every graph of the context.
func (c *ContextResource) removeIn(ctx context.Context, tx store.Tx) error {
	id := c.entry.ID()
	if _, err := tx.Remove(ctx, queryir.Select{
		Filter: queryir.HasPrefix{Position: queryir.GraphPos, Prefix: c.repo.layout.Context(id).Value + "/"},
	}); err != nil {
		return err
	}
	_, err := tx.Remove(ctx, queryir.Graph(c.repo.layout.Context(id)))
	return err
}

func (c *ContextResource) afterRemove(m *mutation, s Session) {
	id := c.entry.ID()
	for _, e := range c.doomed {
		if err := c.repo.blobs.Delete(blob.Key{Context: id, Entry: e.ID()}); err != nil {
			slog.Error("delete payload", "entry", e.URI(), "error", err)
		}
		c.repo.cache.remove(e.URI())
		e.markDeleted()
		m.fire(s, events.EntryDeleted, e)
	}
	c.repo.dropContext(id)
	slog.Info("context removed", "context", id, "entries", len(c.doomed))
}

// StringResource is a literal value kept in the resource graph.
type StringResource struct {
	repo  *Repository
	entry *Entry
}

func (r *StringResource) Entry() *Entry { return r.entry }

// Value returns the string. Requires ReadResource.
func (r *StringResource) Value(s Session) (string, error) {
	if err := r.repo.Authorize(s, r.entry, ReadResource); err != nil {
		return "", err
	}
	res := r.entry.resourceTerm()
	qs, err := r.repo.store.Query(context.Background(), queryir.Select{Pattern: queryir.S(res, vocab.Value, ir.Term{}, res), Limit: 1})
	if err != nil {
		return "", storeError("read string", err)
	}
	if len(qs) == 0 {
		return "", nil
	}
	return qs[0].Object.Value, nil
}

// SetValue replaces the string. Requires WriteResource.
func (r *StringResource) SetValue(s Session, v string) error {
	res := r.entry.resourceTerm()
	var g ir.Graph
	g.Add(res, vocab.Value, ir.Literal(v))
	return writeResourceGraph(r.repo, s, r.entry, "write string", g)
}

func (r *StringResource) prepareRemove(*mutation) error { return nil }
func (r *StringResource) afterRemove(*mutation, Session) {}

func (r *StringResource) removeIn(ctx context.Context, tx store.Tx) error {
	_, err := tx.Remove(ctx, queryir.Graph(r.entry.resourceTerm()))
	return err
}

// GraphResource is a statement set kept in the named graph of the
// resource URI.
type GraphResource struct {
	repo  *Repository
	entry *Entry
}

func (r *GraphResource) Entry() *Entry { return r.entry }

// Graph returns the statements. Requires ReadResource.
func (r *GraphResource) Graph(s Session) (ir.Graph, error) {
	if err := r.repo.Authorize(s, r.entry, ReadResource); err != nil {
		return nil, err
	}
	g, err := r.repo.readGraph(context.Background(), r.repo.store, r.entry.resourceTerm())
	if err != nil {
		return nil, storeError("read graph resource", err)
	}
	return g, nil
}

// SetGraph replaces the statements. Requires WriteResource.
func (r *GraphResource) SetGraph(s Session, g ir.Graph) error {
	return writeResourceGraph(r.repo, s, r.entry, "write graph resource", g)
}

func (r *GraphResource) prepareRemove(*mutation) error { return nil }
func (r *GraphResource) afterRemove(*mutation, Session) {}

func (r *GraphResource) removeIn(ctx context.Context, tx store.Tx) error {
	_, err := tx.Remove(ctx, queryir.Graph(r.entry.resourceTerm()))
	return err
}

func writeResourceGraph(r *Repository, s Session, e *Entry, op string, g ir.Graph) error {
	m := r.lock()
	defer m.unlock()
	if err := r.Authorize(s, e, WriteResource); err != nil {
		return err
	}
	now := r.timestamp()
	err := m.update(op, func(tx store.Tx) error {
		if err := replaceGraph(m.ctx, tx, e.resourceTerm(), g); err != nil {
			return err
		}
		return e.stampIn(m.ctx, tx, s, now)
	}, e)
	if err != nil {
		return err
	}
	if err := e.refresh(m.ctx); err != nil {
		slog.Error("refresh entry", "entry", e.URI(), "error", err)
	}
	m.fire(s, events.ResourceUpdated, e)
	return nil
}

// stampIn bumps the modification date and records the contributor
// inside tx.
func (e *Entry) stampIn(ctx context.Context, tx store.Tx, s Session, now ir.Term) error {
	if err := touchIn(ctx, tx, e.uri, now); err != nil {
		return err
	}
	if p := s.Principal(); p != "" && p != e.repo.GuestURI() {
		return tx.Add(ctx, ir.NewQuad(e.uri, vocab.Contributor, ir.IRI(p), e.uri))
	}
	return nil
}
