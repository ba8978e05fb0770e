package repository

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/mdrepo/internal/events"
	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/queryir"
	"github.com/roach88/mdrepo/internal/store"
	"github.com/roach88/mdrepo/internal/vocab"
)

// Context is a container of entries. It owns the container index, which is
// derived from index statements in the context graph:
//
//	<resource> es:resHasMMd <entry>
//	<external metadata> es:mdHasMMd <entry>
//	<context> es:counter "n"
//
// The index is loaded once per instance and updated only after commits.
type Context struct {
	repo *Repository
	id   string
	uri  ir.Term

	mu        sync.Mutex
	loaded    bool
	resources map[string]map[string]struct{}
	external  map[string]map[string]struct{}
	counter   int64

	// system holds entry URIs that cannot be removed. Set at bootstrap.
	system map[string]bool

	quota *quotaAccountant
}

func newContext(r *Repository, id string) *Context {
	return &Context{
		repo:  r,
		id:    id,
		uri:   r.layout.Context(id),
		quota: newQuotaAccountant(),
	}
}

func (c *Context) ID() string  { return c.id }
func (c *Context) URI() string { return c.uri.Value }

// Entry returns the entry backing this context.
func (c *Context) Entry() (*Entry, error) {
	return c.repo.contextEntry(c.id)
}

// Name returns the context alias, or empty.
func (c *Context) Name() (string, error) {
	cs, err := c.repo.Context(vocab.ContextsID)
	if err != nil {
		return "", err
	}
	return cs.EntryName(c.repo.layout.Entry(vocab.ContextsID, c.id).Value)
}

// IsSystemEntry reports whether uri is one of the immutable system entries.
func (c *Context) IsSystemEntry(uri string) bool { return c.system[uri] }

// SystemEntries returns the system entry URIs, sorted.
func (c *Context) SystemEntries() []string {
	return slices.Sorted(maps.Keys(c.system))
}

// Get returns the entry with identifier id.
func (c *Context) Get(id string) (*Entry, error) {
	return c.repo.loadEntry(c.id, id)
}

// LoadIndex builds the index from the context graph. Only the first call
// per instance reads the store.
func (c *Context) LoadIndex() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	qs, err := c.repo.store.Query(context.Background(), queryir.Graph(c.uri))
	if err != nil {
		return storeError("load index", err)
	}
	resources := make(map[string]map[string]struct{})
	external := make(map[string]map[string]struct{})
	var counter int64
	for _, q := range qs {
		switch q.Predicate {
		case vocab.ResHasEntry:
			push(resources, q.Subject.Value, q.Object.Value)
		case vocab.MdHasEntry:
			push(external, q.Subject.Value, q.Object.Value)
		case vocab.Counter:
			n, err := q.Object.Int()
			if err != nil {
				slog.Error("bad counter statement", "context", c.id, "error", err)
				continue
			}
			counter = n
		}
	}
	c.resources, c.external, c.counter = resources, external, counter
	c.loaded = true
	slog.Debug("index loaded", "context", c.id, "resources", len(resources), "counter", counter)
	return nil
}

func push(m map[string]map[string]struct{}, from, to string) {
	if from == "" || to == "" {
		return
	}
	set, ok := m[from]
	if !ok {
		set = make(map[string]struct{}, 1)
		m[from] = set
	}
	set[to] = struct{}{}
}

func pop(m map[string]map[string]struct{}, from, to string) {
	set, ok := m[from]
	if !ok {
		return
	}
	delete(set, to)
	if len(set) == 0 {
		delete(m, from)
	}
}

func (c *Context) indexAdd(res, ext, entry string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return
	}
	push(c.resources, res, entry)
	push(c.external, ext, entry)
}

func (c *Context) indexRemove(res, ext, entry string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return
	}
	pop(c.resources, res, entry)
	pop(c.external, ext, entry)
}

func (c *Context) lookup(m func() map[string]map[string]struct{}, key string) ([]*Entry, error) {
	if err := c.LoadIndex(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	uris := sortedKeys(m()[key])
	c.mu.Unlock()
	out := make([]*Entry, 0, len(uris))
	for _, u := range uris {
		e, err := c.repo.Entry(u)
		if IsEntryMissingError(err) {
			slog.Warn("index points at a missing entry", "context", c.id, "entry", u)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ByResourceURI returns every entry of this context for the resource.
func (c *Context) ByResourceURI(res string) ([]*Entry, error) {
	return c.lookup(func() map[string]map[string]struct{} { return c.resources }, res)
}

// ByExternalMetadataURI returns every entry of this context whose
// external metadata is md.
func (c *Context) ByExternalMetadataURI(md string) ([]*Entry, error) {
	return c.lookup(func() map[string]map[string]struct{} { return c.external }, md)
}

// Entries returns every entry URI of the context, sorted.
func (c *Context) Entries() ([]string, error) {
	if err := c.LoadIndex(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	set := make(map[string]struct{})
	for _, entries := range c.resources {
		for e := range entries {
			set[e] = struct{}{}
		}
	}
	return sortedKeys(set), nil
}

// Resources returns every indexed resource URI, sorted. Requires
// ReadResource on the context.
func (c *Context) Resources(s Session) ([]string, error) {
	ce, err := c.Entry()
	if err != nil {
		return nil, err
	}
	if err := c.repo.Authorize(s, ce, ReadResource); err != nil {
		return nil, err
	}
	if err := c.LoadIndex(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.resources)), nil
}

// IndexSnapshot is a copy of the container index.
type IndexSnapshot struct {
	Resources        map[string][]string
	ExternalMetadata map[string][]string
	Counter          int64
}

// Index returns a copy of the loaded index.
func (c *Context) Index() (IndexSnapshot, error) {
	if err := c.LoadIndex(); err != nil {
		return IndexSnapshot{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := IndexSnapshot{
		Resources:        make(map[string][]string, len(c.resources)),
		ExternalMetadata: make(map[string][]string, len(c.external)),
		Counter:          c.counter,
	}
	for k, v := range c.resources {
		snap.Resources[k] = sortedKeys(v)
	}
	for k, v := range c.external {
		snap.ExternalMetadata[k] = sortedKeys(v)
	}
	return snap, nil
}

// ReIndex rebuilds the index statements from the entry graphs of this
// context found anywhere in the store, then reloads the index. The counter
// never moves backwards: it also covers tombstones and the previous value.
func (c *Context) ReIndex() error {
	start := time.Now()
	r := c.repo
	m := r.lock()
	defer m.unlock()
	ctx := m.ctx

	prefix := r.layout.EntryPrefix(c.id)
	byPrefix := func(p ir.Term) queryir.Query {
		return queryir.Select{
			Pattern: queryir.Pattern{Predicate: p},
			Filter:  queryir.HasPrefix{Position: queryir.GraphPos, Prefix: prefix},
		}
	}
	// the scans only read, so they run side by side
	var resQs, extQs, marks, old []ir.Quad
	g, gctx := errgroup.WithContext(ctx)
	for _, sc := range []struct {
		q   queryir.Query
		out *[]ir.Quad
	}{
		{byPrefix(vocab.Resource), &resQs},
		{byPrefix(vocab.ExternalMetadata), &extQs},
		{queryir.S(ir.Term{}, vocab.Deleted, ir.Term{}, c.uri), &marks},
		{queryir.S(c.uri, vocab.Counter, ir.Term{}, c.uri), &old},
	} {
		g.Go(func() error {
			qs, err := r.store.Query(gctx, sc.q)
			*sc.out = qs
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return storeError("reindex", err)
	}

	var top int64
	bump := func(entryURI string) {
		id := strings.TrimPrefix(entryURI, prefix)
		if n, err := strconv.ParseInt(id, 10, 64); err == nil && n > top {
			top = n
		}
	}
	for _, q := range old {
		if n, err := q.Object.Int(); err == nil && n > top {
			top = n
		}
	}
	for _, q := range marks {
		bump(q.Subject.Value)
	}

	var index []ir.Quad
	owned := func(q ir.Quad) bool {
		return q.Subject == q.Graph && !strings.Contains(strings.TrimPrefix(q.Graph.Value, prefix), "/")
	}
	for _, q := range resQs {
		if owned(q) {
			bump(q.Subject.Value)
			index = append(index, ir.NewQuad(q.Object, vocab.ResHasEntry, q.Subject, c.uri))
		}
	}
	for _, q := range extQs {
		if owned(q) {
			index = append(index, ir.NewQuad(q.Object, vocab.MdHasEntry, q.Subject, c.uri))
		}
	}

	err := m.update("reindex", func(tx store.Tx) error {
		for _, p := range []queryir.Pattern{
			queryir.S(ir.Term{}, vocab.ResHasEntry, ir.Term{}, c.uri),
			queryir.S(ir.Term{}, vocab.MdHasEntry, ir.Term{}, c.uri),
			queryir.S(c.uri, vocab.Counter, ir.Term{}, c.uri),
		} {
			if _, err := tx.Remove(ctx, p); err != nil {
				return err
			}
		}
		index = append(index, ir.NewQuad(c.uri, vocab.Counter, ir.Long(top), c.uri))
		return tx.Add(ctx, index...)
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
	r.metrics.ObserveReindex(c.id, start)
	slog.Info("context reindexed", "context", c.id, "statements", len(index), "counter", top)
	return c.LoadIndex()
}

// NewEntry describes an entry to create.
type NewEntry struct {
	// ID is minted from the counter when empty.
	ID           string
	EntryType    EntryType
	GraphType    GraphType
	ResourceType ResourceType
	// ResourceURI is required for non-Local entries and ignored otherwise.
	ResourceURI string
	// ExternalMetadataURI is required for Reference and LinkReference.
	ExternalMetadataURI string
	// List, when set, is the entry or resource URI of a list in this
	// context that receives the new entry and lends it its ACL.
	List string
	// Name, when set, becomes the unique alias of the entry.
	Name string
}

// CreateResource creates a Local entry with a repository-minted resource.
func (c *Context) CreateResource(s Session, gt GraphType, list string) (*Entry, error) {
	return c.Create(s, NewEntry{EntryType: Local, GraphType: gt, List: list})
}

// CreateLink creates an entry with local metadata about an external
// resource.
func (c *Context) CreateLink(s Session, resource, list string) (*Entry, error) {
	return c.Create(s, NewEntry{EntryType: Link, ResourceURI: resource, ResourceType: NamedResource, List: list})
}

// CreateReference creates an entry whose metadata lives elsewhere.
func (c *Context) CreateReference(s Session, resource, metadata, list string) (*Entry, error) {
	return c.Create(s, NewEntry{EntryType: Reference, ResourceURI: resource, ExternalMetadataURI: metadata, ResourceType: NamedResource, List: list})
}

// CreateLinkReference creates an entry with both local and external
// metadata.
func (c *Context) CreateLinkReference(s Session, resource, metadata, list string) (*Entry, error) {
	return c.Create(s, NewEntry{EntryType: LinkReference, ResourceURI: resource, ExternalMetadataURI: metadata, ResourceType: NamedResource, List: list})
}

// Create writes the minimal statement set of a new entry, registers it in
// the index and, when n.List is set, appends it to that list, all in one
// transaction.
func (c *Context) Create(s Session, n NewEntry) (*Entry, error) {
	m := c.repo.lock()
	defer m.unlock()
	return c.create(m, s, n)
}

func (c *Context) create(m *mutation, s Session, n NewEntry) (*Entry, error) {
	r := c.repo
	ctx := m.ctx
	if err := c.checkNewEntry(n); err != nil {
		return nil, err
	}

	var list *List
	if n.List != "" {
		l, err := r.List(n.List)
		if err != nil {
			return nil, err
		}
		if l.entry.ContextID() != c.id {
			return nil, integrityViolation(l.entry.URI(), "list belongs to context %s, not %s", l.entry.ContextID(), c.id)
		}
		list = l
	}

	ctxEntry, err := c.Entry()
	if err != nil && !IsEntryMissingError(err) {
		return nil, err
	}
	if err := c.authorizeCreate(s, ctxEntry, list); err != nil {
		return nil, err
	}
	owner, err := r.isOwner(s, c.id)
	if err != nil {
		return nil, err
	}
	if err := c.LoadIndex(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	counter := c.counter
	c.mu.Unlock()

	id := n.ID
	if id != "" {
		taken, err := c.taken(ctx, id)
		if err != nil {
			return nil, storeError("create entry", err)
		}
		if taken {
			return nil, integrityViolation(r.layout.Entry(c.id, id).Value, "identifier %q is already in use", id)
		}
		if num, err := strconv.ParseInt(id, 10, 64); err == nil && num > counter {
			counter = num
		}
	} else {
		for {
			counter++
			id = strconv.FormatInt(counter, 10)
			taken, err := c.taken(ctx, id)
			if err != nil {
				return nil, storeError("create entry", err)
			}
			if !taken {
				break
			}
		}
	}

	entryURI := r.layout.Entry(c.id, id)
	if n.Name != "" {
		taken, err := r.store.Has(ctx, queryir.S(ir.Term{}, vocab.Alias, ir.Literal(n.Name), c.uri))
		if err != nil {
			return nil, storeError("create entry", err)
		}
		if taken {
			return nil, integrityViolation(entryURI.Value, "name %q is taken", n.Name)
		}
	}
	var res, ext ir.Term
	switch {
	case n.GraphType.IsContext():
		res = r.layout.Context(id)
	case n.EntryType == Local:
		res = r.layout.Resource(c.id, id)
	default:
		res = ir.IRI(n.ResourceURI)
	}
	if n.EntryType.HasExternalMetadata() {
		ext = ir.IRI(n.ExternalMetadataURI)
	}

	creator := s.Principal()
	if creator == r.GuestURI() {
		creator = ""
	}
	now := r.timestamp()
	g := minimalGraph(r.layout, c.id, id, res, ext, n.EntryType, n.GraphType, n.ResourceType, creator, now)
	g = c.defaultACL(g, id, res, n.GraphType, creator)
	if list != nil {
		g = r.copyACL(s, list.entry, g, c.id, id, n.EntryType, n.GraphType)
		if !owner {
			g.Add(entryURI, vocab.OriginallyCreatedIn, list.entry.resourceTerm())
		}
	}

	err = m.update("create entry", func(tx store.Tx) error {
		if err := tx.Add(ctx, g.InGraph(entryURI)...); err != nil {
			return err
		}
		idx := []ir.Quad{ir.NewQuad(res, vocab.ResHasEntry, entryURI, c.uri)}
		if !ext.IsZero() {
			idx = append(idx, ir.NewQuad(ext, vocab.MdHasEntry, entryURI, c.uri))
		}
		if n.Name != "" {
			idx = append(idx, ir.NewQuad(entryURI, vocab.Alias, ir.Literal(n.Name), c.uri))
		}
		if err := tx.Add(ctx, idx...); err != nil {
			return err
		}
		if _, err := tx.Remove(ctx, queryir.S(c.uri, vocab.Counter, ir.Term{}, c.uri)); err != nil {
			return err
		}
		if err := tx.Add(ctx, ir.NewQuad(c.uri, vocab.Counter, ir.Long(counter), c.uri)); err != nil {
			return err
		}
		if list != nil {
			if err := list.appendIn(ctx, tx, entryURI); err != nil {
				return err
			}
		}
		if ctxEntry != nil && n.GraphType != GraphSystemContext {
			return touchIn(ctx, tx, ctxEntry.uri, now)
		}
		return nil
	}, ctxEntry)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.counter = counter
	c.mu.Unlock()
	c.indexAdd(res.Value, ext.Value, entryURI.Value)

	e := newEntry(r, c.id, id, g)
	r.cache.put(e)
	if ctxEntry != nil {
		if err := ctxEntry.refresh(ctx); err != nil {
			slog.Error("refresh context entry", "context", c.id, "error", err)
		}
	}
	r.metrics.EntryCreated(c.id, n.GraphType.String())
	m.fire(s, events.EntryCreated, e)
	if list != nil {
		m.fire(s, events.ResourceUpdated, list.entry)
	}
	slog.Debug("entry created", "entry", e.URI(), "type", n.EntryType, "graph_type", n.GraphType)
	return e, nil
}

func (c *Context) checkNewEntry(n NewEntry) error {
	target := c.repo.layout.Context(c.id).Value
	if n.ID != "" && strings.ContainsAny(n.ID, "/?#") {
		return integrityViolation(target, "invalid identifier %q", n.ID)
	}
	switch {
	case n.GraphType.IsContext() && c.id != vocab.ContextsID:
		return integrityViolation(target, "%s entries live only in %s", n.GraphType, vocab.ContextsID)
	case n.GraphType.IsPrincipal() && c.id != vocab.PrincipalsID:
		return integrityViolation(target, "%s entries live only in %s", n.GraphType, vocab.PrincipalsID)
	case (n.GraphType.IsContext() || n.GraphType.IsPrincipal()) && n.EntryType != Local:
		return integrityViolation(target, "%s entries must be Local", n.GraphType)
	case n.EntryType != Local && n.ResourceURI == "":
		return integrityViolation(target, "%s entries need a resource URI", n.EntryType)
	case n.EntryType.HasExternalMetadata() && n.ExternalMetadataURI == "":
		return integrityViolation(target, "%s entries need an external metadata URI", n.EntryType)
	}
	return nil
}

func (c *Context) authorizeCreate(s Session, ctxEntry *Entry, list *List) error {
	r := c.repo
	if ctxEntry == nil {
		if s.Escalated() || !r.authorization {
			return nil
		}
		return newAuthorizationError(s.Principal(), c.URI(), WriteResource)
	}
	err := r.Authorize(s, ctxEntry, WriteResource)
	if err == nil || list == nil || !IsAuthorizationError(err) {
		return err
	}
	return r.Authorize(s, list.entry, WriteResource)
}

// defaultACL grants new principals their usual rights: users write
// themselves, groups are written by their creator, and both are readable
// by guest.
func (c *Context) defaultACL(g ir.Graph, id string, res ir.Term, gt GraphType, creator string) ir.Graph {
	r := c.repo
	guest := []string{r.GuestURI()}
	switch gt {
	case GraphUser:
		g = withACL(g, r.layout, c.id, id, WriteResource, []string{res.Value})
		g = withACL(g, r.layout, c.id, id, WriteMetadata, []string{res.Value})
	case GraphGroup:
		g = withACL(g, r.layout, c.id, id, WriteResource, []string{creator})
		g = withACL(g, r.layout, c.id, id, WriteMetadata, []string{creator})
	default:
		return g
	}
	g = withACL(g, r.layout, c.id, id, ReadResource, guest)
	return withACL(g, r.layout, c.id, id, ReadMetadata, guest)
}

// taken reports whether an identifier is or was in use.
func (c *Context) taken(ctx context.Context, id string) (bool, error) {
	uri := c.repo.layout.Entry(c.id, id)
	used, err := c.repo.store.Has(ctx, queryir.Graph(uri))
	if err != nil || used {
		return used, err
	}
	return c.repo.store.Has(ctx, queryir.S(uri, vocab.Deleted, ir.Term{}, c.uri))
}

// touchIn bumps the modification date of an entry graph inside tx.
func touchIn(ctx context.Context, tx store.Tx, entry, now ir.Term) error {
	if _, err := tx.Remove(ctx, queryir.S(entry, vocab.Modified, ir.Term{}, entry)); err != nil {
		return err
	}
	return tx.Add(ctx, ir.NewQuad(entry, vocab.Modified, now, entry))
}

// Remove deletes an entry of this context. The entry leaves every list of
// the context, its graphs are cleared and its resource removed. With
// tombstones enabled the deletion date and principal are kept.
func (c *Context) Remove(s Session, entryURI string) error {
	m := c.repo.lock()
	defer m.unlock()
	return c.remove(m, s, entryURI)
}

func (c *Context) remove(m *mutation, s Session, entryURI string) error {
	r := c.repo
	ctx := m.ctx
	if c.system[entryURI] {
		return &DisallowedError{Code: ErrCodeDisallowed, Entry: entryURI, Message: "system entries cannot be removed"}
	}
	ctxID, path, id, ok := r.layout.Split(entryURI)
	if !ok || path != vocab.EntryPath || ctxID != c.id {
		return newEntryMissingError(entryURI)
	}
	e, err := r.loadEntry(c.id, id)
	if err != nil {
		return err
	}
	if err := r.Authorize(s, e, Administer); err != nil {
		return err
	}

	lists, err := e.referringLists(ctx, r.store)
	if err != nil {
		return storeError("remove entry", err)
	}
	var listEntries []*Entry
	for _, l := range lists {
		le, err := r.EntryByURI(l.Value)
		if err != nil {
			return err
		}
		listEntries = append(listEntries, le)
	}
	md, err := e.metadataGraphs(ctx, r.store)
	if err != nil {
		return storeError("remove entry", err)
	}
	res := r.resourceOf(e)
	var rm resourceRemover
	if rr, ok := res.(resourceRemover); ok {
		rm = rr
		if err := rm.prepareRemove(m); err != nil {
			return err
		}
	}
	ctxEntry, err := c.Entry()
	if err != nil && !IsEntryMissingError(err) {
		return err
	}

	now := r.timestamp()
	err = m.update("remove entry", func(tx store.Tx) error {
		for _, le := range listEntries {
			if err := r.listOf(le).dropIn(ctx, tx, e.uri); err != nil {
				return err
			}
		}
		for _, p := range []queryir.Pattern{
			queryir.S(e.resourceTerm(), vocab.ResHasEntry, e.uri, c.uri),
			queryir.S(ir.Term{}, vocab.MdHasEntry, e.uri, c.uri),
			queryir.S(e.uri, vocab.Alias, ir.Term{}, c.uri),
		} {
			if _, err := tx.Remove(ctx, p); err != nil {
				return err
			}
		}
		if r.tombstones {
			marks := []ir.Quad{ir.NewQuad(e.uri, vocab.Deleted, now, c.uri)}
			if p := s.Principal(); p != "" {
				marks = append(marks, ir.NewQuad(e.uri, vocab.DeletedBy, ir.IRI(p), c.uri))
			}
			if err := tx.Add(ctx, marks...); err != nil {
				return err
			}
		}
		if _, err := r.relate(ctx, tx, e, md, nil); err != nil {
			return err
		}
		revisions, err := e.revisionGraphs(ctx, tx)
		if err != nil {
			return err
		}
		graphs := append([]ir.Term{
			e.uri,
			ir.IRI(e.LocalMetadataURI()),
			ir.IRI(e.CachedExternalMetadataURI()),
			ir.IRI(e.RelationsURI()),
		}, revisions...)
		for _, g := range graphs {
			if _, err := tx.Remove(ctx, queryir.Graph(g)); err != nil {
				return err
			}
		}
		if rm != nil {
			if err := rm.removeIn(ctx, tx); err != nil {
				return err
			}
		}
		if ctxEntry != nil && ctxEntry != e {
			return touchIn(ctx, tx, ctxEntry.uri, now)
		}
		return nil
	}, append([]*Entry{e, ctxEntry}, listEntries...)...)
	if err != nil {
		return err
	}

	c.indexRemove(e.ResourceURI(), e.ExternalMetadataURI(), e.URI())
	r.cache.remove(e.URI())
	e.markDeleted()
	if ctxEntry != nil && ctxEntry != e {
		if err := ctxEntry.refresh(ctx); err != nil {
			slog.Error("refresh context entry", "context", c.id, "error", err)
		}
	}
	if rm != nil {
		rm.afterRemove(m, s)
	}
	r.metrics.EntryRemoved(c.id)
	m.fire(s, events.EntryDeleted, e)
	for _, le := range listEntries {
		m.fire(s, events.ResourceUpdated, le)
	}
	slog.Debug("entry removed", "entry", e.URI(), "lists", len(listEntries))
	return nil
}

// SetEntryName registers a unique alias for an entry of this context.
// An empty name clears the alias. Requires Administer on the entry.
func (c *Context) SetEntryName(s Session, entryURI, name string) error {
	m := c.repo.lock()
	defer m.unlock()
	e, err := c.repo.Entry(entryURI)
	if err != nil {
		return err
	}
	return c.setEntryName(m, s, e, name)
}

func (c *Context) setEntryName(m *mutation, s Session, e *Entry, name string) error {
	r := c.repo
	if e.ContextID() != c.id {
		return newEntryMissingError(e.URI())
	}
	if err := r.Authorize(s, e, Administer); err != nil {
		return err
	}
	if name != "" {
		holders, err := r.store.Query(m.ctx, queryir.S(ir.Term{}, vocab.Alias, ir.Literal(name), c.uri))
		if err != nil {
			return storeError("set entry name", err)
		}
		for _, q := range holders {
			if q.Subject != e.uri {
				return integrityViolation(e.URI(), "name %q is taken by %s", name, q.Subject.Value)
			}
		}
	}
	return m.update("set entry name", func(tx store.Tx) error {
		if _, err := tx.Remove(m.ctx, queryir.S(e.uri, vocab.Alias, ir.Term{}, c.uri)); err != nil {
			return err
		}
		if name == "" {
			return nil
		}
		return tx.Add(m.ctx, ir.NewQuad(e.uri, vocab.Alias, ir.Literal(name), c.uri))
	})
}

// EntryByName resolves an alias.
func (c *Context) EntryByName(name string) (*Entry, error) {
	qs, err := c.repo.store.Query(context.Background(), queryir.Select{
		Pattern: queryir.S(ir.Term{}, vocab.Alias, ir.Literal(name), c.uri),
		Limit:   1,
	})
	if err != nil {
		return nil, storeError("entry by name", err)
	}
	if len(qs) == 0 {
		return nil, newEntryMissingError(c.URI() + "#" + name)
	}
	return c.repo.Entry(qs[0].Subject.Value)
}

// EntryName returns the alias of an entry, or empty.
func (c *Context) EntryName(entryURI string) (string, error) {
	qs, err := c.repo.store.Query(context.Background(), queryir.Select{
		Pattern: queryir.S(ir.IRI(entryURI), vocab.Alias, ir.Term{}, c.uri),
		Limit:   1,
	})
	if err != nil {
		return "", storeError("entry name", err)
	}
	if len(qs) == 0 {
		return "", nil
	}
	return qs[0].Object.Value, nil
}

// DeletedEntry is a tombstone.
type DeletedEntry struct {
	URI       string
	Deleted   time.Time
	DeletedBy string
}

// DeletedEntries lists the tombstones of this context, sorted by URI.
func (c *Context) DeletedEntries() ([]DeletedEntry, error) {
	return c.DeletedEntriesInRange(time.Time{}, time.Time{})
}

// DeletedEntriesInRange lists tombstones with from <= deleted <= until.
// A zero bound is open.
func (c *Context) DeletedEntriesInRange(from, until time.Time) ([]DeletedEntry, error) {
	ctx := context.Background()
	dates, err := c.repo.store.Query(ctx, queryir.S(ir.Term{}, vocab.Deleted, ir.Term{}, c.uri))
	if err != nil {
		return nil, storeError("deleted entries", err)
	}
	by, err := c.repo.store.Query(ctx, queryir.S(ir.Term{}, vocab.DeletedBy, ir.Term{}, c.uri))
	if err != nil {
		return nil, storeError("deleted entries", err)
	}
	who := make(map[ir.Term]string, len(by))
	for _, q := range by {
		who[q.Subject] = q.Object.Value
	}
	out := []DeletedEntry{}
	for _, q := range dates {
		t, err := q.Object.Time()
		if err != nil {
			slog.Error("bad deletion date", "entry", q.Subject.Value, "error", err)
			continue
		}
		if (!from.IsZero() && t.Before(from)) || (!until.IsZero() && t.After(until)) {
			continue
		}
		out = append(out, DeletedEntry{URI: q.Subject.Value, Deleted: t, DeletedBy: who[q.Subject]})
	}
	return out, nil
}
