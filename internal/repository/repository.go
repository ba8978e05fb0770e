package repository

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/roach88/mdrepo/internal/blob"
	"github.com/roach88/mdrepo/internal/config"
	"github.com/roach88/mdrepo/internal/events"
	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/metrics"
	"github.com/roach88/mdrepo/internal/queryir"
	"github.com/roach88/mdrepo/internal/store"
	"github.com/roach88/mdrepo/internal/vocab"
)

// Repository is the entry/context engine over one statement store.
//
// Thread-safety model:
//   - every mutation holds mu for its whole duration, including the store
//     transaction and the in-memory updates that follow a commit
//   - each Context serializes quota bookkeeping on its own lock, taken
//     after mu when both are needed
//   - reads never take mu
type Repository struct {
	layout  vocab.Layout
	store   store.StatementStore
	blobs   blob.Store
	sink    events.Sink
	metrics *metrics.Metrics
	now     func() time.Time
	cfg     *config.Config

	authorization bool
	provenance    bool
	tombstones    bool
	quotaEnabled  bool
	defaultQuota  int64

	mu sync.Mutex

	cache *identityCache

	ctxMu    sync.Mutex
	contexts map[string]*Context
}

// Option configures a Repository.
type Option func(*Repository)

// WithConfig applies base URI, feature switches and the default quota.
func WithConfig(cfg *config.Config) Option {
	return func(r *Repository) {
		r.cfg = cfg
	}
}

// WithBlobs sets the payload store of Local data entries.
func WithBlobs(b blob.Store) Option {
	return func(r *Repository) {
		r.blobs = b
	}
}

// WithSink sets the event sink. The default discards events.
func WithSink(s events.Sink) Option {
	return func(r *Repository) {
		r.sink = s
	}
}

// WithMetrics sets the collectors. Nil disables metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Repository) {
		r.metrics = m
	}
}

// WithNow sets the wall clock used for timestamps.
func WithNow(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// Open wraps st and bootstraps the system contexts and well-known
// principals when they are missing. Open is idempotent.
func Open(st store.StatementStore, opts ...Option) (*Repository, error) {
	r := &Repository{
		store:    st,
		sink:     events.Discard{},
		now:      time.Now,
		cfg:      config.Default(),
		contexts: make(map[string]*Context),
	}
	for _, opt := range opts {
		opt(r)
	}

	dq, err := r.cfg.DefaultQuotaBytes()
	if err != nil {
		return nil, err
	}
	r.layout = vocab.Layout{Base: r.cfg.BaseURI}
	r.authorization = r.cfg.Authorization
	r.provenance = r.cfg.Provenance
	r.tombstones = r.cfg.Tombstones
	r.quotaEnabled = r.cfg.Quota.Enabled
	r.defaultQuota = dq
	if r.blobs == nil {
		r.blobs = &blob.FileStore{Dir: r.cfg.DataDir}
	}
	r.cache = newIdentityCache(r.metrics)

	if err := r.bootstrap(); err != nil {
		return nil, fmt.Errorf("bootstrap repository: %w", err)
	}
	return r, nil
}

// Close closes the statement store.
func (r *Repository) Close() error {
	if r == nil {
		return nil
	}
	return r.store.Close()
}

// Layout returns the URI layout.
func (r *Repository) Layout() vocab.Layout { return r.layout }

// Metrics returns the collectors, possibly nil.
func (r *Repository) Metrics() *metrics.Metrics { return r.metrics }

// AdminSession acts as the administrator user.
func (r *Repository) AdminSession() Session { return NewSession(r.AdminURI()) }

// GuestSession acts as the anonymous guest.
func (r *Repository) GuestSession() Session { return NewSession(r.GuestURI()) }

func (r *Repository) AdminURI() string  { return r.layout.Principal(vocab.AdminID).Value }
func (r *Repository) GuestURI() string  { return r.layout.Principal(vocab.GuestID).Value }
func (r *Repository) AdminsURI() string { return r.layout.Principal(vocab.AdminsID).Value }
func (r *Repository) UsersURI() string  { return r.layout.Principal(vocab.UsersID).Value }

func (r *Repository) timestamp() ir.Term {
	return ir.DateTime(r.now())
}

// mutation is held for the duration of one locked operation. Events are
// queued after commit and delivered once the lock is released.
type mutation struct {
	r      *Repository
	ctx    context.Context
	events []events.Event
}

func (r *Repository) lock() *mutation {
	r.mu.Lock()
	return &mutation{r: r, ctx: context.Background()}
}

func (m *mutation) unlock() {
	m.r.mu.Unlock()
	for _, e := range m.events {
		m.r.metrics.Event(string(e.Kind))
		m.r.sink.Fire(e)
	}
}

func (m *mutation) fire(s Session, kind events.Kind, e *Entry) {
	m.events = append(m.events, events.Event{
		Kind:      kind,
		EntryURI:  e.URI(),
		ContextID: e.ContextID(),
		Principal: s.Principal(),
		Time:      m.r.now(),
	})
}

// update runs fn in one store transaction. On any failure the transaction
// is rolled back and every entry in refresh is reloaded from the store.
// Policy errors are returned unchanged; everything else is wrapped with op.
func (m *mutation) update(op string, fn func(tx store.Tx) error, refresh ...*Entry) error {
	tx, err := m.r.store.Begin(m.ctx)
	if err != nil {
		return storeError(op, err)
	}
	if err := fn(tx); err != nil {
		m.abort(tx, op, refresh)
		if policyError(err) {
			return err
		}
		return storeError(op, err)
	}
	if err := tx.Commit(); err != nil {
		m.abort(tx, op, refresh)
		return storeError(op, err)
	}
	return nil
}

func (m *mutation) abort(tx store.Tx, op string, refresh []*Entry) {
	m.r.metrics.Rollback()
	if err := tx.Rollback(); err != nil {
		slog.Error("rollback failed", "op", op, "error", err)
	}
	for _, e := range refresh {
		if e == nil {
			continue
		}
		if err := e.refresh(m.ctx); err != nil {
			slog.Error("refresh after rollback failed", "op", op, "entry", e.URI(), "error", err)
		}
	}
}

// readGraph returns the triples of named graph g.
func (r *Repository) readGraph(ctx context.Context, st store.Statements, g ir.Term) (ir.Graph, error) {
	qs, err := st.Query(ctx, queryir.Graph(g))
	if err != nil {
		return nil, err
	}
	return ir.Triples(qs), nil
}

// replaceGraph swaps the content of named graph g inside tx.
func replaceGraph(ctx context.Context, tx store.Tx, g ir.Term, content ir.Graph) error {
	if _, err := tx.Remove(ctx, queryir.Graph(g)); err != nil {
		return err
	}
	return tx.Add(ctx, content.InGraph(g)...)
}

// Entry returns the entry with the given entry URI from any context.
func (r *Repository) Entry(uri string) (*Entry, error) {
	ctxID, path, id, ok := r.layout.Split(uri)
	if !ok || path != vocab.EntryPath {
		return nil, newEntryMissingError(uri)
	}
	return r.loadEntry(ctxID, id)
}

// EntryByURI resolves an entry, resource or metadata URI of this
// repository to its entry.
func (r *Repository) EntryByURI(uri string) (*Entry, error) {
	ctxID, path, id, ok := r.layout.Split(uri)
	if !ok {
		return nil, newEntryMissingError(uri)
	}
	switch path {
	case vocab.EntryPath, vocab.MetadataPath, vocab.CachedExternalMetadataPath, vocab.RelationsPath:
		return r.loadEntry(ctxID, id)
	case vocab.ResourcePath:
		c, err := r.Context(ctxID)
		if err != nil {
			return nil, err
		}
		es, err := c.ByResourceURI(uri)
		if err != nil {
			return nil, err
		}
		for _, e := range es {
			if e.EntryType() == Local {
				return e, nil
			}
		}
		if len(es) > 0 {
			return es[0], nil
		}
		return nil, newEntryMissingError(uri)
	default:
		// a context resource URI
		return r.loadEntry(vocab.ContextsID, ctxID)
	}
}

func (r *Repository) loadEntry(ctxID, id string) (*Entry, error) {
	uri := r.layout.Entry(ctxID, id)
	e, err := r.cache.load(uri.Value, func() (*Entry, error) {
		g, err := r.readGraph(context.Background(), r.store, uri)
		if err != nil {
			return nil, storeError("load entry", err)
		}
		if len(g) == 0 {
			return nil, nil
		}
		slog.Debug("loaded entry", "entry", uri.Value, "statements", len(g))
		return newEntry(r, ctxID, id, g), nil
	})
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, newEntryMissingError(uri.Value)
	}
	return e, nil
}

// Context returns the context with the given id.
func (r *Repository) Context(id string) (*Context, error) {
	r.ctxMu.Lock()
	c, ok := r.contexts[id]
	r.ctxMu.Unlock()
	if ok {
		return c, nil
	}
	e, err := r.loadEntry(vocab.ContextsID, id)
	if err != nil {
		return nil, err
	}
	if !e.GraphType().IsContext() {
		return nil, newEntryMissingError(r.layout.Context(id).Value)
	}
	return r.context(id), nil
}

// context returns the in-memory Context for id without checking that the
// context entry exists.
func (r *Repository) context(id string) *Context {
	r.ctxMu.Lock()
	defer r.ctxMu.Unlock()
	if c, ok := r.contexts[id]; ok {
		return c
	}
	c := newContext(r, id)
	r.contexts[id] = c
	return c
}

func (r *Repository) dropContext(id string) {
	r.ctxMu.Lock()
	defer r.ctxMu.Unlock()
	delete(r.contexts, id)
}

// ContextIDs lists every context, system contexts included, sorted.
func (r *Repository) ContextIDs() ([]string, error) {
	cs, err := r.Context(vocab.ContextsID)
	if err != nil {
		return nil, err
	}
	uris, err := cs.Entries()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(uris))
	for _, u := range uris {
		_, _, id, ok := r.layout.Split(u)
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// CreateContext creates a regular context. An empty id mints the next
// numeric one; a non-empty name is registered as its alias.
func (r *Repository) CreateContext(s Session, id, name string) (*Context, error) {
	cs, err := r.Context(vocab.ContextsID)
	if err != nil {
		return nil, err
	}
	e, err := cs.Create(s, NewEntry{ID: id, EntryType: Local, GraphType: GraphContext, Name: name})
	if err != nil {
		return nil, err
	}
	slog.Info("context created", "context", e.ID(), "name", name)
	return r.context(e.ID()), nil
}

// ContextByName resolves a context alias.
func (r *Repository) ContextByName(name string) (*Context, error) {
	cs, err := r.Context(vocab.ContextsID)
	if err != nil {
		return nil, err
	}
	e, err := cs.EntryByName(name)
	if err != nil {
		return nil, err
	}
	return r.Context(e.ID())
}

// ReIndexAll rebuilds the index of every context, one after another:
// each rebuild holds the repository lock.
func (r *Repository) ReIndexAll(ctx context.Context) error {
	ids, err := r.ContextIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		c, err := r.Context(id)
		if err != nil {
			return err
		}
		if err := c.ReIndex(); err != nil {
			return fmt.Errorf("reindex %s: %w", id, err)
		}
	}
	return nil
}

// bootstrap creates the two system contexts and the well-known principals.
func (r *Repository) bootstrap() error {
	admin := r.AdminSession().Escalate()
	contexts := r.context(vocab.ContextsID)
	principals := r.context(vocab.PrincipalsID)
	contexts.system = map[string]bool{
		r.layout.Entry(vocab.ContextsID, vocab.ContextsID).Value:   true,
		r.layout.Entry(vocab.ContextsID, vocab.PrincipalsID).Value: true,
	}
	principals.system = map[string]bool{}
	for _, id := range []string{vocab.AdminID, vocab.GuestID, vocab.AdminsID, vocab.UsersID} {
		principals.system[r.layout.Entry(vocab.PrincipalsID, id).Value] = true
	}

	for _, id := range []string{vocab.ContextsID, vocab.PrincipalsID} {
		if err := r.ensure(admin, contexts, NewEntry{ID: id, EntryType: Local, GraphType: GraphSystemContext}); err != nil {
			return err
		}
	}
	wellKnown := []struct {
		id, name string
		gt       GraphType
	}{
		{vocab.AdminID, "admin", GraphUser},
		{vocab.GuestID, "guest", GraphUser},
		{vocab.AdminsID, "admins", GraphGroup},
		{vocab.UsersID, "users", GraphGroup},
	}
	for _, p := range wellKnown {
		if err := r.ensure(admin, principals, NewEntry{ID: p.id, EntryType: Local, GraphType: p.gt, Name: p.name}); err != nil {
			return err
		}
	}

	admins, err := r.Group(r.AdminsURI())
	if err != nil {
		return err
	}
	member, err := admins.IsMember(r.AdminURI())
	if err != nil {
		return err
	}
	if !member {
		if err := admins.AddMember(admin, r.layout.Entry(vocab.PrincipalsID, vocab.AdminID).Value); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) ensure(s Session, c *Context, n NewEntry) error {
	uri := r.layout.Entry(c.id, n.ID).Value
	if _, err := r.Entry(uri); err == nil {
		return nil
	} else if !IsEntryMissingError(err) {
		return err
	}
	_, err := c.Create(s, n)
	return err
}

// sortedKeys returns the keys of a string set in order.
func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
