package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/roach88/mdrepo/internal/blob"
	"github.com/roach88/mdrepo/internal/compiler"
	"github.com/roach88/mdrepo/internal/config"
	"github.com/roach88/mdrepo/internal/events"
	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/repository"
	"github.com/roach88/mdrepo/internal/store"
	"github.com/roach88/mdrepo/internal/testutil"
	"github.com/roach88/mdrepo/internal/vocab"
)

// BaseURI is the namespace of every scenario repository.
const BaseURI = "http://example.org/store/"

var (
	dcTitle      = ir.IRI(vocab.NSDCTerms + "title")
	dcReferences = ir.IRI(vocab.NSDCTerms + "references")
)

// Harness runs scenario steps against one repository.
type Harness struct {
	repo   *repository.Repository
	logger *slog.Logger
	vars   map[string]string
}

// operation runs one step and returns the value Bind stores.
type operation func(h *Harness, s repository.Session, args map[string]any) (string, error)

var operations = map[string]operation{
	"create_context": (*Harness).createContext,
	"create_user":    (*Harness).createUser,
	"create_group":   (*Harness).createGroup,
	"create_entry":   (*Harness).createEntry,
	"remove_entry":   (*Harness).removeEntry,
	"add_child":      (*Harness).addChild,
	"remove_child":   (*Harness).removeChild,
	"grant":          (*Harness).grant,
	"set_quota":      (*Harness).setQuota,
	"write_data":     (*Harness).writeData,
	"set_metadata":   (*Harness).setMetadata,
	"move_entry":     (*Harness).moveEntry,
	"copy_entry":     (*Harness).copyEntry,
	"reindex":        (*Harness).reindex,
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory repository with quotas and
// tombstones on, a deterministic clock and sequential event ids, so two
// runs of one scenario produce identical traces.
//
// Execution flow:
// 1. Open the repository and apply the seed, if any
// 2. Execute setup steps; any failure aborts the run
// 3. Reset the event recorder
// 4. Execute flow steps, checking expected failures
// 5. Trace the recorded events and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	blobDir, err := os.MkdirTemp("", "mdrepo-scenario-")
	if err != nil {
		return nil, fmt.Errorf("failed to create payload dir: %w", err)
	}
	defer os.RemoveAll(blobDir)

	st := store.NewMemory()
	defer st.Close()

	clock := testutil.NewDeterministicClock()
	rec := &events.Recorder{}
	bus := events.NewBus(
		events.WithNow(clock.Now),
		events.WithIDGenerator(testutil.NewSequentialIDs("evt")),
	)
	bus.Subscribe(events.All, rec.Handle)

	cfg := config.Default()
	cfg.BaseURI = BaseURI
	cfg.Quota.Enabled = true
	cfg.Tombstones = true

	repo, err := repository.Open(st,
		repository.WithConfig(cfg),
		repository.WithBlobs(&blob.FileStore{Dir: blobDir}),
		repository.WithSink(bus),
		repository.WithNow(clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	h := &Harness{
		repo:   repo,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		vars:   make(map[string]string),
	}

	if scenario.Seed != "" {
		seed, err := compiler.LoadSeed(scenario.Seed)
		if err != nil {
			return nil, fmt.Errorf("failed to load seed: %w", err)
		}
		if _, err := compiler.Apply(repo, repo.AdminSession(), seed); err != nil {
			return nil, fmt.Errorf("failed to apply seed: %w", err)
		}
	}

	for i, step := range scenario.Setup {
		if err := h.execute(step); err != nil {
			return nil, fmt.Errorf("setup step %d (%s): %w", i, step.Op, err)
		}
	}
	rec.Reset()

	result := NewResult()
	h.executeFlow(scenario.Flow, result)

	for _, e := range rec.Events() {
		result.AddEvent(e)
	}
	for k, v := range h.vars {
		result.Vars[k] = v
	}

	actx := &AssertionContext{Repo: repo, Vars: h.vars}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeFlow runs the flow steps. A step that fails unexpectedly stops
// the flow, since later steps usually build on it.
func (h *Harness) executeFlow(flow []Step, result *Result) {
	for i, step := range flow {
		err := h.execute(step)
		switch {
		case step.Expect != nil && err == nil:
			result.AddError(fmt.Sprintf("flow[%d] %s: expected error %s, got success", i, step.Op, step.Expect.Error))
		case step.Expect != nil:
			if code := string(repository.CodeOf(err)); code != step.Expect.Error {
				result.AddError(fmt.Sprintf("flow[%d] %s: expected error %s, got %v", i, step.Op, step.Expect.Error, err))
			}
		case err != nil:
			result.AddError(fmt.Sprintf("flow[%d] %s: %v", i, step.Op, err))
			return
		}

		h.logger.Info("flow step completed",
			"step", i,
			"op", step.Op,
			"as", step.As,
			"error", err,
		)
	}
}

// execute runs one step and binds its result.
func (h *Harness) execute(step Step) error {
	op, ok := operations[step.Op]
	if !ok {
		return fmt.Errorf("unknown op %q", step.Op)
	}
	s, err := h.session(step.As)
	if err != nil {
		return err
	}
	args := make(map[string]any, len(step.Args))
	for k, v := range step.Args {
		args[k] = substitute(h.vars, v)
	}
	value, err := op(h, s, args)
	if err != nil {
		return err
	}
	if step.Bind != "" {
		h.vars[step.Bind] = value
	}
	return nil
}

// substitute replaces "$name" strings, also inside lists, by bound values.
// Unbound names are left as they are.
func substitute(vars map[string]string, v any) any {
	switch x := v.(type) {
	case string:
		if name, ok := strings.CutPrefix(x, "$"); ok {
			if bound, ok := vars[name]; ok {
				return bound
			}
		}
		return x
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = substitute(vars, e)
		}
		return out
	default:
		return v
	}
}

// session maps a user name to a session; empty and "admin" act as admin.
func (h *Harness) session(name string) (repository.Session, error) {
	switch name {
	case "", "admin":
		return h.repo.AdminSession(), nil
	case "guest":
		return h.repo.GuestSession(), nil
	}
	return h.repo.SessionFor(name)
}

// principal resolves a principal URI or a user or group name.
func (h *Harness) principal(v string) (string, error) {
	if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
		return v, nil
	}
	principals, err := h.repo.Context(vocab.PrincipalsID)
	if err != nil {
		return "", err
	}
	e, err := principals.EntryByName(v)
	if err != nil {
		return "", err
	}
	return e.ResourceURI(), nil
}

func str(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("argument %q is required", key)
	}
	return fmt.Sprint(v), nil
}

func optStr(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func strs(args map[string]any, key string) []string {
	list, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, len(list))
	for i, v := range list {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func (h *Harness) createContext(s repository.Session, args map[string]any) (string, error) {
	c, err := h.repo.CreateContext(s, optStr(args, "id"), optStr(args, "name"))
	if err != nil {
		return "", err
	}
	return c.ID(), nil
}

func (h *Harness) createUser(s repository.Session, args map[string]any) (string, error) {
	name, err := str(args, "name")
	if err != nil {
		return "", err
	}
	u, err := h.repo.CreateUser(s, name)
	if err != nil {
		return "", err
	}
	return u.URI(), nil
}

func (h *Harness) createGroup(s repository.Session, args map[string]any) (string, error) {
	name, err := str(args, "name")
	if err != nil {
		return "", err
	}
	g, err := h.repo.CreateGroup(s, name)
	if err != nil {
		return "", err
	}
	for _, m := range strs(args, "members") {
		uri, err := h.principal(m)
		if err != nil {
			return "", err
		}
		if err := g.AddMember(s, uri); err != nil {
			return "", err
		}
	}
	return g.URI(), nil
}

func (h *Harness) createEntry(s repository.Session, args map[string]any) (string, error) {
	ctxID, err := str(args, "context")
	if err != nil {
		return "", err
	}
	c, err := h.repo.Context(ctxID)
	if err != nil {
		return "", err
	}
	n := repository.NewEntry{
		ID:                  optStr(args, "id"),
		EntryType:           repository.Local,
		GraphType:           repository.GraphNone,
		ResourceURI:         optStr(args, "resource"),
		ExternalMetadataURI: optStr(args, "metadata"),
		List:                optStr(args, "list"),
	}
	if t := optStr(args, "type"); t != "" {
		if n.EntryType, err = repository.ParseEntryType(t); err != nil {
			return "", err
		}
	}
	if t := optStr(args, "graph_type"); t != "" {
		if n.GraphType, err = repository.ParseGraphType(t); err != nil {
			return "", err
		}
	}
	if n.EntryType != repository.Local {
		n.ResourceType = repository.NamedResource
	}
	e, err := c.Create(s, n)
	if err != nil {
		return "", err
	}
	return e.URI(), nil
}

func (h *Harness) entry(args map[string]any) (*repository.Entry, error) {
	uri, err := str(args, "entry")
	if err != nil {
		return nil, err
	}
	return h.repo.Entry(uri)
}

func (h *Harness) removeEntry(s repository.Session, args map[string]any) (string, error) {
	e, err := h.entry(args)
	if err != nil {
		return "", err
	}
	return "", e.Context().Remove(s, e.URI())
}

func (h *Harness) list(args map[string]any) (*repository.List, string, error) {
	uri, err := str(args, "list")
	if err != nil {
		return nil, "", err
	}
	child, err := str(args, "child")
	if err != nil {
		return nil, "", err
	}
	l, err := h.repo.List(uri)
	return l, child, err
}

func (h *Harness) addChild(s repository.Session, args map[string]any) (string, error) {
	l, child, err := h.list(args)
	if err != nil {
		return "", err
	}
	return "", l.AddChild(s, child)
}

func (h *Harness) removeChild(s repository.Session, args map[string]any) (string, error) {
	l, child, err := h.list(args)
	if err != nil {
		return "", err
	}
	return "", l.RemoveChild(s, child)
}

func (h *Harness) grant(s repository.Session, args map[string]any) (string, error) {
	e, err := h.entry(args)
	if err != nil {
		return "", err
	}
	prop, err := str(args, "property")
	if err != nil {
		return "", err
	}
	p, err := repository.ParseAccessProperty(prop)
	if err != nil {
		return "", err
	}
	name, err := str(args, "principal")
	if err != nil {
		return "", err
	}
	uri, err := h.principal(name)
	if err != nil {
		return "", err
	}
	return "", e.AddAllowedPrincipalsFor(s, p, uri)
}

func (h *Harness) setQuota(s repository.Session, args map[string]any) (string, error) {
	ctxID, err := str(args, "context")
	if err != nil {
		return "", err
	}
	size, err := str(args, "quota")
	if err != nil {
		return "", err
	}
	quota, err := config.ParseSize(size)
	if err != nil {
		return "", err
	}
	c, err := h.repo.Context(ctxID)
	if err != nil {
		return "", err
	}
	return "", c.SetQuota(s, quota)
}

func (h *Harness) writeData(s repository.Session, args map[string]any) (string, error) {
	e, err := h.entry(args)
	if err != nil {
		return "", err
	}
	data, err := str(args, "data")
	if err != nil {
		return "", err
	}
	d, ok := e.Resource().(*repository.Data)
	if !ok {
		return "", fmt.Errorf("entry %s holds no data payload", e.URI())
	}
	return "", d.Write(s, []byte(data))
}

func (h *Harness) setMetadata(s repository.Session, args map[string]any) (string, error) {
	e, err := h.entry(args)
	if err != nil {
		return "", err
	}
	md := e.LocalMetadata()
	if md == nil {
		return "", fmt.Errorf("entry %s has no local metadata", e.URI())
	}
	subject := ir.IRI(e.ResourceURI())
	var g ir.Graph
	if title := optStr(args, "title"); title != "" {
		g.Add(subject, dcTitle, ir.Literal(title))
	}
	for _, ref := range strs(args, "references") {
		g.Add(subject, dcReferences, ir.IRI(ref))
	}
	return "", md.SetGraph(s, g)
}

func (h *Harness) moveEntry(s repository.Session, args map[string]any) (string, error) {
	e, err := h.entry(args)
	if err != nil {
		return "", err
	}
	to := optStr(args, "to_context")
	if to == "" {
		to = e.ContextID()
	}
	c, err := h.repo.Context(to)
	if err != nil {
		return "", err
	}
	moved, err := c.MoveEntryHere(s, e.URI(), optStr(args, "from_list"), optStr(args, "to_list"), false)
	if err != nil {
		return "", err
	}
	return moved.URI(), nil
}

func (h *Harness) copyEntry(s repository.Session, args map[string]any) (string, error) {
	e, err := h.entry(args)
	if err != nil {
		return "", err
	}
	to, err := str(args, "to_context")
	if err != nil {
		return "", err
	}
	c, err := h.repo.Context(to)
	if err != nil {
		return "", err
	}
	copied, err := c.CopyEntryHere(s, e.URI(), optStr(args, "to_list"))
	if err != nil {
		return "", err
	}
	return copied.URI(), nil
}

func (h *Harness) reindex(_ repository.Session, args map[string]any) (string, error) {
	ctxID := optStr(args, "context")
	if ctxID == "" {
		return "", h.repo.ReIndexAll(context.Background())
	}
	c, err := h.repo.Context(ctxID)
	if err != nil {
		return "", err
	}
	return "", c.ReIndex()
}
