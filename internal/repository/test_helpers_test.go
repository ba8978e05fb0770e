package repository

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/mdrepo/internal/blob"
	"github.com/roach88/mdrepo/internal/config"
	"github.com/roach88/mdrepo/internal/events"
	"github.com/roach88/mdrepo/internal/metrics"
	"github.com/roach88/mdrepo/internal/store"
	"github.com/roach88/mdrepo/internal/testutil"
)

const testBase = "http://example.org/store/"

// testRepo bundles a repository with the collaborators tests inspect.
type testRepo struct {
	*Repository
	st       store.StatementStore
	blobDir  string
	cfg      *config.Config
	clock    *testutil.DeterministicClock
	recorder *events.Recorder
	admin    Session
}

// backends returns a constructor per StatementStore implementation so the
// same behavior is asserted against each.
func backends() map[string]func(t *testing.T) store.StatementStore {
	return map[string]func(t *testing.T) store.StatementStore{
		"sqlite": func(t *testing.T) store.StatementStore {
			s, err := store.Open(filepath.Join(t.TempDir(), "repo.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"memory": func(t *testing.T) store.StatementStore {
			m := store.NewMemory()
			t.Cleanup(func() { m.Close() })
			return m
		},
	}
}

// forEachBackend runs fn as a subtest per backend with a fresh repository.
func forEachBackend(t *testing.T, fn func(t *testing.T, r *testRepo), tweaks ...func(*config.Config)) {
	t.Helper()
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			fn(t, createTestRepo(t, newStore(t), tweaks...))
		})
	}
}

func testConfig(tweaks ...func(*config.Config)) *config.Config {
	cfg := config.Default()
	cfg.BaseURI = testBase
	cfg.Quota.Enabled = true
	cfg.Tombstones = true
	for _, tweak := range tweaks {
		tweak(cfg)
	}
	return cfg
}

// createTestRepo opens a repository over st with quotas and tombstones on,
// a deterministic clock and an event recorder.
func createTestRepo(t *testing.T, st store.StatementStore, tweaks ...func(*config.Config)) *testRepo {
	t.Helper()
	return openTestRepo(t, st, t.TempDir(), testConfig(tweaks...), metrics.New())
}

// openTestRepo opens a repository over existing state, as a restart would.
func openTestRepo(t *testing.T, st store.StatementStore, blobDir string, cfg *config.Config, m *metrics.Metrics) *testRepo {
	t.Helper()
	clock := testutil.NewDeterministicClock()
	rec := &events.Recorder{}
	bus := events.NewBus(events.WithNow(clock.Now), events.WithIDGenerator(testutil.NewSequentialIDs("evt")))
	bus.Subscribe(events.All, rec.Handle)

	r, err := Open(st,
		WithConfig(cfg),
		WithBlobs(&blob.FileStore{Dir: blobDir}),
		WithSink(bus),
		WithMetrics(m),
		WithNow(clock.Now),
	)
	require.NoError(t, err)
	return &testRepo{
		Repository: r,
		st:         st,
		blobDir:    blobDir,
		cfg:        cfg,
		clock:      clock,
		recorder:   rec,
		admin:      r.AdminSession(),
	}
}

// reopen returns a second repository over the same store and payloads.
func (r *testRepo) reopen(t *testing.T) *testRepo {
	t.Helper()
	return openTestRepo(t, r.st, r.blobDir, r.cfg, metrics.New())
}

func (r *testRepo) mustContext(t *testing.T, name string) *Context {
	t.Helper()
	c, err := r.CreateContext(r.admin, "", name)
	require.NoError(t, err)
	return c
}

func (r *testRepo) mustUser(t *testing.T, name string) *User {
	t.Helper()
	u, err := r.CreateUser(r.admin, name)
	require.NoError(t, err)
	return u
}

// grant gives principals p on the context entry of c.
func (r *testRepo) grant(t *testing.T, c *Context, p AccessProperty, principals ...string) {
	t.Helper()
	ce, err := c.Entry()
	require.NoError(t, err)
	require.NoError(t, ce.AddAllowedPrincipalsFor(r.admin, p, principals...))
}

func mustCreate(t *testing.T, c *Context, s Session, gt GraphType, list string) *Entry {
	t.Helper()
	e, err := c.CreateResource(s, gt, list)
	require.NoError(t, err)
	return e
}

func mustList(t *testing.T, r *testRepo, e *Entry) *List {
	t.Helper()
	l, err := r.List(e.URI())
	require.NoError(t, err)
	return l
}

func mustChildren(t *testing.T, l *List, s Session) []string {
	t.Helper()
	children, err := l.Children(s)
	require.NoError(t, err)
	return children
}

func uris(es ...*Entry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.URI()
	}
	return out
}
