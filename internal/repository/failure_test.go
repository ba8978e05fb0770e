package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/store"
	"github.com/roach88/mdrepo/internal/vocab"
)

var errConnectionLost = errors.New("connection lost")

// flakyStore passes everything through to the wrapped store until armed,
// then fails transaction writes or commits.
type flakyStore struct {
	store.StatementStore
	failAdd    atomic.Bool
	failCommit atomic.Bool
}

func (f *flakyStore) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := f.StatementStore.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &flakyTx{Tx: tx, store: f}, nil
}

func (f *flakyStore) heal() {
	f.failAdd.Store(false)
	f.failCommit.Store(false)
}

type flakyTx struct {
	store.Tx
	store *flakyStore
}

func (t *flakyTx) Add(ctx context.Context, quads ...ir.Quad) error {
	if t.store.failAdd.Load() {
		return errConnectionLost
	}
	return t.Tx.Add(ctx, quads...)
}

func (t *flakyTx) Commit() error {
	if t.store.failCommit.Load() {
		return errConnectionLost
	}
	return t.Tx.Commit()
}

// failureFixture is a context with two lists, a data entry in the first
// one carrying metadata and a three byte payload.
type failureFixture struct {
	c       *Context
	folder  *Entry
	archive *Entry
	doc     *Entry
}

func newFailureFixture(t *testing.T, r *testRepo) failureFixture {
	t.Helper()
	c := r.mustContext(t, "")
	folder := mustCreate(t, c, r.admin, GraphList, "")
	archive := mustCreate(t, c, r.admin, GraphList, "")
	doc := mustCreate(t, c, r.admin, GraphNone, folder.URI())
	require.NoError(t, doc.LocalMetadata().SetGraph(r.admin, titled(doc.ResourceURI(), "old")))
	require.NoError(t, dataOf(t, doc).Write(r.admin, []byte("old")))
	return failureFixture{c: c, folder: folder, archive: archive, doc: doc}
}

func TestStoreFailure_LeavesStateUntouched(t *testing.T) {
	ops := []struct {
		name string
		do   func(t *testing.T, r *testRepo, fx failureFixture) error
	}{
		{
			name: "create in list",
			do: func(t *testing.T, r *testRepo, fx failureFixture) error {
				_, err := fx.c.CreateResource(r.admin, GraphNone, fx.folder.URI())
				return err
			},
		},
		{
			name: "set metadata",
			do: func(t *testing.T, r *testRepo, fx failureFixture) error {
				return fx.doc.LocalMetadata().SetGraph(r.admin, titled(fx.doc.ResourceURI(), "new"))
			},
		},
		{
			name: "add child",
			do: func(t *testing.T, r *testRepo, fx failureFixture) error {
				return mustList(t, r, fx.archive).AddChild(r.admin, fx.doc.URI())
			},
		},
		{
			name: "write payload",
			do: func(t *testing.T, r *testRepo, fx failureFixture) error {
				return dataOf(t, fx.doc).Write(r.admin, []byte("a longer payload"))
			},
		},
	}
	modes := []struct {
		name string
		arm  func(f *flakyStore)
	}{
		{"add fails", func(f *flakyStore) { f.failAdd.Store(true) }},
		{"commit fails", func(f *flakyStore) { f.failCommit.Store(true) }},
	}

	for _, op := range ops {
		for _, mode := range modes {
			t.Run(op.name+"/"+mode.name, func(t *testing.T) {
				for name, newStore := range backends() {
					t.Run(name, func(t *testing.T) {
						flaky := &flakyStore{StatementStore: newStore(t)}
						r := createTestRepo(t, flaky)
						fx := newFailureFixture(t, r)
						ctx := context.Background()

						graph := fx.doc.Graph()
						index, err := fx.c.Index()
						require.NoError(t, err)
						rollbacks := promtest.ToFloat64(r.Metrics().StoreRollbacks)
						r.recorder.Reset()

						mode.arm(flaky)
						err = op.do(t, r, fx)
						require.Error(t, err)
						assert.True(t, IsStoreConnectivityError(err), "got %v", err)
						assert.ErrorIs(t, err, errConnectionLost)
						flaky.heal()

						assert.Empty(t, r.recorder.Events())
						assert.Equal(t, rollbacks+1, promtest.ToFloat64(r.Metrics().StoreRollbacks))

						assert.True(t, graph.Equal(fx.doc.Graph()), "in-memory entry graph changed")
						stored, err := r.readGraph(ctx, r.st, ir.IRI(fx.doc.URI()))
						require.NoError(t, err)
						assert.True(t, graph.Equal(stored), "stored entry graph changed")

						after, err := fx.c.Index()
						require.NoError(t, err)
						assert.Equal(t, index, after)

						assert.Equal(t, uris(fx.doc), mustChildren(t, mustList(t, r, fx.folder), r.admin))
						assert.Empty(t, mustChildren(t, mustList(t, r, fx.archive), r.admin))

						md, err := fx.doc.LocalMetadata().Graph(r.admin)
						require.NoError(t, err)
						assert.True(t, titled(fx.doc.ResourceURI(), "old").Equal(md), "got %v", md)

						payload, err := dataOf(t, fx.doc).Read(r.admin)
						require.NoError(t, err)
						assert.Equal(t, []byte("old"), payload)
						assert.Equal(t, int64(3), fx.doc.Filesize())
						assert.Equal(t, int64(3), fillOf(t, fx.c))

						// the same operation goes through once the store is back
						require.NoError(t, op.do(t, r, fx))
						assert.NotEmpty(t, r.recorder.Events())
					})
				}
			})
		}
	}
}

func TestStoreFailure_FillLevelSurvivesRestart(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			flaky := &flakyStore{StatementStore: newStore(t)}
			r := createTestRepo(t, flaky)
			fx := newFailureFixture(t, r)

			flaky.failCommit.Store(true)
			err := dataOf(t, fx.doc).Delete(r.admin)
			assert.True(t, IsStoreConnectivityError(err), "got %v", err)
			flaky.heal()

			fresh := r.reopen(t)
			fc, err := fresh.Context(fx.c.ID())
			require.NoError(t, err)
			assert.Equal(t, int64(3), fillOf(t, fc))
			doc, err := fresh.Entry(fx.doc.URI())
			require.NoError(t, err)
			assert.Equal(t, int64(3), doc.Filesize())
			payload, err := dataOf(t, doc).Read(fresh.admin)
			require.NoError(t, err)
			assert.Equal(t, []byte("old"), payload)
		})
	}
}

func TestStoreFailure_PrincipalCreatedWithName(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			flaky := &flakyStore{StatementStore: newStore(t)}
			r := createTestRepo(t, flaky)
			principals, err := r.Context(vocab.PrincipalsID)
			require.NoError(t, err)
			before, err := principals.Index()
			require.NoError(t, err)

			flaky.failCommit.Store(true)
			_, err = r.CreateUser(r.admin, "alice")
			assert.True(t, IsStoreConnectivityError(err), "got %v", err)
			flaky.heal()

			after, err := principals.Index()
			require.NoError(t, err)
			assert.Equal(t, before, after, "no unnamed user is left behind")

			alice := r.mustUser(t, "alice")
			byName, err := r.UserByName("alice")
			require.NoError(t, err)
			assert.Equal(t, alice.URI(), byName.URI())

			_, err = r.CreateGroup(r.admin, "alice")
			assert.True(t, IsIntegrityViolationError(err), "got %v", err)
		})
	}
}
