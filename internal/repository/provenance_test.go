package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mdrepo/internal/config"
	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/queryir"
)

var dcTitle = ir.IRI("http://purl.org/dc/terms/title")

func titled(subject, title string) ir.Graph {
	var g ir.Graph
	g.Add(ir.IRI(subject), dcTitle, ir.Literal(title))
	return g
}

func TestProvenance_RevisionChain(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		e := mustCreate(t, c, r.admin, GraphNone, "")
		md := e.LocalMetadata()
		versions := []ir.Graph{
			titled(e.ResourceURI(), "first"),
			titled(e.ResourceURI(), "second"),
			titled(e.ResourceURI(), "third"),
		}
		for _, g := range versions {
			require.NoError(t, md.SetGraph(r.admin, g))
		}

		p := e.Provenance()
		ents := p.Entities()
		require.Len(t, ents, 3)
		for i, ent := range ents {
			assert.Equal(t, i+1, ent.Revision)
			assert.Equal(t, r.AdminURI(), ent.AttributedTo)
			assert.Equal(t, i == 2, ent.Head, "revision %d", ent.Revision)
		}
		assert.Empty(t, ents[0].RevisionOf)
		assert.Equal(t, ents[0].URI, ents[1].RevisionOf)
		assert.Equal(t, ents[1].URI, ents[2].RevisionOf)

		head, ok := p.Head()
		require.True(t, ok)
		assert.Equal(t, ents[2], head)

		for i, ent := range ents {
			g, err := p.Graph(r.admin, ent)
			require.NoError(t, err)
			assert.True(t, versions[i].Equal(g), "revision %d holds %v", ent.Revision, g)
		}

		at, ok := p.EntityAt(ents[1].GeneratedAt)
		require.True(t, ok)
		assert.Equal(t, 2, at.Revision)
		_, ok = p.EntityAt(ents[0].GeneratedAt.Add(-time.Millisecond))
		assert.False(t, ok)

		byURI, ok := p.EntityFor(ents[0].URI)
		require.True(t, ok)
		assert.Equal(t, 1, byURI.Revision)
		_, ok = p.EntityForRevision(4)
		assert.False(t, ok)
	})
}

func TestProvenance_ReadsNeedReadMetadata(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		e := mustCreate(t, c, r.admin, GraphNone, "")
		require.NoError(t, e.LocalMetadata().SetGraph(r.admin, titled(e.ResourceURI(), "only")))

		head, ok := e.Provenance().Head()
		require.True(t, ok)
		_, err := e.Provenance().Graph(r.GuestSession(), head)
		assert.True(t, IsAuthorizationError(err), "got %v", err)
	})
}

func TestProvenance_RemovedWithEntry(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		e := mustCreate(t, c, r.admin, GraphNone, "")
		md := e.LocalMetadata()
		require.NoError(t, md.SetGraph(r.admin, titled(e.ResourceURI(), "a")))
		require.NoError(t, md.SetGraph(r.admin, titled(e.ResourceURI(), "b")))
		first, ok := e.Provenance().EntityForRevision(1)
		require.True(t, ok)

		require.NoError(t, c.Remove(r.admin, e.URI()))

		left, err := r.st.Query(context.Background(), queryir.Graph(ir.IRI(first.URI)))
		require.NoError(t, err)
		assert.Empty(t, left)
	})
}

func TestProvenance_Disabled(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		e := mustCreate(t, c, r.admin, GraphNone, "")
		require.NoError(t, e.LocalMetadata().SetGraph(r.admin, titled(e.ResourceURI(), "a")))

		assert.Empty(t, e.Provenance().Entities())
	}, func(cfg *config.Config) { cfg.Provenance = false })
}
