package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMove_WithinContextRelinks(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		a := mustCreate(t, c, r.admin, GraphList, "")
		b := mustCreate(t, c, r.admin, GraphList, "")
		doc := mustCreate(t, c, r.admin, GraphNone, a.URI())

		moved, err := c.MoveEntryHere(r.admin, doc.URI(), a.URI(), b.URI(), false)
		require.NoError(t, err)
		assert.Same(t, doc, moved)
		assert.Empty(t, mustChildren(t, mustList(t, r, a), r.admin))
		assert.Equal(t, uris(doc), mustChildren(t, mustList(t, r, b), r.admin))
	})
}

func TestMove_WithinContextRemoveAll(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		a := mustCreate(t, c, r.admin, GraphList, "")
		b := mustCreate(t, c, r.admin, GraphList, "")
		dst := mustCreate(t, c, r.admin, GraphList, "")
		doc := mustCreate(t, c, r.admin, GraphNone, a.URI())
		require.NoError(t, mustList(t, r, b).AddChild(r.admin, doc.URI()))

		_, err := c.MoveEntryHere(r.admin, doc.URI(), "", dst.URI(), true)
		require.NoError(t, err)

		parents, err := doc.ReferringLists()
		require.NoError(t, err)
		assert.Equal(t, []string{dst.ResourceURI()}, parents)
	})
}

func TestMove_AcrossContextsCopiesPayload(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c1 := r.mustContext(t, "")
		c2 := r.mustContext(t, "")
		src := mustCreate(t, c1, r.admin, GraphNone, "")
		require.NoError(t, dataOf(t, src).Write(r.admin, []byte("bytes")))
		require.NoError(t, src.LocalMetadata().SetGraph(r.admin, titled(src.ResourceURI(), "moving")))

		dst, err := c2.MoveEntryHere(r.admin, src.URI(), "", "", false)
		require.NoError(t, err)
		assert.Equal(t, c2.ID(), dst.ContextID())
		assert.True(t, src.IsDeleted())
		_, err = r.Entry(src.URI())
		assert.True(t, IsEntryMissingError(err), "got %v", err)

		got, err := dataOf(t, dst).Read(r.admin)
		require.NoError(t, err)
		assert.Equal(t, []byte("bytes"), got)
		assert.Equal(t, int64(0), fillOf(t, c1))
		assert.Equal(t, int64(5), fillOf(t, c2))

		md, err := dst.LocalMetadata().Graph(r.admin)
		require.NoError(t, err)
		assert.True(t, titled(dst.ResourceURI(), "moving").Equal(md), "got %v", md)
	})
}

func TestMove_AcrossContextsNeedsAdminister(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c1 := r.mustContext(t, "")
		c2 := r.mustContext(t, "")
		bob := r.mustUser(t, "bob")
		r.grant(t, c1, ReadResource, bob.URI())
		r.grant(t, c2, WriteResource, bob.URI())
		src := mustCreate(t, c1, r.admin, GraphNone, "")

		_, err := c2.MoveEntryHere(bob.Session(), src.URI(), "", "", false)
		assert.True(t, IsAuthorizationError(err), "got %v", err)
		assert.False(t, src.IsDeleted())
	})
}

func TestCopy_RewritesURIs(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c1 := r.mustContext(t, "")
		c2 := r.mustContext(t, "")
		folder := mustCreate(t, c2, r.admin, GraphList, "")
		src := mustCreate(t, c1, r.admin, GraphNone, "")
		require.NoError(t, src.LocalMetadata().SetGraph(r.admin, titled(src.ResourceURI(), "original")))

		cp, err := c2.CopyEntryHere(r.admin, src.URI(), folder.URI())
		require.NoError(t, err)

		assert.False(t, src.IsDeleted())
		assert.NotEqual(t, src.ResourceURI(), cp.ResourceURI())
		md, err := cp.LocalMetadata().Graph(r.admin)
		require.NoError(t, err)
		assert.True(t, titled(cp.ResourceURI(), "original").Equal(md), "got %v", md)
		assert.Equal(t, uris(cp), mustChildren(t, mustList(t, r, folder), r.admin))
		assert.Empty(t, cp.Provenance().Entities(), "revisions stay with the source")
	})
}

func TestCopy_ListSubtree(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c1 := r.mustContext(t, "")
		c2 := r.mustContext(t, "")
		root := mustCreate(t, c1, r.admin, GraphList, "")
		mustCreate(t, c1, r.admin, GraphNone, root.URI())
		mustCreate(t, c1, r.admin, GraphString, root.URI())

		cp, err := c2.CopyEntryHere(r.admin, root.URI(), "")
		require.NoError(t, err)

		children := mustChildren(t, mustList(t, r, cp), r.admin)
		require.Len(t, children, 2)
		for _, u := range children {
			child, err := r.Entry(u)
			require.NoError(t, err)
			assert.Equal(t, c2.ID(), child.ContextID())
		}
		entries, err := c2.Entries()
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})
}
