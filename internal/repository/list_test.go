package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mdrepo/internal/events"
)

func TestList_CreateInListAppends(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		folder := mustCreate(t, c, r.admin, GraphList, "")
		a := mustCreate(t, c, r.admin, GraphNone, folder.URI())
		b := mustCreate(t, c, r.admin, GraphString, folder.ResourceURI())

		l := mustList(t, r, folder)
		assert.Equal(t, uris(a, b), mustChildren(t, l, r.admin))

		parents, err := a.ReferringLists()
		require.NoError(t, err)
		assert.Equal(t, []string{folder.ResourceURI()}, parents)
		assert.Empty(t, a.OriginalList(), "the owner leaves no marker")
	})
}

func TestList_ChildrenStayInContext(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c1 := r.mustContext(t, "")
		c2 := r.mustContext(t, "")
		folder := mustCreate(t, c1, r.admin, GraphList, "")
		stranger := mustCreate(t, c2, r.admin, GraphNone, "")

		err := mustList(t, r, folder).AddChild(r.admin, stranger.URI())
		assert.True(t, IsIntegrityViolationError(err), "got %v", err)

		_, err = c2.CreateResource(r.admin, GraphNone, folder.URI())
		assert.True(t, IsIntegrityViolationError(err), "got %v", err)

		err = mustList(t, r, folder).AddChild(r.admin, folder.URI())
		assert.True(t, IsIntegrityViolationError(err), "a list cannot contain itself")
	})
}

func TestList_ListsHaveOneParent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		a := mustCreate(t, c, r.admin, GraphList, "")
		b := mustCreate(t, c, r.admin, GraphList, "")
		sub := mustCreate(t, c, r.admin, GraphList, a.URI())
		doc := mustCreate(t, c, r.admin, GraphNone, a.URI())
		lb := mustList(t, r, b)

		err := lb.AddChild(r.admin, sub.URI())
		assert.True(t, IsIntegrityViolationError(err), "got %v", err)

		require.NoError(t, lb.AddChild(r.admin, doc.URI()), "non-list entries may sit in many lists")
		require.NoError(t, lb.AddChild(r.admin, sub.URI(), SkipParentCheck()))

		parents, err := sub.ReferringLists()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{a.ResourceURI(), b.ResourceURI()}, parents)
	})
}

func TestList_DuplicatesRejected(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		folder := mustCreate(t, c, r.admin, GraphList, "")
		doc := mustCreate(t, c, r.admin, GraphNone, folder.URI())
		l := mustList(t, r, folder)

		err := l.AddChild(r.admin, doc.URI())
		assert.True(t, IsIntegrityViolationError(err), "got %v", err)
		assert.Equal(t, uris(doc), mustChildren(t, l, r.admin))

		err = l.SetChildren(r.admin, uris(doc, doc))
		assert.True(t, IsIntegrityViolationError(err), "got %v", err)
		assert.Equal(t, uris(doc), mustChildren(t, l, r.admin))

		require.NoError(t, l.AddChild(r.admin, doc.URI(), AllowDuplicates()))
		assert.Equal(t, uris(doc, doc), mustChildren(t, l, r.admin))

		require.NoError(t, l.SetChildren(r.admin, uris(doc, doc, doc), AllowDuplicates()))
		assert.Equal(t, uris(doc, doc, doc), mustChildren(t, l, r.admin))

		require.NoError(t, l.RemoveChild(r.admin, doc.URI()))
		assert.Empty(t, mustChildren(t, l, r.admin))
	})
}

func TestList_OrphaningNeedsTheOwner(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		alice := r.mustUser(t, "alice")
		r.grant(t, c, WriteResource, alice.URI())
		folder := mustCreate(t, c, r.admin, GraphList, "")
		l := mustList(t, r, folder)

		doc := mustCreate(t, c, alice.Session(), GraphNone, folder.URI())
		assert.Equal(t, folder.ResourceURI(), doc.OriginalList())

		err := l.RemoveChild(alice.Session(), doc.URI())
		assert.True(t, IsAuthorizationError(err), "got %v", err)
		assert.Equal(t, uris(doc), mustChildren(t, l, r.admin))

		require.NoError(t, l.RemoveChild(r.admin, doc.URI()))
		assert.Empty(t, doc.OriginalList())
		assert.Empty(t, mustChildren(t, l, r.admin))
	})
}

func TestList_OwnerAddingClearsMarker(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		alice := r.mustUser(t, "alice")
		r.grant(t, c, WriteResource, alice.URI())
		inbox := mustCreate(t, c, r.admin, GraphList, "")
		archive := mustCreate(t, c, r.admin, GraphList, "")

		doc := mustCreate(t, c, alice.Session(), GraphNone, inbox.URI())
		require.NotEmpty(t, doc.OriginalList())

		require.NoError(t, mustList(t, r, archive).AddChild(r.admin, doc.URI()))
		assert.Empty(t, doc.OriginalList())

		require.NoError(t, mustList(t, r, inbox).RemoveChild(alice.Session(), doc.URI()), "doc stays in archive")
	})
}

func TestList_OwnerSettingChildrenClearsMarkers(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		alice := r.mustUser(t, "alice")
		r.grant(t, c, WriteResource, alice.URI())
		inbox := mustCreate(t, c, r.admin, GraphList, "")
		archive := mustCreate(t, c, r.admin, GraphList, "")

		kept := mustCreate(t, c, alice.Session(), GraphNone, inbox.URI())
		moved := mustCreate(t, c, alice.Session(), GraphNone, inbox.URI())
		require.NotEmpty(t, moved.OriginalList())

		// alice may not orphan what she created through the list
		err := mustList(t, r, inbox).SetChildren(alice.Session(), uris(kept))
		assert.True(t, IsAuthorizationError(err), "got %v", err)
		assert.Equal(t, inbox.ResourceURI(), moved.OriginalList())

		r.recorder.Reset()
		require.NoError(t, mustList(t, r, archive).SetChildren(r.admin, uris(moved)))
		assert.Empty(t, moved.OriginalList())
		assert.Equal(t, inbox.ResourceURI(), kept.OriginalList())
		assert.Equal(t, []events.Kind{events.EntryUpdated, events.ResourceUpdated}, r.recorder.Kinds())
		assert.Equal(t, moved.URI(), r.recorder.Events()[0].EntryURI)

		reloaded, err := r.Entry(moved.URI())
		require.NoError(t, err)
		assert.Empty(t, reloaded.OriginalList())

		r.recorder.Reset()
		require.NoError(t, mustList(t, r, inbox).SetChildren(r.admin, nil))
		assert.Empty(t, kept.OriginalList())
		assert.Equal(t, []events.Kind{events.EntryUpdated, events.EntryUpdated, events.ResourceUpdated}, r.recorder.Kinds())
		assert.Empty(t, mustChildren(t, mustList(t, r, inbox), r.admin))
	})
}

func TestList_Reorder(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		folder := mustCreate(t, c, r.admin, GraphList, "")
		x := mustCreate(t, c, r.admin, GraphNone, folder.URI())
		y := mustCreate(t, c, r.admin, GraphNone, folder.URI())
		z := mustCreate(t, c, r.admin, GraphNone, folder.URI())
		l := mustList(t, r, folder)

		require.NoError(t, l.MoveChildBefore(r.admin, z.URI(), x.URI()))
		assert.Equal(t, uris(z, x, y), mustChildren(t, l, r.admin))

		require.NoError(t, l.MoveChildAfter(r.admin, z.URI(), y.URI()))
		assert.Equal(t, uris(x, y, z), mustChildren(t, l, r.admin))

		require.NoError(t, l.SetChildren(r.admin, uris(y, x)))
		assert.Equal(t, uris(y, x), mustChildren(t, l, r.admin))
		parents, err := z.ReferringLists()
		require.NoError(t, err)
		assert.Empty(t, parents)

		err = l.MoveChildAfter(r.admin, z.URI(), x.URI())
		assert.True(t, IsIntegrityViolationError(err), "got %v", err)
	})
}

func TestList_RemovingAnEntryDetachesIt(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		a := mustCreate(t, c, r.admin, GraphList, "")
		b := mustCreate(t, c, r.admin, GraphList, "")
		x := mustCreate(t, c, r.admin, GraphNone, a.URI())
		y := mustCreate(t, c, r.admin, GraphNone, a.URI())
		require.NoError(t, mustList(t, r, b).AddChild(r.admin, x.URI()))

		require.NoError(t, c.Remove(r.admin, x.URI()))

		assert.Equal(t, uris(y), mustChildren(t, mustList(t, r, a), r.admin))
		assert.Empty(t, mustChildren(t, mustList(t, r, b), r.admin))
	})
}

func TestList_RemovingAListKeepsChildren(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		folder := mustCreate(t, c, r.admin, GraphList, "")
		doc := mustCreate(t, c, r.admin, GraphNone, folder.URI())

		require.NoError(t, c.Remove(r.admin, folder.URI()))

		again, err := r.Entry(doc.URI())
		require.NoError(t, err)
		parents, err := again.ReferringLists()
		require.NoError(t, err)
		assert.Empty(t, parents)
	})
}

func TestList_ChildrenNeedReadResource(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		bob := r.mustUser(t, "bob")
		folder := mustCreate(t, c, r.admin, GraphList, "")
		l := mustList(t, r, folder)

		_, err := l.Children(bob.Session())
		assert.True(t, IsAuthorizationError(err), "got %v", err)

		err = l.AddChild(bob.Session(), folder.URI())
		assert.True(t, IsAuthorizationError(err), "got %v", err)
	})
}

func TestList_RejectsNonLists(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		doc := mustCreate(t, c, r.admin, GraphNone, "")
		_, err := r.List(doc.URI())
		assert.True(t, IsIntegrityViolationError(err), "got %v", err)
	})
}

func TestRemoveTree_SkipsSharedChildren(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		root := mustCreate(t, c, r.admin, GraphList, "")
		other := mustCreate(t, c, r.admin, GraphList, "")
		sub := mustCreate(t, c, r.admin, GraphList, root.URI())
		leaf := mustCreate(t, c, r.admin, GraphNone, sub.URI())
		direct := mustCreate(t, c, r.admin, GraphNone, root.URI())
		shared := mustCreate(t, c, r.admin, GraphNone, root.URI())
		require.NoError(t, mustList(t, r, other).AddChild(r.admin, shared.URI()))

		require.NoError(t, c.RemoveTree(r.admin, root.URI()))

		for _, e := range []*Entry{root, sub, leaf, direct} {
			assert.True(t, e.IsDeleted(), e.URI())
		}
		assert.False(t, shared.IsDeleted())
		parents, err := shared.ReferringLists()
		require.NoError(t, err)
		assert.Equal(t, []string{other.ResourceURI()}, parents)
	})
}

func TestApplyACLToChildren(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		bob := r.mustUser(t, "bob")
		root := mustCreate(t, c, r.admin, GraphList, "")
		sub := mustCreate(t, c, r.admin, GraphList, root.URI())
		leaf := mustCreate(t, c, r.admin, GraphNone, sub.URI())
		require.NoError(t, root.SetAllowedPrincipalsFor(r.admin, ReadMetadata, []string{bob.URI()}))

		require.NoError(t, mustList(t, r, root).ApplyACLToChildren(r.admin, false))
		assert.Equal(t, []string{bob.URI()}, sub.AllowedPrincipalsFor(ReadMetadata))
		assert.Empty(t, leaf.AllowedPrincipalsFor(ReadMetadata))

		require.NoError(t, mustList(t, r, root).ApplyACLToChildren(r.admin, true))
		assert.Equal(t, []string{bob.URI()}, leaf.AllowedPrincipalsFor(ReadMetadata))
	})
}
