package repository

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportOf(t *testing.T, r *testRepo, opts ExportOptions) Export {
	t.Helper()
	ex, err := r.Export(context.Background(), r.admin, opts)
	require.NoError(t, err)
	return ex
}

func TestExport_AdminOnly(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		bob := r.mustUser(t, "bob")

		_, err := r.Export(context.Background(), bob.Session(), ExportOptions{})
		assert.True(t, IsAuthorizationError(err), "got %v", err)
		_, err = r.Export(context.Background(), r.GuestSession(), ExportOptions{})
		assert.True(t, IsAuthorizationError(err), "got %v", err)
	})
}

func TestExport_StableDigest(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		mustCreate(t, c, r.admin, GraphList, "")

		first := exportOf(t, r, ExportOptions{})
		second := exportOf(t, r, ExportOptions{})
		assert.Equal(t, first, second)
		assert.Positive(t, first.Statements)
		assert.True(t, bytes.HasSuffix(first.NQuads, []byte(" .\n")))

		mustCreate(t, c, r.admin, GraphNone, "")
		assert.NotEqual(t, first.Digest, exportOf(t, r, ExportOptions{}).Digest)
	})
}

func TestExport_ContextFilter(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c1 := r.mustContext(t, "")
		c2 := r.mustContext(t, "")
		mustCreate(t, c1, r.admin, GraphNone, "")
		other := mustCreate(t, c2, r.admin, GraphNone, "")

		ex := exportOf(t, r, ExportOptions{Context: c1.ID()})
		require.Positive(t, ex.Statements)
		for _, line := range strings.Split(strings.TrimSpace(string(ex.NQuads)), "\n") {
			assert.Contains(t, line, "<"+c1.URI())
		}
		assert.NotContains(t, string(ex.NQuads), other.URI())
	})
}

func TestExport_GraphPattern(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *testRepo) {
		c := r.mustContext(t, "")
		e := mustCreate(t, c, r.admin, GraphNone, "")

		ex := exportOf(t, r, ExportOptions{Graph: c.ID() + "/entry/" + e.ID()})
		assert.Equal(t, len(e.Graph()), ex.Statements)

		all := exportOf(t, r, ExportOptions{Graph: "*/entry/*"})
		assert.Greater(t, all.Statements, ex.Statements)

		_, err := r.Export(context.Background(), r.admin, ExportOptions{Graph: "["})
		require.Error(t, err)
		assert.False(t, IsAuthorizationError(err))
	})
}
