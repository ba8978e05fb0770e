package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestACLRights_FromContextGrant(t *testing.T) {
	cfg := seededConfig(t)
	doc := createEntry(t, cfg, "--context", "w")

	var rights RightsResult
	runJSON(t, cfg, &rights, "--as", "alice", "acl", "rights", doc.URI)
	assert.Equal(t, doc.URI, rights.Entry)
	assert.Contains(t, rights.Rights, "ReadMetadata")
	assert.Contains(t, rights.Rights, "WriteResource")

	out := mustRun(t, cfg, "--as", "bob", "acl", "rights", doc.URI)
	assert.Equal(t, "(none)\n", out)

	// admin holds everything
	runJSON(t, cfg, &rights, "acl", "rights", doc.URI)
	assert.Equal(t, []string{"Administer", "ReadMetadata", "WriteMetadata", "ReadResource", "WriteResource"}, rights.Rights)
}

func TestACL_CreateRefusedWithoutGrant(t *testing.T) {
	cfg := seededConfig(t)

	doc := createEntry(t, cfg, "--as", "alice", "--context", "w")
	assert.Equal(t, "w", doc.Context)

	_, errOut, err := run(t, cfg, "--as", "bob", "entry", "create", "--context", "w")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, errOut, "AUTHORIZATION")

	_, errOut, err = run(t, cfg, "--format", "json", "--as", "bob", "entry", "show", doc.URI)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Empty(t, errOut)
}

func TestACLGrant(t *testing.T) {
	cfg := seededConfig(t)
	doc := createEntry(t, cfg, "--context", "w")

	out := mustRun(t, cfg, "acl", "grant", doc.URI, "readmetadata", "bob")
	assert.Equal(t, "✓ bob granted ReadMetadata on "+doc.URI+"\n", out)

	var rights RightsResult
	runJSON(t, cfg, &rights, "--as", "bob", "acl", "rights", doc.URI)
	assert.Equal(t, []string{"ReadMetadata"}, rights.Rights)

	var shown EntryInfo
	runJSON(t, cfg, &shown, "--as", "bob", "entry", "show", doc.URI)
	assert.Equal(t, doc.URI, shown.URI)
	require.Contains(t, shown.ACL, "ReadMetadata")
	assert.Len(t, shown.ACL["ReadMetadata"], 1)
}

func TestACLGrant_BadArguments(t *testing.T) {
	cfg := seededConfig(t)
	doc := createEntry(t, cfg, "--context", "w")

	_, _, err := run(t, cfg, "acl", "grant", doc.URI, "Delete", "bob")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, errOut, err := run(t, cfg, "acl", "grant", doc.URI, "ReadMetadata", "carol")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, errOut, "ENTRY_MISSING")
}
