package compiler

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mdrepo/internal/blob"
	"github.com/roach88/mdrepo/internal/config"
	"github.com/roach88/mdrepo/internal/repository"
	"github.com/roach88/mdrepo/internal/store"
)

func openRepo(t *testing.T) *repository.Repository {
	t.Helper()
	cfg := config.Default()
	cfg.BaseURI = "http://example.org/store/"
	st := store.NewMemory()
	r, err := repository.Open(st,
		repository.WithConfig(cfg),
		repository.WithBlobs(&blob.FileStore{Dir: t.TempDir()}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func compileExample(t *testing.T) *Seed {
	t.Helper()
	seed, err := CompileSeed(cuecontext.New().CompileString(exampleSeed))
	require.NoError(t, err)
	return seed
}

func TestApplyCreatesEverything(t *testing.T) {
	r := openRepo(t)
	admin := r.AdminSession()

	applied, err := Apply(r, admin, compileExample(t))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, applied.Users)
	assert.Equal(t, []string{"editors"}, applied.Groups)
	assert.ElementsMatch(t, []string{"work", "scratch"}, applied.Contexts)
	assert.Equal(t, []string{"work/inbox", "work/archive"}, applied.Lists)

	work, err := r.ContextByName("work")
	require.NoError(t, err)
	assert.Equal(t, "w", work.ID())
	quota, err := work.Quota()
	require.NoError(t, err)
	assert.Equal(t, int64(10*1024*1024), quota)

	editors, err := r.GroupByName("editors")
	require.NoError(t, err)
	alice, err := r.UserByName("alice")
	require.NoError(t, err)
	member, err := editors.IsMember(alice.URI())
	require.NoError(t, err)
	assert.True(t, member)
	assert.Equal(t, "w", alice.HomeContext())

	ce, err := work.Entry()
	require.NoError(t, err)
	assert.Equal(t, []string{editors.URI()}, ce.AllowedPrincipalsFor(repository.WriteResource))
	assert.Equal(t, []string{r.UsersURI()}, ce.AllowedPrincipalsFor(repository.ReadResource))

	inbox, err := work.EntryByName("inbox")
	require.NoError(t, err)
	archive, err := work.EntryByName("archive")
	require.NoError(t, err)
	assert.Equal(t, repository.GraphList, archive.GraphType())
	assert.Equal(t, []string{r.GuestURI()}, archive.AllowedPrincipalsFor(repository.ReadMetadata))

	l, err := r.List(inbox.URI())
	require.NoError(t, err)
	children, err := l.Children(admin)
	require.NoError(t, err)
	assert.Equal(t, []string{archive.URI()}, children)

	// Alice reaches the context through her group.
	assert.NoError(t, r.Authorize(alice.Session(), ce, repository.WriteResource))
}

func TestApplyIsIdempotent(t *testing.T) {
	r := openRepo(t)
	seed := compileExample(t)

	_, err := Apply(r, r.AdminSession(), seed)
	require.NoError(t, err)
	again, err := Apply(r, r.AdminSession(), seed)
	require.NoError(t, err)
	assert.True(t, again.Empty(), "second run created %+v", again)

	ids, err := r.ContextIDs()
	require.NoError(t, err)
	work, err := r.ContextByName("work")
	require.NoError(t, err)
	entries, err := work.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Contains(t, ids, "w")
}

func TestApplyRefusesInvalidSeed(t *testing.T) {
	r := openRepo(t)
	seed := &Seed{Users: []UserSpec{{Name: "guest"}}}

	_, err := Apply(r, r.AdminSession(), seed)
	var se *SeedError
	require.ErrorAs(t, err, &se)
	require.Len(t, se.Errors, 1)
	assert.Equal(t, ErrReservedName, se.Errors[0].Code)
	assert.Contains(t, err.Error(), "invalid seed")
}

func TestApplyNeedsRights(t *testing.T) {
	r := openRepo(t)
	_, err := Apply(r, r.GuestSession(), &Seed{Users: []UserSpec{{Name: "mallory"}}})
	require.Error(t, err)
	assert.True(t, repository.IsAuthorizationError(err), "got %v", err)
}

func TestApplyRejectsNonListNames(t *testing.T) {
	r := openRepo(t)
	admin := r.AdminSession()
	c, err := r.CreateContext(admin, "", "docs")
	require.NoError(t, err)
	e, err := c.CreateResource(admin, repository.GraphNone, "")
	require.NoError(t, err)
	require.NoError(t, c.SetEntryName(admin, e.URI(), "inbox"))

	_, err = Apply(r, admin, &Seed{Contexts: []ContextSpec{{Name: "docs", Lists: []ListSpec{{Name: "inbox"}}}}})
	assert.ErrorContains(t, err, "inbox")
}
