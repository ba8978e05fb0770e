package repository

import (
	"github.com/roach88/mdrepo/internal/vocab"
)

// User is the resource of a user entry. Its URI is the principal URI.
type User struct {
	repo  *Repository
	entry *Entry
}

func (u *User) Entry() *Entry { return u.entry }

// URI returns the principal URI.
func (u *User) URI() string { return u.entry.ResourceURI() }

// Name returns the login name.
func (u *User) Name() (string, error) {
	return u.repo.context(vocab.PrincipalsID).EntryName(u.entry.URI())
}

// Groups returns the groups the user belongs to directly.
func (u *User) Groups(s Session) ([]string, error) {
	return u.repo.Groups(s, u.URI())
}

func (u *User) HomeContext() string { return u.entry.homeContext() }

// SetHomeContext stores the home context. Requires WriteResource.
func (u *User) SetHomeContext(s Session, ctxID string) error {
	return u.entry.setHomeContext(s, ctxID)
}

// Session returns a session acting as this user.
func (u *User) Session() Session { return NewSession(u.URI()) }

// User resolves a user by principal, resource or entry URI.
func (r *Repository) User(uri string) (*User, error) {
	id, ok := r.principalID(uri)
	if !ok {
		return nil, newEntryMissingError(uri)
	}
	e, err := r.loadEntry(vocab.PrincipalsID, id)
	if err != nil {
		return nil, err
	}
	if e.GraphType() != GraphUser {
		return nil, integrityViolation(e.URI(), "not a user")
	}
	return &User{repo: r, entry: e}, nil
}

// CreateUser creates a user with a unique login name. Requires
// WriteResource on the principals context.
func (r *Repository) CreateUser(s Session, name string) (*User, error) {
	e, err := r.createPrincipal(s, name, GraphUser)
	if err != nil {
		return nil, err
	}
	return &User{repo: r, entry: e}, nil
}

// CreateGroup creates a group with a unique name. Its creator may
// administer it.
func (r *Repository) CreateGroup(s Session, name string) (*Group, error) {
	e, err := r.createPrincipal(s, name, GraphGroup)
	if err != nil {
		return nil, err
	}
	return &Group{r.listOf(e)}, nil
}

func (r *Repository) createPrincipal(s Session, name string, gt GraphType) (*Entry, error) {
	c := r.context(vocab.PrincipalsID)
	if name == "" {
		return nil, integrityViolation(c.URI(), "%s needs a name", gt)
	}
	m := r.lock()
	defer m.unlock()
	return c.create(m, s, NewEntry{EntryType: Local, GraphType: gt, Name: name})
}

// UserByName resolves a login name.
func (r *Repository) UserByName(name string) (*User, error) {
	e, err := r.context(vocab.PrincipalsID).EntryByName(name)
	if err != nil {
		return nil, err
	}
	return r.User(e.URI())
}

// GroupByName resolves a group name.
func (r *Repository) GroupByName(name string) (*Group, error) {
	e, err := r.context(vocab.PrincipalsID).EntryByName(name)
	if err != nil {
		return nil, err
	}
	return r.Group(e.URI())
}

// SessionFor returns a session acting as the named user.
func (r *Repository) SessionFor(name string) (Session, error) {
	u, err := r.UserByName(name)
	if err != nil {
		return Session{}, err
	}
	return u.Session(), nil
}
