package repository

import (
	"context"
	"slices"

	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/vocab"
)

// Group is a list of user entries. Membership is one level deep.
type Group struct {
	*List
}

// Group resolves a group by principal, resource or entry URI.
func (r *Repository) Group(uri string) (*Group, error) {
	if id, ok := r.principalID(uri); ok {
		uri = r.layout.Entry(vocab.PrincipalsID, id).Value
	}
	l, err := r.List(uri)
	if err != nil {
		return nil, err
	}
	if l.entry.GraphType() != GraphGroup {
		return nil, integrityViolation(l.entry.URI(), "not a group")
	}
	return &Group{l}, nil
}

// principalEntry maps a principal or principal-entry URI to the entry URI.
func (r *Repository) principalEntry(uri string) (string, bool) {
	id, ok := r.principalID(uri)
	if !ok {
		return "", false
	}
	return r.layout.Entry(vocab.PrincipalsID, id).Value, true
}

// Members returns the user entry URIs of the group. Requires ReadResource.
func (g *Group) Members(s Session) ([]string, error) {
	return g.Children(s)
}

// IsMember reports whether the user, given by principal or entry URI,
// belongs to the group.
func (g *Group) IsMember(user string) (bool, error) {
	u, ok := g.repo.principalEntry(user)
	if !ok {
		return false, nil
	}
	cur, err := g.children(context.Background(), g.repo.store)
	if err != nil {
		return false, storeError("read members", err)
	}
	return slices.Contains(cur, u), nil
}

func (g *Group) user(uri string) (*Entry, error) {
	u, ok := g.repo.principalEntry(uri)
	if !ok {
		return nil, newEntryMissingError(uri)
	}
	e, err := g.repo.Entry(u)
	if err != nil {
		return nil, err
	}
	if e.GraphType() != GraphUser {
		return nil, integrityViolation(u, "group members must be users")
	}
	return e, nil
}

// AddMember adds a user. Requires WriteResource on the group.
func (g *Group) AddMember(s Session, user string) error {
	e, err := g.user(user)
	if err != nil {
		return err
	}
	return g.AddChild(s, e.URI(), SkipParentCheck())
}

// RemoveMember removes a user. Requires WriteResource on the group.
func (g *Group) RemoveMember(s Session, user string) error {
	e, err := g.user(user)
	if err != nil {
		return err
	}
	return g.RemoveChild(s, e.URI())
}

// HomeContext returns the id of the context new material of the group
// goes to, or empty.
func (g *Group) HomeContext() string {
	return g.entry.homeContext()
}

// SetHomeContext stores the home context. Requires WriteResource.
func (g *Group) SetHomeContext(s Session, ctxID string) error {
	return g.entry.setHomeContext(s, ctxID)
}

func (e *Entry) homeContext() string {
	t, ok := e.object(e.resourceTerm(), vocab.HomeContext)
	if !ok {
		return ""
	}
	ctxID, path, _, ok := e.repo.layout.Split(t.Value)
	if !ok || path != "" {
		return ""
	}
	return ctxID
}

func (e *Entry) setHomeContext(s Session, ctxID string) error {
	r := e.repo
	if ctxID != "" {
		if _, err := r.Context(ctxID); err != nil {
			return err
		}
	}
	m := r.lock()
	defer m.unlock()
	if err := r.Authorize(s, e, WriteResource); err != nil {
		return err
	}
	res := e.resourceTerm()
	g := e.Graph().Without(res, vocab.HomeContext, ir.Term{})
	if ctxID != "" {
		g.Add(res, vocab.HomeContext, r.layout.Context(ctxID))
	}
	return e.commitGraph(m, s, "set home context", g)
}
