package repository

import (
	"context"

	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/queryir"
	"github.com/roach88/mdrepo/internal/vocab"
)

// Authorize decides whether the session may exercise p on e.
//
// Resolution order, first match wins:
//  1. checking disabled, escalated session, the admin user, or a principal
//     reading the entry that represents it
//  2. membership in the admins group
//  3. Administer on the owning context
//  4. with an entry ACL: a grant of p or Administer to the principal,
//     guest, the users group or one of the principal's groups, or a
//     grant of the write property implying a read p
//  5. without an entry ACL: the context ACL, where reads need ReadResource
//     or WriteResource and writes need WriteResource
//
// Groups are expanded one level: a group inside a group grants nothing to
// the members of the inner group.
func (r *Repository) Authorize(s Session, e *Entry, p AccessProperty) error {
	err := r.authorize(s, e, p)
	if IsAuthorizationError(err) {
		r.metrics.Denied(p.String())
	}
	return err
}

func (r *Repository) authorize(s Session, e *Entry, p AccessProperty) error {
	principal := s.Principal()
	if principal == "" {
		principal = r.GuestURI()
	}
	if !r.authorization || s.Escalated() || principal == r.AdminURI() {
		return nil
	}
	if p.IsRead() && principal == e.ResourceURI() {
		return nil
	}

	groups, err := r.Groups(s.Escalate(), principal)
	if err != nil {
		return err
	}
	who := map[string]bool{principal: true, r.GuestURI(): true}
	if principal != r.GuestURI() {
		who[r.UsersURI()] = true
	}
	for _, g := range groups {
		if g == r.AdminsURI() {
			return nil
		}
		who[g] = true
	}

	owner, err := r.contextEntry(e.ContextID())
	if err != nil && !IsEntryMissingError(err) {
		return err
	}
	if owner != nil && owner.grants(who, Administer) {
		return nil
	}

	if e.HasACL() {
		if e.grants(who, p) || e.grants(who, Administer) {
			return nil
		}
		if w, ok := p.implied(); ok && e.grants(who, w) {
			return nil
		}
	} else if owner != nil {
		if p.IsRead() {
			if owner.grants(who, ReadResource) || owner.grants(who, WriteResource) {
				return nil
			}
		} else if owner.grants(who, WriteResource) {
			return nil
		}
	}
	return newAuthorizationError(principal, e.URI(), p)
}

// Rights returns every property the session holds on e.
func (r *Repository) Rights(s Session, e *Entry) ([]AccessProperty, error) {
	var out []AccessProperty
	for _, p := range AccessProperties {
		err := r.authorize(s, e, p)
		switch {
		case err == nil:
			out = append(out, p)
		case !IsAuthorizationError(err):
			return nil, err
		}
	}
	return out, nil
}

// isOwner reports whether the session administers context ctxID.
func (r *Repository) isOwner(s Session, ctxID string) (bool, error) {
	owner, err := r.contextEntry(ctxID)
	if IsEntryMissingError(err) {
		return s.Escalated() || !r.authorization, nil
	}
	if err != nil {
		return false, err
	}
	err = r.authorize(s, owner, Administer)
	if IsAuthorizationError(err) {
		return false, nil
	}
	return err == nil, err
}

func (e *Entry) grants(who map[string]bool, p AccessProperty) bool {
	for principal := range e.allowed(p) {
		if who[principal] {
			return true
		}
	}
	return false
}

func (r *Repository) contextEntry(ctxID string) (*Entry, error) {
	return r.loadEntry(vocab.ContextsID, ctxID)
}

// Groups returns the principal URIs of the groups that directly contain
// the user. The user may be given by principal or entry URI. Reading
// requires ReadMetadata on the user entry.
func (r *Repository) Groups(s Session, user string) ([]string, error) {
	id, ok := r.principalID(user)
	if !ok {
		return []string{}, nil
	}
	u, err := r.loadEntry(vocab.PrincipalsID, id)
	if IsEntryMissingError(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.authorize(s, u, ReadMetadata); err != nil {
		return nil, err
	}
	qs, err := r.store.Query(context.Background(),
		queryir.S(ir.Term{}, vocab.HasGroupMember, u.uri, ir.IRI(u.RelationsURI())))
	if err != nil {
		return nil, storeError("read group membership", err)
	}
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.Subject.Value)
	}
	return out, nil
}

// principalID maps a principal or principal-entry URI to its entry id.
func (r *Repository) principalID(uri string) (string, bool) {
	ctxID, path, id, ok := r.layout.Split(uri)
	if !ok || ctxID != vocab.PrincipalsID {
		return "", false
	}
	if path != vocab.ResourcePath && path != vocab.EntryPath {
		return "", false
	}
	return id, true
}

// copyACL returns g extended with the ACL of list. When the new entry is
// not a Local list and the creator lacks Administer on list, the creator
// is added as administrator. A list without an ACL copies nothing.
func (r *Repository) copyACL(s Session, list *Entry, g ir.Graph, ctxID, id string, et EntryType, gt GraphType) ir.Graph {
	if !list.HasACL() {
		return g
	}
	for _, p := range AccessProperties {
		principals := list.AllowedPrincipalsFor(p)
		if p == Administer && (gt != GraphList || et != Local) {
			if err := r.authorize(s, list, Administer); err != nil && s.Principal() != "" {
				principals = append(principals, s.Principal())
			}
		}
		g = withACL(g, r.layout, ctxID, id, p, principals)
	}
	return g
}
