package compiler

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/mdrepo/internal/config"
	"github.com/roach88/mdrepo/internal/repository"
	"github.com/roach88/mdrepo/internal/vocab"
)

// Applied lists what Apply created. Things that already existed are not
// listed.
type Applied struct {
	Users    []string `json:"users,omitempty"`
	Groups   []string `json:"groups,omitempty"`
	Contexts []string `json:"contexts,omitempty"`
	Lists    []string `json:"lists,omitempty"` // "context/list"
}

// Empty reports whether nothing was created.
func (a *Applied) Empty() bool {
	return len(a.Users)+len(a.Groups)+len(a.Contexts)+len(a.Lists) == 0
}

// SeedError carries the validation errors of a seed that was refused.
type SeedError struct {
	Errors []ValidationError
}

func (e *SeedError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid seed: " + e.Errors[0].Error()
	}
	return fmt.Sprintf("invalid seed: %s (and %d more)", e.Errors[0].Error(), len(e.Errors)-1)
}

// Apply brings r in line with seed, acting as s. Principals, contexts and
// lists are looked up by name and created when missing; quotas, grants,
// memberships and home contexts are then set to what the seed says.
// Applying the same seed twice creates nothing the second time.
func Apply(r *repository.Repository, s repository.Session, seed *Seed) (*Applied, error) {
	if errs := Validate(seed); len(errs) > 0 {
		return nil, &SeedError{Errors: errs}
	}
	a := &seedApplier{r: r, s: s, out: &Applied{}, contexts: make(map[string]*repository.Context)}

	for _, u := range seed.Users {
		if err := a.user(u); err != nil {
			return nil, fmt.Errorf("apply seed: user %s: %w", u.Name, err)
		}
	}
	for _, g := range seed.Groups {
		if err := a.group(g); err != nil {
			return nil, fmt.Errorf("apply seed: group %s: %w", g.Name, err)
		}
	}
	for _, c := range seed.Contexts {
		if err := a.context(c); err != nil {
			return nil, fmt.Errorf("apply seed: context %s: %w", c.Name, err)
		}
	}
	for _, u := range seed.Users {
		if err := a.userHome(u); err != nil {
			return nil, fmt.Errorf("apply seed: user %s: %w", u.Name, err)
		}
	}
	for _, g := range seed.Groups {
		if err := a.groupHome(g); err != nil {
			return nil, fmt.Errorf("apply seed: group %s: %w", g.Name, err)
		}
	}

	slog.Info("seed applied",
		"users", len(a.out.Users),
		"groups", len(a.out.Groups),
		"contexts", len(a.out.Contexts),
		"lists", len(a.out.Lists))
	return a.out, nil
}

type seedApplier struct {
	r        *repository.Repository
	s        repository.Session
	out      *Applied
	contexts map[string]*repository.Context
}

func (a *seedApplier) user(u UserSpec) error {
	_, err := a.r.UserByName(u.Name)
	if err == nil {
		return nil
	}
	if !repository.IsEntryMissingError(err) {
		return err
	}
	if _, err := a.r.CreateUser(a.s, u.Name); err != nil {
		return err
	}
	a.out.Users = append(a.out.Users, u.Name)
	return nil
}

func (a *seedApplier) group(g GroupSpec) error {
	grp, err := a.r.GroupByName(g.Name)
	if repository.IsEntryMissingError(err) {
		grp, err = a.r.CreateGroup(a.s, g.Name)
		if err == nil {
			a.out.Groups = append(a.out.Groups, g.Name)
		}
	}
	if err != nil {
		return err
	}
	for _, m := range g.Members {
		uri, err := a.principal(m)
		if err != nil {
			return err
		}
		member, err := grp.IsMember(uri)
		if err != nil {
			return err
		}
		if member {
			continue
		}
		if err := grp.AddMember(a.s, uri); err != nil {
			return err
		}
	}
	return nil
}

func (a *seedApplier) context(spec ContextSpec) error {
	c, err := a.r.ContextByName(spec.Name)
	if repository.IsEntryMissingError(err) {
		c, err = a.r.CreateContext(a.s, spec.ID, spec.Name)
		if err == nil {
			a.out.Contexts = append(a.out.Contexts, spec.Name)
		}
	}
	if err != nil {
		return err
	}
	a.contexts[spec.Name] = c

	if spec.Quota != "" {
		quota, err := config.ParseSize(spec.Quota)
		if err != nil {
			return err
		}
		if err := c.SetQuota(a.s, quota); err != nil {
			return err
		}
	}

	ce, err := c.Entry()
	if err != nil {
		return err
	}
	if err := a.grant(ce, spec.ACL); err != nil {
		return err
	}

	lists := make(map[string]*repository.Entry, len(spec.Lists))
	for _, l := range creationOrder(spec.Lists) {
		e, err := a.list(c, spec.Name, l, lists)
		if err != nil {
			return fmt.Errorf("list %s: %w", l.Name, err)
		}
		lists[l.Name] = e
		if err := a.grant(e, l.ACL); err != nil {
			return fmt.Errorf("list %s: %w", l.Name, err)
		}
	}
	return nil
}

func (a *seedApplier) list(c *repository.Context, ctxName string, l ListSpec, lists map[string]*repository.Entry) (*repository.Entry, error) {
	e, err := c.EntryByName(l.Name)
	if err == nil {
		if e.GraphType() != repository.GraphList {
			return nil, fmt.Errorf("%s names a %s entry", l.Name, e.GraphType())
		}
		return e, nil
	}
	if !repository.IsEntryMissingError(err) {
		return nil, err
	}

	parent := ""
	if l.Parent != "" {
		parent = lists[l.Parent].URI()
	}
	e, err = c.CreateResource(a.s, repository.GraphList, parent)
	if err != nil {
		return nil, err
	}
	if err := c.SetEntryName(a.s, e.URI(), l.Name); err != nil {
		return nil, err
	}
	a.out.Lists = append(a.out.Lists, ctxName+"/"+l.Name)
	return e, nil
}

// grant sets, per property, exactly the named principals on e.
func (a *seedApplier) grant(e *repository.Entry, acl map[string][]string) error {
	props := make([]string, 0, len(acl))
	for p := range acl {
		props = append(props, p)
	}
	sort.Strings(props)
	for _, name := range props {
		p, err := repository.ParseAccessProperty(name)
		if err != nil {
			return err
		}
		uris := make([]string, 0, len(acl[name]))
		for _, principal := range acl[name] {
			uri, err := a.principal(principal)
			if err != nil {
				return err
			}
			uris = append(uris, uri)
		}
		if err := e.SetAllowedPrincipalsFor(a.s, p, uris); err != nil {
			return err
		}
	}
	return nil
}

func (a *seedApplier) userHome(u UserSpec) error {
	if u.Home == "" {
		return nil
	}
	user, err := a.r.UserByName(u.Name)
	if err != nil {
		return err
	}
	id := a.contexts[u.Home].ID()
	if user.HomeContext() == id {
		return nil
	}
	return user.SetHomeContext(a.s, id)
}

func (a *seedApplier) groupHome(g GroupSpec) error {
	if g.Home == "" {
		return nil
	}
	grp, err := a.r.GroupByName(g.Name)
	if err != nil {
		return err
	}
	id := a.contexts[g.Home].ID()
	if grp.HomeContext() == id {
		return nil
	}
	return grp.SetHomeContext(a.s, id)
}

// principal resolves a user or group name to its principal URI.
func (a *seedApplier) principal(name string) (string, error) {
	principals, err := a.r.Context(vocab.PrincipalsID)
	if err != nil {
		return "", err
	}
	e, err := principals.EntryByName(name)
	if err != nil {
		var missing *repository.EntryMissingError
		if errors.As(err, &missing) {
			return "", fmt.Errorf("unknown principal %q", name)
		}
		return "", err
	}
	return e.ResourceURI(), nil
}
