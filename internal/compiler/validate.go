package compiler

import (
	"fmt"
	"sort"

	"github.com/roach88/mdrepo/internal/config"
	"github.com/roach88/mdrepo/internal/repository"
)

// Validation error codes (E100-E199)
const (
	ErrDuplicateName      = "E100" // user, group or context declared twice
	ErrReservedName       = "E101" // name of a well-known principal
	ErrEmptyName          = "E102" // blank name
	ErrUnknownMember      = "E103" // group member is not a declared user
	ErrUnknownProperty    = "E104" // acl key is not an access property
	ErrUnknownPrincipal   = "E105" // acl names an undeclared principal
	ErrInvalidQuota       = "E106" // quota is not a byte size
	ErrUnknownHome        = "E107" // home is not a declared context
	ErrUnknownParent      = "E108" // list parent is not a list of the context
	ErrListCycle          = "E109" // list parents form a cycle
	ErrDuplicateContextID = "E110" // two contexts pin the same id
)

// wellKnown are the principal names every repository defines.
var wellKnown = map[string]bool{
	"admin":  true,
	"guest":  true,
	"admins": true,
	"users":  true,
}

// ValidationError represents a seed validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled seed for consistency.
// Returns all errors found (does not fail-fast).
func Validate(seed *Seed) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	// Users and groups share one namespace.
	principals := make(map[string]string)
	declare := func(kind, name string) {
		field := kind + "." + name
		switch {
		case name == "":
			add(kind, ErrEmptyName, "name must not be empty")
		case wellKnown[name]:
			add(field, ErrReservedName, "%q is a well-known principal", name)
		case principals[name] != "":
			add(field, ErrDuplicateName, "%q is already declared as a %s", name, principals[name])
		default:
			principals[name] = kind
		}
	}
	for _, u := range seed.Users {
		declare("users", u.Name)
	}
	for _, g := range seed.Groups {
		declare("groups", g.Name)
	}

	contexts := make(map[string]bool)
	ids := make(map[string]string)
	for _, c := range seed.Contexts {
		field := "contexts." + c.Name
		switch {
		case c.Name == "":
			add("contexts", ErrEmptyName, "name must not be empty")
		case contexts[c.Name]:
			add(field, ErrDuplicateName, "context %q is declared twice", c.Name)
		}
		contexts[c.Name] = true
		if c.ID != "" {
			if other, ok := ids[c.ID]; ok {
				add(field+".id", ErrDuplicateContextID, "id %q is already used by %q", c.ID, other)
			}
			ids[c.ID] = c.Name
		}
	}

	for _, u := range seed.Users {
		if u.Home != "" && !contexts[u.Home] {
			add("users."+u.Name+".home", ErrUnknownHome, "unknown context %q", u.Home)
		}
	}
	for _, g := range seed.Groups {
		field := "groups." + g.Name
		if g.Home != "" && !contexts[g.Home] {
			add(field+".home", ErrUnknownHome, "unknown context %q", g.Home)
		}
		for _, m := range g.Members {
			if principals[m] != "users" && m != "admin" && m != "guest" {
				add(field+".members", ErrUnknownMember, "%q is not a declared user", m)
			}
		}
	}

	knownPrincipal := func(name string) bool {
		return wellKnown[name] || principals[name] != ""
	}
	for _, c := range seed.Contexts {
		field := "contexts." + c.Name
		if c.Quota != "" {
			if _, err := config.ParseSize(c.Quota); err != nil {
				add(field+".quota", ErrInvalidQuota, "%q is not a size", c.Quota)
			}
		}
		errs = append(errs, validateACL(field+".acl", c.ACL, knownPrincipal)...)

		lists := make(map[string]bool, len(c.Lists))
		for _, l := range c.Lists {
			lists[l.Name] = true
		}
		for _, l := range c.Lists {
			lf := field + ".lists." + l.Name
			if l.Parent != "" && !lists[l.Parent] {
				add(lf+".parent", ErrUnknownParent, "unknown list %q", l.Parent)
			}
			errs = append(errs, validateACL(lf+".acl", l.ACL, knownPrincipal)...)
		}
	}

	for _, cycle := range FindListCycles(seed) {
		add("contexts."+cycle.Context+".lists", ErrListCycle, "parent cycle %s", cycle)
	}

	return errs
}

func validateACL(field string, acl map[string][]string, known func(string) bool) []ValidationError {
	props := make([]string, 0, len(acl))
	for p := range acl {
		props = append(props, p)
	}
	sort.Strings(props)

	var errs []ValidationError
	for _, p := range props {
		if _, err := repository.ParseAccessProperty(p); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + "." + p,
				Code:    ErrUnknownProperty,
				Message: fmt.Sprintf("unknown access property %q", p),
			})
			continue
		}
		for _, name := range acl[p] {
			if !known(name) {
				errs = append(errs, ValidationError{
					Field:   field + "." + p,
					Code:    ErrUnknownPrincipal,
					Message: fmt.Sprintf("unknown principal %q", name),
				})
			}
		}
	}
	return errs
}
