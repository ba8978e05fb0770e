// Package compiler turns CUE seed files into a Seed: the users, groups,
// contexts, lists and grants a repository should start with. Apply brings
// a repository in line with a Seed.
package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// Seed is the compiled form of a seed file.
type Seed struct {
	Users    []UserSpec    `json:"users,omitempty"`
	Groups   []GroupSpec   `json:"groups,omitempty"`
	Contexts []ContextSpec `json:"contexts,omitempty"`
}

// UserSpec declares a user by login name.
type UserSpec struct {
	Name string `json:"name"`
	// Home names a context of the seed.
	Home string `json:"home,omitempty"`
}

// GroupSpec declares a group and its members, by user name.
type GroupSpec struct {
	Name    string   `json:"name"`
	Members []string `json:"members,omitempty"`
	Home    string   `json:"home,omitempty"`
}

// ContextSpec declares a context by name.
type ContextSpec struct {
	Name string `json:"name"`
	// ID pins the context identifier; empty mints one.
	ID string `json:"id,omitempty"`
	// Quota is a byte size such as "10M" or "unlimited"; empty keeps the
	// repository default.
	Quota string `json:"quota,omitempty"`
	// ACL maps access property names to principal names.
	ACL   map[string][]string `json:"acl,omitempty"`
	Lists []ListSpec          `json:"lists,omitempty"`
}

// ListSpec declares a list inside a context.
type ListSpec struct {
	Name string `json:"name"`
	// Parent names another list of the same context.
	Parent string              `json:"parent,omitempty"`
	ACL    map[string][]string `json:"acl,omitempty"`
}

// CompileSeed parses a CUE value holding users, groups and contexts.
//
//	users: alice: home: "work"
//	groups: editors: members: ["alice"]
//	contexts: work: {
//		quota: "10M"
//		acl: WriteResource: ["editors"]
//		lists: inbox: {}
//	}
func CompileSeed(v cue.Value) (*Seed, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	seed := &Seed{}

	err := eachField(v, "users", func(name string, uv cue.Value) error {
		home, err := optionalString(uv, "home")
		if err != nil {
			return err
		}
		seed.Users = append(seed.Users, UserSpec{Name: name, Home: home})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachField(v, "groups", func(name string, gv cue.Value) error {
		members, err := stringList(gv, "members")
		if err != nil {
			return err
		}
		home, err := optionalString(gv, "home")
		if err != nil {
			return err
		}
		seed.Groups = append(seed.Groups, GroupSpec{Name: name, Members: members, Home: home})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachField(v, "contexts", func(name string, cv cue.Value) error {
		ctx, err := compileContext(name, cv)
		if err != nil {
			return err
		}
		seed.Contexts = append(seed.Contexts, ctx)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return seed, nil
}

func compileContext(name string, v cue.Value) (ContextSpec, error) {
	ctx := ContextSpec{Name: name}
	var err error
	if ctx.ID, err = optionalString(v, "id"); err != nil {
		return ctx, err
	}
	if ctx.Quota, err = optionalString(v, "quota"); err != nil {
		return ctx, err
	}
	if ctx.ACL, err = compileACL(v); err != nil {
		return ctx, err
	}
	err = eachField(v, "lists", func(list string, lv cue.Value) error {
		parent, err := optionalString(lv, "parent")
		if err != nil {
			return err
		}
		acl, err := compileACL(lv)
		if err != nil {
			return err
		}
		ctx.Lists = append(ctx.Lists, ListSpec{Name: list, Parent: parent, ACL: acl})
		return nil
	})
	return ctx, err
}

// compileACL reads the optional acl struct: property name to principal
// names.
func compileACL(v cue.Value) (map[string][]string, error) {
	aclVal := v.LookupPath(cue.ParsePath("acl"))
	if !aclVal.Exists() {
		return nil, nil
	}
	acl := make(map[string][]string)
	err := eachField(v, "acl", func(prop string, pv cue.Value) error {
		names, err := stringsOf(pv)
		if err != nil {
			return err
		}
		acl[prop] = names
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acl, nil
}

// eachField calls fn for every field of the struct at path, in source
// order. A missing struct is not an error.
func eachField(v cue.Value, path string, fn func(label string, v cue.Value) error) error {
	sv := v.LookupPath(cue.ParsePath(path))
	if !sv.Exists() {
		return nil
	}
	iter, err := sv.Fields()
	if err != nil {
		return &CompileError{Field: path, Message: "must be a struct", Pos: sv.Pos()}
	}
	for iter.Next() {
		if err := fn(iter.Label(), iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

func optionalString(v cue.Value, path string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(path))
	if !sv.Exists() {
		return "", nil
	}
	s, err := sv.String()
	if err != nil {
		return "", &CompileError{Field: path, Message: "must be a string", Pos: sv.Pos()}
	}
	return s, nil
}

func stringList(v cue.Value, path string) ([]string, error) {
	lv := v.LookupPath(cue.ParsePath(path))
	if !lv.Exists() {
		return nil, nil
	}
	return stringsOf(lv)
}

func stringsOf(lv cue.Value) ([]string, error) {
	iter, err := lv.List()
	if err != nil {
		return nil, &CompileError{Field: "list", Message: "must be a list of strings", Pos: lv.Pos()}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: "list", Message: "must be a list of strings", Pos: iter.Value().Pos()}
		}
		out = append(out, s)
	}
	return out, nil
}

// LoadSeed compiles every .cue file of dir as one CUE instance. A path to
// a single file compiles that file alone.
func LoadSeed(path string) (*Seed, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load seed: %w", err)
	}
	ctx := cuecontext.New()
	if !info.IsDir() {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load seed: %w", err)
		}
		v := ctx.CompileBytes(src, cue.Filename(path))
		return CompileSeed(v)
	}

	files, err := filepath.Glob(filepath.Join(path, "*.cue"))
	if err != nil {
		return nil, fmt.Errorf("load seed: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("load seed: no .cue files in %s", path)
	}
	instances := load.Instances([]string{"."}, &load.Config{Dir: path})
	if len(instances) == 0 {
		return nil, fmt.Errorf("load seed: no CUE instance in %s", path)
	}
	if err := instances[0].Err; err != nil {
		return nil, formatCUEError(err)
	}
	return CompileSeed(ctx.BuildInstance(instances[0]))
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
