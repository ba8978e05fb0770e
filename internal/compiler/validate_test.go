package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValidSeed(t *testing.T) {
	seed := &Seed{
		Users:  []UserSpec{{Name: "alice", Home: "work"}},
		Groups: []GroupSpec{{Name: "editors", Members: []string{"alice", "admin"}}},
		Contexts: []ContextSpec{{
			Name:  "work",
			Quota: "unlimited",
			ACL:   map[string][]string{"writeresource": {"editors", "users"}},
			Lists: []ListSpec{{Name: "inbox"}, {Name: "archive", Parent: "inbox"}},
		}},
	}
	assert.Empty(t, Validate(seed))
}

func TestValidateCollectsAllErrors(t *testing.T) {
	tests := []struct {
		name string
		seed *Seed
		want []string
	}{
		{
			name: "duplicate principal across users and groups",
			seed: &Seed{Users: []UserSpec{{Name: "x"}}, Groups: []GroupSpec{{Name: "x"}}},
			want: []string{ErrDuplicateName},
		},
		{
			name: "reserved and empty names",
			seed: &Seed{Users: []UserSpec{{Name: "admin"}, {Name: ""}}},
			want: []string{ErrReservedName, ErrEmptyName},
		},
		{
			name: "duplicate context name and id",
			seed: &Seed{Contexts: []ContextSpec{{Name: "a", ID: "1"}, {Name: "a", ID: "1"}}},
			want: []string{ErrDuplicateName, ErrDuplicateContextID},
		},
		{
			name: "group members must be users",
			seed: &Seed{Groups: []GroupSpec{{Name: "g", Members: []string{"nobody", "users"}}}},
			want: []string{ErrUnknownMember, ErrUnknownMember},
		},
		{
			name: "unknown homes",
			seed: &Seed{
				Users:  []UserSpec{{Name: "u", Home: "nowhere"}},
				Groups: []GroupSpec{{Name: "g", Home: "nowhere"}},
			},
			want: []string{ErrUnknownHome, ErrUnknownHome},
		},
		{
			name: "bad quota",
			seed: &Seed{Contexts: []ContextSpec{{Name: "c", Quota: "lots"}}},
			want: []string{ErrInvalidQuota},
		},
		{
			name: "bad acl",
			seed: &Seed{Contexts: []ContextSpec{{
				Name: "c",
				ACL: map[string][]string{
					"Fly":          {"admin"},
					"ReadMetadata": {"ghost"},
				},
			}}},
			want: []string{ErrUnknownProperty, ErrUnknownPrincipal},
		},
		{
			name: "unknown parent",
			seed: &Seed{Contexts: []ContextSpec{{
				Name:  "c",
				Lists: []ListSpec{{Name: "a", Parent: "b"}},
			}}},
			want: []string{ErrUnknownParent},
		},
		{
			name: "parent cycle",
			seed: &Seed{Contexts: []ContextSpec{{
				Name:  "c",
				Lists: []ListSpec{{Name: "a", Parent: "b"}, {Name: "b", Parent: "a"}},
			}}},
			want: []string{ErrListCycle},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codes(Validate(tt.seed)))
		})
	}
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "users.x", Code: ErrDuplicateName, Message: "dup"}
	assert.Equal(t, "[E100] users.x: dup", err.Error())

	err.Line = 4
	assert.Equal(t, "[E100] line 4: users.x: dup", err.Error())
}
