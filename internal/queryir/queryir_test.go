package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mdrepo/internal/ir"
)

var (
	g1 = ir.IRI("http://x/ctx/1/entry/1")
	s1 = ir.IRI("http://x/ctx/1/resource/1")
	p1 = ir.IRI("http://x/p")
)

func TestMatchPatternWildcards(t *testing.T) {
	q := ir.NewQuad(s1, p1, ir.Literal("v"), g1)

	tests := []struct {
		name  string
		query Query
		want  bool
	}{
		{"empty pattern", Pattern{}, true},
		{"graph only", Graph(g1), true},
		{"other graph", Graph(ir.IRI("http://x/other")), false},
		{"full match", S(s1, p1, ir.Literal("v"), g1), true},
		{"literal differs by datatype", S(s1, p1, ir.Long(1), g1), false},
		{"pointer pattern", &Pattern{Predicate: p1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.query, q))
		})
	}
}

func TestMatchSelectFilters(t *testing.T) {
	q := ir.NewQuad(s1, p1, ir.Literal("v"), g1)

	prefix := Select{Filter: HasPrefix{Position: GraphPos, Prefix: "http://x/ctx/1/"}}
	assert.True(t, Match(prefix, q))

	other := Select{Filter: HasPrefix{Position: GraphPos, Prefix: "http://x/ctx/2/"}}
	assert.False(t, Match(other, q))

	both := Select{
		Pattern: Pattern{Predicate: p1},
		Filter: And{Predicates: []Predicate{
			HasPrefix{Position: SubjectPos, Prefix: "http://x/ctx/1/resource/"},
			Equals{Position: ObjectPos, Term: ir.Literal("v")},
		}},
	}
	assert.True(t, Match(both, q))

	// empty And is vacuously true
	assert.True(t, Match(Select{Filter: And{}}, q))
}

func TestLimit(t *testing.T) {
	assert.Equal(t, 0, Limit(Pattern{}))
	assert.Equal(t, 1, Limit(Select{Limit: 1}))
	assert.Equal(t, 3, Limit(&Select{Limit: 3}))
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	require.NoError(t, Validate(Pattern{}))
	require.NoError(t, Validate(S(s1, p1, ir.Literal("x"), g1)))
	require.NoError(t, Validate(Select{
		Pattern: Graph(g1),
		Filter:  HasPrefix{Position: SubjectPos, Prefix: "http://"},
		Limit:   10,
	}))
}

func TestValidateReportsAllProblems(t *testing.T) {
	err := Validate(Select{
		Pattern: Pattern{
			Subject:   ir.Literal("nope"),
			Predicate: ir.Literal("nope"),
			Graph:     ir.Blank("b"),
		},
		Limit:  -1,
		Filter: Equals{Position: ObjectPos},
	})
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "subject must not be a literal")
	assert.Contains(t, msg, "predicate must be an IRI")
	assert.Contains(t, msg, "graph must be an IRI")
	assert.Contains(t, msg, "negative limit")
	assert.Contains(t, msg, "zero term")
}

func TestValidateNil(t *testing.T) {
	assert.Error(t, Validate(nil))
}
