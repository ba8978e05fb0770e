package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTermString(t *testing.T) {
	tests := []struct {
		name     string
		term     Term
		expected string
	}{
		{"iri", IRI("http://x/a"), "<http://x/a>"},
		{"plain literal", Literal("hi"), `"hi"`},
		{"xsd string is plain", TypedLiteral("hi", XSDString), `"hi"`},
		{"typed", Long(3), `"3"^^<http://www.w3.org/2001/XMLSchema#long>`},
		{"lang", LangLiteral("hej", "sv"), `"hej"@sv`},
		{"blank", Blank("b0"), "_:b0"},
		{"escaped", Literal(`say "x"\`), `"say \"x\"\\"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.term.String())
		})
	}
}

func TestDateTimeRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 30, 0, 123_000_000, time.FixedZone("CET", 3600))

	term := DateTime(now)
	assert.Equal(t, XSDDateTime, term.Datatype)
	assert.Equal(t, "2024-03-01T09:30:00.123Z", term.Value)

	parsed, err := term.Time()
	require.NoError(t, err)
	assert.True(t, parsed.Equal(now))
}

func TestTermInt(t *testing.T) {
	n, err := Long(42).Int()
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	_, err = IRI("http://x").Int()
	assert.Error(t, err)

	_, err = Literal("abc").Int()
	assert.Error(t, err)
}

func TestParseTermKind(t *testing.T) {
	for _, k := range []TermKind{KindIRI, KindLiteral, KindBlank, KindNone} {
		parsed, err := ParseTermKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseTermKind("quoted")
	assert.Error(t, err)
}

func TestGraphHelpers(t *testing.T) {
	a, b := IRI("http://x/a"), IRI("http://x/b")
	p, q := IRI("http://x/p"), IRI("http://x/q")

	var g Graph
	g.Add(a, p, b)
	g.Add(a, p, b)
	g.Add(a, q, Literal("v"))
	require.Len(t, g, 2, "Add must not duplicate")

	obj, ok := g.Object(a, q)
	require.True(t, ok)
	assert.Equal(t, Literal("v"), obj)

	assert.Len(t, g.Match(Term{}, p, Term{}), 1)
	assert.Len(t, g.Without(a, q, Term{}), 1)

	renamed := g.Replace(b, IRI("http://x/c"))
	assert.True(t, renamed.Contains(Triple(a, p, IRI("http://x/c"))))
	assert.False(t, renamed.Contains(Triple(a, p, b)))

	assert.True(t, g.Equal(Graph{g[1], g[0]}))
}

func TestReplaceAllLeavesLiterals(t *testing.T) {
	a := IRI("http://x/a")
	g := Graph{Triple(a, IRI("http://x/p"), Literal("http://x/a"))}

	out := g.ReplaceAll(map[Term]Term{a: IRI("http://x/z"), Literal("http://x/a"): Literal("no")})
	assert.Equal(t, IRI("http://x/z"), out[0].Subject)
	assert.Equal(t, Literal("http://x/a"), out[0].Object, "literal objects are never rewritten")
}
