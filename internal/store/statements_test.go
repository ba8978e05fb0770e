package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/queryir"
)

func TestStatementsAddAndQuery(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			g := iri("g")
			mustAdd(t, s,
				ir.NewQuad(iri("b"), iri("p"), ir.Literal("2"), g),
				ir.NewQuad(iri("a"), iri("p"), ir.LangLiteral("hej", "sv"), g),
				ir.NewQuad(iri("a"), iri("q"), iri("b"), g),
				ir.Triple(iri("a"), iri("p"), ir.Long(9)),
			)

			got, err := s.Query(ctx, queryir.Graph(g))
			require.NoError(t, err)
			require.Len(t, got, 3)

			// canonical order: subject a before b, predicate p before q
			assert.Equal(t, iri("a"), got[0].Subject)
			assert.Equal(t, ir.LangLiteral("hej", "sv"), got[0].Object)
			assert.Equal(t, iri("q"), got[1].Predicate)
			assert.Equal(t, iri("b"), got[2].Subject)

			// default graph statement round-trips with a zero graph term
			def, err := s.Query(ctx, queryir.Pattern{Object: ir.Long(9)})
			require.NoError(t, err)
			require.Len(t, def, 1)
			assert.True(t, def[0].Graph.IsZero())
		})
	}
}

func TestStatementsQueryEmptyNotNil(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			got, err := s.Query(context.Background(), queryir.Graph(iri("missing")))
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestStatementsAddIsIdempotent(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			q := ir.NewQuad(iri("a"), iri("p"), ir.Literal("x"), iri("g"))
			mustAdd(t, s, q, q)
			mustAdd(t, s, q)

			got, err := s.Query(context.Background(), queryir.Pattern{})
			require.NoError(t, err)
			assert.Len(t, got, 1)
		})
	}
}

// Literals with equal lexical value but different datatype or language are
// distinct statements.
func TestStatementsLiteralIdentity(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			g := iri("g")
			mustAdd(t, s,
				ir.NewQuad(iri("a"), iri("p"), ir.Literal("1"), g),
				ir.NewQuad(iri("a"), iri("p"), ir.Long(1), g),
				ir.NewQuad(iri("a"), iri("p"), ir.LangLiteral("1", "en"), g),
			)

			got, err := s.Query(ctx, queryir.Pattern{Object: ir.Long(1)})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, ir.XSDLong, got[0].Object.Datatype)
		})
	}
}

func TestStatementsRemoveByPattern(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			g1, g2 := iri("g1"), iri("g2")
			mustAdd(t, s,
				ir.NewQuad(iri("a"), iri("p"), ir.Literal("1"), g1),
				ir.NewQuad(iri("a"), iri("q"), ir.Literal("2"), g1),
				ir.NewQuad(iri("a"), iri("p"), ir.Literal("3"), g2),
			)

			tx, err := s.Begin(ctx)
			require.NoError(t, err)
			defer tx.Rollback()

			n, err := tx.Remove(ctx, queryir.Pattern{Predicate: iri("p")})
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)
			require.NoError(t, tx.Commit())

			rest, err := s.Query(ctx, queryir.Pattern{})
			require.NoError(t, err)
			require.Len(t, rest, 1)
			assert.Equal(t, iri("q"), rest[0].Predicate)
		})
	}
}

// Reads through the transaction see its writes; reads through the store do
// not until commit.
func TestStatementsTxIsolation(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			q := ir.NewQuad(iri("a"), iri("p"), ir.Literal("x"), iri("g"))

			tx, err := s.Begin(ctx)
			require.NoError(t, err)
			defer tx.Rollback()
			require.NoError(t, tx.Add(ctx, q))

			inTx, err := tx.Has(ctx, queryir.Graph(iri("g")))
			require.NoError(t, err)
			assert.True(t, inTx)

			outside, err := s.Has(ctx, queryir.Graph(iri("g")))
			require.NoError(t, err)
			assert.False(t, outside)

			require.NoError(t, tx.Commit())

			after, err := s.Has(ctx, queryir.Graph(iri("g")))
			require.NoError(t, err)
			assert.True(t, after)
		})
	}
}

func TestStatementsRollbackDiscards(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			tx, err := s.Begin(ctx)
			require.NoError(t, err)
			require.NoError(t, tx.Add(ctx, ir.Triple(iri("a"), iri("p"), ir.Literal("x"))))
			require.NoError(t, tx.Rollback())
			// second rollback is harmless
			require.NoError(t, tx.Rollback())

			got, err := s.Query(ctx, queryir.Pattern{})
			require.NoError(t, err)
			assert.Empty(t, got)

			// the store accepts a new transaction afterwards
			mustAdd(t, s, ir.Triple(iri("b"), iri("p"), ir.Literal("y")))
		})
	}
}

func TestStatementsSelectPrefixAndLimit(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			mustAdd(t, s,
				ir.NewQuad(iri("r1"), iri("p"), ir.Literal("1"), ir.IRI("http://example.org/1/entry/1")),
				ir.NewQuad(iri("r2"), iri("p"), ir.Literal("2"), ir.IRI("http://example.org/1/entry/2")),
				ir.NewQuad(iri("r3"), iri("p"), ir.Literal("3"), ir.IRI("http://example.org/2/entry/1")),
			)

			q := queryir.Select{
				Pattern: queryir.Pattern{Predicate: iri("p")},
				Filter:  queryir.HasPrefix{Position: queryir.GraphPos, Prefix: "http://example.org/1/entry/"},
			}
			got, err := s.Query(ctx, q)
			require.NoError(t, err)
			assert.Len(t, got, 2)

			q.Limit = 1
			got, err = s.Query(ctx, q)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, iri("r1"), got[0].Subject)
		})
	}
}

func TestStatementsSelectNonASCIIPrefix(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			mustAdd(t, s,
				ir.NewQuad(iri("r1"), iri("p"), ir.Literal("1"), ir.IRI("http://example.org/café/entry/1")),
				ir.NewQuad(iri("r2"), iri("p"), ir.Literal("2"), ir.IRI("http://example.org/cafe/entry/1")),
				ir.NewQuad(iri("r3"), iri("p"), ir.Literal("3"), ir.IRI("http://example.org/日本/entry/1")),
			)

			got, err := s.Query(ctx, queryir.Select{
				Filter: queryir.HasPrefix{Position: queryir.GraphPos, Prefix: "http://example.org/café/"},
			})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, iri("r1"), got[0].Subject)

			got, err = s.Query(ctx, queryir.Select{
				Filter: queryir.HasPrefix{Position: queryir.GraphPos, Prefix: "http://example.org/日本/"},
			})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, iri("r3"), got[0].Subject)
		})
	}
}

func TestStatementsRejectInvalid(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			tx, err := s.Begin(ctx)
			require.NoError(t, err)
			defer tx.Rollback()

			err = tx.Add(ctx, ir.Triple(ir.Literal("s"), iri("p"), ir.Literal("o")))
			assert.Error(t, err)

			_, err = tx.Query(ctx, queryir.Pattern{Predicate: ir.Literal("p")})
			assert.Error(t, err)
		})
	}
}
