package queryir

import (
	"strings"

	"github.com/roach88/mdrepo/internal/ir"
)

// Query describes a set of statements.
//
// This is a sealed interface. Query types:
//   - Pattern: quad pattern with wildcards
//   - Select: Pattern plus an optional filter and a row limit
type Query interface {
	queryNode()
}

// Predicate is an additional filter over the statements matched by a
// Select's pattern.
//
// This is a sealed interface. Predicate types:
//   - HasPrefix: the value of a position starts with a string
//   - Equals: a position equals a term
//   - And: all predicates must be true
type Predicate interface {
	predicateNode()
}

// Position names one of the four positions of a quad.
type Position uint8

const (
	SubjectPos Position = iota
	PredicatePos
	ObjectPos
	GraphPos
)

func (p Position) String() string {
	switch p {
	case SubjectPos:
		return "subject"
	case PredicatePos:
		return "predicate"
	case ObjectPos:
		return "object"
	case GraphPos:
		return "graph"
	default:
		return "unknown"
	}
}

// Pattern matches statements position by position. Zero terms are
// wildcards.
type Pattern struct {
	Subject   ir.Term
	Predicate ir.Term
	Object    ir.Term
	Graph     ir.Term
}

func (Pattern) queryNode() {}

// In returns a copy of p restricted to named graph g.
func (p Pattern) In(g ir.Term) Pattern {
	p.Graph = g
	return p
}

// Graph is shorthand for the pattern matching a whole named graph.
func Graph(g ir.Term) Pattern {
	return Pattern{Graph: g}
}

// S is shorthand for the pattern (s, p, o) in graph g.
func S(s, p, o, g ir.Term) Pattern {
	return Pattern{Subject: s, Predicate: p, Object: o, Graph: g}
}

// Select narrows a pattern with a filter and a limit.
//
// Semantics:
//
//	statements matching Pattern WHERE Filter ORDER BY canonical LIMIT Limit
//
// Limit <= 0 means no limit.
type Select struct {
	Pattern Pattern
	Filter  Predicate
	Limit   int
}

func (Select) queryNode() {}

// HasPrefix holds when the lexical value at Position starts with Prefix.
// Used to scan URI ranges such as every entry graph of one context.
type HasPrefix struct {
	Position Position
	Prefix   string
}

func (HasPrefix) predicateNode() {}

// Equals holds when the term at Position equals Term.
type Equals struct {
	Position Position
	Term     ir.Term
}

func (Equals) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Match reports whether q matches quad. It is the reference evaluator used by
// the in-memory store and by tests of other backends.
func Match(q Query, quad ir.Quad) bool {
	switch query := q.(type) {
	case Pattern:
		return matchPattern(query, quad)
	case *Pattern:
		return matchPattern(*query, quad)
	case Select:
		return matchPattern(query.Pattern, quad) && matchPredicate(query.Filter, quad)
	case *Select:
		return matchPattern(query.Pattern, quad) && matchPredicate(query.Filter, quad)
	default:
		return false
	}
}

// Limit returns the row limit of q, or 0 for none.
func Limit(q Query) int {
	switch query := q.(type) {
	case Select:
		return query.Limit
	case *Select:
		return query.Limit
	default:
		return 0
	}
}

func matchPattern(p Pattern, q ir.Quad) bool {
	return matchTerm(p.Subject, q.Subject) &&
		matchTerm(p.Predicate, q.Predicate) &&
		matchTerm(p.Object, q.Object) &&
		matchTerm(p.Graph, q.Graph)
}

func matchTerm(want, got ir.Term) bool {
	return want.IsZero() || want == got
}

func matchPredicate(p Predicate, q ir.Quad) bool {
	switch pred := p.(type) {
	case nil:
		return true
	case HasPrefix:
		return strings.HasPrefix(termAt(q, pred.Position).Value, pred.Prefix)
	case *HasPrefix:
		return strings.HasPrefix(termAt(q, pred.Position).Value, pred.Prefix)
	case Equals:
		return termAt(q, pred.Position) == pred.Term
	case *Equals:
		return termAt(q, pred.Position) == pred.Term
	case And:
		return matchAll(pred.Predicates, q)
	case *And:
		return matchAll(pred.Predicates, q)
	default:
		return false
	}
}

func matchAll(ps []Predicate, q ir.Quad) bool {
	for _, p := range ps {
		if !matchPredicate(p, q) {
			return false
		}
	}
	return true
}

func termAt(q ir.Quad, pos Position) ir.Term {
	switch pos {
	case SubjectPos:
		return q.Subject
	case PredicatePos:
		return q.Predicate
	case ObjectPos:
		return q.Object
	default:
		return q.Graph
	}
}
