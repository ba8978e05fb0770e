package ir

import "slices"

// Graph is an ordered collection of statements. Statements in a Graph
// usually carry a zero Graph term; the named graph is supplied when the
// Graph is written to the store.
type Graph []Quad

// Add appends a triple unless an identical statement is already present.
func (g *Graph) Add(s, p, o Term) {
	q := Triple(s, p, o)
	if !g.Contains(q) {
		*g = append(*g, q)
	}
}

// Contains reports whether the graph has a statement equal to q,
// ignoring the graph term.
func (g Graph) Contains(q Quad) bool {
	for _, x := range g {
		if x.Subject == q.Subject && x.Predicate == q.Predicate && x.Object == q.Object {
			return true
		}
	}
	return false
}

// Match returns the statements matching the pattern. Zero terms are
// wildcards.
func (g Graph) Match(s, p, o Term) Graph {
	out := Graph{}
	for _, q := range g {
		if !s.IsZero() && q.Subject != s {
			continue
		}
		if !p.IsZero() && q.Predicate != p {
			continue
		}
		if !o.IsZero() && q.Object != o {
			continue
		}
		out = append(out, q)
	}
	return out
}

// Object returns the object of the first statement matching (s, p).
func (g Graph) Object(s, p Term) (Term, bool) {
	for _, q := range g {
		if q.Subject == s && q.Predicate == p {
			return q.Object, true
		}
	}
	return Term{}, false
}

// Objects returns every object of statements matching (s, p).
func (g Graph) Objects(s, p Term) []Term {
	var out []Term
	for _, q := range g {
		if (s.IsZero() || q.Subject == s) && q.Predicate == p {
			out = append(out, q.Object)
		}
	}
	return out
}

// Without returns the statements that do not match the pattern.
func (g Graph) Without(s, p, o Term) Graph {
	out := Graph{}
	for _, q := range g {
		if (s.IsZero() || q.Subject == s) && (p.IsZero() || q.Predicate == p) && (o.IsZero() || q.Object == o) {
			continue
		}
		out = append(out, q)
	}
	return out
}

// InGraph returns a copy with every statement placed in named graph ng.
func (g Graph) InGraph(ng Term) []Quad {
	out := make([]Quad, len(g))
	for i, q := range g {
		out[i] = q.In(ng)
	}
	return out
}

// Triples strips graph terms, returning a Graph of default-graph statements.
func Triples(qs []Quad) Graph {
	out := make(Graph, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.In(Term{}))
	}
	return out
}

// Replace rewrites every subject and IRI object equal to from into to.
func (g Graph) Replace(from, to Term) Graph {
	return g.ReplaceAll(map[Term]Term{from: to})
}

// ReplaceAll rewrites subjects, predicates and IRI objects found in m.
func (g Graph) ReplaceAll(m map[Term]Term) Graph {
	out := make(Graph, 0, len(g))
	for _, q := range g {
		if n, ok := m[q.Subject]; ok {
			q.Subject = n
		}
		if n, ok := m[q.Predicate]; ok {
			q.Predicate = n
		}
		if q.Object.IsIRI() {
			if n, ok := m[q.Object]; ok {
				q.Object = n
			}
		}
		out = append(out, q)
	}
	return out
}

// Sorted returns a sorted copy of the graph.
func (g Graph) Sorted() Graph {
	out := slices.Clone(g)
	SortQuads(out)
	return out
}

// Equal reports whether two graphs contain the same statements regardless
// of order.
func (g Graph) Equal(o Graph) bool {
	if len(g) != len(o) {
		return false
	}
	a, b := g.Sorted(), o.Sorted()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
