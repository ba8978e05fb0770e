package ir

import "slices"

// Quad is a single statement. A zero Graph means the default graph.
type Quad struct {
	Subject   Term `json:"subject"`
	Predicate Term `json:"predicate"`
	Object    Term `json:"object"`
	Graph     Term `json:"graph"`
}

// NewQuad creates a quad.
func NewQuad(s, p, o, g Term) Quad {
	return Quad{Subject: s, Predicate: p, Object: o, Graph: g}
}

// Triple creates a quad in the default graph.
func Triple(s, p, o Term) Quad {
	return Quad{Subject: s, Predicate: p, Object: o}
}

// In returns a copy of q placed in graph g.
func (q Quad) In(g Term) Quad {
	q.Graph = g
	return q
}

// String renders the quad as one N-Quads line without the trailing newline.
func (q Quad) String() string {
	s := q.Subject.String() + " " + q.Predicate.String() + " " + q.Object.String()
	if !q.Graph.IsZero() {
		s += " " + q.Graph.String()
	}
	return s + " ."
}

// Compare orders quads by graph, subject, predicate, object.
func (q Quad) Compare(o Quad) int {
	if c := q.Graph.Compare(o.Graph); c != 0 {
		return c
	}
	if c := q.Subject.Compare(o.Subject); c != 0 {
		return c
	}
	if c := q.Predicate.Compare(o.Predicate); c != 0 {
		return c
	}
	return q.Object.Compare(o.Object)
}

// SortQuads sorts quads in place into canonical order.
func SortQuads(qs []Quad) {
	slices.SortFunc(qs, func(a, b Quad) int { return a.Compare(b) })
}
