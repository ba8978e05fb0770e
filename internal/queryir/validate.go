package queryir

import (
	"errors"
	"fmt"

	"github.com/roach88/mdrepo/internal/ir"
)

// Validate checks that a query can be answered by every backend.
//
// Rules:
//  1. Subjects are IRIs or blank nodes, never literals
//  2. Predicates and named graphs are IRIs
//  3. Filters reference a known position
//  4. Limits are not negative
//
// All violations are reported together. Validate is a pure function.
func Validate(q Query) error {
	v := &validator{}
	v.validateQuery(q)
	return errors.Join(v.problems...)
}

type validator struct {
	problems []error
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Errorf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case Pattern:
		v.validatePattern(query)
	case *Pattern:
		v.validatePattern(*query)
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addProblem("unknown query type %T", q)
	}
}

func (v *validator) validatePattern(p Pattern) {
	if p.Subject.IsLiteral() {
		v.addProblem("subject must not be a literal: %s", p.Subject)
	}
	if !p.Predicate.IsZero() && !p.Predicate.IsIRI() {
		v.addProblem("predicate must be an IRI: %s", p.Predicate)
	}
	if !p.Graph.IsZero() && !p.Graph.IsIRI() {
		v.addProblem("graph must be an IRI: %s", p.Graph)
	}
}

func (v *validator) validateSelect(sel Select) {
	v.validatePattern(sel.Pattern)
	if sel.Limit < 0 {
		v.addProblem("negative limit %d", sel.Limit)
	}
	v.validatePredicate(sel.Filter)
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case HasPrefix:
		v.validatePosition(pred.Position)
	case *HasPrefix:
		v.validatePosition(pred.Position)
	case Equals:
		v.validatePosition(pred.Position)
		v.validateTerm(pred.Position, pred.Term)
	case *Equals:
		v.validatePosition(pred.Position)
		v.validateTerm(pred.Position, pred.Term)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) validatePosition(pos Position) {
	if pos > GraphPos {
		v.addProblem("unknown position %d", pos)
	}
}

func (v *validator) validateTerm(pos Position, t ir.Term) {
	if t.IsZero() {
		v.addProblem("%s equality against the zero term", pos)
	}
}
