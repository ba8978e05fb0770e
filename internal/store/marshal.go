package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/mdrepo/internal/ir"
)

// checkQuad rejects statements no backend can hold.
func checkQuad(q ir.Quad) error {
	switch {
	case q.Subject.IsZero() || q.Predicate.IsZero() || q.Object.IsZero():
		return fmt.Errorf("incomplete statement %s", q)
	case q.Subject.IsLiteral():
		return fmt.Errorf("literal subject in %s", q)
	case !q.Predicate.IsIRI():
		return fmt.Errorf("non-IRI predicate in %s", q)
	case !q.Graph.IsZero() && !q.Graph.IsIRI():
		return fmt.Errorf("non-IRI graph in %s", q)
	}
	return nil
}

// quadParams returns insert parameters in schema column order.
func quadParams(q ir.Quad) []any {
	return []any{
		q.Graph.Value,
		q.Subject.Value,
		int(q.Subject.Kind),
		q.Predicate.Value,
		q.Object.Value,
		int(q.Object.Kind),
		q.Object.Datatype,
		q.Object.Lang,
	}
}

// scanQuad reads one row selected with querysql.Columns.
func scanQuad(rows *sql.Rows) (ir.Quad, error) {
	var (
		subject, predicate, object string
		datatype, lang, graph      string
		sKind, oKind               int
	)
	if err := rows.Scan(&subject, &sKind, &predicate, &object, &oKind, &datatype, &lang, &graph); err != nil {
		return ir.Quad{}, fmt.Errorf("scan statement: %w", err)
	}

	q := ir.Quad{
		Subject:   ir.Term{Kind: ir.TermKind(sKind), Value: subject},
		Predicate: ir.IRI(predicate),
		Object:    ir.Term{Kind: ir.TermKind(oKind), Value: object, Datatype: datatype, Lang: lang},
	}
	if graph != "" {
		q.Graph = ir.IRI(graph)
	}
	return q, nil
}
