// Package querysql compiles queryir statement queries to parameterized
// SQLite SQL over the quads table.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/queryir"
)

// Columns is the select list shared by every compiled read, in the order
// the store scans them.
const Columns = "subject, s_kind, predicate, object, o_kind, o_datatype, o_lang, graph"

// orderBy mirrors ir.Quad.Compare so SQL results and in-memory results come
// back in the same order. Kinds are stored as integers for that reason.
const orderBy = " ORDER BY graph COLLATE BINARY, s_kind, subject COLLATE BINARY, " +
	"predicate COLLATE BINARY, o_kind, object COLLATE BINARY, " +
	"o_datatype COLLATE BINARY, o_lang COLLATE BINARY"

// SQLCompiler compiles queryir queries to parameterized SQL for SQLite.
//
// Every read includes ORDER BY for deterministic results. Values are always
// parameterized, never interpolated.
type SQLCompiler struct {
	// Table is the statement table name.
	Table string
}

// NewSQLCompiler creates a compiler for the default quads table.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{Table: "quads"}
}

// Compile converts a query into a SELECT returning Columns.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	where, params, err := c.compileWhere(q)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s%s", Columns, c.Table, where, orderBy)
	if limit := queryir.Limit(q); limit > 0 {
		sql += " LIMIT ?"
		params = append(params, limit)
	}
	return sql, params, nil
}

// CompileExists converts a query into a statement returning one row with
// 1 when any statement matches and 0 otherwise.
func (c *SQLCompiler) CompileExists(q queryir.Query) (string, []any, error) {
	where, params, err := c.compileWhere(q)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s%s)", c.Table, where), params, nil
}

// CompileDelete converts a query into a DELETE. Limits are ignored: a
// delete always removes every match.
func (c *SQLCompiler) CompileDelete(q queryir.Query) (string, []any, error) {
	where, params, err := c.compileWhere(q)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("DELETE FROM %s%s", c.Table, where), params, nil
}

func (c *SQLCompiler) compileWhere(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}

	var pattern queryir.Pattern
	var filter queryir.Predicate
	switch query := q.(type) {
	case queryir.Pattern:
		pattern = query
	case *queryir.Pattern:
		pattern = *query
	case queryir.Select:
		pattern, filter = query.Pattern, query.Filter
	case *queryir.Select:
		pattern, filter = query.Pattern, query.Filter
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}

	var parts []string
	var params []any
	add := func(sql string, ps []any) {
		parts = append(parts, sql)
		params = append(params, ps...)
	}

	for _, pos := range []queryir.Position{queryir.GraphPos, queryir.SubjectPos, queryir.PredicatePos, queryir.ObjectPos} {
		t := termAt(pattern, pos)
		if t.IsZero() {
			continue
		}
		add(compileTermEquals(pos, t))
	}

	if filter != nil {
		sql, ps, err := c.compilePredicate(filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		add(sql, ps)
	}

	if len(parts) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(parts, " AND "), params, nil
}

// compilePredicate compiles a queryir.Predicate to a WHERE fragment.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.HasPrefix:
		return compileHasPrefix(pred)
	case *queryir.HasPrefix:
		return compileHasPrefix(*pred)
	case queryir.Equals:
		sql, params := compileTermEquals(pred.Position, pred.Term)
		return sql, params, nil
	case *queryir.Equals:
		sql, params := compileTermEquals(pred.Position, pred.Term)
		return sql, params, nil
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}
	return "(" + strings.Join(sqlParts, " AND ") + ")", allParams, nil
}

// compileHasPrefix uses substr rather than LIKE so that % and _ in URIs
// need no escaping. The column is compared as a blob: substr counts
// characters on TEXT but the prefix length is in bytes.
func compileHasPrefix(hp queryir.HasPrefix) (string, []any, error) {
	col, ok := valueColumn(hp.Position)
	if !ok {
		return "", nil, fmt.Errorf("unknown position %d", hp.Position)
	}
	return fmt.Sprintf("substr(CAST(%s AS BLOB), 1, ?) = ?", col), []any{len(hp.Prefix), []byte(hp.Prefix)}, nil
}

func compileTermEquals(pos queryir.Position, t ir.Term) (string, []any) {
	switch pos {
	case queryir.GraphPos:
		return "graph = ?", []any{t.Value}
	case queryir.PredicatePos:
		return "predicate = ?", []any{t.Value}
	case queryir.SubjectPos:
		return "subject = ? AND s_kind = ?", []any{t.Value, int(t.Kind)}
	default:
		return "object = ? AND o_kind = ? AND o_datatype = ? AND o_lang = ?",
			[]any{t.Value, int(t.Kind), t.Datatype, t.Lang}
	}
}

func valueColumn(pos queryir.Position) (string, bool) {
	switch pos {
	case queryir.SubjectPos:
		return "subject", true
	case queryir.PredicatePos:
		return "predicate", true
	case queryir.ObjectPos:
		return "object", true
	case queryir.GraphPos:
		return "graph", true
	default:
		return "", false
	}
}

func termAt(p queryir.Pattern, pos queryir.Position) ir.Term {
	switch pos {
	case queryir.SubjectPos:
		return p.Subject
	case queryir.PredicatePos:
		return p.Predicate
	case queryir.ObjectPos:
		return p.Object
	default:
		return p.Graph
	}
}
