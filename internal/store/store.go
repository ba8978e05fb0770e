package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/queryir"
	"github.com/roach88/mdrepo/internal/querysql"
)

// dsnOptions repeats the per-connection pragmas so that every pooled
// connection gets them, not only the one applyPragmas runs on.
const dsnOptions = "?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on&_synchronous=NORMAL"

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added predicate/object index for reverse lookups
const currentSchemaVersion = 1

// Store is the SQLite-backed StatementStore.
// Uses WAL mode so reads proceed while a transaction is open.
type Store struct {
	db       *sql.DB
	compiler *querysql.SQLCompiler
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Transactions begin IMMEDIATE, so busy_timeout serializes writers
	// while the remaining connections serve reads.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, compiler: querysql.NewSQLCompiler()}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Query returns committed statements matching q.
func (s *Store) Query(ctx context.Context, q queryir.Query) ([]ir.Quad, error) {
	return query(ctx, s.db, s.compiler, q)
}

// Has reports whether a committed statement matches q.
func (s *Store) Has(ctx context.Context, q queryir.Query) (bool, error) {
	return has(ctx, s.db, s.compiler, q)
}

// Begin opens a transaction.
func (s *Store) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &sqliteTx{tx: tx, compiler: s.compiler}, nil
}

// Count returns the number of committed statements.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM quads").Scan(&n); err != nil {
		return 0, fmt.Errorf("count statements: %w", err)
	}
	return n, nil
}

type sqliteTx struct {
	tx       *sql.Tx
	compiler *querysql.SQLCompiler
}

func (t *sqliteTx) Query(ctx context.Context, q queryir.Query) ([]ir.Quad, error) {
	return query(ctx, t.tx, t.compiler, q)
}

func (t *sqliteTx) Has(ctx context.Context, q queryir.Query) (bool, error) {
	return has(ctx, t.tx, t.compiler, q)
}

// Add uses ON CONFLICT DO NOTHING so duplicate statements are ignored.
func (t *sqliteTx) Add(ctx context.Context, quads ...ir.Quad) error {
	if len(quads) == 0 {
		return nil
	}
	stmt, err := t.tx.PrepareContext(ctx, `
		INSERT INTO quads
		(graph, subject, s_kind, predicate, object, o_kind, o_datatype, o_lang)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, q := range quads {
		if err := checkQuad(q); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, quadParams(q)...); err != nil {
			return fmt.Errorf("insert %s: %w", q, err)
		}
	}
	return nil
}

func (t *sqliteTx) Remove(ctx context.Context, q queryir.Query) (int64, error) {
	if err := queryir.Validate(q); err != nil {
		return 0, fmt.Errorf("invalid query: %w", err)
	}
	sqlText, params, err := t.compiler.CompileDelete(q)
	if err != nil {
		return 0, err
	}
	res, err := t.tx.ExecContext(ctx, sqlText, params...)
	if err != nil {
		return 0, fmt.Errorf("delete statements: %w", err)
	}
	return res.RowsAffected()
}

func (t *sqliteTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback after Commit is a no-op, which allows defer tx.Rollback().
func (t *sqliteTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func query(ctx context.Context, db querier, c *querysql.SQLCompiler, q queryir.Query) ([]ir.Quad, error) {
	if err := queryir.Validate(q); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	sqlText, params, err := c.Compile(q)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("query statements: %w", err)
	}
	defer rows.Close()

	quads := []ir.Quad{}
	for rows.Next() {
		q, err := scanQuad(rows)
		if err != nil {
			return nil, err
		}
		quads = append(quads, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statements: %w", err)
	}
	return quads, nil
}

func has(ctx context.Context, db querier, c *querysql.SQLCompiler, q queryir.Query) (bool, error) {
	if err := queryir.Validate(q); err != nil {
		return false, fmt.Errorf("invalid query: %w", err)
	}
	sqlText, params, err := c.CompileExists(q)
	if err != nil {
		return false, err
	}
	var found bool
	if err := db.QueryRowContext(ctx, sqlText, params...).Scan(&found); err != nil {
		return false, fmt.Errorf("exists query: %w", err)
	}
	return found, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the reverse-lookup index used by relation scans.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_quads_predicate_object
		ON quads(predicate, object)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	q := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(q).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
