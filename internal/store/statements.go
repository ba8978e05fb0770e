package store

import (
	"context"

	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/queryir"
)

// Statements answers read queries.
type Statements interface {
	// Query returns every statement matching q in canonical order. The
	// result is never nil.
	Query(ctx context.Context, q queryir.Query) ([]ir.Quad, error)

	// Has reports whether any statement matches q.
	Has(ctx context.Context, q queryir.Query) (bool, error)
}

// Tx is an open transaction.
type Tx interface {
	Statements

	// Add inserts statements. Statements already present are ignored.
	Add(ctx context.Context, quads ...ir.Quad) error

	// Remove deletes every statement matching q and returns the count.
	Remove(ctx context.Context, q queryir.Query) (int64, error)

	Commit() error
	Rollback() error
}

// StatementStore is the adapter consumed by the repository.
type StatementStore interface {
	Statements

	// Begin opens a transaction. Callers must Commit or Rollback it.
	Begin(ctx context.Context) (Tx, error)

	Close() error
}

var (
	_ StatementStore = (*Store)(nil)
	_ StatementStore = (*Memory)(nil)
)
