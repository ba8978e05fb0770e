package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/mdrepo/internal/ir"
)

// createTestStore creates a new SQLite store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// backends returns a constructor per StatementStore implementation so the
// same behavior is asserted against each.
func backends() map[string]func(t *testing.T) StatementStore {
	return map[string]func(t *testing.T) StatementStore{
		"sqlite": func(t *testing.T) StatementStore { return createTestStore(t) },
		"memory": func(t *testing.T) StatementStore {
			m := NewMemory()
			t.Cleanup(func() { m.Close() })
			return m
		},
	}
}

// mustAdd commits quads in a single transaction.
func mustAdd(t *testing.T, s StatementStore, quads ...ir.Quad) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	defer tx.Rollback()
	if err := tx.Add(ctx, quads...); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
}

func iri(s string) ir.Term { return ir.IRI("http://example.org/" + s) }
