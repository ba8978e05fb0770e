package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/queryir"
)

// ErrTxDone is returned by operations on a committed or rolled back Memory
// transaction.
var ErrTxDone = errors.New("transaction already committed or rolled back")

// Memory is an in-process StatementStore.
//
// Transactions are copy-on-begin snapshots swapped in on commit. Only one
// transaction is open at a time; Begin blocks until the previous one ends.
type Memory struct {
	mu     sync.RWMutex
	quads  map[ir.Quad]struct{}
	writer sync.Mutex
	closed bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{quads: make(map[ir.Quad]struct{})}
}

func (m *Memory) Query(ctx context.Context, q queryir.Query) ([]ir.Quad, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, fmt.Errorf("query statements: store closed")
	}
	return selectQuads(m.quads, q)
}

func (m *Memory) Has(ctx context.Context, q queryir.Query) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, fmt.Errorf("exists query: store closed")
	}
	return hasQuad(m.quads, q)
}

// Begin blocks while another transaction is open or ctx is done.
func (m *Memory) Begin(ctx context.Context) (Tx, error) {
	locked := make(chan struct{})
	go func() {
		m.writer.Lock()
		close(locked)
	}()
	select {
	case <-locked:
	case <-ctx.Done():
		// release the lock once the goroutine gets it
		go func() {
			<-locked
			m.writer.Unlock()
		}()
		return nil, fmt.Errorf("begin transaction: %w", ctx.Err())
	}

	m.mu.RLock()
	snapshot := maps.Clone(m.quads)
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		m.writer.Unlock()
		return nil, fmt.Errorf("begin transaction: store closed")
	}
	return &memoryTx{store: m, quads: snapshot}, nil
}

// Close drops all statements.
func (m *Memory) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.quads = nil
	return nil
}

// Count returns the number of committed statements.
func (m *Memory) Count(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.quads)), nil
}

type memoryTx struct {
	store *Memory
	quads map[ir.Quad]struct{}
	done  bool
}

func (t *memoryTx) Query(ctx context.Context, q queryir.Query) ([]ir.Quad, error) {
	if t.done {
		return nil, ErrTxDone
	}
	return selectQuads(t.quads, q)
}

func (t *memoryTx) Has(ctx context.Context, q queryir.Query) (bool, error) {
	if t.done {
		return false, ErrTxDone
	}
	return hasQuad(t.quads, q)
}

func (t *memoryTx) Add(ctx context.Context, quads ...ir.Quad) error {
	if t.done {
		return ErrTxDone
	}
	for _, q := range quads {
		if err := checkQuad(q); err != nil {
			return err
		}
	}
	for _, q := range quads {
		t.quads[q] = struct{}{}
	}
	return nil
}

func (t *memoryTx) Remove(ctx context.Context, q queryir.Query) (int64, error) {
	if t.done {
		return 0, ErrTxDone
	}
	if err := queryir.Validate(q); err != nil {
		return 0, fmt.Errorf("invalid query: %w", err)
	}
	var n int64
	for quad := range t.quads {
		if queryir.Match(q, quad) {
			delete(t.quads, quad)
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.store.mu.Lock()
	t.store.quads = t.quads
	t.store.mu.Unlock()
	t.store.writer.Unlock()
	return nil
}

// Rollback after Commit is a no-op, which allows defer tx.Rollback().
func (t *memoryTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.quads = nil
	t.store.writer.Unlock()
	return nil
}

func selectQuads(set map[ir.Quad]struct{}, q queryir.Query) ([]ir.Quad, error) {
	if err := queryir.Validate(q); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	out := []ir.Quad{}
	for quad := range set {
		if queryir.Match(q, quad) {
			out = append(out, quad)
		}
	}
	ir.SortQuads(out)
	if limit := queryir.Limit(q); limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func hasQuad(set map[ir.Quad]struct{}, q queryir.Query) (bool, error) {
	if err := queryir.Validate(q); err != nil {
		return false, fmt.Errorf("invalid query: %w", err)
	}
	for quad := range set {
		if queryir.Match(q, quad) {
			return true, nil
		}
	}
	return false, nil
}
