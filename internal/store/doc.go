// Package store provides the StatementStore adapter: a transactional
// quadruple (subject, predicate, object, named graph) store with pattern
// queries.
//
// Two implementations are provided:
//   - Store: SQLite-backed, durable, the default for the CLI
//   - Memory: map-backed, used by tests and the "memory" driver
//
// Both answer queryir queries and return statements in canonical quad
// order, so callers may rely on result order being identical across
// backends.
//
// # Transactions
//
// A Tx is the unit of atomicity. Reads through a Tx see its own uncommitted
// writes; reads through the store see only committed state. Adding a
// statement that already exists is a no-op.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
