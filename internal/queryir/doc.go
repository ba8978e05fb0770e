// Package queryir provides the statement-pattern intermediate representation
// shared by every StatementStore backend.
//
// The IR is the abstraction boundary between the repository and the store
// implementations: the repository only ever describes WHICH statements it
// wants, and each backend decides HOW to find them.
//
//	[repository] → [Query IR] → [SQL backend]    (querysql + store.SQLite)
//	                          → [Memory backend] (Match, store.Memory)
//
// # Sealed interfaces
//
// Query and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package implement them, which keeps the type switches
// in backends exhaustive:
//
//	switch q := query.(type) {
//	case Pattern:
//	    // single quad pattern
//	case Select:
//	    // pattern plus filter and limit
//	}
//
// # Patterns
//
// A Pattern fixes any subset of subject, predicate, object and named graph.
// A zero ir.Term in a position is a wildcard. The empty Pattern matches every
// statement in the store.
//
// # Ordering
//
// Every backend returns matches in canonical quad order (graph, subject,
// predicate, object as defined by ir.Quad.Compare) so that results are
// reproducible across backends and runs.
package queryir
