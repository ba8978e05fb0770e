// Package ir provides the statement data model shared by every layer of
// mdrepo.
//
// A statement is a Quad: subject, predicate, object and named graph, each a
// Term. Graph is an ordered slice of quads with matching helpers. The
// package also owns the canonical serializations used for hashing and
// export: RFC 8785 canonical JSON and N-Quads.
//
// ir imports nothing internal. All other internal packages import ir.
//
// Key design constraints:
//   - Terms are plain values, compared with ==
//   - Literal values are NFC normalized at serialization boundaries
//   - Timestamps are stored as xsd:dateTime literals in UTC
package ir
