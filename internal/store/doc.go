// Package store provides a SQLite-backed fact graph.
//
// The schema holds four tables:
//   - fact_type: one row per fact type name
//   - role: predecessor roles, each defined by the successor's fact type
//   - fact: content-addressed facts with their JSON payload and a logical
//     insertion sequence
//   - edge: (role, successor, predecessor) links
//
// # Critical Patterns
//
// Content Identity:
//   - UNIQUE(fact_type_id, hash); saving a fact twice is a no-op
//   - Hashes are computed by internal/ir, never trusted from callers
//
// Logical Time:
//   - All ordering uses seq INTEGER (insertion order), NEVER timestamps
//   - Successor enumeration and ReadTuples both order by seq, so the store
//     and the in-memory graph enumerate in the same order
//
// Referential Integrity:
//   - A fact can only be saved after all of its predecessors
//     (ErrMissingPredecessor); the stored graph is therefore always
//     complete and acyclic
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Store implements graph.FactGraph, so the match executor runs against it
// unchanged. ReadTuples is the alternative read path: it compiles a whole
// match list to one SQL statement through internal/queryir and
// internal/querysql.
package store
