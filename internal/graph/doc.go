// Package graph defines the fact-graph traversal primitive consumed by the
// match executor and provides an in-memory implementation.
//
// A FactGraph answers three questions: what is the fact at a reference,
// which facts does it point to through a role, and which facts of a given
// type point at it through a role. Any backend that honors these
// primitives (MemoryGraph here, the SQLite store in package store) is
// interchangeable.
package graph
