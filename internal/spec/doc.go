// Package spec defines the specification data model: labels, roles, path
// and existential conditions, matches, givens, and projections.
//
// A Specification fully determines both execution (package engine) and
// inversion (package inverse). All values are immutable once built;
// transformations such as re-rooting return fresh values and never modify
// their input.
//
// The package also owns the canonical textual form (Render), the
// wire-level feed form (RenderFeed), construction-time validation
// (Validate / Check), and the bookkeeping types used by incremental
// evaluation: Subset, Path, and Level.
package spec
