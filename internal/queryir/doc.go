// Package queryir provides a backend-neutral relational plan for reading a
// specification's match list in one query.
//
// ARCHITECTURE:
//
// The plan sits between the specification model and storage backends:
//
//	[spec.Specification] → [queryir.Select] → [querysql: SQLite]
//
// A backend that compiles a plan must return the same tuple set as the
// match executor walking the graph one role at a time. Ordering is by fact
// insertion sequence, which both backends share.
//
// PLAN SHAPE:
//
//   - Every given and every unknown becomes a FactSource of its type
//   - Every role step of a path condition adds a FactSource for the
//     intermediate fact and an EdgeSource joining it to the previous one
//   - The two walks of a path condition meet through a SameFact predicate
//   - Givens are pinned with BoundFact predicates
//   - Existential conditions become correlated Exists predicates, negated
//     for !E
//
// SEALED INTERFACES:
//
// Query, Source, and Predicate are sealed interfaces using the marker
// method pattern. Only types in this package implement them, which keeps
// backend type switches exhaustive:
//
//	switch p := pred.(type) {
//	case queryir.BoundFact:
//	case queryir.SameFact:
//	case queryir.And:
//	case queryir.Exists:
//	}
//
// Plans are built with Plan and checked with Validate; neither touches a
// database.
package queryir
