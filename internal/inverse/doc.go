// Package inverse derives inverse specifications.
//
// An inverse is rooted at one fact type that appears somewhere in a
// specification: a top-level unknown, an unknown inside an existential
// condition, or an unknown inside a projected collection. Given one newly
// arrived fact of that type, running the inverse specification through the
// match executor yields exactly the results the fact can affect, and the
// inverse's Operation says whether those results should be inserted,
// removed, or re-checked.
//
// Inversion is a pure function of the specification, so results can be
// shared across observers through a Cache.
package inverse
