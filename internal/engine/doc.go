// Package engine implements the match executor and the observer.
//
// The Executor evaluates a specification against a graph.FactGraph: it
// checks the givens' guards, folds the matches left to right over a set of
// bound tuples, filters by path and existential conditions, and maps each
// surviving tuple through the projection into a Product.
//
// The Observer owns one specification and one given tuple. It executes
// once to seed its results, then keeps them current as new facts arrive by
// running only the inverse specifications rooted at each new fact's type.
//
// EXECUTION MODEL:
//
// The executor is synchronous and holds no mutable state. Any number of
// goroutines may run it concurrently against one graph. The observer
// serializes updates: Apply runs inline under the observer's lock, while
// Notify queues a fact for the single-writer Run loop.
//
// ORDERING:
//
// Results follow the backend's enumeration order (fact insertion order for
// MemoryGraph and the SQLite store). Callers comparing results across
// backends should compare them as sets.
package engine
