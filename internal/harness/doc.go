// Package harness replays fact arrivals against an observed specification
// and checks that incremental maintenance agrees with re-execution.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: open_offices
//	description: "Closing an office removes it"
//	backend: memory            # or sqlite
//	specification: |
//	  (company: Company) {
//	      office: Office [
//	          office->company: Company = company
//	      ]
//	  } => office.identifier
//	given:
//	  company: acme
//	facts:
//	  - id: acme
//	    type: Company
//	    fields: { identifier: acme }
//	    seed: true
//	  - id: nyc
//	    type: Office
//	    fields: { identifier: nyc }
//	    predecessors: { company: [acme] }
//	assertions:
//	  - type: result_count
//	    count: 1
//
// Seed facts exist before the observer starts. Every other fact is added
// to the graph and then applied to the observer, in file order. After
// Start and after each arrival the observer's results are compared with a
// fresh execution of the specification; any divergence fails the
// scenario.
//
// # Assertion Types
//
//   - result_count: the final result set has exactly count entries
//   - result_contains: some final result matches value (objects by subset)
//   - change_count: count changes of kind (added/removed) at path
//   - no_change: the arrival of fact changed nothing
//
// # Deterministic Testing
//
// Facts are referred to by alias in traces and snapshots, the memory
// backend stamps insertion order from a deterministic clock, and observer
// identifiers come from a sequential generator, so snapshots are stable
// across runs.
package harness
