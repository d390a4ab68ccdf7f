// Package harness runs ranking scenarios as executable tests.
//
// A scenario pins a backlog, a rule and a date, runs the rule through the
// real engine, applies the resulting moves to an in-memory tracker through
// the journaling applier, and checks assertions against the outcome.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: single_parent_move
//	description: "A child pulls its parent's block up"
//	today: 2026-01-15
//	rule: rank
//	backlog:
//	  parents:
//	    - key: parent1
//	      rank: "1"
//	      project: TESTPROJECT
//	  items:
//	    - key: child1
//	      rank: "2"
//	      project: TESTPROJECT
//	      parent: parent1
//	assertions:
//	  - type: order
//	    keys: [child1]
//	  - type: move_count
//	    count: 0
//
// The rule field takes the same forms as the configuration file: a bare
// rule name, or a mapping with rule and kwargs. The backlog field uses the
// backlog file layout.
//
// # Assertion Types
//
//   - order: the final order equals keys exactly
//   - before: item comes before other in the final order
//   - moves: the applied moves, rendered "X after Y", equal moves exactly
//   - move_count: exactly count moves were applied
//   - priority: item ends with priority value
//   - status: item ends with status category value
//   - unchanged: the rule produced no moves and no updates
//   - error: the run failed with runtime error code
//
// # Deterministic Testing
//
// Every scenario runs on a fixed date (today, or testutil.ReferenceDate),
// a fixed run ID and a fresh in-memory journal, so the outcome is
// byte-identical across runs and can be compared against golden files.
package harness
