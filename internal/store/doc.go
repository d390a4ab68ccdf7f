// Package store provides the SQLite-backed move journal.
//
// The journal records:
//   - Runs: one row per planned ranking run (policy, plan ID, old and new order)
//   - Moves: the plan's moves, content-addressed by plan ID and sequence
//   - Messages: comments posted on items during a run
//
// # Resume
//
// Move IDs are derived from the plan ID, so a rerun of an identical plan
// addresses the same rows. A move is applied once applied_run_id is set;
// the applier skips those moves.
//
// # Deterministic Query Results
//
// All list queries order by a seq column (logical clock), never by
// timestamps, with id ASC COLLATE BINARY as the tie-breaker.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
