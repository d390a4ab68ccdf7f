// Package engine implements the block-based re-ranking engine.
//
// A run takes a rank-ordered backlog snapshot and a Policy and produces a
// Plan: the new total order plus the moves that realize it.
//
// PIPELINE:
//
//  1. Partition: each item goes to the first classifier that claims it;
//     blocks are created lazily in order of first claim, except leading
//     blocks which always exist.
//  2. Sort: the policy's SortSteps reorder whole blocks (pinning, parent
//     rank swapping within a project, in-progress promotion, tiers).
//  3. Flatten: blocks are concatenated, each emitting its items per its
//     own Ordering.
//  4. Diff: the old and new orders are compared and moves are emitted
//     from the first divergence onwards.
//
// Every stage is a pure function over in-memory values. The engine never
// talks to the tracker, never persists anything and never mutates its
// input. Dry-run is a per-call parameter, recorded on the plan only.
//
// Policies are data: a list of BlockSpecs, an ordered list of Classifiers
// and a list of SortSteps. Adding a policy means composing those values,
// not subclassing anything.
//
// Defects (an unclaimed item, a non-permutation, a parent cycle) are fatal
// and reported as *RuntimeError with a string code.
package engine
