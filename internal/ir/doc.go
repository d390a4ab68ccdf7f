// Package ir provides the item model shared by every prioritize package.
//
// This package contains value types only. All other internal packages
// import ir; ir imports nothing internal. This keeps the item model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Items are snapshots: nothing downstream mutates an Item or an input slice
//   - Optional tracker fields (due date, RICE score, parent) are pointers
//   - Rank is an opaque lexicographic string compared bytewise
//   - Plan and move identity is content-addressed (see hash.go)
package ir
