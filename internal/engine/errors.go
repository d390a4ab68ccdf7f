package engine

import (
	"errors"
	"fmt"
	"strings"
)

// RuntimeError represents a defect detected during a ranking run.
//
// Runtime errors include:
//   - Partition defect: no classifier claims an item (missing catch-all)
//   - Permutation mismatch: old and new orders are not the same multiset
//   - Hierarchy cycle: an item is its own ancestor
//   - Unknown block: a classifier targets a block the policy never declared
//
// All of them are fatal; a run that hits one produces no plan.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Policy names the policy being run, when known.
	Policy string

	// ItemKey identifies the offending item, when there is one.
	ItemKey string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodePartitionDefect indicates an item no classifier claimed.
	ErrCodePartitionDefect RuntimeErrorCode = "PARTITION_DEFECT"

	// ErrCodePermutationMismatch indicates the new order is not a permutation of the old one.
	ErrCodePermutationMismatch RuntimeErrorCode = "PERMUTATION_MISMATCH"

	// ErrCodeHierarchyCycle indicates a parent chain loops back on itself.
	ErrCodeHierarchyCycle RuntimeErrorCode = "HIERARCHY_CYCLE"

	// ErrCodeUnknownBlock indicates a classifier targets an undeclared block.
	ErrCodeUnknownBlock RuntimeErrorCode = "UNKNOWN_BLOCK"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Policy != "" && e.ItemKey != "" {
		return fmt.Sprintf("%s: %s (policy=%s, item=%s)", e.Code, e.Message, e.Policy, e.ItemKey)
	}
	if e.ItemKey != "" {
		return fmt.Sprintf("%s: %s (item=%s)", e.Code, e.Message, e.ItemKey)
	}
	if e.Policy != "" {
		return fmt.Sprintf("%s: %s (policy=%s)", e.Code, e.Message, e.Policy)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsPartitionDefect returns true if the error is a partition defect.
// Uses errors.As to handle wrapped errors.
func IsPartitionDefect(err error) bool {
	return hasCode(err, ErrCodePartitionDefect)
}

// IsPermutationMismatch returns true if the error is a permutation mismatch.
func IsPermutationMismatch(err error) bool {
	return hasCode(err, ErrCodePermutationMismatch)
}

// IsHierarchyCycle returns true if the error is a hierarchy cycle.
func IsHierarchyCycle(err error) bool {
	return hasCode(err, ErrCodeHierarchyCycle)
}

// NewPartitionDefect creates a RuntimeError for an unclaimed item.
func NewPartitionDefect(itemKey string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodePartitionDefect,
		Message: "no classifier claims item; policy is missing a catch-all",
		ItemKey: itemKey,
	}
}

// NewPermutationMismatch creates a RuntimeError listing the keys whose counts differ.
func NewPermutationMismatch(missing, extra []string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodePermutationMismatch,
		Message: fmt.Sprintf("new order is not a permutation of old order (%d missing, %d extra)", len(missing), len(extra)),
		Details: map[string]string{
			"missing": strings.Join(missing, ","),
			"extra":   strings.Join(extra, ","),
		},
	}
}

// NewHierarchyCycle creates a RuntimeError for a parent cycle through itemKey.
func NewHierarchyCycle(itemKey string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeHierarchyCycle,
		Message: "item is its own ancestor",
		ItemKey: itemKey,
	}
}
