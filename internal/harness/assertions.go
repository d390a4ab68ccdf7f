package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/prioritize/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Order    []string     // Final order for context
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFinal order: %s\n", strings.Join(e.Order, ", "))
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "Full trace:\n")
		for _, event := range e.Trace {
			switch event.Type {
			case EventMove:
				fmt.Fprintf(&buf, "  [%d] move %s after %s\n", event.Seq, event.Key, event.After)
			default:
				fmt.Fprintf(&buf, "  [%d] %s %s: %s -> %s\n", event.Seq, event.Type, event.Key, event.From, event.To)
			}
		}
	}

	return buf.String()
}

func failure(result *Result, typ, expected, actual string) error {
	return &AssertionError{
		Type:     typ,
		Expected: expected,
		Actual:   actual,
		Order:    result.Order,
		Trace:    result.Trace,
	}
}

func assertOrder(result *Result, a Assertion) error {
	if slices.Equal(result.Order, a.Keys) {
		return nil
	}
	return failure(result, AssertOrder, fmt.Sprint(a.Keys), fmt.Sprint(result.Order))
}

func assertBefore(result *Result, a Assertion) error {
	i := slices.Index(result.Order, a.Item)
	j := slices.Index(result.Order, a.Other)
	switch {
	case i < 0:
		return failure(result, AssertBefore, a.Item+" in the backlog", "not found")
	case j < 0:
		return failure(result, AssertBefore, a.Other+" in the backlog", "not found")
	case i > j:
		return failure(result, AssertBefore,
			fmt.Sprintf("%s before %s", a.Item, a.Other),
			fmt.Sprintf("%s at %d, %s at %d", a.Item, i+1, a.Other, j+1))
	}
	return nil
}

func assertMoves(result *Result, a Assertion) error {
	got := result.Moves()
	if slices.Equal(got, a.Moves) {
		return nil
	}
	return failure(result, AssertMoves, fmt.Sprintf("%q", a.Moves), fmt.Sprintf("%q", got))
}

func assertMoveCount(result *Result, a Assertion) error {
	got := len(result.Moves())
	if got == a.Count {
		return nil
	}
	return failure(result, AssertMoveCount, fmt.Sprintf("%d moves", a.Count), fmt.Sprintf("%d moves", got))
}

func assertPriority(result *Result, a Assertion) error {
	want, _ := ir.ParsePriority(a.Value)
	got, ok := result.Priorities[a.Item]
	if !ok {
		return failure(result, AssertPriority, a.Item+" in the backlog", "not found")
	}
	if got != want.String() {
		return failure(result, AssertPriority,
			fmt.Sprintf("%s priority %s", a.Item, want), fmt.Sprintf("%s priority %s", a.Item, got))
	}
	return nil
}

func assertStatus(result *Result, a Assertion) error {
	want, _ := ir.ParseStatusCategory(a.Value)
	got, ok := result.Statuses[a.Item]
	if !ok {
		return failure(result, AssertStatus, a.Item+" in the backlog", "not found")
	}
	if got != want.String() {
		return failure(result, AssertStatus,
			fmt.Sprintf("%s status %s", a.Item, want), fmt.Sprintf("%s status %s", a.Item, got))
	}
	return nil
}

func assertUnchanged(result *Result) error {
	if len(result.Trace) == 0 {
		return nil
	}
	return failure(result, AssertUnchanged, "no changes", fmt.Sprintf("%d changes", len(result.Trace)))
}

func assertError(result *Result, a Assertion) error {
	if result.ErrorCode == a.Code {
		return nil
	}
	actual := result.ErrorCode
	if actual == "" {
		actual = "run succeeded"
	}
	return failure(result, AssertError, "runtime error "+a.Code, actual)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertOrder:
			err = assertOrder(result, assertion)
		case AssertBefore:
			err = assertBefore(result, assertion)
		case AssertMoves:
			err = assertMoves(result, assertion)
		case AssertMoveCount:
			err = assertMoveCount(result, assertion)
		case AssertPriority:
			err = assertPriority(result, assertion)
		case AssertStatus:
			err = assertStatus(result, assertion)
		case AssertUnchanged:
			err = assertUnchanged(result)
		case AssertError:
			err = assertError(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
