package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/prioritize/internal/apply"
	"github.com/roach88/prioritize/internal/compiler"
	"github.com/roach88/prioritize/internal/engine"
	"github.com/roach88/prioritize/internal/ir"
	"github.com/roach88/prioritize/internal/store"
	"github.com/roach88/prioritize/internal/testutil"
	"github.com/roach88/prioritize/internal/tracker"
)

// Harness is the scenario execution engine.
// It runs one scenario with a fixed clock, a fixed run ID and an isolated
// in-memory journal.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *testutil.FixedClock
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Create a fresh in-memory journal
//  2. Decode the backlog and compile the rule against the scenario date
//  3. Plan with the engine, then apply moves to a ListSink (rank rules)
//     or fold the planned updates into the item state (priority, status)
//  4. Evaluate assertions
//
// Runtime errors (partition defects, cycles) are captured in the result so
// error assertions can check them; any other failure is returned.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	h := &Harness{
		store: st,
		engine: engine.New(
			engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(scenario.RunID)),
			engine.WithLogger(logger),
		),
		clock:  testutil.NewFixedClock(scenario.Today),
		logger: logger,
	}

	items, err := scenario.Items()
	if err != nil {
		return nil, err
	}
	rule, err := compiler.CompileRule(scenario.Rule, h.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to compile rule: %w", err)
	}

	result := NewResult()
	result.Order = ir.Keys(items)
	recordState(result, items)

	ctx := context.Background()
	var runErr error
	switch rule.Action {
	case compiler.ActionRank:
		runErr = h.rank(ctx, items, rule.Policy, scenario.Name, result)
	case compiler.ActionPriority:
		runErr = h.priorities(items, rule.Tiers, result)
	case compiler.ActionStatus:
		runErr = h.statuses(items, result)
	}

	if runErr != nil {
		var re *engine.RuntimeError
		if !errors.As(runErr, &re) {
			return nil, runErr
		}
		result.ErrorCode = string(re.Code)
		if !expectsError(scenario.Assertions) {
			result.AddError(fmt.Sprintf("unexpected runtime error: %v", runErr))
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// rank plans the policy, applies the moves through a journaling applier and
// checks that the realized order is the planned one.
func (h *Harness) rank(ctx context.Context, items []ir.Item, policy engine.Policy, issueType string, result *Result) error {
	plan, err := h.engine.Plan(items, policy, engine.RunOptions{})
	if err != nil {
		return err
	}

	sink := tracker.NewListSink(ir.Keys(plan.Old))
	applier := apply.New(sink, apply.WithJournal(h.store), apply.WithLogger(h.logger))
	if _, err := applier.Apply(ctx, plan, issueType); err != nil {
		return fmt.Errorf("failed to apply plan: %w", err)
	}

	records, err := h.store.ReadMoves(ctx, plan.PlanID)
	if err != nil {
		return err
	}
	for _, r := range records {
		if !r.Applied() {
			return fmt.Errorf("move %d (%s) was not journaled as applied", r.Seq, r.ItemKey)
		}
		result.AddMoveTrace(r.ItemKey, r.AfterKey, r.Message)
	}

	result.Order = sink.Order()
	if want := ir.Keys(plan.New); !slices.Equal(want, result.Order) {
		result.AddError(fmt.Sprintf("applied moves produced %v, plan expected %v", result.Order, want))
	}
	return nil
}

func (h *Harness) priorities(items []ir.Item, tiers engine.TierOptions, result *Result) error {
	updates, err := h.engine.PlanPriorities(items, tiers)
	if err != nil {
		return err
	}
	for _, u := range updates {
		result.AddUpdateTrace(EventPriority, u.Key, u.From.String(), u.To.String(), u.Message)
		result.Priorities[u.Key] = u.To.String()
	}
	return nil
}

func (h *Harness) statuses(items []ir.Item, result *Result) error {
	updates, err := h.engine.PlanStatuses(items)
	if err != nil {
		return err
	}
	for _, u := range updates {
		result.AddUpdateTrace(EventStatus, u.Key, u.From.String(), u.To.String(), u.Message)
		result.Statuses[u.Key] = u.To.String()
	}
	return nil
}

// recordState stores the starting priority and status of every item and
// every ancestor reachable through parent links.
func recordState(result *Result, items []ir.Item) {
	for i := range items {
		for it := &items[i]; it != nil; it = it.Parent {
			if _, seen := result.Statuses[it.Key]; seen {
				break
			}
			result.Priorities[it.Key] = it.Priority.String()
			result.Statuses[it.Key] = it.Status.Category.String()
		}
	}
}

func expectsError(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertError {
			return true
		}
	}
	return false
}
