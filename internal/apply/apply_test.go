package apply

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prioritize/internal/engine"
	"github.com/roach88/prioritize/internal/ir"
	"github.com/roach88/prioritize/internal/store"
	"github.com/roach88/prioritize/internal/tracker"
)

var errTransient = errors.New("tracker unavailable")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func items(keys ...string) []ir.Item {
	out := make([]ir.Item, len(keys))
	for i, k := range keys {
		out[i] = ir.Item{Key: k, Rank: fmt.Sprint(i)}
	}
	return out
}

// testPlan reorders A,B,C,D into D,A,C,B: three moves.
func testPlan(t *testing.T, runID string, dryRun bool) *engine.Plan {
	t.Helper()
	old := items("A", "B", "C", "D")
	next := items("D", "A", "C", "B")
	moves, err := engine.EmitMoves(old, next)
	require.NoError(t, err)
	msgs := make([]string, len(moves))
	for i, m := range moves {
		msgs[i] = m.ItemKey + " moved after " + m.AfterKey
	}
	return &engine.Plan{
		RunID:    runID,
		PlanID:   ir.MustPlanID(engine.PolicyRank, ir.Keys(old), ir.Keys(next)),
		Policy:   engine.PolicyRank,
		DryRun:   dryRun,
		Old:      old,
		New:      next,
		Moves:    moves,
		Messages: msgs,
	}
}

func openJournal(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// flakySink fails each move a fixed number of times before passing it on.
type flakySink struct {
	next     tracker.MoveSink
	failures int

	mu    sync.Mutex
	seen  map[string]int
	calls int
}

func (s *flakySink) Rank(ctx context.Context, itemKey, afterKey string) error {
	s.mu.Lock()
	s.calls++
	if s.seen == nil {
		s.seen = map[string]int{}
	}
	s.seen[itemKey]++
	n := s.seen[itemKey]
	s.mu.Unlock()

	if n <= s.failures {
		return errTransient
	}
	return s.next.Rank(ctx, itemKey, afterKey)
}

// gateSink rejects one item key until opened.
type gateSink struct {
	next   tracker.MoveSink
	closed string
}

func (s *gateSink) Rank(ctx context.Context, itemKey, afterKey string) error {
	if itemKey == s.closed {
		return Permanent(fmt.Errorf("item %s is locked", itemKey))
	}
	return s.next.Rank(ctx, itemKey, afterKey)
}

func fast(maxRetries int) Option {
	return WithRetry(maxRetries, time.Millisecond)
}

func TestApply_RealizesNewOrder(t *testing.T) {
	plan := testPlan(t, "run-1", false)
	sink := tracker.NewListSink(ir.Keys(plan.Old))

	res, err := New(sink, WithLogger(quietLogger())).Apply(context.Background(), plan, "Epic")
	require.NoError(t, err)

	assert.Equal(t, Result{RunID: "run-1", PlanID: plan.PlanID, Applied: 3, AppliedSeqs: []int{1, 2, 3}}, res)
	if diff := cmp.Diff(ir.Keys(plan.New), sink.Order()); diff != "" {
		t.Errorf("sink order mismatch (-want +got):\n%s", diff)
	}
}

func TestApply_RetriesTransientFailures(t *testing.T) {
	plan := testPlan(t, "run-1", false)
	list := tracker.NewListSink(ir.Keys(plan.Old))
	sink := &flakySink{next: list, failures: 2}

	res, err := New(sink, fast(5), WithLogger(quietLogger())).Apply(context.Background(), plan, "Epic")
	require.NoError(t, err)

	assert.Equal(t, 3, res.Applied)
	assert.Equal(t, 9, sink.calls, "two failures plus one success per move")
	assert.Equal(t, ir.Keys(plan.New), list.Order())
}

func TestApply_GivesUpAfterMaxRetries(t *testing.T) {
	plan := testPlan(t, "run-1", false)
	list := tracker.NewListSink(ir.Keys(plan.Old))
	sink := &flakySink{next: list, failures: 100}

	res, err := New(sink, fast(2), WithLogger(quietLogger())).Apply(context.Background(), plan, "Epic")
	require.Error(t, err)
	assert.ErrorIs(t, err, errTransient)
	assert.Contains(t, err.Error(), "move 1 (A after D)")

	assert.Equal(t, 0, res.Applied)
	assert.Equal(t, 3, sink.calls, "first attempt plus two retries")
	assert.Equal(t, 0, list.Calls(), "later moves never attempted")
}

func TestApply_PermanentErrorNotRetried(t *testing.T) {
	plan := testPlan(t, "run-1", false)
	list := tracker.NewListSink(ir.Keys(plan.Old))
	sink := &gateSink{next: list, closed: "C"}

	res, err := New(sink, fast(5), WithLogger(quietLogger())).Apply(context.Background(), plan, "Epic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item C is locked")
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, list.Calls())
}

func TestApply_DryRunNeverCallsSink(t *testing.T) {
	plan := testPlan(t, "run-1", true)
	sink := tracker.NewListSink(ir.Keys(plan.Old))
	journal := openJournal(t)

	res, err := New(sink, WithJournal(journal), WithLogger(quietLogger())).
		Apply(context.Background(), plan, "Epic")
	require.NoError(t, err)

	assert.True(t, res.DryRun)
	assert.Zero(t, res.Applied)
	assert.Zero(t, sink.Calls())
	assert.Equal(t, ir.Keys(plan.Old), sink.Order())

	run, err := journal.ReadRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.True(t, run.DryRun)
	assert.Equal(t, 3, run.MoveCount)

	moves, err := journal.ReadMoves(context.Background(), plan.PlanID)
	require.NoError(t, err)
	require.Len(t, moves, 3)
	for _, m := range moves {
		assert.False(t, m.Applied(), "seq %d", m.Seq)
	}
}

func TestApply_JournalsRun(t *testing.T) {
	ctx := context.Background()
	plan := testPlan(t, "run-1", false)
	sink := tracker.NewListSink(ir.Keys(plan.Old))
	journal := openJournal(t)

	_, err := New(sink, WithJournal(journal), WithLogger(quietLogger())).Apply(ctx, plan, "Epic")
	require.NoError(t, err)

	run, err := journal.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "Epic", run.IssueType)
	assert.Equal(t, []string{"A", "B", "C", "D"}, run.Old)
	assert.Equal(t, []string{"D", "A", "C", "B"}, run.New)
	assert.Equal(t, ir.EngineVersion, run.EngineVersion)

	n, err := journal.CountApplied(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	moves, err := journal.ReadMoves(ctx, plan.PlanID)
	require.NoError(t, err)
	assert.Equal(t, "A moved after D", moves[0].Message)
}

func TestApply_RerunSkipsAppliedMoves(t *testing.T) {
	ctx := context.Background()
	journal := openJournal(t)
	list := tracker.NewListSink([]string{"A", "B", "C", "D"})
	gate := &gateSink{next: list, closed: "C"}

	first := testPlan(t, "run-1", false)
	res, err := New(gate, WithJournal(journal), fast(0), WithLogger(quietLogger())).Apply(ctx, first, "Epic")
	require.Error(t, err)
	assert.Equal(t, 1, res.Applied)

	gate.closed = ""
	second := testPlan(t, "run-2", false)
	require.Equal(t, first.PlanID, second.PlanID)

	res, err = New(gate, WithJournal(journal), fast(0), WithLogger(quietLogger())).Apply(ctx, second, "Epic")
	require.NoError(t, err)
	assert.Equal(t, Result{RunID: "run-2", PlanID: second.PlanID, Applied: 2, Skipped: 1, AppliedSeqs: []int{2, 3}}, res)
	assert.Equal(t, []string{"D", "A", "C", "B"}, list.Order())

	n, err := journal.CountApplied(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestResume_AppliesRemainingMoves(t *testing.T) {
	ctx := context.Background()
	journal := openJournal(t)
	list := tracker.NewListSink([]string{"A", "B", "C", "D"})
	gate := &gateSink{next: list, closed: "B"}
	applier := New(gate, WithJournal(journal), fast(0), WithLogger(quietLogger()))

	_, err := applier.Apply(ctx, testPlan(t, "run-1", false), "Epic")
	require.Error(t, err)

	gate.closed = ""
	res, err := applier.Resume(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, []string{"D", "A", "C", "B"}, list.Order())

	n, err := journal.CountApplied(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "resumed moves are credited to the original run")
}

func TestResume_DryRunPlan(t *testing.T) {
	ctx := context.Background()
	journal := openJournal(t)
	list := tracker.NewListSink([]string{"A", "B", "C", "D"})
	applier := New(list, WithJournal(journal), WithLogger(quietLogger()))

	_, err := applier.Apply(ctx, testPlan(t, "run-1", true), "Epic")
	require.NoError(t, err)
	require.Zero(t, list.Calls())

	res, err := applier.Resume(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Applied)
	assert.Equal(t, []string{"D", "A", "C", "B"}, list.Order())
}

func TestResume_Errors(t *testing.T) {
	ctx := context.Background()
	list := tracker.NewListSink(nil)

	_, err := New(list).Resume(ctx, "run-1")
	assert.ErrorContains(t, err, "no journal configured")

	_, err = New(list, WithJournal(openJournal(t))).Resume(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestApply_CancelledContext(t *testing.T) {
	plan := testPlan(t, "run-1", false)
	sink := tracker.NewListSink(ir.Keys(plan.Old))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(sink, WithLogger(quietLogger())).Apply(ctx, plan, "Epic")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Applied)
	assert.Zero(t, sink.Calls())
}

// cancelSink cancels the run from inside the first call.
type cancelSink struct {
	cancel context.CancelFunc
	calls  int
}

func (s *cancelSink) Rank(ctx context.Context, itemKey, afterKey string) error {
	s.calls++
	s.cancel()
	return errTransient
}

func TestApply_CancelStopsRetries(t *testing.T) {
	plan := testPlan(t, "run-1", false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &cancelSink{cancel: cancel}

	_, err := New(sink, WithRetry(5, time.Hour), WithLogger(quietLogger())).Apply(ctx, plan, "Epic")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sink.calls)
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errTransient, true},
		{fmt.Errorf("wrapped: %w", errTransient), true},
		{Permanent(errTransient), false},
		{fmt.Errorf("wrapped: %w", Permanent(errTransient)), false},
		{context.Canceled, false},
		{fmt.Errorf("rank: %w", context.DeadlineExceeded), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shouldRetry(tt.err), "%v", tt.err)
	}
	assert.Nil(t, Permanent(nil))
}

func TestWithRetry_KeepsDefaultsForInvalidValues(t *testing.T) {
	a := New(tracker.NewListSink(nil), WithRetry(-1, 0))
	assert.Equal(t, uint64(DefaultMaxRetries), a.maxRetries)
	assert.Equal(t, DefaultInterval, a.interval)

	a = New(tracker.NewListSink(nil), WithRetry(0, 5*time.Millisecond))
	assert.Equal(t, uint64(0), a.maxRetries)
	assert.Equal(t, 5*time.Millisecond, a.interval)
}
