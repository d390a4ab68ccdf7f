package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prioritize/internal/ir"
)

func testRun(id, planID string) Run {
	return Run{
		ID:             id,
		PlanID:         planID,
		Policy:         "rank",
		IssueType:      "Epic",
		Old:            []string{"A", "B", "C"},
		New:            []string{"C", "A", "B"},
		MoveCount:      2,
		EngineVersion:  ir.EngineVersion,
		JournalVersion: ir.JournalVersion,
	}
}

var testMoves = []ir.Move{
	{Seq: 1, ItemKey: "A", AfterKey: "C"},
	{Seq: 2, ItemKey: "B", AfterKey: "A"},
}

func TestWriteRun_AssignsSequence(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	seq1, err := s.WriteRun(ctx, testRun("run-1", "plan-1"))
	require.NoError(t, err)
	seq2, err := s.WriteRun(ctx, testRun("run-2", "plan-1"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), seq1)
	assert.Equal(t, int64(2), seq2)

	again, err := s.WriteRun(ctx, testRun("run-1", "plan-1"))
	require.NoError(t, err)
	assert.Equal(t, seq1, again, "rewriting a run keeps its seq")
}

func TestReadRun_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	want := testRun("run-1", "plan-1")
	want.DryRun = true
	seq, err := s.WriteRun(ctx, want)
	require.NoError(t, err)
	want.Seq = seq

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestReadRun_EmptyOrders(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	run := testRun("run-1", "plan-1")
	run.Old, run.New = nil, nil
	_, err := s.WriteRun(ctx, run)
	require.NoError(t, err)

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{}, got.Old)
	assert.Equal(t, []string{}, got.New)
}

func TestListRuns_Ordered(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)

	for _, id := range []string{"zz", "aa", "mm"} {
		_, err := s.WriteRun(ctx, testRun(id, "plan"))
		require.NoError(t, err)
	}

	runs, err = s.ListRuns(ctx)
	require.NoError(t, err)
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"zz", "aa", "mm"}, ids, "journal order, not key order")
}

func TestWriteMoves_ReadMoves(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.WriteMoves(ctx, "plan-1", testMoves, []string{"first", "second"}))

	moves, err := s.ReadMoves(ctx, "plan-1")
	require.NoError(t, err)
	require.Len(t, moves, 2)

	assert.Equal(t, ir.MustMoveID("plan-1", testMoves[0]), moves[0].ID)
	assert.Equal(t, testMoves[0], moves[0].Move())
	assert.Equal(t, "first", moves[0].Message)
	assert.Equal(t, testMoves[1], moves[1].Move())
	assert.False(t, moves[0].Applied())
}

func TestWriteMoves_MessageCountMismatch(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteMoves(context.Background(), "plan-1", testMoves, []string{"only one"})
	assert.ErrorContains(t, err, "1 messages for 2 moves")
}

func TestReadMoves_Empty(t *testing.T) {
	s := createTestStore(t)
	moves, err := s.ReadMoves(context.Background(), "plan-x")
	require.NoError(t, err)
	assert.NotNil(t, moves)
	assert.Empty(t, moves)
}

func TestMarkApplied(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, err := s.WriteRun(ctx, testRun("run-1", "plan-1"))
	require.NoError(t, err)
	_, err = s.WriteRun(ctx, testRun("run-2", "plan-1"))
	require.NoError(t, err)
	require.NoError(t, s.WriteMoves(ctx, "plan-1", testMoves, nil))

	id := ir.MustMoveID("plan-1", testMoves[0])
	require.NoError(t, s.MarkApplied(ctx, id, "run-1"))
	require.NoError(t, s.MarkApplied(ctx, id, "run-2"), "marking twice is a no-op")

	applied, err := s.AppliedMoveIDs(ctx, "plan-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{id: true}, applied)

	moves, err := s.ReadMoves(ctx, "plan-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", moves[0].AppliedRunID, "first applying run is kept")

	n, err := s.CountApplied(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMarkApplied_UnknownMove(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	_, err := s.WriteRun(ctx, testRun("run-1", "plan-1"))
	require.NoError(t, err)

	err = s.MarkApplied(ctx, "nope", "run-1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMarkApplied_UnknownRunViolatesForeignKey(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.WriteMoves(ctx, "plan-1", testMoves, nil))

	err := s.MarkApplied(ctx, ir.MustMoveID("plan-1", testMoves[0]), "ghost-run")
	assert.Error(t, err)
}

func TestWriteMoves_RewriteKeepsAppliedState(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	_, err := s.WriteRun(ctx, testRun("run-1", "plan-1"))
	require.NoError(t, err)

	require.NoError(t, s.WriteMoves(ctx, "plan-1", testMoves, nil))
	id := ir.MustMoveID("plan-1", testMoves[0])
	require.NoError(t, s.MarkApplied(ctx, id, "run-1"))

	require.NoError(t, s.WriteMoves(ctx, "plan-1", testMoves, nil))

	applied, err := s.AppliedMoveIDs(ctx, "plan-1")
	require.NoError(t, err)
	assert.True(t, applied[id])
}

func TestMessages(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	_, err := s.WriteRun(ctx, testRun("run-1", "plan-1"))
	require.NoError(t, err)

	require.NoError(t, s.WriteMessage(ctx, Message{RunID: "run-1", Seq: 2, ItemKey: "B", Body: "second"}))
	require.NoError(t, s.WriteMessage(ctx, Message{RunID: "run-1", Seq: 1, ItemKey: "A", Body: "first"}))
	require.NoError(t, s.WriteMessage(ctx, Message{RunID: "run-1", Seq: 1, ItemKey: "A", Body: "duplicate"}))

	msgs, err := s.ReadMessages(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []Message{
		{RunID: "run-1", Seq: 1, ItemKey: "A", Body: "first"},
		{RunID: "run-1", Seq: 2, ItemKey: "B", Body: "second"},
	}, msgs)
}
