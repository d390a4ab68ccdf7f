package tracker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prioritize/internal/ir"
)

const sampleBacklog = `
parents:
  - key: EPIC-1
    rank: "000015"
    project: PROJ
    status:
      category: In Progress
items:
  - key: PROJ-3
    rank: "000030"
    project: PROJ
    priority: Major
    due_date: 2026-03-01
    labels: [pinned]
  - key: PROJ-1
    rank: "000010"
    project: PROJ
    parent: EPIC-1
  - key: PROJ-2
    rank: "000020"
    project: PROJ
    parent: EPIC-1
    rice_score: 12.5
    components: [api]
    fix_versions:
      - name: "1.0"
        release_date: 2026-02-01
`

func writeBacklog(t *testing.T, content string) *FileBacklog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	b, err := OpenFileBacklog(path)
	require.NoError(t, err)
	return b
}

func TestFileBacklog_Snapshot(t *testing.T) {
	b := writeBacklog(t, sampleBacklog)

	items, err := b.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"PROJ-1", "PROJ-2", "PROJ-3"}, ir.Keys(items), "sorted by rank")

	require.NotNil(t, items[0].Parent)
	assert.Equal(t, "EPIC-1", items[0].Parent.Key)
	assert.Equal(t, ir.StatusInProgress, items[0].Parent.Status.Category)
	assert.Same(t, items[0].Parent, items[1].Parent, "siblings share one parent snapshot")

	assert.Equal(t, 12.5, items[1].Score())
	assert.Equal(t, []string{"api"}, items[1].Components)
	require.NotNil(t, items[1].EarliestFixVersion())
	assert.Equal(t, "1.0", items[1].EarliestFixVersion().Name)

	assert.Equal(t, ir.PriorityMajor, items[2].Priority)
	require.NotNil(t, items[2].DueDate)
	assert.True(t, items[2].DueDate.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, items[2].Parent)
}

func TestFileBacklog_SnapshotErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown parent", "items:\n  - key: A\n    rank: \"1\"\n    parent: NOPE\n", "unknown parent NOPE"},
		{"duplicate key", "items:\n  - key: A\n    rank: \"1\"\n  - key: A\n    rank: \"2\"\n", "duplicate key A"},
		{"empty key", "items:\n  - rank: \"1\"\n", "empty key"},
		{"unknown field", "items:\n  - key: A\n    colour: red\n", "colour"},
		{"bad priority", "items:\n  - key: A\n    priority: Urgent\n", "Urgent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := writeBacklog(t, tt.content)
			_, err := b.Snapshot(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFileBacklog_EmptyFile(t *testing.T) {
	b := writeBacklog(t, "")
	items, err := b.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFileBacklog_Rank(t *testing.T) {
	ctx := context.Background()
	b := writeBacklog(t, sampleBacklog)

	require.NoError(t, b.Rank(ctx, "PROJ-3", "PROJ-1"))

	items, err := b.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"PROJ-1", "PROJ-3", "PROJ-2"}, ir.Keys(items))

	// Global order after the move: PROJ-1, PROJ-3, EPIC-1, PROJ-2.
	assert.Equal(t, FormatRank(0), items[0].Rank)
	assert.Equal(t, FormatRank(1), items[1].Rank)
	assert.Equal(t, FormatRank(2), items[0].Parent.Rank)
	assert.Equal(t, FormatRank(3), items[2].Rank)

	// Repeating the move changes nothing.
	require.NoError(t, b.Rank(ctx, "PROJ-3", "PROJ-1"))
	again, err := b.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, ir.Keys(items), ir.Keys(again))
}

func TestFileBacklog_RankParent(t *testing.T) {
	ctx := context.Background()
	b := writeBacklog(t, sampleBacklog)

	require.NoError(t, b.Rank(ctx, "EPIC-1", "PROJ-3"))

	items, err := b.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, FormatRank(3), items[0].Parent.Rank, "parent now ranks last")
}

func TestFileBacklog_RankUnknownKey(t *testing.T) {
	b := writeBacklog(t, sampleBacklog)
	before, err := os.ReadFile(b.Path())
	require.NoError(t, err)

	err = b.Rank(context.Background(), "PROJ-9", "PROJ-1")
	assert.ErrorContains(t, err, "unknown item PROJ-9")

	after, err := os.ReadFile(b.Path())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "failed updates do not rewrite the file")
}

func TestFileBacklog_SetPriorityAndTransition(t *testing.T) {
	ctx := context.Background()
	b := writeBacklog(t, sampleBacklog)

	require.NoError(t, b.SetPriority(ctx, "PROJ-1", ir.PriorityCritical))
	require.NoError(t, b.Transition(ctx, "EPIC-1", ir.StatusDone, "Closed"))

	items, err := b.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, ir.PriorityCritical, items[0].Priority)
	assert.Equal(t, ir.Status{Category: ir.StatusDone, Name: "Closed"}, items[0].Parent.Status)

	assert.ErrorContains(t, b.SetPriority(ctx, "NOPE", ir.PriorityMinor), "unknown item NOPE")
}

func TestOpenFileBacklog_Missing(t *testing.T) {
	_, err := OpenFileBacklog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFormatRank(t *testing.T) {
	assert.Equal(t, "000010", FormatRank(0))
	assert.Equal(t, "000120", FormatRank(11))
	assert.Less(t, FormatRank(9), FormatRank(10), "ranks sort lexicographically")
}

func TestParseBacklog(t *testing.T) {
	items, err := ParseBacklog([]byte(sampleBacklog))
	require.NoError(t, err)
	assert.Equal(t, []string{"PROJ-1", "PROJ-2", "PROJ-3"}, ir.Keys(items))
	require.NotNil(t, items[0].Parent)
	assert.Equal(t, "EPIC-1", items[0].Parent.Key)

	_, err = ParseBacklog([]byte("items:\n  - key: A\n    parent: B\n"))
	assert.ErrorContains(t, err, "A: unknown parent B")
}
