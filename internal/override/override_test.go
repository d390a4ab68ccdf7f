package override

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prioritize/internal/engine"
	"github.com/roach88/prioritize/internal/ir"
	"github.com/roach88/prioritize/internal/testutil"
)

// Evaluator must satisfy the engine's predicate contract.
var _ engine.Predicate = (*Evaluator)(nil)

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"syntax", "key =="},
		{"unknown variable", "assignee == 'me'"},
		{"not bool", "key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.expr)
			assert.Error(t, err)
		})
	}
}

func TestMatch(t *testing.T) {
	item := testutil.NewItem("child2", "4", nil)
	item.Components = []string{"Component2"}
	item.Labels = []string{"pinned"}
	item.Priority = ir.PriorityMajor
	item.Status.Category = ir.StatusInProgress

	tests := []struct {
		expr string
		want bool
	}{
		{"key == 'child2'", true},
		{"key == 'child1'", false},
		{"components.exists(c, c in ['Component2'])", true},
		{"components.exists(c, c in ['RPM Build'])", false},
		{"'pinned' in labels", true},
		{"project == 'TESTPROJECT' && priority == 'Major'", true},
		{"status == 'In Progress'", true},
		{"size(labels) > 1", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ev, err := Compile(tt.expr)
			require.NoError(t, err)

			got, err := ev.Match(item)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatch_NilListsAreEmpty(t *testing.T) {
	ev, err := Compile("components.exists(c, c == 'x') || size(labels) > 0")
	require.NoError(t, err)

	got, err := ev.Match(testutil.NewItem("A", "0", nil))
	require.NoError(t, err)
	assert.False(t, got)
}

func TestMatch_RuntimeError(t *testing.T) {
	ev, err := Compile("labels[3] == 'x'")
	require.NoError(t, err)

	_, err = ev.Match(testutil.NewItem("A", "0", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A")
}

func TestOverrideBeatsDueDate(t *testing.T) {
	ev, err := Compile("components.exists(c, c in ['Component2'])")
	require.NoError(t, err)

	p := engine.TimeSensitivePolicy(testutil.ReferenceDate, engine.TimeSensitiveOptions{Override: ev})
	plan, err := engine.New().Plan(testutil.OverrideBacklog(), p, engine.RunOptions{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"child1"}, plan.Blocks[0].Keys(), "child1 is due and not overridden")
	assert.Contains(t, plan.Blocks[1].Keys(), "child2")
}
