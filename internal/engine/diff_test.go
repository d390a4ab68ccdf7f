package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prioritize/internal/ir"
)

func keyed(keys ...string) []ir.Item {
	out := make([]ir.Item, len(keys))
	for i, k := range keys {
		out[i] = ir.Item{Key: k}
	}
	return out
}

func TestEmitMoves_IdenticalOrders(t *testing.T) {
	moves, err := EmitMoves(keyed("A", "B", "C"), keyed("A", "B", "C"))
	require.NoError(t, err)
	assert.NotNil(t, moves)
	assert.Empty(t, moves)
}

func TestEmitMoves_Empty(t *testing.T) {
	moves, err := EmitMoves(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, moves)
}

func TestEmitMoves_StickyAfterDivergence(t *testing.T) {
	// D and E are already in place but are still repositioned.
	moves, err := EmitMoves(keyed("A", "B", "C", "D", "E"), keyed("A", "C", "B", "D", "E"))
	require.NoError(t, err)

	assert.Equal(t, []ir.Move{
		{Seq: 1, ItemKey: "C", AfterKey: "A"},
		{Seq: 2, ItemKey: "B", AfterKey: "C"},
		{Seq: 3, ItemKey: "D", AfterKey: "B"},
		{Seq: 4, ItemKey: "E", AfterKey: "D"},
	}, moves)
}

func TestEmitMoves_DivergenceAtHead(t *testing.T) {
	// No move for index 0: there is nothing to place it after.
	moves, err := EmitMoves(keyed("A", "B"), keyed("B", "A"))
	require.NoError(t, err)
	assert.Equal(t, []ir.Move{{Seq: 1, ItemKey: "A", AfterKey: "B"}}, moves)
}

func TestEmitMoves_RealizesNewOrder(t *testing.T) {
	old := keyed("A", "B", "C", "D", "E", "F")
	next := keyed("A", "E", "B", "F", "C", "D")

	moves, err := EmitMoves(old, next)
	require.NoError(t, err)

	// Apply moves to a plain key list.
	list := ir.Keys(old)
	for _, m := range moves {
		list = moveAfter(list, m.ItemKey, m.AfterKey)
	}
	assert.Equal(t, ir.Keys(next), list)
}

func moveAfter(list []string, key, after string) []string {
	out := make([]string, 0, len(list))
	for _, k := range list {
		if k != key {
			out = append(out, k)
		}
	}
	for i, k := range out {
		if k == after {
			return append(out[:i+1], append([]string{key}, out[i+1:]...)...)
		}
	}
	return out
}

func TestEmitMoves_PermutationMismatch(t *testing.T) {
	tests := []struct {
		name     string
		old, new []ir.Item
	}{
		{"dropped item", keyed("A", "B", "C"), keyed("A", "B")},
		{"added item", keyed("A", "B"), keyed("A", "B", "C")},
		{"substituted item", keyed("A", "B"), keyed("A", "X")},
		{"duplicated item", keyed("A", "B"), keyed("A", "A")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EmitMoves(tt.old, tt.new)
			require.Error(t, err)
			assert.True(t, IsPermutationMismatch(err))
			assert.False(t, IsPartitionDefect(err))
		})
	}
}

func TestEmitMoves_MismatchDetails(t *testing.T) {
	_, err := EmitMoves(keyed("A", "B", "C"), keyed("A", "X", "Y"))

	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "B,C", re.Details["missing"])
	assert.Equal(t, "X,Y", re.Details["extra"])
}
