package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prioritize/internal/ir"
	"github.com/roach88/prioritize/internal/testutil"
)

func blockKeys(blocks []Block) [][]string {
	out := make([][]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Keys()
	}
	return out
}

func blockNames(blocks []Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Name
	}
	return out
}

func TestPartition_LeadingBlocksAlwaysExist(t *testing.T) {
	p := TimeSensitivePolicy(testutil.ReferenceDate, TimeSensitiveOptions{})

	blocks, err := Partition(testutil.Backlog(), p.Blocks, p.Classifiers)
	require.NoError(t, err)

	assert.Equal(t, []string{"due_soon", "inert", "tail"}, blockNames(blocks))
	assert.Empty(t, blocks[0].Items, "nothing is due, block still exists")
	assert.Equal(t, []string{"child0", "child1", "child2", "child3"}, blocks[1].Keys())
	assert.Equal(t, []string{"child4"}, blocks[2].Keys())
}

func TestPartition_EmptyInput(t *testing.T) {
	p := TimeSensitivePolicy(testutil.ReferenceDate, TimeSensitiveOptions{})

	blocks, err := Partition(nil, p.Blocks, p.Classifiers)
	require.NoError(t, err)
	assert.Len(t, blocks, 3)
	assert.Empty(t, Flatten(blocks))
}

func TestPartition_DueDateBlocks(t *testing.T) {
	p := TimeSensitivePolicy(testutil.ReferenceDate, TimeSensitiveOptions{})

	blocks, err := Partition(testutil.DueDateBacklog(), p.Blocks, p.Classifiers)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"child4", "child5"},
		{"child1", "child2", "child3"},
		{"child6"},
	}, blockKeys(blocks))
}

func TestPartition_ExhaustiveAndDisjoint(t *testing.T) {
	items := testutil.DueDateBacklog()
	policies := []Policy{
		RankPolicy(RankOptions{}),
		TimeSensitivePolicy(testutil.ReferenceDate, TimeSensitiveOptions{}),
		FixVersionPolicy(testutil.ReferenceDate, FixVersionOptions{}),
		TierPolicy(),
	}
	for _, p := range policies {
		t.Run(p.Name, func(t *testing.T) {
			blocks, err := Partition(items, p.Blocks, p.Classifiers)
			require.NoError(t, err)

			seen := map[string]int{}
			for _, b := range blocks {
				for _, it := range b.Items {
					seen[it.Key]++
				}
			}
			assert.Len(t, seen, len(items))
			for key, n := range seen {
				assert.Equal(t, 1, n, "%s claimed %d times", key, n)
			}
		})
	}
}

func TestPartition_ParentAffinity(t *testing.T) {
	p1 := testutil.NewItem("P1", "0", nil)
	items := []ir.Item{
		testutil.NewItem("A", "1", &p1),
		testutil.NewItem("O", "2", nil),
		testutil.NewItem("B", "3", &p1),
		testutil.NewItem("O2", "4", nil),
	}
	policy := RankPolicy(RankOptions{})

	blocks, err := Partition(items, policy.Blocks, policy.Classifiers)
	require.NoError(t, err)

	// An orphan between siblings breaks their run into two blocks.
	assert.Equal(t, [][]string{{"A"}, {"O"}, {"B"}, {"O2"}}, blockKeys(blocks))
	assert.Equal(t, KindParent, blocks[0].Kind)
	assert.Equal(t, "P1", blocks[0].Parent.Key)
	assert.True(t, blocks[0].LeadWithParent)
	assert.Equal(t, KindOrphan, blocks[1].Kind)
	assert.Nil(t, blocks[1].Parent)
	assert.Equal(t, "P1", blocks[2].Parent.Key)
	assert.False(t, blocks[2].LeadWithParent, "parent already leads the first run")
}

func TestPartition_SiblingRunsShareABlock(t *testing.T) {
	p1 := testutil.NewItem("P1", "0", nil)
	p2 := testutil.NewItem("P2", "1", nil)
	items := []ir.Item{
		testutil.NewItem("A", "2", &p1),
		testutil.NewItem("B", "3", &p1),
		testutil.NewItem("C", "4", &p2),
		testutil.NewItem("D", "5", &p1),
	}
	policy := RankPolicy(RankOptions{})

	blocks, err := Partition(items, policy.Blocks, policy.Classifiers)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"A", "B"}, {"C"}, {"D"}}, blockKeys(blocks))
	assert.Equal(t, []bool{true, true, false},
		[]bool{blocks[0].LeadWithParent, blocks[1].LeadWithParent, blocks[2].LeadWithParent})
}

func TestPartition_ParentLeadsOnlyWithinProjectAndWhenExternal(t *testing.T) {
	other := ir.Item{Key: "OTHER-1", Rank: "0", Project: "OTHER"}
	inside := testutil.NewItem("P", "1", nil)
	items := []ir.Item{
		inside,
		testutil.NewItem("A", "2", &other),
		testutil.NewItem("B", "3", &inside),
	}
	policy := RankPolicy(RankOptions{})

	blocks, err := Partition(items, policy.Blocks, policy.Classifiers)
	require.NoError(t, err)
	require.Len(t, blocks, 3)

	assert.False(t, blocks[1].LeadWithParent, "parent in another project")
	assert.False(t, blocks[2].LeadWithParent, "parent is already an input item")
}

func TestPartition_RemainderPositions(t *testing.T) {
	items := testutil.RankedBacklog(4)
	var seen []ClaimContext
	classifiers := []Classifier{
		{Name: "first", Target: "a", Claims: func(c ClaimContext) (bool, error) { return c.Item.Key == "item0", nil }},
		{Name: "rest", Target: "b", Remainder: true, Claims: func(c ClaimContext) (bool, error) {
			seen = append(seen, c)
			return true, nil
		}},
	}
	specs := []BlockSpec{{Name: "a", Kind: KindInert}, {Name: "b", Kind: KindInert}}

	blocks, err := Partition(items, specs, classifiers)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"item0"}, {"item1", "item2", "item3"}}, blockKeys(blocks))

	require.Len(t, seen, 3)
	for j, c := range seen {
		assert.Equal(t, j, c.Index)
		assert.Len(t, c.Items, 3)
	}
	assert.InDelta(t, 2.0/3.0, seen[2].Position(), 1e-9)
}

func TestPartition_DefectWithoutCatchAll(t *testing.T) {
	specs := []BlockSpec{{Name: "due", Kind: KindDueSoon, Leading: true}}
	classifiers := []Classifier{{Name: "due", Target: "due", Claims: DueWithin(testutil.ReferenceDate, 120)}}

	_, err := Partition(testutil.Backlog(), specs, classifiers)
	require.Error(t, err)
	assert.True(t, IsPartitionDefect(err))

	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "child0", re.ItemKey)
}

func TestPartition_UnknownTarget(t *testing.T) {
	classifiers := []Classifier{{Name: "all", Target: "missing", Claims: CatchAll()}}

	_, err := Partition(testutil.Backlog(), nil, classifiers)
	require.Error(t, err)

	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, ErrCodeUnknownBlock, re.Code)
}

func TestPartition_ClaimErrorAborts(t *testing.T) {
	boom := errors.New("expression failed")
	p := TimeSensitivePolicy(testutil.ReferenceDate, TimeSensitiveOptions{
		Override: PredicateFunc(func(ir.Item) (bool, error) { return false, boom }),
	})

	_, err := Partition(testutil.Backlog(), p.Blocks, p.Classifiers)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "manual_override")
	assert.Contains(t, err.Error(), "child0")
}

func TestPartition_DoesNotMutateInput(t *testing.T) {
	items := testutil.DueDateBacklog()
	before := ir.Keys(items)
	p := TimeSensitivePolicy(testutil.ReferenceDate, TimeSensitiveOptions{})

	blocks, err := Partition(items, p.Blocks, p.Classifiers)
	require.NoError(t, err)
	_ = Flatten(SortBlocks(blocks, p.Steps))

	assert.Equal(t, before, ir.Keys(items))
}
