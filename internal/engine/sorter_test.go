package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/roach88/prioritize/internal/ir"
)

// epicBlocks builds the documented swap example:
//
//	[Epic1, Epic2] -> FeatureA (ProjectX), [Epic3] -> FeatureB (ProjectY),
//	[Epic4] orphan, [Epic5] -> FeatureC (ProjectX)
func epicBlocks(rankA, rankC string) []Block {
	featureA := &ir.Item{Key: "FeatureA", Project: "X", Rank: rankA}
	featureB := &ir.Item{Key: "FeatureB", Project: "Y", Rank: "5"}
	featureC := &ir.Item{Key: "FeatureC", Project: "X", Rank: rankC}
	epic := func(key string, parent *ir.Item) ir.Item {
		return ir.Item{Key: key, Project: "EPICS", Parent: parent}
	}
	return []Block{
		{Name: "parent", Kind: KindParent, Parent: featureA, Items: []ir.Item{epic("Epic1", featureA), epic("Epic2", featureA)}},
		{Name: "parent", Kind: KindParent, Parent: featureB, Items: []ir.Item{epic("Epic3", featureB)}},
		{Name: "orphan", Kind: KindOrphan, Items: []ir.Item{epic("Epic4", nil)}},
		{Name: "parent", Kind: KindParent, Parent: featureC, Items: []ir.Item{epic("Epic5", featureC)}},
	}
}

func TestSwapByParentRank_SwapsWithinProject(t *testing.T) {
	got := SwapByParentRank().Apply(epicBlocks("2", "1"))

	want := [][]string{{"Epic5"}, {"Epic3"}, {"Epic4"}, {"Epic1", "Epic2"}}
	if diff := cmp.Diff(want, blockKeys(got)); diff != "" {
		t.Errorf("block order mismatch (-want +got):\n%s", diff)
	}
}

func TestSwapByParentRank_NoChangeWhenAlreadyRanked(t *testing.T) {
	got := SwapByParentRank().Apply(epicBlocks("1", "2"))

	want := [][]string{{"Epic1", "Epic2"}, {"Epic3"}, {"Epic4"}, {"Epic5"}}
	assert.Equal(t, want, blockKeys(got))
}

func TestSwapByParentRank_ProjectIsolation(t *testing.T) {
	before := epicBlocks("1", "2")
	after := SwapByParentRank().Apply(epicBlocks("2", "1"))

	// Blocks outside project X keep their exact slots.
	for i := range before {
		if before[i].parentProject() == "X" {
			assert.Equal(t, "X", after[i].parentProject(), "slot %d changed project", i)
			continue
		}
		assert.Equal(t, before[i].Keys(), after[i].Keys(), "slot %d", i)
	}
}

func TestSwapByParentRank_EqualRanksStable(t *testing.T) {
	got := SwapByParentRank().Apply(epicBlocks("1", "1"))
	assert.Equal(t, [][]string{{"Epic1", "Epic2"}, {"Epic3"}, {"Epic4"}, {"Epic5"}}, blockKeys(got))
}

func TestSwapByParentRank_DoesNotMutateInput(t *testing.T) {
	in := epicBlocks("2", "1")
	_ = SwapByParentRank().Apply(in)
	assert.Equal(t, "Epic1", in[0].Items[0].Key)
	assert.Equal(t, "Epic5", in[3].Items[0].Key)
}

func TestPromoteInProgress(t *testing.T) {
	blocks := epicBlocks("1", "2")
	blocks[3].Parent.Status.Category = ir.StatusInProgress
	blocks[1].Parent.Status.Category = ir.StatusInProgress

	got := PromoteInProgress().Apply(blocks)
	assert.Equal(t, [][]string{{"Epic3"}, {"Epic5"}, {"Epic1", "Epic2"}, {"Epic4"}}, blockKeys(got))
}

func TestPinFrontAndBack(t *testing.T) {
	blocks := []Block{
		{Name: "inert", Kind: KindInert, Items: []ir.Item{{Key: "A"}}},
		{Name: "tail", Kind: KindTail, Items: []ir.Item{{Key: "B"}}},
		{Name: "due", Kind: KindDueSoon, Items: []ir.Item{{Key: "C"}}},
		{Name: "fix", Kind: KindFixVersion, Items: []ir.Item{{Key: "D"}}},
	}

	front := PinFront(KindFixVersion, KindDueSoon).Apply(blocks)
	assert.Equal(t, []string{"due", "fix", "inert", "tail"}, blockNames(front))

	back := PinBack(KindInert).Apply(blocks)
	assert.Equal(t, []string{"tail", "due", "fix", "inert"}, blockNames(back))
}

func TestByTier(t *testing.T) {
	blocks := []Block{
		{Name: "Minor", Kind: KindTier, Tier: ir.PriorityMinor},
		{Name: "other", Kind: KindInert},
		{Name: "Critical", Kind: KindTier, Tier: ir.PriorityCritical},
		{Name: "Normal", Kind: KindTier, Tier: ir.PriorityNormal},
	}

	got := ByTier().Apply(blocks)
	assert.Equal(t, []string{"Critical", "Normal", "Minor", "other"}, blockNames(got))
}

func TestSortBlocks_RunsStepsInOrder(t *testing.T) {
	blocks := epicBlocks("2", "1")
	blocks[0].Parent.Status.Category = ir.StatusInProgress

	got := SortBlocks(blocks, []SortStep{SwapByParentRank(), PromoteInProgress()})
	assert.Equal(t, [][]string{{"Epic1", "Epic2"}, {"Epic5"}, {"Epic3"}, {"Epic4"}}, blockKeys(got))
}
