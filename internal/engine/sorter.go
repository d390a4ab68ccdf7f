package engine

import (
	"cmp"
	"slices"
	"strings"
)

// SortStep reorders whole blocks. A policy runs its steps in order.
// Apply must return a permutation of its input and must not modify it.
type SortStep struct {
	Name  string
	Apply func([]Block) []Block
}

// SortBlocks runs steps over blocks and returns the final block order.
func SortBlocks(blocks []Block, steps []SortStep) []Block {
	out := slices.Clone(blocks)
	for _, s := range steps {
		out = s.Apply(out)
	}
	return out
}

// stablePartition moves blocks matching front ahead of the rest, stable on both sides.
func stablePartition(blocks []Block, front func(Block) bool) []Block {
	out := make([]Block, 0, len(blocks))
	var rest []Block
	for _, b := range blocks {
		if front(b) {
			out = append(out, b)
		} else {
			rest = append(rest, b)
		}
	}
	return append(out, rest...)
}

func kindIn(kinds []BlockKind) func(Block) bool {
	return func(b Block) bool {
		return slices.Contains(kinds, b.Kind)
	}
}

// PinFront floats blocks of the given kinds to the front.
func PinFront(kinds ...BlockKind) SortStep {
	return SortStep{Name: "pin_front", Apply: func(blocks []Block) []Block {
		return stablePartition(blocks, kindIn(kinds))
	}}
}

// PinBack sinks blocks of the given kinds to the back.
func PinBack(kinds ...BlockKind) SortStep {
	match := kindIn(kinds)
	return SortStep{Name: "pin_back", Apply: func(blocks []Block) []Block {
		return stablePartition(blocks, func(b Block) bool { return !match(b) })
	}}
}

// SwapByParentRank reorders parent blocks by their parent's rank, swapping
// blocks only within the parent's project.
//
// Blocks are grouped by parent project. Blocks without a parent form their
// own group and keep their relative order. Each project group is sorted by
// parent rank ascending (stable). The result is then re-threaded slot by
// slot: wherever the input had a block of group G, the output takes the next
// block from G's sorted list. A block therefore never lands in a slot that
// belonged to another project, and parentless blocks keep their slots.
func SwapByParentRank() SortStep {
	return SortStep{Name: "swap_by_parent_rank", Apply: func(blocks []Block) []Block {
		queues := make(map[string][]Block)
		for _, b := range blocks {
			p := b.parentProject()
			queues[p] = append(queues[p], b)
		}
		for p, q := range queues {
			if p == "" {
				continue
			}
			slices.SortStableFunc(q, func(x, y Block) int {
				return strings.Compare(x.Parent.Rank, y.Parent.Rank)
			})
		}

		out := make([]Block, 0, len(blocks))
		for _, b := range blocks {
			p := b.parentProject()
			out = append(out, queues[p][0])
			queues[p] = queues[p][1:]
		}
		return out
	}}
}

// PromoteInProgress moves blocks whose parent is In Progress ahead of the
// rest, stable otherwise. Parentless blocks are never promoted.
func PromoteInProgress() SortStep {
	return SortStep{Name: "promote_in_progress", Apply: func(blocks []Block) []Block {
		return stablePartition(blocks, Block.parentInProgress)
	}}
}

// ByTier orders tier blocks from the highest priority down. Non-tier blocks
// sort after them in their current order.
func ByTier() SortStep {
	return SortStep{Name: "by_tier", Apply: func(blocks []Block) []Block {
		out := slices.Clone(blocks)
		slices.SortStableFunc(out, func(x, y Block) int {
			xt, yt := x.Kind == KindTier, y.Kind == KindTier
			switch {
			case xt && yt:
				return cmp.Compare(y.Tier, x.Tier)
			case xt:
				return -1
			case yt:
				return 1
			}
			return 0
		})
		return out
	}}
}
