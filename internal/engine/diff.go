package engine

import (
	"slices"

	"github.com/roach88/prioritize/internal/ir"
)

// EmitMoves computes the moves that turn oldOrder into newOrder.
//
// Walking both orders by index, the first divergence starts reranking and
// from then on every item is explicitly placed after its predecessor in
// newOrder, even items that happen to be in place already. The tracker's
// rank is relative, so once anything upstream moved, implicit positions
// can no longer be trusted.
//
// Identical orders yield an empty, non-nil slice. Orders that are not
// permutations of each other yield a permutation mismatch.
func EmitMoves(oldOrder, newOrder []ir.Item) ([]ir.Move, error) {
	if err := checkPermutation(oldOrder, newOrder); err != nil {
		return nil, err
	}

	moves := []ir.Move{}
	if ir.ItemsEqual(oldOrder, newOrder) {
		return moves, nil
	}
	rerank := false
	for i := range newOrder {
		if newOrder[i].Key != oldOrder[i].Key {
			rerank = true
		}
		if rerank && i > 0 {
			moves = append(moves, ir.Move{
				Seq:      len(moves) + 1,
				ItemKey:  newOrder[i].Key,
				AfterKey: newOrder[i-1].Key,
			})
		}
	}
	return moves, nil
}

func checkPermutation(oldOrder, newOrder []ir.Item) error {
	counts := make(map[string]int, len(oldOrder))
	for _, it := range oldOrder {
		counts[it.Key]++
	}
	for _, it := range newOrder {
		counts[it.Key]--
	}

	var missing, extra []string
	for key, n := range counts {
		switch {
		case n > 0:
			missing = append(missing, key)
		case n < 0:
			extra = append(extra, key)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	slices.Sort(missing)
	slices.Sort(extra)
	return NewPermutationMismatch(missing, extra)
}
