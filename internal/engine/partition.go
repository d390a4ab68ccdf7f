package engine

import (
	"fmt"

	"github.com/roach88/prioritize/internal/ir"
)

// Partition assigns every item to exactly one block.
//
// Leading specs become blocks first, in declaration order. Each item then goes
// to the first classifier that claims it; blocks that do not exist yet are
// created in order of first claim. Items keep arrival order inside a block.
// A grouped block only grows while its run is unbroken: an item whose group
// key matches an earlier, interrupted run starts a new block.
//
// An item no classifier claims is a partition defect. A claim error aborts
// the partition and is returned wrapped with the classifier and item.
func Partition(items []ir.Item, specs []BlockSpec, classifiers []Classifier) ([]Block, error) {
	byName := make(map[string]BlockSpec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}
	for _, c := range classifiers {
		if _, ok := byName[c.Target]; !ok {
			return nil, &RuntimeError{
				Code:    ErrCodeUnknownBlock,
				Message: fmt.Sprintf("classifier %q targets undeclared block %q", c.Name, c.Target),
			}
		}
	}

	p := partitioner{
		byName: byName,
		shared: make(map[string]int),
		groups: make(map[string]int),
		last:   -1,
	}
	for _, s := range specs {
		if s.Leading {
			p.shared[s.Name] = len(p.blocks)
			p.blocks = append(p.blocks, newBlock(s))
		}
	}

	claims, err := claimAll(items, classifiers)
	if err != nil {
		return nil, err
	}
	for i, item := range items {
		if claims[i] < 0 {
			return nil, NewPartitionDefect(item.Key)
		}
		c := classifiers[claims[i]]
		idx := p.blockFor(c, item)
		p.blocks[idx].Items = append(p.blocks[idx].Items, item)
		p.last = idx
	}

	markParentLed(p.blocks, items)
	return p.blocks, nil
}

// claimAll runs the classifiers in precedence order over the items still
// unclaimed and returns, per item, the index of the winning classifier or -1.
func claimAll(items []ir.Item, classifiers []Classifier) ([]int, error) {
	claims := make([]int, len(items))
	for i := range claims {
		claims[i] = -1
	}

	for k, c := range classifiers {
		var open []int
		for i := range items {
			if claims[i] < 0 {
				open = append(open, i)
			}
		}
		if len(open) == 0 {
			break
		}

		scope := items
		if c.Remainder {
			scope = make([]ir.Item, len(open))
			for j, i := range open {
				scope[j] = items[i]
			}
		}
		for j, i := range open {
			ctx := ClaimContext{Item: items[i], Index: i, Items: scope}
			if c.Remainder {
				ctx.Index = j
			}
			ok, err := c.Claims(ctx)
			if err != nil {
				return nil, fmt.Errorf("classifier %s on %s: %w", c.Name, items[i].Key, err)
			}
			if ok {
				claims[i] = k
			}
		}
	}
	return claims, nil
}

type partitioner struct {
	byName map[string]BlockSpec
	blocks []Block
	shared map[string]int // spec name -> block index, ungrouped specs
	groups map[string]int // spec name + group key -> latest block index
	last   int            // block that received the previous item
}

func (p *partitioner) blockFor(c Classifier, item ir.Item) int {
	spec := p.byName[c.Target]

	if c.GroupBy == nil {
		if idx, ok := p.shared[spec.Name]; ok {
			return idx
		}
		p.shared[spec.Name] = len(p.blocks)
		p.blocks = append(p.blocks, newBlock(spec))
		return len(p.blocks) - 1
	}

	key := c.GroupBy(item)
	if key != "" {
		if idx, ok := p.groups[spec.Name+"\x00"+key]; ok && idx == p.last {
			return idx
		}
		p.groups[spec.Name+"\x00"+key] = len(p.blocks)
	}
	b := newBlock(spec)
	if spec.Kind == KindParent {
		b.Parent = item.Parent
	}
	p.blocks = append(p.blocks, b)
	return len(p.blocks) - 1
}

// markParentLed decides which parent blocks emit their parent. The parent
// leads its first block when it shares that block's first child's project
// and is not already an input item. Later runs under the same parent never
// lead, so the parent appears at most once.
func markParentLed(blocks []Block, items []ir.Item) {
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		seen[it.Key] = true
	}
	for i := range blocks {
		b := &blocks[i]
		if b.Parent == nil || len(b.Items) == 0 || seen[b.Parent.Key] {
			continue
		}
		seen[b.Parent.Key] = true
		b.LeadWithParent = b.Parent.Project == b.Items[0].Project
	}
}
