package engine

import (
	"github.com/roach88/prioritize/internal/ir"
)

// Node is one item in a Hierarchy arena.
type Node struct {
	Item     ir.Item
	Parent   int   // Index of the parent node, -1 for roots
	Children []int // Indexes of child nodes, in input order
}

// Hierarchy is a flat arena of items linked by index.
//
// Building the arena once from a snapshot replaces per-node tracker calls:
// every aggregation afterwards is a pure pass over the slice.
type Hierarchy struct {
	Nodes []Node
	index map[string]int
}

// Lookup returns the node index for key.
func (h *Hierarchy) Lookup(key string) (int, bool) {
	i, ok := h.index[key]
	return i, ok
}

// BuildHierarchy links items to their parents.
//
// Parents referenced by an item but absent from the list are added as extra
// nodes after the input items. Any chain that loops back on itself is a
// hierarchy cycle.
func BuildHierarchy(items []ir.Item) (*Hierarchy, error) {
	h := &Hierarchy{index: make(map[string]int, len(items))}

	add := func(item ir.Item) int {
		if i, ok := h.index[item.Key]; ok {
			return i
		}
		h.index[item.Key] = len(h.Nodes)
		h.Nodes = append(h.Nodes, Node{Item: item, Parent: -1})
		return len(h.Nodes) - 1
	}

	for _, it := range items {
		add(it)
	}
	// Walk parent chains, registering external ancestors as we go.
	for i := 0; i < len(h.Nodes); i++ {
		p := h.Nodes[i].Item.Parent
		if p == nil {
			continue
		}
		pi := add(*p)
		h.Nodes[i].Parent = pi
		h.Nodes[pi].Children = append(h.Nodes[pi].Children, i)
	}

	for i := range h.Nodes {
		seen := map[int]bool{}
		for n := i; n != -1; n = h.Nodes[n].Parent {
			if seen[n] {
				return nil, NewHierarchyCycle(h.Nodes[i].Item.Key)
			}
			seen[n] = true
		}
	}
	return h, nil
}

// postOrder returns node indexes children-first.
func (h *Hierarchy) postOrder() []int {
	order := make([]int, 0, len(h.Nodes))
	visited := make([]bool, len(h.Nodes))
	var stack []int
	for root := range h.Nodes {
		if h.Nodes[root].Parent != -1 {
			continue
		}
		stack = append(stack, root)
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			if !visited[n] {
				visited[n] = true
				kids := h.Nodes[n].Children
				for k := len(kids) - 1; k >= 0; k-- {
					stack = append(stack, kids[k])
				}
				continue
			}
			stack = stack[:len(stack)-1]
			order = append(order, n)
		}
	}
	return order
}

// AggregateStatus computes each node's status category from its children,
// bottom-up in one pass.
//
// All children To Do gives To Do, all Done gives Done, anything else In
// Progress. Leaves keep their own category. The result is indexed like
// h.Nodes.
func AggregateStatus(h *Hierarchy) []ir.StatusCategory {
	out := make([]ir.StatusCategory, len(h.Nodes))
	for _, n := range h.postOrder() {
		node := h.Nodes[n]
		if len(node.Children) == 0 {
			out[n] = node.Item.Status.Category
			continue
		}
		seen := map[ir.StatusCategory]bool{}
		for _, c := range node.Children {
			seen[out[c]] = true
		}
		switch {
		case len(seen) == 1 && seen[ir.StatusToDo]:
			out[n] = ir.StatusToDo
		case len(seen) == 1 && seen[ir.StatusDone]:
			out[n] = ir.StatusDone
		default:
			out[n] = ir.StatusInProgress
		}
	}
	return out
}
