package engine

import (
	"github.com/roach88/prioritize/internal/ir"
)

// BlockKind tags what a block groups. Sort steps select blocks by kind.
type BlockKind string

const (
	KindParent     BlockKind = "parent"      // Items sharing one parent
	KindOrphan     BlockKind = "orphan"      // One parentless item
	KindDueSoon    BlockKind = "due_soon"    // Due date inside the horizon
	KindFixVersion BlockKind = "fix_version" // Earliest release inside the horizon
	KindInert      BlockKind = "inert"       // Manual control, order untouched
	KindTail       BlockKind = "tail"        // Bottom of the backlog, sorted by score
	KindTier       BlockKind = "tier"        // Percentile priority tier
	KindOrdered    BlockKind = "ordered"     // Explicit multi-key ordering
)

// BlockSpec declares a block a policy may fill.
//
// Leading specs exist before partitioning starts, in declaration order, even
// if no item ever lands in them; later steps can address them positionally.
// Non-leading specs are created lazily on first claim.
type BlockSpec struct {
	Name     string
	Kind     BlockKind
	Ordering Ordering
	Leading  bool
	Tier     ir.Priority // Only meaningful for KindTier
	Reason   string      // Why an item in this block is where it is; used in messages
}

// Block is an ordered group of items with a kind tag and an internal ordering rule.
type Block struct {
	Name     string
	Kind     BlockKind
	Ordering Ordering
	Tier     ir.Priority
	Reason   string

	// Parent is the shared parent of a KindParent block.
	Parent *ir.Item

	// LeadWithParent emits Parent ahead of the children when flattened by rank.
	// Set by Partition when the parent shares the first child's project and is
	// not itself one of the input items.
	LeadWithParent bool

	// Items in arrival order.
	Items []ir.Item
}

// Label names the block in messages and reports.
func (b Block) Label() string {
	if b.Parent != nil {
		return b.Name + " " + b.Parent.Key
	}
	if b.Kind == KindOrphan && len(b.Items) == 1 {
		return b.Name + " " + b.Items[0].Key
	}
	return b.Name
}

// Keys returns the keys of the block's items in arrival order.
func (b Block) Keys() []string {
	return ir.Keys(b.Items)
}

// parentProject is the project the block swaps within; "" for blocks without a parent.
func (b Block) parentProject() string {
	if b.Parent == nil {
		return ""
	}
	return b.Parent.Project
}

func (b Block) parentInProgress() bool {
	return b.Parent != nil && b.Parent.Status.Category == ir.StatusInProgress
}

func newBlock(spec BlockSpec) Block {
	return Block{
		Name:     spec.Name,
		Kind:     spec.Kind,
		Ordering: spec.Ordering,
		Tier:     spec.Tier,
		Reason:   spec.Reason,
	}
}
