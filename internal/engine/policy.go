package engine

import (
	"time"

	"github.com/roach88/prioritize/internal/ir"
)

// Baseline selects the "old order" a plan is diffed against.
type Baseline int

const (
	// BaselineInput diffs against the input order as received.
	BaselineInput Baseline = iota

	// BaselinePartition diffs against the unsorted partition, flattened.
	// Needed when flattening adds items (parent-led blocks emit their parent).
	BaselinePartition
)

// Policy is a re-ranking strategy expressed as data: which blocks exist,
// which classifier claims what, and how blocks are sorted afterwards.
type Policy struct {
	Name        string
	Blocks      []BlockSpec
	Classifiers []Classifier
	Steps       []SortStep
	Baseline    Baseline
}

// Policy names, as used in configuration files.
const (
	PolicyRank          = "rank"
	PolicyTimeSensitive = "timesensitive_rank"
	PolicyFixVersion    = "fixversion_rank"
	PolicyOrderBy       = "rank_with_order_by"
	PolicyTier          = "priority_from_rank"
)

// Default horizons, in days.
const (
	DefaultDueHorizonDays        = 120
	DefaultFixVersionHorizonDays = 90
	DefaultTailThreshold         = 0.66
)

// RankOptions configures RankPolicy.
type RankOptions struct {
	// OrphansLast sinks parentless items below every parent block.
	OrphansLast bool
}

// RankPolicy keeps children next to their parent and reorders parent blocks
// by parent rank within each parent project. Blocks whose parent is In
// Progress are then promoted.
func RankPolicy(opts RankOptions) Policy {
	p := Policy{
		Name: PolicyRank,
		Blocks: []BlockSpec{
			{Name: "parent", Kind: KindParent, Ordering: OrderByRank, Reason: "grouped under its parent, which is ranked within its project"},
			{Name: "orphan", Kind: KindOrphan, Ordering: OrderUnchanged, Reason: "has no parent and keeps its slot"},
		},
		Classifiers: []Classifier{
			{Name: "has_parent", Target: "parent", Claims: HasParent(), GroupBy: ByParent},
			{Name: "orphan", Target: "orphan", Claims: CatchAll(), GroupBy: Singleton},
		},
		Steps:    []SortStep{SwapByParentRank(), PromoteInProgress()},
		Baseline: BaselinePartition,
	}
	if opts.OrphansLast {
		p.Blocks[1].Reason = "has no parent and sinks to the tail"
		p.Steps = append(p.Steps, PinBack(KindOrphan))
	}
	return p
}

// TimeSensitiveOptions configures TimeSensitivePolicy. Zero values take defaults.
type TimeSensitiveOptions struct {
	HorizonDays   int
	TailThreshold float64
	Override      Predicate
}

// TimeSensitivePolicy ranks items due soon first, by due date; leaves the
// middle of the backlog alone; and orders the tail by RICE score. The tail is
// measured over the items neither overridden nor due soon.
//
// Precedence: manual override (to inert), due soon, tail, everything else inert.
func TimeSensitivePolicy(now time.Time, opts TimeSensitiveOptions) Policy {
	if opts.HorizonDays == 0 {
		opts.HorizonDays = DefaultDueHorizonDays
	}
	if opts.TailThreshold == 0 {
		opts.TailThreshold = DefaultTailThreshold
	}
	return Policy{
		Name: PolicyTimeSensitive,
		Blocks: []BlockSpec{
			{Name: "due_soon", Kind: KindDueSoon, Ordering: OrderByDueDate, Leading: true, Reason: "due date is close, earliest first"},
			{Name: "inert", Kind: KindInert, Ordering: OrderUnchanged, Leading: true, Reason: "ranked manually"},
			{Name: "tail", Kind: KindTail, Ordering: OrderByScore, Leading: true, Reason: "in the backlog tail, ordered by RICE score"},
		},
		Classifiers: []Classifier{
			{Name: "manual_override", Target: "inert", Claims: Override(opts.Override)},
			{Name: "due_within", Target: "due_soon", Claims: DueWithin(now, opts.HorizonDays)},
			{Name: "tail_percentile", Target: "tail", Claims: TailPercentile(opts.TailThreshold), Remainder: true},
			{Name: "catch_all", Target: "inert", Claims: CatchAll()},
		},
		Steps:    []SortStep{PinFront(KindDueSoon)},
		Baseline: BaselineInput,
	}
}

// FixVersionOptions configures FixVersionPolicy. Zero values take defaults.
type FixVersionOptions struct {
	HorizonDays int
	Override    Predicate
}

// FixVersionPolicy pins items with an imminent release to the top, ordered
// by due date, and leaves everything else in its current order.
func FixVersionPolicy(now time.Time, opts FixVersionOptions) Policy {
	if opts.HorizonDays == 0 {
		opts.HorizonDays = DefaultFixVersionHorizonDays
	}
	return Policy{
		Name: PolicyFixVersion,
		Blocks: []BlockSpec{
			{Name: "fix_version", Kind: KindFixVersion, Ordering: OrderByDueDate, Leading: true, Reason: "fix version releases soon"},
			{Name: "inert", Kind: KindInert, Ordering: OrderUnchanged, Reason: "ranked manually"},
		},
		Classifiers: []Classifier{
			{Name: "manual_override", Target: "inert", Claims: Override(opts.Override)},
			{Name: "fix_version_within", Target: "fix_version", Claims: FixVersionWithin(now, opts.HorizonDays)},
			{Name: "catch_all", Target: "inert", Claims: CatchAll()},
		},
		Steps:    []SortStep{PinFront(KindFixVersion)},
		Baseline: BaselineInput,
	}
}

// OrderByOptions configures OrderByPolicy.
type OrderByOptions struct {
	Keys []SortKey

	// Cascade emits each item's open same-project children directly after
	// it, recursively, each level sorted by Keys.
	Cascade bool
}

// OrderByPolicy ranks the whole backlog by an explicit order-by clause.
func OrderByPolicy(opts OrderByOptions) Policy {
	ordering := OrderByFields(opts.Keys...)
	if opts.Cascade {
		ordering = OrderCascading(opts.Keys...)
	}
	return Policy{
		Name: PolicyOrderBy,
		Blocks: []BlockSpec{
			{Name: "ordered", Kind: KindOrdered, Ordering: ordering, Reason: "ordered by " + ordering.Name},
		},
		Classifiers: []Classifier{
			{Name: "catch_all", Target: "ordered", Claims: CatchAll()},
		},
		Baseline: BaselineInput,
	}
}

// TierPolicy partitions a rank-ordered backlog into percentile priority tiers.
// It never reorders items; PlanPriorities uses it to derive priorities.
func TierPolicy() Policy {
	p := Policy{
		Name:     PolicyTier,
		Steps:    []SortStep{ByTier()},
		Baseline: BaselineInput,
	}
	for _, t := range DefaultTiers {
		name := t.Priority.String()
		p.Blocks = append(p.Blocks, BlockSpec{
			Name: name, Kind: KindTier, Ordering: OrderUnchanged, Leading: true, Tier: t.Priority,
			Reason: "rank position falls in the " + name + " tier",
		})
		p.Classifiers = append(p.Classifiers, Classifier{
			Name: "percentile_" + name, Target: name, Claims: PercentileAtMost(t.Threshold),
		})
	}
	return p
}

// tierOf returns the tier priority of the block holding key.
func tierOf(blocks []Block, key string) (ir.Priority, bool) {
	for _, b := range blocks {
		for _, it := range b.Items {
			if it.Key == key {
				return b.Tier, true
			}
		}
	}
	return ir.PriorityUndefined, false
}
