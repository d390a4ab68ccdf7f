package engine

import (
	"cmp"
	"slices"

	"github.com/roach88/prioritize/internal/ir"
)

// Tier maps a cumulative position threshold to a priority.
type Tier struct {
	Priority  ir.Priority
	Threshold float64
}

// DefaultTiers are the cumulative thresholds over rank position. Blocker is
// never assigned from rank.
var DefaultTiers = []Tier{
	{Priority: ir.PriorityCritical, Threshold: 0.0625},
	{Priority: ir.PriorityMajor, Threshold: 0.125},
	{Priority: ir.PriorityNormal, Threshold: 0.25},
	{Priority: ir.PriorityMinor, Threshold: 1},
}

// TierFor returns the priority for position index among total items.
// A position exactly on a threshold gets the stricter tier.
func TierFor(index, total int) ir.Priority {
	return tierForPercentile(float64(index) / float64(total))
}

func tierForPercentile(p float64) ir.Priority {
	for _, t := range DefaultTiers {
		if p <= t.Threshold {
			return t.Priority
		}
	}
	return ir.PriorityMinor
}

// Assessment is an item's position within one component's backlog.
type Assessment struct {
	Component string
	Index     int
	Total     int
}

// Percentile is Index/Total.
func (a Assessment) Percentile() float64 {
	return float64(a.Index) / float64(a.Total)
}

// AssessComponents ranks every item within each of its components.
//
// Component backlogs keep the input (rank) order. The result maps item key
// to its assessments sorted by percentile, best first; ties keep components
// in order of first appearance. Items without components map to nothing.
func AssessComponents(items []ir.Item) map[string][]Assessment {
	var order []string
	members := make(map[string][]string)
	for _, it := range items {
		for _, c := range it.Components {
			if _, ok := members[c]; !ok {
				order = append(order, c)
			}
			if !slices.Contains(members[c], it.Key) {
				members[c] = append(members[c], it.Key)
			}
		}
	}

	out := make(map[string][]Assessment)
	for _, c := range order {
		keys := members[c]
		for i, k := range keys {
			out[k] = append(out[k], Assessment{Component: c, Index: i, Total: len(keys)})
		}
	}
	for k := range out {
		slices.SortStableFunc(out[k], func(x, y Assessment) int {
			return cmp.Compare(x.Percentile(), y.Percentile())
		})
	}
	return out
}
