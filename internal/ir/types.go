package ir

import (
	"sort"
	"time"
)

// Item is an immutable snapshot of one backlog issue.
//
// Items are constructed fresh from the tracker snapshot at the start of a run
// and are never mutated by the engine. Optional fields use pointers so that
// "absent" is distinguishable from the zero value.
type Item struct {
	Key         string     `json:"key" yaml:"key"`
	Summary     string     `json:"summary,omitempty" yaml:"summary,omitempty"`
	Rank        string     `json:"rank" yaml:"rank"`          // Lexicographic rank, compared bytewise
	Parent      *Item      `json:"parent,omitempty" yaml:"-"` // Snapshot of the parent; nil for orphans
	DueDate     *time.Time `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	RICEScore   *float64   `json:"rice_score,omitempty" yaml:"rice_score,omitempty"`
	Priority    Priority   `json:"priority" yaml:"priority"`
	Status      Status     `json:"status" yaml:"status"`
	Project     string     `json:"project" yaml:"project"`
	Components  []string   `json:"components,omitempty" yaml:"components,omitempty"`
	Labels      []string   `json:"labels,omitempty" yaml:"labels,omitempty"`
	FixVersions []Version  `json:"fix_versions,omitempty" yaml:"fix_versions,omitempty"`
}

// Status pairs the coarse lifecycle category with the workflow status name.
type Status struct {
	Category StatusCategory `json:"category" yaml:"category"`
	Name     string         `json:"name,omitempty" yaml:"name,omitempty"`
}

// Version is a release an item is pinned to.
type Version struct {
	Name        string     `json:"name" yaml:"name"`
	ReleaseDate *time.Time `json:"release_date,omitempty" yaml:"release_date,omitempty"`
}

// Move places ItemKey immediately after AfterKey in the external ranked list.
//
// Seq is the 1-based emission order. Moves are relative to the previous
// item's already-realized position, so they must be applied in Seq order.
type Move struct {
	Seq      int    `json:"seq"`
	ItemKey  string `json:"item_key"`
	AfterKey string `json:"after_key"`
}

// ParentKey returns the key of the item's parent, or "" for orphans.
func (i Item) ParentKey() string {
	if i.Parent == nil {
		return ""
	}
	return i.Parent.Key
}

// HasComponent reports whether the item lists the named component.
func (i Item) HasComponent(name string) bool {
	for _, c := range i.Components {
		if c == name {
			return true
		}
	}
	return false
}

// EarliestFixVersion returns the fix version with the earliest release date.
// Versions without a release date are ignored. Returns nil when none qualify.
func (i Item) EarliestFixVersion() *Version {
	var dated []Version
	for _, v := range i.FixVersions {
		if v.ReleaseDate != nil {
			dated = append(dated, v)
		}
	}
	if len(dated) == 0 {
		return nil
	}
	sort.SliceStable(dated, func(a, b int) bool {
		return dated[a].ReleaseDate.Before(*dated[b].ReleaseDate)
	})
	return &dated[0]
}

// Score returns the RICE score, treating a missing score as zero.
func (i Item) Score() float64 {
	if i.RICEScore == nil {
		return 0
	}
	return *i.RICEScore
}

// Keys returns the keys of items in order.
func Keys(items []Item) []string {
	keys := make([]string, len(items))
	for i, it := range items {
		keys[i] = it.Key
	}
	return keys
}

// ItemsEqual reports whether both sequences list the same keys in the same order.
func ItemsEqual(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key != b[i].Key {
			return false
		}
	}
	return true
}
