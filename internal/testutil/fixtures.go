package testutil

import (
	"fmt"

	"github.com/roach88/prioritize/internal/ir"
)

// FixtureProject is the project every fixture item belongs to.
const FixtureProject = "TESTPROJECT"

// NewItem builds a To Do item in FixtureProject.
func NewItem(key, rank string, parent *ir.Item) ir.Item {
	return ir.Item{
		Key:     key,
		Summary: "Summary of " + key,
		Rank:    rank,
		Parent:  parent,
		Project: FixtureProject,
		Status:  ir.Status{Category: ir.StatusToDo, Name: "New"},
	}
}

// Parents returns the three external parents used by Backlog, keyed by name.
func Parents() map[string]*ir.Item {
	p1 := NewItem("parent1", "1", nil)
	p2 := NewItem("parent2", "3", nil)
	p3 := NewItem("parent3", "5", nil)
	return map[string]*ir.Item{"parent1": &p1, "parent2": &p2, "parent3": &p3}
}

// Backlog is the canonical parent-affinity fixture, in rank order:
//
//	child0 (orphan, 0), child1 -> parent1 (1), child2 -> parent2 (3),
//	child3 -> parent3 (5), child4 (orphan, 7)
//
// Parents are not input items; they come in through the children.
func Backlog() []ir.Item {
	return BacklogWithParents(Parents())
}

// BacklogWithParents builds Backlog around caller-supplied parents, so a test
// can change a parent's rank or status before building.
func BacklogWithParents(parents map[string]*ir.Item) []ir.Item {
	return []ir.Item{
		NewItem("child0", "0", nil),
		NewItem("child1", "2", parents["parent1"]),
		NewItem("child2", "4", parents["parent2"]),
		NewItem("child3", "6", parents["parent3"]),
		NewItem("child4", "7", nil),
	}
}

// DueDateBacklog is the urgency fixture, in rank order. child3 is due in
// 210 days, child4 in 60, child5 in 30, relative to ReferenceDate. child6
// sits in the tail third.
func DueDateBacklog() []ir.Item {
	parents := Parents()
	child3 := NewItem("child3", "5", parents["parent2"])
	child3.DueDate = DaysFromNow(210)
	child4 := NewItem("child4", "6", parents["parent2"])
	child4.DueDate = DaysFromNow(60)
	child5 := NewItem("child5", "7", parents["parent2"])
	child5.DueDate = DaysFromNow(30)
	child6 := NewItem("child6", "8", parents["parent2"])

	return []ir.Item{
		NewItem("child1", "2", parents["parent1"]),
		NewItem("child2", "4", parents["parent2"]),
		child3,
		child4,
		child5,
		child6,
	}
}

// OverrideBacklog is Backlog where child1 and child2 are due soon and
// child2 carries component "Component2".
func OverrideBacklog() []ir.Item {
	items := Backlog()
	items[1].DueDate = DaysFromNow(30)
	items[2].DueDate = DaysFromNow(45)
	items[2].Components = []string{"Component2"}
	return items
}

// RankedBacklog returns n orphan items "item0".."item{n-1}" in rank order.
func RankedBacklog(n int) []ir.Item {
	items := make([]ir.Item, n)
	for i := range items {
		items[i] = NewItem(fmt.Sprintf("item%d", i), fmt.Sprintf("%06d", i), nil)
	}
	return items
}
