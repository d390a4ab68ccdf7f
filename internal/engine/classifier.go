package engine

import (
	"time"

	"github.com/roach88/prioritize/internal/ir"
)

// ClaimContext is what a classifier sees when deciding on one item.
//
// Index and Items let percentile classifiers judge an item by its position in
// the input, or in the unclaimed remainder for classifiers that ask for it;
// date and override classifiers only look at Item.
type ClaimContext struct {
	Item  ir.Item
	Index int
	Items []ir.Item
}

// Position returns Index/len(Items), the item's relative position in [0, 1).
func (c ClaimContext) Position() float64 {
	if len(c.Items) == 0 {
		return 0
	}
	return float64(c.Index) / float64(len(c.Items))
}

// ClaimFunc decides whether an item belongs to a classifier's block.
type ClaimFunc func(ClaimContext) (bool, error)

// GroupFunc splits the items one classifier claims into several blocks.
// Consecutive items with the same key share a block; an empty key gives the
// item a block of its own.
type GroupFunc func(ir.Item) string

// Classifier pairs a claim predicate with the block it fills.
//
// A policy tries its classifiers in order and the first one that claims an
// item wins. Several classifiers may target the same block.
type Classifier struct {
	Name    string
	Target  string // BlockSpec.Name
	Claims  ClaimFunc
	GroupBy GroupFunc // nil: every claimed item shares one block

	// Remainder limits Index and Items to the items no earlier classifier
	// claimed, in input order.
	Remainder bool
}

// Predicate is a boolean test over a single item.
//
// Manual overrides are expressed through this interface so the engine does
// not depend on any expression language.
type Predicate interface {
	Match(ir.Item) (bool, error)
}

// PredicateFunc adapts an ordinary function to the Predicate interface.
type PredicateFunc func(ir.Item) (bool, error)

// Match calls f(item).
func (f PredicateFunc) Match(item ir.Item) (bool, error) {
	return f(item)
}

// deadline truncates now to the day and adds horizonDays, so a due date
// claims when it falls on any day strictly before the deadline day.
func deadline(now time.Time, horizonDays int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, horizonDays)
}

func beforeDay(t, limit time.Time) bool {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, limit.Location())
	return day.Before(limit)
}

// DueWithin claims items whose due date is strictly before now+horizonDays.
// Items without a due date are never claimed.
func DueWithin(now time.Time, horizonDays int) ClaimFunc {
	limit := deadline(now, horizonDays)
	return func(c ClaimContext) (bool, error) {
		if c.Item.DueDate == nil {
			return false, nil
		}
		return beforeDay(*c.Item.DueDate, limit), nil
	}
}

// FixVersionWithin claims items whose earliest dated fix version releases
// strictly before now+horizonDays.
func FixVersionWithin(now time.Time, horizonDays int) ClaimFunc {
	limit := deadline(now, horizonDays)
	return func(c ClaimContext) (bool, error) {
		v := c.Item.EarliestFixVersion()
		if v == nil {
			return false, nil
		}
		return beforeDay(*v.ReleaseDate, limit), nil
	}
}

// Override claims items the predicate matches. A nil predicate claims nothing.
func Override(pred Predicate) ClaimFunc {
	return func(c ClaimContext) (bool, error) {
		if pred == nil {
			return false, nil
		}
		return pred.Match(c.Item)
	}
}

// TailPercentile claims items strictly past threshold of the input by position.
// Paired with Classifier.Remainder, the position ignores items pulled into
// earlier blocks, so moving them to the front does not shift the tail.
func TailPercentile(threshold float64) ClaimFunc {
	return func(c ClaimContext) (bool, error) {
		return len(c.Items) > 0 && c.Position() > threshold, nil
	}
}

// PercentileAtMost claims items at or before threshold of the input by position.
// Ties at the boundary go to the claiming (stricter) tier.
func PercentileAtMost(threshold float64) ClaimFunc {
	return func(c ClaimContext) (bool, error) {
		return len(c.Items) > 0 && c.Position() <= threshold, nil
	}
}

// HasParent claims items with a parent.
func HasParent() ClaimFunc {
	return func(c ClaimContext) (bool, error) {
		return c.Item.Parent != nil, nil
	}
}

// CatchAll claims every item. Every policy needs one as its last classifier.
func CatchAll() ClaimFunc {
	return func(ClaimContext) (bool, error) {
		return true, nil
	}
}

// ByParent groups runs of siblings by parent key; orphans each get their own block.
func ByParent(item ir.Item) string {
	return item.ParentKey()
}

// Singleton puts every item in its own block.
func Singleton(ir.Item) string {
	return ""
}
