package engine

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roach88/prioritize/internal/ir"
)

// sentinelDate stands in for a missing due date so undated items sort last.
var sentinelDate = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// Ordering is a block's internal ordering rule, applied when flattening.
// The zero value keeps arrival order.
type Ordering struct {
	Name  string
	apply func(Block) []ir.Item
}

// Apply returns the block's items in emission order. The block is not modified.
func (o Ordering) Apply(b Block) []ir.Item {
	if o.apply == nil {
		return slices.Clone(b.Items)
	}
	return o.apply(b)
}

// String returns the ordering name.
func (o Ordering) String() string {
	if o.Name == "" {
		return OrderUnchanged.Name
	}
	return o.Name
}

var (
	// OrderUnchanged preserves arrival order.
	OrderUnchanged = Ordering{Name: "unchanged"}

	// OrderByDueDate sorts by due date ascending; undated items go last.
	OrderByDueDate = Ordering{Name: "due_date", apply: func(b Block) []ir.Item {
		items := slices.Clone(b.Items)
		slices.SortStableFunc(items, func(x, y ir.Item) int {
			return dueOrSentinel(x).Compare(dueOrSentinel(y))
		})
		return items
	}}

	// OrderByScore sorts by RICE score descending; a missing score counts as zero.
	OrderByScore = Ordering{Name: "score", apply: func(b Block) []ir.Item {
		items := slices.Clone(b.Items)
		slices.SortStableFunc(items, func(x, y ir.Item) int {
			return cmp.Compare(y.Score(), x.Score())
		})
		return items
	}}

	// OrderByRank emits the parent first when the block is parent-led, then
	// the children by rank ascending.
	OrderByRank = Ordering{Name: "rank", apply: func(b Block) []ir.Item {
		items := make([]ir.Item, 0, len(b.Items)+1)
		if b.LeadWithParent && b.Parent != nil {
			items = append(items, *b.Parent)
		}
		children := slices.Clone(b.Items)
		slices.SortStableFunc(children, func(x, y ir.Item) int {
			return strings.Compare(x.Rank, y.Rank)
		})
		return append(items, children...)
	}}
)

func dueOrSentinel(item ir.Item) time.Time {
	if item.DueDate == nil {
		return sentinelDate
	}
	return *item.DueDate
}

// SortField names an item field usable in an order-by clause.
type SortField string

const (
	FieldPriority SortField = "priority"
	FieldDueDate  SortField = "duedate"
	FieldScore    SortField = "rice"
	FieldRank     SortField = "rank"
	FieldKey      SortField = "key"
)

var fieldAliases = map[string]SortField{
	"priority":   FieldPriority,
	"duedate":    FieldDueDate,
	"due_date":   FieldDueDate,
	"due":        FieldDueDate,
	"rice":       FieldScore,
	"rice_score": FieldScore,
	"score":      FieldScore,
	"rank":       FieldRank,
	"key":        FieldKey,
}

// SortKey is one term of an order-by clause.
type SortKey struct {
	Field      SortField
	Descending bool
}

// String renders the key in order-by syntax.
func (k SortKey) String() string {
	if k.Descending {
		return string(k.Field) + " DESC"
	}
	return string(k.Field) + " ASC"
}

// ParseOrderBy parses a comma-separated clause such as "priority DESC, duedate".
// Direction defaults to ascending.
func ParseOrderBy(clause string) ([]SortKey, error) {
	var keys []SortKey
	for _, term := range strings.Split(clause, ",") {
		parts := strings.Fields(term)
		if len(parts) == 0 {
			continue
		}
		if len(parts) > 2 {
			return nil, fmt.Errorf("order by term %q: expected \"field [ASC|DESC]\"", strings.TrimSpace(term))
		}
		field, ok := fieldAliases[strings.ToLower(parts[0])]
		if !ok {
			return nil, fmt.Errorf("order by term %q: unknown field %q", strings.TrimSpace(term), parts[0])
		}
		key := SortKey{Field: field}
		if len(parts) == 2 {
			switch strings.ToUpper(parts[1]) {
			case "ASC":
			case "DESC":
				key.Descending = true
			default:
				return nil, fmt.Errorf("order by term %q: unknown direction %q", strings.TrimSpace(term), parts[1])
			}
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("order by clause is empty")
	}
	return keys, nil
}

func compareField(field SortField, x, y ir.Item) int {
	switch field {
	case FieldPriority:
		return cmp.Compare(x.Priority, y.Priority)
	case FieldDueDate:
		return dueOrSentinel(x).Compare(dueOrSentinel(y))
	case FieldScore:
		return cmp.Compare(x.Score(), y.Score())
	case FieldRank:
		return strings.Compare(x.Rank, y.Rank)
	case FieldKey:
		return strings.Compare(x.Key, y.Key)
	}
	return 0
}

// OrderByFields sorts by each key in turn, stable on full ties.
func OrderByFields(keys ...SortKey) Ordering {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return Ordering{Name: "fields(" + strings.Join(names, ", ") + ")", apply: func(b Block) []ir.Item {
		items := slices.Clone(b.Items)
		slices.SortStableFunc(items, func(x, y ir.Item) int {
			for _, k := range keys {
				c := compareField(k.Field, x, y)
				if k.Descending {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
		return items
	}}
}

// OrderCascading sorts like OrderByFields, then emits each item's children
// directly after it, recursively. Only children in the block, in their
// parent's project and not Done cascade; the rest sort as roots.
func OrderCascading(keys ...SortKey) Ordering {
	fields := OrderByFields(keys...)
	return Ordering{Name: "cascade" + strings.TrimPrefix(fields.Name, "fields"), apply: func(b Block) []ir.Item {
		sorted := fields.Apply(b)
		present := make(map[string]bool, len(sorted))
		for _, it := range sorted {
			present[it.Key] = true
		}
		children := make(map[string][]ir.Item)
		for _, it := range sorted {
			if cascadesUnder(it, present) {
				children[it.ParentKey()] = append(children[it.ParentKey()], it)
			}
		}

		out := make([]ir.Item, 0, len(sorted))
		emitted := make(map[string]bool, len(sorted))
		var emit func(ir.Item)
		emit = func(it ir.Item) {
			if emitted[it.Key] {
				return
			}
			emitted[it.Key] = true
			out = append(out, it)
			for _, c := range children[it.Key] {
				emit(c)
			}
		}
		for _, it := range sorted {
			if !cascadesUnder(it, present) {
				emit(it)
			}
		}
		// Parent cycles have no root; emit what is left in sorted order.
		for _, it := range sorted {
			emit(it)
		}
		return out
	}}
}

func cascadesUnder(it ir.Item, present map[string]bool) bool {
	return it.Parent != nil &&
		present[it.Parent.Key] &&
		it.Parent.Project == it.Project &&
		it.Status.Category != ir.StatusDone
}

// Flatten concatenates blocks in order, each emitted per its own ordering.
func Flatten(blocks []Block) []ir.Item {
	n := 0
	for _, b := range blocks {
		n += len(b.Items) + 1
	}
	out := make([]ir.Item, 0, n)
	for _, b := range blocks {
		out = append(out, b.Ordering.Apply(b)...)
	}
	return out
}
