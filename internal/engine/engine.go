package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/prioritize/internal/ir"
)

// RunIDGenerator generates unique run IDs.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type RunIDGenerator interface {
	Generate() string
}

// Engine runs policies over backlog snapshots.
//
// The engine performs no I/O and holds no state between runs; the same
// input and policy always produce the same plan content. Only the run ID
// differs between runs.
type Engine struct {
	runIDs RunIDGenerator
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRunIDGenerator sets the run ID source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		runIDs: UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewRunID returns the next run ID.
func (e *Engine) NewRunID() string {
	return e.runIDs.Generate()
}

// RunOptions are per-run parameters.
type RunOptions struct {
	// DryRun is recorded on the plan. Plan content does not depend on it;
	// callers decide whether to apply.
	DryRun bool
}

// Plan is the full outcome of one ranking run.
type Plan struct {
	RunID    string
	PlanID   string
	Policy   string
	DryRun   bool
	Blocks   []Block   // Sorted block order
	Old      []ir.Item // Baseline order
	New      []ir.Item // Target order
	Moves    []ir.Move
	Messages []string // One per move, same order
}

// Unchanged reports whether the plan has nothing to apply.
func (p *Plan) Unchanged() bool {
	return len(p.Moves) == 0
}

// Plan runs partition, sort, flatten and diff for one policy.
func (e *Engine) Plan(items []ir.Item, policy Policy, opts RunOptions) (*Plan, error) {
	blocks, err := Partition(items, policy.Blocks, policy.Classifiers)
	if err != nil {
		return nil, withPolicy(err, policy.Name)
	}

	var old []ir.Item
	switch policy.Baseline {
	case BaselinePartition:
		old = Flatten(blocks)
	default:
		old = append([]ir.Item(nil), items...)
	}

	sorted := SortBlocks(blocks, policy.Steps)
	next := Flatten(sorted)

	moves, err := EmitMoves(old, next)
	if err != nil {
		return nil, withPolicy(err, policy.Name)
	}

	planID, err := ir.PlanID(policy.Name, ir.Keys(old), ir.Keys(next))
	if err != nil {
		return nil, fmt.Errorf("plan id: %w", err)
	}

	plan := &Plan{
		RunID:    e.NewRunID(),
		PlanID:   planID,
		Policy:   policy.Name,
		DryRun:   opts.DryRun,
		Blocks:   sorted,
		Old:      old,
		New:      next,
		Moves:    moves,
		Messages: moveMessages(sorted, moves),
	}

	e.logger.Debug("plan computed",
		"policy", policy.Name,
		"run_id", plan.RunID,
		"plan_id", plan.PlanID,
		"items", len(items),
		"blocks", len(sorted),
		"moves", len(moves),
		"dry_run", opts.DryRun)

	return plan, nil
}

func withPolicy(err error, policy string) error {
	var re *RuntimeError
	if errors.As(err, &re) && re.Policy == "" {
		re.Policy = policy
	}
	return err
}

func moveMessages(blocks []Block, moves []ir.Move) []string {
	home := make(map[string]Block)
	for _, b := range blocks {
		if b.LeadWithParent && b.Parent != nil {
			home[b.Parent.Key] = b
		}
		for _, it := range b.Items {
			home[it.Key] = b
		}
	}
	msgs := make([]string, len(moves))
	for i, m := range moves {
		b := home[m.ItemKey]
		msg := fmt.Sprintf("%s moved after %s in block %s", m.ItemKey, m.AfterKey, b.Label())
		if b.Reason != "" {
			msg += ": " + b.Reason
		}
		msgs[i] = msg
	}
	return msgs
}

// TierOptions configures PlanPriorities.
type TierOptions struct {
	// ByComponent ranks each item within each of its components and uses
	// the best position.
	ByComponent bool
}

// PriorityUpdate is a priority change derived from rank position.
type PriorityUpdate struct {
	Key     string
	From    ir.Priority
	To      ir.Priority
	Message string
}

// PlanPriorities derives priorities from rank position. Items whose
// priority already matches are left out.
func (e *Engine) PlanPriorities(items []ir.Item, opts TierOptions) ([]PriorityUpdate, error) {
	var updates []PriorityUpdate
	if opts.ByComponent {
		updates = componentPriorities(items)
	} else {
		var err error
		updates, err = tierPriorities(items)
		if err != nil {
			return nil, err
		}
	}
	e.logger.Debug("priorities computed",
		"items", len(items),
		"by_component", opts.ByComponent,
		"updates", len(updates))
	return updates, nil
}

func tierPriorities(items []ir.Item) ([]PriorityUpdate, error) {
	policy := TierPolicy()
	blocks, err := Partition(items, policy.Blocks, policy.Classifiers)
	if err != nil {
		return nil, withPolicy(err, policy.Name)
	}
	updates := []PriorityUpdate{}
	for i, it := range items {
		to, _ := tierOf(blocks, it.Key)
		if it.Priority == to {
			continue
		}
		updates = append(updates, PriorityUpdate{
			Key:  it.Key,
			From: it.Priority,
			To:   to,
			Message: fmt.Sprintf(
				"Updating priority from %s to %s to reflect %s's current rank in the unified backlog (position %d of %d)",
				it.Priority, to, it.Key, i+1, len(items)),
		})
	}
	return updates, nil
}

func componentPriorities(items []ir.Item) []PriorityUpdate {
	assessed := AssessComponents(items)
	updates := []PriorityUpdate{}
	for _, it := range items {
		as := assessed[it.Key]
		if len(as) == 0 {
			if it.Priority == ir.PriorityUndefined {
				continue
			}
			updates = append(updates, PriorityUpdate{
				Key:  it.Key,
				From: it.Priority,
				To:   ir.PriorityUndefined,
				Message: fmt.Sprintf(
					"Updating priority from %s to Undefined to reflect the fact that %s currently has no components set.",
					it.Priority, it.Key),
			})
			continue
		}

		leader := as[0]
		to := tierForPercentile(leader.Percentile())
		if it.Priority == to {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b,
			"Updating priority from %s to %s to reflect %s's current rank in the %s backlog, position %d of %d.",
			it.Priority, to, it.Key, leader.Component, leader.Index+1, leader.Total)
		if len(as) > 1 {
			others := make([]string, 0, len(as)-1)
			for _, a := range as[1:] {
				others = append(others, fmt.Sprintf("%d out of %d for %s", a.Index+1, a.Total, a.Component))
			}
			fmt.Fprintf(&b, " (%s is also ranked %s)", it.Key, strings.Join(others, ", "))
		}
		updates = append(updates, PriorityUpdate{Key: it.Key, From: it.Priority, To: to, Message: b.String()})
	}
	return updates
}

// StatusUpdate is a status change derived from an item's children.
type StatusUpdate struct {
	Key     string
	From    ir.StatusCategory
	To      ir.StatusCategory
	Status  string // Workflow status to transition to
	Message string
}

var statusTransitions = map[ir.StatusCategory]struct {
	status  string
	message string
}{
	ir.StatusToDo:       {"New", "Work on child issues has not started."},
	ir.StatusInProgress: {"In Progress", "Work on child issues is on-going."},
	ir.StatusDone:       {"Closed", "All child issues have been closed."},
}

// PlanStatuses aggregates status bottom-up and returns the items whose
// category disagrees with their children, deepest first.
func (e *Engine) PlanStatuses(items []ir.Item) ([]StatusUpdate, error) {
	h, err := BuildHierarchy(items)
	if err != nil {
		return nil, err
	}
	agg := AggregateStatus(h)

	updates := []StatusUpdate{}
	for _, n := range h.postOrder() {
		node := h.Nodes[n]
		if len(node.Children) == 0 || agg[n] == node.Item.Status.Category {
			continue
		}
		t := statusTransitions[agg[n]]
		updates = append(updates, StatusUpdate{
			Key:     node.Item.Key,
			From:    node.Item.Status.Category,
			To:      agg[n],
			Status:  t.status,
			Message: t.message,
		})
	}
	e.logger.Debug("statuses computed", "nodes", len(h.Nodes), "updates", len(updates))
	return updates, nil
}
