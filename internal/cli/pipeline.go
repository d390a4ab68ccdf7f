package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/roach88/prioritize/internal/apply"
	"github.com/roach88/prioritize/internal/compiler"
	"github.com/roach88/prioritize/internal/config"
	"github.com/roach88/prioritize/internal/engine"
	"github.com/roach88/prioritize/internal/ir"
	"github.com/roach88/prioritize/internal/report"
	"github.com/roach88/prioritize/internal/store"
	"github.com/roach88/prioritize/internal/tracker"
)

// RuleOutcome is the result of running one rule against a backlog.
type RuleOutcome struct {
	IssueType  string        `json:"issue_type,omitempty"`
	Rule       string        `json:"rule"`
	RunID      string        `json:"run_id,omitempty"`
	PlanID     string        `json:"plan_id,omitempty"`
	DryRun     bool          `json:"dry_run"`
	Moves      []MoveView    `json:"moves,omitempty"`
	Priorities []FieldChange `json:"priorities,omitempty"`
	Statuses   []FieldChange `json:"statuses,omitempty"`
	Applied    int           `json:"applied"`
	Skipped    int           `json:"skipped"`
}

// MoveView is a planned move with its explanation.
type MoveView struct {
	Seq     int    `json:"seq"`
	Item    string `json:"item"`
	After   string `json:"after"`
	Message string `json:"message"`
}

// FieldChange is a planned priority or status update.
type FieldChange struct {
	Key     string `json:"key"`
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
}

// pipeline runs compiled rules against one backlog file. Every rule takes
// a fresh snapshot, so a priority rule after a rank rule sees the new order.
type pipeline struct {
	engine   *engine.Engine
	backlog  *tracker.FileBacklog
	journal  *store.Store        // nil disables journaling
	comments tracker.MessageSink // nil disables posting
	retry    config.Retry
	dryRun   bool
	logger   *slog.Logger
	report   io.Writer // nil suppresses the text report
}

func (p *pipeline) run(ctx context.Context, issueType string, rule compiler.CompiledRule) (RuleOutcome, error) {
	out := RuleOutcome{IssueType: issueType, Rule: rule.Rule, DryRun: p.dryRun}

	items, err := p.backlog.Snapshot(ctx)
	if err != nil {
		return out, fmt.Errorf("snapshot %s: %w", p.backlog.Path(), err)
	}
	p.logger.Info("running rule",
		"issue_type", issueType,
		"rule", rule.Rule,
		"items", len(items),
		"dry_run", p.dryRun)

	switch rule.Action {
	case compiler.ActionRank:
		return p.rank(ctx, items, rule.Policy, out)
	case compiler.ActionPriority:
		return p.priorities(ctx, items, rule.Tiers, out)
	case compiler.ActionStatus:
		return p.statuses(ctx, items, out)
	}
	return out, fmt.Errorf("rule %s: unknown action %q", rule.Rule, rule.Action)
}

func (p *pipeline) rank(ctx context.Context, items []ir.Item, policy engine.Policy, out RuleOutcome) (RuleOutcome, error) {
	plan, err := p.engine.Plan(items, policy, engine.RunOptions{DryRun: p.dryRun})
	if err != nil {
		return out, err
	}
	out.RunID, out.PlanID = plan.RunID, plan.PlanID
	for i, m := range plan.Moves {
		out.Moves = append(out.Moves, MoveView{Seq: m.Seq, Item: m.ItemKey, After: m.AfterKey, Message: plan.Messages[i]})
	}
	if p.report != nil {
		if err := report.WritePlan(p.report, plan); err != nil {
			return out, err
		}
	}

	opts := []apply.Option{
		apply.WithRetry(p.retry.MaxRetries, time.Duration(p.retry.Interval)),
		apply.WithLogger(p.logger),
	}
	if p.journal != nil {
		opts = append(opts, apply.WithJournal(p.journal))
	}
	res, err := apply.New(fileSink{p.backlog}, opts...).Apply(ctx, plan, out.IssueType)
	out.Applied, out.Skipped = res.Applied, res.Skipped
	if err != nil {
		return out, err
	}
	if plan.DryRun || plan.Unchanged() {
		return out, nil
	}

	sent := make(map[int]bool, len(res.AppliedSeqs))
	for _, seq := range res.AppliedSeqs {
		sent[seq] = true
	}
	for i, m := range plan.Moves {
		if !sent[m.Seq] {
			continue
		}
		if err := p.post(ctx, m.ItemKey, plan.Messages[i]); err != nil {
			return out, err
		}
		if p.journal != nil {
			msg := store.Message{RunID: plan.RunID, Seq: m.Seq, ItemKey: m.ItemKey, Body: plan.Messages[i]}
			if err := p.journal.WriteMessage(ctx, msg); err != nil {
				return out, err
			}
		}
	}
	if p.report != nil {
		fmt.Fprintf(p.report, "Applied %d, skipped %d (run %s)\n", res.Applied, res.Skipped, plan.RunID)
	}
	return out, nil
}

func (p *pipeline) priorities(ctx context.Context, items []ir.Item, tiers engine.TierOptions, out RuleOutcome) (RuleOutcome, error) {
	updates, err := p.engine.PlanPriorities(items, tiers)
	if err != nil {
		return out, err
	}
	for _, u := range updates {
		out.Priorities = append(out.Priorities, FieldChange{Key: u.Key, From: u.From.String(), To: u.To.String(), Message: u.Message})
	}
	if p.report != nil {
		if err := report.WritePriorities(p.report, updates); err != nil {
			return out, err
		}
	}
	if p.dryRun {
		return out, nil
	}

	for _, u := range updates {
		if err := p.backlog.SetPriority(ctx, u.Key, u.To); err != nil {
			return out, fmt.Errorf("set priority of %s: %w", u.Key, err)
		}
		out.Applied++
		if err := p.post(ctx, u.Key, u.Message); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (p *pipeline) statuses(ctx context.Context, items []ir.Item, out RuleOutcome) (RuleOutcome, error) {
	updates, err := p.engine.PlanStatuses(items)
	if err != nil {
		return out, err
	}
	for _, u := range updates {
		out.Statuses = append(out.Statuses, FieldChange{Key: u.Key, From: u.From.String(), To: u.To.String(), Message: u.Message})
	}
	if p.report != nil {
		if err := report.WriteStatuses(p.report, updates); err != nil {
			return out, err
		}
	}
	if p.dryRun {
		return out, nil
	}

	for _, u := range updates {
		if err := p.backlog.Transition(ctx, u.Key, u.To, u.Status); err != nil {
			return out, fmt.Errorf("transition %s: %w", u.Key, err)
		}
		out.Applied++
		if err := p.post(ctx, u.Key, u.Message); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (p *pipeline) post(ctx context.Context, key, message string) error {
	if p.comments == nil {
		return nil
	}
	if err := p.comments.Post(ctx, key, message); err != nil {
		return fmt.Errorf("post message on %s: %w", key, err)
	}
	return nil
}

// fileSink marks every backlog file error permanent. A failed rewrite of a
// local file does not heal between attempts.
type fileSink struct {
	backlog *tracker.FileBacklog
}

func (s fileSink) Rank(ctx context.Context, itemKey, afterKey string) error {
	return apply.Permanent(s.backlog.Rank(ctx, itemKey, afterKey))
}

// openComments returns a sink appending to path, or nil when path is empty.
func openComments(path, footer string) (tracker.MessageSink, func() error, error) {
	if path == "" {
		return nil, func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open comments file: %w", err)
	}
	return tracker.NewWriterSink(f, footer), f.Close, nil
}
