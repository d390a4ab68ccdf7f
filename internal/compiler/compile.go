// Package compiler turns configuration rules into engine policies.
//
// Configuration files are checked in two passes: the embedded CUE schema
// catches structural errors with source positions, then Validate catches
// rule-level errors (inapplicable kwargs, bad order-by clauses, override
// expressions that do not compile) with stable E-codes.
package compiler

import (
	"fmt"
	"time"

	"github.com/roach88/prioritize/internal/config"
	"github.com/roach88/prioritize/internal/engine"
	"github.com/roach88/prioritize/internal/override"
)

// Action is what a compiled rule produces.
type Action string

const (
	ActionRank     Action = "rank"     // Plan moves with Policy
	ActionPriority Action = "priority" // Plan priority updates with Tiers
	ActionStatus   Action = "status"   // Plan status updates
)

// CompiledRule is a rule ready to run.
type CompiledRule struct {
	Rule   string // Canonical rule name
	Action Action
	Policy engine.Policy      // Set for ActionRank
	Tiers  engine.TierOptions // Set for ActionPriority
}

// CompiledIssue is the rule pipeline for one issue type.
type CompiledIssue struct {
	Type    string
	Backlog string
	Rules   []CompiledRule
}

// CompileConfig validates cfg and compiles every rule. now anchors the date
// horizons of time-sensitive policies.
func CompileConfig(cfg *config.Config, now time.Time) ([]CompiledIssue, error) {
	if errs := Validate(cfg); len(errs) > 0 {
		return nil, &CompileError{Field: errs[0].Field, Message: errs[0].Message}
	}

	issues := make([]CompiledIssue, 0, len(cfg.Issues))
	for i, ic := range cfg.Issues {
		ci := CompiledIssue{Type: ic.Type, Backlog: ic.Backlog}
		for j, r := range ic.Rules {
			rule, err := compileRule(r, fmt.Sprintf("issues[%d].rules[%d]", i, j), now)
			if err != nil {
				return nil, err
			}
			ci.Rules = append(ci.Rules, rule)
		}
		issues = append(issues, ci)
	}
	return issues, nil
}

// CompileRule compiles a single rule, as used by the ad-hoc commands.
func CompileRule(r config.Rule, now time.Time) (CompiledRule, error) {
	if errs := ValidateRule(r, "rule"); len(errs) > 0 {
		return CompiledRule{}, &CompileError{Field: errs[0].Field, Message: errs[0].Message}
	}
	return compileRule(r, "rule", now)
}

func compileRule(r config.Rule, field string, now time.Time) (CompiledRule, error) {
	name, ok := CanonicalRule(r.Rule)
	if !ok {
		return CompiledRule{}, &CompileError{Field: field + ".rule", Message: fmt.Sprintf("unknown rule %q", r.Rule)}
	}

	pred, err := compileOverride(r.Kwargs.ManualOverride, field)
	if err != nil {
		return CompiledRule{}, err
	}

	out := CompiledRule{Rule: name, Action: ActionRank}
	switch name {
	case RuleRank:
		out.Policy = engine.RankPolicy(engine.RankOptions{OrphansLast: r.Kwargs.OrphansLast})
	case RuleTimeSensitive:
		out.Policy = engine.TimeSensitivePolicy(now, engine.TimeSensitiveOptions{
			HorizonDays:   r.Kwargs.HorizonDays,
			TailThreshold: r.Kwargs.TailThreshold,
			Override:      pred,
		})
	case RuleFixVersion:
		out.Policy = engine.FixVersionPolicy(now, engine.FixVersionOptions{
			HorizonDays: r.Kwargs.HorizonDays,
			Override:    pred,
		})
	case RuleOrderBy:
		keys, err := engine.ParseOrderBy(r.Kwargs.OrderBy)
		if err != nil {
			return CompiledRule{}, &CompileError{Field: field + ".kwargs.order_by", Message: err.Error()}
		}
		out.Policy = engine.OrderByPolicy(engine.OrderByOptions{Keys: keys, Cascade: r.Kwargs.Cascade})
	case RulePriority:
		out.Action = ActionPriority
		out.Tiers = engine.TierOptions{ByComponent: r.Kwargs.ByComponent}
	case RulePriorityByComponent:
		out.Rule = RulePriority
		out.Action = ActionPriority
		out.Tiers = engine.TierOptions{ByComponent: true}
	case RuleStatus:
		out.Action = ActionStatus
	}
	return out, nil
}

// compileOverride returns a nil Predicate for an empty expression.
func compileOverride(expr, field string) (engine.Predicate, error) {
	if expr == "" {
		return nil, nil
	}
	ev, err := override.Compile(expr)
	if err != nil {
		return nil, &CompileError{Field: field + ".kwargs.manual_override", Message: err.Error()}
	}
	return ev, nil
}
