package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/prioritize/internal/config"
	"github.com/roach88/prioritize/internal/engine"
	"github.com/roach88/prioritize/internal/override"
)

// Validation error codes (E100-E199)
const (
	// Config errors (E100-E109)
	ErrNoIssues       = "E100" // at least one issue type required
	ErrIssueTypeEmpty = "E101" // issue type name is required
	ErrDuplicateIssue = "E102" // issue type listed twice
	ErrNoRules        = "E103" // issue type has no rules
	ErrMissingBacklog = "E104" // no backlog for the issue type
	ErrInvalidRetry   = "E105" // negative retry settings

	// Rule errors (E110-E119)
	ErrUnknownRule        = "E110" // rule name not recognized
	ErrKwargNotApplicable = "E111" // kwarg not accepted by this rule
	ErrMissingKwarg       = "E112" // required kwarg absent
	ErrInvalidOrderBy     = "E113" // order_by clause does not parse
	ErrInvalidOverride    = "E114" // manual_override does not compile
	ErrInvalidThreshold   = "E115" // tail_threshold outside (0, 1)
	ErrInvalidHorizon     = "E116" // horizon_days not positive
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"` // Set for schema errors
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Rule names as written in configuration files.
const (
	RuleRank                = engine.PolicyRank
	RuleTimeSensitive       = engine.PolicyTimeSensitive
	RuleFixVersion          = engine.PolicyFixVersion
	RuleOrderBy             = engine.PolicyOrderBy
	RulePriority            = engine.PolicyTier
	RulePriorityByComponent = "priority_from_rank_by_component"
	RuleStatus              = "status"
)

// ruleAliases maps legacy rule function names to rule names.
var ruleAliases = map[string]string{
	"check_rank":                            RuleRank,
	"check_timesensitive_rank":              RuleTimeSensitive,
	"check_fixversion_rank":                 RuleFixVersion,
	"check_rank_with_order_by":              RuleOrderBy,
	"check_priority_from_rank":              RulePriority,
	"check_priority_from_rank_by_component": RulePriorityByComponent,
	"set_status_from_children":              RuleStatus,
}

// ruleKwargs lists the kwargs each rule accepts.
var ruleKwargs = map[string][]string{
	RuleRank:                {"orphans_last"},
	RuleTimeSensitive:       {"horizon_days", "tail_threshold", "manual_override"},
	RuleFixVersion:          {"horizon_days", "manual_override"},
	RuleOrderBy:             {"order_by", "cascade"},
	RulePriority:            {"by_component"},
	RulePriorityByComponent: {},
	RuleStatus:              {},
}

// CanonicalRule resolves aliases. It returns false for unknown names.
func CanonicalRule(name string) (string, bool) {
	if alias, ok := ruleAliases[name]; ok {
		return alias, true
	}
	_, ok := ruleKwargs[name]
	return name, ok
}

// Validate checks a decoded configuration for errors the schema cannot
// express. Returns all errors found (does not fail-fast).
func Validate(cfg *config.Config) []ValidationError {
	var errs []ValidationError

	if len(cfg.Issues) == 0 {
		errs = append(errs, ValidationError{
			Field:   "issues",
			Message: "at least one issue type is required",
			Code:    ErrNoIssues,
		})
	}
	if cfg.Retry.MaxRetries < 0 || cfg.Retry.Interval < 0 {
		errs = append(errs, ValidationError{
			Field:   "retry",
			Message: "max_retries and interval must not be negative",
			Code:    ErrInvalidRetry,
		})
	}

	seen := make(map[string]bool)
	for i, issue := range cfg.Issues {
		field := fmt.Sprintf("issues[%d]", i)

		if strings.TrimSpace(issue.Type) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: "issue type is required",
				Code:    ErrIssueTypeEmpty,
			})
		} else if seen[issue.Type] {
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("issue type %q listed more than once", issue.Type),
				Code:    ErrDuplicateIssue,
			})
		}
		seen[issue.Type] = true

		if issue.Backlog == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".backlog",
				Message: "no backlog set for this issue type or at the top level",
				Code:    ErrMissingBacklog,
			})
		}
		if len(issue.Rules) == 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".rules",
				Message: "at least one rule is required",
				Code:    ErrNoRules,
			})
		}
		for j, rule := range issue.Rules {
			errs = append(errs, ValidateRule(rule, fmt.Sprintf("%s.rules[%d]", field, j))...)
		}
	}

	return errs
}

// ValidateRule checks one rule entry. field prefixes reported field paths.
func ValidateRule(rule config.Rule, field string) []ValidationError {
	var errs []ValidationError

	name, ok := CanonicalRule(rule.Rule)
	if !ok {
		return []ValidationError{{
			Field:   field + ".rule",
			Message: fmt.Sprintf("unknown rule %q", rule.Rule),
			Code:    ErrUnknownRule,
		}}
	}

	accepted := ruleKwargs[name]
	for _, kw := range rule.Kwargs.Set() {
		if !slices.Contains(accepted, kw) {
			errs = append(errs, ValidationError{
				Field:   field + ".kwargs." + kw,
				Message: fmt.Sprintf("rule %s does not accept %s", name, kw),
				Code:    ErrKwargNotApplicable,
			})
		}
	}

	kw := rule.Kwargs
	if kw.HorizonDays < 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".kwargs.horizon_days",
			Message: "must be positive",
			Code:    ErrInvalidHorizon,
		})
	}
	if kw.TailThreshold < 0 || kw.TailThreshold >= 1 {
		errs = append(errs, ValidationError{
			Field:   field + ".kwargs.tail_threshold",
			Message: "must be between 0 and 1",
			Code:    ErrInvalidThreshold,
		})
	}
	if name == RuleOrderBy {
		if kw.OrderBy == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".kwargs.order_by",
				Message: "rank_with_order_by requires order_by",
				Code:    ErrMissingKwarg,
			})
		} else if _, err := engine.ParseOrderBy(kw.OrderBy); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".kwargs.order_by",
				Message: err.Error(),
				Code:    ErrInvalidOrderBy,
			})
		}
	}
	if kw.ManualOverride != "" {
		if _, err := override.Compile(kw.ManualOverride); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".kwargs.manual_override",
				Message: err.Error(),
				Code:    ErrInvalidOverride,
			})
		}
	}

	return errs
}
