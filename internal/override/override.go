// Package override evaluates manual-override expressions against items.
//
// Expressions are CEL over a fixed set of item variables:
//
//	key         string        item key, e.g. "PROJ-12"
//	project     string        project key
//	labels      list(string)
//	components  list(string)
//	status      string        status category: "To Do", "In Progress", "Done"
//	priority    string        priority name, e.g. "Major"
//
// Examples:
//
//	key == 'PROJ-12'
//	components.exists(c, c in ['RPM Build'])
//	'pinned' in labels && status != 'Done'
package override

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/roach88/prioritize/internal/ir"
)

// Evaluator is a compiled override expression. It implements engine.Predicate.
//
// An Evaluator is immutable after construction and safe for concurrent use.
type Evaluator struct {
	Expression string
	program    cel.Program
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("key", cel.StringType),
		cel.Variable("project", cel.StringType),
		cel.Variable("labels", cel.ListType(cel.StringType)),
		cel.Variable("components", cel.ListType(cel.StringType)),
		cel.Variable("status", cel.StringType),
		cel.Variable("priority", cel.StringType),
	)
}

// Compile parses and type-checks expression. The expression must evaluate
// to a bool.
func Compile(expression string) (*Evaluator, error) {
	if expression == "" {
		return nil, fmt.Errorf("override expression is empty")
	}

	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("creating CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compiling override %q: %w", expression, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("override %q evaluates to %s, want bool", expression, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("building program for override %q: %w", expression, err)
	}
	return &Evaluator{Expression: expression, program: prg}, nil
}

// Match evaluates the expression against item.
func (e *Evaluator) Match(item ir.Item) (bool, error) {
	out, _, err := e.program.Eval(Activation(item))
	if err != nil {
		return false, fmt.Errorf("evaluating override %q on %s: %w", e.Expression, item.Key, err)
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("override %q on %s returned %T, want bool", e.Expression, item.Key, out.Value())
	}
	return v, nil
}

// Activation returns the CEL variables for item.
func Activation(item ir.Item) map[string]any {
	labels := item.Labels
	if labels == nil {
		labels = []string{}
	}
	components := item.Components
	if components == nil {
		components = []string{}
	}
	return map[string]any{
		"key":        item.Key,
		"project":    item.Project,
		"labels":     labels,
		"components": components,
		"status":     item.Status.Category.String(),
		"priority":   item.Priority.String(),
	}
}
