package evolution

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/Mindburn-Labs/eventgate/pkg/eventtype"
	"github.com/Mindburn-Labs/eventgate/pkg/evolution/diff"
)

// ExpressionRule is an operator-defined constraint written in CEL.
//
// The expression sees three variables: current and proposed (the snapshots as JSON objects,
// snake_case keys) and changes (a list of {kind, path, level}). It must evaluate to a bool;
// false is a violation reported with Message.
type ExpressionRule struct {
	Name       string `yaml:"name" json:"name"`
	Expression string `yaml:"expression" json:"expression"`
	Message    string `yaml:"message,omitempty" json:"message,omitempty"`
}

// RuleCompiler compiles expression rules against a shared environment and caches programs
// by expression text.
type RuleCompiler struct {
	env      *cel.Env
	mu       sync.RWMutex
	prgCache map[string]cel.Program
}

func NewRuleCompiler() (*RuleCompiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("current", cel.DynType),
		cel.Variable("proposed", cel.DynType),
		cel.Variable("changes", cel.ListType(cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &RuleCompiler{env: env, prgCache: make(map[string]cel.Program)}, nil
}

// Compile turns a rule into a Constraint. Syntax and type errors are reported here, not at
// evaluation time.
func (rc *RuleCompiler) Compile(rule ExpressionRule) (Constraint, error) {
	if rule.Name == "" {
		return nil, errors.New("expression rule: name is required")
	}
	if rule.Expression == "" {
		return nil, fmt.Errorf("expression rule %q: expression is required", rule.Name)
	}
	prg, err := rc.program(rule.Expression)
	if err != nil {
		return nil, fmt.Errorf("expression rule %q: %w", rule.Name, err)
	}
	if rule.Message == "" {
		rule.Message = fmt.Sprintf("rule %s violated", rule.Name)
	}
	return &ruleConstraint{rule: rule, prg: prg}, nil
}

// CompileAll compiles rules in order.
func (rc *RuleCompiler) CompileAll(rules []ExpressionRule) ([]Constraint, error) {
	out := make([]Constraint, 0, len(rules))
	for _, r := range rules {
		c, err := rc.Compile(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (rc *RuleCompiler) program(expr string) (cel.Program, error) {
	rc.mu.RLock()
	prg, hit := rc.prgCache[expr]
	rc.mu.RUnlock()
	if hit {
		return prg, nil
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()
	if prg, hit = rc.prgCache[expr]; hit {
		return prg, nil
	}

	ast, issues := rc.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("compile: expression must return bool, got %s", out)
	}
	p, err := rc.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	rc.prgCache[expr] = p
	return p, nil
}

type ruleConstraint struct {
	rule ExpressionRule
	prg  cel.Program
}

func (r *ruleConstraint) Name() string { return r.rule.Name }

func (r *ruleConstraint) violationKind() ErrorKind { return KindRuleViolated }

// Evaluate fails closed: a rule that cannot be evaluated counts as violated.
func (r *ruleConstraint) Evaluate(changes []diff.Change, current, proposed *eventtype.EventType) []string {
	input, err := ruleInput(changes, current, proposed)
	if err != nil {
		return []string{fmt.Sprintf("rule %s could not be evaluated: %v", r.rule.Name, err)}
	}
	out, _, err := r.prg.Eval(input)
	if err != nil {
		return []string{fmt.Sprintf("rule %s could not be evaluated: %v", r.rule.Name, err)}
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return []string{fmt.Sprintf("rule %s could not be evaluated: result not bool", r.rule.Name)}
	}
	if !allowed {
		return []string{r.rule.Message}
	}
	return nil
}

func ruleInput(changes []diff.Change, current, proposed *eventtype.EventType) (map[string]any, error) {
	cur, err := snapshotMap(current)
	if err != nil {
		return nil, err
	}
	prop, err := snapshotMap(proposed)
	if err != nil {
		return nil, err
	}
	list := make([]any, len(changes))
	for i, c := range changes {
		list[i] = map[string]any{
			"kind":  c.Kind.String(),
			"path":  c.Path,
			"level": Severity(c.Kind).String(),
		}
	}
	return map[string]any{"current": cur, "proposed": prop, "changes": list}, nil
}

func snapshotMap(et *eventtype.EventType) (map[string]any, error) {
	data, err := json.Marshal(et)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
