package debtpolicy

import (
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
)

// Rule is a compiled boolean CEL expression deciding approval.
//
// Variables: exceeds (bool), require_approval (bool), current_debt,
// new_total, limit, additional (double).
type Rule struct {
	expr string
	prg  cel.Program
}

// NewRule compiles expr. It must evaluate to a bool.
func NewRule(expr string) (*Rule, error) {
	env, err := cel.NewEnv(
		cel.Variable("exceeds", cel.BoolType),
		cel.Variable("require_approval", cel.BoolType),
		cel.Variable("current_debt", cel.DoubleType),
		cel.Variable("new_total", cel.DoubleType),
		cel.Variable("limit", cel.DoubleType),
		cel.Variable("additional", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile approval rule: %w", iss.Err())
	}
	if !reflect.DeepEqual(ast.OutputType(), cel.BoolType) {
		return nil, fmt.Errorf("approval rule must return bool, got %v", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("approval rule program: %w", err)
	}
	return &Rule{expr: expr, prg: prg}, nil
}

// Expression returns the source text.
func (r *Rule) Expression() string { return r.expr }

// Eval runs the rule against an evaluation.
func (r *Rule) Eval(ev Evaluation, requireApproval bool) (bool, error) {
	out, _, err := r.prg.Eval(map[string]any{
		"exceeds":          ev.Exceeds,
		"require_approval": requireApproval,
		"current_debt":     ev.CurrentDebt.InexactFloat64(),
		"new_total":        ev.NewTotal.InexactFloat64(),
		"limit":            ev.Limit.InexactFloat64(),
		"additional":       ev.AdditionalAmount.InexactFloat64(),
	})
	if err != nil {
		return false, err
	}
	verdict, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("approval rule returned %T", out.Value())
	}
	return verdict, nil
}
