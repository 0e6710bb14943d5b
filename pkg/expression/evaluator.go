// Package expression provides dynamic expression evaluation against a run
// context. Expressions are expected to be side-effect free and bounded; an
// evaluation error is a node error, never a crash.
package expression

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// Evaluator evaluates a string expression against a context map. Implementations
// must be pure: same expression and context always produce the same value.
type Evaluator interface {
	Eval(expression string, context map[string]any) (any, error)
	EvalBool(expression string, context map[string]any) (bool, error)
	EvalString(expression string, context map[string]any) (string, error)
}

// ExprEvaluator implements Evaluator on top of the expr language.
type ExprEvaluator struct{}

func New() *ExprEvaluator {
	return &ExprEvaluator{}
}

func (e *ExprEvaluator) Eval(expression string, context map[string]any) (any, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("empty expression")
	}

	if context == nil {
		context = map[string]any{}
	}

	program, err := expr.Compile(expression,
		expr.Env(context),
		expr.AllowUndefinedVariables(), // Missing context keys evaluate to nil, not compile errors
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", expression, err)
	}

	result, err := expr.Run(program, context)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression %q: %w", expression, err)
	}

	return result, nil
}

// EvalBool evaluates the expression and coerces the result to a boolean.
// nil is false; non-empty strings other than "false" are true.
func (e *ExprEvaluator) EvalBool(expression string, context map[string]any) (bool, error) {
	result, err := e.Eval(expression, context)
	if err != nil {
		return false, err
	}

	switch v := result.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		return v != "" && !strings.EqualFold(v, "false"), nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return true, nil
	}
}

// EvalString evaluates the expression and renders the result as a string.
func (e *ExprEvaluator) EvalString(expression string, context map[string]any) (string, error) {
	result, err := e.Eval(expression, context)
	if err != nil {
		return "", err
	}

	if result == nil {
		return "", nil
	}

	if s, ok := result.(string); ok {
		return s, nil
	}

	return fmt.Sprintf("%v", result), nil
}
