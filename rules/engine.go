package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// costLimit bounds the evaluation cost of a single expression
const costLimit = 1000000

// Engine compiles and evaluates the CEL expressions used by field validation
// actions. Programs are cached by expression text and safe for concurrent use.
type Engine struct {
	env      *cel.Env
	programs map[string]cel.Program // expression -> compiled program
	mu       sync.RWMutex
}

// NewEngine declares two variables: valor, the resolved field value, and
// contexto, the whole evaluation context
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("valor", cel.DynType),
		cel.Variable("contexto", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return NewEngineWithEnv(env), nil
}

// NewEngineWithEnv uses a caller-supplied environment
func NewEngineWithEnv(env *cel.Env) *Engine {
	return &Engine{
		env:      env,
		programs: make(map[string]cel.Program),
	}
}

// Compile type-checks an expression and caches the program
func (en *Engine) Compile(expression string) (cel.Program, error) {
	en.mu.RLock()
	prog, ok := en.programs[expression]
	en.mu.RUnlock()
	if ok {
		return prog, nil
	}

	ast, issues := en.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) && !ast.OutputType().IsExactType(cel.DynType) {
		return nil, fmt.Errorf("compile error: expression must return bool, got %s", ast.OutputType())
	}

	prog, err := en.env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}

	en.mu.Lock()
	en.programs[expression] = prog
	en.mu.Unlock()

	return prog, nil
}

// Evaluate runs an expression; a non-boolean result counts as false
func (en *Engine) Evaluate(expression string, value any, evalCtx map[string]any) (bool, error) {
	prog, err := en.Compile(expression)
	if err != nil {
		return false, err
	}
	if evalCtx == nil {
		evalCtx = map[string]any{}
	}

	out, _, err := prog.Eval(map[string]any{
		"valor":    value,
		"contexto": evalCtx,
	})
	if err != nil {
		return false, fmt.Errorf("evaluation error: %w", err)
	}

	matched, _ := out.Value().(bool)
	return matched, nil
}

// Len returns the number of cached programs
func (en *Engine) Len() int {
	en.mu.RLock()
	defer en.mu.RUnlock()
	return len(en.programs)
}
