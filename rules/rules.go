// Package rules evaluates assignment policy expressions. A policy is an
// expr expression attached to a workflow id, evaluated against the
// candidate employee before an assignment command is issued. Policies
// are an advisory layer on top of the engine: roster membership remains
// the only constraint the engine itself enforces.
package rules

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Evaluator evaluates a boolean expression against a context.
type Evaluator interface {
	Evaluate(expression string, env map[string]interface{}) (bool, error)
}

// ExprEvaluator implements Evaluator with expr-lang/expr, caching
// compiled programs per expression.
type ExprEvaluator struct {
	mu     sync.RWMutex
	cache  map[string]*vm.Program
	enrich map[string]func(map[string]interface{}) interface{}
}

// NewExprEvaluator returns an evaluator with an empty program cache.
func NewExprEvaluator() *ExprEvaluator {
	return &ExprEvaluator{
		cache:  make(map[string]*vm.Program),
		enrich: make(map[string]func(map[string]interface{}) interface{}),
	}
}

// AddEnvFunc registers a derived value that is injected into every
// evaluation environment under the given name.
func (e *ExprEvaluator) AddEnvFunc(name string, f func(map[string]interface{}) interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enrich[name] = f
}

// Evaluate compiles (or reuses) the expression and runs it against env.
// The expression must yield a boolean.
func (e *ExprEvaluator) Evaluate(expression string, env map[string]interface{}) (bool, error) {
	e.mu.RLock()
	for name, f := range e.enrich {
		env[name] = f(env)
	}
	program, ok := e.cache[expression]
	e.mu.RUnlock()

	if !ok {
		e.mu.Lock()
		if program, ok = e.cache[expression]; !ok {
			var err error
			program, err = expr.Compile(expression, expr.Env(env))
			if err != nil {
				e.mu.Unlock()
				return false, err
			}
			e.cache[expression] = program
		}
		e.mu.Unlock()
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q evaluated to %T, want bool", expression, result)
	}
	return b, nil
}
