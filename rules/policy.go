package rules

import (
	"fmt"
	"sync"

	"github.com/threadline/production-tracker/types"
)

// Policies maps workflow ids to assignment policy expressions. A
// workflow without a policy accepts any roster member.
type Policies struct {
	mu        sync.RWMutex
	byWF      map[string]string
	evaluator Evaluator
}

// NewPolicies returns an empty registry backed by the given evaluator.
// A nil evaluator gets the default expr implementation.
func NewPolicies(evaluator Evaluator) *Policies {
	if evaluator == nil {
		evaluator = NewExprEvaluator()
	}
	return &Policies{byWF: make(map[string]string), evaluator: evaluator}
}

// Set attaches an expression to a workflow id, replacing any previous
// policy. An empty expression removes the policy.
func (p *Policies) Set(workflowID, expression string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if expression == "" {
		delete(p.byWF, workflowID)
		return
	}
	p.byWF[workflowID] = expression
}

// Allows evaluates the policy for workflowID against the candidate
// employee. The expression sees `employee` with id/name/role fields and
// `workflow_id`.
func (p *Policies) Allows(workflowID string, employee types.Employee) (bool, error) {
	p.mu.RLock()
	expression, ok := p.byWF[workflowID]
	p.mu.RUnlock()
	if !ok {
		return true, nil
	}

	env := map[string]interface{}{
		"employee": map[string]interface{}{
			"id":   employee.ID,
			"name": employee.Name,
			"role": string(employee.Role),
		},
		"workflow_id": workflowID,
	}
	allowed, err := p.evaluator.Evaluate(expression, env)
	if err != nil {
		return false, fmt.Errorf("policy for workflow %s: %w", workflowID, err)
	}
	return allowed, nil
}
