// Package catalog holds the read-only reference tables the tracker
// works against: the workflow catalog and the employee roster. Both are
// loaded once and never mutated by the engine.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/threadline/production-tracker/types"
)

var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrEmployeeNotFound = errors.New("employee not found")
)

// Catalog is an immutable lookup table of workflow definitions.
type Catalog struct {
	byID    map[string]types.WorkflowDefinition
	ordered []types.WorkflowDefinition
}

// NewCatalog builds a catalog from the given definitions. List order is
// by creation time, ties broken by id, regardless of input order.
func NewCatalog(defs []types.WorkflowDefinition) *Catalog {
	c := &Catalog{byID: make(map[string]types.WorkflowDefinition, len(defs))}
	for _, d := range defs {
		if _, dup := c.byID[d.ID]; dup {
			continue
		}
		c.byID[d.ID] = d
		c.ordered = append(c.ordered, d)
	}
	sort.SliceStable(c.ordered, func(i, j int) bool {
		a, b := c.ordered[i], c.ordered[j]
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.ID < b.ID
	})
	return c
}

// Get returns the workflow definition for id.
func (c *Catalog) Get(id string) (types.WorkflowDefinition, error) {
	d, ok := c.byID[id]
	if !ok {
		return types.WorkflowDefinition{}, fmt.Errorf("%w: id=%s", ErrWorkflowNotFound, id)
	}
	return d, nil
}

// Has reports whether id names a known workflow.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// List returns all definitions in stable creation order.
func (c *Catalog) List() []types.WorkflowDefinition {
	out := make([]types.WorkflowDefinition, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Len returns the number of definitions.
func (c *Catalog) Len() int { return len(c.byID) }
