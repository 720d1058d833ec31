package catalog

import (
	"fmt"

	"github.com/threadline/production-tracker/types"
)

// Roster is an immutable lookup table of employees.
type Roster struct {
	byID map[string]types.Employee
}

// NewRoster builds a roster from the given employees. Duplicate ids
// keep the first occurrence.
func NewRoster(employees []types.Employee) *Roster {
	r := &Roster{byID: make(map[string]types.Employee, len(employees))}
	for _, e := range employees {
		if _, dup := r.byID[e.ID]; dup {
			continue
		}
		r.byID[e.ID] = e
	}
	return r
}

// Get returns the employee for id.
func (r *Roster) Get(id string) (types.Employee, error) {
	e, ok := r.byID[id]
	if !ok {
		return types.Employee{}, fmt.Errorf("%w: id=%s", ErrEmployeeNotFound, id)
	}
	return e, nil
}

// Has reports whether id names a known employee.
func (r *Roster) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// IsEligible reports whether the employee may be assigned to a step of
// the given workflow. Roster membership is the only hard constraint;
// workflow default sets are a suggestion, not a restriction.
func (r *Roster) IsEligible(employeeID, workflowID string) bool {
	_ = workflowID
	return r.Has(employeeID)
}

// Known returns the subset of ids that are present in the roster.
func (r *Roster) Known(ids types.EmployeeSet) types.EmployeeSet {
	out := make(types.EmployeeSet, len(ids))
	for id := range ids {
		if r.Has(id) {
			out.Add(id)
		}
	}
	return out
}

// Len returns the number of employees.
func (r *Roster) Len() int { return len(r.byID) }
