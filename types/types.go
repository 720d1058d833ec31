package types

import (
	"encoding/json"
	"sort"
)

// Role classifies an employee within the shop floor roster.
type Role string

const (
	RoleWorker     Role = "worker"
	RoleQC         Role = "qc"
	RoleSpecialist Role = "specialist"
	RoleSale       Role = "sale"
	RoleManager    Role = "manager"
)

// Employee is a roster entry. Employees are referenced by production
// steps, never owned by them.
type Employee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// WorkflowDefinition is a named production activity (cutting, sewing,
// quality control, ...) usable as a step template. The default employee
// set seeds step assignments at product creation; it is advisory only.
type WorkflowDefinition struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	DefaultEmployeeIDs EmployeeSet `json:"default_employee_ids"`
	CreatedAt          int64       `json:"created_at"`
}

// StepStatus is the lifecycle state of one production step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
)

// Valid reports whether s is one of the three known statuses.
func (s StepStatus) Valid() bool {
	switch s {
	case StepPending, StepInProgress, StepCompleted:
		return true
	}
	return false
}

// StepProgress tracks one workflow occurrence inside a product's
// production sequence. StepID is position-stable within the product;
// Name is a snapshot of the workflow name at assignment time and does
// not follow later renames.
type StepProgress struct {
	StepID            int         `json:"step_id"`
	WorkflowID        string      `json:"workflow_id"`
	Name              string      `json:"name"`
	AssignedEmployees EmployeeSet `json:"employees"`
	Status            StepStatus  `json:"status"`
	CompletedQuantity int         `json:"completed_quantity"`
	UpdatedAt         int64       `json:"updated_at"`
}

// Clone returns a deep copy of the step.
func (s StepProgress) Clone() StepProgress {
	out := s
	out.AssignedEmployees = s.AssignedEmployees.Clone()
	return out
}

// ProductEntry is one product line of a production order: an ordered
// quantity plus the ordered step sequence it is routed through. The
// sequence is fixed at creation and never reordered.
type ProductEntry struct {
	ProductID string         `json:"product_id"`
	Name      string         `json:"name"`
	Quantity  int            `json:"quantity"`
	Steps     []StepProgress `json:"steps"`
}

// Clone returns a deep copy of the product entry.
func (p ProductEntry) Clone() ProductEntry {
	out := p
	out.Steps = make([]StepProgress, len(p.Steps))
	for i, st := range p.Steps {
		out.Steps[i] = st.Clone()
	}
	return out
}

// Step returns the step with the given id, or nil if absent.
func (p *ProductEntry) Step(stepID int) *StepProgress {
	for i := range p.Steps {
		if p.Steps[i].StepID == stepID {
			return &p.Steps[i]
		}
	}
	return nil
}

// ProductionOrder is the aggregate root: a customer order decomposed
// into products, each tracked through its production steps. Version is
// maintained by the storage layer for per-order optimistic concurrency;
// the engine never touches it.
type ProductionOrder struct {
	ID           string                  `json:"id"`
	Code         string                  `json:"code"`
	CustomerName string                  `json:"customer_name"`
	CreatedBy    string                  `json:"created_by"`
	CreatedAt    int64                   `json:"created_at"`
	Version      int64                   `json:"version"`
	Products     map[string]ProductEntry `json:"products"`
}

// Clone returns a deep copy of the order.
func (o ProductionOrder) Clone() ProductionOrder {
	out := o
	out.Products = make(map[string]ProductEntry, len(o.Products))
	for id, p := range o.Products {
		out.Products[id] = p.Clone()
	}
	return out
}

// ProductIDs returns the order's product ids in lexical order.
func (o ProductionOrder) ProductIDs() []string {
	ids := make([]string, 0, len(o.Products))
	for id := range o.Products {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EmployeeSet is a set of employee ids. On the wire it is encoded as a
// presence map (id -> true), matching the document layout the admin
// application reads.
type EmployeeSet map[string]struct{}

// NewEmployeeSet builds a set from the given ids.
func NewEmployeeSet(ids ...string) EmployeeSet {
	s := make(EmployeeSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s EmployeeSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set.
func (s EmployeeSet) Add(id string) {
	s[id] = struct{}{}
}

// Len returns the number of members.
func (s EmployeeSet) Len() int { return len(s) }

// IDs returns the members in lexical order.
func (s EmployeeSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns an independent copy of the set.
func (s EmployeeSet) Clone() EmployeeSet {
	out := make(EmployeeSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Equal reports whether both sets hold the same members.
func (s EmployeeSet) Equal(other EmployeeSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as a presence map.
func (s EmployeeSet) MarshalJSON() ([]byte, error) {
	m := make(map[string]bool, len(s))
	for id := range s {
		m[id] = true
	}
	return json.Marshal(m)
}

// UnmarshalJSON accepts a presence map; entries mapped to false are
// treated as absent.
func (s *EmployeeSet) UnmarshalJSON(data []byte) error {
	var m map[string]bool
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	out := make(EmployeeSet, len(m))
	for id, present := range m {
		if present {
			out[id] = struct{}{}
		}
	}
	*s = out
	return nil
}
