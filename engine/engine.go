// Package engine is the behavioral core of the production tracker. It
// applies exactly one validated command to a production order snapshot
// and returns the resulting snapshot plus any derived events. The
// engine performs no I/O and holds no state between calls; loading and
// saving snapshots, and per-order serialization of commands, belong to
// the caller.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/threadline/production-tracker/catalog"
	"github.com/threadline/production-tracker/types"
)

// Standard error definitions
var (
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrDuplicateProduct        = errors.New("duplicate product")
	ErrUnknownWorkflow         = errors.New("unknown workflow")
	ErrProductNotFound         = errors.New("product not found")
	ErrStepNotFound            = errors.New("step not found")
	ErrUnknownEmployee         = errors.New("unknown employee")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrQuantityStatusMismatch  = errors.New("quantity does not match status")
	ErrUnknownCommand          = errors.New("unknown command")
)

// Command is one mutation request against a production order.
type Command interface {
	isCommand()
}

// AddProduct creates a product entry with one pending step per
// workflow id, in the given order.
type AddProduct struct {
	ProductID   string
	Name        string
	Quantity    int
	WorkflowIDs []string
}

// AssignEmployees replaces a step's assigned employee set wholesale.
type AssignEmployees struct {
	ProductID   string
	StepID      int
	EmployeeIDs []string
}

// UpdateProgress moves a step through its status state machine and
// records the quantity that has passed through it.
type UpdateProgress struct {
	ProductID         string
	StepID            int
	Status            types.StepStatus
	CompletedQuantity int
}

func (AddProduct) isCommand()      {}
func (AssignEmployees) isCommand() {}
func (UpdateProgress) isCommand()  {}

// Event types
const (
	EventStepCompleted    = "step_completed"
	EventProductCompleted = "product_completed"
	EventOrderCompleted   = "order_completed"
)

// Event is an observation for external collaborators, emitted alongside
// a successfully applied command. The engine never calls out itself.
type Event struct {
	Type      string `json:"type"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id,omitempty"`
	StepID    int    `json:"step_id,omitempty"`
	At        int64  `json:"at"`
}

// Apply applies cmd to a copy of order against the given catalog and
// roster snapshots, stamping mutations with the current wall clock.
// On error the input snapshot is untouched and the zero order is
// returned.
func Apply(order types.ProductionOrder, cmd Command, cat *catalog.Catalog, ros *catalog.Roster) (types.ProductionOrder, []Event, error) {
	return ApplyAt(order, cmd, cat, ros, time.Now().UnixMilli())
}

// ApplyAt is Apply with an explicit timestamp (unix milliseconds) for
// deterministic callers.
func ApplyAt(order types.ProductionOrder, cmd Command, cat *catalog.Catalog, ros *catalog.Roster, now int64) (types.ProductionOrder, []Event, error) {
	next := order.Clone()
	if next.Products == nil {
		next.Products = make(map[string]types.ProductEntry)
	}

	var (
		events []Event
		err    error
	)
	switch c := cmd.(type) {
	case AddProduct:
		err = applyAddProduct(&next, c, cat, ros, now)
	case AssignEmployees:
		err = applyAssignEmployees(&next, c, ros, now)
	case UpdateProgress:
		events, err = applyUpdateProgress(&next, c, now)
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
	if err != nil {
		return types.ProductionOrder{}, nil, err
	}
	return next, events, nil
}

func applyAddProduct(order *types.ProductionOrder, cmd AddProduct, cat *catalog.Catalog, ros *catalog.Roster, now int64) error {
	if cmd.Quantity <= 0 {
		return fmt.Errorf("%w: quantity=%d", ErrInvalidQuantity, cmd.Quantity)
	}
	if _, dup := order.Products[cmd.ProductID]; dup {
		return fmt.Errorf("%w: id=%s", ErrDuplicateProduct, cmd.ProductID)
	}
	for _, wfID := range cmd.WorkflowIDs {
		if !cat.Has(wfID) {
			return fmt.Errorf("%w: id=%s", ErrUnknownWorkflow, wfID)
		}
	}

	entry := types.ProductEntry{
		ProductID: cmd.ProductID,
		Name:      cmd.Name,
		Quantity:  cmd.Quantity,
		Steps:     make([]types.StepProgress, 0, len(cmd.WorkflowIDs)),
	}
	for i, wfID := range cmd.WorkflowIDs {
		wf, _ := cat.Get(wfID)
		entry.Steps = append(entry.Steps, types.StepProgress{
			StepID:     i + 1,
			WorkflowID: wf.ID,
			Name:       wf.Name,
			// Unknown default ids are dropped silently.
			AssignedEmployees: ros.Known(wf.DefaultEmployeeIDs),
			Status:            types.StepPending,
			CompletedQuantity: 0,
			UpdatedAt:         now,
		})
	}
	order.Products[cmd.ProductID] = entry
	return nil
}

func applyAssignEmployees(order *types.ProductionOrder, cmd AssignEmployees, ros *catalog.Roster, now int64) error {
	product, ok := order.Products[cmd.ProductID]
	if !ok {
		return fmt.Errorf("%w: id=%s", ErrProductNotFound, cmd.ProductID)
	}
	step := product.Step(cmd.StepID)
	if step == nil {
		return fmt.Errorf("%w: product=%s step=%d", ErrStepNotFound, cmd.ProductID, cmd.StepID)
	}
	for _, id := range cmd.EmployeeIDs {
		if !ros.Has(id) {
			return fmt.Errorf("%w: id=%s", ErrUnknownEmployee, id)
		}
	}
	step.AssignedEmployees = types.NewEmployeeSet(cmd.EmployeeIDs...)
	step.UpdatedAt = now
	order.Products[cmd.ProductID] = product
	return nil
}

func applyUpdateProgress(order *types.ProductionOrder, cmd UpdateProgress, now int64) ([]Event, error) {
	product, ok := order.Products[cmd.ProductID]
	if !ok {
		return nil, fmt.Errorf("%w: id=%s", ErrProductNotFound, cmd.ProductID)
	}
	step := product.Step(cmd.StepID)
	if step == nil {
		return nil, fmt.Errorf("%w: product=%s step=%d", ErrStepNotFound, cmd.ProductID, cmd.StepID)
	}
	if cmd.CompletedQuantity < 0 || cmd.CompletedQuantity > product.Quantity {
		return nil, fmt.Errorf("%w: quantity=%d ordered=%d", ErrInvalidQuantity, cmd.CompletedQuantity, product.Quantity)
	}
	if !canTransition(step.Status, cmd.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, step.Status, cmd.Status)
	}
	if cmd.Status == types.StepPending && cmd.CompletedQuantity != 0 {
		return nil, fmt.Errorf("%w: pending step must hold quantity 0, got %d", ErrQuantityStatusMismatch, cmd.CompletedQuantity)
	}
	if cmd.Status == types.StepCompleted && cmd.CompletedQuantity != product.Quantity {
		return nil, fmt.Errorf("%w: completed step must hold quantity %d, got %d", ErrQuantityStatusMismatch, product.Quantity, cmd.CompletedQuantity)
	}

	justCompleted := cmd.Status == types.StepCompleted && step.Status != types.StepCompleted
	step.Status = cmd.Status
	step.CompletedQuantity = cmd.CompletedQuantity
	step.UpdatedAt = now
	order.Products[cmd.ProductID] = product

	var events []Event
	if justCompleted {
		events = append(events, Event{
			Type:      EventStepCompleted,
			OrderID:   order.ID,
			ProductID: cmd.ProductID,
			StepID:    cmd.StepID,
			At:        now,
		})
		if ProductComplete(product) {
			events = append(events, Event{
				Type:      EventProductCompleted,
				OrderID:   order.ID,
				ProductID: cmd.ProductID,
				At:        now,
			})
			if OrderComplete(*order) {
				events = append(events, Event{
					Type:    EventOrderCompleted,
					OrderID: order.ID,
					At:      now,
				})
			}
		}
	}
	return events, nil
}

// canTransition implements the per-step state machine. Reopening a
// completed step is legal: rework and QC rejection are routine on the
// shop floor. Logging quantity straight from pending to completed is
// not.
func canTransition(from, to types.StepStatus) bool {
	if !to.Valid() {
		return false
	}
	if from == to {
		// in_progress -> in_progress is the quantity-update path;
		// the other self-transitions keep command replays harmless.
		return true
	}
	switch from {
	case types.StepPending:
		return to == types.StepInProgress
	case types.StepInProgress:
		return to == types.StepCompleted
	case types.StepCompleted:
		return to == types.StepInProgress
	}
	return false
}
