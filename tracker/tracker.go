// Package tracker orchestrates the production-workflow core: it loads
// order snapshots from storage, applies engine commands, saves under
// per-order optimistic concurrency with bounded retry, and publishes
// the resulting events on the bus.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/songzhibin97/gkit/generator"

	"github.com/threadline/production-tracker/catalog"
	"github.com/threadline/production-tracker/engine"
	"github.com/threadline/production-tracker/events"
	"github.com/threadline/production-tracker/rules"
	"github.com/threadline/production-tracker/storage"
	"github.com/threadline/production-tracker/types"
)

var (
	ErrReferenceDataNotLoaded = errors.New("reference data not loaded")
	ErrPolicyViolation        = errors.New("assignment rejected by workflow policy")
	ErrInvalidOrder           = errors.New("invalid order")
)

// Tracker is the stateful front of the engine. All command methods are
// safe for concurrent use; conflicting writes against one order are
// resolved by reload-and-retry on version conflicts.
type Tracker struct {
	store    storage.Storage
	bus      *events.Bus
	generate generator.Generator
	policies *rules.Policies

	mu      sync.RWMutex
	catalog *catalog.Catalog
	roster  *catalog.Roster

	saveRetries int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithEventBus replaces the default bus.
func WithEventBus(bus *events.Bus) Option {
	return func(t *Tracker) { t.bus = bus }
}

// WithPolicies installs an assignment policy registry.
func WithPolicies(p *rules.Policies) Option {
	return func(t *Tracker) { t.policies = p }
}

// WithSaveRetries sets how many times a command is replayed after a
// version conflict before giving up.
func WithSaveRetries(n int) Option {
	return func(t *Tracker) { t.saveRetries = n }
}

// New creates a Tracker. The generator is required; a nil store falls
// back to in-memory storage.
func New(generate generator.Generator, store storage.Storage, opts ...Option) (*Tracker, error) {
	if generate == nil {
		return nil, errors.New("generator is required")
	}
	if store == nil {
		store = storage.NewMemoryStorage()
	}
	t := &Tracker{
		store:       store,
		generate:    generate,
		policies:    rules.NewPolicies(nil),
		saveRetries: 3,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.bus == nil {
		t.bus = events.NewBus()
	}
	return t, nil
}

// Bus exposes the event bus for subscriptions.
func (t *Tracker) Bus() *events.Bus { return t.bus }

// Policies exposes the assignment policy registry.
func (t *Tracker) Policies() *rules.Policies { return t.policies }

// LoadReferenceData builds the workflow catalog and roster from
// storage. Call once at boot and again after administrative edits.
func (t *Tracker) LoadReferenceData(ctx context.Context) error {
	defs, err := t.store.ListWorkflows(ctx)
	if err != nil {
		return fmt.Errorf("failed to load workflows: %w", err)
	}
	employees, err := t.store.ListEmployees(ctx)
	if err != nil {
		return fmt.Errorf("failed to load employees: %w", err)
	}
	t.mu.Lock()
	t.catalog = catalog.NewCatalog(defs)
	t.roster = catalog.NewRoster(employees)
	t.mu.Unlock()
	return nil
}

// SeedReferenceData persists the given reference data and loads it.
func (t *Tracker) SeedReferenceData(ctx context.Context, defs []types.WorkflowDefinition, employees []types.Employee) error {
	if err := t.store.SaveWorkflows(ctx, defs); err != nil {
		return fmt.Errorf("failed to save workflows: %w", err)
	}
	if err := t.store.SaveEmployees(ctx, employees); err != nil {
		return fmt.Errorf("failed to save employees: %w", err)
	}
	return t.LoadReferenceData(ctx)
}

func (t *Tracker) refs() (*catalog.Catalog, *catalog.Roster, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.catalog == nil || t.roster == nil {
		return nil, nil, ErrReferenceDataNotLoaded
	}
	return t.catalog, t.roster, nil
}

// Workflows returns the loaded catalog in stable creation order.
func (t *Tracker) Workflows() ([]types.WorkflowDefinition, error) {
	cat, _, err := t.refs()
	if err != nil {
		return nil, err
	}
	return cat.List(), nil
}

// Employee returns a roster entry.
func (t *Tracker) Employee(id string) (types.Employee, error) {
	_, ros, err := t.refs()
	if err != nil {
		return types.Employee{}, err
	}
	return ros.Get(id)
}

// CreateOrder creates an empty production order attributed to the
// given sales employee. The order code is issued once and immutable.
func (t *Tracker) CreateOrder(ctx context.Context, customerName, createdBy string) (types.ProductionOrder, error) {
	_, ros, err := t.refs()
	if err != nil {
		return types.ProductionOrder{}, err
	}
	if strings.TrimSpace(customerName) == "" {
		return types.ProductionOrder{}, fmt.Errorf("%w: customer name is required", ErrInvalidOrder)
	}
	if !ros.Has(createdBy) {
		return types.ProductionOrder{}, fmt.Errorf("%w: id=%s", catalog.ErrEmployeeNotFound, createdBy)
	}

	id, err := t.generate.NextID()
	if err != nil {
		return types.ProductionOrder{}, fmt.Errorf("failed to generate order id: %w", err)
	}
	order := types.ProductionOrder{
		ID:           strconv.FormatUint(id, 10),
		Code:         "PO-" + strings.ToUpper(strconv.FormatUint(id, 36)),
		CustomerName: customerName,
		CreatedBy:    createdBy,
		CreatedAt:    time.Now().UnixMilli(),
		Products:     make(map[string]types.ProductEntry),
	}
	return t.store.CreateOrder(ctx, order)
}

// GetOrder returns the current snapshot of an order.
func (t *Tracker) GetOrder(ctx context.Context, orderID string) (types.ProductionOrder, error) {
	return t.store.GetOrder(ctx, orderID)
}

// ListOrders returns all order snapshots.
func (t *Tracker) ListOrders(ctx context.Context) ([]types.ProductionOrder, error) {
	return t.store.ListOrders(ctx)
}

// Completion returns the derived completion view of an order.
func (t *Tracker) Completion(ctx context.Context, orderID string) (engine.OrderSummary, error) {
	order, err := t.store.GetOrder(ctx, orderID)
	if err != nil {
		return engine.OrderSummary{}, err
	}
	return engine.Summarize(order), nil
}

// AddProduct adds a product entry with its step sequence to an order.
func (t *Tracker) AddProduct(ctx context.Context, orderID string, cmd engine.AddProduct) (types.ProductionOrder, error) {
	return t.apply(ctx, orderID, cmd)
}

// AssignEmployees replaces a step's assignee set, subject to any
// registered workflow policy.
func (t *Tracker) AssignEmployees(ctx context.Context, orderID string, cmd engine.AssignEmployees) (types.ProductionOrder, error) {
	return t.apply(ctx, orderID, cmd)
}

// UpdateProgress advances a step through its state machine.
func (t *Tracker) UpdateProgress(ctx context.Context, orderID string, cmd engine.UpdateProgress) (types.ProductionOrder, error) {
	return t.apply(ctx, orderID, cmd)
}

// apply is the single command path: load, validate, transform, save
// under CAS, publish. A version conflict means another command landed
// between our read and write; the command is replayed against the
// fresh snapshot.
func (t *Tracker) apply(ctx context.Context, orderID string, cmd engine.Command) (types.ProductionOrder, error) {
	cat, ros, err := t.refs()
	if err != nil {
		return types.ProductionOrder{}, err
	}

	var lastErr error
	for attempt := 0; attempt <= t.saveRetries; attempt++ {
		order, err := t.store.GetOrder(ctx, orderID)
		if err != nil {
			return types.ProductionOrder{}, err
		}
		if assign, ok := cmd.(engine.AssignEmployees); ok {
			if err := t.checkPolicy(order, assign, ros); err != nil {
				return types.ProductionOrder{}, err
			}
		}
		next, evs, err := engine.Apply(order, cmd, cat, ros)
		if err != nil {
			return types.ProductionOrder{}, err
		}
		saved, err := t.store.SaveOrder(ctx, next)
		if errors.Is(err, storage.ErrVersionConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return types.ProductionOrder{}, err
		}
		t.publish(ctx, evs)
		return saved, nil
	}
	return types.ProductionOrder{}, fmt.Errorf("command against order %s gave up after %d attempts: %w",
		orderID, t.saveRetries+1, lastErr)
}

// checkPolicy rejects assignments a workflow policy forbids. Unknown
// products, steps or employees fall through; the engine reports those
// with its own typed errors.
func (t *Tracker) checkPolicy(order types.ProductionOrder, cmd engine.AssignEmployees, ros *catalog.Roster) error {
	product, ok := order.Products[cmd.ProductID]
	if !ok {
		return nil
	}
	step := product.Step(cmd.StepID)
	if step == nil {
		return nil
	}
	for _, id := range cmd.EmployeeIDs {
		employee, err := ros.Get(id)
		if err != nil {
			continue
		}
		allowed, err := t.policies.Allows(step.WorkflowID, employee)
		if err != nil {
			return err
		}
		if !allowed {
			return fmt.Errorf("%w: employee=%s workflow=%s", ErrPolicyViolation, id, step.WorkflowID)
		}
	}
	return nil
}

func (t *Tracker) publish(ctx context.Context, evs []engine.Event) {
	for _, ev := range evs {
		// Dropped events are acceptable: completion state is always
		// recomputable from the stored order.
		_ = t.bus.Publish(ctx, ev)
	}
}

// Stop shuts down the event bus after draining pending events.
func (t *Tracker) Stop() {
	t.bus.Stop()
}
