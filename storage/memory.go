package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/threadline/production-tracker/types"
)

// MemoryStorage is an in-memory Storage, suitable for tests and
// single-process deployments. Snapshots are deep-copied on the way in
// and out so callers can never alias stored state.
type MemoryStorage struct {
	mu        sync.RWMutex
	orders    map[string]types.ProductionOrder
	workflows []types.WorkflowDefinition
	employees []types.Employee
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{orders: make(map[string]types.ProductionOrder)}
}

// CreateOrder stores a new order at version 1.
func (s *MemoryStorage) CreateOrder(ctx context.Context, order types.ProductionOrder) (types.ProductionOrder, error) {
	return withContext(ctx, func() (types.ProductionOrder, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.orders[order.ID]; ok {
			return types.ProductionOrder{}, fmt.Errorf("%w: id=%s", ErrOrderExists, order.ID)
		}
		order.Version = 1
		s.orders[order.ID] = order.Clone()
		return order, nil
	})
}

// GetOrder retrieves an order snapshot by id.
func (s *MemoryStorage) GetOrder(ctx context.Context, id string) (types.ProductionOrder, error) {
	return withContext(ctx, func() (types.ProductionOrder, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		order, ok := s.orders[id]
		if !ok {
			return types.ProductionOrder{}, fmt.Errorf("%w: id=%s", ErrOrderNotFound, id)
		}
		return order.Clone(), nil
	})
}

// SaveOrder persists an updated snapshot under version CAS.
func (s *MemoryStorage) SaveOrder(ctx context.Context, order types.ProductionOrder) (types.ProductionOrder, error) {
	return withContext(ctx, func() (types.ProductionOrder, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		current, ok := s.orders[order.ID]
		if !ok {
			return types.ProductionOrder{}, fmt.Errorf("%w: id=%s", ErrOrderNotFound, order.ID)
		}
		if current.Version != order.Version {
			return types.ProductionOrder{}, fmt.Errorf("%w: id=%s have=%d want=%d",
				ErrVersionConflict, order.ID, current.Version, order.Version)
		}
		order.Version++
		s.orders[order.ID] = order.Clone()
		return order, nil
	})
}

// ListOrders returns all order snapshots sorted by id.
func (s *MemoryStorage) ListOrders(ctx context.Context) ([]types.ProductionOrder, error) {
	return withContext(ctx, func() ([]types.ProductionOrder, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		out := make([]types.ProductionOrder, 0, len(s.orders))
		for _, o := range s.orders {
			out = append(out, o.Clone())
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out, nil
	})
}

// SaveWorkflows replaces the stored workflow definitions.
func (s *MemoryStorage) SaveWorkflows(ctx context.Context, defs []types.WorkflowDefinition) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.workflows = cloneWorkflows(defs)
		return struct{}{}, nil
	})
	return err
}

// ListWorkflows returns the stored workflow definitions.
func (s *MemoryStorage) ListWorkflows(ctx context.Context) ([]types.WorkflowDefinition, error) {
	return withContext(ctx, func() ([]types.WorkflowDefinition, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return cloneWorkflows(s.workflows), nil
	})
}

// SaveEmployees replaces the stored roster.
func (s *MemoryStorage) SaveEmployees(ctx context.Context, employees []types.Employee) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.employees = append([]types.Employee(nil), employees...)
		return struct{}{}, nil
	})
	return err
}

// ListEmployees returns the stored roster.
func (s *MemoryStorage) ListEmployees(ctx context.Context) ([]types.Employee, error) {
	return withContext(ctx, func() ([]types.Employee, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return append([]types.Employee(nil), s.employees...), nil
	})
}

func cloneWorkflows(defs []types.WorkflowDefinition) []types.WorkflowDefinition {
	out := make([]types.WorkflowDefinition, len(defs))
	for i, d := range defs {
		d.DefaultEmployeeIDs = d.DefaultEmployeeIDs.Clone()
		out[i] = d
	}
	return out
}
