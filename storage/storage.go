// Package storage persists production orders and the reference data
// (workflow catalog, employee roster) they are tracked against.
//
// Order writes are serialized per order via optimistic concurrency: a
// save succeeds only when the caller's snapshot version matches the
// stored one, so two commands against the same order can never both
// apply from stale reads. Commands against distinct orders are
// independent.
package storage

import (
	"context"
	"errors"

	"github.com/threadline/production-tracker/types"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrOrderExists     = errors.New("order already exists")
	ErrVersionConflict = errors.New("order version conflict")
)

// Storage is the persistence boundary of the tracker.
type Storage interface {
	// CreateOrder stores a new order at version 1. Fails with
	// ErrOrderExists if the id is taken.
	CreateOrder(ctx context.Context, order types.ProductionOrder) (types.ProductionOrder, error)

	// GetOrder retrieves an order snapshot by id.
	GetOrder(ctx context.Context, id string) (types.ProductionOrder, error)

	// SaveOrder persists an updated snapshot. The snapshot's Version
	// must match the stored version; on success the stored version is
	// incremented and the saved snapshot returned.
	SaveOrder(ctx context.Context, order types.ProductionOrder) (types.ProductionOrder, error)

	// ListOrders returns all order snapshots.
	ListOrders(ctx context.Context) ([]types.ProductionOrder, error)

	// SaveWorkflows replaces the stored workflow definitions.
	SaveWorkflows(ctx context.Context, defs []types.WorkflowDefinition) error

	// ListWorkflows returns the stored workflow definitions.
	ListWorkflows(ctx context.Context) ([]types.WorkflowDefinition, error)

	// SaveEmployees replaces the stored roster.
	SaveEmployees(ctx context.Context, employees []types.Employee) error

	// ListEmployees returns the stored roster.
	ListEmployees(ctx context.Context) ([]types.Employee, error)
}

// withContext short-circuits fn when ctx is already done.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	default:
		return fn()
	}
}
