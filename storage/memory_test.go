package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline/production-tracker/types"
)

func newOrder(id string) types.ProductionOrder {
	return types.ProductionOrder{
		ID:           id,
		Code:         "PO-" + id,
		CustomerName: "Lan",
		CreatedBy:    "e1",
		Products: map[string]types.ProductEntry{
			"p1": {
				ProductID: "p1",
				Name:      "Hoodie",
				Quantity:  10,
				Steps: []types.StepProgress{
					{StepID: 1, WorkflowID: "cutting", Status: types.StepPending, AssignedEmployees: types.NewEmployeeSet("e1")},
				},
			},
		},
	}
}

func TestMemoryCreateAndGet(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	created, err := s.CreateOrder(ctx, newOrder("o1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Version)

	got, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "PO-o1", got.Code)
	assert.Equal(t, int64(1), got.Version)

	_, err = s.CreateOrder(ctx, newOrder("o1"))
	assert.ErrorIs(t, err, ErrOrderExists)

	_, err = s.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMemorySaveOrderCAS(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	created, err := s.CreateOrder(ctx, newOrder("o1"))
	require.NoError(t, err)

	// First writer wins.
	a := created.Clone()
	p := a.Products["p1"]
	p.Steps[0].Status = types.StepInProgress
	p.Steps[0].CompletedQuantity = 4
	a.Products["p1"] = p
	saved, err := s.SaveOrder(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)

	// Second writer holds a stale snapshot and must conflict.
	b := created.Clone()
	_, err = s.SaveOrder(ctx, b)
	assert.ErrorIs(t, err, ErrVersionConflict)

	// Reload and retry path.
	fresh, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	_, err = s.SaveOrder(ctx, fresh)
	assert.NoError(t, err)
}

func TestMemoryIsolation(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	created, err := s.CreateOrder(ctx, newOrder("o1"))
	require.NoError(t, err)

	// Mutating a returned snapshot must not leak into the store.
	p := created.Products["p1"]
	p.Steps[0].CompletedQuantity = 999
	created.Products["p1"] = p

	got, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Products["p1"].Steps[0].CompletedQuantity)
}

func TestMemoryListOrders(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	for _, id := range []string{"o2", "o1", "o3"} {
		_, err := s.CreateOrder(ctx, newOrder(id))
		require.NoError(t, err)
	}
	orders, err := s.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "o1", orders[0].ID)
	assert.Equal(t, "o3", orders[2].ID)
}

func TestMemoryReferenceData(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	defs := []types.WorkflowDefinition{
		{ID: "cutting", Name: "Cutting", DefaultEmployeeIDs: types.NewEmployeeSet("e1"), CreatedAt: 1},
	}
	employees := []types.Employee{{ID: "e1", Name: "Binh", Role: types.RoleWorker}}

	require.NoError(t, s.SaveWorkflows(ctx, defs))
	require.NoError(t, s.SaveEmployees(ctx, employees))

	gotDefs, err := s.ListWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, gotDefs, 1)
	assert.Equal(t, "Cutting", gotDefs[0].Name)

	// Stored sets are copies.
	gotDefs[0].DefaultEmployeeIDs.Add("e2")
	again, err := s.ListWorkflows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, again[0].DefaultEmployeeIDs.Len())

	gotEmployees, err := s.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Len(t, gotEmployees, 1)
}

func TestMemoryContextCancelled(t *testing.T) {
	s := NewMemoryStorage()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetOrder(ctx, "o1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryConcurrentWriters(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	_, err := s.CreateOrder(ctx, newOrder("o1"))
	require.NoError(t, err)

	// With reload-on-conflict every writer eventually lands exactly once.
	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				order, err := s.GetOrder(ctx, "o1")
				if err != nil {
					t.Error(err)
					return
				}
				if _, err := s.SaveOrder(ctx, order); err == nil {
					return
				}
			}
		}()
	}
	wg.Wait()

	got, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, int64(1+writers), got.Version)
}
