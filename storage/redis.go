package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/threadline/production-tracker/types"
)

const (
	orderPrefix  = "order:"
	workflowsKey = "catalog:workflows"
	employeesKey = "roster:employees"
)

// RedisStorage is a Redis-backed Storage. Orders are JSON documents
// under order:<id>; version CAS is enforced with WATCH transactions so
// concurrent writers against the same order cannot clobber each other.
type RedisStorage struct {
	client *redis.Client
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	IdleTimeout  time.Duration
}

// NewRedisStorage connects to Redis and verifies the connection.
func NewRedisStorage(opts RedisOptions) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		IdleTimeout:  opts.IdleTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %v", err)
	}
	return &RedisStorage{client: client}, nil
}

// Close releases the underlying connection pool.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

func orderKey(id string) string { return orderPrefix + id }

// CreateOrder stores a new order at version 1.
func (s *RedisStorage) CreateOrder(ctx context.Context, order types.ProductionOrder) (types.ProductionOrder, error) {
	order.Version = 1
	data, err := json.Marshal(order)
	if err != nil {
		return types.ProductionOrder{}, fmt.Errorf("failed to marshal order %s: %v", order.ID, err)
	}
	ok, err := s.client.SetNX(ctx, orderKey(order.ID), data, 0).Result()
	if err != nil {
		return types.ProductionOrder{}, fmt.Errorf("failed to create order %s: %v", order.ID, err)
	}
	if !ok {
		return types.ProductionOrder{}, fmt.Errorf("%w: id=%s", ErrOrderExists, order.ID)
	}
	return order, nil
}

// GetOrder retrieves an order snapshot by id.
func (s *RedisStorage) GetOrder(ctx context.Context, id string) (types.ProductionOrder, error) {
	data, err := s.client.Get(ctx, orderKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.ProductionOrder{}, fmt.Errorf("%w: id=%s", ErrOrderNotFound, id)
	}
	if err != nil {
		return types.ProductionOrder{}, fmt.Errorf("failed to get order %s: %v", id, err)
	}
	var order types.ProductionOrder
	if err := json.Unmarshal(data, &order); err != nil {
		return types.ProductionOrder{}, fmt.Errorf("failed to unmarshal order %s: %v", id, err)
	}
	return order, nil
}

// SaveOrder persists an updated snapshot under version CAS. The stored
// document is read and checked inside a WATCH transaction; a concurrent
// write aborts the pipeline and surfaces as ErrVersionConflict.
func (s *RedisStorage) SaveOrder(ctx context.Context, order types.ProductionOrder) (types.ProductionOrder, error) {
	key := orderKey(order.ID)
	saved := order

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: id=%s", ErrOrderNotFound, order.ID)
		}
		if err != nil {
			return err
		}
		var current types.ProductionOrder
		if err := json.Unmarshal(data, &current); err != nil {
			return fmt.Errorf("failed to unmarshal order %s: %v", order.ID, err)
		}
		if current.Version != order.Version {
			return fmt.Errorf("%w: id=%s have=%d want=%d",
				ErrVersionConflict, order.ID, current.Version, order.Version)
		}

		saved.Version = order.Version + 1
		payload, err := json.Marshal(saved)
		if err != nil {
			return fmt.Errorf("failed to marshal order %s: %v", order.ID, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}

	if err := s.client.Watch(ctx, txn, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return types.ProductionOrder{}, fmt.Errorf("%w: id=%s", ErrVersionConflict, order.ID)
		}
		return types.ProductionOrder{}, err
	}
	return saved, nil
}

// ListOrders scans all order keys and returns their snapshots.
func (s *RedisStorage) ListOrders(ctx context.Context) ([]types.ProductionOrder, error) {
	var (
		out    []types.ProductionOrder
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, orderPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan orders: %v", err)
		}
		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to get %s: %v", key, err)
			}
			var order types.ProductionOrder
			if err := json.Unmarshal(data, &order); err != nil {
				return nil, fmt.Errorf("failed to unmarshal %s: %v", key, err)
			}
			out = append(out, order)
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

// SaveWorkflows replaces the stored workflow definitions.
func (s *RedisStorage) SaveWorkflows(ctx context.Context, defs []types.WorkflowDefinition) error {
	return s.saveJSON(ctx, workflowsKey, defs)
}

// ListWorkflows returns the stored workflow definitions.
func (s *RedisStorage) ListWorkflows(ctx context.Context) ([]types.WorkflowDefinition, error) {
	var defs []types.WorkflowDefinition
	if err := s.loadJSON(ctx, workflowsKey, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// SaveEmployees replaces the stored roster.
func (s *RedisStorage) SaveEmployees(ctx context.Context, employees []types.Employee) error {
	return s.saveJSON(ctx, employeesKey, employees)
}

// ListEmployees returns the stored roster.
func (s *RedisStorage) ListEmployees(ctx context.Context) ([]types.Employee, error) {
	var employees []types.Employee
	if err := s.loadJSON(ctx, employeesKey, &employees); err != nil {
		return nil, err
	}
	return employees, nil
}

func (s *RedisStorage) saveJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %v", key, err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %v", key, err)
	}
	return nil
}

func (s *RedisStorage) loadJSON(ctx context.Context, key string, out interface{}) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %v", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %v", key, err)
	}
	return nil
}
