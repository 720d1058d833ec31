package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/songzhibin97/gkit/generator"

	"github.com/threadline/production-tracker/api"
	"github.com/threadline/production-tracker/config"
	"github.com/threadline/production-tracker/engine"
	"github.com/threadline/production-tracker/events"
	"github.com/threadline/production-tracker/storage"
	"github.com/threadline/production-tracker/tracker"
	"github.com/threadline/production-tracker/types"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var store storage.Storage
	if cfg.Redis.Enabled {
		rs, err := storage.NewRedisStorage(storage.RedisOptions{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			IdleTimeout:  cfg.Redis.IdleTimeout,
		})
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rs.Close()
		store = rs
	} else {
		store = storage.NewMemoryStorage()
	}

	bus := events.NewBus(events.WithBufferSize(cfg.Tracker.EventBuffer))
	bus.SubscribeFunc(engine.EventStepCompleted, logEvent)
	bus.SubscribeFunc(engine.EventProductCompleted, logEvent)
	bus.SubscribeFunc(engine.EventOrderCompleted, func(ctx context.Context, ev engine.Event) error {
		// Finance hook: a finished order is ready for invoicing.
		log.Printf("order %s completed production, notify finance", ev.OrderID)
		return nil
	})

	snowflake := generator.NewSnowflake(time.Now().Add(-1*time.Second), uint16(cfg.Tracker.MachineID))
	t, err := tracker.New(snowflake, store,
		tracker.WithEventBus(bus),
		tracker.WithSaveRetries(cfg.Tracker.SaveRetries),
	)
	if err != nil {
		log.Fatalf("tracker: %v", err)
	}

	ctx := context.Background()
	if err := t.LoadReferenceData(ctx); err != nil {
		log.Fatalf("reference data: %v", err)
	}
	if defs, _ := t.Workflows(); len(defs) == 0 {
		log.Printf("empty catalog, seeding defaults")
		if err := t.SeedReferenceData(ctx, defaultWorkflows(), defaultEmployees()); err != nil {
			log.Fatalf("seed: %v", err)
		}
	}

	srv := api.NewServer(t)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("trackerd listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	t.Stop()
}

func logEvent(ctx context.Context, ev engine.Event) error {
	log.Printf("event %s: order=%s product=%s step=%d", ev.Type, ev.OrderID, ev.ProductID, ev.StepID)
	return nil
}

// defaultWorkflows is the stock garment routing used on first boot.
func defaultWorkflows() []types.WorkflowDefinition {
	now := time.Now().UnixMilli()
	return []types.WorkflowDefinition{
		{ID: "wf-cutting", Name: "Cutting", DefaultEmployeeIDs: types.NewEmployeeSet("emp-binh", "emp-cuong"), CreatedAt: now},
		{ID: "wf-sewing", Name: "Sewing", DefaultEmployeeIDs: types.NewEmployeeSet("emp-dung", "emp-giang"), CreatedAt: now + 1},
		{ID: "wf-qc", Name: "Quality Control", DefaultEmployeeIDs: types.NewEmployeeSet("emp-hanh"), CreatedAt: now + 2},
		{ID: "wf-packaging", Name: "Packaging", DefaultEmployeeIDs: types.NewEmployeeSet("emp-cuong"), CreatedAt: now + 3},
	}
}

func defaultEmployees() []types.Employee {
	return []types.Employee{
		{ID: "emp-anh", Name: "Anh Tran", Role: types.RoleSale},
		{ID: "emp-binh", Name: "Binh Le", Role: types.RoleWorker},
		{ID: "emp-cuong", Name: "Cuong Pham", Role: types.RoleWorker},
		{ID: "emp-dung", Name: "Dung Nguyen", Role: types.RoleSpecialist},
		{ID: "emp-giang", Name: "Giang Vo", Role: types.RoleWorker},
		{ID: "emp-hanh", Name: "Hanh Bui", Role: types.RoleQC},
		{ID: "emp-khoa", Name: "Khoa Dao", Role: types.RoleManager},
	}
}
