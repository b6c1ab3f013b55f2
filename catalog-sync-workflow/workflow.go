// =============================================================================
// workflow.go - Service Wiring and Lifecycle
// =============================================================================
//
// The Workflow owns every long-lived component and wires them together:
//
//	Source ─┐
//	Store ──┼─► Importer ─► Guard ─┬─► Scheduler (ticker)
//	Bus ────┤                      └─► HTTP API (POST /imports)
//	Metrics ┘
//
// USAGE:
//
//	workflow, err := NewWorkflow(ctx, config, logger)
//	defer workflow.Close()
//
//	report := workflow.RunOnce(ctx)    // --once
//	err := workflow.Serve(ctx)         // service mode, returns when ctx ends
//
// The Workflow uses a scoped logger with [WORKFLOW] prefix; the importer,
// scheduler and HTTP layer each log under their own scope.
//
// =============================================================================

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/api"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/events"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/importer"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/interfaces"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/memory"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/scheduler"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/source"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/stats"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/store"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/store/memstore"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/store/postgres"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/store/rocksdb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// Workflow holds the wired service.
type Workflow struct {
	config   *Config
	logger   interfaces.Logger
	store    interfaces.Store
	registry *prometheus.Registry
	importer *importer.Importer
	guard    *importer.Guard
	started  time.Time
}

// NewWorkflow opens the store and builds every component.
func NewWorkflow(ctx context.Context, config *Config, logger interfaces.Logger) (*Workflow, error) {
	log := logger.WithScope("WORKFLOW")

	src, err := source.New(source.Options{
		URL:        config.Source.BaseURL,
		Timeout:    config.Source.Timeout,
		UserAgent:  config.Source.UserAgent,
		Retries:    config.Source.Retries,
		S3Region:   config.Source.S3Region,
		S3Endpoint: config.Source.S3Endpoint,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating source")
	}

	st, err := openStore(ctx, config, logger)
	if err != nil {
		return nil, err
	}
	log.Info("Store ready: %s", st.Name())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := stats.NewMetrics(registry)

	bus := events.NewBus()
	bus.Subscribe(events.LogSubscriber(logger.WithScope("EVENTS")))

	imp := importer.New(src, st, st, bus, logger, metrics, importer.Options{
		MaxProducts:    config.Import.MaxProducts,
		FileNameLength: config.Source.FileNameLength,
		ChunkSize:      config.Import.ChunkSize,
	})

	return &Workflow{
		config:   config,
		logger:   log,
		store:    st,
		registry: registry,
		importer: imp,
		guard:    importer.NewGuard(imp),
		started:  time.Now(),
	}, nil
}

// openStore opens the configured backend.
func openStore(ctx context.Context, config *Config, logger interfaces.Logger) (interfaces.Store, error) {
	switch config.Store.Backend {
	case store.BackendRocksDB:
		st, err := rocksdb.Open(config.Store.Path, config.Store.RocksDB, logger)
		if err != nil {
			return nil, errors.Wrapf(err, "opening rocksdb store at %s", config.Store.Path)
		}
		return st, nil
	case store.BackendPostgres:
		st, err := postgres.Open(ctx, postgres.Options{
			DSN:            config.Store.PGDSN,
			MaxConns:       config.Store.PGMaxConns,
			SimpleProtocol: config.Store.PGSimpleProtocol,
		}, logger)
		if err != nil {
			return nil, errors.Wrap(err, "opening postgres store")
		}
		return st, nil
	case store.BackendMemory:
		return memstore.New(), nil
	}
	return nil, errors.Newf(errors.ErrInvalidArgument, "unknown store backend %q", config.Store.Backend)
}

// RunOnce runs a single import through the guard.
func (w *Workflow) RunOnce(ctx context.Context) importer.RunReport {
	if w.config.Import.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.Import.RunTimeout)
		defer cancel()
	}
	report, _ := w.guard.Run(ctx)
	memory.Take().Log(w.logger, "After import")
	return report
}

// Serve runs the HTTP API and the scheduler until ctx ends or either fails.
func (w *Workflow) Serve(ctx context.Context) error {
	sched, err := scheduler.New(w.guard, w.logger, scheduler.Options{
		Interval:   w.config.Import.ScheduleInterval,
		RunTimeout: w.config.Import.RunTimeout,
		RunOnStart: w.config.Import.RunOnStart,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	handler := api.NewHandler(api.Options{
		Store:      w.store,
		Status:     w.importer,
		Trigger:    w.guard,
		Gatherer:   w.registry,
		Logger:     w.logger,
		Started:    w.started,
		Version:    Version,
		RunContext: gctx,
		RunTimeout: w.config.Import.RunTimeout,
	})
	server := &http.Server{
		Addr:              w.config.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		w.logger.Info("HTTP API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "http server")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), w.config.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "http shutdown")
		}
		w.logger.Info("HTTP API stopped")
		return nil
	})

	g.Go(func() error {
		return sched.Run(gctx)
	})

	return g.Wait()
}

// Store returns the opened backend.
func (w *Workflow) Store() interfaces.Store {
	return w.store
}

// Close releases the store. Safe to call once.
func (w *Workflow) Close() {
	w.store.Close()
	w.logger.Info("Store closed")
}
