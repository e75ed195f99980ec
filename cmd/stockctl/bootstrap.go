package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/stockengine/internal/application/fulfillment"
	appstock "github.com/erp/stockengine/internal/application/stock"
	"github.com/erp/stockengine/internal/application/stockimport"
	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/infrastructure/cache"
	"github.com/erp/stockengine/internal/infrastructure/config"
	"github.com/erp/stockengine/internal/infrastructure/event"
	"github.com/erp/stockengine/internal/infrastructure/logger"
	"github.com/erp/stockengine/internal/infrastructure/persistence"
	"github.com/erp/stockengine/internal/infrastructure/strategy"
	"github.com/erp/stockengine/internal/infrastructure/telemetry"
)

// observability owns the telemetry providers for the process lifetime
type observability struct {
	tracer   *telemetry.TracerProvider
	meter    *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
	metrics  *telemetry.StockMetrics
}

func setupObservability(ctx context.Context, cfg *config.Config, log *zap.Logger) (*observability, *zap.Logger, error) {
	t := cfg.Telemetry
	o := &observability{}

	var err error
	o.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           t.Enabled,
		CollectorEndpoint: t.CollectorEndpoint,
		SamplingRatio:     t.SamplingRatio,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		return nil, log, err
	}

	o.meter, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           t.MetricsEnabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ExportInterval:    t.MetricsExportInterval,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		return nil, log, err
	}

	o.logs, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           t.LogsEnabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		return nil, log, err
	}
	if o.logs.IsEnabled() {
		log = telemetry.NewBridgedLogger(log, telemetry.NewZapOTELCore(t.ServiceName, o.logs, logger.ParseLevel(cfg.Log.Level)))
	}

	o.profiler, err = telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         t.ProfilingEnabled,
		ServerAddress:   t.ProfilingServerURL,
		ApplicationName: t.ServiceName,
		ProfileCPU:      true,
		ProfileAlloc:    true,
		ProfileInuse:    true,
		ProfileMutex:    true,
	}, log)
	if err != nil {
		return nil, log, err
	}
	if o.profiler.IsEnabled() && o.tracer.IsEnabled() {
		o.tracer.EnableSpanProfiles()
	}

	o.metrics, err = telemetry.NewStockMetrics(telemetry.StockMetricsConfig{
		Meter:  o.meter.Meter("stockengine"),
		Logger: log,
	})
	if err != nil {
		return nil, log, fmt.Errorf("failed to create stock metrics: %w", err)
	}
	return o, log, nil
}

func (o *observability) shutdown(ctx context.Context) error {
	return errors.Join(
		o.profiler.Stop(),
		o.meter.Shutdown(ctx),
		o.tracer.Shutdown(ctx),
		o.logs.Shutdown(ctx),
	)
}

// engine is the wired stock engine
type engine struct {
	db        *persistence.Database
	bus       *event.InMemoryEventBus
	store     shared.IdempotencyStore
	shipping  *fulfillment.OrderShippingService
	returns   *fulfillment.ReturnOrderService
	suppliers *fulfillment.SupplierOrderStockingService
	importer  *stockimport.StockImporter
	queries   *appstock.StockQueryService
}

func newEngine(ctx context.Context, cfg *config.Config, log *zap.Logger, obs *observability) (*engine, error) {
	dbOpts := []persistence.DatabaseOption{persistence.WithZapLogger(log)}
	if cfg.Telemetry.DBTraceEnabled {
		tracing := telemetry.DefaultDBTracingConfig()
		tracing.Enabled = true
		tracing.DBName = cfg.Database.DBName
		if cfg.Telemetry.DBSlowQueryThresh > 0 {
			tracing.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
		}
		dbOpts = append(dbOpts, persistence.WithDBTracing(telemetry.NewDBTracingPlugin(tracing, log)))
	}
	db, err := persistence.NewDatabase(&cfg.Database, dbOpts...)
	if err != nil {
		return nil, err
	}

	strategies, err := newStrategyRegistry(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	store, err := cache.NewIdempotencyStore(ctx, cfg.Redis, cache.WithLogger(log))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	scope := persistence.NewGormTransactionScope(db.DB,
		persistence.WithLockTimeout(cfg.Database.LockTimeout),
		persistence.WithRetryConfig(persistence.RetryConfigFrom(cfg.Stock)),
		persistence.WithTransactionLogger(log),
	)
	scope.SetStockMetrics(obs.metrics)

	movements := appstock.NewStockMovementService(log)
	movements.SetStockMetrics(obs.metrics)

	bus := event.NewInMemoryEventBus(log)
	incoming := event.NewIdempotentHandler(fulfillment.NewIncomingStockHandler(scope, log), store, log,
		event.WithHandlerName("incoming_stock"))
	bus.Subscribe(incoming, incoming.EventTypes()...)

	solver := appstock.NewPickingRequestSolver(appstock.WithGenericLocations(cfg.Stock.PickGenericLocations))
	shipping := fulfillment.NewOrderShippingService(scope, movements, solver, bus, log)
	shipping.SetStockMetrics(obs.metrics)
	suppliers := fulfillment.NewSupplierOrderStockingService(scope, movements, strategies, cfg.Stock.StockingStrategy, bus, log)
	suppliers.SetStockMetrics(obs.metrics)

	return &engine{
		db:        db,
		bus:       bus,
		store:     store,
		shipping:  shipping,
		returns:   fulfillment.NewReturnOrderService(scope, movements, strategies, cfg.Stock.StockingStrategy, bus, log),
		suppliers: suppliers,
		importer: stockimport.NewStockImporter(scope, movements, cfg.Import,
			stockimport.WithIdempotencyStore(store),
			stockimport.WithEventPublisher(bus),
			stockimport.WithStockMetrics(obs.metrics),
			stockimport.WithLogger(log),
		),
		queries: appstock.NewStockQueryService(scope),
	}, nil
}

func newStrategyRegistry(cfg *config.Config) (*strategy.StockingStrategyRegistry, error) {
	registry, err := strategy.NewRegistryWithDefaults(cfg.Stock.StockingStrategy)
	if err != nil {
		return nil, fmt.Errorf("stocking strategy %q: %w", cfg.Stock.StockingStrategy, err)
	}
	return registry, nil
}

func (e *engine) close(ctx context.Context) error {
	return errors.Join(
		e.bus.Stop(ctx),
		e.store.Close(),
		e.db.Close(),
	)
}
