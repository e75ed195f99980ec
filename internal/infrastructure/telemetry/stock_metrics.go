package telemetry

import (
	"context"
	"time"

	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// StockMetrics provides business metrics for stock movements and the
// operations that produce them. All methods are safe on a nil receiver.
type StockMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	movementsTotal       *Counter
	movedQuantityTotal   *Counter
	shortageTotal        *Counter
	transactionRetries   *Counter
	transactionDuration  *Histogram
	importRowsTotal      *Counter
	receivedValueTotal   *Counter
	validationErrorTotal *Counter
}

// StockMetricsConfig holds configuration for stock metrics.
type StockMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewStockMetrics creates a new StockMetrics instance.
func NewStockMetrics(cfg StockMetricsConfig) (*StockMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &StockMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error
	counters := []struct {
		target **Counter
		name   string
		desc   string
		unit   string
	}{
		{&sm.movementsTotal, "stock_movements_total", "Total number of stock movements written to the ledger", "{movements}"},
		{&sm.movedQuantityTotal, "stock_moved_quantity_total", "Total quantity moved between stock locations", "{units}"},
		{&sm.shortageTotal, "stock_shortage_total", "Total quantity that could not be picked", "{units}"},
		{&sm.transactionRetries, "stock_transaction_retries_total", "Total number of retried stock transactions", "{retries}"},
		{&sm.importRowsTotal, "stock_import_rows_total", "Total number of processed stock import rows", "{rows}"},
		{&sm.receivedValueTotal, "stock_supplier_received_value_total", "Total value of received supplier goods in cents", "{cents}"},
		{&sm.validationErrorTotal, "stock_validation_errors_total", "Total number of stock batches rejected for negative stock", "{batches}"},
	}
	for _, c := range counters {
		*c.target, err = NewCounter(cfg.Meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
	}

	sm.transactionDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "stock_transaction_duration_seconds",
		Description: "Duration of stock transactions including retries",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// Outcome labels for transactions and import rows.
const (
	OutcomeCommitted = "committed"
	OutcomeFailed    = "failed"
	OutcomeImported  = "imported"
	OutcomeUnchanged = "unchanged"
	OutcomeDuplicate = "duplicate"
)

// RecordMovements records a committed batch of movements.
func (sm *StockMetrics) RecordMovements(ctx context.Context, movements stock.StockMovements) {
	if sm == nil {
		return
	}
	for _, m := range movements {
		attrs := []attribute.KeyValue{
			AttrSourceType.String(m.Source.Type().String()),
			AttrDestinationType.String(m.Destination.Type().String()),
		}
		sm.movementsTotal.Inc(ctx, attrs...)
		sm.movedQuantityTotal.Add(ctx, int64(m.Quantity), attrs...)
	}
}

// RecordShortage records the unpickable remainder of an operation.
func (sm *StockMetrics) RecordShortage(ctx context.Context, operation string, shortage stock.ProductQuantities) {
	if sm == nil {
		return
	}
	sm.shortageTotal.Add(ctx, int64(shortage.Total()), AttrOperation.String(operation))
}

// RecordValidationError records a batch rejected by the negative stock check.
func (sm *StockMetrics) RecordValidationError(ctx context.Context) {
	if sm == nil {
		return
	}
	sm.validationErrorTotal.Inc(ctx)
}

// RecordRetry records a transaction attempt that will be retried.
func (sm *StockMetrics) RecordRetry(ctx context.Context, reason string) {
	if sm == nil {
		return
	}
	sm.transactionRetries.Inc(ctx, AttrRetryReason.String(reason))
}

// RecordTransaction records the duration of a transaction with all its attempts.
func (sm *StockMetrics) RecordTransaction(ctx context.Context, d time.Duration, outcome string) {
	if sm == nil {
		return
	}
	sm.transactionDuration.RecordDuration(ctx, d, AttrOutcome.String(outcome))
}

// RecordImportRow records the outcome of one import row.
func (sm *StockMetrics) RecordImportRow(ctx context.Context, outcome string) {
	if sm == nil {
		return
	}
	sm.importRowsTotal.Inc(ctx, AttrOutcome.String(outcome))
}

// RecordReceivedValue records the value of goods received from a supplier.
func (sm *StockMetrics) RecordReceivedValue(ctx context.Context, value decimal.Decimal) {
	if sm == nil {
		return
	}
	cents := value.Mul(decimal.NewFromInt(100)).IntPart()
	sm.receivedValueTotal.Add(ctx, cents)
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewStockMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
