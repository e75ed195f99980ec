package telemetry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled          bool
	SlowQueryThresh  time.Duration // default 200ms
	DBName           string
	WithoutVariables bool // exclude query variables from spans
}

// DefaultDBTracingConfig returns default configuration for database tracing.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh:  200 * time.Millisecond,
		DBName:           "stockengine",
		WithoutVariables: true,
	}
}

// DBTracingPlugin registers otelgorm and annotates its spans with row lock
// and slow query information. Lock waits on stock rows show up as slow
// SELECT ... FOR UPDATE statements.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new database tracing plugin.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = DefaultDBTracingConfig().SlowQueryThresh
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

// RegisterOtelGorm registers otelgorm and the timing callbacks on db.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBName)}
	if p.config.WithoutVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := p.registerCallbacks(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_name", p.config.DBName),
	)
	return nil
}

func (p *DBTracingPlugin) registerCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("stock_timing:before_create", markQueryStart),
		cb.Query().Before("gorm:query").Register("stock_timing:before_query", markQueryStart),
		cb.Update().Before("gorm:update").Register("stock_timing:before_update", markQueryStart),
		cb.Delete().Before("gorm:delete").Register("stock_timing:before_delete", markQueryStart),
		cb.Row().Before("gorm:row").Register("stock_timing:before_row", markQueryStart),
		cb.Raw().Before("gorm:raw").Register("stock_timing:before_raw", markQueryStart),
		cb.Create().After("gorm:create").Register("stock_timing:after_create", p.afterQuery),
		cb.Query().After("gorm:query").Register("stock_timing:after_query", p.afterQuery),
		cb.Update().After("gorm:update").Register("stock_timing:after_update", p.afterQuery),
		cb.Delete().After("gorm:delete").Register("stock_timing:after_delete", p.afterQuery),
		cb.Row().After("gorm:row").Register("stock_timing:after_row", p.afterQuery),
		cb.Raw().After("gorm:raw").Register("stock_timing:after_raw", p.afterQuery),
	)
}

type contextKey string

const queryStartTimeKey contextKey = "stock_query_start_time"

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
	}
}

func (p *DBTracingPlugin) afterQuery(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	recording := span.IsRecording()
	if recording {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if db.Statement.Table != "" {
			span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
		}
		if isRowLock(db) {
			span.SetAttributes(attribute.Bool("db.row_lock", true))
		}
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, db.Error.Error())
			span.RecordError(db.Error)
		}
	}

	startTime, ok := ctx.Value(queryStartTimeKey).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(startTime)
	if elapsed <= p.config.SlowQueryThresh {
		return
	}
	if recording {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
		))
	}
	p.logger.Warn("slow query",
		zap.String("table", db.Statement.Table),
		zap.Bool("row_lock", isRowLock(db)),
		zap.Duration("elapsed", elapsed),
	)
}

// isRowLock reports whether the statement takes row locks
func isRowLock(db *gorm.DB) bool {
	if _, ok := db.Statement.Clauses["FOR"]; ok {
		return true
	}
	return strings.Contains(strings.ToUpper(db.Statement.SQL.String()), "FOR UPDATE")
}
