package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	appstock "github.com/erp/stockengine/internal/application/stock"
	"github.com/erp/stockengine/internal/domain/order"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/erp/stockengine/internal/infrastructure/config"
	"github.com/erp/stockengine/internal/infrastructure/telemetry"
)

// RetryConfig bounds ExecuteWithRetry
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns the retry settings used when none are configured
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     5,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// RetryConfigFrom reads the retry settings of the stock config section
func RetryConfigFrom(cfg config.StockConfig) RetryConfig {
	return RetryConfig{
		MaxAttempts:     cfg.TransactionMaxAttempts,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
	}
}

// GormTransactionScope implements TransactionScope using GORM transactions.
type GormTransactionScope struct {
	db          *gorm.DB
	lockTimeout time.Duration
	retry       RetryConfig
	logger      *zap.Logger
	metrics     *telemetry.StockMetrics
}

// TransactionScopeOption configures a GormTransactionScope
type TransactionScopeOption func(*GormTransactionScope)

// WithLockTimeout sets SET LOCAL lock_timeout for every PostgreSQL transaction
func WithLockTimeout(d time.Duration) TransactionScopeOption {
	return func(s *GormTransactionScope) {
		s.lockTimeout = d
	}
}

// WithRetryConfig overrides the retry bounds
func WithRetryConfig(cfg RetryConfig) TransactionScopeOption {
	return func(s *GormTransactionScope) {
		if cfg.MaxAttempts < 1 {
			cfg.MaxAttempts = 1
		}
		s.retry = cfg
	}
}

// WithTransactionLogger sets the logger used for retry warnings
func WithTransactionLogger(l *zap.Logger) TransactionScopeOption {
	return func(s *GormTransactionScope) {
		s.logger = l
	}
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB, opts ...TransactionScopeOption) *GormTransactionScope {
	s := &GormTransactionScope{
		db:     db,
		retry:  DefaultRetryConfig(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetStockMetrics sets the metrics recorder for transaction outcomes and retries
func (s *GormTransactionScope) SetStockMetrics(m *telemetry.StockMetrics) {
	s.metrics = m
}

// Execute runs fn within one database transaction. fn's error rolls the
// transaction back and is returned unchanged.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appstock.TransactionalRepositories) error) error {
	start := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.applyLockTimeout(tx); err != nil {
			return err
		}
		return fn(&gormTransactionalRepositories{tx: tx})
	})

	outcome := telemetry.OutcomeCommitted
	if err != nil {
		outcome = telemetry.OutcomeFailed
	}
	s.metrics.RecordTransaction(ctx, time.Since(start), outcome)
	return err
}

// ExecuteWithRetry re-runs fn in a fresh transaction while it fails with a
// transient conflict, with exponential backoff between attempts
func (s *GormTransactionScope) ExecuteWithRetry(ctx context.Context, fn func(repos appstock.TransactionalRepositories) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retry.InitialInterval
	b.MaxInterval = s.retry.MaxInterval

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		err := s.Execute(ctx, fn)
		if err != nil && !IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}
	notify := func(err error, next time.Duration) {
		reason := RetryReason(err)
		s.logger.Warn("Retrying stock transaction",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.retry.MaxAttempts),
			zap.String("reason", reason),
			zap.Duration("backoff", next),
			zap.Error(err),
		)
		s.metrics.RecordRetry(ctx, reason)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(s.retry.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	// Retry returns the permanent wrapper as is when the last allowed attempt fails
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	if err != nil && IsRetryable(err) {
		s.logger.Error("Stock transaction retries exhausted",
			zap.Int("attempts", attempt),
			zap.String("reason", RetryReason(err)),
			zap.Error(err),
		)
		return fmt.Errorf("stock transaction failed after %d attempts: %w", attempt, err)
	}
	return err
}

// applyLockTimeout bounds row lock waits. SQLite has no lock_timeout.
func (s *GormTransactionScope) applyLockTimeout(tx *gorm.DB) error {
	if s.lockTimeout <= 0 || tx.Dialector.Name() != "postgres" {
		return nil
	}
	ms := s.lockTimeout.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = %d", ms)).Error; err != nil {
		return fmt.Errorf("set lock_timeout: %w", err)
	}
	return nil
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) StockRepo() stock.StockRepository {
	return NewGormStockRepository(r.tx)
}

func (r *gormTransactionalRepositories) WarehouseStockRepo() stock.WarehouseStockRepository {
	return NewGormWarehouseStockRepository(r.tx)
}

func (r *gormTransactionalRepositories) MovementRepo() stock.StockMovementRepository {
	return NewGormStockMovementRepository(r.tx)
}

func (r *gormTransactionalRepositories) WarehouseRepo() stock.WarehouseRepository {
	return NewGormWarehouseRepository(r.tx)
}

func (r *gormTransactionalRepositories) BinLocationRepo() stock.BinLocationRepository {
	return NewGormBinLocationRepository(r.tx)
}

func (r *gormTransactionalRepositories) ProductRepo() stock.ProductRepository {
	return NewGormProductRepository(r.tx)
}

func (r *gormTransactionalRepositories) ProductConfigurationRepo() stock.ProductWarehouseConfigurationRepository {
	return NewGormProductWarehouseConfigurationRepository(r.tx)
}

func (r *gormTransactionalRepositories) OrderRepo() order.OrderRepository {
	return NewGormOrderRepository(r.tx)
}

func (r *gormTransactionalRepositories) ReturnOrderRepo() order.ReturnOrderRepository {
	return NewGormReturnOrderRepository(r.tx)
}

func (r *gormTransactionalRepositories) SupplierOrderRepo() order.SupplierOrderRepository {
	return NewGormSupplierOrderRepository(r.tx)
}

// NewRepositories returns repositories bound to db without a transaction, for
// read paths and test fixtures
func NewRepositories(db *gorm.DB) appstock.TransactionalRepositories {
	return &gormTransactionalRepositories{tx: db}
}

var (
	_ appstock.TransactionScope          = (*GormTransactionScope)(nil)
	_ appstock.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
