package stock

import (
	"context"

	"github.com/erp/stockengine/internal/domain/order"
	"github.com/erp/stockengine/internal/domain/stock"
)

// TransactionScope provides transactional access to the stock repositories.
// When a function is executed within a transaction scope, all repository operations
// will be part of the same database transaction and will be committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error

	// ExecuteWithRetry is Execute retried on transient conflicts (deadlock,
	// serialization failure, lock timeout) a bounded number of times. fn is re-run
	// from scratch on every attempt and must not have side effects outside the
	// transaction. Non-transient errors are returned immediately.
	ExecuteWithRetry(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all repositories within a transaction.
// All repositories returned share the same underlying database transaction.
//
// Aggregated stock (StockRepo, WarehouseStockRepo) and the ledger (MovementRepo) are
// only written by StockMovementService.
type TransactionalRepositories interface {
	StockRepo() stock.StockRepository
	WarehouseStockRepo() stock.WarehouseStockRepository
	MovementRepo() stock.StockMovementRepository
	WarehouseRepo() stock.WarehouseRepository
	BinLocationRepo() stock.BinLocationRepository
	ProductRepo() stock.ProductRepository
	ProductConfigurationRepo() stock.ProductWarehouseConfigurationRepository
	OrderRepo() order.OrderRepository
	ReturnOrderRepo() order.ReturnOrderRepository
	SupplierOrderRepo() order.SupplierOrderRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	repos TransactionalRepositories
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given repositories.
func NewNoOpTransactionScope(repos TransactionalRepositories) *NoOpTransactionScope {
	return &NoOpTransactionScope{repos: repos}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s.repos)
}

// ExecuteWithRetry runs the function once.
func (s *NoOpTransactionScope) ExecuteWithRetry(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	return s.Execute(ctx, fn)
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
