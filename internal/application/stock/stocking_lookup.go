package stock

import (
	"context"

	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/google/uuid"
)

// StockingStrategyProvider resolves stocking strategies by technical name
type StockingStrategyProvider interface {
	// GetStockingStrategy returns the strategy for the given name; an empty name means the default
	GetStockingStrategy(name string) (stock.StockingStrategy, error)
	// GetStockingStrategyOrDefault returns the named strategy, or the default if not found
	GetStockingStrategyOrDefault(name string) stock.StockingStrategy
}

type repositoryStockingLookup struct {
	repos TransactionalRepositories
}

// NewStockingLookup exposes the transaction's repositories to a stocking strategy
func NewStockingLookup(repos TransactionalRepositories) stock.StockingLookup {
	return &repositoryStockingLookup{repos: repos}
}

func (l *repositoryStockingLookup) FindWarehouse(ctx context.Context, id uuid.UUID) (*stock.Warehouse, error) {
	return l.repos.WarehouseRepo().FindByID(ctx, id)
}

func (l *repositoryStockingLookup) FindDefaultWarehouse(ctx context.Context) (*stock.Warehouse, error) {
	return l.repos.WarehouseRepo().FindDefault(ctx)
}

func (l *repositoryStockingLookup) FindDefaultBinLocations(ctx context.Context, warehouseID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	return l.repos.ProductConfigurationRepo().FindDefaultBinLocations(ctx, warehouseID, productIDs)
}
