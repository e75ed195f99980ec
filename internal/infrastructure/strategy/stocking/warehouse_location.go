package stocking

import (
	"context"

	"github.com/erp/stockengine/internal/domain/shared/strategy"
	"github.com/erp/stockengine/internal/domain/stock"
)

// WarehouseLocationStockingStrategy ignores bin locations and puts everything
// into the target warehouse's generic location
type WarehouseLocationStockingStrategy struct {
	strategy.BaseStrategy
}

// NewWarehouseLocationStockingStrategy creates the generic location strategy
func NewWarehouseLocationStockingStrategy() *WarehouseLocationStockingStrategy {
	return &WarehouseLocationStockingStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"warehouse_location",
			strategy.StrategyTypeStocking,
			"Stock into the warehouse's generic location",
		),
	}
}

// CalculateStockingSolution resolves every product to the warehouse location
func (s *WarehouseLocationStockingStrategy) CalculateStockingSolution(ctx context.Context, lookup stock.StockingLookup, req stock.StockingRequest) (stock.StockingSolution, error) {
	if len(req.ProductQuantities) == 0 {
		return stock.StockingSolution{}, nil
	}
	warehouse, err := resolveWarehouse(ctx, lookup, req)
	if err != nil {
		return nil, err
	}
	solution := make(stock.StockingSolution, 0, len(req.ProductQuantities))
	for _, pq := range req.ProductQuantities {
		solution = append(solution, stock.NewProductQuantityLocation(pq.ProductID, pq.Quantity, warehouse.Location()))
	}
	return solution, nil
}

var _ stock.StockingStrategy = (*WarehouseLocationStockingStrategy)(nil)
