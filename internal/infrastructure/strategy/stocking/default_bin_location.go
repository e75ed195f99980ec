// Package stocking holds the built-in stocking strategies.
package stocking

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/erp/stockengine/internal/domain/shared/strategy"
	"github.com/erp/stockengine/internal/domain/stock"
)

// DefaultBinLocationStockingStrategy puts every product into its configured
// default bin location of the target warehouse, or into the warehouse's
// generic location when none is configured
type DefaultBinLocationStockingStrategy struct {
	strategy.BaseStrategy
}

// NewDefaultBinLocationStockingStrategy creates the default stocking strategy
func NewDefaultBinLocationStockingStrategy() *DefaultBinLocationStockingStrategy {
	return &DefaultBinLocationStockingStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"default_bin_location",
			strategy.StrategyTypeStocking,
			"Stock into the product's default bin location, else the warehouse",
		),
	}
}

// CalculateStockingSolution resolves one destination per requested product
func (s *DefaultBinLocationStockingStrategy) CalculateStockingSolution(ctx context.Context, lookup stock.StockingLookup, req stock.StockingRequest) (stock.StockingSolution, error) {
	if len(req.ProductQuantities) == 0 {
		return stock.StockingSolution{}, nil
	}
	warehouse, err := resolveWarehouse(ctx, lookup, req)
	if err != nil {
		return nil, err
	}

	productIDs := make([]uuid.UUID, len(req.ProductQuantities))
	for i, pq := range req.ProductQuantities {
		productIDs[i] = pq.ProductID
	}
	defaults, err := lookup.FindDefaultBinLocations(ctx, warehouse.ID, productIDs)
	if err != nil {
		return nil, fmt.Errorf("find default bin locations: %w", err)
	}

	solution := make(stock.StockingSolution, 0, len(req.ProductQuantities))
	for _, pq := range req.ProductQuantities {
		location := warehouse.Location()
		if binID, ok := defaults[pq.ProductID]; ok {
			location = stock.BinLocationLocation(binID)
		}
		solution = append(solution, stock.NewProductQuantityLocation(pq.ProductID, pq.Quantity, location))
	}
	return solution, nil
}

var _ stock.StockingStrategy = (*DefaultBinLocationStockingStrategy)(nil)
