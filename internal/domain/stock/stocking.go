package stock

import (
	"context"
	"fmt"

	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/shared/strategy"
	"github.com/google/uuid"
)

// StockingRequest asks where to put product quantities, optionally into a
// specific warehouse
type StockingRequest struct {
	ProductQuantities ProductQuantities `validate:"dive"`
	WarehouseID       *uuid.UUID
}

// NewStockingRequest creates a request; quantities of the same product are
// merged and zero quantities dropped
func NewStockingRequest(quantities ProductQuantities, warehouseID *uuid.UUID) (StockingRequest, error) {
	merged := quantities.Merge().NonZero()
	for _, q := range merged {
		if q.ProductID == uuid.Nil {
			return StockingRequest{}, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
		}
		if q.Quantity < 0 {
			return StockingRequest{}, shared.NewDomainError("INVALID_QUANTITY", fmt.Sprintf("Stocking quantity for product %s cannot be negative", q.ProductID))
		}
	}
	return StockingRequest{ProductQuantities: merged, WarehouseID: warehouseID}, nil
}

// StockingSolution holds exactly one resolved destination per requested
// product quantity
type StockingSolution []ProductQuantityLocation

// ToStockMovements converts the solution into movements from source
func (s StockingSolution) ToStockMovements(source LocationReference, opts MovementOptions) (StockMovements, error) {
	movements := make(StockMovements, 0, len(s))
	for _, pql := range s {
		if pql.Quantity == 0 {
			continue
		}
		m, err := NewStockMovement(pql.ProductID, pql.Quantity, source, pql.Location)
		if err != nil {
			return nil, err
		}
		opts.apply(m)
		movements = append(movements, m)
	}
	return movements, nil
}

// StockingLookup is the read access a stocking strategy needs, scoped to the
// caller's unit of work
type StockingLookup interface {
	// FindWarehouse returns the warehouse or shared.ErrNotFound
	FindWarehouse(ctx context.Context, id uuid.UUID) (*Warehouse, error)
	// FindDefaultWarehouse returns the default warehouse or shared.ErrNotFound
	FindDefaultWarehouse(ctx context.Context) (*Warehouse, error)
	// FindDefaultBinLocations returns the configured default bin location per
	// product in the warehouse; products without one are absent
	FindDefaultBinLocations(ctx context.Context, warehouseID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
}

// StockingStrategy resolves one concrete destination per requested product
// quantity. Stocking never runs out of space: implementations are total for
// valid input.
type StockingStrategy interface {
	strategy.Strategy
	CalculateStockingSolution(ctx context.Context, lookup StockingLookup, req StockingRequest) (StockingSolution, error)
}
