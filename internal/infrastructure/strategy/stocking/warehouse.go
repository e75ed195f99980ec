package stocking

import (
	"context"
	"errors"

	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
)

// resolveWarehouse returns the requested warehouse, or the default warehouse
// when the request names none
func resolveWarehouse(ctx context.Context, lookup stock.StockingLookup, req stock.StockingRequest) (*stock.Warehouse, error) {
	if req.WarehouseID != nil {
		return lookup.FindWarehouse(ctx, *req.WarehouseID)
	}
	w, err := lookup.FindDefaultWarehouse(ctx)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, stock.ErrNoWarehouse
	}
	return w, err
}
