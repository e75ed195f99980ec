package stock

import (
	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/google/uuid"
)

// Stock is the aggregated quantity of a product at one location. It is derived
// from the movement ledger and only mutated by the stock movement service.
type Stock struct {
	shared.BaseEntity
	ProductID       uuid.UUID
	Location        LocationReference
	WarehouseID     *uuid.UUID // set for warehouse and bin locations
	BinLocationCode string     // set for bin locations, used for pick ordering
	Quantity        int
}

// IsInWarehouse reports whether the stock is physically in the given warehouse
func (s *Stock) IsInWarehouse(warehouseID uuid.UUID) bool {
	return s.WarehouseID != nil && *s.WarehouseID == warehouseID
}

// WarehouseStock is the aggregated quantity of a product within a warehouse:
// the generic warehouse location plus all of its bin locations
type WarehouseStock struct {
	shared.BaseEntity
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Quantity    int
}

// StockKey identifies one aggregate row
type StockKey struct {
	ProductID uuid.UUID
	Location  LocationReference
}

// Less orders keys by product, then location
func (k StockKey) Less(other StockKey) bool {
	if k.ProductID != other.ProductID {
		return k.ProductID.String() < other.ProductID.String()
	}
	return k.Location.Less(other.Location)
}

// StockChange is a net quantity change for one aggregate row
type StockChange struct {
	StockKey
	WarehouseID     *uuid.UUID
	BinLocationCode string
	Delta           int
}
