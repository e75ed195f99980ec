package stock

import (
	"context"

	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/google/uuid"
)

// StockRepository defines persistence for aggregated stock per product and location.
// Locking methods must be called inside a transaction; the locks are held until commit.
type StockRepository interface {
	// LockProducts acquires row locks (SELECT ... FOR UPDATE) on every stock row of
	// the given products, in a stable order, and returns them
	LockProducts(ctx context.Context, productIDs []uuid.UUID) ([]Stock, error)

	// LockKeys acquires row locks on the stock rows identified by keys and returns
	// the existing ones; keys without a row are absent from the map
	LockKeys(ctx context.Context, keys []StockKey) (map[StockKey]*Stock, error)

	// FindPickable returns stock rows with a positive quantity at bin locations
	// and generic warehouse locations of the given warehouses
	FindPickable(ctx context.Context, productIDs []uuid.UUID, warehouseIDs []uuid.UUID, includeGeneric bool) ([]PickableStock, error)

	// FindByLocation returns all stock rows with a non-zero quantity at a location
	FindByLocation(ctx context.Context, location LocationReference) ([]Stock, error)

	// FindByProduct returns all stock rows of a product
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]Stock, error)

	// FindByLocationType returns all stock rows of a product at locations of a type
	FindByLocationType(ctx context.Context, productIDs []uuid.UUID, locationType LocationType) ([]Stock, error)

	// ApplyChange adds delta to the row, creating it when missing
	ApplyChange(ctx context.Context, change StockChange) error
}

// WarehouseStockRepository defines persistence for per-warehouse stock totals
type WarehouseStockRepository interface {
	// ApplyChange adds delta to the product's total in the warehouse, creating the row when missing
	ApplyChange(ctx context.Context, productID, warehouseID uuid.UUID, delta int) error

	// FindByProduct returns the warehouse totals of a product
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]WarehouseStock, error)
}

// StockMovementRepository defines persistence for the append-only movement ledger
type StockMovementRepository interface {
	// CreateBatch appends ledger rows
	CreateBatch(ctx context.Context, movements StockMovements) error

	// FindByProduct lists movements of a product, newest first
	FindByProduct(ctx context.Context, productID uuid.UUID, filter shared.Filter) ([]StockMovement, int64, error)

	// NetQuantityByLocation returns Σ(into L) − Σ(out of L) per real location for a product
	NetQuantityByLocation(ctx context.Context, productID uuid.UUID) (map[LocationReference]int, error)
}

// WarehouseRepository defines persistence for warehouses
type WarehouseRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Warehouse, error)
	FindByCode(ctx context.Context, code string) (*Warehouse, error)
	// FindDefault returns the default warehouse or shared.ErrNotFound
	FindDefault(ctx context.Context) (*Warehouse, error)
	// FindAll returns all warehouses, default first, then by code
	FindAll(ctx context.Context) ([]Warehouse, error)
	// FindMissing returns the IDs among ids that do not exist
	FindMissing(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	Save(ctx context.Context, warehouse *Warehouse) error
}

// BinLocationRepository defines persistence for bin locations
type BinLocationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*BinLocation, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*BinLocation, error)
	FindByWarehouseAndCode(ctx context.Context, warehouseID uuid.UUID, code string) (*BinLocation, error)
	Save(ctx context.Context, bin *BinLocation) error
}

// ProductRepository defines persistence for the product view
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	FindByProductNumber(ctx context.Context, productNumber string) (*Product, error)
	// FindMissing returns the IDs among ids that do not exist
	FindMissing(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	Save(ctx context.Context, product *Product) error
	UpdateIncomingStock(ctx context.Context, productID uuid.UUID, incoming int) error
}

// ProductWarehouseConfigurationRepository defines persistence for per product and warehouse settings
type ProductWarehouseConfigurationRepository interface {
	FindByProductAndWarehouse(ctx context.Context, productID, warehouseID uuid.UUID) (*ProductWarehouseConfiguration, error)
	// FindDefaultBinLocations returns product -> default bin location for the warehouse
	FindDefaultBinLocations(ctx context.Context, warehouseID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
	// Save upserts on (product, warehouse)
	Save(ctx context.Context, config *ProductWarehouseConfiguration) error
}
