package stock

import (
	"strings"

	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/google/uuid"
)

// Warehouse is a physical stock site. Stock inside a warehouse is kept either
// at one of its bin locations or at its generic location.
type Warehouse struct {
	shared.BaseEntity
	Code      string
	Name      string
	IsDefault bool
}

// NewWarehouse creates a warehouse
func NewWarehouse(code, name string) (*Warehouse, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CODE", "Warehouse code cannot be empty")
	}
	if len(code) > 50 {
		return nil, shared.NewDomainError("INVALID_CODE", "Warehouse code cannot exceed 50 characters")
	}
	if strings.TrimSpace(name) == "" {
		name = code
	}
	return &Warehouse{
		BaseEntity: shared.NewBaseEntity(),
		Code:       code,
		Name:       name,
	}, nil
}

// Location returns the warehouse's generic location
func (w *Warehouse) Location() LocationReference {
	return WarehouseLocation(w.ID)
}

// BinLocation is a named slot inside a warehouse
type BinLocation struct {
	shared.BaseEntity
	WarehouseID uuid.UUID
	Code        string
}

// NewBinLocation creates a bin location in a warehouse
func NewBinLocation(warehouseID uuid.UUID, code string) (*BinLocation, error) {
	if warehouseID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_WAREHOUSE", "Warehouse ID cannot be empty")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CODE", "Bin location code cannot be empty")
	}
	return &BinLocation{
		BaseEntity:  shared.NewBaseEntity(),
		WarehouseID: warehouseID,
		Code:        code,
	}, nil
}

// Location returns the bin location reference
func (b *BinLocation) Location() LocationReference {
	return BinLocationLocation(b.ID)
}

// Product is the minimal product view the engine needs
type Product struct {
	shared.BaseEntity
	ProductNumber string
	Name          string
	VersionID     uuid.UUID
	// IncomingStock is the quantity currently on confirmed supplier orders
	IncomingStock int
}

// NewProduct creates a live product
func NewProduct(productNumber, name string) (*Product, error) {
	productNumber = strings.TrimSpace(productNumber)
	if productNumber == "" {
		return nil, shared.NewDomainError("INVALID_PRODUCT_NUMBER", "Product number cannot be empty")
	}
	return &Product{
		BaseEntity:    shared.NewBaseEntity(),
		ProductNumber: productNumber,
		Name:          name,
		VersionID:     LiveVersionID,
	}, nil
}

// ProductWarehouseConfiguration holds per product and warehouse settings
type ProductWarehouseConfiguration struct {
	shared.BaseEntity
	ProductID            uuid.UUID
	WarehouseID          uuid.UUID
	DefaultBinLocationID *uuid.UUID
}

// NewProductWarehouseConfiguration creates a configuration without a default bin location
func NewProductWarehouseConfiguration(productID, warehouseID uuid.UUID) *ProductWarehouseConfiguration {
	return &ProductWarehouseConfiguration{
		BaseEntity:  shared.NewBaseEntity(),
		ProductID:   productID,
		WarehouseID: warehouseID,
	}
}

// SetDefaultBinLocation assigns the default bin location; it must belong to
// the configured warehouse
func (c *ProductWarehouseConfiguration) SetDefaultBinLocation(bin *BinLocation) error {
	if bin == nil {
		c.DefaultBinLocationID = nil
		c.Touch()
		return nil
	}
	if bin.WarehouseID != c.WarehouseID {
		return shared.NewDomainError("INVALID_BIN_LOCATION", "Default bin location must belong to the configured warehouse")
	}
	id := bin.ID
	c.DefaultBinLocationID = &id
	c.Touch()
	return nil
}
