package testutil

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/erp/stockengine/internal/domain/order"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/erp/stockengine/internal/infrastructure/persistence/models"
)

// Fixture seeds master data and stock directly through the persistence
// models. Seeded stock is booked from the import location so the ledger and
// the aggregates stay consistent.
type Fixture struct {
	t  *testing.T
	DB *gorm.DB
}

// NewFixture creates a fixture on db
func NewFixture(t *testing.T, db *gorm.DB) *Fixture {
	return &Fixture{t: t, DB: db}
}

// Warehouse creates a warehouse
func (f *Fixture) Warehouse(code string, isDefault bool) *stock.Warehouse {
	f.t.Helper()
	w, err := stock.NewWarehouse(code, "Warehouse "+code)
	require.NoError(f.t, err)
	w.IsDefault = isDefault
	require.NoError(f.t, f.DB.Create(models.WarehouseModelFromDomain(w)).Error)
	return w
}

// BinLocation creates a bin location in warehouse
func (f *Fixture) BinLocation(warehouse *stock.Warehouse, code string) *stock.BinLocation {
	f.t.Helper()
	b, err := stock.NewBinLocation(warehouse.ID, code)
	require.NoError(f.t, err)
	require.NoError(f.t, f.DB.Create(models.BinLocationModelFromDomain(b)).Error)
	return b
}

// Product creates a live product
func (f *Fixture) Product(productNumber string) *stock.Product {
	f.t.Helper()
	p, err := stock.NewProduct(productNumber, "Product "+productNumber)
	require.NoError(f.t, err)
	require.NoError(f.t, f.DB.Create(models.ProductModelFromDomain(p)).Error)
	return p
}

// DefaultBinLocation configures bin as the product's default bin location in its warehouse
func (f *Fixture) DefaultBinLocation(product *stock.Product, bin *stock.BinLocation) {
	f.t.Helper()
	cfg := stock.NewProductWarehouseConfiguration(product.ID, bin.WarehouseID)
	require.NoError(f.t, cfg.SetDefaultBinLocation(bin))
	require.NoError(f.t, f.DB.Create(models.ProductWarehouseConfigurationModelFromDomain(cfg)).Error)
}

// BinStock books quantity of product into bin
func (f *Fixture) BinStock(product *stock.Product, bin *stock.BinLocation, quantity int) {
	f.t.Helper()
	warehouseID := bin.WarehouseID
	f.book(product.ID, bin.Location(), &warehouseID, bin.Code, quantity)
}

// WarehouseStock books quantity of product into the warehouse's generic location
func (f *Fixture) WarehouseStock(product *stock.Product, warehouse *stock.Warehouse, quantity int) {
	f.t.Helper()
	warehouseID := warehouse.ID
	f.book(product.ID, warehouse.Location(), &warehouseID, "", quantity)
}

// LocationStock books quantity of product at an order, return order or supplier order location
func (f *Fixture) LocationStock(productID uuid.UUID, location stock.LocationReference, quantity int) {
	f.t.Helper()
	f.book(productID, location, nil, "", quantity)
}

func (f *Fixture) book(productID uuid.UUID, location stock.LocationReference, warehouseID *uuid.UUID, binCode string, quantity int) {
	f.t.Helper()
	require.Positive(f.t, quantity)
	now := time.Now()

	var row models.StockModel
	err := f.DB.Where("product_id = ? AND location_type = ? AND location_id = ?",
		productID, location.Type().String(), location.ID()).First(&row).Error
	switch {
	case err == nil:
		require.NoError(f.t, f.DB.Model(&row).Update("quantity", row.Quantity+quantity).Error)
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = models.StockModel{
			BaseModel:       models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
			ProductID:       productID,
			LocationType:    location.Type().String(),
			LocationID:      location.ID(),
			WarehouseID:     warehouseID,
			BinLocationCode: binCode,
			Quantity:        quantity,
		}
		require.NoError(f.t, f.DB.Create(&row).Error)
	default:
		require.NoError(f.t, err)
	}

	if warehouseID != nil {
		var ws models.WarehouseStockModel
		err := f.DB.Where("product_id = ? AND warehouse_id = ?", productID, *warehouseID).First(&ws).Error
		switch {
		case err == nil:
			require.NoError(f.t, f.DB.Model(&ws).Update("quantity", ws.Quantity+quantity).Error)
		case errors.Is(err, gorm.ErrRecordNotFound):
			ws = models.WarehouseStockModel{
				BaseModel:   models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
				ProductID:   productID,
				WarehouseID: *warehouseID,
				Quantity:    quantity,
			}
			require.NoError(f.t, f.DB.Create(&ws).Error)
		default:
			require.NoError(f.t, err)
		}
	}

	mv, err := stock.NewStockMovement(productID, quantity, stock.ImportLocation(), location)
	require.NoError(f.t, err)
	require.NoError(f.t, f.DB.Create(models.StockMovementModelFromDomain(mv)).Error)
}

// Order creates an open live order with one line per product quantity
func (f *Fixture) Order(orderNumber string, lines ...stock.ProductQuantity) *order.Order {
	f.t.Helper()
	o, err := order.NewOrder(orderNumber)
	require.NoError(f.t, err)
	for _, l := range lines {
		_, err := o.AddLineItem(l.ProductID, l.Quantity)
		require.NoError(f.t, err)
	}
	require.NoError(f.t, f.DB.Create(models.OrderModelFromDomain(o)).Error)
	return o
}

// SupplierOrder creates an open supplier order; every line is priced at unitPrice
func (f *Fixture) SupplierOrder(number string, warehouseID *uuid.UUID, unitPrice decimal.Decimal, lines ...stock.ProductQuantity) *order.SupplierOrder {
	f.t.Helper()
	so, err := order.NewSupplierOrder(number, "ACME Supplies", warehouseID)
	require.NoError(f.t, err)
	for _, l := range lines {
		require.NoError(f.t, so.AddLineItem(l.ProductID, l.Quantity, unitPrice))
	}
	require.NoError(f.t, f.DB.Create(models.SupplierOrderModelFromDomain(so)).Error)
	return so
}

// Quantity returns the aggregate of product at location, 0 without a row
func (f *Fixture) Quantity(productID uuid.UUID, location stock.LocationReference) int {
	f.t.Helper()
	var rows []models.StockModel
	require.NoError(f.t, f.DB.Where("product_id = ? AND location_type = ? AND location_id = ?",
		productID, location.Type().String(), location.ID()).Find(&rows).Error)
	if len(rows) == 0 {
		return 0
	}
	return rows[0].Quantity
}

// WarehouseQuantity returns the warehouse total of product, 0 without a row
func (f *Fixture) WarehouseQuantity(productID, warehouseID uuid.UUID) int {
	f.t.Helper()
	var rows []models.WarehouseStockModel
	require.NoError(f.t, f.DB.Where("product_id = ? AND warehouse_id = ?", productID, warehouseID).Find(&rows).Error)
	if len(rows) == 0 {
		return 0
	}
	return rows[0].Quantity
}

// MovementCount returns the number of ledger rows of a product
func (f *Fixture) MovementCount(productID uuid.UUID) int64 {
	f.t.Helper()
	var count int64
	require.NoError(f.t, f.DB.Model(&models.StockMovementModel{}).Where("product_id = ?", productID).Count(&count).Error)
	return count
}
