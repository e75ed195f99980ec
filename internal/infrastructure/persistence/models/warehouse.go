package models

import (
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/google/uuid"
)

// WarehouseModel is the persistence model for warehouses
type WarehouseModel struct {
	BaseModel
	Code      string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name      string `gorm:"type:varchar(255);not null"`
	IsDefault bool   `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (WarehouseModel) TableName() string {
	return "warehouses"
}

// ToDomain converts the model to a domain Warehouse
func (m *WarehouseModel) ToDomain() *stock.Warehouse {
	return &stock.Warehouse{
		BaseEntity: m.BaseModel.ToDomain(),
		Code:       m.Code,
		Name:       m.Name,
		IsDefault:  m.IsDefault,
	}
}

// FromDomain populates the model from a domain Warehouse
func (m *WarehouseModel) FromDomain(w *stock.Warehouse) {
	m.FromDomainBaseEntity(w.BaseEntity)
	m.Code = w.Code
	m.Name = w.Name
	m.IsDefault = w.IsDefault
}

// WarehouseModelFromDomain creates a model from a domain Warehouse
func WarehouseModelFromDomain(w *stock.Warehouse) *WarehouseModel {
	m := &WarehouseModel{}
	m.FromDomain(w)
	return m
}

// BinLocationModel is the persistence model for bin locations
type BinLocationModel struct {
	BaseModel
	WarehouseID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_bin_location_warehouse_code,priority:1"`
	Code        string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_bin_location_warehouse_code,priority:2"`
}

// TableName returns the table name for GORM
func (BinLocationModel) TableName() string {
	return "bin_locations"
}

// ToDomain converts the model to a domain BinLocation
func (m *BinLocationModel) ToDomain() *stock.BinLocation {
	return &stock.BinLocation{
		BaseEntity:  m.BaseModel.ToDomain(),
		WarehouseID: m.WarehouseID,
		Code:        m.Code,
	}
}

// BinLocationModelFromDomain creates a model from a domain BinLocation
func BinLocationModelFromDomain(b *stock.BinLocation) *BinLocationModel {
	m := &BinLocationModel{WarehouseID: b.WarehouseID, Code: b.Code}
	m.FromDomainBaseEntity(b.BaseEntity)
	return m
}

// ProductModel is the persistence model for the product view
type ProductModel struct {
	BaseModel
	ProductNumber string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name          string    `gorm:"type:varchar(255);not null;default:''"`
	VersionID     uuid.UUID `gorm:"type:uuid;not null"`
	IncomingStock int       `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the model to a domain Product
func (m *ProductModel) ToDomain() *stock.Product {
	return &stock.Product{
		BaseEntity:    m.BaseModel.ToDomain(),
		ProductNumber: m.ProductNumber,
		Name:          m.Name,
		VersionID:     m.VersionID,
		IncomingStock: m.IncomingStock,
	}
}

// ProductModelFromDomain creates a model from a domain Product
func ProductModelFromDomain(p *stock.Product) *ProductModel {
	m := &ProductModel{
		ProductNumber: p.ProductNumber,
		Name:          p.Name,
		VersionID:     p.VersionID,
		IncomingStock: p.IncomingStock,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// ProductWarehouseConfigurationModel is the persistence model for per product
// and warehouse settings
type ProductWarehouseConfigurationModel struct {
	BaseModel
	ProductID            uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_product_warehouse_configuration,priority:1"`
	WarehouseID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_product_warehouse_configuration,priority:2"`
	DefaultBinLocationID *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (ProductWarehouseConfigurationModel) TableName() string {
	return "product_warehouse_configurations"
}

// ToDomain converts the model to a domain ProductWarehouseConfiguration
func (m *ProductWarehouseConfigurationModel) ToDomain() *stock.ProductWarehouseConfiguration {
	return &stock.ProductWarehouseConfiguration{
		BaseEntity:           m.BaseModel.ToDomain(),
		ProductID:            m.ProductID,
		WarehouseID:          m.WarehouseID,
		DefaultBinLocationID: m.DefaultBinLocationID,
	}
}

// ProductWarehouseConfigurationModelFromDomain creates a model from a domain configuration
func ProductWarehouseConfigurationModelFromDomain(c *stock.ProductWarehouseConfiguration) *ProductWarehouseConfigurationModel {
	m := &ProductWarehouseConfigurationModel{
		ProductID:            c.ProductID,
		WarehouseID:          c.WarehouseID,
		DefaultBinLocationID: c.DefaultBinLocationID,
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}
