package models

import (
	"fmt"
	"time"

	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/google/uuid"
)

// StockModel is the aggregated quantity of a product at a real location
type StockModel struct {
	BaseModel
	ProductID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_stock_product_location,priority:1"`
	LocationType    string     `gorm:"type:varchar(32);not null;uniqueIndex:idx_stock_product_location,priority:2"`
	LocationID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_stock_product_location,priority:3"`
	WarehouseID     *uuid.UUID `gorm:"type:uuid;index"`
	BinLocationCode string     `gorm:"type:varchar(100);not null;default:''"`
	Quantity        int        `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (StockModel) TableName() string {
	return "stocks"
}

// Location rebuilds the location reference of the row
func (m *StockModel) Location() (stock.LocationReference, error) {
	loc, err := stock.NewLocationReference(stock.LocationType(m.LocationType), m.LocationID)
	if err != nil {
		return stock.LocationReference{}, fmt.Errorf("stock row %s: %w", m.ID, err)
	}
	return loc, nil
}

// ToDomain converts the model to a domain Stock
func (m *StockModel) ToDomain() (*stock.Stock, error) {
	loc, err := m.Location()
	if err != nil {
		return nil, err
	}
	return &stock.Stock{
		BaseEntity:      m.BaseModel.ToDomain(),
		ProductID:       m.ProductID,
		Location:        loc,
		WarehouseID:     m.WarehouseID,
		BinLocationCode: m.BinLocationCode,
		Quantity:        m.Quantity,
	}, nil
}

// Key returns the aggregate key of the row
func (m *StockModel) Key() (stock.StockKey, error) {
	loc, err := m.Location()
	if err != nil {
		return stock.StockKey{}, err
	}
	return stock.StockKey{ProductID: m.ProductID, Location: loc}, nil
}

// WarehouseStockModel is the aggregated quantity of a product in a warehouse
type WarehouseStockModel struct {
	BaseModel
	ProductID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_warehouse_stock_product_warehouse,priority:1"`
	WarehouseID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_warehouse_stock_product_warehouse,priority:2"`
	Quantity    int       `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (WarehouseStockModel) TableName() string {
	return "warehouse_stocks"
}

// ToDomain converts the model to a domain WarehouseStock
func (m *WarehouseStockModel) ToDomain() stock.WarehouseStock {
	return stock.WarehouseStock{
		BaseEntity:  m.BaseModel.ToDomain(),
		ProductID:   m.ProductID,
		WarehouseID: m.WarehouseID,
		Quantity:    m.Quantity,
	}
}

// StockMovementModel is an append-only ledger row. It has no UpdatedAt.
type StockMovementModel struct {
	ID               uuid.UUID         `gorm:"type:uuid;primary_key"`
	ProductID        uuid.UUID         `gorm:"type:uuid;not null;index:idx_stock_movement_product_created,priority:1"`
	ProductVersionID uuid.UUID         `gorm:"type:uuid;not null"`
	Quantity         int               `gorm:"not null"`
	SourceType       string            `gorm:"type:varchar(32);not null"`
	SourceID         *uuid.UUID        `gorm:"type:uuid"`
	DestinationType  string            `gorm:"type:varchar(32);not null"`
	DestinationID    *uuid.UUID        `gorm:"type:uuid"`
	UserID           *uuid.UUID        `gorm:"type:uuid"`
	Comment          string            `gorm:"type:text;not null;default:''"`
	Metadata         map[string]string `gorm:"type:jsonb;serializer:json"`
	CreatedAt        time.Time         `gorm:"not null;index:idx_stock_movement_product_created,priority:2"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// StockMovementModelFromDomain creates a ledger row from a domain movement
func StockMovementModelFromDomain(mv *stock.StockMovement) *StockMovementModel {
	return &StockMovementModel{
		ID:               mv.ID,
		ProductID:        mv.ProductID,
		ProductVersionID: mv.ProductVersionID,
		Quantity:         mv.Quantity,
		SourceType:       mv.Source.Type().String(),
		SourceID:         locationID(mv.Source),
		DestinationType:  mv.Destination.Type().String(),
		DestinationID:    locationID(mv.Destination),
		UserID:           mv.UserID,
		Comment:          mv.Comment,
		Metadata:         mv.Metadata,
		CreatedAt:        mv.CreatedAt,
	}
}

// ToDomain converts the ledger row to a domain movement
func (m *StockMovementModel) ToDomain() (*stock.StockMovement, error) {
	src, err := locationFromColumns(m.SourceType, m.SourceID)
	if err != nil {
		return nil, fmt.Errorf("stock movement %s source: %w", m.ID, err)
	}
	dst, err := locationFromColumns(m.DestinationType, m.DestinationID)
	if err != nil {
		return nil, fmt.Errorf("stock movement %s destination: %w", m.ID, err)
	}
	return &stock.StockMovement{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.CreatedAt,
		},
		ProductID:        m.ProductID,
		ProductVersionID: m.ProductVersionID,
		Quantity:         m.Quantity,
		Source:           src,
		Destination:      dst,
		UserID:           m.UserID,
		Comment:          m.Comment,
		Metadata:         m.Metadata,
	}, nil
}

// locationID returns the id column value; special locations store null
func locationID(loc stock.LocationReference) *uuid.UUID {
	if loc.IsSpecial() {
		return nil
	}
	id := loc.ID()
	return &id
}

func locationFromColumns(locationType string, id *uuid.UUID) (stock.LocationReference, error) {
	var locID uuid.UUID
	if id != nil {
		locID = *id
	}
	return stock.NewLocationReference(stock.LocationType(locationType), locID)
}
