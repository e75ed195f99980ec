package models

import (
	"time"

	"github.com/erp/stockengine/internal/domain/order"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for the Order aggregate root
type OrderModel struct {
	AggregateModel
	OrderNumber   string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	VersionID     uuid.UUID `gorm:"type:uuid;not null"`
	DeliveryState string    `gorm:"type:varchar(20);not null;default:'open'"`
	ShippedAt     *time.Time
	ReturnedAt    *time.Time
	LineItems     []OrderLineItemModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the model to a domain Order
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		BaseAggregateRoot: m.ToAggregateRoot(),
		OrderNumber:       m.OrderNumber,
		VersionID:         m.VersionID,
		DeliveryState:     order.DeliveryState(m.DeliveryState),
		ShippedAt:         m.ShippedAt,
		ReturnedAt:        m.ReturnedAt,
		LineItems:         make([]order.LineItem, len(m.LineItems)),
	}
	for i, li := range m.LineItems {
		o.LineItems[i] = order.LineItem{
			ID:        li.ID,
			OrderID:   li.OrderID,
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
		}
	}
	return o
}

// OrderModelFromDomain creates a model from a domain Order
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{
		OrderNumber:   o.OrderNumber,
		VersionID:     o.VersionID,
		DeliveryState: string(o.DeliveryState),
		ShippedAt:     o.ShippedAt,
		ReturnedAt:    o.ReturnedAt,
		LineItems:     make([]OrderLineItemModel, len(o.LineItems)),
	}
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	for i, li := range o.LineItems {
		m.LineItems[i] = OrderLineItemModel{
			ID:        li.ID,
			OrderID:   o.ID,
			Position:  i,
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
		}
	}
	return m
}

// OrderLineItemModel is a product line of an order
type OrderLineItemModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Position  int       `gorm:"not null;default:0"`
	ProductID uuid.UUID `gorm:"type:uuid;not null"`
	Quantity  int       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderLineItemModel) TableName() string {
	return "order_line_items"
}

// ReturnOrderModel is the persistence model for the ReturnOrder aggregate root
type ReturnOrderModel struct {
	AggregateModel
	Number      string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	OrderID     uuid.UUID `gorm:"type:uuid;not null;index"`
	State       string    `gorm:"type:varchar(20);not null;default:'open'"`
	CompletedAt *time.Time
	LineItems   []ReturnOrderLineItemModel `gorm:"foreignKey:ReturnOrderID;references:ID"`
}

// TableName returns the table name for GORM
func (ReturnOrderModel) TableName() string {
	return "return_orders"
}

// ToDomain converts the model to a domain ReturnOrder
func (m *ReturnOrderModel) ToDomain() *order.ReturnOrder {
	r := &order.ReturnOrder{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Number:            m.Number,
		OrderID:           m.OrderID,
		State:             order.ReturnOrderState(m.State),
		CompletedAt:       m.CompletedAt,
		LineItems:         make([]order.ReturnOrderLineItem, len(m.LineItems)),
	}
	for i, li := range m.LineItems {
		r.LineItems[i] = order.ReturnOrderLineItem{
			ID:            li.ID,
			ReturnOrderID: li.ReturnOrderID,
			ProductID:     li.ProductID,
			Quantity:      li.Quantity,
			Reason:        li.Reason,
		}
	}
	return r
}

// ReturnOrderModelFromDomain creates a model from a domain ReturnOrder
func ReturnOrderModelFromDomain(r *order.ReturnOrder) *ReturnOrderModel {
	m := &ReturnOrderModel{
		Number:      r.Number,
		OrderID:     r.OrderID,
		State:       string(r.State),
		CompletedAt: r.CompletedAt,
		LineItems:   make([]ReturnOrderLineItemModel, len(r.LineItems)),
	}
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	for i, li := range r.LineItems {
		m.LineItems[i] = ReturnOrderLineItemModel{
			ID:            li.ID,
			ReturnOrderID: r.ID,
			Position:      i,
			ProductID:     li.ProductID,
			Quantity:      li.Quantity,
			Reason:        li.Reason,
		}
	}
	return m
}

// ReturnOrderLineItemModel is a returned product line
type ReturnOrderLineItemModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	ReturnOrderID uuid.UUID `gorm:"type:uuid;not null;index"`
	Position      int       `gorm:"not null;default:0"`
	ProductID     uuid.UUID `gorm:"type:uuid;not null"`
	Quantity      int       `gorm:"not null"`
	Reason        string    `gorm:"type:varchar(255);not null;default:''"`
}

// TableName returns the table name for GORM
func (ReturnOrderLineItemModel) TableName() string {
	return "return_order_line_items"
}

// SupplierOrderModel is the persistence model for the SupplierOrder aggregate root
type SupplierOrderModel struct {
	AggregateModel
	Number       string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	SupplierName string     `gorm:"type:varchar(255);not null;default:''"`
	WarehouseID  *uuid.UUID `gorm:"type:uuid"`
	State        string     `gorm:"type:varchar(32);not null;default:'open'"`
	ConfirmedAt  *time.Time
	DeliveredAt  *time.Time
	LineItems    []SupplierOrderLineItemModel `gorm:"foreignKey:SupplierOrderID;references:ID"`
}

// TableName returns the table name for GORM
func (SupplierOrderModel) TableName() string {
	return "supplier_orders"
}

// ToDomain converts the model to a domain SupplierOrder
func (m *SupplierOrderModel) ToDomain() *order.SupplierOrder {
	o := &order.SupplierOrder{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Number:            m.Number,
		SupplierName:      m.SupplierName,
		WarehouseID:       m.WarehouseID,
		State:             order.SupplierOrderState(m.State),
		ConfirmedAt:       m.ConfirmedAt,
		DeliveredAt:       m.DeliveredAt,
		LineItems:         make([]order.SupplierOrderLineItem, len(m.LineItems)),
	}
	for i, li := range m.LineItems {
		o.LineItems[i] = order.SupplierOrderLineItem{
			ID:              li.ID,
			SupplierOrderID: li.SupplierOrderID,
			ProductID:       li.ProductID,
			Quantity:        li.Quantity,
			UnitPrice:       li.UnitPrice,
		}
	}
	return o
}

// SupplierOrderModelFromDomain creates a model from a domain SupplierOrder
func SupplierOrderModelFromDomain(o *order.SupplierOrder) *SupplierOrderModel {
	m := &SupplierOrderModel{
		Number:       o.Number,
		SupplierName: o.SupplierName,
		WarehouseID:  o.WarehouseID,
		State:        string(o.State),
		ConfirmedAt:  o.ConfirmedAt,
		DeliveredAt:  o.DeliveredAt,
		LineItems:    make([]SupplierOrderLineItemModel, len(o.LineItems)),
	}
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	for i, li := range o.LineItems {
		m.LineItems[i] = SupplierOrderLineItemModel{
			ID:              li.ID,
			SupplierOrderID: o.ID,
			Position:        i,
			ProductID:       li.ProductID,
			Quantity:        li.Quantity,
			UnitPrice:       li.UnitPrice,
		}
	}
	return m
}

// SupplierOrderLineItemModel is an ordered product line
type SupplierOrderLineItemModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	SupplierOrderID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position        int             `gorm:"not null;default:0"`
	ProductID       uuid.UUID       `gorm:"type:uuid;not null"`
	Quantity        int             `gorm:"not null"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (SupplierOrderLineItemModel) TableName() string {
	return "supplier_order_line_items"
}
