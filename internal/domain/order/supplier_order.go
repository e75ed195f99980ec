package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SupplierOrderState represents the state of a supplier order
type SupplierOrderState string

const (
	SupplierOrderStateOpen               SupplierOrderState = "open"
	SupplierOrderStateConfirmed          SupplierOrderState = "confirmed"
	SupplierOrderStatePartiallyDelivered SupplierOrderState = "partially_delivered"
	SupplierOrderStateDelivered          SupplierOrderState = "delivered"
)

// IsValid checks if the state is valid
func (s SupplierOrderState) IsValid() bool {
	switch s {
	case SupplierOrderStateOpen, SupplierOrderStateConfirmed, SupplierOrderStatePartiallyDelivered, SupplierOrderStateDelivered:
		return true
	}
	return false
}

// CanTransitionTo checks if the state can transition to the target state
func (s SupplierOrderState) CanTransitionTo(target SupplierOrderState) bool {
	switch s {
	case SupplierOrderStateOpen:
		return target == SupplierOrderStateConfirmed
	case SupplierOrderStateConfirmed, SupplierOrderStatePartiallyDelivered:
		return target == SupplierOrderStatePartiallyDelivered || target == SupplierOrderStateDelivered
	}
	return false
}

// CanReceiveGoods reports whether goods may be stocked for the order
func (s SupplierOrderState) CanReceiveGoods() bool {
	return s == SupplierOrderStateConfirmed || s == SupplierOrderStatePartiallyDelivered
}

// SupplierOrderLineItem is an ordered product line
type SupplierOrderLineItem struct {
	ID              uuid.UUID
	SupplierOrderID uuid.UUID
	ProductID       uuid.UUID
	Quantity        int
	UnitPrice       decimal.Decimal
}

// SupplierOrder is a purchase from a supplier. Once confirmed its ordered
// quantities are incoming stock held at the supplier order's stock location
// until they are stocked into the target warehouse.
type SupplierOrder struct {
	shared.BaseAggregateRoot
	Number       string
	SupplierName string
	WarehouseID  *uuid.UUID
	State        SupplierOrderState
	ConfirmedAt  *time.Time
	DeliveredAt  *time.Time
	LineItems    []SupplierOrderLineItem
}

// NewSupplierOrder creates an open supplier order
func NewSupplierOrder(number, supplierName string, warehouseID *uuid.UUID) (*SupplierOrder, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, shared.NewDomainError("INVALID_SUPPLIER_ORDER_NUMBER", "Supplier order number cannot be empty")
	}
	return &SupplierOrder{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            number,
		SupplierName:      supplierName,
		WarehouseID:       warehouseID,
		State:             SupplierOrderStateOpen,
		LineItems:         make([]SupplierOrderLineItem, 0),
	}, nil
}

// AddLineItem adds an ordered product line
func (o *SupplierOrder) AddLineItem(productID uuid.UUID, quantity int, unitPrice decimal.Decimal) error {
	if o.State != SupplierOrderStateOpen {
		return shared.NewDomainError("INVALID_STATE", "Line items can only be added to open supplier orders")
	}
	if productID == uuid.Nil {
		return shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Ordered quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}
	o.LineItems = append(o.LineItems, SupplierOrderLineItem{
		ID:              uuid.New(),
		SupplierOrderID: o.ID,
		ProductID:       productID,
		Quantity:        quantity,
		UnitPrice:       unitPrice,
	})
	return nil
}

// Location returns the supplier order's stock location
func (o *SupplierOrder) Location() stock.LocationReference {
	return stock.SupplierOrderLocation(o.ID)
}

// OrderedQuantities returns the ordered quantity per product
func (o *SupplierOrder) OrderedQuantities() stock.ProductQuantities {
	pq := make(stock.ProductQuantities, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		pq = append(pq, stock.NewProductQuantity(li.ProductID, li.Quantity))
	}
	return pq.Merge()
}

// ValueOf returns the purchase value of the given quantities; products
// ordered on several lines are valued at their first line's price
func (o *SupplierOrder) ValueOf(quantities stock.ProductQuantities) decimal.Decimal {
	prices := make(map[uuid.UUID]decimal.Decimal, len(o.LineItems))
	for _, li := range o.LineItems {
		if _, ok := prices[li.ProductID]; !ok {
			prices[li.ProductID] = li.UnitPrice
		}
	}
	total := decimal.Zero
	for _, q := range quantities {
		total = total.Add(prices[q.ProductID].Mul(decimal.NewFromInt(int64(q.Quantity))))
	}
	return total
}

// Confirm marks the order as confirmed by the supplier
func (o *SupplierOrder) Confirm() error {
	if !o.State.CanTransitionTo(SupplierOrderStateConfirmed) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot confirm supplier order in %s state", o.State))
	}
	if len(o.LineItems) == 0 {
		return shared.NewDomainError("NO_ITEMS", "Cannot confirm supplier order without items")
	}
	now := time.Now()
	o.State = SupplierOrderStateConfirmed
	o.ConfirmedAt = &now
	o.UpdatedAt = now
	o.IncrementVersion()

	o.AddDomainEvent(NewSupplierOrderConfirmedEvent(o))
	return nil
}

// RecordDelivery moves the order to partially delivered or delivered
// depending on whether incoming stock remains
func (o *SupplierOrder) RecordDelivery(received stock.ProductQuantities, remainingIncoming int) error {
	target := SupplierOrderStatePartiallyDelivered
	if remainingIncoming <= 0 {
		target = SupplierOrderStateDelivered
	}
	if !o.State.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot record delivery for supplier order in %s state", o.State))
	}
	now := time.Now()
	o.State = target
	if target == SupplierOrderStateDelivered {
		o.DeliveredAt = &now
	}
	o.UpdatedAt = now
	o.IncrementVersion()

	o.AddDomainEvent(NewSupplierOrderStockedEvent(o, received, o.ValueOf(received)))
	return nil
}
