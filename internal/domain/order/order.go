package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/google/uuid"
)

// DeliveryState represents the shipping state of an order delivery
type DeliveryState string

const (
	DeliveryStateOpen     DeliveryState = "open"
	DeliveryStateShipped  DeliveryState = "shipped"
	DeliveryStateReturned DeliveryState = "returned"
)

// IsValid checks if the state is a valid DeliveryState
func (s DeliveryState) IsValid() bool {
	switch s {
	case DeliveryStateOpen, DeliveryStateShipped, DeliveryStateReturned:
		return true
	}
	return false
}

// String returns the string representation of DeliveryState
func (s DeliveryState) String() string {
	return string(s)
}

// CanTransitionTo checks if the state can transition to the target state
func (s DeliveryState) CanTransitionTo(target DeliveryState) bool {
	switch s {
	case DeliveryStateOpen:
		return target == DeliveryStateShipped || target == DeliveryStateReturned
	case DeliveryStateShipped:
		return target == DeliveryStateReturned
	case DeliveryStateReturned:
		return false
	}
	return false
}

// LineItem is a product line of an order
type LineItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int
}

// Order is the minimal sales order view the stock engine ships and returns.
// Shipped goods are held at the order's stock location.
type Order struct {
	shared.BaseAggregateRoot
	OrderNumber   string
	VersionID     uuid.UUID
	DeliveryState DeliveryState
	ShippedAt     *time.Time
	ReturnedAt    *time.Time
	LineItems     []LineItem
}

// NewOrder creates a live order with an open delivery
func NewOrder(orderNumber string) (*Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	return &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderNumber:       orderNumber,
		VersionID:         stock.LiveVersionID,
		DeliveryState:     DeliveryStateOpen,
		LineItems:         make([]LineItem, 0),
	}, nil
}

// AddLineItem adds a product line
func (o *Order) AddLineItem(productID uuid.UUID, quantity int) (*LineItem, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Line item quantity must be positive")
	}
	o.LineItems = append(o.LineItems, LineItem{
		ID:        uuid.New(),
		OrderID:   o.ID,
		ProductID: productID,
		Quantity:  quantity,
	})
	o.Touch()
	return &o.LineItems[len(o.LineItems)-1], nil
}

// IsLive reports whether the order is the live version
func (o *Order) IsLive() bool {
	return o.VersionID == stock.LiveVersionID
}

// Location returns the order's stock location
func (o *Order) Location() stock.LocationReference {
	return stock.OrderLocation(o.ID)
}

// OrderedQuantities returns the ordered quantity per product
func (o *Order) OrderedQuantities() stock.ProductQuantities {
	pq := make(stock.ProductQuantities, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		pq = append(pq, stock.NewProductQuantity(li.ProductID, li.Quantity))
	}
	return pq.Merge()
}

// RemainingQuantities returns what is still to ship given the quantities
// already at the order location
func (o *Order) RemainingQuantities(shipped map[uuid.UUID]int) stock.ProductQuantities {
	remaining := make(stock.ProductQuantities, 0, len(o.LineItems))
	for _, q := range o.OrderedQuantities() {
		if open := q.Quantity - shipped[q.ProductID]; open > 0 {
			remaining = append(remaining, stock.NewProductQuantity(q.ProductID, open))
		}
	}
	return remaining
}

// Ship marks the delivery as shipped
func (o *Order) Ship() error {
	if !o.DeliveryState.CanTransitionTo(DeliveryStateShipped) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot ship order delivery in %s state", o.DeliveryState))
	}
	now := time.Now()
	o.DeliveryState = DeliveryStateShipped
	o.ShippedAt = &now
	o.UpdatedAt = now
	o.IncrementVersion()

	o.AddDomainEvent(NewOrderShippedEvent(o))
	return nil
}

// MarkReturned marks the delivery as returned
func (o *Order) MarkReturned() error {
	if !o.DeliveryState.CanTransitionTo(DeliveryStateReturned) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot return order delivery in %s state", o.DeliveryState))
	}
	now := time.Now()
	o.DeliveryState = DeliveryStateReturned
	o.ReturnedAt = &now
	o.UpdatedAt = now
	o.IncrementVersion()

	o.AddDomainEvent(NewOrderReturnedEvent(o))
	return nil
}
