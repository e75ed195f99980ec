package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/google/uuid"
)

// ReturnOrderState represents the state of a return order
type ReturnOrderState string

const (
	ReturnOrderStateOpen      ReturnOrderState = "open"
	ReturnOrderStateCompleted ReturnOrderState = "completed"
)

// IsValid checks if the state is valid
func (s ReturnOrderState) IsValid() bool {
	return s == ReturnOrderStateOpen || s == ReturnOrderStateCompleted
}

// CanTransitionTo checks if the state can transition to the target state
func (s ReturnOrderState) CanTransitionTo(target ReturnOrderState) bool {
	return s == ReturnOrderStateOpen && target == ReturnOrderStateCompleted
}

// ReturnOrderLineItem is a returned product line
type ReturnOrderLineItem struct {
	ID            uuid.UUID
	ReturnOrderID uuid.UUID
	ProductID     uuid.UUID
	Quantity      int
	Reason        string
}

// ReturnOrder collects goods coming back from a shipped order. Returned goods
// are held at the return order's stock location until restocked or disposed.
type ReturnOrder struct {
	shared.BaseAggregateRoot
	Number      string
	OrderID     uuid.UUID
	State       ReturnOrderState
	CompletedAt *time.Time
	LineItems   []ReturnOrderLineItem
}

// NewReturnOrder creates an open return order for an order
func NewReturnOrder(number string, orderID uuid.UUID) (*ReturnOrder, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, shared.NewDomainError("INVALID_RETURN_ORDER_NUMBER", "Return order number cannot be empty")
	}
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER", "Order ID cannot be empty")
	}
	return &ReturnOrder{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            number,
		OrderID:           orderID,
		State:             ReturnOrderStateOpen,
		LineItems:         make([]ReturnOrderLineItem, 0),
	}, nil
}

// AddLineItem adds a returned product line
func (r *ReturnOrder) AddLineItem(productID uuid.UUID, quantity int, reason string) error {
	if productID == uuid.Nil {
		return shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Returned quantity must be positive")
	}
	r.LineItems = append(r.LineItems, ReturnOrderLineItem{
		ID:            uuid.New(),
		ReturnOrderID: r.ID,
		ProductID:     productID,
		Quantity:      quantity,
		Reason:        reason,
	})
	return nil
}

// Location returns the return order's stock location
func (r *ReturnOrder) Location() stock.LocationReference {
	return stock.ReturnOrderLocation(r.ID)
}

// Quantities returns the returned quantity per product
func (r *ReturnOrder) Quantities() stock.ProductQuantities {
	pq := make(stock.ProductQuantities, 0, len(r.LineItems))
	for _, li := range r.LineItems {
		pq = append(pq, stock.NewProductQuantity(li.ProductID, li.Quantity))
	}
	return pq.Merge()
}

// Complete marks the return order as completed
func (r *ReturnOrder) Complete() error {
	if !r.State.CanTransitionTo(ReturnOrderStateCompleted) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete return order in %s state", r.State))
	}
	now := time.Now()
	r.State = ReturnOrderStateCompleted
	r.CompletedAt = &now
	r.UpdatedAt = now
	r.IncrementVersion()

	r.AddDomainEvent(NewReturnOrderCompletedEvent(r))
	return nil
}
