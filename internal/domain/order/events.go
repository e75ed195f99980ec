package order

import (
	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeOrder         = "Order"
	AggregateTypeReturnOrder   = "ReturnOrder"
	AggregateTypeSupplierOrder = "SupplierOrder"
)

// Event type constants
const (
	EventTypeOrderShipped           = "OrderShipped"
	EventTypeOrderReturned          = "OrderReturned"
	EventTypeReturnOrderCreated     = "ReturnOrderCreated"
	EventTypeReturnOrderCompleted   = "ReturnOrderCompleted"
	EventTypeSupplierOrderConfirmed = "SupplierOrderConfirmed"
	EventTypeSupplierOrderStocked   = "SupplierOrderStocked"
)

// OrderShippedEvent is raised when an order delivery transitions to shipped
type OrderShippedEvent struct {
	shared.BaseDomainEvent
	OrderNumber string `json:"order_number"`
}

// NewOrderShippedEvent creates a new OrderShippedEvent
func NewOrderShippedEvent(o *Order) *OrderShippedEvent {
	return &OrderShippedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderShipped, AggregateTypeOrder, o.ID),
		OrderNumber:     o.OrderNumber,
	}
}

// EventType returns the event type name
func (e *OrderShippedEvent) EventType() string {
	return EventTypeOrderShipped
}

// OrderReturnedEvent is raised when an order delivery transitions to returned
type OrderReturnedEvent struct {
	shared.BaseDomainEvent
	OrderNumber string `json:"order_number"`
}

// NewOrderReturnedEvent creates a new OrderReturnedEvent
func NewOrderReturnedEvent(o *Order) *OrderReturnedEvent {
	return &OrderReturnedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderReturned, AggregateTypeOrder, o.ID),
		OrderNumber:     o.OrderNumber,
	}
}

// EventType returns the event type name
func (e *OrderReturnedEvent) EventType() string {
	return EventTypeOrderReturned
}

// ReturnOrderCreatedEvent is raised when returned goods are moved to a return order
type ReturnOrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderID    uuid.UUID               `json:"order_id"`
	Quantities stock.ProductQuantities `json:"quantities"`
}

// NewReturnOrderCreatedEvent creates a new ReturnOrderCreatedEvent
func NewReturnOrderCreatedEvent(r *ReturnOrder) *ReturnOrderCreatedEvent {
	return &ReturnOrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReturnOrderCreated, AggregateTypeReturnOrder, r.ID),
		OrderID:         r.OrderID,
		Quantities:      r.Quantities(),
	}
}

// EventType returns the event type name
func (e *ReturnOrderCreatedEvent) EventType() string {
	return EventTypeReturnOrderCreated
}

// ReturnOrderCompletedEvent is raised when returned goods were restocked or disposed
type ReturnOrderCompletedEvent struct {
	shared.BaseDomainEvent
	OrderID uuid.UUID `json:"order_id"`
}

// NewReturnOrderCompletedEvent creates a new ReturnOrderCompletedEvent
func NewReturnOrderCompletedEvent(r *ReturnOrder) *ReturnOrderCompletedEvent {
	return &ReturnOrderCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReturnOrderCompleted, AggregateTypeReturnOrder, r.ID),
		OrderID:         r.OrderID,
	}
}

// EventType returns the event type name
func (e *ReturnOrderCompletedEvent) EventType() string {
	return EventTypeReturnOrderCompleted
}

// SupplierOrderConfirmedEvent is raised when ordered quantities become incoming stock
type SupplierOrderConfirmedEvent struct {
	shared.BaseDomainEvent
	ProductIDs []uuid.UUID `json:"product_ids"`
}

// NewSupplierOrderConfirmedEvent creates a new SupplierOrderConfirmedEvent
func NewSupplierOrderConfirmedEvent(o *SupplierOrder) *SupplierOrderConfirmedEvent {
	return &SupplierOrderConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSupplierOrderConfirmed, AggregateTypeSupplierOrder, o.ID),
		ProductIDs:      o.OrderedQuantities().ProductIDs(),
	}
}

// EventType returns the event type name
func (e *SupplierOrderConfirmedEvent) EventType() string {
	return EventTypeSupplierOrderConfirmed
}

// SupplierOrderStockedEvent is raised when delivered goods were put away
type SupplierOrderStockedEvent struct {
	shared.BaseDomainEvent
	State         SupplierOrderState      `json:"state"`
	Received      stock.ProductQuantities `json:"received"`
	ReceivedValue decimal.Decimal         `json:"received_value"`
}

// NewSupplierOrderStockedEvent creates a new SupplierOrderStockedEvent
func NewSupplierOrderStockedEvent(o *SupplierOrder, received stock.ProductQuantities, value decimal.Decimal) *SupplierOrderStockedEvent {
	return &SupplierOrderStockedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSupplierOrderStocked, AggregateTypeSupplierOrder, o.ID),
		State:           o.State,
		Received:        received,
		ReceivedValue:   value,
	}
}

// EventType returns the event type name
func (e *SupplierOrderStockedEvent) EventType() string {
	return EventTypeSupplierOrderStocked
}

// ProductIDs returns the products whose incoming stock changed
func (e *SupplierOrderStockedEvent) ProductIDs() []uuid.UUID {
	return e.Received.ProductIDs()
}
