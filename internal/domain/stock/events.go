package stock

import (
	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeStockMovement = "StockMovement"

// Event type constants
const (
	EventTypeStockMoved = "StockMoved"
)

// StockMovedEvent is raised once per committed stock movement
type StockMovedEvent struct {
	shared.BaseDomainEvent
	ProductID       uuid.UUID    `json:"product_id"`
	Quantity        int          `json:"quantity"`
	SourceType      LocationType `json:"source_type"`
	SourceID        uuid.UUID    `json:"source_id"`
	DestinationType LocationType `json:"destination_type"`
	DestinationID   uuid.UUID    `json:"destination_id"`
}

// NewStockMovedEvent creates a StockMovedEvent for a movement
func NewStockMovedEvent(m *StockMovement) *StockMovedEvent {
	return &StockMovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockMoved, AggregateTypeStockMovement, m.ID),
		ProductID:       m.ProductID,
		Quantity:        m.Quantity,
		SourceType:      m.Source.Type(),
		SourceID:        m.Source.ID(),
		DestinationType: m.Destination.Type(),
		DestinationID:   m.Destination.ID(),
	}
}

// EventType returns the event type name
func (e *StockMovedEvent) EventType() string {
	return EventTypeStockMoved
}
