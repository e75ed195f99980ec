package stock

import (
	"fmt"

	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/google/uuid"
)

// LiveVersionID is the version context of live (non-draft) data. Stock may
// only be moved for live products and orders.
var LiveVersionID = uuid.MustParse("0fa91ce3-e96a-4bc2-be4b-d9ce752c3425")

// StockMovement is an immutable record of a quantity of a product moving from
// one location to another. Once persisted it is never updated or deleted;
// corrections are made with new movements.
type StockMovement struct {
	shared.BaseEntity
	ProductID        uuid.UUID
	ProductVersionID uuid.UUID
	Quantity         int
	Source           LocationReference
	Destination      LocationReference
	UserID           *uuid.UUID
	Comment          string
	Metadata         map[string]string
}

// NewStockMovement creates a movement of a positive quantity between two
// different locations
func NewStockMovement(productID uuid.UUID, quantity int, source, destination LocationReference) (*StockMovement, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", fmt.Sprintf("Stock movement quantity must be positive, got %d", quantity))
	}
	if source.IsZero() || destination.IsZero() {
		return nil, shared.NewDomainError("INVALID_LOCATION", "Stock movement requires a source and a destination")
	}
	if source.Equals(destination) {
		return nil, shared.NewDomainError("INVALID_LOCATION", fmt.Sprintf("Stock movement source and destination are both %s", source))
	}

	return &StockMovement{
		BaseEntity:       shared.NewBaseEntity(),
		ProductID:        productID,
		ProductVersionID: LiveVersionID,
		Quantity:         quantity,
		Source:           source,
		Destination:      destination,
	}, nil
}

// WithUser sets the user who triggered the movement
func (m *StockMovement) WithUser(userID *uuid.UUID) *StockMovement {
	m.UserID = userID
	return m
}

// WithComment sets a free-text comment
func (m *StockMovement) WithComment(comment string) *StockMovement {
	m.Comment = comment
	return m
}

// WithMetadata adds a metadata entry
func (m *StockMovement) WithMetadata(key, value string) *StockMovement {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
	return m
}

// StockMovements is a batch of movements applied as one unit
type StockMovements []*StockMovement

// ProductIDs returns the distinct products touched by the batch
func (ms StockMovements) ProductIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ms))
	ids := make([]uuid.UUID, 0, len(ms))
	for _, m := range ms {
		if _, ok := seen[m.ProductID]; ok {
			continue
		}
		seen[m.ProductID] = struct{}{}
		ids = append(ids, m.ProductID)
	}
	return ids
}

// MovementOptions carries the optional attribution copied onto generated movements
type MovementOptions struct {
	UserID   *uuid.UUID
	Comment  string
	Metadata map[string]string
}

func (o MovementOptions) apply(m *StockMovement) {
	m.WithUser(o.UserID).WithComment(o.Comment)
	for k, v := range o.Metadata {
		m.WithMetadata(k, v)
	}
}
