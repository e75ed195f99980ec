package order

import (
	"context"

	"github.com/google/uuid"
)

// OrderRepository defines persistence for orders
type OrderRepository interface {
	// FindByID returns the order with its line items or shared.ErrNotFound
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// LockByID is FindByID with a row lock held until commit
	LockByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// Save upserts the order and its line items
	Save(ctx context.Context, order *Order) error
}

// ReturnOrderRepository defines persistence for return orders
type ReturnOrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ReturnOrder, error)
	LockByID(ctx context.Context, id uuid.UUID) (*ReturnOrder, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]ReturnOrder, error)
	// NextNumber generates a return order number
	NextNumber(ctx context.Context) (string, error)
	Save(ctx context.Context, returnOrder *ReturnOrder) error
}

// SupplierOrderRepository defines persistence for supplier orders
type SupplierOrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*SupplierOrder, error)
	LockByID(ctx context.Context, id uuid.UUID) (*SupplierOrder, error)
	Save(ctx context.Context, supplierOrder *SupplierOrder) error
}
