package fulfillment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appstock "github.com/erp/stockengine/internal/application/stock"
	"github.com/erp/stockengine/internal/domain/order"
	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/erp/stockengine/internal/infrastructure/logger"
)

// IncomingStockHandler keeps Product.IncomingStock equal to the stock held at
// supplier order locations. It recomputes from the stock rows rather than
// applying deltas, so handling an event twice is harmless.
type IncomingStockHandler struct {
	txScope appstock.TransactionScope
	logger  *zap.Logger
}

// NewIncomingStockHandler creates a new IncomingStockHandler
func NewIncomingStockHandler(txScope appstock.TransactionScope, l *zap.Logger) *IncomingStockHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &IncomingStockHandler{txScope: txScope, logger: l}
}

// EventTypes returns the supplier order events that change incoming stock
func (h *IncomingStockHandler) EventTypes() []string {
	return []string{order.EventTypeSupplierOrderConfirmed, order.EventTypeSupplierOrderStocked}
}

// Handle recomputes incoming stock for the products of event
func (h *IncomingStockHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var productIDs []uuid.UUID
	switch e := event.(type) {
	case *order.SupplierOrderConfirmedEvent:
		productIDs = e.ProductIDs
	case *order.SupplierOrderStockedEvent:
		productIDs = e.ProductIDs()
	default:
		return nil
	}
	if len(productIDs) == 0 {
		return nil
	}
	return h.Recompute(ctx, productIDs)
}

// Recompute sets the incoming stock of each product from its supplier order
// stock rows
func (h *IncomingStockHandler) Recompute(ctx context.Context, productIDs []uuid.UUID) error {
	err := h.txScope.ExecuteWithRetry(ctx, func(repos appstock.TransactionalRepositories) error {
		rows, err := repos.StockRepo().FindByLocationType(ctx, productIDs, stock.LocationTypeSupplierOrder)
		if err != nil {
			return fmt.Errorf("load incoming stock: %w", err)
		}
		incoming := make(map[uuid.UUID]int, len(productIDs))
		for _, row := range rows {
			incoming[row.ProductID] += row.Quantity
		}
		for _, id := range productIDs {
			if err := repos.ProductRepo().UpdateIncomingStock(ctx, id, incoming[id]); err != nil {
				return fmt.Errorf("update incoming stock of product %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		logger.WithLogger(ctx, h.logger).Error("Failed to recompute incoming stock",
			zap.Int("product_count", len(productIDs)),
			zap.Error(err),
		)
		return err
	}
	logger.WithLogger(ctx, h.logger).Debug("Incoming stock recomputed", zap.Int("product_count", len(productIDs)))
	return nil
}
