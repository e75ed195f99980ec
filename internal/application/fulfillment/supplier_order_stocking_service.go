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
	"github.com/erp/stockengine/internal/infrastructure/telemetry"
)

// ConfirmSupplierOrderRequest turns a supplier order into incoming stock
type ConfirmSupplierOrderRequest struct {
	SupplierOrderID uuid.UUID `validate:"required"`
	UserID          *uuid.UUID
	Comment         string `validate:"max=1024"`
}

// StockSupplierOrderRequest puts away delivered goods
type StockSupplierOrderRequest struct {
	SupplierOrderID uuid.UUID               `validate:"required"`
	Products        stock.ProductQuantities `validate:"required,min=1,dive"`
	// WarehouseID overrides the supplier order's warehouse
	WarehouseID *uuid.UUID
	UserID      *uuid.UUID
	Comment     string `validate:"max=1024"`
}

// StockingResult describes a committed supplier delivery
type StockingResult struct {
	SupplierOrder *order.SupplierOrder
	Received      stock.ProductQuantities
	Movements     int
}

// SupplierOrderStockingService books supplier orders in as incoming stock and
// puts delivered goods away
type SupplierOrderStockingService struct {
	txScope   appstock.TransactionScope
	movements *appstock.StockMovementService
	stocker   stocker
	publisher publisher
	logger    *zap.Logger
	metrics   *telemetry.StockMetrics
}

// NewSupplierOrderStockingService creates a new SupplierOrderStockingService
func NewSupplierOrderStockingService(
	txScope appstock.TransactionScope,
	movements *appstock.StockMovementService,
	strategies appstock.StockingStrategyProvider,
	strategyName string,
	events shared.EventPublisher,
	l *zap.Logger,
) *SupplierOrderStockingService {
	if l == nil {
		l = zap.NewNop()
	}
	return &SupplierOrderStockingService{
		txScope:   txScope,
		movements: movements,
		stocker:   stocker{strategies: strategies, strategyName: strategyName},
		publisher: publisher{events: events, logger: l},
		logger:    l,
	}
}

// SetStockMetrics sets the stock metrics collector
func (s *SupplierOrderStockingService) SetStockMetrics(m *telemetry.StockMetrics) {
	s.metrics = m
}

// ConfirmSupplierOrder moves the ordered quantities from the unknown location
// to the supplier order, where they count as incoming stock, and confirms it
func (s *SupplierOrderStockingService) ConfirmSupplierOrder(ctx context.Context, req ConfirmSupplierOrderRequest) (*order.SupplierOrder, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "supplier_order", "confirm",
		telemetry.WithAttribute(telemetry.SpanAttrSupplierOrderID, req.SupplierOrderID.String()),
	)
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		so     *order.SupplierOrder
		events []shared.DomainEvent
	)
	err := s.txScope.ExecuteWithRetry(ctx, func(repos appstock.TransactionalRepositories) error {
		so, events = nil, nil

		var err error
		so, err = repos.SupplierOrderRepo().LockByID(ctx, req.SupplierOrderID)
		if err != nil {
			return err
		}
		if !so.State.CanTransitionTo(order.SupplierOrderStateConfirmed) {
			return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Supplier order %s is already %s", so.Number, so.State))
		}
		ordered := so.OrderedQuantities()
		if _, err := repos.StockRepo().LockProducts(ctx, ordered.ProductIDs()); err != nil {
			return fmt.Errorf("lock stock rows: %w", err)
		}

		opts := movementOptions(req.UserID, req.Comment, map[string]string{"supplier_order_number": so.Number})
		movements, err := directMovements(ordered, stock.UnknownLocation(), so.Location(), opts)
		if err != nil {
			return err
		}
		moved, err := s.movements.MoveStock(ctx, repos, movements)
		if err != nil {
			return err
		}
		events = append(events, moved...)

		if err := so.Confirm(); err != nil {
			return err
		}
		if err := repos.SupplierOrderRepo().Save(ctx, so); err != nil {
			return fmt.Errorf("save supplier order: %w", err)
		}
		events = append(events, drainEvents(so)...)
		return nil
	})
	if err != nil {
		logFailure(ctx, s.logger, "confirm supplier order", zap.String("supplier_order_id", req.SupplierOrderID.String()), err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetOK(span)
	s.publisher.publish(ctx, events)
	logger.WithLogger(ctx, s.logger).Info("Supplier order confirmed",
		zap.String("supplier_order_id", so.ID.String()),
		zap.String("supplier_order_number", so.Number),
	)
	return so, nil
}

// StockSupplierOrder moves delivered goods from the supplier order into the
// destinations chosen by the stocking strategy. Deliveries above the incoming
// quantity are rejected as a *stock.InvalidQuantityError. The order becomes
// delivered once no incoming stock is left.
func (s *SupplierOrderStockingService) StockSupplierOrder(ctx context.Context, req StockSupplierOrderRequest) (*StockingResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "supplier_order", "stock",
		telemetry.WithAttribute(telemetry.SpanAttrSupplierOrderID, req.SupplierOrderID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrProductCount, len(req.Products)),
	)
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	received, err := positiveQuantities("delivered quantities must be positive", req.Products)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.txScope.Execute(ctx, func(repos appstock.TransactionalRepositories) error {
		so, err := repos.SupplierOrderRepo().FindByID(ctx, req.SupplierOrderID)
		if err != nil {
			return err
		}
		return checkReceivable(so)
	}); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		result *StockingResult
		events []shared.DomainEvent
	)
	err = s.txScope.ExecuteWithRetry(ctx, func(repos appstock.TransactionalRepositories) error {
		result, events = nil, nil

		so, err := repos.SupplierOrderRepo().LockByID(ctx, req.SupplierOrderID)
		if err != nil {
			return err
		}
		if err := checkReceivable(so); err != nil {
			return err
		}
		productIDs := append(so.OrderedQuantities().ProductIDs(), received.ProductIDs()...)
		if _, err := repos.StockRepo().LockProducts(ctx, productIDs); err != nil {
			return fmt.Errorf("lock stock rows: %w", err)
		}
		incoming, err := quantitiesAt(ctx, repos, so.Location())
		if err != nil {
			return err
		}

		invalid := &stock.InvalidQuantityError{Reason: "delivered quantities exceed the incoming quantities"}
		for _, q := range received {
			if q.Quantity > incoming[q.ProductID] {
				invalid.Add(q.ProductID, q.Quantity, incoming[q.ProductID])
			}
		}
		if invalid.HasViolations() {
			return invalid
		}

		warehouseID := req.WarehouseID
		if warehouseID == nil {
			warehouseID = so.WarehouseID
		}
		opts := movementOptions(req.UserID, req.Comment, map[string]string{"supplier_order_number": so.Number})
		movements, err := s.stocker.movementsInto(ctx, repos, received, warehouseID, so.Location(), opts)
		if err != nil {
			return err
		}
		moved, err := s.movements.MoveStock(ctx, repos, movements)
		if err != nil {
			return err
		}
		events = append(events, moved...)

		remaining := -received.Total()
		for _, q := range incoming {
			remaining += q
		}
		if err := so.RecordDelivery(received, remaining); err != nil {
			return err
		}
		if err := repos.SupplierOrderRepo().Save(ctx, so); err != nil {
			return fmt.Errorf("save supplier order: %w", err)
		}
		events = append(events, drainEvents(so)...)

		result = &StockingResult{SupplierOrder: so, Received: received, Movements: len(movements)}
		return nil
	})
	if err != nil {
		logFailure(ctx, s.logger, "stock supplier order", zap.String("supplier_order_id", req.SupplierOrderID.String()), err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	value := result.SupplierOrder.ValueOf(received)
	s.metrics.RecordReceivedValue(ctx, value)
	telemetry.SetAttributes(span, telemetry.SpanAttrMovementCount, result.Movements)
	telemetry.SetOK(span)
	s.publisher.publish(ctx, events)
	logger.WithLogger(ctx, s.logger).Info("Supplier order stocked",
		zap.String("supplier_order_id", result.SupplierOrder.ID.String()),
		zap.String("state", string(result.SupplierOrder.State)),
		zap.String("received_value", value.StringFixed(2)),
	)
	return result, nil
}

func checkReceivable(so *order.SupplierOrder) error {
	if !so.State.CanReceiveGoods() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Supplier order %s cannot receive goods in %s state", so.Number, so.State))
	}
	return nil
}
