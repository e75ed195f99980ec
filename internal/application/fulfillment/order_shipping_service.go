package fulfillment

import (
	"context"
	"errors"
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

// ShipOrderRequest ships everything still open on an order
type ShipOrderRequest struct {
	OrderID uuid.UUID `validate:"required"`
	// VersionID must be the live version when set
	VersionID *uuid.UUID
	// WarehouseIDs are the candidate warehouses in picking order; empty means all
	WarehouseIDs []uuid.UUID `validate:"dive,required"`
	UserID       *uuid.UUID
	Comment      string `validate:"max=1024"`
}

// ShipProductsRequest ships part of an order
type ShipProductsRequest struct {
	OrderID      uuid.UUID               `validate:"required"`
	WarehouseIDs []uuid.UUID             `validate:"dive,required"`
	Products     stock.ProductQuantities `validate:"required,min=1,dive"`
	UserID       *uuid.UUID
	Comment      string `validate:"max=1024"`
}

// ShipmentResult describes a committed shipment
type ShipmentResult struct {
	OrderID       uuid.UUID
	Shipped       stock.ProductQuantities
	Movements     int
	DeliveryState order.DeliveryState
}

// OrderShippingService moves picked stock from warehouses to orders
type OrderShippingService struct {
	txScope   appstock.TransactionScope
	movements *appstock.StockMovementService
	solver    *appstock.PickingRequestSolver
	publisher publisher
	logger    *zap.Logger
	metrics   *telemetry.StockMetrics
}

// NewOrderShippingService creates a new OrderShippingService
func NewOrderShippingService(
	txScope appstock.TransactionScope,
	movements *appstock.StockMovementService,
	solver *appstock.PickingRequestSolver,
	events shared.EventPublisher,
	l *zap.Logger,
) *OrderShippingService {
	if l == nil {
		l = zap.NewNop()
	}
	return &OrderShippingService{
		txScope:   txScope,
		movements: movements,
		solver:    solver,
		publisher: publisher{events: events, logger: l},
		logger:    l,
	}
}

// SetStockMetrics sets the stock metrics collector
func (s *OrderShippingService) SetStockMetrics(m *telemetry.StockMetrics) {
	s.metrics = m
}

// ShipOrderCompletely picks the remaining quantity of every line item and
// moves it to the order location, then marks the delivery shipped. If any
// product cannot be fully picked a *stock.NotEnoughStockError is returned
// and nothing is moved.
func (s *OrderShippingService) ShipOrderCompletely(ctx context.Context, req ShipOrderRequest) (*ShipmentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_shipping", "ship_order_completely",
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, req.OrderID.String()),
	)
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if req.VersionID != nil && *req.VersionID != stock.LiveVersionID {
		err := shared.NewDomainError("NOT_LIVE_VERSION", "Only the live version of an order can be shipped")
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.checkShippable(ctx, req.OrderID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		result *ShipmentResult
		events []shared.DomainEvent
	)
	err := s.txScope.ExecuteWithRetry(ctx, func(repos appstock.TransactionalRepositories) error {
		result, events = nil, nil

		o, held, err := s.lockOrder(ctx, repos, req.OrderID)
		if err != nil {
			return err
		}
		remaining := o.RemainingQuantities(held)

		opts := movementOptions(req.UserID, req.Comment, map[string]string{"order_number": o.OrderNumber})
		moved, err := s.pickAndMove(ctx, repos, o, remaining, req.WarehouseIDs, opts)
		if err != nil {
			return err
		}
		events = append(events, moved.events...)

		if err := o.Ship(); err != nil {
			return err
		}
		if err := repos.OrderRepo().Save(ctx, o); err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		events = append(events, drainEvents(o)...)

		result = &ShipmentResult{
			OrderID:       o.ID,
			Shipped:       remaining,
			Movements:     moved.count,
			DeliveryState: o.DeliveryState,
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "ship order", req.OrderID, err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrMovementCount, result.Movements)
	telemetry.SetOK(span)
	s.publisher.publish(ctx, events)
	logger.WithLogger(ctx, s.logger).Info("Order shipped",
		zap.String("order_id", req.OrderID.String()),
		zap.Int("movements", result.Movements),
	)
	return result, nil
}

// ShipProducts ships the given quantities of an order. Every product must
// be on the order and no more than its open quantity may be shipped; all
// violations are reported together as a *stock.InvalidQuantityError. The
// delivery becomes shipped once nothing is left open.
func (s *OrderShippingService) ShipProducts(ctx context.Context, req ShipProductsRequest) (*ShipmentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_shipping", "ship_products",
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, req.OrderID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrProductCount, len(req.Products)),
	)
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	requested, err := positiveQuantities("shipped quantities must be positive", req.Products)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.checkShippable(ctx, req.OrderID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		result *ShipmentResult
		events []shared.DomainEvent
	)
	err = s.txScope.ExecuteWithRetry(ctx, func(repos appstock.TransactionalRepositories) error {
		result, events = nil, nil

		o, held, err := s.lockOrder(ctx, repos, req.OrderID)
		if err != nil {
			return err
		}
		open := o.RemainingQuantities(held).AsMap()

		invalid := &stock.InvalidQuantityError{Reason: "requested quantities exceed the open order quantities"}
		for _, q := range requested {
			if q.Quantity > open[q.ProductID] {
				invalid.Add(q.ProductID, q.Quantity, open[q.ProductID])
			}
		}
		if invalid.HasViolations() {
			return invalid
		}

		opts := movementOptions(req.UserID, req.Comment, map[string]string{"order_number": o.OrderNumber})
		moved, err := s.pickAndMove(ctx, repos, o, requested, req.WarehouseIDs, opts)
		if err != nil {
			return err
		}
		events = append(events, moved.events...)

		for _, q := range requested {
			open[q.ProductID] -= q.Quantity
		}
		if allZero(open) {
			if err := o.Ship(); err != nil {
				return err
			}
			if err := repos.OrderRepo().Save(ctx, o); err != nil {
				return fmt.Errorf("save order: %w", err)
			}
			events = append(events, drainEvents(o)...)
		}

		result = &ShipmentResult{
			OrderID:       o.ID,
			Shipped:       requested,
			Movements:     moved.count,
			DeliveryState: o.DeliveryState,
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "ship products", req.OrderID, err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetOK(span)
	s.publisher.publish(ctx, events)
	logger.WithLogger(ctx, s.logger).Info("Order products shipped",
		zap.String("order_id", req.OrderID.String()),
		zap.Int("movements", result.Movements),
		zap.String("delivery_state", result.DeliveryState.String()),
	)
	return result, nil
}

// checkShippable fails fast, without locks, on unknown, non-live or already
// shipped orders
func (s *OrderShippingService) checkShippable(ctx context.Context, orderID uuid.UUID) error {
	return s.txScope.Execute(ctx, func(repos appstock.TransactionalRepositories) error {
		o, err := repos.OrderRepo().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		return checkOrderOpen(o)
	})
}

func checkOrderOpen(o *order.Order) error {
	if !o.IsLive() {
		return shared.NewDomainError("NOT_LIVE_VERSION", fmt.Sprintf("Order %s is not the live version", o.OrderNumber))
	}
	if o.DeliveryState != order.DeliveryStateOpen {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Order %s delivery is already %s", o.OrderNumber, o.DeliveryState))
	}
	return nil
}

// lockOrder locks the order row and the stock rows of its products and
// returns what the order location already holds
func (s *OrderShippingService) lockOrder(ctx context.Context, repos appstock.TransactionalRepositories, orderID uuid.UUID) (*order.Order, map[uuid.UUID]int, error) {
	o, err := repos.OrderRepo().LockByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	// state may have changed since the unlocked check
	if err := checkOrderOpen(o); err != nil {
		return nil, nil, err
	}

	rows, err := repos.StockRepo().LockProducts(ctx, o.OrderedQuantities().ProductIDs())
	if err != nil {
		return nil, nil, fmt.Errorf("lock stock rows: %w", err)
	}
	held := make(map[uuid.UUID]int)
	for _, row := range rows {
		if row.Location == o.Location() {
			held[row.ProductID] += row.Quantity
		}
	}
	return o, held, nil
}

type moveResult struct {
	count  int
	events []shared.DomainEvent
}

// pickAndMove resolves quantities against the locked stock and moves them to
// the order. A shortage aborts before anything is written.
func (s *OrderShippingService) pickAndMove(
	ctx context.Context,
	repos appstock.TransactionalRepositories,
	o *order.Order,
	quantities stock.ProductQuantities,
	warehouseIDs []uuid.UUID,
	opts stock.MovementOptions,
) (moveResult, error) {
	if len(quantities) == 0 {
		return moveResult{}, nil
	}
	picking, err := stock.NewPickingRequest(quantities)
	if err != nil {
		return moveResult{}, err
	}
	candidates, err := s.solver.ResolveWarehouses(ctx, repos, warehouseIDs)
	if err != nil {
		return moveResult{}, err
	}
	if err := s.solver.Solve(ctx, repos, picking, candidates); err != nil {
		return moveResult{}, err
	}
	if !picking.IsCompletelyPickable() {
		shortage := picking.StockShortage()
		s.metrics.RecordShortage(ctx, "ship_order", shortage)
		return moveResult{}, &stock.NotEnoughStockError{Shortage: shortage, WarehouseIDs: candidates}
	}

	movements, err := picking.ToStockMovements(o.Location(), opts)
	if err != nil {
		return moveResult{}, err
	}
	events, err := s.movements.MoveStock(ctx, repos, movements)
	if err != nil {
		return moveResult{}, err
	}
	return moveResult{count: len(movements), events: events}, nil
}

// logFailure logs business rejections at Info and everything else at Error
func (s *OrderShippingService) logFailure(ctx context.Context, operation string, orderID uuid.UUID, err error) {
	logFailure(ctx, s.logger, operation, zap.String("order_id", orderID.String()), err)
}

func logFailure(ctx context.Context, l *zap.Logger, operation string, subject zap.Field, err error) {
	cl := logger.WithLogger(ctx, l).With(zap.String("operation", operation), subject, zap.Error(err))
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) && !errors.Is(err, stock.ErrNegativeStock) {
		cl.Info("Stock operation rejected")
		return
	}
	cl.Error("Stock operation failed")
}

func allZero(m map[uuid.UUID]int) bool {
	for _, v := range m {
		if v > 0 {
			return false
		}
	}
	return true
}
