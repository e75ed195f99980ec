package fulfillment

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appstock "github.com/erp/stockengine/internal/application/stock"
	"github.com/erp/stockengine/internal/domain/order"
	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/erp/stockengine/internal/infrastructure/logger"
	"github.com/erp/stockengine/internal/infrastructure/telemetry"
)

// ReturnLineItem is one returned product
type ReturnLineItem struct {
	ProductID uuid.UUID `validate:"required"`
	Quantity  int       `validate:"gt=0"`
	Reason    string    `validate:"max=255"`
}

// CreateReturnOrderRequest returns goods of a shipped order
type CreateReturnOrderRequest struct {
	OrderID   uuid.UUID        `validate:"required"`
	LineItems []ReturnLineItem `validate:"required,min=1,dive"`
	UserID    *uuid.UUID
	Comment   string `validate:"max=1024"`
}

// CompleteReturnOrderRequest decides what happens to returned goods. Restock
// and Dispose together must account for exactly what the return order holds.
type CompleteReturnOrderRequest struct {
	ReturnOrderID uuid.UUID `validate:"required"`
	// WarehouseID receives restocked goods; nil means the default warehouse
	WarehouseID *uuid.UUID
	Restock     stock.ProductQuantities `validate:"dive"`
	Dispose     stock.ProductQuantities `validate:"dive"`
	UserID      *uuid.UUID
	Comment     string `validate:"max=1024"`
}

// ReturnOrderService moves returned goods from orders into return orders and
// from there back into stock or out of it
type ReturnOrderService struct {
	txScope   appstock.TransactionScope
	movements *appstock.StockMovementService
	stocker   stocker
	publisher publisher
	logger    *zap.Logger
}

// NewReturnOrderService creates a new ReturnOrderService. strategyName
// selects the stocking strategy used for restocking; empty means the default.
func NewReturnOrderService(
	txScope appstock.TransactionScope,
	movements *appstock.StockMovementService,
	strategies appstock.StockingStrategyProvider,
	strategyName string,
	events shared.EventPublisher,
	l *zap.Logger,
) *ReturnOrderService {
	if l == nil {
		l = zap.NewNop()
	}
	return &ReturnOrderService{
		txScope:   txScope,
		movements: movements,
		stocker:   stocker{strategies: strategies, strategyName: strategyName},
		publisher: publisher{events: events, logger: l},
		logger:    l,
	}
}

// CreateReturnOrder moves the returned quantities from the order location to
// a new return order. Quantities above what the order location holds are
// rejected together as a *stock.InvalidQuantityError. When the order location
// is emptied the order delivery becomes returned.
func (s *ReturnOrderService) CreateReturnOrder(ctx context.Context, req CreateReturnOrderRequest) (*order.ReturnOrder, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "return_order", "create",
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, req.OrderID.String()),
	)
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	requested := make(stock.ProductQuantities, len(req.LineItems))
	for i, li := range req.LineItems {
		requested[i] = stock.NewProductQuantity(li.ProductID, li.Quantity)
	}
	requested = requested.Merge()

	if err := s.txScope.Execute(ctx, func(repos appstock.TransactionalRepositories) error {
		o, err := repos.OrderRepo().FindByID(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if !o.IsLive() {
			return shared.NewDomainError("NOT_LIVE_VERSION", fmt.Sprintf("Order %s is not the live version", o.OrderNumber))
		}
		return nil
	}); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		ro     *order.ReturnOrder
		events []shared.DomainEvent
	)
	err := s.txScope.ExecuteWithRetry(ctx, func(repos appstock.TransactionalRepositories) error {
		ro, events = nil, nil

		o, err := repos.OrderRepo().LockByID(ctx, req.OrderID)
		if err != nil {
			return err
		}
		productIDs := append(o.OrderedQuantities().ProductIDs(), requested.ProductIDs()...)
		if _, err := repos.StockRepo().LockProducts(ctx, productIDs); err != nil {
			return fmt.Errorf("lock stock rows: %w", err)
		}
		held, err := quantitiesAt(ctx, repos, o.Location())
		if err != nil {
			return err
		}

		invalid := &stock.InvalidQuantityError{Reason: "returned quantities exceed the shipped quantities"}
		for _, q := range requested {
			if q.Quantity > held[q.ProductID] {
				invalid.Add(q.ProductID, q.Quantity, held[q.ProductID])
			}
		}
		if invalid.HasViolations() {
			return invalid
		}

		number, err := repos.ReturnOrderRepo().NextNumber(ctx)
		if err != nil {
			return err
		}
		ro, err = order.NewReturnOrder(number, o.ID)
		if err != nil {
			return err
		}
		for _, li := range req.LineItems {
			if err := ro.AddLineItem(li.ProductID, li.Quantity, li.Reason); err != nil {
				return err
			}
		}
		ro.AddDomainEvent(order.NewReturnOrderCreatedEvent(ro))
		if err := repos.ReturnOrderRepo().Save(ctx, ro); err != nil {
			return fmt.Errorf("save return order: %w", err)
		}

		opts := movementOptions(req.UserID, req.Comment, map[string]string{
			"order_number":        o.OrderNumber,
			"return_order_number": ro.Number,
		})
		movements, err := directMovements(requested, o.Location(), ro.Location(), opts)
		if err != nil {
			return err
		}
		moved, err := s.movements.MoveStock(ctx, repos, movements)
		if err != nil {
			return err
		}
		events = append(events, moved...)
		events = append(events, drainEvents(ro)...)

		for _, q := range requested {
			held[q.ProductID] -= q.Quantity
		}
		if allZero(held) && o.DeliveryState.CanTransitionTo(order.DeliveryStateReturned) {
			if err := o.MarkReturned(); err != nil {
				return err
			}
			if err := repos.OrderRepo().Save(ctx, o); err != nil {
				return fmt.Errorf("save order: %w", err)
			}
			events = append(events, drainEvents(o)...)
		}
		return nil
	})
	if err != nil {
		logFailure(ctx, s.logger, "create return order", zap.String("order_id", req.OrderID.String()), err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrReturnOrderID, ro.ID.String())
	telemetry.SetOK(span)
	s.publisher.publish(ctx, events)
	logger.WithLogger(ctx, s.logger).Info("Return order created",
		zap.String("order_id", req.OrderID.String()),
		zap.String("return_order_id", ro.ID.String()),
		zap.String("return_order_number", ro.Number),
	)
	return ro, nil
}

// CompleteReturnOrder restocks and disposes the goods held by an open return
// order and completes it. Restocked goods go to the destinations chosen by the
// stocking strategy; disposed goods leave stock to the unknown location. Any
// mismatch with the held quantities is reported per product.
func (s *ReturnOrderService) CompleteReturnOrder(ctx context.Context, req CompleteReturnOrderRequest) (*order.ReturnOrder, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "return_order", "complete",
		telemetry.WithAttribute(telemetry.SpanAttrReturnOrderID, req.ReturnOrderID.String()),
	)
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	restock, err := positiveQuantities("restocked quantities must be positive", req.Restock)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	dispose, err := positiveQuantities("disposed quantities must be positive", req.Dispose)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.txScope.Execute(ctx, func(repos appstock.TransactionalRepositories) error {
		ro, err := repos.ReturnOrderRepo().FindByID(ctx, req.ReturnOrderID)
		if err != nil {
			return err
		}
		return checkReturnOrderOpen(ro)
	}); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		ro     *order.ReturnOrder
		events []shared.DomainEvent
	)
	err = s.txScope.ExecuteWithRetry(ctx, func(repos appstock.TransactionalRepositories) error {
		ro, events = nil, nil

		var err error
		ro, err = repos.ReturnOrderRepo().LockByID(ctx, req.ReturnOrderID)
		if err != nil {
			return err
		}
		if err := checkReturnOrderOpen(ro); err != nil {
			return err
		}

		productIDs := append(ro.Quantities().ProductIDs(), restock.ProductIDs()...)
		productIDs = append(productIDs, dispose.ProductIDs()...)
		if _, err := repos.StockRepo().LockProducts(ctx, productIDs); err != nil {
			return fmt.Errorf("lock stock rows: %w", err)
		}
		held, err := quantitiesAt(ctx, repos, ro.Location())
		if err != nil {
			return err
		}

		decided := append(append(stock.ProductQuantities{}, restock...), dispose...).Merge().AsMap()
		invalid := &stock.InvalidQuantityError{Reason: "restocked and disposed quantities must equal the returned quantities"}
		for _, id := range unionKeys(held, decided) {
			if decided[id] != held[id] {
				invalid.Add(id, decided[id], held[id])
			}
		}
		if invalid.HasViolations() {
			return invalid
		}

		opts := movementOptions(req.UserID, req.Comment, map[string]string{"return_order_number": ro.Number})
		movements, err := s.stocker.movementsInto(ctx, repos, restock, req.WarehouseID, ro.Location(), opts)
		if err != nil {
			return err
		}
		disposeOpts := movementOptions(req.UserID, req.Comment, map[string]string{
			"return_order_number": ro.Number,
			"disposed":            "true",
		})
		disposed, err := directMovements(dispose, ro.Location(), stock.UnknownLocation(), disposeOpts)
		if err != nil {
			return err
		}
		movements = append(movements, disposed...)
		moved, err := s.movements.MoveStock(ctx, repos, movements)
		if err != nil {
			return err
		}
		events = append(events, moved...)

		if err := ro.Complete(); err != nil {
			return err
		}
		if err := repos.ReturnOrderRepo().Save(ctx, ro); err != nil {
			return fmt.Errorf("save return order: %w", err)
		}
		events = append(events, drainEvents(ro)...)
		return nil
	})
	if err != nil {
		logFailure(ctx, s.logger, "complete return order", zap.String("return_order_id", req.ReturnOrderID.String()), err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetOK(span)
	s.publisher.publish(ctx, events)
	logger.WithLogger(ctx, s.logger).Info("Return order completed",
		zap.String("return_order_id", ro.ID.String()),
		zap.Int("restocked", restock.Total()),
		zap.Int("disposed", dispose.Total()),
	)
	return ro, nil
}

func checkReturnOrderOpen(ro *order.ReturnOrder) error {
	if ro.State != order.ReturnOrderStateOpen {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Return order %s is %s", ro.Number, ro.State))
	}
	return nil
}

// unionKeys returns the product IDs of both maps in a stable order
func unionKeys(a, b map[uuid.UUID]int) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(a)+len(b))
	ids := make([]uuid.UUID, 0, len(a)+len(b))
	for _, m := range []map[uuid.UUID]int{a, b} {
		for id := range m {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	slices.SortFunc(ids, func(x, y uuid.UUID) int { return strings.Compare(x.String(), y.String()) })
	return ids
}
