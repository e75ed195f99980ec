package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appstock "github.com/erp/stockengine/internal/application/stock"
	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/erp/stockengine/internal/infrastructure/logger"
)

// requestValidator is shared by all services; validator.Validate caches
// struct metadata and is safe for concurrent use
var requestValidator = validator.New(validator.WithRequiredStructEnabled())

// validateRequest runs the struct's `validate` tags and reports every failing
// field as one shared.ErrInvalidInput
func validateRequest(req any) error {
	err := requestValidator.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", shared.ErrInvalidInput, strings.Join(parts, "; "))
}

// positiveQuantities merges quantities per product and rejects non-positive ones
func positiveQuantities(reason string, quantities stock.ProductQuantities) (stock.ProductQuantities, error) {
	merged := quantities.Merge()
	invalid := &stock.InvalidQuantityError{Reason: reason}
	for _, q := range merged {
		if q.Quantity <= 0 {
			invalid.Add(q.ProductID, q.Quantity, 0)
		}
	}
	if invalid.HasViolations() {
		return nil, invalid
	}
	return merged, nil
}

// quantitiesAt returns the stock per product held at a document location
func quantitiesAt(ctx context.Context, repos appstock.TransactionalRepositories, location stock.LocationReference) (map[uuid.UUID]int, error) {
	rows, err := repos.StockRepo().FindByLocation(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("load stock at %s: %w", location, err)
	}
	held := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		held[row.ProductID] += row.Quantity
	}
	return held, nil
}

// publisher delivers committed events. A publish failure is logged and
// swallowed: the stock change has already been committed.
type publisher struct {
	events shared.EventPublisher
	logger *zap.Logger
}

func (p publisher) publish(ctx context.Context, events []shared.DomainEvent) {
	if p.events == nil || len(events) == 0 {
		return
	}
	if err := p.events.Publish(ctx, events...); err != nil {
		logger.WithLogger(ctx, p.logger).Error("Failed to publish events after commit",
			zap.Int("event_count", len(events)),
			zap.Error(err),
		)
	}
}

type aggregate interface {
	PullDomainEvents() []shared.DomainEvent
}

// drainEvents takes the pending events off an aggregate
func drainEvents(a aggregate) []shared.DomainEvent {
	return a.PullDomainEvents()
}

// movementOptions builds the attribution copied onto every generated movement
func movementOptions(userID *uuid.UUID, comment string, metadata map[string]string) stock.MovementOptions {
	return stock.MovementOptions{UserID: userID, Comment: comment, Metadata: metadata}
}

// stocker resolves put-away destinations with the configured stocking strategy
type stocker struct {
	strategies   appstock.StockingStrategyProvider
	strategyName string
}

// movementsInto builds movements from source into the destinations the
// strategy picks for quantities in warehouseID (nil means default warehouse)
func (st stocker) movementsInto(
	ctx context.Context,
	repos appstock.TransactionalRepositories,
	quantities stock.ProductQuantities,
	warehouseID *uuid.UUID,
	source stock.LocationReference,
	opts stock.MovementOptions,
) (stock.StockMovements, error) {
	if len(quantities) == 0 {
		return nil, nil
	}
	strategy, err := st.strategies.GetStockingStrategy(st.strategyName)
	if err != nil {
		return nil, err
	}
	req, err := stock.NewStockingRequest(quantities, warehouseID)
	if err != nil {
		return nil, err
	}
	solution, err := strategy.CalculateStockingSolution(ctx, appstock.NewStockingLookup(repos), req)
	if err != nil {
		return nil, err
	}
	return solution.ToStockMovements(source, opts)
}

// directMovements moves every quantity from source to one destination
func directMovements(quantities stock.ProductQuantities, source, destination stock.LocationReference, opts stock.MovementOptions) (stock.StockMovements, error) {
	solution := make(stock.StockingSolution, 0, len(quantities))
	for _, q := range quantities {
		solution = append(solution, stock.NewProductQuantityLocation(q.ProductID, q.Quantity, destination))
	}
	return solution.ToStockMovements(source, opts)
}
