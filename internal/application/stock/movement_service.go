package stock

import (
	"context"
	"fmt"
	"sort"

	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/erp/stockengine/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StockMovementService applies batches of stock movements. It is the only
// writer of aggregated stock and the movement ledger, and must be called from
// inside a transaction.
type StockMovementService struct {
	logger  *zap.Logger
	metrics *telemetry.StockMetrics
}

// NewStockMovementService creates a new StockMovementService
func NewStockMovementService(logger *zap.Logger) *StockMovementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockMovementService{logger: logger}
}

// SetStockMetrics sets the stock metrics collector
func (s *StockMovementService) SetStockMetrics(m *telemetry.StockMetrics) {
	s.metrics = m
}

// MoveStock applies the batch as one unit within the caller's transaction:
// net changes are computed per product and real location, the affected rows
// are locked in a stable order, every change is validated against the locked
// quantity, and only then are aggregates and ledger written. If any real
// location would go negative a *stock.ValidationError is returned and nothing
// is written. The returned events must be published after commit.
func (s *StockMovementService) MoveStock(ctx context.Context, repos TransactionalRepositories, movements stock.StockMovements) ([]shared.DomainEvent, error) {
	if len(movements) == 0 {
		return nil, nil
	}
	for i, m := range movements {
		if m == nil || m.Quantity <= 0 {
			return nil, shared.NewDomainError("INVALID_MOVEMENT", fmt.Sprintf("Stock movement %d has no positive quantity", i))
		}
	}

	if missing, err := repos.ProductRepo().FindMissing(ctx, movements.ProductIDs()); err != nil {
		return nil, err
	} else if len(missing) > 0 {
		return nil, fmt.Errorf("%w: product %s", shared.ErrNotFound, missing[0])
	}

	changes, err := s.collectChanges(ctx, repos, movements)
	if err != nil {
		return nil, err
	}

	keys := make([]stock.StockKey, len(changes))
	for i, c := range changes {
		keys[i] = c.StockKey
	}
	locked, err := repos.StockRepo().LockKeys(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("lock stock rows: %w", err)
	}

	for _, c := range changes {
		current := 0
		if row, ok := locked[c.StockKey]; ok {
			current = row.Quantity
		}
		if current+c.Delta < 0 {
			s.logger.Warn("rejected stock movement batch",
				zap.String("product_id", c.ProductID.String()),
				zap.String("location", c.Location.String()),
				zap.Int("current", current),
				zap.Int("change", c.Delta),
			)
			s.metrics.RecordValidationError(ctx)
			return nil, &stock.ValidationError{
				ProductID:       c.ProductID,
				Location:        c.Location,
				CurrentQuantity: current,
				Change:          c.Delta,
			}
		}
	}

	warehouseDeltas := make(map[warehouseKey]int)
	for _, c := range changes {
		if c.Delta == 0 {
			continue
		}
		if err := repos.StockRepo().ApplyChange(ctx, c); err != nil {
			return nil, fmt.Errorf("apply stock change: %w", err)
		}
		if c.WarehouseID != nil {
			warehouseDeltas[warehouseKey{productID: c.ProductID, warehouseID: *c.WarehouseID}] += c.Delta
		}
	}

	for _, wk := range sortedWarehouseKeys(warehouseDeltas) {
		delta := warehouseDeltas[wk]
		if delta == 0 {
			continue
		}
		if err := repos.WarehouseStockRepo().ApplyChange(ctx, wk.productID, wk.warehouseID, delta); err != nil {
			return nil, fmt.Errorf("apply warehouse stock change: %w", err)
		}
	}

	if err := repos.MovementRepo().CreateBatch(ctx, movements); err != nil {
		return nil, fmt.Errorf("append stock movements: %w", err)
	}

	s.metrics.RecordMovements(ctx, movements)

	events := make([]shared.DomainEvent, 0, len(movements))
	for _, m := range movements {
		events = append(events, stock.NewStockMovedEvent(m))
	}
	return events, nil
}

// collectChanges nets the batch per (product, real location) and resolves the
// warehouse of every warehouse and bin location. The result is sorted by key.
func (s *StockMovementService) collectChanges(ctx context.Context, repos TransactionalRepositories, movements stock.StockMovements) ([]stock.StockChange, error) {
	deltas := make(map[stock.StockKey]int)
	var warehouseIDs, binIDs []uuid.UUID
	track := func(loc stock.LocationReference) {
		switch loc.Type() {
		case stock.LocationTypeWarehouse:
			warehouseIDs = append(warehouseIDs, loc.ID())
		case stock.LocationTypeBinLocation:
			binIDs = append(binIDs, loc.ID())
		}
	}

	for _, m := range movements {
		if !m.Source.IsSpecial() {
			deltas[stock.StockKey{ProductID: m.ProductID, Location: m.Source}] -= m.Quantity
			track(m.Source)
		}
		if !m.Destination.IsSpecial() {
			deltas[stock.StockKey{ProductID: m.ProductID, Location: m.Destination}] += m.Quantity
			track(m.Destination)
		}
	}

	if len(warehouseIDs) > 0 {
		missing, err := repos.WarehouseRepo().FindMissing(ctx, warehouseIDs)
		if err != nil {
			return nil, err
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("%w: warehouse %s", shared.ErrNotFound, missing[0])
		}
	}
	bins := map[uuid.UUID]*stock.BinLocation{}
	if len(binIDs) > 0 {
		var err error
		bins, err = repos.BinLocationRepo().FindByIDs(ctx, binIDs)
		if err != nil {
			return nil, err
		}
	}

	changes := make([]stock.StockChange, 0, len(deltas))
	for key, delta := range deltas {
		change := stock.StockChange{StockKey: key, Delta: delta}
		switch key.Location.Type() {
		case stock.LocationTypeWarehouse:
			id := key.Location.ID()
			change.WarehouseID = &id
		case stock.LocationTypeBinLocation:
			bin, ok := bins[key.Location.ID()]
			if !ok {
				return nil, fmt.Errorf("%w: bin location %s", shared.ErrNotFound, key.Location.ID())
			}
			id := bin.WarehouseID
			change.WarehouseID = &id
			change.BinLocationCode = bin.Code
		}
		changes = append(changes, change)
	}
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].StockKey.Less(changes[j].StockKey)
	})
	return changes, nil
}

type warehouseKey struct {
	productID   uuid.UUID
	warehouseID uuid.UUID
}

func sortedWarehouseKeys(m map[warehouseKey]int) []warehouseKey {
	keys := make([]warehouseKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].productID != keys[j].productID {
			return keys[i].productID.String() < keys[j].productID.String()
		}
		return keys[i].warehouseID.String() < keys[j].warehouseID.String()
	})
	return keys
}
