package stock

import (
	"context"
	"fmt"

	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/google/uuid"
)

// PickingRequestSolver resolves picking requests against the stock visible in
// the caller's transaction. Callers lock the products' stock rows first.
type PickingRequestSolver struct {
	pickGenericLocations bool
}

// PickingSolverOption configures a PickingRequestSolver
type PickingSolverOption func(*PickingRequestSolver)

// WithGenericLocations controls whether stock at a warehouse's generic
// location is pickable after its bin locations (default true)
func WithGenericLocations(enabled bool) PickingSolverOption {
	return func(s *PickingRequestSolver) {
		s.pickGenericLocations = enabled
	}
}

// NewPickingRequestSolver creates a new PickingRequestSolver
func NewPickingRequestSolver(opts ...PickingSolverOption) *PickingRequestSolver {
	s := &PickingRequestSolver{pickGenericLocations: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Solve annotates req with pick locations from the candidate warehouses, in
// the given order. An empty candidate list means all warehouses, default
// first. Shortage is left on the request for the caller to inspect; only
// structural problems (unknown product or warehouse) are returned as errors.
func (s *PickingRequestSolver) Solve(ctx context.Context, repos TransactionalRepositories, req *stock.PickingRequest, warehouseIDs []uuid.UUID) error {
	candidates, err := s.ResolveWarehouses(ctx, repos, warehouseIDs)
	if err != nil {
		return err
	}

	productIDs := req.ProductIDs()
	if len(productIDs) == 0 {
		return nil
	}
	missing, err := repos.ProductRepo().FindMissing(ctx, productIDs)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: product %s", shared.ErrNotFound, missing[0])
	}

	pickable, err := repos.StockRepo().FindPickable(ctx, productIDs, candidates, s.pickGenericLocations)
	if err != nil {
		return fmt.Errorf("load pickable stock: %w", err)
	}

	stock.SortPickableStock(pickable, candidates)
	req.Allocate(pickable)
	return nil
}

// ResolveWarehouses validates the candidate warehouses, or returns all
// warehouses (default first, then by code) when none are given
func (s *PickingRequestSolver) ResolveWarehouses(ctx context.Context, repos TransactionalRepositories, warehouseIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(warehouseIDs) == 0 {
		warehouses, err := repos.WarehouseRepo().FindAll(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]uuid.UUID, len(warehouses))
		for i, w := range warehouses {
			ids[i] = w.ID
		}
		return ids, nil
	}

	missing, err := repos.WarehouseRepo().FindMissing(ctx, warehouseIDs)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: warehouse %s", shared.ErrNotFound, missing[0])
	}
	return warehouseIDs, nil
}
