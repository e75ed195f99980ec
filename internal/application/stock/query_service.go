package stock

import (
	"context"
	"fmt"
	"sort"

	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/google/uuid"
)

// ProductStockView is a read-only snapshot of a product's stock.
// It is not locked and must not drive stock movements.
type ProductStockView struct {
	Product        stock.Product
	Locations      []stock.Stock
	WarehouseStock []stock.WarehouseStock
	Total          int
}

// LocationMismatch is a location whose aggregate disagrees with the ledger
type LocationMismatch struct {
	Location  stock.LocationReference
	Aggregate int
	Ledger    int
}

// WarehouseMismatch is a warehouse whose total disagrees with its locations
type WarehouseMismatch struct {
	WarehouseID    uuid.UUID
	WarehouseStock int
	LocationsSum   int
}

// ConservationReport is the result of checking a product's aggregates
type ConservationReport struct {
	ProductID           uuid.UUID
	Mismatches          []LocationMismatch
	WarehouseMismatches []WarehouseMismatch
	NegativeLocations   []stock.Stock
}

// IsConsistent returns true if no mismatch or negative stock was found
func (r *ConservationReport) IsConsistent() bool {
	return len(r.Mismatches) == 0 && len(r.WarehouseMismatches) == 0 && len(r.NegativeLocations) == 0
}

// StockQueryService answers read-only stock questions
type StockQueryService struct {
	txScope TransactionScope
}

// NewStockQueryService creates a new StockQueryService
func NewStockQueryService(txScope TransactionScope) *StockQueryService {
	return &StockQueryService{txScope: txScope}
}

// StockForProduct returns the per-location and per-warehouse stock of a product
func (s *StockQueryService) StockForProduct(ctx context.Context, productID uuid.UUID) (*ProductStockView, error) {
	var view *ProductStockView
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		product, err := repos.ProductRepo().FindByID(ctx, productID)
		if err != nil {
			return err
		}
		rows, err := repos.StockRepo().FindByProduct(ctx, productID)
		if err != nil {
			return err
		}
		totals, err := repos.WarehouseStockRepo().FindByProduct(ctx, productID)
		if err != nil {
			return err
		}

		view = &ProductStockView{Product: *product, WarehouseStock: totals}
		for _, row := range rows {
			if row.Quantity == 0 {
				continue
			}
			view.Locations = append(view.Locations, row)
		}
		for _, ws := range totals {
			view.Total += ws.Quantity
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// MovementsForProduct lists a product's ledger, newest first
func (s *StockQueryService) MovementsForProduct(ctx context.Context, productID uuid.UUID, filter shared.Filter) ([]stock.StockMovement, int64, error) {
	var (
		movements []stock.StockMovement
		total     int64
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		movements, total, err = repos.MovementRepo().FindByProduct(ctx, productID, filter)
		return err
	})
	return movements, total, err
}

// VerifyConservation compares every aggregate of a product with the ledger
// (Σ into − Σ out of each real location) and every warehouse total with the
// sum of the warehouse's locations
func (s *StockQueryService) VerifyConservation(ctx context.Context, productID uuid.UUID) (*ConservationReport, error) {
	report := &ConservationReport{ProductID: productID}
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		rows, err := repos.StockRepo().FindByProduct(ctx, productID)
		if err != nil {
			return err
		}
		ledger, err := repos.MovementRepo().NetQuantityByLocation(ctx, productID)
		if err != nil {
			return fmt.Errorf("sum ledger: %w", err)
		}
		totals, err := repos.WarehouseStockRepo().FindByProduct(ctx, productID)
		if err != nil {
			return err
		}

		seen := make(map[stock.LocationReference]bool, len(rows))
		locationsByWarehouse := make(map[uuid.UUID]int)
		for _, row := range rows {
			seen[row.Location] = true
			if row.Quantity < 0 {
				report.NegativeLocations = append(report.NegativeLocations, row)
			}
			if net := ledger[row.Location]; net != row.Quantity {
				report.Mismatches = append(report.Mismatches, LocationMismatch{Location: row.Location, Aggregate: row.Quantity, Ledger: net})
			}
			if row.WarehouseID != nil {
				locationsByWarehouse[*row.WarehouseID] += row.Quantity
			}
		}
		for location, net := range ledger {
			if !seen[location] && net != 0 {
				report.Mismatches = append(report.Mismatches, LocationMismatch{Location: location, Ledger: net})
			}
		}

		seenWarehouses := make(map[uuid.UUID]bool, len(totals))
		for _, ws := range totals {
			seenWarehouses[ws.WarehouseID] = true
			if sum := locationsByWarehouse[ws.WarehouseID]; sum != ws.Quantity {
				report.WarehouseMismatches = append(report.WarehouseMismatches, WarehouseMismatch{WarehouseID: ws.WarehouseID, WarehouseStock: ws.Quantity, LocationsSum: sum})
			}
		}
		for warehouseID, sum := range locationsByWarehouse {
			if !seenWarehouses[warehouseID] && sum != 0 {
				report.WarehouseMismatches = append(report.WarehouseMismatches, WarehouseMismatch{WarehouseID: warehouseID, LocationsSum: sum})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(report.Mismatches, func(i, j int) bool {
		return report.Mismatches[i].Location.Less(report.Mismatches[j].Location)
	})
	sort.Slice(report.WarehouseMismatches, func(i, j int) bool {
		return report.WarehouseMismatches[i].WarehouseID.String() < report.WarehouseMismatches[j].WarehouseID.String()
	})
	return report, nil
}
