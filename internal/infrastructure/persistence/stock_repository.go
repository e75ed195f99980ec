package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/erp/stockengine/internal/infrastructure/persistence/models"
)

// lockOrder is the row order in which stock locks are taken by every
// operation, so concurrent transactions queue instead of deadlocking
const lockOrder = "product_id, location_type, location_id"

// GormStockRepository implements StockRepository using GORM
type GormStockRepository struct {
	db *gorm.DB
}

// NewGormStockRepository creates a new GormStockRepository
func NewGormStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

func (r *GormStockRepository) forUpdate(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

// LockProducts locks every stock row of the products
func (r *GormStockRepository) LockProducts(ctx context.Context, productIDs []uuid.UUID) ([]stock.Stock, error) {
	if len(productIDs) == 0 {
		return []stock.Stock{}, nil
	}
	var rows []models.StockModel
	if err := r.forUpdate(ctx).
		Where("product_id IN ?", productIDs).
		Order(lockOrder).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("lock stock of products: %w", err)
	}
	return toStocks(rows)
}

// LockKeys locks the existing rows of the given keys
func (r *GormStockRepository) LockKeys(ctx context.Context, keys []stock.StockKey) (map[stock.StockKey]*stock.Stock, error) {
	result := make(map[stock.StockKey]*stock.Stock, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	conds := make([]string, 0, len(keys))
	args := make([]any, 0, 3*len(keys))
	for _, k := range keys {
		conds = append(conds, "(product_id = ? AND location_type = ? AND location_id = ?)")
		args = append(args, k.ProductID, k.Location.Type().String(), k.Location.ID())
	}

	var rows []models.StockModel
	if err := r.forUpdate(ctx).
		Where("("+strings.Join(conds, " OR ")+")", args...).
		Order(lockOrder).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("lock stock rows: %w", err)
	}

	for i := range rows {
		s, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		result[stock.StockKey{ProductID: s.ProductID, Location: s.Location}] = s
	}
	return result, nil
}

// FindPickable returns positive stock at bin locations and, when
// includeGeneric is set, generic locations of the warehouses
func (r *GormStockRepository) FindPickable(ctx context.Context, productIDs []uuid.UUID, warehouseIDs []uuid.UUID, includeGeneric bool) ([]stock.PickableStock, error) {
	if len(productIDs) == 0 || len(warehouseIDs) == 0 {
		return []stock.PickableStock{}, nil
	}
	types := []string{stock.LocationTypeBinLocation.String()}
	if includeGeneric {
		types = append(types, stock.LocationTypeWarehouse.String())
	}

	var rows []models.StockModel
	if err := r.db.WithContext(ctx).
		Where("product_id IN ? AND warehouse_id IN ? AND location_type IN ? AND quantity > 0", productIDs, warehouseIDs, types).
		Order(lockOrder).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find pickable stock: %w", err)
	}

	pickable := make([]stock.PickableStock, 0, len(rows))
	for i := range rows {
		loc, err := rows[i].Location()
		if err != nil {
			return nil, err
		}
		if rows[i].WarehouseID == nil {
			return nil, fmt.Errorf("stock row %s at %s has no warehouse", rows[i].ID, loc)
		}
		pickable = append(pickable, stock.PickableStock{
			StockID:         rows[i].ID,
			ProductID:       rows[i].ProductID,
			Location:        loc,
			WarehouseID:     *rows[i].WarehouseID,
			BinLocationCode: rows[i].BinLocationCode,
			Quantity:        rows[i].Quantity,
		})
	}
	return pickable, nil
}

// FindByLocation returns the non-zero rows at a location
func (r *GormStockRepository) FindByLocation(ctx context.Context, location stock.LocationReference) ([]stock.Stock, error) {
	if location.IsSpecial() {
		return []stock.Stock{}, nil
	}
	var rows []models.StockModel
	if err := r.db.WithContext(ctx).
		Where("location_type = ? AND location_id = ? AND quantity <> 0", location.Type().String(), location.ID()).
		Order("product_id").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find stock at %s: %w", location, err)
	}
	return toStocks(rows)
}

// FindByProduct returns all rows of a product
func (r *GormStockRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]stock.Stock, error) {
	var rows []models.StockModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("location_type, bin_location_code, location_id").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find stock of product %s: %w", productID, err)
	}
	return toStocks(rows)
}

// FindByLocationType returns the rows of products at locations of one type
func (r *GormStockRepository) FindByLocationType(ctx context.Context, productIDs []uuid.UUID, locationType stock.LocationType) ([]stock.Stock, error) {
	if len(productIDs) == 0 {
		return []stock.Stock{}, nil
	}
	var rows []models.StockModel
	if err := r.db.WithContext(ctx).
		Where("product_id IN ? AND location_type = ?", productIDs, locationType.String()).
		Order(lockOrder).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find stock at %s locations: %w", locationType, err)
	}
	return toStocks(rows)
}

// ApplyChange adds delta to the row, inserting it when missing
func (r *GormStockRepository) ApplyChange(ctx context.Context, change stock.StockChange) error {
	if change.Location.IsSpecial() {
		return shared.NewDomainError("INVALID_LOCATION", fmt.Sprintf("No stock is kept at %s", change.Location))
	}
	now := time.Now()
	row := models.StockModel{
		BaseModel: models.BaseModel{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		ProductID:       change.ProductID,
		LocationType:    change.Location.Type().String(),
		LocationID:      change.Location.ID(),
		WarehouseID:     change.WarehouseID,
		BinLocationCode: change.BinLocationCode,
		Quantity:        change.Delta,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "product_id"}, {Name: "location_type"}, {Name: "location_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"quantity":   gorm.Expr("stocks.quantity + ?", change.Delta),
			"updated_at": now,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("apply stock change for product %s at %s: %w", change.ProductID, change.Location, err)
	}
	return nil
}

func toStocks(rows []models.StockModel) ([]stock.Stock, error) {
	result := make([]stock.Stock, 0, len(rows))
	for i := range rows {
		s, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, nil
}

// GormWarehouseStockRepository implements WarehouseStockRepository using GORM
type GormWarehouseStockRepository struct {
	db *gorm.DB
}

// NewGormWarehouseStockRepository creates a new GormWarehouseStockRepository
func NewGormWarehouseStockRepository(db *gorm.DB) *GormWarehouseStockRepository {
	return &GormWarehouseStockRepository{db: db}
}

// ApplyChange adds delta to the product's warehouse total
func (r *GormWarehouseStockRepository) ApplyChange(ctx context.Context, productID, warehouseID uuid.UUID, delta int) error {
	now := time.Now()
	row := models.WarehouseStockModel{
		BaseModel: models.BaseModel{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    delta,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "product_id"}, {Name: "warehouse_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"quantity":   gorm.Expr("warehouse_stocks.quantity + ?", delta),
			"updated_at": now,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("apply warehouse stock change for product %s in warehouse %s: %w", productID, warehouseID, err)
	}
	return nil
}

// FindByProduct returns the warehouse totals of a product
func (r *GormWarehouseStockRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]stock.WarehouseStock, error) {
	var rows []models.WarehouseStockModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("warehouse_id").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find warehouse stock of product %s: %w", productID, err)
	}
	result := make([]stock.WarehouseStock, len(rows))
	for i := range rows {
		result[i] = rows[i].ToDomain()
	}
	return result, nil
}

// GormStockMovementRepository implements the append-only StockMovementRepository
type GormStockMovementRepository struct {
	db *gorm.DB
}

// NewGormStockMovementRepository creates a new GormStockMovementRepository
func NewGormStockMovementRepository(db *gorm.DB) *GormStockMovementRepository {
	return &GormStockMovementRepository{db: db}
}

// CreateBatch appends ledger rows
func (r *GormStockMovementRepository) CreateBatch(ctx context.Context, movements stock.StockMovements) error {
	if len(movements) == 0 {
		return nil
	}
	rows := make([]*models.StockMovementModel, len(movements))
	for i, mv := range movements {
		rows[i] = models.StockMovementModelFromDomain(mv)
	}
	if err := r.db.WithContext(ctx).CreateInBatches(rows, 200).Error; err != nil {
		return fmt.Errorf("append stock movements: %w", err)
	}
	return nil
}

// FindByProduct lists movements of a product, newest first by default
func (r *GormStockMovementRepository) FindByProduct(ctx context.Context, productID uuid.UUID, filter shared.Filter) ([]stock.StockMovement, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.StockMovementModel{}).Where("product_id = ?", productID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count stock movements: %w", err)
	}

	field := ValidateSortField(filter.OrderBy, MovementSortFields, "created_at")
	dir := ValidateSortOrder(filter.OrderDir)
	var rows []models.StockMovementModel
	if err := query.
		Order(fmt.Sprintf("%s %s, id %s", field, dir, dir)).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("find stock movements: %w", err)
	}

	result := make([]stock.StockMovement, 0, len(rows))
	for i := range rows {
		mv, err := rows[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *mv)
	}
	return result, total, nil
}

type locationSum struct {
	LocationType string
	LocationID   *uuid.UUID
	Total        int
}

// NetQuantityByLocation sums the ledger per real location
func (r *GormStockMovementRepository) NetQuantityByLocation(ctx context.Context, productID uuid.UUID) (map[stock.LocationReference]int, error) {
	var incoming, outgoing []locationSum
	if err := r.db.WithContext(ctx).Model(&models.StockMovementModel{}).
		Select("destination_type AS location_type, destination_id AS location_id, SUM(quantity) AS total").
		Where("product_id = ?", productID).
		Group("destination_type, destination_id").
		Scan(&incoming).Error; err != nil {
		return nil, fmt.Errorf("sum incoming movements: %w", err)
	}
	if err := r.db.WithContext(ctx).Model(&models.StockMovementModel{}).
		Select("source_type AS location_type, source_id AS location_id, SUM(quantity) AS total").
		Where("product_id = ?", productID).
		Group("source_type, source_id").
		Scan(&outgoing).Error; err != nil {
		return nil, fmt.Errorf("sum outgoing movements: %w", err)
	}

	net := make(map[stock.LocationReference]int)
	add := func(sums []locationSum, sign int) error {
		for _, s := range sums {
			if stock.LocationType(s.LocationType).IsSpecial() {
				continue
			}
			var id uuid.UUID
			if s.LocationID != nil {
				id = *s.LocationID
			}
			loc, err := stock.NewLocationReference(stock.LocationType(s.LocationType), id)
			if err != nil {
				return err
			}
			net[loc] += sign * s.Total
		}
		return nil
	}
	if err := add(incoming, 1); err != nil {
		return nil, err
	}
	if err := add(outgoing, -1); err != nil {
		return nil, err
	}
	return net, nil
}

// notFound translates gorm's not found into the shared sentinel with entity context
func notFound(err error, entity string, key any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", entity, key, shared.ErrNotFound)
	}
	return fmt.Errorf("find %s %v: %w", entity, key, err)
}

// missingIDs returns the ids absent from found, in input order without duplicates
func missingIDs(ids []uuid.UUID, found []uuid.UUID) []uuid.UUID {
	present := make(map[uuid.UUID]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	missing := make([]uuid.UUID, 0)
	for _, id := range ids {
		if _, ok := present[id]; ok {
			continue
		}
		present[id] = struct{}{}
		missing = append(missing, id)
	}
	return missing
}

// sortedUnique returns ids deduplicated and sorted, so IN lists are stable
func sortedUnique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

var (
	_ stock.StockRepository          = (*GormStockRepository)(nil)
	_ stock.WarehouseStockRepository = (*GormWarehouseStockRepository)(nil)
	_ stock.StockMovementRepository  = (*GormStockMovementRepository)(nil)
)
