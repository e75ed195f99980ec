package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/erp/stockengine/internal/infrastructure/persistence/models"
)

// GormWarehouseRepository implements WarehouseRepository using GORM
type GormWarehouseRepository struct {
	db *gorm.DB
}

// NewGormWarehouseRepository creates a new GormWarehouseRepository
func NewGormWarehouseRepository(db *gorm.DB) *GormWarehouseRepository {
	return &GormWarehouseRepository{db: db}
}

// FindByID finds a warehouse by its ID
func (r *GormWarehouseRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.Warehouse, error) {
	var m models.WarehouseModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "warehouse", id)
	}
	return m.ToDomain(), nil
}

// FindByCode finds a warehouse by its code
func (r *GormWarehouseRepository) FindByCode(ctx context.Context, code string) (*stock.Warehouse, error) {
	var m models.WarehouseModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&m).Error; err != nil {
		return nil, notFound(err, "warehouse", code)
	}
	return m.ToDomain(), nil
}

// FindDefault returns the default warehouse
func (r *GormWarehouseRepository) FindDefault(ctx context.Context) (*stock.Warehouse, error) {
	var m models.WarehouseModel
	if err := r.db.WithContext(ctx).Where("is_default = ?", true).Order("code").First(&m).Error; err != nil {
		return nil, notFound(err, "warehouse", "default")
	}
	return m.ToDomain(), nil
}

// FindAll returns all warehouses, default first, then by code
func (r *GormWarehouseRepository) FindAll(ctx context.Context) ([]stock.Warehouse, error) {
	var rows []models.WarehouseModel
	if err := r.db.WithContext(ctx).Order("is_default DESC, code ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find warehouses: %w", err)
	}
	result := make([]stock.Warehouse, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, nil
}

// FindMissing returns the ids that are not warehouses
func (r *GormWarehouseRepository) FindMissing(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	return findMissing(ctx, r.db, &models.WarehouseModel{}, ids)
}

// Save upserts a warehouse. Marking a warehouse as default clears the flag
// on all others.
func (r *GormWarehouseRepository) Save(ctx context.Context, warehouse *stock.Warehouse) error {
	db := r.db.WithContext(ctx)
	if warehouse.IsDefault {
		if err := db.Model(&models.WarehouseModel{}).
			Where("is_default = ? AND id <> ?", true, warehouse.ID).
			Updates(map[string]any{"is_default": false, "updated_at": time.Now()}).Error; err != nil {
			return fmt.Errorf("clear default warehouse: %w", err)
		}
	}
	if err := db.Save(models.WarehouseModelFromDomain(warehouse)).Error; err != nil {
		return fmt.Errorf("save warehouse %s: %w", warehouse.Code, err)
	}
	return nil
}

// GormBinLocationRepository implements BinLocationRepository using GORM
type GormBinLocationRepository struct {
	db *gorm.DB
}

// NewGormBinLocationRepository creates a new GormBinLocationRepository
func NewGormBinLocationRepository(db *gorm.DB) *GormBinLocationRepository {
	return &GormBinLocationRepository{db: db}
}

// FindByID finds a bin location by its ID
func (r *GormBinLocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.BinLocation, error) {
	var m models.BinLocationModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "bin location", id)
	}
	return m.ToDomain(), nil
}

// FindByIDs returns the existing bin locations keyed by ID
func (r *GormBinLocationRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*stock.BinLocation, error) {
	result := make(map[uuid.UUID]*stock.BinLocation, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var rows []models.BinLocationModel
	if err := r.db.WithContext(ctx).Where("id IN ?", sortedUnique(ids)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find bin locations: %w", err)
	}
	for i := range rows {
		result[rows[i].ID] = rows[i].ToDomain()
	}
	return result, nil
}

// FindByWarehouseAndCode finds a bin location by warehouse and code
func (r *GormBinLocationRepository) FindByWarehouseAndCode(ctx context.Context, warehouseID uuid.UUID, code string) (*stock.BinLocation, error) {
	var m models.BinLocationModel
	if err := r.db.WithContext(ctx).
		Where("warehouse_id = ? AND code = ?", warehouseID, code).
		First(&m).Error; err != nil {
		return nil, notFound(err, "bin location", code)
	}
	return m.ToDomain(), nil
}

// Save upserts a bin location
func (r *GormBinLocationRepository) Save(ctx context.Context, bin *stock.BinLocation) error {
	if err := r.db.WithContext(ctx).Save(models.BinLocationModelFromDomain(bin)).Error; err != nil {
		return fmt.Errorf("save bin location %s: %w", bin.Code, err)
	}
	return nil
}

// GormProductRepository implements ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.Product, error) {
	var m models.ProductModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "product", id)
	}
	return m.ToDomain(), nil
}

// FindByProductNumber finds a product by its product number
func (r *GormProductRepository) FindByProductNumber(ctx context.Context, productNumber string) (*stock.Product, error) {
	var m models.ProductModel
	if err := r.db.WithContext(ctx).Where("product_number = ?", productNumber).First(&m).Error; err != nil {
		return nil, notFound(err, "product", productNumber)
	}
	return m.ToDomain(), nil
}

// FindMissing returns the ids that are not products
func (r *GormProductRepository) FindMissing(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	return findMissing(ctx, r.db, &models.ProductModel{}, ids)
}

// Save upserts a product
func (r *GormProductRepository) Save(ctx context.Context, product *stock.Product) error {
	if err := r.db.WithContext(ctx).Save(models.ProductModelFromDomain(product)).Error; err != nil {
		return fmt.Errorf("save product %s: %w", product.ProductNumber, err)
	}
	return nil
}

// UpdateIncomingStock stores the recomputed incoming stock of a product
func (r *GormProductRepository) UpdateIncomingStock(ctx context.Context, productID uuid.UUID, incoming int) error {
	result := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Where("id = ?", productID).
		Updates(map[string]any{"incoming_stock": incoming, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("update incoming stock of product %s: %w", productID, result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "product", productID)
	}
	return nil
}

// GormProductWarehouseConfigurationRepository implements
// ProductWarehouseConfigurationRepository using GORM
type GormProductWarehouseConfigurationRepository struct {
	db *gorm.DB
}

// NewGormProductWarehouseConfigurationRepository creates a new repository
func NewGormProductWarehouseConfigurationRepository(db *gorm.DB) *GormProductWarehouseConfigurationRepository {
	return &GormProductWarehouseConfigurationRepository{db: db}
}

// FindByProductAndWarehouse returns the configuration or shared.ErrNotFound
func (r *GormProductWarehouseConfigurationRepository) FindByProductAndWarehouse(ctx context.Context, productID, warehouseID uuid.UUID) (*stock.ProductWarehouseConfiguration, error) {
	var m models.ProductWarehouseConfigurationModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND warehouse_id = ?", productID, warehouseID).
		First(&m).Error; err != nil {
		return nil, notFound(err, "product warehouse configuration", productID)
	}
	return m.ToDomain(), nil
}

// FindDefaultBinLocations returns product -> default bin location in the warehouse
func (r *GormProductWarehouseConfigurationRepository) FindDefaultBinLocations(ctx context.Context, warehouseID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	result := make(map[uuid.UUID]uuid.UUID, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}
	var rows []models.ProductWarehouseConfigurationModel
	if err := r.db.WithContext(ctx).
		Where("warehouse_id = ? AND product_id IN ? AND default_bin_location_id IS NOT NULL", warehouseID, sortedUnique(productIDs)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find default bin locations: %w", err)
	}
	for _, row := range rows {
		result[row.ProductID] = *row.DefaultBinLocationID
	}
	return result, nil
}

// Save upserts on (product, warehouse)
func (r *GormProductWarehouseConfigurationRepository) Save(ctx context.Context, cfg *stock.ProductWarehouseConfiguration) error {
	m := models.ProductWarehouseConfigurationModelFromDomain(cfg)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "warehouse_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"default_bin_location_id", "updated_at"}),
	}).Create(m).Error
	if err != nil {
		return fmt.Errorf("save product warehouse configuration: %w", err)
	}
	return nil
}

// findMissing selects the existing ids of a table and returns the others
func findMissing(ctx context.Context, db *gorm.DB, model any, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return []uuid.UUID{}, nil
	}
	var found []uuid.UUID
	if err := db.WithContext(ctx).Model(model).
		Where("id IN ?", sortedUnique(ids)).
		Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("check ids: %w", err)
	}
	return missingIDs(ids, found), nil
}

var (
	_ stock.WarehouseRepository                     = (*GormWarehouseRepository)(nil)
	_ stock.BinLocationRepository                   = (*GormBinLocationRepository)(nil)
	_ stock.ProductRepository                       = (*GormProductRepository)(nil)
	_ stock.ProductWarehouseConfigurationRepository = (*GormProductWarehouseConfigurationRepository)(nil)
)
