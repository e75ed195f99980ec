package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/stockengine/internal/domain/order"
	"github.com/erp/stockengine/internal/infrastructure/persistence/models"
)

func byPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}

// saveAggregate writes the root row, then upserts its line items. Line items
// are never removed by the domain.
func saveAggregate(ctx context.Context, db *gorm.DB, root any, items any, hasItems bool) error {
	tx := db.WithContext(ctx)
	if err := tx.Omit(clause.Associations).Save(root).Error; err != nil {
		return err
	}
	if !hasItems {
		return nil
	}
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(items).Error
}

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID returns the order with its line items
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// LockByID returns the order and holds its row lock until commit
func (r *GormOrderRepository) LockByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormOrderRepository) find(db *gorm.DB, id uuid.UUID) (*order.Order, error) {
	var m models.OrderModel
	if err := db.Preload("LineItems", byPosition).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "order", id)
	}
	return m.ToDomain(), nil
}

// Save upserts the order and its line items
func (r *GormOrderRepository) Save(ctx context.Context, o *order.Order) error {
	m := models.OrderModelFromDomain(o)
	if err := saveAggregate(ctx, r.db, m, &m.LineItems, len(m.LineItems) > 0); err != nil {
		return fmt.Errorf("save order %s: %w", o.OrderNumber, err)
	}
	return nil
}

// GormReturnOrderRepository implements ReturnOrderRepository using GORM
type GormReturnOrderRepository struct {
	db *gorm.DB
}

// NewGormReturnOrderRepository creates a new GormReturnOrderRepository
func NewGormReturnOrderRepository(db *gorm.DB) *GormReturnOrderRepository {
	return &GormReturnOrderRepository{db: db}
}

// FindByID returns the return order with its line items
func (r *GormReturnOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.ReturnOrder, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// LockByID returns the return order and holds its row lock until commit
func (r *GormReturnOrderRepository) LockByID(ctx context.Context, id uuid.UUID) (*order.ReturnOrder, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormReturnOrderRepository) find(db *gorm.DB, id uuid.UUID) (*order.ReturnOrder, error) {
	var m models.ReturnOrderModel
	if err := db.Preload("LineItems", byPosition).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "return order", id)
	}
	return m.ToDomain(), nil
}

// FindByOrder returns the return orders of an order, oldest first
func (r *GormReturnOrderRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]order.ReturnOrder, error) {
	var rows []models.ReturnOrderModel
	if err := r.db.WithContext(ctx).
		Preload("LineItems", byPosition).
		Where("order_id = ?", orderID).
		Order("created_at, number").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find return orders of order %s: %w", orderID, err)
	}
	result := make([]order.ReturnOrder, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, nil
}

// NextNumber draws the next return order number. PostgreSQL uses a sequence;
// other dialects count existing rows, which is only safe without concurrency.
func (r *GormReturnOrderRepository) NextNumber(ctx context.Context) (string, error) {
	db := r.db.WithContext(ctx)
	var n int64
	if db.Dialector.Name() == "postgres" {
		if err := db.Raw("SELECT nextval('return_order_number_seq')").Scan(&n).Error; err != nil {
			return "", fmt.Errorf("next return order number: %w", err)
		}
	} else {
		if err := db.Model(&models.ReturnOrderModel{}).Count(&n).Error; err != nil {
			return "", fmt.Errorf("next return order number: %w", err)
		}
		n++
	}
	return fmt.Sprintf("R%06d", n), nil
}

// Save upserts the return order and its line items
func (r *GormReturnOrderRepository) Save(ctx context.Context, ro *order.ReturnOrder) error {
	m := models.ReturnOrderModelFromDomain(ro)
	if err := saveAggregate(ctx, r.db, m, &m.LineItems, len(m.LineItems) > 0); err != nil {
		return fmt.Errorf("save return order %s: %w", ro.Number, err)
	}
	return nil
}

// GormSupplierOrderRepository implements SupplierOrderRepository using GORM
type GormSupplierOrderRepository struct {
	db *gorm.DB
}

// NewGormSupplierOrderRepository creates a new GormSupplierOrderRepository
func NewGormSupplierOrderRepository(db *gorm.DB) *GormSupplierOrderRepository {
	return &GormSupplierOrderRepository{db: db}
}

// FindByID returns the supplier order with its line items
func (r *GormSupplierOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.SupplierOrder, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// LockByID returns the supplier order and holds its row lock until commit
func (r *GormSupplierOrderRepository) LockByID(ctx context.Context, id uuid.UUID) (*order.SupplierOrder, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormSupplierOrderRepository) find(db *gorm.DB, id uuid.UUID) (*order.SupplierOrder, error) {
	var m models.SupplierOrderModel
	if err := db.Preload("LineItems", byPosition).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "supplier order", id)
	}
	return m.ToDomain(), nil
}

// Save upserts the supplier order and its line items
func (r *GormSupplierOrderRepository) Save(ctx context.Context, so *order.SupplierOrder) error {
	m := models.SupplierOrderModelFromDomain(so)
	if err := saveAggregate(ctx, r.db, m, &m.LineItems, len(m.LineItems) > 0); err != nil {
		return fmt.Errorf("save supplier order %s: %w", so.Number, err)
	}
	return nil
}

var (
	_ order.OrderRepository         = (*GormOrderRepository)(nil)
	_ order.ReturnOrderRepository   = (*GormReturnOrderRepository)(nil)
	_ order.SupplierOrderRepository = (*GormSupplierOrderRepository)(nil)
)
