package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/stockengine/internal/domain/order"
	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/erp/stockengine/internal/testutil"
)

func TestGormOrderRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	fx := testutil.NewFixture(t, db)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	p1 := fx.Product("SW-1")
	p2 := fx.Product("SW-2")

	o, err := order.NewOrder("10001")
	require.NoError(t, err)
	_, err = o.AddLineItem(p1.ID, 2)
	require.NoError(t, err)
	_, err = o.AddLineItem(p2.ID, 1)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, o))

	found, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "10001", found.OrderNumber)
	require.Len(t, found.LineItems, 2)
	assert.Equal(t, p1.ID, found.LineItems[0].ProductID)
	assert.Equal(t, p2.ID, found.LineItems[1].ProductID)

	require.NoError(t, found.Ship())
	require.NoError(t, repo.Save(ctx, found))

	locked, err := repo.LockByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.DeliveryStateShipped, locked.DeliveryState)
	require.NotNil(t, locked.ShippedAt)
	assert.WithinDuration(t, time.Now(), *locked.ShippedAt, time.Minute)
	assert.Nil(t, locked.ReturnedAt)
	assert.Len(t, locked.LineItems, 2)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormReturnOrderRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	fx := testutil.NewFixture(t, db)
	repo := NewGormReturnOrderRepository(db)
	ctx := context.Background()

	p := fx.Product("SW-1")
	o := fx.Order("10001", stock.NewProductQuantity(p.ID, 3))

	number, err := repo.NextNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "R000001", number)

	ro, err := order.NewReturnOrder(number, o.ID)
	require.NoError(t, err)
	require.NoError(t, ro.AddLineItem(p.ID, 2, "damaged"))
	require.NoError(t, repo.Save(ctx, ro))

	next, err := repo.NextNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "R000002", next)

	byOrder, err := repo.FindByOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, byOrder, 1)
	require.Len(t, byOrder[0].LineItems, 1)
	assert.Equal(t, "damaged", byOrder[0].LineItems[0].Reason)

	locked, err := repo.LockByID(ctx, ro.ID)
	require.NoError(t, err)
	require.NoError(t, locked.Complete())
	require.NoError(t, repo.Save(ctx, locked))

	found, err := repo.FindByID(ctx, ro.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ReturnOrderStateCompleted, found.State)
	assert.NotNil(t, found.CompletedAt)
}

func TestGormSupplierOrderRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	fx := testutil.NewFixture(t, db)
	repo := NewGormSupplierOrderRepository(db)
	ctx := context.Background()

	w := fx.Warehouse("WH-1", true)
	p := fx.Product("SW-1")
	warehouseID := w.ID
	so := fx.SupplierOrder("S-1", &warehouseID, decimal.RequireFromString("2.50"), stock.NewProductQuantity(p.ID, 4))

	found, err := repo.FindByID(ctx, so.ID)
	require.NoError(t, err)
	require.Len(t, found.LineItems, 1)
	assert.True(t, decimal.RequireFromString("2.50").Equal(found.LineItems[0].UnitPrice))
	require.NotNil(t, found.WarehouseID)
	assert.Equal(t, w.ID, *found.WarehouseID)

	require.NoError(t, found.Confirm())
	require.NoError(t, repo.Save(ctx, found))

	locked, err := repo.LockByID(ctx, so.ID)
	require.NoError(t, err)
	assert.Equal(t, order.SupplierOrderStateConfirmed, locked.State)
	require.NotNil(t, locked.ConfirmedAt)
	assert.WithinDuration(t, time.Now(), *locked.ConfirmedAt, time.Minute)
	assert.Nil(t, locked.DeliveredAt)

	require.NoError(t, locked.RecordDelivery(stock.ProductQuantities{stock.NewProductQuantity(p.ID, 4)}, 0))
	require.NoError(t, repo.Save(ctx, locked))

	delivered, err := repo.FindByID(ctx, so.ID)
	require.NoError(t, err)
	assert.Equal(t, order.SupplierOrderStateDelivered, delivered.State)
	require.NotNil(t, delivered.DeliveredAt)
	assert.WithinDuration(t, *delivered.ConfirmedAt, *delivered.DeliveredAt, time.Minute)
}
