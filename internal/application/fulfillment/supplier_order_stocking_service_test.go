package fulfillment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/stockengine/internal/application/fulfillment"
	"github.com/erp/stockengine/internal/domain/order"
	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
)

func TestSupplierOrderStockingService(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*env, *stock.Warehouse, *stock.Product, *order.SupplierOrder) {
		e := newEnv(t)
		w := e.fx.Warehouse("WH-1", true)
		p := e.fx.Product("SW-1")
		so := e.fx.SupplierOrder("PO-1", &w.ID, decimal.RequireFromString("2.50"), pq(p.ID, 10))
		return e, w, p, so
	}

	t.Run("confirm books incoming stock", func(t *testing.T) {
		e, _, p, so := setup(t)

		confirmed, err := e.suppliers.ConfirmSupplierOrder(ctx, fulfillment.ConfirmSupplierOrderRequest{SupplierOrderID: so.ID})
		require.NoError(t, err)
		assert.Equal(t, order.SupplierOrderStateConfirmed, confirmed.State)
		assert.Equal(t, 10, e.fx.Quantity(p.ID, so.Location()))
		assert.Contains(t, e.published.HandledTypes(), order.EventTypeSupplierOrderConfirmed)

		_, err = e.suppliers.ConfirmSupplierOrder(ctx, fulfillment.ConfirmSupplierOrderRequest{SupplierOrderID: so.ID})
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.Equal(t, 10, e.fx.Quantity(p.ID, so.Location()))
	})

	t.Run("partial and final delivery", func(t *testing.T) {
		e, w, p, so := setup(t)
		_, err := e.suppliers.ConfirmSupplierOrder(ctx, fulfillment.ConfirmSupplierOrderRequest{SupplierOrderID: so.ID})
		require.NoError(t, err)
		e.published.Reset()

		result, err := e.suppliers.StockSupplierOrder(ctx, fulfillment.StockSupplierOrderRequest{
			SupplierOrderID: so.ID,
			Products:        stock.ProductQuantities{pq(p.ID, 4)},
		})
		require.NoError(t, err)
		assert.Equal(t, order.SupplierOrderStatePartiallyDelivered, result.SupplierOrder.State)
		assert.Equal(t, 6, e.fx.Quantity(p.ID, so.Location()))
		assert.Equal(t, 4, e.fx.Quantity(p.ID, w.Location()))

		var stocked *order.SupplierOrderStockedEvent
		for _, ev := range e.published.Handled() {
			if s, ok := ev.(*order.SupplierOrderStockedEvent); ok {
				stocked = s
			}
		}
		require.NotNil(t, stocked)
		assert.True(t, decimal.RequireFromString("10").Equal(stocked.ReceivedValue))

		result, err = e.suppliers.StockSupplierOrder(ctx, fulfillment.StockSupplierOrderRequest{
			SupplierOrderID: so.ID,
			Products:        stock.ProductQuantities{pq(p.ID, 6)},
		})
		require.NoError(t, err)
		assert.Equal(t, order.SupplierOrderStateDelivered, result.SupplierOrder.State)
		assert.Equal(t, 0, e.fx.Quantity(p.ID, so.Location()))
		assert.Equal(t, 10, e.fx.WarehouseQuantity(p.ID, w.ID))
		assert.Equal(t, order.SupplierOrderStateDelivered, e.supplierOrder(t, so.ID).State)
	})

	t.Run("over-delivery is rejected", func(t *testing.T) {
		e, _, p, so := setup(t)
		_, err := e.suppliers.ConfirmSupplierOrder(ctx, fulfillment.ConfirmSupplierOrderRequest{SupplierOrderID: so.ID})
		require.NoError(t, err)

		_, err = e.suppliers.StockSupplierOrder(ctx, fulfillment.StockSupplierOrderRequest{
			SupplierOrderID: so.ID,
			Products:        stock.ProductQuantities{pq(p.ID, 11)},
		})
		var qtyErr *stock.InvalidQuantityError
		require.True(t, errors.As(err, &qtyErr))
		assert.Equal(t, []stock.QuantityViolation{{ProductID: p.ID, Requested: 11, Allowed: 10}}, qtyErr.Violations)
		assert.Equal(t, 10, e.fx.Quantity(p.ID, so.Location()))
	})

	t.Run("unconfirmed orders cannot receive goods", func(t *testing.T) {
		e, _, p, so := setup(t)

		_, err := e.suppliers.StockSupplierOrder(ctx, fulfillment.StockSupplierOrderRequest{
			SupplierOrderID: so.ID,
			Products:        stock.ProductQuantities{pq(p.ID, 1)},
		})
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

func TestIncomingStockHandler(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	w := e.fx.Warehouse("WH-1", true)
	p := e.fx.Product("SW-1")
	so1 := e.fx.SupplierOrder("PO-1", &w.ID, decimal.NewFromInt(1), pq(p.ID, 10))
	so2 := e.fx.SupplierOrder("PO-2", &w.ID, decimal.NewFromInt(1), pq(p.ID, 5))

	assert.ElementsMatch(t, []string{order.EventTypeSupplierOrderConfirmed, order.EventTypeSupplierOrderStocked}, e.incoming.EventTypes())

	for _, so := range []*order.SupplierOrder{so1, so2} {
		_, err := e.suppliers.ConfirmSupplierOrder(ctx, fulfillment.ConfirmSupplierOrderRequest{SupplierOrderID: so.ID})
		require.NoError(t, err)
	}
	_, err := e.suppliers.StockSupplierOrder(ctx, fulfillment.StockSupplierOrderRequest{
		SupplierOrderID: so1.ID,
		Products:        stock.ProductQuantities{pq(p.ID, 4)},
	})
	require.NoError(t, err)

	for _, ev := range e.published.Handled() {
		require.NoError(t, e.incoming.Handle(ctx, ev))
	}
	assert.Equal(t, 11, e.product(t, p.ID).IncomingStock)

	// replaying is harmless since the value is recomputed
	for _, ev := range e.published.Handled() {
		require.NoError(t, e.incoming.Handle(ctx, ev))
	}
	assert.Equal(t, 11, e.product(t, p.ID).IncomingStock)
}
