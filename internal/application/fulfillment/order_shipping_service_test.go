package fulfillment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/stockengine/internal/application/fulfillment"
	"github.com/erp/stockengine/internal/domain/order"
	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
)

func TestOrderShippingService_ShipOrderCompletely(t *testing.T) {
	ctx := context.Background()

	t.Run("picks from bins and ships", func(t *testing.T) {
		e := newEnv(t)
		w := e.fx.Warehouse("WH-1", true)
		a1 := e.fx.BinLocation(w, "A-01")
		b1 := e.fx.BinLocation(w, "B-01")
		p := e.fx.Product("SW-1")
		e.fx.BinStock(p, a1, 2)
		e.fx.BinStock(p, b1, 5)
		o := e.fx.Order("10001", pq(p.ID, 4))

		result, err := e.shipping.ShipOrderCompletely(ctx, fulfillment.ShipOrderRequest{OrderID: o.ID})
		require.NoError(t, err)

		assert.Equal(t, order.DeliveryStateShipped, result.DeliveryState)
		assert.Equal(t, 2, result.Movements)
		assert.Equal(t, 0, e.fx.Quantity(p.ID, a1.Location()))
		assert.Equal(t, 3, e.fx.Quantity(p.ID, b1.Location()))
		assert.Equal(t, 4, e.fx.Quantity(p.ID, o.Location()))
		assert.Equal(t, 3, e.fx.WarehouseQuantity(p.ID, w.ID))
		assert.Equal(t, order.DeliveryStateShipped, e.order(t, o.ID).DeliveryState)

		assert.Equal(t, []string{stock.EventTypeStockMoved, stock.EventTypeStockMoved, order.EventTypeOrderShipped},
			e.published.HandledTypes())
	})

	t.Run("only ships what is not at the order yet", func(t *testing.T) {
		e := newEnv(t)
		w := e.fx.Warehouse("WH-1", true)
		bin := e.fx.BinLocation(w, "A-01")
		p := e.fx.Product("SW-1")
		e.fx.BinStock(p, bin, 10)
		o := e.fx.Order("10001", pq(p.ID, 4))
		e.fx.LocationStock(p.ID, o.Location(), 3)

		result, err := e.shipping.ShipOrderCompletely(ctx, fulfillment.ShipOrderRequest{OrderID: o.ID})
		require.NoError(t, err)

		assert.Equal(t, stock.ProductQuantities{pq(p.ID, 1)}, result.Shipped)
		assert.Equal(t, 9, e.fx.Quantity(p.ID, bin.Location()))
		assert.Equal(t, 4, e.fx.Quantity(p.ID, o.Location()))
	})

	t.Run("shortage moves nothing", func(t *testing.T) {
		e := newEnv(t)
		w := e.fx.Warehouse("WH-1", true)
		bin := e.fx.BinLocation(w, "A-01")
		p1 := e.fx.Product("SW-1")
		p2 := e.fx.Product("SW-2")
		e.fx.BinStock(p1, bin, 5)
		e.fx.BinStock(p2, bin, 1)
		o := e.fx.Order("10001", pq(p1.ID, 2), pq(p2.ID, 3))

		_, err := e.shipping.ShipOrderCompletely(ctx, fulfillment.ShipOrderRequest{OrderID: o.ID})
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)

		var shortErr *stock.NotEnoughStockError
		require.True(t, errors.As(err, &shortErr))
		assert.Equal(t, stock.ProductQuantities{pq(p2.ID, 2)}, shortErr.Shortage)

		assert.Equal(t, 5, e.fx.Quantity(p1.ID, bin.Location()))
		assert.Equal(t, 0, e.fx.Quantity(p1.ID, o.Location()))
		assert.Equal(t, int64(1), e.fx.MovementCount(p1.ID))
		assert.Equal(t, order.DeliveryStateOpen, e.order(t, o.ID).DeliveryState)
		assert.Zero(t, e.published.HandledCount())
	})

	t.Run("restricted to candidate warehouses", func(t *testing.T) {
		e := newEnv(t)
		main := e.fx.Warehouse("WH-1", true)
		other := e.fx.Warehouse("WH-2", false)
		p := e.fx.Product("SW-1")
		e.fx.WarehouseStock(p, main, 5)
		e.fx.WarehouseStock(p, other, 5)
		o := e.fx.Order("10001", pq(p.ID, 3))

		_, err := e.shipping.ShipOrderCompletely(ctx, fulfillment.ShipOrderRequest{OrderID: o.ID, WarehouseIDs: []uuid.UUID{other.ID}})
		require.NoError(t, err)
		assert.Equal(t, 5, e.fx.WarehouseQuantity(p.ID, main.ID))
		assert.Equal(t, 2, e.fx.WarehouseQuantity(p.ID, other.ID))
	})

	t.Run("rejects shipped orders", func(t *testing.T) {
		e := newEnv(t)
		w := e.fx.Warehouse("WH-1", true)
		p := e.fx.Product("SW-1")
		e.fx.WarehouseStock(p, w, 5)
		o := e.fx.Order("10001", pq(p.ID, 1))

		_, err := e.shipping.ShipOrderCompletely(ctx, fulfillment.ShipOrderRequest{OrderID: o.ID})
		require.NoError(t, err)
		_, err = e.shipping.ShipOrderCompletely(ctx, fulfillment.ShipOrderRequest{OrderID: o.ID})
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.Equal(t, 4, e.fx.WarehouseQuantity(p.ID, w.ID))
	})

	t.Run("rejects draft versions", func(t *testing.T) {
		e := newEnv(t)
		draft := uuid.New()
		_, err := e.shipping.ShipOrderCompletely(ctx, fulfillment.ShipOrderRequest{OrderID: uuid.New(), VersionID: &draft})
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "NOT_LIVE_VERSION", domainErr.Code)
	})

	t.Run("invalid request", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.shipping.ShipOrderCompletely(ctx, fulfillment.ShipOrderRequest{})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("unknown order", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.shipping.ShipOrderCompletely(ctx, fulfillment.ShipOrderRequest{OrderID: uuid.New()})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestOrderShippingService_ShipProducts(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*env, *stock.Product, *stock.Product, *order.Order) {
		e := newEnv(t)
		w := e.fx.Warehouse("WH-1", true)
		p1 := e.fx.Product("SW-1")
		p2 := e.fx.Product("SW-2")
		e.fx.WarehouseStock(p1, w, 10)
		e.fx.WarehouseStock(p2, w, 10)
		o := e.fx.Order("10001", pq(p1.ID, 3), pq(p2.ID, 1))
		return e, p1, p2, o
	}

	t.Run("partial shipment keeps the delivery open", func(t *testing.T) {
		e, p1, p2, o := setup(t)

		result, err := e.shipping.ShipProducts(ctx, fulfillment.ShipProductsRequest{
			OrderID:  o.ID,
			Products: stock.ProductQuantities{pq(p1.ID, 2)},
		})
		require.NoError(t, err)
		assert.Equal(t, order.DeliveryStateOpen, result.DeliveryState)
		assert.Equal(t, 2, e.fx.Quantity(p1.ID, o.Location()))

		result, err = e.shipping.ShipProducts(ctx, fulfillment.ShipProductsRequest{
			OrderID:  o.ID,
			Products: stock.ProductQuantities{pq(p1.ID, 1), pq(p2.ID, 1)},
		})
		require.NoError(t, err)
		assert.Equal(t, order.DeliveryStateShipped, result.DeliveryState)
		assert.Equal(t, order.DeliveryStateShipped, e.order(t, o.ID).DeliveryState)
	})

	t.Run("reports every product over its open quantity", func(t *testing.T) {
		e, p1, _, o := setup(t)
		foreign := e.fx.Product("SW-3")

		_, err := e.shipping.ShipProducts(ctx, fulfillment.ShipProductsRequest{
			OrderID:  o.ID,
			Products: stock.ProductQuantities{pq(p1.ID, 4), pq(foreign.ID, 1)},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		var qtyErr *stock.InvalidQuantityError
		require.True(t, errors.As(err, &qtyErr))
		assert.ElementsMatch(t, []stock.QuantityViolation{
			{ProductID: p1.ID, Requested: 4, Allowed: 3},
			{ProductID: foreign.ID, Requested: 1, Allowed: 0},
		}, qtyErr.Violations)
		assert.Equal(t, 0, e.fx.Quantity(p1.ID, o.Location()))
	})

	t.Run("duplicate lines are merged", func(t *testing.T) {
		e, p1, _, o := setup(t)

		_, err := e.shipping.ShipProducts(ctx, fulfillment.ShipProductsRequest{
			OrderID:  o.ID,
			Products: stock.ProductQuantities{pq(p1.ID, 2), pq(p1.ID, 2)},
		})
		var qtyErr *stock.InvalidQuantityError
		require.True(t, errors.As(err, &qtyErr))
		assert.Equal(t, 4, qtyErr.Violations[0].Requested)
	})

	t.Run("non-positive quantities", func(t *testing.T) {
		e, p1, _, o := setup(t)

		_, err := e.shipping.ShipProducts(ctx, fulfillment.ShipProductsRequest{
			OrderID:  o.ID,
			Products: stock.ProductQuantities{pq(p1.ID, 0)},
		})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}
