package stock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	appstock "github.com/erp/stockengine/internal/application/stock"
	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/erp/stockengine/internal/infrastructure/persistence"
	"github.com/erp/stockengine/internal/testutil"
)

type movementEnv struct {
	db    *gorm.DB
	fx    *testutil.Fixture
	scope *persistence.GormTransactionScope
	svc   *appstock.StockMovementService
}

func newMovementEnv(t *testing.T) *movementEnv {
	db := testutil.NewSQLiteDB(t)
	return &movementEnv{
		db:    db,
		fx:    testutil.NewFixture(t, db),
		scope: persistence.NewGormTransactionScope(db),
		svc:   appstock.NewStockMovementService(nil),
	}
}

func (e *movementEnv) move(ctx context.Context, movements ...*stock.StockMovement) ([]shared.DomainEvent, error) {
	var events []shared.DomainEvent
	err := e.scope.Execute(ctx, func(repos appstock.TransactionalRepositories) error {
		var err error
		events, err = e.svc.MoveStock(ctx, repos, movements)
		return err
	})
	return events, err
}

func mustMove(t *testing.T, productID uuid.UUID, qty int, from, to stock.LocationReference) *stock.StockMovement {
	t.Helper()
	m, err := stock.NewStockMovement(productID, qty, from, to)
	require.NoError(t, err)
	return m
}

func TestStockMovementService_MoveStock(t *testing.T) {
	ctx := context.Background()

	t.Run("books aggregates, warehouse totals and ledger", func(t *testing.T) {
		env := newMovementEnv(t)
		w := env.fx.Warehouse("WH-1", true)
		bin := env.fx.BinLocation(w, "A-01")
		p := env.fx.Product("SW-1")

		events, err := env.move(ctx, mustMove(t, p.ID, 5, stock.ImportLocation(), bin.Location()))
		require.NoError(t, err)

		assert.Equal(t, 5, env.fx.Quantity(p.ID, bin.Location()))
		assert.Equal(t, 5, env.fx.WarehouseQuantity(p.ID, w.ID))
		assert.Equal(t, int64(1), env.fx.MovementCount(p.ID))
		require.Len(t, events, 1)
		assert.Equal(t, stock.EventTypeStockMoved, events[0].EventType())
	})

	t.Run("moves between warehouses keep both totals", func(t *testing.T) {
		env := newMovementEnv(t)
		w1 := env.fx.Warehouse("WH-1", true)
		w2 := env.fx.Warehouse("WH-2", false)
		bin := env.fx.BinLocation(w1, "A-01")
		p := env.fx.Product("SW-1")
		env.fx.BinStock(p, bin, 4)

		_, err := env.move(ctx, mustMove(t, p.ID, 3, bin.Location(), w2.Location()))
		require.NoError(t, err)

		assert.Equal(t, 1, env.fx.WarehouseQuantity(p.ID, w1.ID))
		assert.Equal(t, 3, env.fx.WarehouseQuantity(p.ID, w2.ID))
		assert.Equal(t, 3, env.fx.Quantity(p.ID, w2.Location()))
	})

	t.Run("validates the net change of the batch", func(t *testing.T) {
		env := newMovementEnv(t)
		w := env.fx.Warehouse("WH-1", true)
		bin := env.fx.BinLocation(w, "A-01")
		p := env.fx.Product("SW-1")
		o := env.fx.Order("10001", stock.NewProductQuantity(p.ID, 3))

		_, err := env.move(ctx,
			mustMove(t, p.ID, 3, bin.Location(), o.Location()),
			mustMove(t, p.ID, 5, stock.ImportLocation(), bin.Location()),
		)
		require.NoError(t, err)
		assert.Equal(t, 2, env.fx.Quantity(p.ID, bin.Location()))
		assert.Equal(t, 3, env.fx.Quantity(p.ID, o.Location()))
	})

	t.Run("rejects a batch that drives a location negative", func(t *testing.T) {
		env := newMovementEnv(t)
		w := env.fx.Warehouse("WH-1", true)
		bin := env.fx.BinLocation(w, "A-01")
		p := env.fx.Product("SW-1")
		o := env.fx.Order("10001", stock.NewProductQuantity(p.ID, 3))
		env.fx.BinStock(p, bin, 2)

		_, err := env.move(ctx,
			mustMove(t, p.ID, 1, stock.ImportLocation(), w.Location()),
			mustMove(t, p.ID, 3, bin.Location(), o.Location()),
		)

		var validation *stock.ValidationError
		require.True(t, errors.As(err, &validation))
		assert.Equal(t, bin.Location(), validation.Location)
		assert.Equal(t, 2, validation.CurrentQuantity)
		assert.Equal(t, -3, validation.Change)

		assert.Equal(t, 2, env.fx.Quantity(p.ID, bin.Location()))
		assert.Equal(t, 0, env.fx.Quantity(p.ID, w.Location()))
		assert.Equal(t, int64(1), env.fx.MovementCount(p.ID))
	})

	t.Run("special locations are unbounded", func(t *testing.T) {
		env := newMovementEnv(t)
		p := env.fx.Product("SW-1")

		_, err := env.move(ctx, mustMove(t, p.ID, 10, stock.UnknownLocation(), stock.ImportLocation()))
		require.NoError(t, err)
		assert.Equal(t, int64(1), env.fx.MovementCount(p.ID))
	})

	t.Run("unknown product", func(t *testing.T) {
		env := newMovementEnv(t)
		w := env.fx.Warehouse("WH-1", true)

		_, err := env.move(ctx, mustMove(t, uuid.New(), 1, stock.ImportLocation(), w.Location()))
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("unknown bin location", func(t *testing.T) {
		env := newMovementEnv(t)
		p := env.fx.Product("SW-1")

		_, err := env.move(ctx, mustMove(t, p.ID, 1, stock.ImportLocation(), stock.BinLocationLocation(uuid.New())))
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("unknown warehouse", func(t *testing.T) {
		env := newMovementEnv(t)
		p := env.fx.Product("SW-1")

		_, err := env.move(ctx, mustMove(t, p.ID, 1, stock.ImportLocation(), stock.WarehouseLocation(uuid.New())))
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("rejects movements without a positive quantity", func(t *testing.T) {
		env := newMovementEnv(t)
		p := env.fx.Product("SW-1")

		_, err := env.move(ctx, &stock.StockMovement{ProductID: p.ID, Source: stock.ImportLocation(), Destination: stock.UnknownLocation()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no positive quantity")
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		env := newMovementEnv(t)
		events, err := env.move(ctx)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}
