package stock_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appstock "github.com/erp/stockengine/internal/application/stock"
	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/erp/stockengine/internal/infrastructure/persistence"
	"github.com/erp/stockengine/internal/testutil"
)

func solve(t *testing.T, env *movementEnv, solver *appstock.PickingRequestSolver, quantities stock.ProductQuantities, warehouseIDs ...uuid.UUID) (*stock.PickingRequest, error) {
	t.Helper()
	req, err := stock.NewPickingRequest(quantities)
	require.NoError(t, err)
	err = env.scope.Execute(context.Background(), func(repos appstock.TransactionalRepositories) error {
		return solver.Solve(context.Background(), repos, req, warehouseIDs)
	})
	return req, err
}

func TestPickingRequestSolver_Solve(t *testing.T) {
	env := newMovementEnv(t)
	main := env.fx.Warehouse("WH-MAIN", true)
	other := env.fx.Warehouse("WH-OTHER", false)
	b2 := env.fx.BinLocation(main, "B-02")
	a1 := env.fx.BinLocation(main, "A-01")
	c1 := env.fx.BinLocation(other, "C-01")
	p := env.fx.Product("SW-1")

	env.fx.BinStock(p, b2, 2)
	env.fx.BinStock(p, a1, 1)
	env.fx.WarehouseStock(p, main, 4)
	env.fx.BinStock(p, c1, 10)

	t.Run("default warehouse first, bins by code, generic last", func(t *testing.T) {
		req, err := solve(t, env, appstock.NewPickingRequestSolver(), stock.ProductQuantities{stock.NewProductQuantity(p.ID, 6)})
		require.NoError(t, err)
		require.True(t, req.IsCompletelyPickable())

		picks := req.ProductPickingRequests()[0].PickLocations()
		require.Len(t, picks, 3)
		assert.Equal(t, a1.Location(), picks[0].Location)
		assert.Equal(t, 1, picks[0].Quantity)
		assert.Equal(t, b2.Location(), picks[1].Location)
		assert.Equal(t, 2, picks[1].Quantity)
		assert.Equal(t, main.Location(), picks[2].Location)
		assert.Equal(t, 3, picks[2].Quantity)
	})

	t.Run("candidate order is respected", func(t *testing.T) {
		req, err := solve(t, env, appstock.NewPickingRequestSolver(), stock.ProductQuantities{stock.NewProductQuantity(p.ID, 11)}, other.ID, main.ID)
		require.NoError(t, err)

		picks := req.ProductPickingRequests()[0].PickLocations()
		require.Len(t, picks, 2)
		assert.Equal(t, c1.Location(), picks[0].Location)
		assert.Equal(t, 10, picks[0].Quantity)
		assert.Equal(t, a1.Location(), picks[1].Location)
	})

	t.Run("generic locations can be excluded", func(t *testing.T) {
		solver := appstock.NewPickingRequestSolver(appstock.WithGenericLocations(false))
		req, err := solve(t, env, solver, stock.ProductQuantities{stock.NewProductQuantity(p.ID, 6)}, main.ID)
		require.NoError(t, err)

		assert.False(t, req.IsCompletelyPickable())
		assert.Equal(t, stock.ProductQuantities{stock.NewProductQuantity(p.ID, 3)}, req.StockShortage())
	})

	t.Run("shortage is not an error", func(t *testing.T) {
		req, err := solve(t, env, appstock.NewPickingRequestSolver(), stock.ProductQuantities{stock.NewProductQuantity(p.ID, 100)})
		require.NoError(t, err)
		assert.Equal(t, 83, req.ProductPickingRequests()[0].Shortage())
	})

	t.Run("unknown warehouse", func(t *testing.T) {
		_, err := solve(t, env, appstock.NewPickingRequestSolver(), stock.ProductQuantities{stock.NewProductQuantity(p.ID, 1)}, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := solve(t, env, appstock.NewPickingRequestSolver(), stock.ProductQuantities{stock.NewProductQuantity(uuid.New(), 1)})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestPickingRequestSolver_ResolveWarehouses(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	fx := testutil.NewFixture(t, db)
	b := fx.Warehouse("B", false)
	a := fx.Warehouse("A", false)
	def := fx.Warehouse("Z", true)

	ids, err := appstock.NewPickingRequestSolver().ResolveWarehouses(context.Background(), persistence.NewRepositories(db), nil)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{def.ID, a.ID, b.ID}, ids)
}
