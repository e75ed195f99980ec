package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/erp/stockengine/internal/testutil"
)

func TestGormStockRepository_ApplyChange(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	fx := testutil.NewFixture(t, db)
	repo := NewGormStockRepository(db)
	ctx := context.Background()

	w := fx.Warehouse("WH-1", true)
	bin := fx.BinLocation(w, "A-01")
	p := fx.Product("SW-1")
	warehouseID := w.ID

	change := stock.StockChange{
		StockKey:        stock.StockKey{ProductID: p.ID, Location: bin.Location()},
		WarehouseID:     &warehouseID,
		BinLocationCode: bin.Code,
		Delta:           5,
	}
	require.NoError(t, repo.ApplyChange(ctx, change))
	assert.Equal(t, 5, fx.Quantity(p.ID, bin.Location()))

	change.Delta = -3
	require.NoError(t, repo.ApplyChange(ctx, change))
	assert.Equal(t, 2, fx.Quantity(p.ID, bin.Location()))

	rows, err := repo.FindByProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "A-01", rows[0].BinLocationCode)
	assert.True(t, rows[0].IsInWarehouse(w.ID))

	err = repo.ApplyChange(ctx, stock.StockChange{
		StockKey: stock.StockKey{ProductID: p.ID, Location: stock.UnknownLocation()},
		Delta:    1,
	})
	assert.ErrorContains(t, err, "No stock is kept")
}

func TestGormWarehouseStockRepository_ApplyChange(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	fx := testutil.NewFixture(t, db)
	repo := NewGormWarehouseStockRepository(db)
	ctx := context.Background()

	w := fx.Warehouse("WH-1", true)
	p := fx.Product("SW-1")

	require.NoError(t, repo.ApplyChange(ctx, p.ID, w.ID, 4))
	require.NoError(t, repo.ApplyChange(ctx, p.ID, w.ID, 6))
	assert.Equal(t, 10, fx.WarehouseQuantity(p.ID, w.ID))

	totals, err := repo.FindByProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, 10, totals[0].Quantity)
}

func TestGormStockRepository_LockKeys(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	fx := testutil.NewFixture(t, db)
	repo := NewGormStockRepository(db)
	ctx := context.Background()

	w := fx.Warehouse("WH-1", true)
	bin := fx.BinLocation(w, "A-01")
	p := fx.Product("SW-1")
	fx.BinStock(p, bin, 7)

	existing := stock.StockKey{ProductID: p.ID, Location: bin.Location()}
	missing := stock.StockKey{ProductID: p.ID, Location: w.Location()}

	locked, err := repo.LockKeys(ctx, []stock.StockKey{existing, missing})
	require.NoError(t, err)
	require.Len(t, locked, 1)
	assert.Equal(t, 7, locked[existing].Quantity)
	_, ok := locked[missing]
	assert.False(t, ok)

	empty, err := repo.LockKeys(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGormStockRepository_FindPickable(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	fx := testutil.NewFixture(t, db)
	repo := NewGormStockRepository(db)
	ctx := context.Background()

	w1 := fx.Warehouse("WH-1", true)
	w2 := fx.Warehouse("WH-2", false)
	bin := fx.BinLocation(w1, "A-01")
	otherBin := fx.BinLocation(w2, "B-01")
	p := fx.Product("SW-1")

	fx.BinStock(p, bin, 3)
	fx.WarehouseStock(p, w1, 2)
	fx.BinStock(p, otherBin, 9)

	t.Run("bins only", func(t *testing.T) {
		rows, err := repo.FindPickable(ctx, []uuid.UUID{p.ID}, []uuid.UUID{w1.ID}, false)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, bin.Location(), rows[0].Location)
		assert.Equal(t, 3, rows[0].Quantity)
		assert.Equal(t, "A-01", rows[0].BinLocationCode)
	})

	t.Run("with generic locations", func(t *testing.T) {
		rows, err := repo.FindPickable(ctx, []uuid.UUID{p.ID}, []uuid.UUID{w1.ID}, true)
		require.NoError(t, err)
		assert.Len(t, rows, 2)
		for _, r := range rows {
			assert.Equal(t, w1.ID, r.WarehouseID)
		}
	})

	t.Run("skips depleted rows", func(t *testing.T) {
		warehouseID := w1.ID
		require.NoError(t, repo.ApplyChange(ctx, stock.StockChange{
			StockKey:    stock.StockKey{ProductID: p.ID, Location: bin.Location()},
			WarehouseID: &warehouseID,
			Delta:       -3,
		}))
		rows, err := repo.FindPickable(ctx, []uuid.UUID{p.ID}, []uuid.UUID{w1.ID}, false)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("no warehouses", func(t *testing.T) {
		rows, err := repo.FindPickable(ctx, []uuid.UUID{p.ID}, nil, true)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestGormStockRepository_FindByLocation(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	fx := testutil.NewFixture(t, db)
	repo := NewGormStockRepository(db)
	ctx := context.Background()

	p1 := fx.Product("SW-1")
	p2 := fx.Product("SW-2")
	o := fx.Order("10001", stock.NewProductQuantity(p1.ID, 2))
	fx.LocationStock(p1.ID, o.Location(), 2)
	fx.LocationStock(p2.ID, o.Location(), 1)

	rows, err := repo.FindByLocation(ctx, o.Location())
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	special, err := repo.FindByLocation(ctx, stock.ImportLocation())
	require.NoError(t, err)
	assert.Empty(t, special)
}

func TestGormStockMovementRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	fx := testutil.NewFixture(t, db)
	repo := NewGormStockMovementRepository(db)
	ctx := context.Background()

	w := fx.Warehouse("WH-1", true)
	bin := fx.BinLocation(w, "A-01")
	p := fx.Product("SW-1")

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var batch stock.StockMovements
	for i := 0; i < 5; i++ {
		mv, err := stock.NewStockMovement(p.ID, i+1, stock.ImportLocation(), bin.Location())
		require.NoError(t, err)
		mv.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		mv.UpdatedAt = mv.CreatedAt
		batch = append(batch, mv)
	}
	out, err := stock.NewStockMovement(p.ID, 4, bin.Location(), w.Location())
	require.NoError(t, err)
	out.CreatedAt = base.Add(time.Hour)
	out.UpdatedAt = out.CreatedAt
	batch = append(batch, out)

	require.NoError(t, repo.CreateBatch(ctx, batch))
	require.NoError(t, repo.CreateBatch(ctx, nil))

	t.Run("pages newest first", func(t *testing.T) {
		page, total, err := repo.FindByProduct(ctx, p.ID, shared.Filter{Page: 1, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(6), total)
		require.Len(t, page, 2)
		assert.Equal(t, 4, page[0].Quantity)
		assert.Equal(t, 5, page[1].Quantity)

		last, _, err := repo.FindByProduct(ctx, p.ID, shared.Filter{Page: 3, PageSize: 2})
		require.NoError(t, err)
		require.Len(t, last, 2)
		assert.Equal(t, 1, last[1].Quantity)
	})

	t.Run("ignores unknown sort fields", func(t *testing.T) {
		page, _, err := repo.FindByProduct(ctx, p.ID, shared.Filter{Page: 1, PageSize: 1, OrderBy: "1; DROP TABLE stocks", OrderDir: "asc"})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, 1, page[0].Quantity)
	})

	t.Run("net quantity per location", func(t *testing.T) {
		net, err := repo.NetQuantityByLocation(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 11, net[bin.Location()])
		assert.Equal(t, 4, net[w.Location()])
		_, ok := net[stock.ImportLocation()]
		assert.False(t, ok)
	})
}

func TestGormWarehouseRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	fx := testutil.NewFixture(t, db)
	repo := NewGormWarehouseRepository(db)
	ctx := context.Background()

	first := fx.Warehouse("WH-B", true)
	second := fx.Warehouse("WH-A", false)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "WH-B", all[0].Code)

	second.IsDefault = true
	require.NoError(t, repo.Save(ctx, second))

	def, err := repo.FindDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, def.ID)

	reloaded, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsDefault)

	byCode, err := repo.FindByCode(ctx, "WH-A")
	require.NoError(t, err)
	assert.Equal(t, second.ID, byCode.ID)

	_, err = repo.FindByCode(ctx, "nope")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	unknown := uuid.New()
	missing, err := repo.FindMissing(ctx, []uuid.UUID{first.ID, unknown, unknown})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{unknown}, missing)
}

func TestGormProductRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	fx := testutil.NewFixture(t, db)
	repo := NewGormProductRepository(db)
	ctx := context.Background()

	p := fx.Product("SW-1")

	require.NoError(t, repo.UpdateIncomingStock(ctx, p.ID, 12))
	reloaded, err := repo.FindByProductNumber(ctx, "SW-1")
	require.NoError(t, err)
	assert.Equal(t, 12, reloaded.IncomingStock)

	err = repo.UpdateIncomingStock(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormProductWarehouseConfigurationRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	fx := testutil.NewFixture(t, db)
	repo := NewGormProductWarehouseConfigurationRepository(db)
	ctx := context.Background()

	w := fx.Warehouse("WH-1", true)
	a := fx.BinLocation(w, "A-01")
	b := fx.BinLocation(w, "B-01")
	p := fx.Product("SW-1")
	fx.DefaultBinLocation(p, a)

	defaults, err := repo.FindDefaultBinLocations(ctx, w.ID, []uuid.UUID{p.ID, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]uuid.UUID{p.ID: a.ID}, defaults)

	cfg := stock.NewProductWarehouseConfiguration(p.ID, w.ID)
	require.NoError(t, cfg.SetDefaultBinLocation(b))
	require.NoError(t, repo.Save(ctx, cfg))

	stored, err := repo.FindByProductAndWarehouse(ctx, p.ID, w.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DefaultBinLocationID)
	assert.Equal(t, b.ID, *stored.DefaultBinLocationID)
}
