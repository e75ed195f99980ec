package fulfillment_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/erp/stockengine/internal/application/fulfillment"
	appstock "github.com/erp/stockengine/internal/application/stock"
	"github.com/erp/stockengine/internal/domain/order"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/erp/stockengine/internal/infrastructure/persistence"
	"github.com/erp/stockengine/internal/infrastructure/strategy"
	"github.com/erp/stockengine/internal/testutil"
)

type env struct {
	db        *gorm.DB
	fx        *testutil.Fixture
	scope     *persistence.GormTransactionScope
	published *testutil.RecordingPublisher

	shipping  *fulfillment.OrderShippingService
	returns   *fulfillment.ReturnOrderService
	suppliers *fulfillment.SupplierOrderStockingService
	incoming  *fulfillment.IncomingStockHandler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	scope := persistence.NewGormTransactionScope(db)
	registry, err := strategy.NewRegistryWithDefaults("")
	require.NoError(t, err)

	published := testutil.NewRecordingPublisher()
	movements := appstock.NewStockMovementService(nil)
	return &env{
		db:        db,
		fx:        testutil.NewFixture(t, db),
		scope:     scope,
		published: published,
		shipping:  fulfillment.NewOrderShippingService(scope, movements, appstock.NewPickingRequestSolver(), published, nil),
		returns:   fulfillment.NewReturnOrderService(scope, movements, registry, "", published, nil),
		suppliers: fulfillment.NewSupplierOrderStockingService(scope, movements, registry, "", published, nil),
		incoming:  fulfillment.NewIncomingStockHandler(scope, nil),
	}
}

func (e *env) order(t *testing.T, id uuid.UUID) *order.Order {
	t.Helper()
	o, err := persistence.NewRepositories(e.db).OrderRepo().FindByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (e *env) returnOrder(t *testing.T, id uuid.UUID) *order.ReturnOrder {
	t.Helper()
	ro, err := persistence.NewRepositories(e.db).ReturnOrderRepo().FindByID(context.Background(), id)
	require.NoError(t, err)
	return ro
}

func (e *env) supplierOrder(t *testing.T, id uuid.UUID) *order.SupplierOrder {
	t.Helper()
	so, err := persistence.NewRepositories(e.db).SupplierOrderRepo().FindByID(context.Background(), id)
	require.NoError(t, err)
	return so
}

func (e *env) product(t *testing.T, id uuid.UUID) *stock.Product {
	t.Helper()
	p, err := persistence.NewRepositories(e.db).ProductRepo().FindByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func pq(productID uuid.UUID, quantity int) stock.ProductQuantity {
	return stock.NewProductQuantity(productID, quantity)
}
