package stock

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStockingRequest(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()

	t.Run("merges and drops zero quantities", func(t *testing.T) {
		req, err := NewStockingRequest(ProductQuantities{
			NewProductQuantity(p1, 1),
			NewProductQuantity(p2, 0),
			NewProductQuantity(p1, 2),
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, ProductQuantities{NewProductQuantity(p1, 3)}, req.ProductQuantities)
		assert.Nil(t, req.WarehouseID)
	})

	t.Run("rejects negative quantity", func(t *testing.T) {
		_, err := NewStockingRequest(ProductQuantities{NewProductQuantity(p1, -3)}, nil)
		assert.Error(t, err)
	})
}

func TestStockingSolution_ToStockMovements(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	bin := BinLocationLocation(uuid.New())
	warehouse := WarehouseLocation(uuid.New())
	source := SupplierOrderLocation(uuid.New())

	solution := StockingSolution{
		NewProductQuantityLocation(p1, 3, bin),
		NewProductQuantityLocation(p2, 0, warehouse),
		NewProductQuantityLocation(p2, 2, warehouse),
	}

	movements, err := solution.ToStockMovements(source, MovementOptions{Metadata: map[string]string{"supplier_order": "SO-1"}})
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, bin, movements[0].Destination)
	assert.Equal(t, source, movements[0].Source)
	assert.Equal(t, warehouse, movements[1].Destination)
	assert.Equal(t, "SO-1", movements[1].Metadata["supplier_order"])
}
