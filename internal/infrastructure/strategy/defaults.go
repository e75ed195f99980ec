package strategy

import (
	"github.com/erp/stockengine/internal/infrastructure/strategy/stocking"
)

// NewRegistryWithDefaults creates a registry with the built-in stocking
// strategies and makes defaultName the default. An empty defaultName selects
// the default bin location strategy.
func NewRegistryWithDefaults(defaultName string) (*StockingStrategyRegistry, error) {
	r := NewStockingStrategyRegistry()

	defaultBin := stocking.NewDefaultBinLocationStockingStrategy()
	if err := r.Register(defaultBin); err != nil {
		return nil, err
	}

	warehouseLocation := stocking.NewWarehouseLocationStockingStrategy()
	if err := r.Register(warehouseLocation); err != nil {
		return nil, err
	}

	if defaultName == "" {
		defaultName = defaultBin.Name()
	}
	if err := r.SetDefault(defaultName); err != nil {
		return nil, err
	}

	return r, nil
}
