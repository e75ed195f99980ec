package strategy

import (
	"fmt"
	"sort"
	"sync"

	appstock "github.com/erp/stockengine/internal/application/stock"
	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
)

// StockingStrategyRegistry maps technical names to stocking strategies. It is
// built once at startup and injected into the orchestrators.
type StockingStrategyRegistry struct {
	mu          sync.RWMutex
	strategies  map[string]stock.StockingStrategy
	defaultName string
}

// NewStockingStrategyRegistry creates an empty registry
func NewStockingStrategyRegistry() *StockingStrategyRegistry {
	return &StockingStrategyRegistry{
		strategies: make(map[string]stock.StockingStrategy),
	}
}

// Register adds a strategy under its Name
func (r *StockingStrategyRegistry) Register(s stock.StockingStrategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.strategies[name]; exists {
		return fmt.Errorf("%w: stocking strategy '%s' already registered", shared.ErrAlreadyExists, name)
	}
	r.strategies[name] = s
	return nil
}

// GetStockingStrategy returns a strategy by name, or the default if name is empty
func (r *StockingStrategyRegistry) GetStockingStrategy(name string) (stock.StockingStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaultName
		if name == "" {
			return nil, fmt.Errorf("%w: no default stocking strategy set", shared.ErrNotFound)
		}
	}

	s, exists := r.strategies[name]
	if !exists {
		return nil, fmt.Errorf("%w: stocking strategy '%s' not found", shared.ErrNotFound, name)
	}
	return s, nil
}

// GetStockingStrategyOrDefault returns a strategy by name, or the default if not found
func (r *StockingStrategyRegistry) GetStockingStrategyOrDefault(name string) stock.StockingStrategy {
	s, err := r.GetStockingStrategy(name)
	if err != nil {
		s, _ = r.GetStockingStrategy("")
	}
	return s
}

// List returns all registered strategy names
func (r *StockingStrategyRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unregister removes a strategy
func (r *StockingStrategyRegistry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[name]; !exists {
		return fmt.Errorf("%w: stocking strategy '%s' not found", shared.ErrNotFound, name)
	}
	delete(r.strategies, name)

	// Clear default if it was this strategy
	if r.defaultName == name {
		r.defaultName = ""
	}
	return nil
}

// SetDefault makes a registered strategy the default
func (r *StockingStrategyRegistry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[name]; !exists {
		return fmt.Errorf("%w: stocking strategy '%s' not found", shared.ErrNotFound, name)
	}
	r.defaultName = name
	return nil
}

// GetDefault returns the default strategy name
func (r *StockingStrategyRegistry) GetDefault() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// IsRegistered returns true if a strategy with the given name is registered
func (r *StockingStrategyRegistry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.strategies[name]
	return exists
}

var _ appstock.StockingStrategyProvider = (*StockingStrategyRegistry)(nil)
