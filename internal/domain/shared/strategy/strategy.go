// Package strategy holds the identity shared by pluggable strategies that
// are looked up by technical name.
package strategy

// StrategyType groups strategies that are interchangeable
type StrategyType string

// StrategyTypeStocking resolves where incoming stock is put
const StrategyTypeStocking StrategyType = "stocking"

func (t StrategyType) String() string {
	return string(t)
}

// Strategy is implemented by every registrable strategy
type Strategy interface {
	// Name is the technical name used in configuration
	Name() string
	Type() StrategyType
	Description() string
}

// BaseStrategy implements Strategy for embedding
type BaseStrategy struct {
	name         string
	strategyType StrategyType
	description  string
}

// NewBaseStrategy creates a BaseStrategy
func NewBaseStrategy(name string, strategyType StrategyType, description string) BaseStrategy {
	return BaseStrategy{name: name, strategyType: strategyType, description: description}
}

func (s BaseStrategy) Name() string        { return s.name }
func (s BaseStrategy) Type() StrategyType  { return s.strategyType }
func (s BaseStrategy) Description() string { return s.description }
