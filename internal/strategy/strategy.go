// Package strategy defines the Strategy interface for bar-driven trading
// strategies, a Registry of strategy constructors, and the Backtester that
// replays bars through a strategy and a simulated broker.
package strategy

import (
	"context"
	"sort"

	"marketsignal/internal/domain"
)

// Strategy is the interface that all trading strategies must implement.
// A Strategy instance holds per-run state and is used by one backtest only.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Init precomputes the strategy's indicator series over the full bar
	// history. It is called once before the first OnBar.
	Init(ctx context.Context, bars []domain.Bar) error

	// Warmup returns the number of leading bars whose indicator values are
	// undefined.
	Warmup() int

	// OnBar is called for bar i once all indicators are defined. It returns
	// zero or more trading signals.
	OnBar(ctx context.Context, i int, bar domain.Bar) ([]domain.Signal, error)
}

// Describer is implemented by strategies that can summarize their
// parameters for listings.
type Describer interface {
	Describe() string
}

// Factory constructs a fresh Strategy instance.
type Factory func() Strategy

// Registry holds named strategy factories for lookup and enumeration.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a strategy factory to the registry, keyed by the Name() of
// the strategies it builds.
func (r *Registry) Register(f Factory) {
	r.factories[f().Name()] = f
}

// Get builds a new instance of the named strategy. The second return value
// indicates whether the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	f, ok := r.factories[name]
	if !ok {
		return nil, false
	}
	return f(), true
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewSignal builds a signal for bar on behalf of the named strategy.
func NewSignal(strategyName string, bar domain.Bar, typ domain.SignalType, metadata map[string]string) domain.Signal {
	return domain.Signal{
		StrategyID: strategyName,
		Symbol:     bar.Symbol,
		Type:       typ,
		Strength:   1,
		Metadata:   metadata,
		CreatedAt:  bar.Timestamp,
	}
}
