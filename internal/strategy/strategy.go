// Package strategy defines the Strategy interface, the moving-average signal
// generator shared by every crossover strategy, and a Registry for looking up
// strategies by name.
package strategy

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"stratbench/internal/domain"
)

// Outcome is the best result a strategy achieved on one series.
type Outcome struct {
	Kind domain.StrategyKind
	// Window is nil for strategies without indicator parameters.
	Window *domain.Window
	Return decimal.Decimal
	// TopK holds the best windows seen during a search, ascending by return.
	// Empty when no search ran.
	TopK []domain.RankedWindow
	// Cells is the number of windows evaluated.
	Cells int
}

// Strategy is the interface that all evaluated strategies implement.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Kind returns the strategy kind used for selection and persistence.
	Kind() domain.StrategyKind

	// Optimize searches the strategy's parameters on series and returns the
	// best outcome.
	Optimize(ctx context.Context, series domain.PriceSeries, capital decimal.Decimal) (*Outcome, error)

	// Evaluate replays fixed parameters on series. Strategies without
	// parameters ignore window.
	Evaluate(ctx context.Context, series domain.PriceSeries, capital decimal.Decimal, window *domain.Window) (*Outcome, error)
}

// Registry holds a named collection of strategies for lookup and enumeration.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates a Registry holding the given strategies.
func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{
		strategies: make(map[string]Strategy),
	}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// Register adds a strategy to the registry, keyed by its Name().
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// ByKind returns the first registered strategy of the given kind, in name
// order.
func (r *Registry) ByKind(kind domain.StrategyKind) (Strategy, bool) {
	for _, name := range r.List() {
		if s := r.strategies[name]; s.Kind() == kind {
			return s, true
		}
	}
	return nil, false
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
