// Package builtins provides the strategies stratbench evaluates for every
// instrument: buy-and-hold and the SMA and EMA crossovers.
package builtins

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"stratbench/internal/domain"
	"stratbench/internal/engine"
	"stratbench/internal/search"
	"stratbench/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*MACross)(nil)

// MACross is a moving-average crossover strategy. It goes long when the short
// average crosses above the long one and flat when it crosses below. Optimize
// searches its window grid; Evaluate replays one window.
type MACross struct {
	kind     domain.StrategyKind
	bounds   search.Bounds
	sim      *engine.Simulator
	searcher *search.Searcher
}

// NewMACross creates a crossover strategy of kind (sma or ema) that searches
// bounds with searcher and replays windows with sim.
func NewMACross(kind domain.StrategyKind, bounds search.Bounds, sim *engine.Simulator, searcher *search.Searcher) (*MACross, error) {
	if !kind.IsMovingAverage() {
		return nil, fmt.Errorf("%w: %s", strategy.ErrNotMovingAverage, kind)
	}
	return &MACross{kind: kind, bounds: bounds, sim: sim, searcher: searcher}, nil
}

// Name returns "sma-cross" or "ema-cross".
func (m *MACross) Name() string {
	return string(m.kind) + "-cross"
}

// Kind returns sma or ema.
func (m *MACross) Kind() domain.StrategyKind { return m.kind }

// Bounds returns the search grid.
func (m *MACross) Bounds() search.Bounds { return m.bounds }

// Optimize runs the grid search and reports the best window.
func (m *MACross) Optimize(ctx context.Context, series domain.PriceSeries, capital decimal.Decimal) (*strategy.Outcome, error) {
	res, err := m.searcher.Run(ctx, series, m.kind, m.bounds, capital)
	if err != nil {
		return nil, err
	}
	best := res.Best
	return &strategy.Outcome{
		Kind:   m.kind,
		Window: &best,
		Return: res.BestReturn,
		TopK:   res.TopK,
		Cells:  res.Cells,
	}, nil
}

// Evaluate replays window on series.
func (m *MACross) Evaluate(ctx context.Context, series domain.PriceSeries, capital decimal.Decimal, window *domain.Window) (*strategy.Outcome, error) {
	if window == nil {
		return nil, fmt.Errorf("%w: %s needs a window", strategy.ErrInvalidParameters, m.Name())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, _, err := strategy.Replay(m.sim, series, m.kind, *window, capital)
	if err != nil {
		return nil, err
	}
	w := *window
	return &strategy.Outcome{Kind: m.kind, Window: &w, Return: res.TerminalCash, Cells: 1}, nil
}
