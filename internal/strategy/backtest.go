package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"stratbench/internal/domain"
	"stratbench/internal/engine"
	"stratbench/internal/store"
)

// Replay generates the kind's signals for window and runs them through sim.
// It is the unit of work of a parameter search.
func Replay(sim *engine.Simulator, series domain.PriceSeries, kind domain.StrategyKind, w domain.Window, capital decimal.Decimal) (engine.Result, []domain.Signal, error) {
	signals, err := GenerateSignals(series, kind, w)
	if err != nil {
		return engine.Result{}, nil, err
	}
	res, err := sim.Simulate(series, signals, capital)
	if err != nil {
		return engine.Result{}, nil, err
	}
	return res, signals, nil
}

// BacktestResult holds the outcome of a single-strategy backtest run.
type BacktestResult struct {
	Symbol   string
	Strategy string
	Outcome  *Outcome
	Bars     int
	Start    time.Time
	End      time.Time
}

// Backtester reads historical bars from a store and runs one registered
// strategy over them.
type Backtester struct {
	store    store.BarStore
	registry *Registry
	log      *slog.Logger
}

// NewBacktester creates a Backtester that reads bars from the given store and
// looks up strategies in the provided registry.
func NewBacktester(barStore store.BarStore, registry *Registry, log *slog.Logger) *Backtester {
	return &Backtester{
		store:    barStore,
		registry: registry,
		log:      log.With("component", "backtester"),
	}
}

// Run optimizes the named strategy on symbol's bars within [start, end],
// starting with initialCapital.
func (bt *Backtester) Run(
	ctx context.Context,
	name string,
	symbol string,
	start, end time.Time,
	initialCapital decimal.Decimal,
) (*BacktestResult, error) {
	s, ok := bt.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}

	bars, err := bt.store.ReadBars(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("reading bars for %s: %w", symbol, err)
	}
	series, err := domain.NewPriceSeries(symbol, bars)
	if err != nil {
		return nil, fmt.Errorf("bars for %s: %w", symbol, err)
	}

	out, err := s.Optimize(ctx, series, initialCapital)
	if err != nil {
		return nil, fmt.Errorf("running %s on %s: %w", name, symbol, err)
	}

	bt.log.Info("backtest done",
		"symbol", symbol,
		"strategy", name,
		"bars", series.Len(),
		"return", out.Return.StringFixed(2),
	)

	return &BacktestResult{
		Symbol:   symbol,
		Strategy: name,
		Outcome:  out,
		Bars:     series.Len(),
		Start:    series.Bars[0].Timestamp,
		End:      series.Bars[series.Len()-1].Timestamp,
	}, nil
}
