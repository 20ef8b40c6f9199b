// Package selector evaluates the baseline and both crossover strategies on one
// instrument and picks the winner.
package selector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"stratbench/internal/domain"
	"stratbench/internal/strategy"
)

// Choice is the selected strategy for one series together with everything
// needed to chart it.
type Choice struct {
	Symbol string
	Kind   domain.StrategyKind
	// Window is nil when the baseline wins.
	Window *domain.Window
	Return decimal.Decimal

	Baseline *strategy.Outcome
	SMA      *strategy.Outcome
	EMA      *strategy.Outcome

	// Plot is the charted tail of the series. Signals, Short and Long are
	// aligned with Plot.Bars; Short and Long are nil for the baseline.
	Plot    domain.PriceSeries
	Signals []domain.Signal
	Short   []float64
	Long    []float64
}

// Selector compares buy-and-hold, SMA and EMA crossovers.
type Selector struct {
	baseline strategy.Strategy
	sma      strategy.Strategy
	ema      strategy.Strategy
	plotDays int
	log      *slog.Logger
}

// New creates a Selector. plotDays limits the charted tail; <= 0 keeps the
// whole series.
func New(baseline, sma, ema strategy.Strategy, plotDays int, log *slog.Logger) *Selector {
	return &Selector{
		baseline: baseline,
		sma:      sma,
		ema:      ema,
		plotDays: plotDays,
		log:      log.With("component", "selector"),
	}
}

// ChooseBest optimizes all three strategies concurrently and picks the best.
func (s *Selector) ChooseBest(ctx context.Context, series domain.PriceSeries, capital decimal.Decimal) (*Choice, error) {
	return s.Replay(ctx, series, capital, nil)
}

// Replay evaluates saved windows instead of searching. Kinds missing from
// saved, or saved without a window, are optimized as in ChooseBest.
func (s *Selector) Replay(ctx context.Context, series domain.PriceSeries, capital decimal.Decimal, saved map[domain.StrategyKind]domain.SavedParams) (*Choice, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	var base, sma, ema *strategy.Outcome
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		base, err = s.baseline.Optimize(gctx, series, capital)
		return wrap(s.baseline, err)
	})
	g.Go(func() (err error) {
		sma, err = run(gctx, s.sma, series, capital, saved)
		return wrap(s.sma, err)
	})
	g.Go(func() (err error) {
		ema, err = run(gctx, s.ema, series, capital, saved)
		return wrap(s.ema, err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	winner := Pick(base, sma, ema)
	c := &Choice{
		Symbol:   series.Symbol,
		Kind:     winner.Kind,
		Window:   winner.Window,
		Return:   winner.Return,
		Baseline: base,
		SMA:      sma,
		EMA:      ema,
	}
	if err := s.chart(c, series); err != nil {
		return nil, err
	}

	s.log.Info("strategy selected",
		"symbol", series.Symbol,
		"kind", c.Kind,
		"return", c.Return.StringFixed(2),
		"baseline", base.Return.StringFixed(2),
		"sma", sma.Return.StringFixed(2),
		"ema", ema.Return.StringFixed(2),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return c, nil
}

// Pick applies the selection policy: the baseline only when it strictly beats
// both crossovers, then SMA only when it strictly beats EMA, otherwise EMA.
func Pick(baseline, sma, ema *strategy.Outcome) *strategy.Outcome {
	if baseline.Return.GreaterThan(decimal.Max(sma.Return, ema.Return)) {
		return baseline
	}
	if sma.Return.GreaterThan(ema.Return) {
		return sma
	}
	return ema
}

func run(ctx context.Context, st strategy.Strategy, series domain.PriceSeries, capital decimal.Decimal, saved map[domain.StrategyKind]domain.SavedParams) (*strategy.Outcome, error) {
	if p, ok := saved[st.Kind()]; ok && p.Window != nil {
		return st.Evaluate(ctx, series, capital, p.Window)
	}
	return st.Optimize(ctx, series, capital)
}

func wrap(st strategy.Strategy, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", st.Name(), err)
}

// chart fills the plot fields of c from the winning strategy.
func (s *Selector) chart(c *Choice, series domain.PriceSeries) error {
	c.Plot = series.Tail(s.plotDays)
	offset := series.Len() - c.Plot.Len()

	if c.Window == nil {
		c.Signals = make([]domain.Signal, c.Plot.Len())
		return nil
	}
	signals, err := strategy.GenerateSignals(series, c.Kind, *c.Window)
	if err != nil {
		return fmt.Errorf("charting %s: %w", c.Kind, err)
	}
	short, long, err := strategy.MovingAverages(series, c.Kind, *c.Window)
	if err != nil {
		return fmt.Errorf("charting %s: %w", c.Kind, err)
	}
	c.Signals = signals[offset:]
	c.Short = short[offset:]
	c.Long = long[offset:]
	return nil
}
