// Package analyze runs strategy selection across every configured instrument
// and persists the results.
package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"stratbench/internal/domain"
	"stratbench/internal/report"
	"stratbench/internal/selector"
	"stratbench/internal/store"
)

// Options configures an Analyzer.
type Options struct {
	Capital decimal.Decimal
	// DaysToAnalyze keeps only the most recent bars; <= 0 keeps all bars
	// since From.
	DaysToAnalyze int
	// From is the earliest bar read when DaysToAnalyze is unset.
	From time.Time
	// ReuseSaved replays saved windows instead of searching.
	ReuseSaved bool
	// MaxWorkers bounds the instruments analyzed at once.
	MaxWorkers int
	// ChartDir receives one chart file per instrument; empty disables
	// charts.
	ChartDir string
	// Now returns the current time. Nil uses time.Now.
	Now func() time.Time
}

// Analyzer selects the best strategy for each instrument from stored bars.
type Analyzer struct {
	bars   store.BarStore
	params store.ParamStore
	runs   store.RunStore
	sel    *selector.Selector
	opts   Options
	log    *slog.Logger
}

// NewAnalyzer creates an Analyzer. params may be nil, in which case nothing is
// saved or replayed. Runs are recorded when params also implements
// store.RunStore.
func NewAnalyzer(bars store.BarStore, params store.ParamStore, sel *selector.Selector, opts Options, log *slog.Logger) *Analyzer {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	a := &Analyzer{
		bars:   bars,
		params: params,
		sel:    sel,
		opts:   opts,
		log:    log.With("component", "analyzer"),
	}
	if rs, ok := params.(store.RunStore); ok {
		a.runs = rs
	}
	return a
}

// AnalyzeAll analyzes every instrument and returns one report per instrument
// in input order. A failing instrument is reported through Report.Err and does
// not stop the others; the returned error is set only when ctx ends.
func (a *Analyzer) AnalyzeAll(ctx context.Context, instruments []domain.Instrument) ([]report.Report, error) {
	reports := make([]report.Report, len(instruments))
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.MaxWorkers)
	for i, in := range instruments {
		g.Go(func() error {
			reports[i] = a.Analyze(gctx, in)
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return reports, err
	}

	failed := 0
	for _, r := range reports {
		if r.Err != nil {
			failed++
		}
	}
	a.log.Info("analysis complete",
		"instruments", len(instruments),
		"failed", failed,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return reports, nil
}

// Analyze runs selection for one instrument.
func (a *Analyzer) Analyze(ctx context.Context, in domain.Instrument) report.Report {
	r := report.Report{Instrument: in, Capital: a.opts.Capital}
	symbol := strings.ToUpper(in.Symbol)

	series, err := a.Series(ctx, symbol)
	if err != nil {
		r.Err = err
		a.log.Error("reading series failed", "symbol", symbol, "err", err)
		return r
	}

	saved, err := a.saved(ctx, symbol)
	if err != nil {
		r.Err = err
		a.log.Error("loading saved params failed", "symbol", symbol, "err", err)
		return r
	}

	c, err := a.sel.Replay(ctx, series, a.opts.Capital, saved)
	if err != nil {
		r.Err = fmt.Errorf("selecting strategy for %s: %w", symbol, err)
		a.log.Error("selection failed", "symbol", symbol, "err", err)
		return r
	}
	r.Choice = c

	runID, err := a.persist(ctx, c, series.Len())
	if err != nil {
		r.Err = err
		a.log.Error("saving results failed", "symbol", symbol, "err", err)
		return r
	}
	r.RunID = runID

	if a.opts.ChartDir != "" {
		path, err := report.WriteChart(a.opts.ChartDir, c)
		if err != nil {
			r.Err = fmt.Errorf("chart for %s: %w", symbol, err)
			return r
		}
		r.ChartPath = path
	}
	return r
}

// Series reads the analyzed range of symbol's bars.
func (a *Analyzer) Series(ctx context.Context, symbol string) (domain.PriceSeries, error) {
	end := a.opts.Now()
	from := a.opts.From
	if a.opts.DaysToAnalyze > 0 {
		// Trading days are about 5/7 of calendar days, less holidays.
		from = end.AddDate(0, 0, -(a.opts.DaysToAnalyze*3/2 + 30))
	}

	bars, err := a.bars.ReadBars(ctx, symbol, from, end)
	if err != nil {
		return domain.PriceSeries{}, fmt.Errorf("reading bars for %s: %w", symbol, err)
	}
	series, err := domain.NewPriceSeries(symbol, bars)
	if err != nil {
		return domain.PriceSeries{}, fmt.Errorf("bars for %s: %w", symbol, err)
	}
	return series.Tail(a.opts.DaysToAnalyze), nil
}

func (a *Analyzer) saved(ctx context.Context, symbol string) (map[domain.StrategyKind]domain.SavedParams, error) {
	if !a.opts.ReuseSaved || a.params == nil {
		return nil, nil
	}
	out := make(map[domain.StrategyKind]domain.SavedParams)
	for _, kind := range []domain.StrategyKind{domain.StrategySMA, domain.StrategyEMA} {
		p, ok, err := a.params.GetParams(ctx, store.ParamKey(symbol, kind))
		if err != nil {
			return nil, fmt.Errorf("saved %s params for %s: %w", kind, symbol, err)
		}
		if ok {
			out[kind] = *p
		}
	}
	return out, nil
}

// persist saves every kind's outcome and the winner under one run id and
// records the run.
func (a *Analyzer) persist(ctx context.Context, c *selector.Choice, bars int) (string, error) {
	if a.params == nil {
		return "", nil
	}
	runID := uuid.NewString()
	now := a.opts.Now()

	for _, o := range []*domain.SavedParams{
		{Kind: c.Baseline.Kind, Window: c.Baseline.Window, Return: c.Baseline.Return},
		{Kind: c.SMA.Kind, Window: c.SMA.Window, Return: c.SMA.Return},
		{Kind: c.EMA.Kind, Window: c.EMA.Window, Return: c.EMA.Return},
	} {
		o.RunID, o.UpdatedAt = runID, now
		if err := a.params.SetParams(ctx, store.ParamKey(c.Symbol, o.Kind), *o); err != nil {
			return "", fmt.Errorf("saving %s params for %s: %w", o.Kind, c.Symbol, err)
		}
	}
	best := domain.SavedParams{Kind: c.Kind, Window: c.Window, Return: c.Return, RunID: runID, UpdatedAt: now}
	if err := a.params.SetParams(ctx, store.BestKey(c.Symbol), best); err != nil {
		return "", fmt.Errorf("saving best params for %s: %w", c.Symbol, err)
	}

	if a.runs != nil {
		err := a.runs.RecordRun(ctx, store.Run{
			ID:        runID,
			Symbol:    c.Symbol,
			Kind:      c.Kind,
			Window:    c.Window,
			Return:    c.Return,
			Baseline:  c.Baseline.Return,
			Bars:      bars,
			CreatedAt: now,
		})
		if err != nil {
			return "", err
		}
	}
	return runID, nil
}
