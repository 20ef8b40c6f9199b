// Package search runs the exhaustive window grid search for a moving-average
// strategy. Cells are independent and evaluated concurrently; a single
// mutex-guarded tracker reduces them to the best window and a ranked top-K.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"stratbench/internal/domain"
	"stratbench/internal/engine"
	"stratbench/internal/strategy"
)

// DefaultTopK is the number of ranked windows kept for reporting.
const DefaultTopK = 10

// Result is the outcome of one grid search.
type Result struct {
	Kind       domain.StrategyKind
	Best       domain.Window
	BestReturn decimal.Decimal
	// TopK is ascending by return; equal returns keep enumeration order.
	TopK  []domain.RankedWindow
	Cells int
}

// Searcher evaluates every window of a grid with a bounded worker pool.
type Searcher struct {
	sim     *engine.Simulator
	workers int
	topK    int
	log     *slog.Logger
}

// NewSearcher creates a Searcher. workers <= 0 uses one worker per CPU and
// topK <= 0 uses DefaultTopK.
func NewSearcher(sim *engine.Simulator, workers, topK int, log *slog.Logger) *Searcher {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Searcher{
		sim:     sim,
		workers: workers,
		topK:    topK,
		log:     log.With("component", "search"),
	}
}

// Run searches bounds for the window of kind that maximizes terminal cash on
// series. Identical inputs always produce the same best window and top-K,
// whatever the worker count.
func (s *Searcher) Run(
	ctx context.Context,
	series domain.PriceSeries,
	kind domain.StrategyKind,
	bounds Bounds,
	capital decimal.Decimal,
) (*Result, error) {
	if !kind.IsMovingAverage() {
		return nil, fmt.Errorf("%w: %s", strategy.ErrNotMovingAverage, kind)
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	if err := bounds.Validate(series.Len()); err != nil {
		return nil, err
	}

	cells := bounds.Cells()
	tr := newTracker(s.topK)
	runStart := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, w := range cells {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, _, err := strategy.Replay(s.sim, series, kind, w, capital)
			if err != nil {
				return fmt.Errorf("window %s: %w", w, err)
			}
			if tr.observe(candidate{idx: i, window: w, ret: res.TerminalCash}) {
				s.log.Debug("new best",
					"symbol", series.Symbol,
					"kind", kind,
					"window", w.String(),
					"return", res.TerminalCash.StringFixed(2),
				)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	best, top := tr.snapshot()
	s.log.Info("search complete",
		"symbol", series.Symbol,
		"kind", kind,
		"cells", len(cells),
		"best", best.window.String(),
		"return", best.ret.StringFixed(2),
		"elapsed", time.Since(runStart).Round(time.Millisecond),
	)

	return &Result{
		Kind:       kind,
		Best:       best.window,
		BestReturn: best.ret,
		TopK:       top,
		Cells:      len(cells),
	}, nil
}
