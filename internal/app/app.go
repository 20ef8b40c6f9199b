// Package app wires the stratbench components from a loaded configuration.
package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"

	"stratbench/internal/analyze"
	"stratbench/internal/config"
	"stratbench/internal/domain"
	"stratbench/internal/engine"
	"stratbench/internal/search"
	"stratbench/internal/selector"
	"stratbench/internal/store"
	"stratbench/internal/strategy"
	"stratbench/internal/strategy/builtins"
	"stratbench/internal/tradeparams"
)

// App holds the components built from one configuration.
type App struct {
	Config *config.Config
	Log    *slog.Logger

	Bars   *store.ParquetStore
	Params store.ParamStore
	// Runs is nil when parameters are kept in a JSON file.
	Runs store.RunStore

	Capital    decimal.Decimal
	Simulator  *engine.Simulator
	Searcher   *search.Searcher
	Registry   *strategy.Registry
	Selector   *selector.Selector
	Analyzer   *analyze.Analyzer
	Backtester *strategy.Backtester

	closers []io.Closer
}

// New builds every component from cfg.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	fees, err := cfg.Simulation.Fees()
	if err != nil {
		return nil, err
	}
	a := &App{
		Config:    cfg,
		Log:       log,
		Bars:      store.NewParquetStore(cfg.Storage.DataDir),
		Capital:   decimal.NewFromFloat(cfg.Simulation.InitialCash),
		Simulator: engine.NewSimulator(fees),
	}

	if cfg.Storage.ParamsFile != "" {
		ps, err := tradeparams.NewStore(cfg.Storage.ParamsFile, log)
		if err != nil {
			return nil, fmt.Errorf("opening params file: %w", err)
		}
		a.Params = ps
	} else {
		db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite %s: %w", cfg.Storage.SQLitePath, err)
		}
		a.Params, a.Runs = db, db
		a.closers = append(a.closers, db)
	}

	a.Searcher = search.NewSearcher(a.Simulator, cfg.Search.Workers, cfg.Search.TopK, log)
	sma, err := builtins.NewMACross(domain.StrategySMA, cfg.Search.SMA.Bounds(), a.Simulator, a.Searcher)
	if err != nil {
		a.Close()
		return nil, err
	}
	ema, err := builtins.NewMACross(domain.StrategyEMA, cfg.Search.EMA.Bounds(), a.Simulator, a.Searcher)
	if err != nil {
		a.Close()
		return nil, err
	}
	baseline := builtins.NewBuyAndHold(a.Simulator)

	a.Registry = strategy.NewRegistry(baseline, sma, ema)
	a.Selector = selector.New(baseline, sma, ema, cfg.Simulation.DaysToPlot, log)
	a.Backtester = strategy.NewBacktester(a.Bars, a.Registry, log)

	from, _ := cfg.Gather.Start()
	a.Analyzer = analyze.NewAnalyzer(a.Bars, a.Params, a.Selector, analyze.Options{
		Capital:       a.Capital,
		DaysToAnalyze: cfg.Simulation.DaysToAnalyze,
		From:          from,
		ReuseSaved:    cfg.Simulation.ReuseSaved,
		MaxWorkers:    cfg.Simulation.MaxWorkers,
		ChartDir:      cfg.Storage.ChartDir,
	}, log)
	return a, nil
}

// Close releases the stores.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
