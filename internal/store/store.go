// Package store defines storage interfaces for persisting and retrieving
// daily bars, saved strategy parameters and analysis run history.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"stratbench/internal/domain"
)

// BarStore persists and retrieves daily OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage, merging with what is
	// already stored for the same symbol and day.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol within [start, end], ordered
	// by timestamp.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with stored bars.
	ListSymbols(ctx context.Context) ([]string, error)
}

// ParamStore keeps the parameters found by a search so later runs can replay
// them without searching again.
type ParamStore interface {
	// GetParams returns the parameters saved under key. The bool is false when
	// nothing is stored.
	GetParams(ctx context.Context, key string) (*domain.SavedParams, bool, error)

	// SetParams stores p under key, replacing any previous value.
	SetParams(ctx context.Context, key string, p domain.SavedParams) error
}

// ParamKey returns the key under which the parameters of kind are kept for
// symbol. Use BestKey for the selected winner.
func ParamKey(symbol string, kind domain.StrategyKind) string {
	return symbol + "/" + string(kind)
}

// BestKey returns the key of the winning strategy for symbol.
func BestKey(symbol string) string {
	return symbol + "/best"
}

// Run is one analysis of one instrument.
type Run struct {
	ID        string
	Symbol    string
	Kind      domain.StrategyKind
	Window    *domain.Window
	Return    decimal.Decimal
	Baseline  decimal.Decimal
	Bars      int
	CreatedAt time.Time
}

// RunStore records analysis history.
type RunStore interface {
	// RecordRun appends r to the history.
	RecordRun(ctx context.Context, r Run) error

	// ListRuns returns the most recent runs for symbol, newest first, up to
	// limit. An empty symbol lists all instruments.
	ListRuns(ctx context.Context, symbol string, limit int) ([]Run, error)
}
