package strategy

import (
	"errors"
	"fmt"

	"stratbench/internal/domain"
)

var (
	// ErrInvalidParameters is returned when a window is not 0 < short < long
	// <= series length, or when search bounds produce no usable window.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrNotMovingAverage is returned when a signal series is requested for a
	// kind that has no indicator window.
	ErrNotMovingAverage = errors.New("strategy kind has no moving averages")
)

// CheckWindow validates w against a series of n bars.
func CheckWindow(w domain.Window, n int) error {
	if err := w.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	if w.Long > n {
		return fmt.Errorf("%w: long window %d exceeds %d bars", ErrInvalidParameters, w.Long, n)
	}
	return nil
}

// MovingAverages returns the short and long curves of kind over the series
// closes. Undefined SMA entries are NaN.
func MovingAverages(series domain.PriceSeries, kind domain.StrategyKind, w domain.Window) (short, long []float64, err error) {
	if err := CheckWindow(w, series.Len()); err != nil {
		return nil, nil, err
	}
	closes := series.Closes()
	switch kind {
	case domain.StrategySMA:
		return SMA(closes, w.Short), SMA(closes, w.Long), nil
	case domain.StrategyEMA:
		return EMA(closes, w.Short), EMA(closes, w.Long), nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrNotMovingAverage, kind)
	}
}

// warmup returns the first index at which the crossover intent is evaluated.
// SMA needs the long window filled; EMA is defined everywhere but the first
// Short bars are held back so both kinds warm up comparably.
func warmup(kind domain.StrategyKind, w domain.Window) int {
	if kind == domain.StrategySMA {
		return w.Long - 1
	}
	return w.Short
}

// GenerateSignals derives a Buy/Sell/Hold series aligned with the bars. The
// intent on a bar is long when the short average is at or above the long one.
// Signals fire only when the intent changes from the previous bar, so the
// first evaluated bar is always Hold and Buy and Sell strictly alternate.
func GenerateSignals(series domain.PriceSeries, kind domain.StrategyKind, w domain.Window) ([]domain.Signal, error) {
	short, long, err := MovingAverages(series, kind, w)
	if err != nil {
		return nil, err
	}

	signals := make([]domain.Signal, series.Len())
	start := warmup(kind, w)
	var prev int
	for i := start; i < len(signals); i++ {
		intent := -1
		if short[i] >= long[i] {
			intent = 1
		}
		if i > start && intent != prev {
			if intent > 0 {
				signals[i] = domain.SignalBuy
			} else {
				signals[i] = domain.SignalSell
			}
		}
		prev = intent
	}
	return signals, nil
}
