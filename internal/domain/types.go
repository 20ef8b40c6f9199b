// Package domain defines the core types shared across stratbench: daily bars,
// price series, indicator windows, signals and strategy kinds.
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmptySeries is returned when a price series holds no bars.
	ErrEmptySeries = errors.New("empty price series")

	// ErrMalformedSeries is returned when bar timestamps are not strictly
	// increasing.
	ErrMalformedSeries = errors.New("malformed price series")
)

// ---------------------------------------------------------------------------
// Bars and series
// ---------------------------------------------------------------------------

// Bar is a single daily OHLCV bar.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// Midpoint returns (open+close)/2, the price at which trades on this bar fill.
func (b Bar) Midpoint() decimal.Decimal {
	return decimal.NewFromFloat(b.Open).Add(decimal.NewFromFloat(b.Close)).Div(decimal.NewFromInt(2))
}

// PriceSeries is an ordered run of daily bars for one instrument. Bars are
// strictly increasing by timestamp and must not be modified once handed to
// the engine.
type PriceSeries struct {
	Symbol string
	Bars   []Bar
}

// NewPriceSeries wraps bars into a series and validates ordering.
func NewPriceSeries(symbol string, bars []Bar) (PriceSeries, error) {
	s := PriceSeries{Symbol: symbol, Bars: bars}
	if err := s.Validate(); err != nil {
		return PriceSeries{}, err
	}
	return s, nil
}

// Len returns the number of bars.
func (s PriceSeries) Len() int { return len(s.Bars) }

// Validate checks that the series is non-empty and strictly increasing.
func (s PriceSeries) Validate() error {
	if len(s.Bars) == 0 {
		return ErrEmptySeries
	}
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i].Timestamp.After(s.Bars[i-1].Timestamp) {
			return fmt.Errorf("%w: bar %d at %s does not follow %s", ErrMalformedSeries, i,
				s.Bars[i].Timestamp.Format("2006-01-02"), s.Bars[i-1].Timestamp.Format("2006-01-02"))
		}
	}
	return nil
}

// Closes returns the close prices in bar order.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Midpoint returns the fill price of bar i.
func (s PriceSeries) Midpoint(i int) decimal.Decimal {
	return s.Bars[i].Midpoint()
}

// Tail returns a series holding the last n bars. n <= 0 or n >= Len returns
// the series unchanged. The returned series shares the backing array.
func (s PriceSeries) Tail(n int) PriceSeries {
	if n <= 0 || n >= len(s.Bars) {
		return s
	}
	return PriceSeries{Symbol: s.Symbol, Bars: s.Bars[len(s.Bars)-n:]}
}

// ---------------------------------------------------------------------------
// Windows and signals
// ---------------------------------------------------------------------------

// Window is a (short, long) pair of moving-average lengths in bars.
type Window struct {
	Short int `json:"short"`
	Long  int `json:"long"`
}

// Validate requires 0 < Short < Long.
func (w Window) Validate() error {
	if w.Short <= 0 || w.Long <= 0 {
		return fmt.Errorf("window %s: lengths must be positive", w)
	}
	if w.Short >= w.Long {
		return fmt.Errorf("window %s: short must be below long", w)
	}
	return nil
}

func (w Window) String() string {
	return fmt.Sprintf("(%d,%d)", w.Short, w.Long)
}

// Signal is a discrete position intent emitted for a bar.
type Signal int8

const (
	SignalHold Signal = iota
	SignalBuy
	SignalSell
)

func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "buy"
	case SignalSell:
		return "sell"
	default:
		return "hold"
	}
}

// RankedWindow pairs a window with the terminal cash it produced.
type RankedWindow struct {
	Return decimal.Decimal `json:"return"`
	Window Window          `json:"window"`
}

// ---------------------------------------------------------------------------
// Strategy kinds
// ---------------------------------------------------------------------------

// StrategyKind identifies one of the evaluated strategies.
type StrategyKind string

const (
	StrategyBuyAndHold StrategyKind = "buy-and-hold"
	StrategySMA        StrategyKind = "sma"
	StrategyEMA        StrategyKind = "ema"
)

// IsValid reports whether k is a known kind.
func (k StrategyKind) IsValid() bool {
	switch k {
	case StrategyBuyAndHold, StrategySMA, StrategyEMA:
		return true
	default:
		return false
	}
}

// IsMovingAverage reports whether k is parameterized by a Window.
func (k StrategyKind) IsMovingAverage() bool {
	return k == StrategySMA || k == StrategyEMA
}

func (k StrategyKind) String() string { return string(k) }

// ParseStrategyKind converts a string such as "sma" into a StrategyKind.
func ParseStrategyKind(s string) (StrategyKind, error) {
	k := StrategyKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown strategy kind %q", s)
	}
	return k, nil
}

// Instrument is one monitored stock.
type Instrument struct {
	Symbol string `yaml:"symbol" json:"symbol"`
	// Name labels reports and names the instrument's CSV file; defaults to
	// Symbol.
	Name string `yaml:"name" json:"name"`
}

// Label returns Name, or Symbol when Name is empty.
func (i Instrument) Label() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Symbol
}

// SavedParams is the persisted outcome of a search for one kind, stored by
// key so a later run can replay it without searching again.
type SavedParams struct {
	Kind      StrategyKind    `json:"kind"`
	Window    *Window         `json:"window,omitempty"`
	Return    decimal.Decimal `json:"return"`
	RunID     string          `json:"run_id,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}
