package selector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratbench/internal/domain"
	"stratbench/internal/engine"
	"stratbench/internal/search"
	"stratbench/internal/strategy"
	"stratbench/internal/strategy/builtins"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fixed returns a preset outcome and records how it was called.
type fixed struct {
	kind      domain.StrategyKind
	ret       int64
	window    *domain.Window
	err       error
	evaluated *domain.Window
	optimized bool
}

func (f *fixed) Name() string              { return "fixed-" + string(f.kind) }
func (f *fixed) Kind() domain.StrategyKind { return f.kind }

func (f *fixed) Optimize(context.Context, domain.PriceSeries, decimal.Decimal) (*strategy.Outcome, error) {
	f.optimized = true
	if f.err != nil {
		return nil, f.err
	}
	return &strategy.Outcome{Kind: f.kind, Window: f.window, Return: decimal.NewFromInt(f.ret)}, nil
}

func (f *fixed) Evaluate(_ context.Context, _ domain.PriceSeries, _ decimal.Decimal, w *domain.Window) (*strategy.Outcome, error) {
	f.evaluated = w
	return &strategy.Outcome{Kind: f.kind, Window: w, Return: decimal.NewFromInt(f.ret)}, nil
}

func outcome(kind domain.StrategyKind, ret int64) *strategy.Outcome {
	return &strategy.Outcome{Kind: kind, Return: decimal.NewFromInt(ret)}
}

func TestPick(t *testing.T) {
	tests := []struct {
		name          string
		base, sma, em int64
		want          domain.StrategyKind
	}{
		{"baseline strictly best", 1200, 1100, 1150, domain.StrategyBuyAndHold},
		{"baseline ties sma", 1200, 1200, 1100, domain.StrategySMA},
		{"baseline ties ema", 1200, 1100, 1200, domain.StrategyEMA},
		{"sma strictly best", 1000, 1300, 1250, domain.StrategySMA},
		{"sma ties ema", 1000, 1300, 1300, domain.StrategyEMA},
		{"ema best", 1000, 900, 1100, domain.StrategyEMA},
		{"all equal", 1000, 1000, 1000, domain.StrategyEMA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Pick(
				outcome(domain.StrategyBuyAndHold, tt.base),
				outcome(domain.StrategySMA, tt.sma),
				outcome(domain.StrategyEMA, tt.em),
			)
			assert.Equal(t, tt.want, got.Kind)
		})
	}
}

func wave(n int) domain.PriceSeries {
	s := domain.PriceSeries{Symbol: "WAVE"}
	start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := 60 + 9*math.Sin(float64(i)/5)
		s.Bars = append(s.Bars, domain.Bar{Symbol: "WAVE", Timestamp: start.AddDate(0, 0, i), Open: c, Close: c})
	}
	return s
}

func TestChooseBestWithStubs(t *testing.T) {
	w := &domain.Window{Short: 3, Long: 10}
	sel := New(
		&fixed{kind: domain.StrategyBuyAndHold, ret: 1000},
		&fixed{kind: domain.StrategySMA, ret: 1100, window: &domain.Window{Short: 2, Long: 8}},
		&fixed{kind: domain.StrategyEMA, ret: 1100, window: w},
		30, discard,
	)

	c, err := sel.ChooseBest(context.Background(), wave(100), decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyEMA, c.Kind)
	assert.Equal(t, w, c.Window)
	assert.Equal(t, "WAVE", c.Symbol)

	// The chart covers only the plotted tail.
	assert.Equal(t, 30, c.Plot.Len())
	assert.Len(t, c.Signals, 30)
	assert.Len(t, c.Short, 30)
	assert.Len(t, c.Long, 30)
}

func TestChooseBestBaselineChart(t *testing.T) {
	sel := New(
		&fixed{kind: domain.StrategyBuyAndHold, ret: 2000},
		&fixed{kind: domain.StrategySMA, ret: 1100, window: &domain.Window{Short: 2, Long: 8}},
		&fixed{kind: domain.StrategyEMA, ret: 1100, window: &domain.Window{Short: 2, Long: 8}},
		0, discard,
	)
	c, err := sel.ChooseBest(context.Background(), wave(50), decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyBuyAndHold, c.Kind)
	assert.Nil(t, c.Window)
	assert.Equal(t, 50, c.Plot.Len())
	assert.Len(t, c.Signals, 50)
	assert.Nil(t, c.Short)
}

func TestReplayUsesSavedWindows(t *testing.T) {
	sma := &fixed{kind: domain.StrategySMA, ret: 1300}
	ema := &fixed{kind: domain.StrategyEMA, ret: 1200, window: &domain.Window{Short: 2, Long: 8}}
	sel := New(&fixed{kind: domain.StrategyBuyAndHold, ret: 1000}, sma, ema, 0, discard)

	saved := map[domain.StrategyKind]domain.SavedParams{
		domain.StrategySMA: {Kind: domain.StrategySMA, Window: &domain.Window{Short: 4, Long: 12}},
	}
	c, err := sel.Replay(context.Background(), wave(60), decimal.NewFromInt(1000), saved)
	require.NoError(t, err)

	assert.False(t, sma.optimized, "saved sma window should be replayed")
	assert.Equal(t, &domain.Window{Short: 4, Long: 12}, sma.evaluated)
	assert.True(t, ema.optimized, "ema without saved params should be searched")
	assert.Equal(t, domain.StrategySMA, c.Kind)
}

func TestChooseBestErrors(t *testing.T) {
	boom := errors.New("boom")
	sel := New(
		&fixed{kind: domain.StrategyBuyAndHold, ret: 1000},
		&fixed{kind: domain.StrategySMA, err: boom},
		&fixed{kind: domain.StrategyEMA, ret: 1000, window: &domain.Window{Short: 2, Long: 8}},
		0, discard,
	)
	_, err := sel.ChooseBest(context.Background(), wave(40), decimal.NewFromInt(1000))
	assert.ErrorIs(t, err, boom)

	_, err = sel.ChooseBest(context.Background(), domain.PriceSeries{}, decimal.NewFromInt(1000))
	assert.ErrorIs(t, err, domain.ErrEmptySeries)
}

func TestChooseBestEndToEnd(t *testing.T) {
	fees, err := engine.NewFeeSchedule(0.0025, 1)
	require.NoError(t, err)
	sim := engine.NewSimulator(fees)
	searcher := search.NewSearcher(sim, 0, 0, discard)
	bounds := search.Bounds{
		Short:         search.Range{Min: 2, Max: 10, Step: 1},
		Long:          search.Range{Min: 10, Max: 40, Step: 5},
		MinSeparation: 5,
	}
	sma, err := builtins.NewMACross(domain.StrategySMA, bounds, sim, searcher)
	require.NoError(t, err)
	ema, err := builtins.NewMACross(domain.StrategyEMA, bounds, sim, searcher)
	require.NoError(t, err)
	sel := New(builtins.NewBuyAndHold(sim), sma, ema, 60, discard)

	series := wave(250)
	capital := decimal.NewFromInt(10000)
	c, err := sel.ChooseBest(context.Background(), series, capital)
	require.NoError(t, err)

	// The winner's return is the maximum under the policy.
	want := Pick(c.Baseline, c.SMA, c.EMA)
	assert.Equal(t, want.Kind, c.Kind)
	assert.True(t, c.Return.Equal(want.Return))

	again, err := sel.ChooseBest(context.Background(), series, capital)
	require.NoError(t, err)
	assert.Equal(t, c.Kind, again.Kind)
	assert.Equal(t, c.Window, again.Window)
	assert.True(t, c.Return.Equal(again.Return))
}
