package search

import (
	"context"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratbench/internal/domain"
	"stratbench/internal/engine"
	"stratbench/internal/strategy"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// wavySeries is a trending sine wave, enough to make crossovers fire many
// times at different window lengths.
func wavySeries(n int) domain.PriceSeries {
	s := domain.PriceSeries{Symbol: "WAVE"}
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := 100 + 12*math.Sin(float64(i)/6) + 0.15*float64(i)
		s.Bars = append(s.Bars, domain.Bar{
			Symbol:    "WAVE",
			Timestamp: start.AddDate(0, 0, i),
			Open:      c - 0.5,
			Close:     c,
		})
	}
	return s
}

func newSim(t *testing.T) *engine.Simulator {
	t.Helper()
	fees, err := engine.NewFeeSchedule(0.0025, 1)
	require.NoError(t, err)
	return engine.NewSimulator(fees)
}

var testBounds = Bounds{
	Short:         Range{Min: 2, Max: 12, Step: 1},
	Long:          Range{Min: 10, Max: 40, Step: 5},
	MinSeparation: 3,
}

func TestNewSearcherDefaults(t *testing.T) {
	s := NewSearcher(newSim(t), 0, 0, discard)
	assert.Equal(t, runtime.NumCPU(), s.workers)
	assert.Equal(t, DefaultTopK, s.topK)

	s = NewSearcher(newSim(t), 3, 4, discard)
	assert.Equal(t, 3, s.workers)
	assert.Equal(t, 4, s.topK)
}

func TestBoundsCells(t *testing.T) {
	b := Bounds{
		Short:         Range{Min: 3, Max: 6, Step: 1},
		Long:          Range{Min: 5, Max: 10, Step: 5},
		MinSeparation: 2,
	}
	want := []domain.Window{{Short: 3, Long: 5}, {Short: 3, Long: 10}, {Short: 4, Long: 10}, {Short: 5, Long: 10}, {Short: 6, Long: 10}}
	assert.Equal(t, want, b.Cells())
}

func TestBoundsValidate(t *testing.T) {
	require.NoError(t, testBounds.Validate(100))

	tests := []struct {
		name string
		b    Bounds
		n    int
	}{
		{"long beyond series", testBounds, 30},
		{"zero short", Bounds{Short: Range{0, 3, 1}, Long: Range{5, 6, 1}}, 10},
		{"zero step", Bounds{Short: Range{1, 3, 0}, Long: Range{5, 6, 1}}, 10},
		{"inverted range", Bounds{Short: Range{4, 3, 1}, Long: Range{5, 6, 1}}, 10},
		{"empty grid", Bounds{Short: Range{8, 9, 1}, Long: Range{5, 6, 1}}, 10},
		{"negative separation", Bounds{Short: Range{1, 2, 1}, Long: Range{5, 6, 1}, MinSeparation: -1}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.b.Validate(tt.n), strategy.ErrInvalidParameters)
		})
	}
}

func TestTrackerOrderIndependent(t *testing.T) {
	cands := []candidate{
		{idx: 0, window: domain.Window{Short: 1, Long: 5}, ret: decimal.NewFromInt(100)},
		{idx: 1, window: domain.Window{Short: 2, Long: 5}, ret: decimal.NewFromInt(90)},
		{idx: 2, window: domain.Window{Short: 3, Long: 5}, ret: decimal.NewFromInt(100)},
		{idx: 3, window: domain.Window{Short: 4, Long: 5}, ret: decimal.NewFromInt(100)},
		{idx: 4, window: domain.Window{Short: 1, Long: 6}, ret: decimal.NewFromInt(80)},
	}

	sequential := newTracker(3)
	for _, c := range cands {
		sequential.observe(c)
	}
	wantBest, wantTop := sequential.snapshot()

	// First seen wins ties for the best slot.
	assert.Equal(t, 0, wantBest.idx)
	// Ascending, equal returns in enumeration order, lowest dropped first.
	assert.Equal(t, []domain.Window{{Short: 1, Long: 5}, {Short: 3, Long: 5}, {Short: 4, Long: 5}}, windows(wantTop))

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		shuffled := append([]candidate(nil), cands...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		tr := newTracker(3)
		for _, c := range shuffled {
			tr.observe(c)
		}
		best, top := tr.snapshot()
		assert.Equal(t, wantBest.idx, best.idx)
		assert.Equal(t, windows(wantTop), windows(top))
	}
}

func windows(ranked []domain.RankedWindow) []domain.Window {
	out := make([]domain.Window, len(ranked))
	for i, r := range ranked {
		out[i] = r.Window
	}
	return out
}

func TestRunMatchesSequentialScan(t *testing.T) {
	series := wavySeries(160)
	sim := newSim(t)
	capital := decimal.NewFromInt(1000)

	var (
		bestW   domain.Window
		bestRet decimal.Decimal
		seen    bool
	)
	for _, w := range testBounds.Cells() {
		res, _, err := strategy.Replay(sim, series, domain.StrategySMA, w, capital)
		require.NoError(t, err)
		if !seen || res.TerminalCash.GreaterThan(bestRet) {
			bestW, bestRet, seen = w, res.TerminalCash, true
		}
	}

	got, err := NewSearcher(sim, 4, 0, discard).Run(context.Background(), series, domain.StrategySMA, testBounds, capital)
	require.NoError(t, err)
	assert.Equal(t, bestW, got.Best)
	assert.True(t, bestRet.Equal(got.BestReturn), "best return %s, want %s", got.BestReturn, bestRet)
	assert.Equal(t, len(testBounds.Cells()), got.Cells)
	require.Len(t, got.TopK, DefaultTopK)
	assert.True(t, got.TopK[DefaultTopK-1].Return.Equal(got.BestReturn), "top-K should end with the best return")
}

func TestRunDeterministic(t *testing.T) {
	series := wavySeries(160)
	sim := newSim(t)
	capital := decimal.NewFromInt(1000)

	for _, kind := range []domain.StrategyKind{domain.StrategySMA, domain.StrategyEMA} {
		single, err := NewSearcher(sim, 1, 5, discard).Run(context.Background(), series, kind, testBounds, capital)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			parallel, err := NewSearcher(sim, 8, 5, discard).Run(context.Background(), series, kind, testBounds, capital)
			require.NoError(t, err)
			assert.Equal(t, single.Best, parallel.Best)
			assert.True(t, single.BestReturn.Equal(parallel.BestReturn))
			assert.Equal(t, windows(single.TopK), windows(parallel.TopK))
		}

		for j := 1; j < len(single.TopK); j++ {
			assert.True(t, single.TopK[j-1].Return.LessThanOrEqual(single.TopK[j].Return), "top-K not ascending at %d", j)
		}
	}
}

func TestRunErrors(t *testing.T) {
	s := NewSearcher(newSim(t), 2, 0, discard)
	capital := decimal.NewFromInt(1000)

	_, err := s.Run(context.Background(), wavySeries(20), domain.StrategySMA, testBounds, capital)
	assert.ErrorIs(t, err, strategy.ErrInvalidParameters)

	_, err = s.Run(context.Background(), wavySeries(100), domain.StrategyBuyAndHold, testBounds, capital)
	assert.ErrorIs(t, err, strategy.ErrNotMovingAverage)

	_, err = s.Run(context.Background(), domain.PriceSeries{}, domain.StrategySMA, testBounds, capital)
	assert.ErrorIs(t, err, domain.ErrEmptySeries)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Run(ctx, wavySeries(100), domain.StrategySMA, testBounds, capital)
	assert.ErrorIs(t, err, context.Canceled)
}
