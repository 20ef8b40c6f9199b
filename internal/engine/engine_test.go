package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratbench/internal/domain"
)

const (
	H = domain.SignalHold
	B = domain.SignalBuy
	S = domain.SignalSell
)

// flatSeries builds bars whose open equals close, so each midpoint is the
// given price.
func flatSeries(prices ...float64) domain.PriceSeries {
	s := domain.PriceSeries{Symbol: "TEST"}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, p := range prices {
		s.Bars = append(s.Bars, domain.Bar{
			Symbol:    "TEST",
			Timestamp: start.AddDate(0, 0, i),
			Open:      p,
			Close:     p,
		})
	}
	return s
}

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func mustFees(t *testing.T, rate, minimum float64) FeeSchedule {
	t.Helper()
	f, err := NewFeeSchedule(rate, minimum)
	require.NoError(t, err)
	return f
}

func TestFeeCost(t *testing.T) {
	f := mustFees(t, 0.01, 1)

	assert.True(t, f.Cost(decimal.Zero).IsZero(), "zero amount is free")
	assert.True(t, f.Cost(dec(50)).Equal(dec(1)), "minimum fee applies below the break-even amount")
	assert.True(t, f.Cost(dec(100)).Equal(dec(1)))
	assert.True(t, f.Cost(dec(1000)).Equal(dec(10)))
}

func TestFeeCostMonotonic(t *testing.T) {
	f := mustFees(t, 0.0025, 5)
	prev := decimal.Zero
	for a := 0; a <= 5000; a += 7 {
		c := f.Cost(decimal.NewFromInt(int64(a)))
		require.True(t, c.GreaterThanOrEqual(prev), "cost(%d) = %s dropped below %s", a, c, prev)
		prev = c
	}
}

func TestNewFeeScheduleRejectsNegative(t *testing.T) {
	_, err := NewFeeSchedule(-0.1, 0)
	assert.ErrorIs(t, err, ErrInvalidFees)
	_, err = NewFeeSchedule(0.1, -1)
	assert.ErrorIs(t, err, ErrInvalidFees)
}

func TestMaxAffordable(t *testing.T) {
	f := mustFees(t, 0.01, 1)

	shares, spend := f.MaxAffordable(dec(1000), dec(100))
	assert.Equal(t, int64(9), shares)
	assert.True(t, spend.Equal(dec(909)), "spend = %s", spend)

	// The fee floor makes a single 50 share unaffordable with exactly 50 cash.
	shares, spend = f.MaxAffordable(dec(50), dec(50))
	assert.Equal(t, int64(0), shares)
	assert.True(t, spend.IsZero())

	shares, _ = f.MaxAffordable(decimal.Zero, dec(10))
	assert.Equal(t, int64(0), shares)
}

func TestBuyAndHoldConstantRise(t *testing.T) {
	sim := NewSimulator(mustFees(t, 0, 0))
	series := flatSeries(100, 110, 121)

	res, err := sim.BuyAndHold(series, dec(1000))
	require.NoError(t, err)
	assert.True(t, res.TerminalCash.Equal(dec(1210)), "terminal cash = %s, want 1210", res.TerminalCash)
	assert.Equal(t, 2, res.Trades)
}

func TestBuyAndHoldDeterministic(t *testing.T) {
	sim := NewSimulator(mustFees(t, 0.0025, 1))
	series := flatSeries(37.5, 41.2, 39.9, 44.1, 48.3)

	a, err := sim.BuyAndHold(series, dec(1000))
	require.NoError(t, err)
	b, err := sim.BuyAndHold(series, dec(1000))
	require.NoError(t, err)
	assert.True(t, a.TerminalCash.Equal(b.TerminalCash))
}

func TestBuyAndHoldFees(t *testing.T) {
	sim := NewSimulator(mustFees(t, 0.01, 1))
	series := flatSeries(100, 200)

	// 9 shares for 900 + 9 fee; sold for 1800 - 18 fee; 91 cash left over.
	res, err := sim.BuyAndHold(series, dec(1000))
	require.NoError(t, err)
	assert.True(t, res.TerminalCash.Equal(dec(1873)), "terminal cash = %s, want 1873", res.TerminalCash)
}

func TestSimulateSettlementLag(t *testing.T) {
	sim := NewSimulator(mustFees(t, 0, 0))
	series := flatSeries(100, 200, 400, 400)

	// Buy seen on bar 0 fills at bar 1 (200); sell seen on bar 1 fills at bar 2 (400).
	res, err := sim.Simulate(series, []domain.Signal{B, S, H, H}, dec(1000))
	require.NoError(t, err)
	assert.True(t, res.TerminalCash.Equal(dec(2000)), "terminal cash = %s, want 2000", res.TerminalCash)
	assert.Equal(t, 2, res.Trades)
}

func TestSimulateLastBarFillsAtOwnMidpoint(t *testing.T) {
	sim := NewSimulator(mustFees(t, 0, 0))
	series := flatSeries(100, 100, 100, 150)

	// Buy on bar 2 fills at bar 3 (150): 6 shares, 100 cash left. Sell on the
	// last bar fills at that same bar.
	res, err := sim.Simulate(series, []domain.Signal{H, H, B, S}, dec(1000))
	require.NoError(t, err)
	assert.True(t, res.TerminalCash.Equal(dec(1000)), "terminal cash = %s, want 1000", res.TerminalCash)
}

func TestSimulateInsufficientCash(t *testing.T) {
	sim := NewSimulator(mustFees(t, 0, 0))
	series := flatSeries(100, 100, 100, 300)

	// The first buy spends every unit of cash; the second buy then aborts the
	// run even though a profitable sell follows.
	res, err := sim.Simulate(series, []domain.Signal{B, B, S, H}, dec(1000))
	require.NoError(t, err)
	assert.True(t, res.Aborted)
	assert.True(t, res.TerminalCash.IsZero(), "terminal cash = %s, want 0", res.TerminalCash)

	res, err = sim.Simulate(series, []domain.Signal{H, B, S, H}, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, res.Aborted)
	assert.True(t, res.TerminalCash.IsZero())
}

func TestSimulateOpenPositionRefund(t *testing.T) {
	sim := NewSimulator(mustFees(t, 0.01, 1))
	series := flatSeries(100, 100, 100, 200)

	// Buy fills at 100: 9 shares for 909. The price doubles afterwards but the
	// open position is unwound at its purchase cost, not at 9*200.
	res, err := sim.Simulate(series, []domain.Signal{H, B, H, H}, dec(1000))
	require.NoError(t, err)
	assert.True(t, res.TerminalCash.Equal(dec(1000)), "terminal cash = %s, want 1000", res.TerminalCash)
	assert.False(t, res.TerminalCash.Equal(dec(91+1800)))
}

func TestSimulateNoOps(t *testing.T) {
	sim := NewSimulator(mustFees(t, 0, 0))
	series := flatSeries(100, 100, 100, 120)

	// Sell while flat is ignored; the buy at 100 and sell at 120 realize 20%.
	res, err := sim.Simulate(series, []domain.Signal{S, B, S, H}, dec(1000))
	require.NoError(t, err)
	assert.True(t, res.TerminalCash.Equal(dec(1200)), "terminal cash = %s, want 1200", res.TerminalCash)
	assert.Equal(t, 2, res.Trades)
}

func TestSimulateErrors(t *testing.T) {
	sim := NewSimulator(FeeSchedule{})

	_, err := sim.Simulate(domain.PriceSeries{}, nil, dec(1000))
	assert.ErrorIs(t, err, domain.ErrEmptySeries)

	_, err = sim.Simulate(flatSeries(1, 2), []domain.Signal{H}, dec(1000))
	assert.ErrorIs(t, err, ErrSignalMismatch)

	_, err = sim.Simulate(flatSeries(1, 2), []domain.Signal{H, H}, dec(-1))
	assert.ErrorIs(t, err, ErrNegativeCapital)

	_, err = sim.BuyAndHold(domain.PriceSeries{}, dec(1000))
	assert.ErrorIs(t, err, domain.ErrEmptySeries)
}
