package strategy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratbench/internal/domain"
)

// stubStrategy is a minimal Strategy implementation used in registry tests.
type stubStrategy struct {
	name string
	kind domain.StrategyKind
	seen int
}

func (s *stubStrategy) Name() string              { return s.name }
func (s *stubStrategy) Kind() domain.StrategyKind { return s.kind }

func (s *stubStrategy) Optimize(_ context.Context, series domain.PriceSeries, capital decimal.Decimal) (*Outcome, error) {
	s.seen = series.Len()
	return &Outcome{Kind: s.kind, Return: capital.Add(decimal.NewFromInt(int64(series.Len())))}, nil
}

func (s *stubStrategy) Evaluate(ctx context.Context, series domain.PriceSeries, capital decimal.Decimal, _ *domain.Window) (*Outcome, error) {
	return s.Optimize(ctx, series, capital)
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubStrategy{name: "test-strategy"})

	got, ok := r.Get("test-strategy")
	require.True(t, ok, "registered strategy not found")
	assert.Equal(t, "test-strategy", got.Name())
}

func TestRegistryGet_NotFound(t *testing.T) {
	_, ok := NewRegistry().Get("nonexistent")
	assert.False(t, ok)
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry(&stubStrategy{name: "beta"}, &stubStrategy{name: "alpha"})
	// List returns sorted names.
	assert.Equal(t, []string{"alpha", "beta"}, r.List())
}

func TestRegistryByKind(t *testing.T) {
	r := NewRegistry(
		&stubStrategy{name: "sma-b", kind: domain.StrategySMA},
		&stubStrategy{name: "sma-a", kind: domain.StrategySMA},
		&stubStrategy{name: "ema", kind: domain.StrategyEMA},
	)

	s, ok := r.ByKind(domain.StrategySMA)
	require.True(t, ok)
	assert.Equal(t, "sma-a", s.Name())

	_, ok = r.ByKind(domain.StrategyBuyAndHold)
	assert.False(t, ok, "buy-and-hold was never registered")
}

// memBarStore serves a fixed set of bars.
type memBarStore struct {
	bars []domain.Bar
	err  error
}

func (m *memBarStore) WriteBars(context.Context, []domain.Bar) error { return nil }

func (m *memBarStore) ReadBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Bar
	for _, b := range m.bars {
		if b.Symbol == symbol && !b.Timestamp.Before(start) && !b.Timestamp.After(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBarStore) ListSymbols(context.Context) ([]string, error) { return []string{"TEST"}, nil }

func TestBacktesterRun(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	stub := &stubStrategy{name: "stub", kind: domain.StrategySMA}
	bars := closeSeries(1, 2, 3, 4, 5).Bars
	bt := NewBacktester(&memBarStore{bars: bars}, NewRegistry(stub), log)

	start, end := bars[1].Timestamp, bars[3].Timestamp
	res, err := bt.Run(context.Background(), "stub", "TEST", start, end, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Bars)
	assert.Equal(t, 3, stub.seen)
	assert.True(t, res.Start.Equal(start), "start = %s", res.Start)
	assert.True(t, res.End.Equal(end), "end = %s", res.End)
	assert.True(t, res.Outcome.Return.Equal(decimal.NewFromInt(103)), "return = %s", res.Outcome.Return)
}

func TestBacktesterErrors(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	capital := decimal.NewFromInt(100)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	bt := NewBacktester(&memBarStore{}, NewRegistry(&stubStrategy{name: "stub"}), log)
	_, err := bt.Run(ctx, "missing", "TEST", day, day, capital)
	assert.Error(t, err, "unknown strategy")
	_, err = bt.Run(ctx, "stub", "TEST", day, day, capital)
	assert.ErrorIs(t, err, domain.ErrEmptySeries)

	boom := errors.New("disk gone")
	bt = NewBacktester(&memBarStore{err: boom}, NewRegistry(&stubStrategy{name: "stub"}), log)
	_, err = bt.Run(ctx, "stub", "TEST", day, day, capital)
	assert.ErrorIs(t, err, boom)
}
