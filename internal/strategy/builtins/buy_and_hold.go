package builtins

import (
	"context"

	"github.com/shopspring/decimal"

	"stratbench/internal/domain"
	"stratbench/internal/engine"
	"stratbench/internal/strategy"
)

var _ strategy.Strategy = (*BuyAndHold)(nil)

// BuyAndHold is the baseline every crossover has to beat.
type BuyAndHold struct {
	sim *engine.Simulator
}

func NewBuyAndHold(sim *engine.Simulator) *BuyAndHold {
	return &BuyAndHold{sim: sim}
}

func (b *BuyAndHold) Name() string              { return string(domain.StrategyBuyAndHold) }
func (b *BuyAndHold) Kind() domain.StrategyKind { return domain.StrategyBuyAndHold }

// Optimize has nothing to search; it runs the baseline once.
func (b *BuyAndHold) Optimize(ctx context.Context, series domain.PriceSeries, capital decimal.Decimal) (*strategy.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := b.sim.BuyAndHold(series, capital)
	if err != nil {
		return nil, err
	}
	return &strategy.Outcome{Kind: domain.StrategyBuyAndHold, Return: res.TerminalCash, Cells: 1}, nil
}

// Evaluate ignores window.
func (b *BuyAndHold) Evaluate(ctx context.Context, series domain.PriceSeries, capital decimal.Decimal, _ *domain.Window) (*strategy.Outcome, error) {
	return b.Optimize(ctx, series, capital)
}
