package engine

import (
	"github.com/shopspring/decimal"

	"stratbench/internal/domain"
)

// BuyAndHold buys the largest affordable position at the first bar's
// midpoint and sells all of it at the last bar's midpoint, paying fees on
// both legs.
func (sim *Simulator) BuyAndHold(series domain.PriceSeries, capital decimal.Decimal) (Result, error) {
	if err := checkInputs(series, capital); err != nil {
		return Result{}, err
	}

	shares, spend := sim.Fees.MaxAffordable(capital, series.Midpoint(0))
	if shares == 0 {
		return Result{TerminalCash: capital}, nil
	}

	cash := capital.Sub(spend)
	cash = cash.Add(sim.Fees.Proceeds(shares, series.Midpoint(series.Len()-1)))
	return Result{TerminalCash: cash, Trades: 2}, nil
}
