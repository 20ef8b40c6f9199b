package engine

import "github.com/shopspring/decimal"

// MaxAffordable returns the largest whole number of shares whose cost at price,
// fee included, fits in cash, together with that total spend. Starting from
// floor(cash/price) the count is walked down until the fee fits; Cost is
// monotonic so the first fit is the maximum.
func (f FeeSchedule) MaxAffordable(cash, price decimal.Decimal) (shares int64, spend decimal.Decimal) {
	if cash.Sign() <= 0 || price.Sign() <= 0 {
		return 0, decimal.Zero
	}

	shares = cash.Div(price).Floor().IntPart()
	for shares > 0 {
		amount := price.Mul(decimal.NewFromInt(shares))
		spend = amount.Add(f.Cost(amount))
		if spend.LessThanOrEqual(cash) {
			return shares, spend
		}
		shares--
	}
	return 0, decimal.Zero
}

// Proceeds returns the cash credited for selling shares at price, net of fees.
func (f FeeSchedule) Proceeds(shares int64, price decimal.Decimal) decimal.Decimal {
	amount := price.Mul(decimal.NewFromInt(shares))
	return amount.Sub(f.Cost(amount))
}
