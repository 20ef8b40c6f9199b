package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidFees is returned when a fee schedule has a negative component.
var ErrInvalidFees = errors.New("invalid fee schedule")

// FeeSchedule prices a single transaction as a percentage of its amount with
// a fixed floor.
type FeeSchedule struct {
	PercentRate decimal.Decimal
	MinimumFee  decimal.Decimal
}

// NewFeeSchedule builds a schedule from configuration values, e.g. a rate of
// 0.0025 (0.25%) with a minimum of 1.
func NewFeeSchedule(percentRate, minimumFee float64) (FeeSchedule, error) {
	if percentRate < 0 || minimumFee < 0 {
		return FeeSchedule{}, fmt.Errorf("%w: rate %v, minimum %v", ErrInvalidFees, percentRate, minimumFee)
	}
	return FeeSchedule{
		PercentRate: decimal.NewFromFloat(percentRate),
		MinimumFee:  decimal.NewFromFloat(minimumFee),
	}, nil
}

// Cost returns the fee charged for a transaction of the given amount. A zero
// amount is free; any other amount pays max(amount*rate, minimum).
func (f FeeSchedule) Cost(amount decimal.Decimal) decimal.Decimal {
	if amount.Sign() <= 0 {
		return decimal.Zero
	}
	return decimal.Max(amount.Mul(f.PercentRate), f.MinimumFee)
}
