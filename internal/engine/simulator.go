// Package engine replays trading decisions against daily bars. It owns the fee
// model, position sizing, the signal-driven execution simulator and the
// buy-and-hold baseline.
package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"stratbench/internal/domain"
)

var (
	// ErrSignalMismatch is returned when a signal series is not aligned 1:1
	// with its price series.
	ErrSignalMismatch = errors.New("signal series length does not match price series")

	// ErrNegativeCapital is returned when a run starts with negative cash.
	ErrNegativeCapital = errors.New("initial capital must not be negative")
)

// Result is the outcome of replaying one strategy over one series.
type Result struct {
	TerminalCash decimal.Decimal
	// Trades counts executed buy and sell legs.
	Trades int
	// Aborted is set when a buy fired with no cash left; TerminalCash is then 0.
	Aborted bool
}

// Simulator executes signals with a fixed fee schedule. It holds no per-run
// state and is safe for concurrent use.
type Simulator struct {
	Fees FeeSchedule
}

// NewSimulator creates a Simulator charging fees on every buy and sell leg.
func NewSimulator(fees FeeSchedule) *Simulator {
	return &Simulator{Fees: fees}
}

// position is the binary holding state of a single run: flat, or one block of
// shares bought in a single transaction.
type position struct {
	cash         decimal.Decimal
	shares       int64
	lastPurchase decimal.Decimal
	trades       int
}

// Simulate walks the series once. A signal observed on bar i fills at the
// midpoint of bar i+1 (the last bar fills at its own midpoint). A position
// still open after the last bar is unwound by refunding its purchase cost.
func (sim *Simulator) Simulate(series domain.PriceSeries, signals []domain.Signal, capital decimal.Decimal) (Result, error) {
	if err := checkInputs(series, capital); err != nil {
		return Result{}, err
	}
	if len(signals) != series.Len() {
		return Result{}, fmt.Errorf("%w: %d signals for %d bars", ErrSignalMismatch, len(signals), series.Len())
	}

	pos := position{cash: capital}
	last := series.Len() - 1

	for i, sig := range signals {
		if sig == domain.SignalHold {
			continue
		}
		price := series.Midpoint(min(i+1, last))

		switch sig {
		case domain.SignalBuy:
			if pos.cash.Sign() <= 0 {
				return Result{TerminalCash: decimal.Zero, Trades: pos.trades, Aborted: true}, nil
			}
			if pos.shares > 0 {
				continue
			}
			shares, spend := sim.Fees.MaxAffordable(pos.cash, price)
			if shares == 0 {
				continue
			}
			pos.cash = pos.cash.Sub(spend)
			pos.shares = shares
			pos.lastPurchase = spend
			pos.trades++

		case domain.SignalSell:
			if pos.shares == 0 {
				continue
			}
			pos.cash = pos.cash.Add(sim.Fees.Proceeds(pos.shares, price))
			pos.shares = 0
			pos.trades++
		}
	}

	if pos.shares > 0 {
		pos.cash = pos.cash.Add(pos.lastPurchase)
		pos.shares = 0
	}

	return Result{TerminalCash: pos.cash, Trades: pos.trades}, nil
}

func checkInputs(series domain.PriceSeries, capital decimal.Decimal) error {
	if series.Len() == 0 {
		return domain.ErrEmptySeries
	}
	if capital.Sign() < 0 {
		return ErrNegativeCapital
	}
	return nil
}
