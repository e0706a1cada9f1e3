// Package yield holds the pure accrual arithmetic: redeemable value from
// the share balance, and the conversion of asset amounts into credits.
package yield

import (
	"github.com/shopspring/decimal"
)

// Conversion constants. Defaults match the original platform policy:
// 50 credits per whole unit deposited, 80% of which are granted upfront
// as base credits; yield converts at the full credit rate.
type Params struct {
	// Credits granted per whole unit of the asset
	CreditRate decimal.Decimal

	// Share of the credit rate granted at deposit time
	BaseShare decimal.Decimal

	// Decimals of the deposited asset (6 for USDC)
	AssetDecimals int32
}

func DefaultParams() Params {
	return Params{
		CreditRate:    decimal.NewFromInt(50),
		BaseShare:     decimal.RequireFromString("0.8"),
		AssetDecimals: 6,
	}
}

// BaseCredits derives the upfront credit grant from the total principal.
// Always recomputed from the full amount, never incrementally, so repeated
// top-ups don't accumulate rounding drift.
func (p Params) BaseCredits(principal int64) int64 {
	return p.wholeUnits(principal).Mul(p.CreditRate).Mul(p.BaseShare).Floor().IntPart()
}

// YieldCredits converts accrued yield (smallest units) into bonus credits.
func (p Params) YieldCredits(yieldEarned int64) int64 {
	return p.wholeUnits(yieldEarned).Mul(p.CreditRate).Floor().IntPart()
}

func (p Params) wholeUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -p.AssetDecimals)
}

// SharesForDeposit is the scaled balance bought by a deposit at the given
// exchange rate. The share balance stays constant while the rate grows.
func SharesForDeposit(amount int64, rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(amount).Div(rate)
}

// Compute returns the current redeemable value of the share balance and the
// yield earned over the principal, both in smallest units. Yield is clamped
// at zero: rounding on a fresh deposit must not show as a loss.
func Compute(shares decimal.Decimal, principal int64, rate decimal.Decimal) (currentValue int64, yieldEarned int64) {
	currentValue = shares.Mul(rate).Floor().IntPart()

	yieldEarned = currentValue - principal
	if yieldEarned < 0 {
		yieldEarned = 0
	}

	return currentValue, yieldEarned
}
