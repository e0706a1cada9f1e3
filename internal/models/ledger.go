package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger is the per-account credit accounting state.
// Principal and all asset amounts are kept in the smallest units of the
// deposited asset (e.g. 6 decimals for USDC). Shares is the scaled balance
// on the yield source: amount divided by the exchange rate at deposit time,
// so current redeemable value is shares multiplied by the current rate.
type Ledger struct {
	AccountID    string
	Principal    int64
	Shares       decimal.Decimal
	DepositedAt  time.Time
	BaseCredits  int64
	YieldCredits int64
	CreditsUsed  int64
}

// Active reports whether the account holds a deposit
func (l Ledger) Active() bool {
	return l.Principal > 0
}

// AvailableCredits is derived, never stored
func (l Ledger) AvailableCredits() int64 {
	return l.BaseCredits + l.YieldCredits - l.CreditsUsed
}

// Dashboard is the read model consumed by UI layers: the ledger fields plus
// the figures derived from the current oracle rate. Stale is set when the
// oracle was unreachable and the last-known cached rate was used instead.
type Dashboard struct {
	AccountID        string
	Principal        int64
	DepositedAt      time.Time
	BaseCredits      int64
	YieldCredits     int64
	AvailableCredits int64
	CreditsUsed      int64
	CurrentValue     int64
	YieldEarned      int64
	Stale            bool
}
