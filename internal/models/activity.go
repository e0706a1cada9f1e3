package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	OpDeposit      = "deposit"
	OpWithdraw     = "withdraw"
	OpConsume      = "consume"
	OpYieldAccrual = "yield_accrual"
)

// Activity is one row of the append-only audit log. Every successful ledger
// mutation appends exactly one row in the same transaction.
type Activity struct {
	ID            uuid.UUID
	CreatedAt     time.Time
	AccountID     string
	Op            string
	AssetAmount   int64
	CreditDelta   int64
	CreditsBefore int64
	CreditsAfter  int64
}
