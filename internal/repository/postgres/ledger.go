package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/neverpay/creditledger/internal/models"
	"github.com/neverpay/creditledger/internal/repository"
)

type LedgerRepo struct {
	DB DBTX
}

const ledgerColumns = "account_id, principal, shares, deposited_at, base_credits, yield_credits, credits_used"

const getLedger = `-- name: GetLedger
SELECT account_id, principal, shares, deposited_at, base_credits, yield_credits, credits_used
FROM ledgers
WHERE account_id = $1
`

// Get returns the zero-value ledger when the account was never seen.
// Accounts are created lazily on first deposit, so absence is not an error.
func (r *LedgerRepo) Get(ctx context.Context, accountID string) (models.Ledger, error) {
	rows, _ := r.DB.Query(ctx, getLedger, accountID)
	ledger, err := pgx.CollectOneRow(rows, rowToLedger)

	switch {
	case err == nil:
		return ledger, nil
	case errors.Is(err, pgx.ErrNoRows):
		return zeroLedger(accountID), nil
	default:
		return ledger, fmt.Errorf("db error: %w", err)
	}
}

const upsertZeroLedger = `-- name: UpsertZeroLedger
INSERT INTO ledgers (account_id)
VALUES ($1)
ON CONFLICT (account_id) DO NOTHING
`

const lockLedger = `-- name: LockLedger
SELECT account_id, principal, shares, deposited_at, base_credits, yield_credits, credits_used
FROM ledgers
WHERE account_id = $1
FOR UPDATE
`

// Lock creates the row if needed and takes a row lock on it.
// Caller must run it inside InTx, the lock is what serializes concurrent
// mutations of the same account.
func (r *LedgerRepo) Lock(ctx context.Context, accountID string) (models.Ledger, error) {
	if _, err := r.DB.Exec(ctx, upsertZeroLedger, accountID); err != nil {
		return models.Ledger{}, fmt.Errorf("db error: %w", err)
	}

	rows, _ := r.DB.Query(ctx, lockLedger, accountID)
	ledger, err := pgx.CollectOneRow(rows, rowToLedger)
	if err != nil {
		return ledger, fmt.Errorf("db error: %w", err)
	}

	return ledger, nil
}

const saveLedger = `-- name: SaveLedger
UPDATE ledgers
SET principal = $2, shares = $3, deposited_at = $4, base_credits = $5, yield_credits = $6, credits_used = $7
WHERE account_id = $1
`

func (r *LedgerRepo) Save(ctx context.Context, l models.Ledger) error {
	var depositedAt *time.Time
	if !l.DepositedAt.IsZero() {
		depositedAt = &l.DepositedAt
	}

	tag, err := r.DB.Exec(ctx, saveLedger,
		l.AccountID, l.Principal, l.Shares, depositedAt, l.BaseCredits, l.YieldCredits, l.CreditsUsed)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger row missing for account %s, lock it before saving", l.AccountID)
	}

	return nil
}

const listActiveLedgers = `-- name: ListActiveLedgers
SELECT account_id, principal, shares, deposited_at, base_credits, yield_credits, credits_used
FROM ledgers
WHERE principal > 0
ORDER BY deposited_at
LIMIT $1
`

func (r *LedgerRepo) ListActive(ctx context.Context, limit int) ([]models.Ledger, error) {
	rows, _ := r.DB.Query(ctx, listActiveLedgers, limit)
	ledgers, err := pgx.CollectRows(rows, rowToLedger)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return ledgers, nil
}

const aggregateLedgers = `-- name: AggregateLedgers
SELECT COALESCE(SUM(principal), 0), COALESCE(SUM(shares), 0)
FROM ledgers
WHERE principal > 0
`

func (r *LedgerRepo) Aggregate(ctx context.Context) (repository.LedgerAggregate, error) {
	var agg repository.LedgerAggregate

	err := r.DB.QueryRow(ctx, aggregateLedgers).Scan(&agg.TotalPrincipal, &agg.TotalShares)
	if err != nil {
		return agg, fmt.Errorf("db error: %w", err)
	}

	return agg, nil
}

func zeroLedger(accountID string) models.Ledger {
	return models.Ledger{AccountID: accountID, Shares: decimal.Zero}
}

func rowToLedger(row pgx.CollectableRow) (models.Ledger, error) {
	var l models.Ledger
	var depositedAt *time.Time

	err := row.Scan(&l.AccountID, &l.Principal, &l.Shares, &depositedAt, &l.BaseCredits, &l.YieldCredits, &l.CreditsUsed)
	if depositedAt != nil {
		l.DepositedAt = *depositedAt
	}

	return l, err
}
