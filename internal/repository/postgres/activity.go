package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/neverpay/creditledger/internal/models"
)

type ActivityRepo struct {
	DB DBTX
}

const appendActivity = `-- name: AppendActivity
INSERT INTO activity (id, created_at, account_id, op, asset_amount, credit_delta, credits_before, credits_after)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

func (r *ActivityRepo) Append(ctx context.Context, a models.Activity) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	_, err := r.DB.Exec(ctx, appendActivity,
		a.ID, a.CreatedAt, a.AccountID, a.Op, a.AssetAmount, a.CreditDelta, a.CreditsBefore, a.CreditsAfter)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

const listActivity = `-- name: ListActivity
SELECT id, created_at, account_id, op, asset_amount, credit_delta, credits_before, credits_after
FROM activity
WHERE account_id = $1
ORDER BY created_at DESC
LIMIT $2
`

func (r *ActivityRepo) List(ctx context.Context, accountID string, limit int) ([]models.Activity, error) {
	rows, _ := r.DB.Query(ctx, listActivity, accountID, limit)
	activities, err := pgx.CollectRows(rows, rowToActivity)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return activities, nil
}

const creditTotals = `-- name: CreditTotals
SELECT
	COALESCE(SUM(credit_delta) FILTER (WHERE op IN ('deposit', 'yield_accrual')), 0),
	COALESCE(SUM(-credit_delta) FILTER (WHERE op = 'consume'), 0)
FROM activity
`

// CreditTotals are lifetime figures: a withdrawal zeroes the ledger but the
// log keeps what was ever issued and consumed.
func (r *ActivityRepo) CreditTotals(ctx context.Context) (int64, int64, error) {
	var issued, used int64

	err := r.DB.QueryRow(ctx, creditTotals).Scan(&issued, &used)
	if err != nil {
		return 0, 0, fmt.Errorf("db error: %w", err)
	}

	return issued, used, nil
}

func rowToActivity(row pgx.CollectableRow) (models.Activity, error) {
	var a models.Activity
	err := row.Scan(&a.ID, &a.CreatedAt, &a.AccountID, &a.Op, &a.AssetAmount, &a.CreditDelta, &a.CreditsBefore, &a.CreditsAfter)
	return a, err
}
