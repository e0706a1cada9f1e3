package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/neverpay/creditledger/internal/apperrors"
	"github.com/neverpay/creditledger/internal/models"
)

type ActionRepo struct {
	DB DBTX
}

const createAction = `-- name: CreateAction
INSERT INTO actions (id, account_id, platform_id, label, amount, remaining, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (account_id, id) DO NOTHING
`

// Create inserts the idempotency record. Runs under the account row lock, so
// the insert and the following lookup on conflict cannot interleave with a
// concurrent retry of the same action.
func (r *ActionRepo) Create(ctx context.Context, a models.Action) (bool, models.Action, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	tag, err := r.DB.Exec(ctx, createAction,
		a.ID, a.AccountID, nullableUUID(a.PlatformID), a.Label, a.Amount, a.Remaining, a.CreatedAt)
	if err != nil {
		return false, a, fmt.Errorf("db error: %w", err)
	}

	if tag.RowsAffected() == 1 {
		return true, a, nil
	}

	stored, err := r.Get(ctx, a.AccountID, a.ID)
	if err != nil {
		return false, stored, err
	}

	return false, stored, nil
}

const getAction = `-- name: GetAction
SELECT id, account_id, platform_id, label, amount, remaining, created_at
FROM actions
WHERE account_id = $1 AND id = $2
`

func (r *ActionRepo) Get(ctx context.Context, accountID string, actionID string) (models.Action, error) {
	rows, _ := r.DB.Query(ctx, getAction, accountID, actionID)
	action, err := pgx.CollectOneRow(rows, rowToAction)

	switch {
	case err == nil:
		return action, nil
	case errors.Is(err, pgx.ErrNoRows):
		return action, apperrors.ErrActionNotFound
	default:
		return action, fmt.Errorf("db error: %w", err)
	}
}

func nullableUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

func rowToAction(row pgx.CollectableRow) (models.Action, error) {
	var a models.Action
	var platformID uuid.NullUUID

	err := row.Scan(&a.ID, &a.AccountID, &platformID, &a.Label, &a.Amount, &a.Remaining, &a.CreatedAt)
	a.PlatformID = platformID.UUID

	return a, err
}
