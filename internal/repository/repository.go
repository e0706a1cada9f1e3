package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/neverpay/creditledger/internal/models"
)

// Sums over all active ledgers, input for the platform stats read model
type LedgerAggregate struct {
	TotalPrincipal int64
	TotalShares    decimal.Decimal
}

// Ledger repository interface
type LedgerRepo interface {
	// Get ledger for account
	// Returns the zero-value ledger (never an error) if the account has no history
	Get(ctx context.Context, accountID string) (models.Ledger, error)

	// Lock ledger row for update, creating the zero-value row if absent
	// Must be called inside a transaction; serializes same-account mutations
	Lock(ctx context.Context, accountID string) (models.Ledger, error)

	// Save persists the full ledger state for the account
	Save(ctx context.Context, ledger models.Ledger) error

	// List ledgers with an active deposit, oldest refresh candidates first
	ListActive(ctx context.Context, limit int) ([]models.Ledger, error)

	// Aggregate sums principal and shares over active ledgers
	Aggregate(ctx context.Context) (LedgerAggregate, error)
}

// Action repository interface (idempotency keys)
type ActionRepo interface {
	// Create action record if (account, id) was not seen before
	// If it was, returns created=false and the original record unchanged
	Create(ctx context.Context, action models.Action) (created bool, stored models.Action, err error)

	// Get action record
	// If absent must return apperrors.ErrActionNotFound
	Get(ctx context.Context, accountID string, actionID string) (models.Action, error)
}

// Activity repository interface (append-only audit log)
type ActivityRepo interface {
	Append(ctx context.Context, activity models.Activity) error

	// List account activity, newest first
	List(ctx context.Context, accountID string, limit int) ([]models.Activity, error)

	// CreditTotals returns lifetime credits issued and consumed across all
	// accounts, derived from the log
	CreditTotals(ctx context.Context) (issued int64, used int64, err error)
}

// Platform repository interface
type PlatformRepo interface {
	// Create platform
	// If name is taken must return apperrors.ErrPlatformAlreadyExists
	Create(ctx context.Context, name string, keyHash string) (models.Platform, error)

	// Get platform by name or id
	// If not found must return apperrors.ErrPlatformNotFound
	GetByName(ctx context.Context, name string) (models.Platform, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.Platform, error)

	Count(ctx context.Context) (int64, error)
}

type Storage interface {
	Ledger() LedgerRepo
	Action() ActionRepo
	Activity() ActivityRepo
	Platform() PlatformRepo

	// InTx runs fn with a Storage bound to a single transaction.
	// Commits when fn returns nil, rolls back otherwise.
	InTx(ctx context.Context, fn func(s Storage) error) error
}
