// Package settlement is the only place ledger state transitions happen.
// Every mutation locks the account row, so operations on one account
// serialize while different accounts proceed in parallel.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/neverpay/creditledger/internal/apperrors"
	"github.com/neverpay/creditledger/internal/logger"
	"github.com/neverpay/creditledger/internal/metrics"
	"github.com/neverpay/creditledger/internal/models"
	"github.com/neverpay/creditledger/internal/repository"
	"github.com/neverpay/creditledger/internal/service/oracle"
	"github.com/neverpay/creditledger/internal/service/yield"
)

const defaultMaxAttempts = 3

type rateSource interface {
	ExchangeRate(ctx context.Context) (oracle.Rate, error)
}

type Config struct {
	// Credit conversion constants, defaults applied if zero
	Params yield.Params

	// Attempts before a conflicting transaction surfaces as ErrLedgerBusy
	MaxAttempts int
}

type Service struct {
	storage     repository.Storage
	oracle      rateSource
	params      yield.Params
	maxAttempts int
	logger      logger.Logger
}

func NewService(cfg Config, storage repository.Storage, rates rateSource, l logger.Logger) *Service {
	if cfg.Params.CreditRate.IsZero() {
		cfg.Params = yield.DefaultParams()
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}

	return &Service{
		storage:     storage,
		oracle:      rates,
		params:      cfg.Params,
		maxAttempts: cfg.MaxAttempts,
		logger:      l,
	}
}

// Deposit adds amount (smallest units) to the account position. A deposit on
// an active position is additive and keeps the original deposit timestamp.
// Base credits are recomputed from the total principal. Needs a fresh oracle
// rate to price the bought shares, so it is rejected while the feed is down.
func (s *Service) Deposit(ctx context.Context, accountID string, amount int64) (models.Ledger, error) {
	var ledger models.Ledger

	if amount <= 0 {
		return ledger, apperrors.ErrInvalidAmount
	}

	rate, err := s.oracle.ExchangeRate(ctx)
	switch {
	case errors.Is(err, apperrors.ErrYieldSourceAnomaly):
		return ledger, fmt.Errorf("%w: rate anomaly, refusing to price deposit", apperrors.ErrUpstreamUnavailable)
	case err != nil:
		return ledger, err
	case rate.Stale:
		return ledger, fmt.Errorf("%w: cached rate is not enough to price deposit", apperrors.ErrUpstreamUnavailable)
	}

	err = s.withRetry(ctx, func(st repository.Storage) error {
		l, err := st.Ledger().Lock(ctx, accountID)
		if err != nil {
			return err
		}

		if err := s.accrueYield(ctx, st, &l, rate.Value); err != nil {
			return err
		}

		before := l.AvailableCredits()

		l.Principal += amount
		l.Shares = l.Shares.Add(yield.SharesForDeposit(amount, rate.Value))
		if l.DepositedAt.IsZero() {
			l.DepositedAt = time.Now()
		}

		baseDelta := s.params.BaseCredits(l.Principal) - l.BaseCredits
		l.BaseCredits += baseDelta

		if err := st.Ledger().Save(ctx, l); err != nil {
			return err
		}

		err = st.Activity().Append(ctx, models.Activity{
			AccountID:     accountID,
			Op:            models.OpDeposit,
			AssetAmount:   amount,
			CreditDelta:   baseDelta,
			CreditsBefore: before,
			CreditsAfter:  l.AvailableCredits(),
		})
		if err != nil {
			return err
		}

		metrics.DepositsTotal.Inc()
		metrics.CreditsIssuedTotal.Add(float64(baseDelta))
		ledger = l
		return nil
	})

	return ledger, err
}

// Withdraw empties the position and revokes all credits in one transition.
// Partial withdrawal is not supported. Returns the principal to hand to the
// transfer executor.
func (s *Service) Withdraw(ctx context.Context, accountID string) (int64, error) {
	var withdrawn int64

	err := s.withRetry(ctx, func(st repository.Storage) error {
		l, err := st.Ledger().Lock(ctx, accountID)
		if err != nil {
			return err
		}

		if !l.Active() {
			return apperrors.ErrNothingToWithdraw
		}

		before := l.AvailableCredits()
		withdrawn = l.Principal

		l.Principal = 0
		l.Shares = decimal.Zero
		l.DepositedAt = time.Time{}
		l.BaseCredits = 0
		l.YieldCredits = 0
		l.CreditsUsed = 0

		if err := st.Ledger().Save(ctx, l); err != nil {
			return err
		}

		err = st.Activity().Append(ctx, models.Activity{
			AccountID:     accountID,
			Op:            models.OpWithdraw,
			AssetAmount:   withdrawn,
			CreditDelta:   -before,
			CreditsBefore: before,
			CreditsAfter:  0,
		})
		if err != nil {
			return err
		}

		metrics.WithdrawalsTotal.Inc()
		return nil
	})

	return withdrawn, err
}

// ConsumeCredits deducts amount credits for an action. ActionID makes the
// call idempotent: the record is inserted in the same transaction as the
// decrement, and a replay returns the originally recorded result without
// deducting again. No partial consumption: fails whole when credits are
// short, and the failed attempt leaves no idempotency record behind.
func (s *Service) ConsumeCredits(ctx context.Context, accountID string, amount int64, label string, actionID string, platformID uuid.UUID) (int64, error) {
	if amount <= 0 || actionID == "" {
		return 0, apperrors.ErrInvalidAmount
	}

	// Best effort: consumption must not fail just because the feed is down,
	// stored yield credits are used as-is then.
	rate, rateErr := s.oracle.ExchangeRate(ctx)
	rateUsable := rateErr == nil || errors.Is(rateErr, apperrors.ErrYieldSourceAnomaly)

	var remaining int64

	err := s.withRetry(ctx, func(st repository.Storage) error {
		l, err := st.Ledger().Lock(ctx, accountID)
		if err != nil {
			return err
		}

		if rateUsable {
			if err := s.accrueYield(ctx, st, &l, rate.Value); err != nil {
				return err
			}
		}

		available := l.AvailableCredits()

		created, stored, err := st.Action().Create(ctx, models.Action{
			ID:         actionID,
			AccountID:  accountID,
			PlatformID: platformID,
			Label:      label,
			Amount:     amount,
			Remaining:  available - amount,
		})
		if err != nil {
			return err
		}

		if !created {
			metrics.ConsumeReplaysTotal.Inc()
			s.logger.Info("Replayed consume action", "account", accountID, "action_id", actionID)
			// Yield accrued above still lands, only the deduction is skipped.
			// Committing the accrual activity row without the ledger would
			// desync stored yield_credits from the log.
			if err := st.Ledger().Save(ctx, l); err != nil {
				return err
			}
			remaining = stored.Remaining
			return nil
		}

		if available < amount {
			return apperrors.ErrInsufficientCredits
		}

		l.CreditsUsed += amount
		if err := st.Ledger().Save(ctx, l); err != nil {
			return err
		}

		err = st.Activity().Append(ctx, models.Activity{
			AccountID:     accountID,
			Op:            models.OpConsume,
			CreditDelta:   -amount,
			CreditsBefore: available,
			CreditsAfter:  available - amount,
		})
		if err != nil {
			return err
		}

		metrics.CreditsConsumedTotal.Add(float64(amount))
		remaining = available - amount
		return nil
	})

	return remaining, err
}

// GetAvailableCredits returns the derived credit balance with yield accrued
// up to the current (possibly cached) rate. Read-only: the computed yield is
// not persisted here, the background refresher does that.
func (s *Service) GetAvailableCredits(ctx context.Context, accountID string) (int64, bool, error) {
	dashboard, err := s.GetDashboard(ctx, accountID)
	if err != nil {
		return 0, false, err
	}

	return dashboard.AvailableCredits, dashboard.Stale, nil
}

// GetDashboard builds the 8-field account snapshot for UI layers.
func (s *Service) GetDashboard(ctx context.Context, accountID string) (models.Dashboard, error) {
	l, err := s.storage.Ledger().Get(ctx, accountID)
	if err != nil {
		return models.Dashboard{}, err
	}

	currentValue, yieldEarned, yieldCredits, stale := s.projectYield(ctx, l)

	return models.Dashboard{
		AccountID:        l.AccountID,
		Principal:        l.Principal,
		DepositedAt:      l.DepositedAt,
		BaseCredits:      l.BaseCredits,
		YieldCredits:     yieldCredits,
		AvailableCredits: l.BaseCredits + yieldCredits - l.CreditsUsed,
		CreditsUsed:      l.CreditsUsed,
		CurrentValue:     currentValue,
		YieldEarned:      yieldEarned,
		Stale:            stale,
	}, nil
}

// GetPlatformStats assembles the global read model: active sums from the
// ledgers, lifetime credit totals from the activity log.
func (s *Service) GetPlatformStats(ctx context.Context) (models.PlatformStats, error) {
	var stats models.PlatformStats

	agg, err := s.storage.Ledger().Aggregate(ctx)
	if err != nil {
		return stats, err
	}

	issued, used, err := s.storage.Activity().CreditTotals(ctx)
	if err != nil {
		return stats, err
	}

	platforms, err := s.storage.Platform().Count(ctx)
	if err != nil {
		return stats, err
	}

	totalValue := agg.TotalPrincipal
	stale := true
	rate, rateErr := s.oracle.ExchangeRate(ctx)
	if rateErr == nil || errors.Is(rateErr, apperrors.ErrYieldSourceAnomaly) {
		totalValue = agg.TotalShares.Mul(rate.Value).Floor().IntPart()
		stale = rate.Stale
	}

	totalYield := totalValue - agg.TotalPrincipal
	if totalYield < 0 {
		totalYield = 0
	}

	return models.PlatformStats{
		TotalPrincipal:       agg.TotalPrincipal,
		TotalValue:           totalValue,
		TotalYieldGenerated:  totalYield,
		TotalCreditsIssued:   issued,
		TotalCreditsUsed:     used,
		TotalUniquePlatforms: platforms,
		Stale:                stale,
	}, nil
}

// RefreshYield folds accrued yield into the stored ledger. Used by the
// periodic refresher; a no-op when nothing accrued or the feed is down.
func (s *Service) RefreshYield(ctx context.Context, accountID string) error {
	rate, err := s.oracle.ExchangeRate(ctx)
	if err != nil && !errors.Is(err, apperrors.ErrYieldSourceAnomaly) {
		return err
	}

	return s.withRetry(ctx, func(st repository.Storage) error {
		l, err := st.Ledger().Lock(ctx, accountID)
		if err != nil {
			return err
		}

		if !l.Active() {
			return nil
		}

		if err := s.accrueYield(ctx, st, &l, rate.Value); err != nil {
			return err
		}

		return st.Ledger().Save(ctx, l)
	})
}

func (s *Service) ListActive(ctx context.Context, limit int) ([]models.Ledger, error) {
	return s.storage.Ledger().ListActive(ctx, limit)
}

func (s *Service) ListActivity(ctx context.Context, accountID string, limit int) ([]models.Activity, error) {
	return s.storage.Activity().List(ctx, accountID, limit)
}

// accrueYield recomputes yield credits at the given rate and mutates the
// ledger in place. Yield credits never decrease: an older or anomalous rate
// simply leaves them as stored. Appends the accrual to the activity log,
// caller persists the ledger itself.
func (s *Service) accrueYield(ctx context.Context, st repository.Storage, l *models.Ledger, rate decimal.Decimal) error {
	if !l.Active() || rate.IsZero() {
		return nil
	}

	_, yieldEarned := yield.Compute(l.Shares, l.Principal, rate)
	computed := s.params.YieldCredits(yieldEarned)
	if computed <= l.YieldCredits {
		return nil
	}

	delta := computed - l.YieldCredits
	before := l.AvailableCredits()
	l.YieldCredits = computed

	err := st.Activity().Append(ctx, models.Activity{
		AccountID:     l.AccountID,
		Op:            models.OpYieldAccrual,
		CreditDelta:   delta,
		CreditsBefore: before,
		CreditsAfter:  l.AvailableCredits(),
	})
	if err != nil {
		return err
	}

	metrics.CreditsIssuedTotal.Add(float64(delta))
	return nil
}

// withRetry runs fn in a transaction, retrying bounded times on
// serialization conflicts and deadlocks before giving up with ErrLedgerBusy.
func (s *Service) withRetry(ctx context.Context, fn func(st repository.Storage) error) error {
	var err error

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		err = s.storage.InTx(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}

		metrics.LedgerRetriesTotal.Inc()
		s.logger.Warn("Ledger transaction conflict, retrying", "attempt", attempt+1, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}

	s.logger.Error("Ledger transaction retries exhausted", "error", err)
	return apperrors.ErrLedgerBusy
}

// projectYield derives value, yield and the monotonic yield credit figure
// for reads, without writing anything.
func (s *Service) projectYield(ctx context.Context, l models.Ledger) (currentValue int64, yieldEarned int64, yieldCredits int64, stale bool) {
	currentValue = l.Principal
	yieldCredits = l.YieldCredits

	if !l.Active() {
		return 0, 0, yieldCredits, false
	}

	rate, err := s.oracle.ExchangeRate(ctx)
	if err != nil && !errors.Is(err, apperrors.ErrYieldSourceAnomaly) {
		return currentValue, 0, yieldCredits, true
	}

	currentValue, yieldEarned = yield.Compute(l.Shares, l.Principal, rate.Value)
	if computed := s.params.YieldCredits(yieldEarned); computed > yieldCredits {
		yieldCredits = computed
	}

	return currentValue, yieldEarned, yieldCredits, rate.Stale
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}
