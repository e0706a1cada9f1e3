package apperrors

import (
	"errors"
)

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrNothingToWithdraw   = errors.New("no active deposit to withdraw")
	ErrLedgerBusy          = errors.New("ledger busy, retries exhausted")

	ErrYieldSourceAnomaly  = errors.New("yield source rate decreased")
	ErrUpstreamUnavailable = errors.New("yield source unavailable")

	ErrActionNotFound = errors.New("action not found")

	ErrPlatformAlreadyExists = errors.New("platform already exists")
	ErrPlatformNotFound      = errors.New("platform not found")
)
